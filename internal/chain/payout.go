package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

const transferGas = 21000

type PayoutSender interface {
	// Send transfers amount wei to the winner and returns the tx hash.
	Send(ctx context.Context, to common.Address, amount *big.Int) (string, error)
}

// EthPayoutSender signs native transfers from the treasury key.
type EthPayoutSender struct {
	client  Client
	key     *ecdsa.PrivateKey
	from    common.Address
	chainID *big.Int

	mu sync.Mutex
}

func NewEthPayoutSender(client Client, hexKey string, chainID *big.Int) (*EthPayoutSender, error) {
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, errors.Wrap(err, "parse treasury private key")
	}
	return &EthPayoutSender{
		client:  client,
		key:     key,
		from:    crypto.PubkeyToAddress(key.PublicKey),
		chainID: chainID,
	}, nil
}

func (s *EthPayoutSender) From() common.Address {
	return s.from
}

func (s *EthPayoutSender) Send(ctx context.Context, to common.Address, amount *big.Int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nonce, err := s.client.PendingNonceAt(ctx, s.from)
	if err != nil {
		return "", errors.Wrap(err, "PendingNonceAt")
	}
	gasPrice, err := s.client.SuggestGasPrice(ctx)
	if err != nil {
		return "", errors.Wrap(err, "SuggestGasPrice")
	}

	tx := types.NewTransaction(nonce, to, amount, transferGas, gasPrice, nil)
	signed, err := types.SignTx(tx, types.NewEIP155Signer(s.chainID), s.key)
	if err != nil {
		return "", errors.Wrap(err, "SignTx")
	}
	if err := s.client.SendTransaction(ctx, signed); err != nil {
		return "", errors.Wrap(err, "SendTransaction")
	}
	return signed.Hash().Hex(), nil
}

type SentPayout struct {
	To     common.Address
	Amount *big.Int
	TxHash string
}

// RecordingPayoutSender keeps payouts in memory instead of broadcasting
// them. Used when no treasury key is configured.
type RecordingPayoutSender struct {
	mu   sync.Mutex
	sent []SentPayout
	fail error
}

func NewRecordingPayoutSender() *RecordingPayoutSender {
	return &RecordingPayoutSender{}
}

// FailWith makes every following Send return err.
func (s *RecordingPayoutSender) FailWith(err error) {
	s.mu.Lock()
	s.fail = err
	s.mu.Unlock()
}

func (s *RecordingPayoutSender) Send(_ context.Context, to common.Address, amount *big.Int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fail != nil {
		return "", s.fail
	}
	hash := crypto.Keccak256Hash([]byte(fmt.Sprintf("%s:%s:%d", to.Hex(), amount.String(), len(s.sent)))).Hex()
	s.sent = append(s.sent, SentPayout{To: to, Amount: new(big.Int).Set(amount), TxHash: hash})
	return hash, nil
}

func (s *RecordingPayoutSender) Sent() []SentPayout {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SentPayout, len(s.sent))
	copy(out, s.sent)
	return out
}
