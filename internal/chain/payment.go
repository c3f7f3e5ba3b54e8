package chain

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
)

var ErrPaymentRejected = errors.New("payment rejected")

// Client is the subset of ethclient.Client the game talks to.
type Client interface {
	TransactionByHash(ctx context.Context, hash common.Hash) (tx *types.Transaction, isPending bool, err error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// Payment is the proof a player submits with a join request. TxHash is
// verified on chain; AmountWei is only honoured by TrustedVerifier.
type Payment struct {
	TxHash    string   `json:"tx_hash,omitempty"`
	AmountWei *big.Int `json:"amount_wei,omitempty"`
}

// Key identifies the payment for single-use bookkeeping. Trusted payments
// have no key.
func (p Payment) Key() string {
	return strings.ToLower(strings.TrimSpace(p.TxHash))
}

type PaymentVerifier interface {
	// Verify returns the amount payer transferred to the treasury.
	Verify(ctx context.Context, p Payment, payer common.Address) (*big.Int, error)
}

// EthVerifier checks a native transfer to the treasury on chain.
type EthVerifier struct {
	client   Client
	treasury common.Address
	signer   types.Signer
}

func NewEthVerifier(client Client, treasury common.Address, chainID *big.Int) *EthVerifier {
	return &EthVerifier{
		client:   client,
		treasury: treasury,
		signer:   types.LatestSignerForChainID(chainID),
	}
}

func (v *EthVerifier) Verify(ctx context.Context, p Payment, payer common.Address) (*big.Int, error) {
	raw := p.Key()
	if len(raw) != 66 || !strings.HasPrefix(raw, "0x") {
		return nil, errors.Wrap(ErrPaymentRejected, "tx_hash must be a 32 byte hex hash")
	}
	hash := common.HexToHash(raw)

	tx, pending, err := v.client.TransactionByHash(ctx, hash)
	if err != nil {
		return nil, errors.Wrapf(err, "lookup transaction %s", hash.Hex())
	}
	if pending {
		return nil, errors.Wrap(ErrPaymentRejected, "transaction is still pending")
	}
	if tx.To() == nil || *tx.To() != v.treasury {
		return nil, errors.Wrap(ErrPaymentRejected, "transaction was not sent to the treasury")
	}

	from, err := types.Sender(v.signer, tx)
	if err != nil {
		return nil, errors.Wrap(err, "recover transaction sender")
	}
	if from != payer {
		return nil, errors.Wrap(ErrPaymentRejected, "transaction was sent by another wallet")
	}

	receipt, err := v.client.TransactionReceipt(ctx, hash)
	if err != nil {
		return nil, errors.Wrapf(err, "fetch receipt %s", hash.Hex())
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, errors.Wrap(ErrPaymentRejected, "transaction reverted")
	}
	return new(big.Int).Set(tx.Value()), nil
}

// TrustedVerifier accepts the declared amount. Development only.
type TrustedVerifier struct{}

func (TrustedVerifier) Verify(_ context.Context, p Payment, _ common.Address) (*big.Int, error) {
	if p.AmountWei == nil || p.AmountWei.Sign() < 0 {
		return nil, errors.Wrap(ErrPaymentRejected, "amount_wei is required")
	}
	return new(big.Int).Set(p.AmountWei), nil
}
