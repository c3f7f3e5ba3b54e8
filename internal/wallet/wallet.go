package wallet

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const etherDecimals = 18

// UnifyAddress validates a hex address and returns its canonical form.
func UnifyAddress(address string) (common.Address, error) {
	address = strings.TrimSpace(address)
	if len(address) <= 2 || !common.IsHexAddress(address) {
		return common.Address{}, errors.New("address is illegal")
	}
	return common.HexToAddress(address), nil
}

// ParseAddressList parses a comma separated list, skipping blanks.
func ParseAddressList(raw string) ([]common.Address, error) {
	var out []common.Address
	for _, part := range strings.Split(raw, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		addr, err := UnifyAddress(part)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid address %q", part)
		}
		out = append(out, addr)
	}
	return out, nil
}

// ParseEther converts a decimal ETH amount ("0.00001") to wei.
func ParseEther(eth string) (*big.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(eth))
	if err != nil {
		return nil, errors.Wrap(err, "invalid ether amount")
	}
	if d.IsNegative() {
		return nil, errors.New("ether amount must not be negative")
	}
	wei := d.Shift(etherDecimals)
	if !wei.Equal(wei.Truncate(0)) {
		return nil, errors.Errorf("ether amount %s has more than %d decimals", eth, etherDecimals)
	}
	return wei.BigInt(), nil
}

func FormatEther(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	return decimal.NewFromBigInt(wei, -etherDecimals).String()
}

// SignText produces an EIP-191 personal_sign signature.
func SignText(key *ecdsa.PrivateKey, message string) (string, error) {
	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), key)
	if err != nil {
		return "", errors.Wrap(err, "sign message")
	}
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig), nil
}

// RecoverText returns the address that personal_signed message.
func RecoverText(message, signature string) (common.Address, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return common.Address{}, errors.Wrap(err, "decode signature")
	}
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, errors.Errorf("signature must be %d bytes", crypto.SignatureLength)
	}
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return common.Address{}, errors.Wrap(err, "recover signer")
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// AuthMessage is the text a wallet signs to authenticate an API request.
func AuthMessage(addr common.Address, issuedAt time.Time) string {
	return fmt.Sprintf("BaseQuest login\naddress:%s\nissued:%d", strings.ToLower(addr.Hex()), issuedAt.Unix())
}

// VerifyAuth checks a request signature and its freshness.
func VerifyAuth(addr common.Address, issuedAt time.Time, signature string, now time.Time, maxAge time.Duration) error {
	age := now.Sub(issuedAt)
	if age < -time.Minute || age > maxAge {
		return errors.New("auth signature expired")
	}
	signer, err := RecoverText(AuthMessage(addr, issuedAt), signature)
	if err != nil {
		return err
	}
	if signer != addr {
		return errors.New("signature does not match address")
	}
	return nil
}

// Attestation is an attester's confirmation that player completed an
// off-chain task. Nonce must equal the player's current ledger nonce.
type Attestation struct {
	Player    common.Address `json:"player"`
	Week      uint64         `json:"week"`
	TaskID    int            `json:"task_id"`
	Nonce     uint64         `json:"nonce"`
	Signature string         `json:"signature"`
}

func (a Attestation) Message() string {
	return fmt.Sprintf("BaseQuest attestation\nplayer:%s\nweek:%d\ntask:%d\nnonce:%d",
		strings.ToLower(a.Player.Hex()), a.Week, a.TaskID, a.Nonce)
}

// Signer recovers who signed the attestation.
func (a Attestation) Signer() (common.Address, error) {
	return RecoverText(a.Message(), a.Signature)
}

func SignAttestation(key *ecdsa.PrivateKey, a Attestation) (Attestation, error) {
	sig, err := SignText(key, a.Message())
	if err != nil {
		return a, err
	}
	a.Signature = sig
	return a, nil
}
