package wallet

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAndFormatEther(t *testing.T) {
	wei, err := ParseEther("0.00001")
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(10_000_000_000_000), wei)
	assert.Equal(t, "0.00001", FormatEther(wei))

	_, err = ParseEther("0.0000000000000000001")
	assert.Error(t, err)
	_, err = ParseEther("-1")
	assert.Error(t, err)
	_, err = ParseEther("abc")
	assert.Error(t, err)
}

func TestUnifyAddress(t *testing.T) {
	addr, err := UnifyAddress("0xaa4c50b0023530432eee23f8c6d29756b5a317dc")
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0xAA4C50B0023530432EEE23F8C6D29756B5A317DC"), addr)

	_, err = UnifyAddress("0x12")
	assert.Error(t, err)

	list, err := ParseAddressList("0xaa4c50b0023530432eee23f8c6d29756b5a317dc, ,0x749E23524d7033C8d39664f2f7efB5ab0E4DFEfE")
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestSignAndVerifyAuth(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	addr := crypto.PubkeyToAddress(key.PublicKey)
	now := time.Unix(1_700_000_000, 0)

	sig, err := SignText(key, AuthMessage(addr, now))
	require.NoError(t, err)

	assert.NoError(t, VerifyAuth(addr, now, sig, now.Add(time.Minute), 5*time.Minute))
	assert.Error(t, VerifyAuth(addr, now, sig, now.Add(10*time.Minute), 5*time.Minute))

	other, _ := crypto.GenerateKey()
	assert.Error(t, VerifyAuth(crypto.PubkeyToAddress(other.PublicKey), now, sig, now, 5*time.Minute))
}

func TestAttestationRoundTrip(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	a, err := SignAttestation(key, Attestation{
		Player: crypto.PubkeyToAddress(key.PublicKey),
		Week:   3,
		TaskID: 7,
		Nonce:  2,
	})
	require.NoError(t, err)

	signer, err := a.Signer()
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), signer)

	a.TaskID = 8
	signer, err = a.Signer()
	require.NoError(t, err)
	assert.NotEqual(t, crypto.PubkeyToAddress(key.PublicKey), signer)
}
