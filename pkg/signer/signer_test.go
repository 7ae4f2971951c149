package signer

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkdrop/linkdrop-safe-sdk-go/pkg/types"
)

func TestPersonalMessageHash(t *testing.T) {
	message := crypto.Keccak256([]byte("digest"))
	expected := crypto.Keccak256(append([]byte("\x19Ethereum Signed Message:\n32"), message...))
	assert.Equal(t, expected, PersonalMessageHash(message))
}

func TestRecoverMessageSigner(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	address := crypto.PubkeyToAddress(key.PublicKey)
	message := []byte("some message")

	raw, err := crypto.Sign(PersonalMessageHash(message), key)
	require.NoError(t, err)

	t.Run("Should accept V as 0/1", func(t *testing.T) {
		recovered, err := RecoverMessageSigner(message, raw)
		require.NoError(t, err)
		assert.Equal(t, address, recovered)
	})

	t.Run("Should accept V as 27/28", func(t *testing.T) {
		sig, err := ToEthereumV(raw)
		require.NoError(t, err)
		assert.Equal(t, raw[64]+27, sig[64])
		assert.True(t, VerifyMessageSignature(message, sig, address))
	})

	t.Run("Should not mutate the input signature", func(t *testing.T) {
		sig, err := ToEthereumV(raw)
		require.NoError(t, err)
		v := sig[64]
		_, err = RecoverMessageSigner(message, sig)
		require.NoError(t, err)
		assert.Equal(t, v, sig[64])
	})

	t.Run("Should reject malformed signatures", func(t *testing.T) {
		_, err := RecoverMessageSigner(message, raw[:64])
		assert.Error(t, err)
		assert.False(t, VerifyMessageSignature(message, []byte{1, 2, 3}, address))

		bad := append([]byte{}, raw...)
		bad[64] = 9
		_, err = ToEthereumV(bad)
		assert.ErrorIs(t, err, types.ErrSigningFailure)
	})
}
