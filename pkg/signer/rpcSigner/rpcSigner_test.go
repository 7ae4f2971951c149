package rpcSigner

import (
	"context"
	"crypto/ecdsa"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkdrop/linkdrop-safe-sdk-go/pkg/signer"
	"github.com/linkdrop/linkdrop-safe-sdk-go/pkg/types"
)

// ethService mimics the eth_sign/eth_accounts surface of a remote signer.
// It answers with V in {0, 1} the way some signers do.
type ethService struct {
	key *ecdsa.PrivateKey
}

func (s *ethService) Accounts() []common.Address {
	return []common.Address{crypto.PubkeyToAddress(s.key.PublicKey)}
}

func (s *ethService) Sign(address common.Address, data hexutil.Bytes) (hexutil.Bytes, error) {
	sig, err := crypto.Sign(signer.PersonalMessageHash(data), s.key)
	if err != nil {
		return nil, err
	}
	return sig, nil
}

func newTestSigner(t *testing.T, key *ecdsa.PrivateKey, address common.Address) *RPCSigner {
	t.Helper()
	server := rpc.NewServer()
	require.NoError(t, server.RegisterName("eth", &ethService{key: key}))
	t.Cleanup(server.Stop)

	s := NewRPCSignerWithClient(rpc.DialInProc(server), address, nil)
	t.Cleanup(s.Close)
	return s
}

func Test_RPCSigner(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	address := crypto.PubkeyToAddress(key.PublicKey)

	t.Run("Should sign through eth_sign and normalize V", func(t *testing.T) {
		s := newTestSigner(t, key, address)

		message := crypto.Keccak256([]byte("payload"))
		sig, err := s.SignMessage(context.Background(), message)
		require.NoError(t, err)
		assert.Contains(t, []byte{27, 28}, sig[64])
		assert.True(t, signer.VerifyMessageSignature(message, sig, address))
	})

	t.Run("Should list remote accounts", func(t *testing.T) {
		s := newTestSigner(t, key, address)

		accounts, err := s.Accounts(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []common.Address{address}, accounts)
	})

	t.Run("Should reject signatures from an unexpected key", func(t *testing.T) {
		other := common.HexToAddress("0x000000000000000000000000000000000000dEaD")
		s := newTestSigner(t, key, other)

		_, err := s.SignMessage(context.Background(), []byte("payload"))
		require.Error(t, err)
		assert.ErrorIs(t, err, types.ErrSigningFailure)
	})

	t.Run("Should surface unreachable signers as signing failures", func(t *testing.T) {
		s := newTestSigner(t, key, address)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := s.SignMessage(ctx, []byte("payload"))
		assert.ErrorIs(t, err, types.ErrSigningFailure)
	})
}
