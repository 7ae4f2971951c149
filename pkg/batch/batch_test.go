package batch

import (
	"context"
	"errors"
	"math/big"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkdrop/linkdrop-safe-sdk-go/pkg/link"
	"github.com/linkdrop/linkdrop-safe-sdk-go/pkg/merkle"
	"github.com/linkdrop/linkdrop-safe-sdk-go/pkg/persistence/memory"
	"github.com/linkdrop/linkdrop-safe-sdk-go/pkg/signer"
	"github.com/linkdrop/linkdrop-safe-sdk-go/pkg/signer/inMemorySigner"
	"github.com/linkdrop/linkdrop-safe-sdk-go/pkg/types"
)

const testIssuerKey = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func testParams() *link.ERC20TransferParams {
	return &link.ERC20TransferParams{
		LinkdropModuleAddress: common.HexToAddress("0x1111111111111111111111111111111111111111"),
		WeiAmount:             big.NewInt(1000),
		TokenAddress:          common.Address{},
		TokenAmount:           big.NewInt(0),
		ExpirationTime:        big.NewInt(9999999999),
	}
}

// flakySigner fails every call after the first okCalls
type flakySigner struct {
	signer.ISigner
	okCalls int64
	calls   atomic.Int64
}

func (f *flakySigner) SignMessage(ctx context.Context, message []byte) ([]byte, error) {
	if f.calls.Add(1) > f.okCalls {
		return nil, errors.New("signer unavailable")
	}
	return f.ISigner.SignMessage(ctx, message)
}

func newTestIssuer(t *testing.T, s signer.ISigner) *link.Issuer {
	t.Helper()
	if s == nil {
		var err error
		s, err = inMemorySigner.NewPrivateKeySigner(testIssuerKey, nil)
		require.NoError(t, err)
	}
	issuer, err := link.NewIssuer(s, nil)
	require.NoError(t, err)
	return issuer
}

func Test_BatchIssuer_CreateLinks(t *testing.T) {
	t.Run("Should issue distinct verifiable links under one root", func(t *testing.T) {
		ledger := memory.NewMemoryLedger(nil)
		defer func() { _ = ledger.Close() }()
		issuer := newTestIssuer(t, nil)

		b, err := NewBatchIssuer(issuer, ledger, &BatchIssuerConfig{Concurrency: 4}, nil)
		require.NoError(t, err)

		params := testParams()
		result, err := b.CreateLinks(context.Background(), 25, params)
		require.NoError(t, err)
		require.Len(t, result.Links, 25)
		assert.NotEmpty(t, result.BatchId)

		seen := map[common.Address]bool{}
		for _, bl := range result.Links {
			assert.False(t, seen[bl.Link.LinkId], "linkId reused")
			seen[bl.Link.LinkId] = true

			assert.NoError(t, link.VerifyLinkdropSignerSignature(params, bl.Link.LinkId, bl.Link.LinkdropSignerSignature, issuer.SignerAddress()))
			assert.Equal(t, bl.Link.LinkId, bl.Proof.LinkId)
			assert.True(t, merkle.VerifyProof(bl.Proof, result.MerkleRoot))
		}

		recorded, err := ledger.ListBatch(result.BatchId)
		require.NoError(t, err)
		assert.Len(t, recorded, 25)
		for _, il := range recorded {
			assert.Equal(t, issuer.SignerAddress().Hex(), il.SignerAddress)
		}
	})

	t.Run("Should roll back the ledger when any link fails", func(t *testing.T) {
		ledger := memory.NewMemoryLedger(nil)
		defer func() { _ = ledger.Close() }()

		base, err := inMemorySigner.NewPrivateKeySigner(testIssuerKey, nil)
		require.NoError(t, err)
		issuer := newTestIssuer(t, &flakySigner{ISigner: base, okCalls: 3})

		b, err := NewBatchIssuer(issuer, ledger, &BatchIssuerConfig{Concurrency: 1}, nil)
		require.NoError(t, err)

		result, err := b.CreateLinks(context.Background(), 10, testParams())
		require.Error(t, err)
		assert.Nil(t, result)
		assert.ErrorIs(t, err, types.ErrSigningFailure)

		all, err := ledger.ListIssuedLinks()
		require.NoError(t, err)
		assert.Empty(t, all)
	})

	t.Run("Should throttle signer calls", func(t *testing.T) {
		ledger := memory.NewMemoryLedger(nil)
		defer func() { _ = ledger.Close() }()

		b, err := NewBatchIssuer(newTestIssuer(t, nil), ledger, &BatchIssuerConfig{Concurrency: 4, RequestsPerSecond: 20, Burst: 1}, nil)
		require.NoError(t, err)

		start := time.Now()
		_, err = b.CreateLinks(context.Background(), 5, testParams())
		require.NoError(t, err)
		assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
	})

	t.Run("Should stop on context cancellation", func(t *testing.T) {
		ledger := memory.NewMemoryLedger(nil)
		defer func() { _ = ledger.Close() }()

		b, err := NewBatchIssuer(newTestIssuer(t, nil), ledger, &BatchIssuerConfig{RequestsPerSecond: 1, Burst: 1}, nil)
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		_, err = b.CreateLinks(ctx, 10, testParams())
		assert.Error(t, err)

		all, err := ledger.ListIssuedLinks()
		require.NoError(t, err)
		assert.Empty(t, all)
	})

	t.Run("Should validate input", func(t *testing.T) {
		ledger := memory.NewMemoryLedger(nil)
		b, err := NewBatchIssuer(newTestIssuer(t, nil), ledger, nil, nil)
		require.NoError(t, err)

		_, err = b.CreateLinks(context.Background(), 0, testParams())
		assert.Error(t, err)
		_, err = b.CreateLinks(context.Background(), MaxBatchSize+1, testParams())
		assert.Error(t, err)

		bad := testParams()
		bad.WeiAmount = nil
		_, err = b.CreateLinks(context.Background(), 1, bad)
		assert.ErrorIs(t, err, types.ErrInvalidEncoding)
	})
}

func Test_BatchIssuer_CreateLinksERC721(t *testing.T) {
	ledger := memory.NewMemoryLedger(nil)
	defer func() { _ = ledger.Close() }()
	issuer := newTestIssuer(t, nil)

	b, err := NewBatchIssuer(issuer, ledger, nil, nil)
	require.NoError(t, err)

	params := make([]*link.ERC721TransferParams, 3)
	for i := range params {
		params[i] = &link.ERC721TransferParams{
			LinkdropModuleAddress: common.HexToAddress("0x1111111111111111111111111111111111111111"),
			WeiAmount:             big.NewInt(0),
			NFTAddress:            common.HexToAddress("0x3333333333333333333333333333333333333333"),
			TokenId:               big.NewInt(int64(i + 1)),
			ExpirationTime:        big.NewInt(9999999999),
		}
	}

	result, err := b.CreateLinksERC721(context.Background(), params)
	require.NoError(t, err)
	require.Len(t, result.Links, 3)
	for i, bl := range result.Links {
		assert.NoError(t, link.VerifyLinkdropSignerSignatureERC721(params[i], bl.Link.LinkId, bl.Link.LinkdropSignerSignature, issuer.SignerAddress()))
		il, err := ledger.LoadIssuedLink(bl.Link.LinkId.Hex())
		require.NoError(t, err)
		assert.Equal(t, types.LinkKindERC721, il.Kind)
		assert.Equal(t, params[i].TokenId.String(), il.TokenId)
	}
}

func Test_NewBatchIssuer(t *testing.T) {
	ledger := memory.NewMemoryLedger(nil)
	_, err := NewBatchIssuer(nil, ledger, nil, nil)
	assert.Error(t, err)
	_, err = NewBatchIssuer(newTestIssuer(t, nil), nil, nil, nil)
	assert.Error(t, err)
	_, err = NewBatchIssuer(newTestIssuer(t, nil), ledger, &BatchIssuerConfig{RequestsPerSecond: -1}, nil)
	assert.Error(t, err)
}
