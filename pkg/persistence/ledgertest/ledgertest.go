// Package ledgertest holds the behaviour every ILinkLedger backend must share.
package ledgertest

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkdrop/linkdrop-safe-sdk-go/pkg/persistence"
	"github.com/linkdrop/linkdrop-safe-sdk-go/pkg/types"
)

// NewIssuedLink returns a deterministic record for index i
func NewIssuedLink(i int64, batchId string) *persistence.IssuedLink {
	return &persistence.IssuedLink{
		LinkId:                  common.BigToAddress(big.NewInt(1000 + i)).Hex(),
		Kind:                    types.LinkKindERC20,
		LinkdropModuleAddress:   "0x1111111111111111111111111111111111111111",
		WeiAmount:               fmt.Sprintf("%d", i),
		TokenAddress:            common.Address{}.Hex(),
		TokenAmount:             "0",
		ExpirationTime:          "9999999999",
		SignerAddress:           "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266",
		LinkdropSignerSignature: "0x00",
		BatchId:                 batchId,
		CreatedAt:               1_700_000_000_000 + i,
	}
}

// Run exercises a fresh ledger from newLedger against the ILinkLedger contract
func Run(t *testing.T, newLedger func(t *testing.T) persistence.ILinkLedger) {
	t.Run("Should save and load an issued link", func(t *testing.T) {
		ledger := newLedger(t)
		defer func() { _ = ledger.Close() }()

		il := NewIssuedLink(1, "")
		require.NoError(t, ledger.SaveIssuedLink(il))

		loaded, err := ledger.LoadIssuedLink(il.LinkId)
		require.NoError(t, err)
		require.NotNil(t, loaded)
		assert.Equal(t, il, loaded)
	})

	t.Run("Should load regardless of linkId case", func(t *testing.T) {
		ledger := newLedger(t)
		defer func() { _ = ledger.Close() }()

		il := NewIssuedLink(2, "")
		require.NoError(t, ledger.SaveIssuedLink(il))

		loaded, err := ledger.LoadIssuedLink(strings.ToLower(il.LinkId))
		require.NoError(t, err)
		require.NotNil(t, loaded)
	})

	t.Run("Should return nil for an unknown linkId", func(t *testing.T) {
		ledger := newLedger(t)
		defer func() { _ = ledger.Close() }()

		loaded, err := ledger.LoadIssuedLink(NewIssuedLink(99, "").LinkId)
		require.NoError(t, err)
		assert.Nil(t, loaded)
	})

	t.Run("Should refuse to record a linkId twice", func(t *testing.T) {
		ledger := newLedger(t)
		defer func() { _ = ledger.Close() }()

		il := NewIssuedLink(3, "")
		require.NoError(t, ledger.SaveIssuedLink(il))
		err := ledger.SaveIssuedLink(NewIssuedLink(3, "other"))
		assert.True(t, errors.Is(err, persistence.ErrLinkIdExists))

		loaded, err := ledger.LoadIssuedLink(il.LinkId)
		require.NoError(t, err)
		assert.Equal(t, "", loaded.BatchId)
	})

	t.Run("Should reject invalid records", func(t *testing.T) {
		ledger := newLedger(t)
		defer func() { _ = ledger.Close() }()

		assert.Error(t, ledger.SaveIssuedLink(nil))
		assert.Error(t, ledger.SaveIssuedLink(&persistence.IssuedLink{LinkId: "nope", Kind: types.LinkKindERC20}))
		_, err := ledger.LoadIssuedLink("nope")
		assert.True(t, errors.Is(err, types.ErrInvalidEncoding))
	})

	t.Run("Should list links by creation time and by batch", func(t *testing.T) {
		ledger := newLedger(t)
		defer func() { _ = ledger.Close() }()

		links, err := ledger.ListIssuedLinks()
		require.NoError(t, err)
		assert.Empty(t, links)

		for _, i := range []int64{5, 3, 4, 1} {
			batch := "a"
			if i%2 == 0 {
				batch = "b"
			}
			require.NoError(t, ledger.SaveIssuedLink(NewIssuedLink(i, batch)))
		}

		links, err = ledger.ListIssuedLinks()
		require.NoError(t, err)
		require.Len(t, links, 4)
		for i := 1; i < len(links); i++ {
			assert.Less(t, links[i-1].CreatedAt, links[i].CreatedAt)
		}

		batchA, err := ledger.ListBatch("a")
		require.NoError(t, err)
		require.Len(t, batchA, 3)
		assert.Equal(t, NewIssuedLink(1, "a").LinkId, batchA[0].LinkId)

		none, err := ledger.ListBatch("missing")
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("Should delete idempotently", func(t *testing.T) {
		ledger := newLedger(t)
		defer func() { _ = ledger.Close() }()

		il := NewIssuedLink(6, "b")
		require.NoError(t, ledger.SaveIssuedLink(il))
		require.NoError(t, ledger.DeleteIssuedLink(il.LinkId))
		require.NoError(t, ledger.DeleteIssuedLink(il.LinkId))

		loaded, err := ledger.LoadIssuedLink(il.LinkId)
		require.NoError(t, err)
		assert.Nil(t, loaded)

		batch, err := ledger.ListBatch("b")
		require.NoError(t, err)
		assert.Empty(t, batch)
	})

	t.Run("Should handle concurrent saves", func(t *testing.T) {
		ledger := newLedger(t)
		defer func() { _ = ledger.Close() }()

		var wg sync.WaitGroup
		errs := make(chan error, 40)
		for i := int64(0); i < 20; i++ {
			for j := 0; j < 2; j++ {
				wg.Add(1)
				go func(i int64) {
					defer wg.Done()
					errs <- ledger.SaveIssuedLink(NewIssuedLink(100+i, ""))
				}(i)
			}
		}
		wg.Wait()
		close(errs)

		dupes := 0
		for err := range errs {
			if err != nil {
				require.True(t, errors.Is(err, persistence.ErrLinkIdExists), err)
				dupes++
			}
		}
		assert.Equal(t, 20, dupes)

		links, err := ledger.ListIssuedLinks()
		require.NoError(t, err)
		assert.Len(t, links, 20)
	})

	t.Run("Should fail every operation after close", func(t *testing.T) {
		ledger := newLedger(t)
		require.NoError(t, ledger.HealthCheck())
		require.NoError(t, ledger.Close())
		require.NoError(t, ledger.Close())

		il := NewIssuedLink(7, "")
		assert.True(t, errors.Is(ledger.SaveIssuedLink(il), persistence.ErrLedgerClosed))
		_, err := ledger.LoadIssuedLink(il.LinkId)
		assert.True(t, errors.Is(err, persistence.ErrLedgerClosed))
		_, err = ledger.ListIssuedLinks()
		assert.True(t, errors.Is(err, persistence.ErrLedgerClosed))
		assert.True(t, errors.Is(ledger.DeleteIssuedLink(il.LinkId), persistence.ErrLedgerClosed))
		assert.True(t, errors.Is(ledger.HealthCheck(), persistence.ErrLedgerClosed))
	})
}
