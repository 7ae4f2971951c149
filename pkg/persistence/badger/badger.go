package badger

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	badgerdb "github.com/dgraph-io/badger/v3"
	"go.uber.org/zap"

	"github.com/linkdrop/linkdrop-safe-sdk-go/pkg/persistence"
)

// Key prefixes for namespacing
const (
	keyPrefixLink        = "link:"
	keySchemaVersion     = "metadata:schema_version"
	currentSchemaVersion = "v1"

	maxConflictRetries = 3
)

// BadgerLedger is a disk-backed ILinkLedger using Badger.
// Every write is synced so an issued linkId survives a crash.
type BadgerLedger struct {
	db       *badgerdb.DB
	logger   *zap.Logger
	gcCancel context.CancelFunc
	gcWg     sync.WaitGroup
	mu       sync.RWMutex
	closed   bool
}

var _ persistence.ILinkLedger = (*BadgerLedger)(nil)

// NewBadgerLedger opens (or creates) the ledger at dataPath and starts a background value log GC.
func NewBadgerLedger(dataPath string, logger *zap.Logger) (*BadgerLedger, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	absPath, err := filepath.Abs(dataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	opts := badgerdb.DefaultOptions(absPath)
	opts.Logger = newZapBadgerLogger(logger)
	opts.SyncWrites = true
	opts.CompactL0OnClose = true
	opts.NumVersionsToKeep = 1

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database at %s: %w", absPath, err)
	}

	bl := &BadgerLedger{
		db:     db,
		logger: logger,
	}

	if err := bl.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	bl.gcCancel = cancel
	bl.gcWg.Add(1)
	go bl.runGC(ctx)

	logger.Sugar().Infow("Badger link ledger initialized", "path", absPath)

	return bl, nil
}

func (b *BadgerLedger) initSchema() error {
	return b.db.Update(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(keySchemaVersion))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return txn.Set([]byte(keySchemaVersion), []byte(currentSchemaVersion))
		}
		if err != nil {
			return fmt.Errorf("failed to read schema version: %w", err)
		}

		var existingVersion string
		err = item.Value(func(val []byte) error {
			existingVersion = string(val)
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to read schema version value: %w", err)
		}

		if existingVersion != currentSchemaVersion {
			return fmt.Errorf("unsupported schema version: %s (expected: %s)", existingVersion, currentSchemaVersion)
		}
		return nil
	})
}

func (b *BadgerLedger) runGC(ctx context.Context) {
	defer b.gcWg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			err := b.db.RunValueLogGC(0.5)
			if err != nil && !errors.Is(err, badgerdb.ErrNoRewrite) {
				b.logger.Sugar().Warnw("Badger GC error", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

func linkKey(linkId string) []byte {
	return []byte(keyPrefixLink + linkId)
}

// SaveIssuedLink writes the record only if the linkId is absent.
// Two concurrent writers of the same linkId conflict in badger; the loser retries and sees the winner.
func (b *BadgerLedger) SaveIssuedLink(link *persistence.IssuedLink) error {
	if err := link.Validate(); err != nil {
		return fmt.Errorf("cannot save issued link: %w", err)
	}
	id, _ := persistence.NormalizeLinkId(link.LinkId)

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return persistence.ErrLedgerClosed
	}

	data, err := persistence.MarshalIssuedLink(link)
	if err != nil {
		return err
	}

	for attempt := 0; ; attempt++ {
		err = b.db.Update(func(txn *badgerdb.Txn) error {
			_, err := txn.Get(linkKey(id))
			if err == nil {
				return fmt.Errorf("%w: %s", persistence.ErrLinkIdExists, id)
			}
			if !errors.Is(err, badgerdb.ErrKeyNotFound) {
				return err
			}
			return txn.Set(linkKey(id), data)
		})
		if errors.Is(err, badgerdb.ErrConflict) && attempt < maxConflictRetries {
			continue
		}
		break
	}
	if err != nil && !errors.Is(err, persistence.ErrLinkIdExists) {
		return fmt.Errorf("failed to save issued link: %w", err)
	}
	return err
}

func (b *BadgerLedger) LoadIssuedLink(linkId string) (*persistence.IssuedLink, error) {
	id, err := persistence.NormalizeLinkId(linkId)
	if err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, persistence.ErrLedgerClosed
	}

	var data []byte
	err = b.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(linkKey(id))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load issued link: %w", err)
	}
	if data == nil {
		return nil, nil
	}

	return persistence.UnmarshalIssuedLink(data)
}

func (b *BadgerLedger) ListIssuedLinks() ([]*persistence.IssuedLink, error) {
	return b.list(func(*persistence.IssuedLink) bool { return true })
}

func (b *BadgerLedger) ListBatch(batchId string) ([]*persistence.IssuedLink, error) {
	return b.list(func(il *persistence.IssuedLink) bool { return il.BatchId == batchId })
}

func (b *BadgerLedger) list(keep func(*persistence.IssuedLink) bool) ([]*persistence.IssuedLink, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, persistence.ErrLedgerClosed
	}

	links := []*persistence.IssuedLink{}
	err := b.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefixLink)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			data, err := item.ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("failed to read value: %w", err)
			}

			il, err := persistence.UnmarshalIssuedLink(data)
			if err != nil {
				b.logger.Sugar().Warnw("Failed to unmarshal IssuedLink, skipping",
					"key", string(item.Key()), "error", err)
				continue
			}
			if keep(il) {
				links = append(links, il)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list issued links: %w", err)
	}

	persistence.SortByCreatedAt(links)
	return links, nil
}

func (b *BadgerLedger) DeleteIssuedLink(linkId string) error {
	id, err := persistence.NormalizeLinkId(linkId)
	if err != nil {
		return err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return persistence.ErrLedgerClosed
	}

	return b.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Delete(linkKey(id))
	})
}

// Close stops GC and closes the database
func (b *BadgerLedger) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	if b.gcCancel != nil {
		b.gcCancel()
	}
	b.gcWg.Wait()

	if err := b.db.Close(); err != nil {
		return fmt.Errorf("failed to close badger database: %w", err)
	}

	b.logger.Sugar().Info("Badger link ledger closed")
	return nil
}

func (b *BadgerLedger) HealthCheck() error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return persistence.ErrLedgerClosed
	}

	return b.db.View(func(txn *badgerdb.Txn) error {
		_, err := txn.Get([]byte(keySchemaVersion))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return fmt.Errorf("schema version not found - database may be corrupted")
		}
		return err
	})
}
