package memory

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/linkdrop/linkdrop-safe-sdk-go/pkg/persistence"
)

// MemoryLedger is an in-memory implementation of ILinkLedger.
//
// All data is lost when the process exits, which is fine for one-shot CLI runs and tests.
// Records are copied on the way in and out so callers cannot mutate stored state.
type MemoryLedger struct {
	mu sync.RWMutex

	// linkId -> IssuedLink
	links map[string]*persistence.IssuedLink

	logger *zap.Logger
	closed bool
}

var _ persistence.ILinkLedger = (*MemoryLedger)(nil)

func NewMemoryLedger(logger *zap.Logger) *MemoryLedger {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Sugar().Debugw("Using in-memory link ledger, issued links are not persisted across restarts")
	return &MemoryLedger{
		links:  make(map[string]*persistence.IssuedLink),
		logger: logger,
	}
}

func (m *MemoryLedger) SaveIssuedLink(link *persistence.IssuedLink) error {
	if err := link.Validate(); err != nil {
		return fmt.Errorf("cannot save issued link: %w", err)
	}
	key, _ := persistence.NormalizeLinkId(link.LinkId)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return persistence.ErrLedgerClosed
	}
	if _, exists := m.links[key]; exists {
		return fmt.Errorf("%w: %s", persistence.ErrLinkIdExists, key)
	}

	c := *link
	m.links[key] = &c
	return nil
}

func (m *MemoryLedger) LoadIssuedLink(linkId string) (*persistence.IssuedLink, error) {
	key, err := persistence.NormalizeLinkId(linkId)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, persistence.ErrLedgerClosed
	}

	stored, exists := m.links[key]
	if !exists {
		return nil, nil
	}
	c := *stored
	return &c, nil
}

func (m *MemoryLedger) ListIssuedLinks() ([]*persistence.IssuedLink, error) {
	return m.list(func(*persistence.IssuedLink) bool { return true })
}

func (m *MemoryLedger) ListBatch(batchId string) ([]*persistence.IssuedLink, error) {
	return m.list(func(il *persistence.IssuedLink) bool { return il.BatchId == batchId })
}

func (m *MemoryLedger) list(keep func(*persistence.IssuedLink) bool) ([]*persistence.IssuedLink, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, persistence.ErrLedgerClosed
	}

	links := make([]*persistence.IssuedLink, 0, len(m.links))
	for _, stored := range m.links {
		if !keep(stored) {
			continue
		}
		c := *stored
		links = append(links, &c)
	}
	persistence.SortByCreatedAt(links)
	return links, nil
}

func (m *MemoryLedger) DeleteIssuedLink(linkId string) error {
	key, err := persistence.NormalizeLinkId(linkId)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return persistence.ErrLedgerClosed
	}
	delete(m.links, key)
	return nil
}

func (m *MemoryLedger) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	m.links = nil
	return nil
}

func (m *MemoryLedger) HealthCheck() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return persistence.ErrLedgerClosed
	}
	return nil
}
