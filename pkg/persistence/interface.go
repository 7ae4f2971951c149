package persistence

// ILinkLedger records every link an issuer has handed out so that a linkId is never issued twice
// and issued links can be audited later. Link keys are never stored.
// All implementations must be thread-safe as batches issue links concurrently.
type ILinkLedger interface {
	// SaveIssuedLink persists a newly issued link.
	// Returns ErrLinkIdExists if the linkId was already recorded.
	SaveIssuedLink(link *IssuedLink) error

	// LoadIssuedLink retrieves an issued link by linkId.
	// Returns nil if it doesn't exist, error only on storage failure.
	LoadIssuedLink(linkId string) (*IssuedLink, error)

	// ListIssuedLinks returns all issued links sorted by creation time (ascending).
	// Returns empty slice if none exist.
	ListIssuedLinks() ([]*IssuedLink, error)

	// ListBatch returns the links issued under a single batch id, sorted like ListIssuedLinks.
	ListBatch(batchId string) ([]*IssuedLink, error)

	// DeleteIssuedLink removes an issued link.
	// Idempotent - returns nil if it doesn't exist.
	DeleteIssuedLink(linkId string) error

	// Close cleanly shuts down the ledger.
	// Idempotent - safe to call multiple times.
	// After Close(), all other operations return ErrLedgerClosed.
	Close() error

	// HealthCheck verifies the ledger is operational.
	HealthCheck() error
}
