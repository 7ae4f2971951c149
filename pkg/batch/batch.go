package batch

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/linkdrop/linkdrop-safe-sdk-go/pkg/link"
	"github.com/linkdrop/linkdrop-safe-sdk-go/pkg/merkle"
	"github.com/linkdrop/linkdrop-safe-sdk-go/pkg/persistence"
)

const (
	DefaultConcurrency = 8
	MaxBatchSize       = 10_000
)

type BatchIssuerConfig struct {
	// Concurrency bounds the number of links signed at once
	Concurrency int
	// RequestsPerSecond caps signer calls; 0 disables the limiter
	RequestsPerSecond float64
	// Burst defaults to Concurrency
	Burst int
}

// BatchIssuer issues many independent links at once. Each link gets its own fresh key.
type BatchIssuer struct {
	issuer      *link.Issuer
	ledger      persistence.ILinkLedger
	limiter     *rate.Limiter
	concurrency int
	logger      *zap.Logger
}

// BatchLink is one issued link and its inclusion proof against the batch root
type BatchLink struct {
	Link  *link.Link          `json:"link"`
	Proof *merkle.MerkleProof `json:"proof"`
}

// IssuedBatch is the result of a successful batch. Links keep request order.
type IssuedBatch struct {
	BatchId    string       `json:"batchId"`
	MerkleRoot common.Hash  `json:"merkleRoot"`
	Links      []*BatchLink `json:"links"`
}

func NewBatchIssuer(issuer *link.Issuer, ledger persistence.ILinkLedger, cfg *BatchIssuerConfig, logger *zap.Logger) (*BatchIssuer, error) {
	if issuer == nil {
		return nil, fmt.Errorf("issuer cannot be nil")
	}
	if ledger == nil {
		return nil, fmt.Errorf("ledger cannot be nil")
	}
	if cfg == nil {
		cfg = &BatchIssuerConfig{}
	}
	if cfg.RequestsPerSecond < 0 {
		return nil, fmt.Errorf("requests per second cannot be negative")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = concurrency
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &BatchIssuer{
		issuer:      issuer,
		ledger:      ledger,
		limiter:     limiter,
		concurrency: concurrency,
		logger:      logger,
	}, nil
}

// CreateLinks issues count links with identical ETH/ERC20 params
func (b *BatchIssuer) CreateLinks(ctx context.Context, count int, params *link.ERC20TransferParams) (*IssuedBatch, error) {
	if err := validateCount(count); err != nil {
		return nil, err
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	return b.run(ctx, count, func(ctx context.Context, i int, batchId string) (*link.Link, error) {
		l, err := b.issuer.CreateLink(ctx, params)
		if err != nil {
			return nil, err
		}
		record, err := persistence.NewIssuedLink(l, params, b.issuer.SignerAddress(), batchId)
		if err != nil {
			return nil, err
		}
		return l, b.ledger.SaveIssuedLink(record)
	})
}

// CreateLinksERC721 issues one link per entry; each NFT can only be claimed once
func (b *BatchIssuer) CreateLinksERC721(ctx context.Context, params []*link.ERC721TransferParams) (*IssuedBatch, error) {
	if err := validateCount(len(params)); err != nil {
		return nil, err
	}
	for i, p := range params {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("params[%d]: %w", i, err)
		}
	}

	return b.run(ctx, len(params), func(ctx context.Context, i int, batchId string) (*link.Link, error) {
		l, err := b.issuer.CreateLinkERC721(ctx, params[i])
		if err != nil {
			return nil, err
		}
		record, err := persistence.NewIssuedLinkERC721(l, params[i], b.issuer.SignerAddress(), batchId)
		if err != nil {
			return nil, err
		}
		return l, b.ledger.SaveIssuedLink(record)
	})
}

func validateCount(count int) error {
	if count <= 0 || count > MaxBatchSize {
		return fmt.Errorf("batch size must be between 1 and %d, got %d", MaxBatchSize, count)
	}
	return nil
}

type issueFunc func(ctx context.Context, i int, batchId string) (*link.Link, error)

// run fans issue out over the worker pool. The first failure cancels the rest and
// every link already recorded for the batch is removed from the ledger.
func (b *BatchIssuer) run(ctx context.Context, count int, issue issueFunc) (*IssuedBatch, error) {
	batchId := uuid.New().String()
	links := make([]*link.Link, count)

	b.logger.Sugar().Infow("Starting batch", "batchId", batchId, "count", count, "concurrency", b.concurrency)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for i := 0; i < count; i++ {
		i := i
		g.Go(func() error {
			if err := b.limiter.Wait(gctx); err != nil {
				return err
			}
			l, err := issue(gctx, i, batchId)
			if err != nil {
				return fmt.Errorf("link %d: %w", i, err)
			}
			links[i] = l
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		b.rollback(batchId)
		b.logger.Sugar().Errorw("Batch failed", "batchId", batchId, "error", err)
		return nil, err
	}

	linkIds := make([]common.Address, count)
	for i, l := range links {
		linkIds[i] = l.LinkId
	}
	tree, err := merkle.BuildMerkleTree(linkIds)
	if err != nil {
		b.rollback(batchId)
		return nil, fmt.Errorf("failed to build batch merkle tree: %w", err)
	}

	result := &IssuedBatch{
		BatchId:    batchId,
		MerkleRoot: tree.Root,
		Links:      make([]*BatchLink, count),
	}
	for i, l := range links {
		proof, err := tree.ProofFor(l.LinkId)
		if err != nil {
			b.rollback(batchId)
			return nil, err
		}
		result.Links[i] = &BatchLink{Link: l, Proof: proof}
	}

	b.logger.Sugar().Infow("Batch issued",
		"batchId", batchId,
		"count", count,
		"merkleRoot", result.MerkleRoot.Hex(),
	)
	return result, nil
}

func (b *BatchIssuer) rollback(batchId string) {
	issued, err := b.ledger.ListBatch(batchId)
	if err != nil {
		if !errors.Is(err, persistence.ErrLedgerClosed) {
			b.logger.Sugar().Warnw("Failed to list batch for rollback", "batchId", batchId, "error", err)
		}
		return
	}
	for _, il := range issued {
		if err := b.ledger.DeleteIssuedLink(il.LinkId); err != nil {
			b.logger.Sugar().Warnw("Failed to roll back issued link", "batchId", batchId, "linkId", il.LinkId, "error", err)
		}
	}
}
