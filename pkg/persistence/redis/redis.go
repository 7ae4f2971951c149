package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/linkdrop/linkdrop-safe-sdk-go/pkg/persistence"
)

// Key prefixes for namespacing in Redis
const (
	keyPrefixLink        = "linkdrop:link:"
	keyPrefixBatchIndex  = "linkdrop:batch:"
	keySchemaVersion     = "linkdrop:metadata:schema_version"
	currentSchemaVersion = "v1"

	// Redis doesn't support prefix iteration natively, so linkIds are also kept in a set
	keySetLinks = "linkdrop:links:index"

	operationTimeout = 5 * time.Second
)

// RedisLedger is an ILinkLedger shared by several issuers through one Redis instance.
type RedisLedger struct {
	client    *redis.Client
	logger    *zap.Logger
	keyPrefix string
	mu        sync.RWMutex
	closed    bool
}

var _ persistence.ILinkLedger = (*RedisLedger)(nil)

// RedisConfig holds the configuration for connecting to Redis
type RedisConfig struct {
	// Address is the Redis server address (host:port)
	Address string
	// Password is the optional Redis password
	Password string
	// DB is the Redis database number (0-15)
	DB int
	// KeyPrefix is prepended to every key, e.g. "campaign-1:" gives "campaign-1:linkdrop:link:0x..."
	KeyPrefix string
}

func NewRedisLedger(cfg *RedisConfig, logger *zap.Logger) (*RedisLedger, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address cannot be empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	rl := &RedisLedger{
		client:    client,
		logger:    logger,
		keyPrefix: cfg.KeyPrefix,
	}

	if err := rl.initSchema(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Sugar().Infow("Redis link ledger initialized", "address", cfg.Address, "db", cfg.DB, "key_prefix", cfg.KeyPrefix)

	return rl, nil
}

func (r *RedisLedger) prefixKey(key string) string {
	return r.keyPrefix + key
}

func (r *RedisLedger) linkKey(linkId string) string {
	return r.prefixKey(keyPrefixLink + linkId)
}

func (r *RedisLedger) batchKey(batchId string) string {
	return r.prefixKey(keyPrefixBatchIndex + batchId)
}

func (r *RedisLedger) initSchema(ctx context.Context) error {
	schemaKey := r.prefixKey(keySchemaVersion)

	existingVersion, err := r.client.Get(ctx, schemaKey).Result()
	if errors.Is(err, redis.Nil) {
		return r.client.Set(ctx, schemaKey, currentSchemaVersion, 0).Err()
	}
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if existingVersion != currentSchemaVersion {
		return fmt.Errorf("unsupported schema version: %s (expected: %s)", existingVersion, currentSchemaVersion)
	}
	return nil
}

// SaveIssuedLink claims the linkId with SETNX, then indexes it
func (r *RedisLedger) SaveIssuedLink(link *persistence.IssuedLink) error {
	if err := link.Validate(); err != nil {
		return fmt.Errorf("cannot save issued link: %w", err)
	}
	id, _ := persistence.NormalizeLinkId(link.LinkId)

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return persistence.ErrLedgerClosed
	}

	data, err := persistence.MarshalIssuedLink(link)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	created, err := r.client.SetNX(ctx, r.linkKey(id), data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to save issued link: %w", err)
	}
	if !created {
		return fmt.Errorf("%w: %s", persistence.ErrLinkIdExists, id)
	}

	pipe := r.client.TxPipeline()
	pipe.SAdd(ctx, r.prefixKey(keySetLinks), id)
	if link.BatchId != "" {
		pipe.SAdd(ctx, r.batchKey(link.BatchId), id)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to index issued link: %w", err)
	}
	return nil
}

func (r *RedisLedger) LoadIssuedLink(linkId string) (*persistence.IssuedLink, error) {
	id, err := persistence.NormalizeLinkId(linkId)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, persistence.ErrLedgerClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	data, err := r.client.Get(ctx, r.linkKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load issued link: %w", err)
	}

	return persistence.UnmarshalIssuedLink(data)
}

func (r *RedisLedger) ListIssuedLinks() ([]*persistence.IssuedLink, error) {
	return r.listIndex(r.prefixKey(keySetLinks))
}

func (r *RedisLedger) ListBatch(batchId string) ([]*persistence.IssuedLink, error) {
	return r.listIndex(r.batchKey(batchId))
}

func (r *RedisLedger) listIndex(indexKey string) ([]*persistence.IssuedLink, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, persistence.ErrLedgerClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	ids, err := r.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list linkIds: %w", err)
	}
	if len(ids) == 0 {
		return []*persistence.IssuedLink{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.linkKey(id)
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch issued links: %w", err)
	}

	links := make([]*persistence.IssuedLink, 0, len(values))
	for i, val := range values {
		if val == nil {
			// indexed but deleted
			r.client.SRem(ctx, indexKey, ids[i])
			continue
		}

		data, ok := val.(string)
		if !ok {
			r.logger.Sugar().Warnw("Unexpected value type for IssuedLink", "key", keys[i])
			continue
		}

		il, err := persistence.UnmarshalIssuedLink([]byte(data))
		if err != nil {
			r.logger.Sugar().Warnw("Failed to unmarshal IssuedLink, skipping",
				"key", keys[i], "error", err)
			continue
		}
		links = append(links, il)
	}

	persistence.SortByCreatedAt(links)
	return links, nil
}

func (r *RedisLedger) DeleteIssuedLink(linkId string) error {
	id, err := persistence.NormalizeLinkId(linkId)
	if err != nil {
		return err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return persistence.ErrLedgerClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	data, err := r.client.Get(ctx, r.linkKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load issued link: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.linkKey(id))
	pipe.SRem(ctx, r.prefixKey(keySetLinks), id)
	if il, err := persistence.UnmarshalIssuedLink(data); err == nil && il.BatchId != "" {
		pipe.SRem(ctx, r.batchKey(il.BatchId), id)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete issued link: %w", err)
	}
	return nil
}

func (r *RedisLedger) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	if err := r.client.Close(); err != nil {
		return fmt.Errorf("failed to close Redis client: %w", err)
	}

	r.logger.Sugar().Info("Redis link ledger closed")
	return nil
}

func (r *RedisLedger) HealthCheck() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return persistence.ErrLedgerClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}

	_, err := r.client.Get(ctx, r.prefixKey(keySchemaVersion)).Result()
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("schema version not found - database may not be properly initialized")
	}
	if err != nil {
		return fmt.Errorf("failed to verify schema version: %w", err)
	}
	return nil
}
