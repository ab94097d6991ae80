package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/franaraujo77/investments-planner-sub008/internal/logging"
)

// staleKeyPrefix marks the shadow copy kept past the freshness TTL for
// degraded-mode reads.
const staleKeyPrefix = "stale:"

// CacheStore is a Redis-backed key/value store with TTL. Every write also
// updates a long-retention shadow copy so exhausted provider chains can fall
// back to stale data.
type CacheStore struct {
	client         *redis.Client
	logger         logging.Logger
	staleRetention time.Duration
}

// NewCacheStore creates a cache store.
//
// Parameters:
//
//	client: Redis client.
//	logger: Logger instance.
//	staleRetention: How long stale shadow copies are kept.
//
// Returns:
//
//	*CacheStore: Initialized store.
func NewCacheStore(client *redis.Client, logger logging.Logger, staleRetention time.Duration) *CacheStore {
	if staleRetention <= 0 {
		staleRetention = 30 * 24 * time.Hour
	}
	return &CacheStore{
		client:         client,
		logger:         logger,
		staleRetention: staleRetention,
	}
}

// Set stores a JSON-encoded value under key with the given freshness TTL,
// and refreshes the stale shadow copy.
func (c *CacheStore) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if c.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value for %s: %w", key, err)
	}
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return err
	}
	if err := c.client.Set(ctx, staleKeyPrefix+key, data, c.staleRetention).Err(); err != nil {
		// The fresh write succeeded; a failed shadow write only degrades stale reads
		c.logger.WithError(err).WithFields(map[string]interface{}{"key": key}).
			Warn("Failed to write stale shadow copy")
	}
	return nil
}

// Get reads a fresh value into dest. Returns false when the key is absent
// or past its TTL.
func (c *CacheStore) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	return c.read(ctx, key, dest)
}

// GetStale reads the shadow copy into dest, ignoring the freshness TTL.
// Returns false when no copy exists at all.
func (c *CacheStore) GetStale(ctx context.Context, key string, dest interface{}) (bool, error) {
	return c.read(ctx, staleKeyPrefix+key, dest)
}

func (c *CacheStore) read(ctx context.Context, key string, dest interface{}) (bool, error) {
	if c.client == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	start := time.Now()
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		c.logger.LogCacheOperation("get", key, false, time.Since(start).Milliseconds())
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal cache value for %s: %w", key, err)
	}
	c.logger.LogCacheOperation("get", key, true, time.Since(start).Milliseconds())
	return true, nil
}

// Delete removes keys and their shadow copies.
func (c *CacheStore) Delete(ctx context.Context, keys ...string) error {
	if c.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	all := make([]string, 0, len(keys)*2)
	for _, key := range keys {
		all = append(all, key, staleKeyPrefix+key)
	}
	return c.client.Del(ctx, all...).Err()
}
