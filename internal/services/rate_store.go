package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/franaraujo77/investments-planner-sub008/internal/logging"
	"github.com/franaraujo77/investments-planner-sub008/internal/models"
)

// RateStore persists exchange rate records fetched by the rates fallback
// chain. Records are immutable: a new fetch overwrites the latest pointer
// but conversion callers only ever read what was previously stored.
type RateStore struct {
	client    *redis.Client
	logger    logging.Logger
	retention time.Duration
}

// NewRateStore creates a rate store.
//
// Parameters:
//
//	client: Redis client.
//	logger: Logger instance.
//	retention: How long rate records are kept.
//
// Returns:
//
//	*RateStore: Initialized store.
func NewRateStore(client *redis.Client, logger logging.Logger, retention time.Duration) *RateStore {
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	return &RateStore{
		client:    client,
		logger:    logger,
		retention: retention,
	}
}

// rateKey builds the storage key for a currency pair.
func rateKey(base, target string) string {
	return fmt.Sprintf("rate:%s:%s", strings.ToUpper(base), strings.ToUpper(target))
}

// Store saves the latest rate record for its currency pair.
func (s *RateStore) Store(ctx context.Context, rate models.ExchangeRate) error {
	if s.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	data, err := json.Marshal(rate)
	if err != nil {
		return fmt.Errorf("failed to marshal rate %s/%s: %w", rate.Base, rate.Target, err)
	}
	return s.client.Set(ctx, rateKey(rate.Base, rate.Target), data, s.retention).Err()
}

// Get returns the latest stored rate for base→target.
// The second return value is false when no rate is stored for the pair.
func (s *RateStore) Get(ctx context.Context, base, target string) (*models.ExchangeRate, bool, error) {
	if s.client == nil {
		return nil, false, fmt.Errorf("redis client is nil")
	}
	data, err := s.client.Get(ctx, rateKey(base, target)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var rate models.ExchangeRate
	if err := json.Unmarshal(data, &rate); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal rate %s/%s: %w", base, target, err)
	}
	return &rate, true, nil
}
