package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/franaraujo77/investments-planner-sub008/internal/logging"
	"github.com/franaraujo77/investments-planner-sub008/internal/models"
	"github.com/franaraujo77/investments-planner-sub008/internal/utils"
)

// RecommendationCache stores the latest recommendation per user. One key per
// user; a new generation overwrites the previous one.
type RecommendationCache struct {
	client *redis.Client
	logger logging.Logger
	ttl    time.Duration
}

// NewRecommendationCache creates a recommendation cache with the given TTL.
// The TTL matches the recommendation's ExpiresAt horizon.
func NewRecommendationCache(client *redis.Client, logger logging.Logger, ttl time.Duration) *RecommendationCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RecommendationCache{
		client: client,
		logger: logger.WithComponent("recommendation_cache"),
		ttl:    ttl,
	}
}

func recommendationKey(userID string) string {
	return fmt.Sprintf("recs:%s", userID)
}

// Set stores the cached payload for a user, replacing any previous one.
func (c *RecommendationCache) Set(ctx context.Context, userID string, payload *models.CachedRecommendation) error {
	if payload.CachedAt.IsZero() {
		payload.CachedAt = time.Now().UTC()
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return utils.WrapAppError(utils.CodeInternal, "failed to marshal cached recommendation", err)
	}
	if err := c.client.Set(ctx, recommendationKey(userID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache recommendation for user %s: %w", userID, err)
	}
	c.logger.LogCacheOperation("set", recommendationKey(userID), true, 0)
	return nil
}

// Get returns the cached payload and whether it was present.
func (c *RecommendationCache) Get(ctx context.Context, userID string) (*models.CachedRecommendation, bool, error) {
	data, err := c.client.Get(ctx, recommendationKey(userID)).Bytes()
	if err == redis.Nil {
		c.logger.LogCacheOperation("get", recommendationKey(userID), false, 0)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cached recommendation for user %s: %w", userID, err)
	}

	var payload models.CachedRecommendation
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, false, utils.WrapAppError(utils.CodeInternal, "corrupt cached recommendation payload", err)
	}
	c.logger.LogCacheOperation("get", recommendationKey(userID), true, 0)
	return &payload, true, nil
}

// Invalidate removes the cached payload for a user.
func (c *RecommendationCache) Invalidate(ctx context.Context, userID string) error {
	if err := c.client.Del(ctx, recommendationKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate recommendation cache for user %s: %w", userID, err)
	}
	return nil
}
