// Package cache provides the Redis read-through cache for processing
// results.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"pipeline_server/core/domain"
)

// ResultCache stores ClassificationResults keyed by the processing
// identity (account_id, message_id). The processing log remains the
// source of truth; a cold or broken cache only costs a log query.
type ResultCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewResultCache(client *redis.Client, ttl time.Duration) *ResultCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &ResultCache{client: client, ttl: ttl}
}

func resultKey(accountID, messageID string) string {
	return fmt.Sprintf("pipeline:result:%s:%s", accountID, messageID)
}

func (c *ResultCache) Get(ctx context.Context, accountID, messageID string) (*domain.ClassificationResult, error) {
	raw, err := c.client.Get(ctx, resultKey(accountID, messageID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read result cache: %w", err)
	}

	var result domain.ClassificationResult
	if err := json.Unmarshal(raw, &result); err != nil {
		// A corrupt entry is a miss, not an error.
		return nil, nil
	}
	return &result, nil
}

func (c *ResultCache) Set(ctx context.Context, accountID, messageID string, result *domain.ClassificationResult) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	if err := c.client.Set(ctx, resultKey(accountID, messageID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write result cache: %w", err)
	}
	return nil
}
