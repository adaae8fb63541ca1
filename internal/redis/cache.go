package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mailcast/mailcast/internal/metrics"
)

// Cache is a cache-aside layer keyed by entity kind. Every entry carries an
// explicit TTL and writers invalidate the kinds they touch, so a stale entry
// can outlive the data it shadows by at most one TTL.
type Cache struct {
	client *Client
	logger *zap.Logger
	ttl    time.Duration
}

// NewCache creates a cache with a default TTL for entries.
func NewCache(client *Client, logger *zap.Logger, ttl time.Duration) *Cache {
	return &Cache{
		client: client,
		logger: logger,
		ttl:    ttl,
	}
}

func cacheKey(kind string) string {
	return "cache:" + kind
}

// Invalidate drops the cached entries for the given entity kinds.
func (c *Cache) Invalidate(ctx context.Context, kinds ...string) error {
	keys := make([]string, len(kinds))
	for i, kind := range kinds {
		keys[i] = cacheKey(kind)
	}
	if err := c.client.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	return nil
}

// GetOrCompute returns the cached value for an entity kind, computing and
// storing it on a miss. A Redis failure falls through to compute: the cache
// never makes data unavailable.
func GetOrCompute[T any](ctx context.Context, c *Cache, kind string, compute func(context.Context) (T, error)) (T, error) {
	var zero T
	key := cacheKey(kind)

	val, err := c.client.rdb.Get(ctx, key).Result()
	if err == nil {
		var cached T
		if err := json.Unmarshal([]byte(val), &cached); err == nil {
			metrics.RecordCacheResult(true)
			return cached, nil
		}
		c.logger.Warn("discarding undecodable cache entry", zap.String("kind", kind))
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Warn("cache read failed, computing directly",
			zap.String("kind", kind),
			zap.Error(err),
		)
	}

	metrics.RecordCacheResult(false)

	computed, err := compute(ctx)
	if err != nil {
		return zero, err
	}

	data, err := json.Marshal(computed)
	if err != nil {
		return zero, fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := c.client.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("cache write failed",
			zap.String("kind", kind),
			zap.Error(err),
		)
	}

	return computed, nil
}
