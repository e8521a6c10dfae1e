// internal/cache/invalidator.go
package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// ViewNotifications is the cached query view fed by the synchronizer.
const ViewNotifications = "notifications"

// Invalidator marks a cached query view stale for one user. Invalidation
// only: re-fetch policy belongs to whoever owns the cache.
type Invalidator interface {
	Invalidate(ctx context.Context, view string, userID string) error
}

// RedisInvalidator drops the cached view entry from Redis.
type RedisInvalidator struct {
	client *redis.Client
}

func NewRedisInvalidator(client *redis.Client) *RedisInvalidator {
	return &RedisInvalidator{client: client}
}

func (i *RedisInvalidator) Invalidate(ctx context.Context, view string, userID string) error {
	key := fmt.Sprintf("cache:%s:%s", view, userID)
	if err := i.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to invalidate %s: %w", key, err)
	}
	return nil
}

// Noop satisfies Invalidator where no query cache exists (tests, CLI use).
type Noop struct{}

func (Noop) Invalidate(ctx context.Context, view string, userID string) error { return nil }
