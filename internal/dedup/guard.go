// Package dedup remembers which appointments a country processor already
// handled so redelivered events can be skipped.
package dedup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "appointments:processed:"

// Guard is a Redis-backed processed-id set with a TTL.
type Guard struct {
	client *redis.Client
	ttl    time.Duration
}

// NewGuard creates a guard. Keys expire after ttl; a non-positive ttl falls
// back to 24 hours.
func NewGuard(client *redis.Client, ttl time.Duration) *Guard {
	if client == nil {
		panic("dedup: redis client required")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Guard{client: client, ttl: ttl}
}

func key(scope, id string) string {
	return keyPrefix + scope + ":" + id
}

// Processed reports whether id was marked for scope.
func (g *Guard) Processed(ctx context.Context, scope, id string) (bool, error) {
	_, err := g.client.Get(ctx, key(scope, id)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("dedup: get %s: %w", id, err)
	}
	return true, nil
}

// MarkProcessed records id for scope.
func (g *Guard) MarkProcessed(ctx context.Context, scope, id string) error {
	at := time.Now().UTC().Format(time.RFC3339)
	if err := g.client.Set(ctx, key(scope, id), at, g.ttl).Err(); err != nil {
		return fmt.Errorf("dedup: set %s: %w", id, err)
	}
	return nil
}
