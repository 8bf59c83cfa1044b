package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const activeCardTTL = 30 * time.Second

// ActiveCardCache is the short-TTL cache in front of the active-card count
// lookup. The TTL keeps the window of staleness small; every card mutation
// invalidates the owner's entry anyway.
type ActiveCardCache struct {
	client *redis.Client
}

// NewActiveCardCache creates an ActiveCardCache wrapping the given Redis client.
func NewActiveCardCache(client *redis.Client) *ActiveCardCache {
	return &ActiveCardCache{client: client}
}

// Get returns the cached answer for the user, if present.
func (c *ActiveCardCache) Get(ctx context.Context, userID string) (active bool, found bool, err error) {
	val, err := c.client.Get(ctx, c.key(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return false, false, nil
	}
	if err != nil {
		return false, false, fmt.Errorf("active-card cache get: %w", err)
	}
	return val == "1", true, nil
}

// Set caches the answer for the user.
func (c *ActiveCardCache) Set(ctx context.Context, userID string, active bool) error {
	val := "0"
	if active {
		val = "1"
	}
	return c.client.Set(ctx, c.key(userID), val, activeCardTTL).Err()
}

// Invalidate drops the user's cached entry.
func (c *ActiveCardCache) Invalidate(ctx context.Context, userID string) error {
	return c.client.Del(ctx, c.key(userID)).Err()
}

func (c *ActiveCardCache) key(userID string) string {
	return fmt.Sprintf("cards:active:%s", userID)
}
