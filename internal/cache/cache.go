package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const (
	// product:{product_id} -> JSON product
	KeyProduct = "product:%s"

	// identity:{external_id} -> internal user id
	KeyIdentity = "identity:%s"

	// dedup:{consumer}:{event_id} -> "1"
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLDedup = 48 * time.Hour
)

// Cache is a Redis-backed JSON cache. Concurrent misses on the same key are
// collapsed into a single load.
type Cache struct {
	rdb   redis.Cmdable
	group singleflight.Group
}

// New wraps an existing Redis client
func New(rdb redis.Cmdable) *Cache {
	return &Cache{rdb: rdb}
}

// Key formats a cache key from a pattern
func Key(pattern string, parts ...any) string {
	return fmt.Sprintf(pattern, parts...)
}

// Get decodes the JSON value at key into dest. It reports false on a miss.
func (c *Cache) Get(ctx context.Context, key string, dest any) (bool, error) {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read cache key %s: %w", key, err)
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("failed to decode cache key %s: %w", key, err)
	}
	return true, nil
}

// Set stores value as JSON with a TTL
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode cache value: %w", err)
	}

	if err := c.rdb.Set(ctx, key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write cache key %s: %w", key, err)
	}
	return nil
}

// Delete invalidates keys
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to invalidate cache: %w", err)
	}
	return nil
}

// Claim marks key as taken if nobody has done so yet. It reports whether this
// caller was first.
func (c *Cache) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := c.rdb.SetNX(ctx, key, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim %s: %w", key, err)
	}
	return ok, nil
}

// Release drops a claim so a later attempt can retry
func (c *Cache) Release(ctx context.Context, key string) error {
	return c.Delete(ctx, key)
}

// GetOrLoad is cache-aside: a hit is returned directly, a miss calls load once
// per key across concurrent callers and stores the result. Cache read and
// write failures degrade to calling load; load errors are returned as-is.
func GetOrLoad[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, load func(ctx context.Context) (T, error)) (T, error) {
	var cached T
	if hit, err := c.Get(ctx, key, &cached); err == nil && hit {
		return cached, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		var again T
		if hit, err := c.Get(ctx, key, &again); err == nil && hit {
			return again, nil
		}

		fresh, err := load(ctx)
		if err != nil {
			return fresh, err
		}

		_ = c.Set(ctx, key, fresh, ttl)
		return fresh, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}
