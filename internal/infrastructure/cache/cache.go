// Package cache is a small JSON read-through cache on Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

type Cache struct {
	Rdb *redis.Client
}

// GetJSON loads key into dst. It reports false on a miss.
func (c *Cache) GetJSON(ctx context.Context, key string, dst interface{}) (bool, error) {
	b, err := c.Rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(b, dst); err != nil {
		// A value we cannot decode is treated as a miss and overwritten later.
		return false, nil
	}
	return true, nil
}

func (c *Cache) SetJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Rdb.Set(ctx, key, b, ttl).Err()
}

func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.Rdb.Del(ctx, keys...).Err()
}

// Remember returns the cached value for key or computes, stores and returns it.
func Remember[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, compute func(context.Context) (T, error)) (T, error) {
	var out T
	if c != nil && c.Rdb != nil {
		if hit, err := c.GetJSON(ctx, key, &out); err == nil && hit {
			return out, nil
		}
	}
	out, err := compute(ctx)
	if err != nil {
		return out, err
	}
	if c != nil && c.Rdb != nil {
		_ = c.SetJSON(ctx, key, out, ttl)
	}
	return out, nil
}
