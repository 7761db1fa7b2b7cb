package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache stores entries in Redis under a fixed prefix.
//
// Multi-key operations run inside MULTI/EXEC (writes) or MGET (reads). On a
// Redis Cluster every key of one call must hash to the same slot; Keyer
// namespaces use a hash tag for that reason.
type RedisCache struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisCache creates a Redis-backed cache. An empty prefix defaults to "authclient".
func NewRedisCache(client redis.UniversalClient, prefix string) *RedisCache {
	if prefix == "" {
		prefix = "authclient"
	}
	return &RedisCache{
		redis:  client,
		prefix: prefix,
	}
}

func (c *RedisCache) key(k string) string {
	return c.prefix + ":" + k
}

// Get retrieves a value. Returns (nil, false, nil) when the key is absent.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ValidateKey(key); err != nil {
		return nil, false, err
	}

	val, err := c.redis.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return val, true, nil
}

// Set stores a value. A non-positive TTL never expires.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := c.redis.Set(ctx, c.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Delete removes a value. Idempotent - no error on miss.
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.DeleteMany(ctx, key)
}

// GetMany reads all keys with a single MGET.
func (c *RedisCache) GetMany(ctx context.Context, keys ...string) (map[string][]byte, error) {
	if err := validateKeys(keys); err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return map[string][]byte{}, nil
	}

	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.key(k)
	}

	vals, err := c.redis.MGet(ctx, full...).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	out := make(map[string][]byte, len(keys))
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue // nil for missing keys
		}
		out[keys[i]] = []byte(s)
	}
	return out, nil
}

// SetMany writes all entries inside one MULTI/EXEC transaction.
func (c *RedisCache) SetMany(ctx context.Context, entries map[string][]byte, ttl time.Duration) error {
	for k := range entries {
		if err := ValidateKey(k); err != nil {
			return err
		}
	}
	if ttl < 0 {
		ttl = 0
	}

	_, err := c.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for k, v := range entries {
			pipe.Set(ctx, c.key(k), v, ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// DeleteMany removes all keys with a single DEL.
func (c *RedisCache) DeleteMany(ctx context.Context, keys ...string) error {
	if err := validateKeys(keys); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}

	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.key(k)
	}
	if err := c.redis.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Ensure RedisCache implements Cache
var _ Cache = (*RedisCache)(nil)
