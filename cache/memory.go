package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryCache is an in-memory cache implementation.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	now     func() time.Time
}

type cacheEntry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

func (e *cacheEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// NewMemoryCache creates a new in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]*cacheEntry),
		now:     time.Now,
	}
}

// Get retrieves a value from the cache. Returns (nil, false, nil) on miss or expiry.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	if err := ValidateKey(key); err != nil {
		return nil, false, err
	}

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}

	if entry.expired(c.now()) {
		// Expired - clean up lazily
		c.mu.Lock()
		if cur, ok := c.entries[key]; ok && cur == entry {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false, nil
	}

	return cloneBytes(entry.value), true, nil
}

// Set stores a value with the given TTL. A non-positive TTL never expires.
func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.SetMany(ctx, map[string][]byte{key: value}, ttl)
}

// Delete removes a value from the cache. Idempotent - no error on miss.
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	return c.DeleteMany(ctx, key)
}

// GetMany reads all keys under a single read lock.
func (c *MemoryCache) GetMany(_ context.Context, keys ...string) (map[string][]byte, error) {
	if err := validateKeys(keys); err != nil {
		return nil, err
	}

	now := c.now()
	out := make(map[string][]byte, len(keys))

	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, k := range keys {
		entry, ok := c.entries[k]
		if !ok || entry.expired(now) {
			continue
		}
		out[k] = cloneBytes(entry.value)
	}
	return out, nil
}

// SetMany writes all entries under a single write lock.
func (c *MemoryCache) SetMany(_ context.Context, entries map[string][]byte, ttl time.Duration) error {
	for k := range entries {
		if err := ValidateKey(k); err != nil {
			return err
		}
	}

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = c.now().Add(ttl)
	}

	c.mu.Lock()
	for k, v := range entries {
		c.entries[k] = &cacheEntry{
			value:     cloneBytes(v),
			expiresAt: expiresAt,
		}
	}
	c.mu.Unlock()

	return nil
}

// DeleteMany removes all keys under a single write lock.
func (c *MemoryCache) DeleteMany(_ context.Context, keys ...string) error {
	if err := validateKeys(keys); err != nil {
		return err
	}

	c.mu.Lock()
	for _, k := range keys {
		delete(c.entries, k)
	}
	c.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, including expired ones not yet collected.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Ensure MemoryCache implements Cache
var _ Cache = (*MemoryCache)(nil)
