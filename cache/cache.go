package cache

import (
	"context"
	"errors"
	"strings"
	"time"
)

// MaxKeyLength is the maximum allowed length for a cache key.
const MaxKeyLength = 512

// Sentinel errors for cache operations.
var (
	ErrNilCache    = errors.New("cache: cache is nil")
	ErrInvalidKey  = errors.New("cache: key is invalid")
	ErrKeyTooLong  = errors.New("cache: key exceeds max length")
	ErrUnavailable = errors.New("cache: backend unavailable")
)

// Cache is the interface for persisting small values such as credentials.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Atomicity: SetMany and DeleteMany apply all keys or none; GetMany reads
//   all keys from one consistent view.
// - TTL: ttl <= 0 stores the value without expiry.
// - Errors: a miss is not an error; Get returns (nil, false, nil).
type Cache interface {
	// Get retrieves a value. Returns (nil, false, nil) on miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value with the given TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value. Idempotent - no error on miss.
	Delete(ctx context.Context, key string) error

	// GetMany returns the present keys; missing keys are absent from the map.
	GetMany(ctx context.Context, keys ...string) (map[string][]byte, error)

	// SetMany stores every entry with the same TTL in one atomic write.
	SetMany(ctx context.Context, entries map[string][]byte, ttl time.Duration) error

	// DeleteMany removes every key in one atomic write.
	DeleteMany(ctx context.Context, keys ...string) error
}

// ValidateKey checks if a key is valid for storage.
func ValidateKey(key string) error {
	if key == "" || strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	// Reject keys with newlines or carriage returns
	if strings.ContainsAny(key, "\n\r") {
		return ErrInvalidKey
	}
	return nil
}

func validateKeys(keys []string) error {
	for _, k := range keys {
		if err := ValidateKey(k); err != nil {
			return err
		}
	}
	return nil
}
