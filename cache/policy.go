package cache

import "time"

// Policy configures how long persisted entries are retained.
type Policy struct {
	// DefaultTTL is the TTL to use when none is specified.
	// If zero, entries never expire.
	DefaultTTL time.Duration

	// MaxTTL is the maximum allowed TTL. Override TTLs are clamped to this.
	// If zero, no maximum is enforced.
	MaxTTL time.Duration
}

// DefaultPolicy returns the default retention policy: entries never expire.
func DefaultPolicy() Policy {
	return Policy{}
}

// SessionPolicy retains entries for at most maxAge, e.g. the refresh token lifetime.
func SessionPolicy(maxAge time.Duration) Policy {
	return Policy{
		DefaultTTL: maxAge,
		MaxTTL:     maxAge,
	}
}

// Expires returns true if the policy assigns a finite lifetime.
func (p Policy) Expires() bool {
	return p.DefaultTTL > 0 || p.MaxTTL > 0
}

// EffectiveTTL returns the TTL to use, applying defaults and clamping.
// Zero means no expiry.
func (p Policy) EffectiveTTL(override time.Duration) time.Duration {
	// Use default if no override (or negative override)
	ttl := override
	if ttl <= 0 {
		ttl = p.DefaultTTL
	}

	// Clamp to MaxTTL if set
	if p.MaxTTL > 0 && (ttl <= 0 || ttl > p.MaxTTL) {
		ttl = p.MaxTTL
	}

	return ttl
}
