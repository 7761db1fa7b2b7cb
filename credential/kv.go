package credential

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jonwraymond/authclient/cache"
)

// Persisted entry names.
const (
	AccessTokenKey  = "accessToken"
	RefreshTokenKey = "refreshToken"
	ExpiresInKey    = "expiresIn"
)

// KVStore persists the pair as separate keys in a cache.Cache, written and
// removed with one multi-key operation.
type KVStore struct {
	cache  cache.Cache
	keyer  cache.Keyer
	policy cache.Policy
}

// KVOption configures a KVStore.
type KVOption func(*KVStore)

// WithKeyer scopes the persisted keys, e.g. cache.NewNamespaceKeyer(baseURL).
func WithKeyer(k cache.Keyer) KVOption {
	return func(s *KVStore) {
		s.keyer = k
	}
}

// WithPolicy sets how long the persisted pair is retained.
func WithPolicy(p cache.Policy) KVOption {
	return func(s *KVStore) {
		s.policy = p
	}
}

// NewKVStore creates a store on top of c. Keys are unscoped and never expire
// unless configured otherwise.
func NewKVStore(c cache.Cache, opts ...KVOption) (*KVStore, error) {
	if c == nil {
		return nil, cache.ErrNilCache
	}
	s := &KVStore{
		cache:  c,
		keyer:  cache.NewNamespaceKeyer(""),
		policy: cache.DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *KVStore) keys() (access, refresh, expires string) {
	return s.keyer.Key(AccessTokenKey), s.keyer.Key(RefreshTokenKey), s.keyer.Key(ExpiresInKey)
}

// Get reads all entries in one consistent view. A record missing one of
// the tokens is removed and reported as absent.
func (s *KVStore) Get(ctx context.Context) (Pair, bool, error) {
	accessKey, refreshKey, expiresKey := s.keys()

	vals, err := s.cache.GetMany(ctx, accessKey, refreshKey, expiresKey)
	if err != nil {
		return Pair{}, false, fmt.Errorf("credential: load: %w", err)
	}

	access, hasAccess := vals[accessKey]
	refresh, hasRefresh := vals[refreshKey]
	if !hasAccess && !hasRefresh {
		return Pair{}, false, nil
	}
	if !hasAccess || !hasRefresh {
		// Keys expire one at a time; what is left cannot authenticate.
		if err := s.cache.DeleteMany(ctx, accessKey, refreshKey, expiresKey); err != nil {
			return Pair{}, false, fmt.Errorf("credential: drop partial record: %w", err)
		}
		return Pair{}, false, nil
	}

	p := Pair{
		AccessToken:  string(access),
		RefreshToken: string(refresh),
	}
	if raw, ok := vals[expiresKey]; ok && len(raw) > 0 {
		n, err := strconv.Atoi(string(raw))
		if err != nil {
			return Pair{}, false, fmt.Errorf("%w: expiresIn %q", ErrCorruptRecord, raw)
		}
		p.ExpiresIn = n
	}
	return p, true, nil
}

// Set writes all entries with one SetMany.
func (s *KVStore) Set(ctx context.Context, p Pair) error {
	if err := p.Validate(); err != nil {
		return err
	}
	accessKey, refreshKey, expiresKey := s.keys()

	err := s.cache.SetMany(ctx, map[string][]byte{
		accessKey:  []byte(p.AccessToken),
		refreshKey: []byte(p.RefreshToken),
		expiresKey: []byte(strconv.Itoa(p.ExpiresIn)),
	}, s.policy.EffectiveTTL(0))
	if err != nil {
		return fmt.Errorf("credential: save: %w", err)
	}
	return nil
}

// Clear removes all entries with one DeleteMany.
func (s *KVStore) Clear(ctx context.Context) error {
	accessKey, refreshKey, expiresKey := s.keys()
	if err := s.cache.DeleteMany(ctx, accessKey, refreshKey, expiresKey); err != nil {
		return fmt.Errorf("credential: clear: %w", err)
	}
	return nil
}

// Ensure KVStore implements Store
var _ Store = (*KVStore)(nil)
