package credential

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonwraymond/authclient/cache"
)

type storeFactory func(t *testing.T) Store

func storeFactories() map[string]storeFactory {
	return map[string]storeFactory{
		"memory": func(t *testing.T) Store {
			return NewMemoryStore()
		},
		"kv-memory": func(t *testing.T) Store {
			s, err := NewKVStore(cache.NewMemoryCache(), WithKeyer(cache.NewNamespaceKeyer("https://api.example.com")))
			require.NoError(t, err)
			return s
		},
		"kv-redis": func(t *testing.T) Store {
			mr := miniredis.RunT(t)
			rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { _ = rdb.Close() })
			s, err := NewKVStore(cache.NewRedisCache(rdb, "test"))
			require.NoError(t, err)
			return s
		},
		"file": func(t *testing.T) Store {
			return NewFileStore(filepath.Join(t.TempDir(), "nested", "credentials.json"))
		},
	}
}

func TestStores_Contract(t *testing.T) {
	for name, newStore := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t)

			_, ok, err := s.Get(ctx)
			require.NoError(t, err)
			assert.False(t, ok, "empty store reports a credential")

			want := Pair{AccessToken: "a1", RefreshToken: "r1", ExpiresIn: 3600}
			require.NoError(t, s.Set(ctx, want))

			got, ok, err := s.Get(ctx)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, want, got)

			rotated := Pair{AccessToken: "a2", RefreshToken: "r2", ExpiresIn: 1800}
			require.NoError(t, s.Set(ctx, rotated))
			got, _, _ = s.Get(ctx)
			assert.Equal(t, rotated, got)

			require.NoError(t, s.Clear(ctx))
			_, ok, err = s.Get(ctx)
			require.NoError(t, err)
			assert.False(t, ok, "credential remains after Clear")

			// Clear is idempotent.
			assert.NoError(t, s.Clear(ctx))
		})
	}
}

func TestStores_RejectIncompletePair(t *testing.T) {
	for name, newStore := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t)

			require.NoError(t, s.Set(ctx, Pair{AccessToken: "a", RefreshToken: "r"}))

			err := s.Set(ctx, Pair{AccessToken: "only-access"})
			assert.ErrorIs(t, err, ErrIncompletePair)

			// The previous pair is untouched.
			got, ok, err := s.Get(ctx)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "a", got.AccessToken)
			assert.Equal(t, "r", got.RefreshToken)
		})
	}
}

// TestStores_NeverHalfWritten races writers against readers and checks that
// every observed pair belongs to a single write.
func TestStores_NeverHalfWritten(t *testing.T) {
	for name, newStore := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t)

			var wg sync.WaitGroup
			for w := 0; w < 4; w++ {
				wg.Add(1)
				go func(w int) {
					defer wg.Done()
					for i := 0; i < 50; i++ {
						id := fmt.Sprintf("%d-%d", w, i)
						_ = s.Set(ctx, Pair{AccessToken: "a" + id, RefreshToken: "r" + id})
						if i%10 == 0 {
							_ = s.Clear(ctx)
						}
					}
				}(w)
			}

			done := make(chan struct{})
			go func() {
				wg.Wait()
				close(done)
			}()

			for {
				select {
				case <-done:
					return
				default:
				}
				p, ok, err := s.Get(ctx)
				require.NoError(t, err)
				if ok {
					require.Equal(t, p.AccessToken[1:], p.RefreshToken[1:], "torn pair %v", p)
				}
			}
		})
	}
}

func TestKVStore_PartialRecord(t *testing.T) {
	ctx := context.Background()
	c := cache.NewMemoryCache()
	s, err := NewKVStore(c)
	require.NoError(t, err)

	require.NoError(t, c.Set(ctx, AccessTokenKey, []byte("a"), 0))
	require.NoError(t, c.Set(ctx, ExpiresInKey, []byte("60"), 0))

	_, ok, err := s.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	left, err := c.GetMany(ctx, AccessTokenKey, RefreshTokenKey, ExpiresInKey)
	require.NoError(t, err)
	assert.Empty(t, left, "partial record is dropped")
}

func TestKVStore_CorruptExpiresIn(t *testing.T) {
	ctx := context.Background()
	c := cache.NewMemoryCache()
	s, err := NewKVStore(c)
	require.NoError(t, err)

	require.NoError(t, c.SetMany(ctx, map[string][]byte{
		AccessTokenKey:  []byte("a"),
		RefreshTokenKey: []byte("r"),
		ExpiresInKey:    []byte("soon"),
	}, 0))

	_, _, err = s.Get(ctx)
	assert.ErrorIs(t, err, ErrCorruptRecord)
}

func TestKVStore_NilCache(t *testing.T) {
	_, err := NewKVStore(nil)
	assert.ErrorIs(t, err, cache.ErrNilCache)
}

func TestKVStore_NamespacesAreIndependent(t *testing.T) {
	ctx := context.Background()
	c := cache.NewMemoryCache()

	a, _ := NewKVStore(c, WithKeyer(cache.NewNamespaceKeyer("https://a.example.com")))
	b, _ := NewKVStore(c, WithKeyer(cache.NewNamespaceKeyer("https://b.example.com")))

	require.NoError(t, a.Set(ctx, Pair{AccessToken: "a", RefreshToken: "r"}))

	_, ok, err := b.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, b.Clear(ctx))
	_, ok, _ = a.Get(ctx)
	assert.True(t, ok, "clearing one namespace removed another")
}
