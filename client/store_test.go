package client

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonwraymond/authclient/cache"
	"github.com/jonwraymond/authclient/credential"
	"github.com/jonwraymond/authclient/health"
)

var testPair = credential.Pair{AccessToken: "access-1", RefreshToken: "refresh-1", ExpiresIn: 60}

func roundTrip(t *testing.T, s credential.Store) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := s.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, testPair))
	got, ok, err := s.Get(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, testPair, got)

	require.NoError(t, s.Clear(ctx))
	_, ok, err = s.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOpenStore_Memory(t *testing.T) {
	h, err := OpenStore(StoreConfig{}, "")
	require.NoError(t, err)
	defer h.Close()

	assert.Equal(t, StoreMemory, h.Kind())
	roundTrip(t, h)
	assert.Equal(t, health.StatusHealthy, h.Checker().Check(context.Background()).Status)
}

func TestOpenStore_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credential.json")
	h, err := OpenStore(StoreConfig{Kind: StoreFile, Path: path}, "")
	require.NoError(t, err)
	defer h.Close()

	assert.Equal(t, StoreFile, h.Kind())
	roundTrip(t, h)

	require.NoError(t, h.Set(context.Background(), testPair))
	reopened := credential.NewFileStore(path)
	got, ok, err := reopened.Get(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, testPair, got)

	assert.Equal(t, "store", h.Checker().Name())
	assert.Equal(t, health.StatusHealthy, h.Checker().Check(context.Background()).Status)
}

func TestOpenStore_Redis(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := StoreConfig{Kind: StoreRedis, MaxAge: time.Hour, Redis: RedisConfig{Addr: mr.Addr()}}
	h, err := OpenStore(cfg, "https://api.example.com")
	require.NoError(t, err)
	defer h.Close()

	assert.Equal(t, StoreRedis, h.Kind())
	roundTrip(t, h)

	require.NoError(t, h.Set(context.Background(), testPair))
	require.Len(t, mr.Keys(), 3)
	accessKey := "authclient:" + cache.NewNamespaceKeyer("https://api.example.com").Key(credential.AccessTokenKey)
	got, err := mr.Get(accessKey)
	require.NoError(t, err)
	assert.Equal(t, testPair.AccessToken, got)
	assert.Greater(t, mr.TTL(accessKey), time.Duration(0))

	assert.Equal(t, health.StatusHealthy, h.Checker().Check(context.Background()).Status)

	mr.Close()
	res := h.Checker().Check(context.Background())
	assert.Equal(t, health.StatusUnhealthy, res.Status)
	assert.ErrorIs(t, res.Error, health.ErrCheckFailed)
}

func TestOpenStore_RedisKeysExpiringApart(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := StoreConfig{Kind: StoreRedis, MaxAge: time.Hour, Redis: RedisConfig{Addr: mr.Addr()}}
	h, err := OpenStore(cfg, "https://api.example.com")
	require.NoError(t, err)
	defer h.Close()

	require.NoError(t, h.Set(context.Background(), testPair))
	accessKey := "authclient:" + cache.NewNamespaceKeyer("https://api.example.com").Key(credential.AccessTokenKey)
	mr.SetTTL(accessKey, time.Second)
	mr.FastForward(2 * time.Second)
	require.Len(t, mr.Keys(), 2)

	_, ok, err := h.Get(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, mr.Keys(), "leftover keys are removed")
}

func TestOpenStore_RedisNamespaceOverride(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := StoreConfig{Kind: StoreRedis, Namespace: "tenant-a", Redis: RedisConfig{Addr: mr.Addr(), Prefix: "app"}}
	h, err := OpenStore(cfg, "https://api.example.com")
	require.NoError(t, err)
	defer h.Close()

	require.NoError(t, h.Set(context.Background(), testPair))
	assert.True(t, mr.Exists("app:"+cache.NewNamespaceKeyer("tenant-a").Key(credential.RefreshTokenKey)))
	assert.False(t, mr.Exists("app:"+cache.NewNamespaceKeyer("https://api.example.com").Key(credential.RefreshTokenKey)))
	assert.Equal(t, time.Duration(0), mr.TTL("app:"+cache.NewNamespaceKeyer("tenant-a").Key(credential.RefreshTokenKey)))
}

func TestOpenStore_Invalid(t *testing.T) {
	_, err := OpenStore(StoreConfig{Kind: StoreFile}, "")
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = OpenStore(StoreConfig{Kind: "etcd"}, "")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
