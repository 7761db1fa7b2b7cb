package client

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/jonwraymond/authclient/cache"
	"github.com/jonwraymond/authclient/credential"
	"github.com/jonwraymond/authclient/health"
)

// StoreHandle is a credential store opened from a StoreConfig together
// with the resources it holds.
type StoreHandle struct {
	credential.Store

	kind  string
	ping  health.PingFunc
	close func() error
}

// OpenStore opens the store described by cfg. namespace scopes redis keys
// when cfg.Namespace is empty; pass the base URL so several APIs can share
// one redis.
func OpenStore(cfg StoreConfig, namespace string) (*StoreHandle, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Kind {
	case StoreFile:
		fs := credential.NewFileStore(cfg.Path)
		return &StoreHandle{
			Store: fs,
			kind:  StoreFile,
			ping: func(ctx context.Context) error {
				_, _, err := fs.Get(ctx)
				return err
			},
		}, nil

	case StoreRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Username: cfg.Redis.Username,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ns := cfg.Namespace
		if ns == "" {
			ns = namespace
		}
		kv, err := credential.NewKVStore(
			cache.NewRedisCache(rdb, cfg.Redis.Prefix),
			credential.WithKeyer(cache.NewNamespaceKeyer(ns)),
			credential.WithPolicy(cache.SessionPolicy(cfg.MaxAge)),
		)
		if err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("client: open redis store: %w", err)
		}
		return &StoreHandle{
			Store: kv,
			kind:  StoreRedis,
			ping: func(ctx context.Context) error {
				return rdb.Ping(ctx).Err()
			},
			close: rdb.Close,
		}, nil

	default:
		return &StoreHandle{Store: credential.NewMemoryStore(), kind: StoreMemory}, nil
	}
}

// Kind returns the store kind.
func (h *StoreHandle) Kind() string {
	return h.kind
}

// Checker reports whether the backing store can be read.
func (h *StoreHandle) Checker() health.Checker {
	ping := h.ping
	if ping == nil {
		ping = func(context.Context) error { return nil }
	}
	return health.NewPingChecker("store", ping)
}

// Close releases the store's connections.
func (h *StoreHandle) Close() error {
	if h.close == nil {
		return nil
	}
	return h.close()
}
