package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/authclient/client"
	"github.com/jonwraymond/authclient/health"
	"github.com/jonwraymond/authclient/observe"
	"github.com/jonwraymond/authclient/secret"
)

const shutdownTimeout = 5 * time.Second

// session is everything a command needs to talk to the API.
type session struct {
	cfg      *client.Config
	store    *client.StoreHandle
	client   *client.Client
	obs      observe.Observer
	resolver *secret.Resolver
}

// openSession loads the configuration and builds the client.
func openSession(ctx context.Context, opts *rootOptions, logs io.Writer) (*session, error) {
	resolver, err := secret.DefaultRegistry.NewResolver(false, nil)
	if err != nil {
		return nil, err
	}

	cfg, err := loadConfig(ctx, opts, resolver)
	if err != nil {
		return nil, errors.Join(err, resolver.Close())
	}

	if opts.logLevel != "" {
		cfg.Telemetry.Logging.Enabled = true
		cfg.Telemetry.Logging.Level = opts.logLevel
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "authclient"
	}
	cfg.Telemetry.Logging.Writer = logs

	obs, err := observe.NewObserver(ctx, cfg.Telemetry)
	if err != nil {
		return nil, errors.Join(err, resolver.Close())
	}
	inst, err := observe.NewInstruments(obs)
	if err != nil {
		return nil, errors.Join(err, obs.Shutdown(ctx), resolver.Close())
	}

	store, err := client.OpenStore(cfg.Store, cfg.BaseURL)
	if err != nil {
		return nil, errors.Join(err, obs.Shutdown(ctx), resolver.Close())
	}

	c, err := client.New(*cfg, store,
		client.WithInstruments(inst),
		client.WithSessionEndedHandler(func(ctx context.Context, err error) {
			inst.Logger.Warn(ctx, sessionExpiredMessage, observe.Field{Key: "error", Value: err})
		}),
	)
	if err != nil {
		return nil, errors.Join(err, store.Close(), obs.Shutdown(ctx), resolver.Close())
	}

	return &session{cfg: cfg, store: store, client: c, obs: obs, resolver: resolver}, nil
}

// loadConfig reads --config, or builds a file-store config from the flags
// when none is given.
func loadConfig(ctx context.Context, opts *rootOptions, resolver *secret.Resolver) (*client.Config, error) {
	if opts.configPath != "" {
		cfg, err := client.LoadConfig(ctx, opts.configPath, resolver)
		if err != nil {
			return nil, err
		}
		if opts.baseURL != "" {
			cfg.BaseURL = opts.baseURL
			if err := cfg.Validate(); err != nil {
				return nil, err
			}
		}
		return cfg, nil
	}

	if opts.baseURL == "" {
		return nil, fmt.Errorf("%w: pass --config or --base-url", client.ErrInvalidConfig)
	}
	path := opts.storePath
	if path == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("locate credential file: %w", err)
		}
		path = filepath.Join(dir, "authclient", "credential.json")
	}

	cfg := client.DefaultConfig()
	cfg.BaseURL = opts.baseURL
	cfg.Store = client.StoreConfig{Kind: client.StoreFile, Path: path}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// health runs the credential and store checks.
func (s *session) checkHealth(ctx context.Context) health.Report {
	agg := health.NewAggregator(health.AggregatorConfig{Timeout: s.cfg.Timeout})
	agg.Register("credential", client.NewCredentialChecker(s.client, client.DefaultExpiryMargin))
	agg.Register("store", s.store.Checker())
	return agg.Report(ctx)
}

// Close releases the store and flushes telemetry.
func (s *session) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return errors.Join(s.store.Close(), s.obs.Shutdown(ctx), s.resolver.Close())
}

// withSession opens a session for the duration of fn.
func withSession(cmd *cobra.Command, opts *rootOptions, fn func(context.Context, *session) error) (err error) {
	ctx := cmd.Context()
	sess, err := openSession(ctx, opts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(ctx, sess)
}
