package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jonwraymond/authclient/observe"
	"github.com/jonwraymond/authclient/secret"
)

// Config configures a Client.
type Config struct {
	// BaseURL is prepended to relative request paths.
	BaseURL string `yaml:"baseURL"`

	// LoginPath is the login endpoint used by Login.
	// Default: /login
	LoginPath string `yaml:"loginPath"`

	// RefreshPath is the refresh endpoint.
	// Default: /refresh
	RefreshPath string `yaml:"refreshPath"`

	// Timeout bounds a single network call.
	// Default: 30 seconds
	Timeout time.Duration `yaml:"timeout"`

	// RefreshTimeout bounds each refresh attempt. A refresh that has not
	// finished in time fails the waiting requests.
	// Default: 10 seconds
	RefreshTimeout time.Duration `yaml:"refreshTimeout"`

	// RefreshAttempts is how many times a refresh that failed on the network
	// is tried. A rejected refresh token is never retried.
	// Default: 1
	RefreshAttempts int `yaml:"refreshAttempts"`

	// RefreshBreakerFailures opens a circuit breaker on the refresh endpoint
	// after that many consecutive network failures. Zero disables it.
	RefreshBreakerFailures int `yaml:"refreshBreakerFailures"`

	// MaxConcurrentReplays bounds how many replays run at once after a
	// refresh. Zero means unbounded.
	MaxConcurrentReplays int `yaml:"maxConcurrentReplays"`

	// RequestsPerSecond limits outgoing calls. Zero means unlimited.
	RequestsPerSecond float64 `yaml:"requestsPerSecond"`

	// Burst is the rate limiter bucket size.
	// Default: 1 when RequestsPerSecond is set
	Burst int `yaml:"burst"`

	// DisableInBandAuth stops treating {"code":401} in a 2xx body as an
	// authentication failure.
	DisableInBandAuth bool `yaml:"disableInBandAuth"`

	// Headers are added to every request unless the request sets them.
	Headers map[string]string `yaml:"headers"`

	// Store selects where the credential is persisted. See OpenStore.
	Store StoreConfig `yaml:"store"`

	// Telemetry configures the observer built by callers such as the CLI.
	// The Client itself only sees the resulting Instruments.
	Telemetry observe.Config `yaml:"telemetry"`
}

// Store kinds.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
)

// StoreConfig selects and configures the credential store.
type StoreConfig struct {
	// Kind is memory, file or redis.
	// Default: memory
	Kind string `yaml:"kind"`

	// Path is the credential file for the file store.
	Path string `yaml:"path"`

	// Namespace scopes the persisted keys in redis.
	// Default: the base URL
	Namespace string `yaml:"namespace"`

	// MaxAge expires the persisted pair in redis, usually the refresh
	// token lifetime. Zero keeps it until cleared.
	MaxAge time.Duration `yaml:"maxAge"`

	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig configures the redis connection of the redis store.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	// Prefix is prepended to every key.
	// Default: authclient
	Prefix string `yaml:"prefix"`
}

// DefaultConfig returns a config with every default applied except BaseURL.
func DefaultConfig() Config {
	var cfg Config
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.LoginPath == "" {
		c.LoginPath = "/login"
	}
	if c.RefreshPath == "" {
		c.RefreshPath = "/refresh"
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.RefreshTimeout <= 0 {
		c.RefreshTimeout = 10 * time.Second
	}
	if c.RefreshAttempts <= 0 {
		c.RefreshAttempts = 1
	}
	if c.RequestsPerSecond > 0 && c.Burst <= 0 {
		c.Burst = 1
	}
	if c.Store.Kind == "" {
		c.Store.Kind = StoreMemory
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: baseURL is required", ErrInvalidConfig)
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("%w: baseURL: %w", ErrInvalidConfig, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: baseURL scheme must be http or https, got %q", ErrInvalidConfig, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: baseURL has no host", ErrInvalidConfig)
	}
	if c.MaxConcurrentReplays < 0 {
		return fmt.Errorf("%w: maxConcurrentReplays must not be negative", ErrInvalidConfig)
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("%w: requestsPerSecond must not be negative", ErrInvalidConfig)
	}
	if c.RefreshBreakerFailures < 0 {
		return fmt.Errorf("%w: refreshBreakerFailures must not be negative", ErrInvalidConfig)
	}
	return c.Store.Validate()
}

// Validate checks the store configuration.
func (s *StoreConfig) Validate() error {
	switch s.Kind {
	case "", StoreMemory:
	case StoreFile:
		if s.Path == "" {
			return fmt.Errorf("%w: store.path is required for the file store", ErrInvalidConfig)
		}
	case StoreRedis:
		if s.Redis.Addr == "" {
			return fmt.Errorf("%w: store.redis.addr is required for the redis store", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store kind %q", ErrInvalidConfig, s.Kind)
	}
	if s.MaxAge < 0 {
		return fmt.Errorf("%w: store.maxAge must not be negative", ErrInvalidConfig)
	}
	return nil
}

// LoadConfig reads a YAML config file. String values may reference the
// environment (${VAR}) or a secret (secretref:<provider>:<ref>); both are
// resolved through resolver, which may be nil to expand the environment
// only. Defaults are applied and the result is validated.
func LoadConfig(ctx context.Context, path string, resolver *secret.Resolver) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("client: read config: %w", err)
	}
	return ParseConfig(ctx, data, resolver)
}

// ParseConfig is LoadConfig for an in-memory document.
func ParseConfig(ctx context.Context, data []byte, resolver *secret.Resolver) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("client: parse config: %w", err)
	}

	if err := cfg.resolve(ctx, resolver); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) resolve(ctx context.Context, resolver *secret.Resolver) error {
	fields := []struct {
		name string
		ptr  *string
	}{
		{"baseURL", &c.BaseURL},
		{"loginPath", &c.LoginPath},
		{"refreshPath", &c.RefreshPath},
		{"store.path", &c.Store.Path},
		{"store.namespace", &c.Store.Namespace},
		{"store.redis.addr", &c.Store.Redis.Addr},
		{"store.redis.username", &c.Store.Redis.Username},
		{"store.redis.password", &c.Store.Redis.Password},
	}
	for _, f := range fields {
		if *f.ptr == "" {
			continue
		}
		v, err := resolver.ResolveValue(ctx, *f.ptr)
		if err != nil {
			return fmt.Errorf("client: resolve %s: %w", f.name, err)
		}
		*f.ptr = v
	}

	headers, err := resolver.ResolveMap(ctx, c.Headers)
	if err != nil {
		return fmt.Errorf("client: resolve headers: %w", err)
	}
	c.Headers = headers
	return nil
}
