package client

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonwraymond/authclient/secret"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "/login", cfg.LoginPath)
	assert.Equal(t, "/refresh", cfg.RefreshPath)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 10*time.Second, cfg.RefreshTimeout)
	assert.Equal(t, 1, cfg.RefreshAttempts)
	assert.Equal(t, StoreMemory, cfg.Store.Kind)
	assert.Zero(t, cfg.Burst)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"missing base url", func(c *Config) { c.BaseURL = "" }, true},
		{"relative base url", func(c *Config) { c.BaseURL = "/api" }, true},
		{"no host", func(c *Config) { c.BaseURL = "https://" }, true},
		{"negative replays", func(c *Config) { c.MaxConcurrentReplays = -1 }, true},
		{"negative rate", func(c *Config) { c.RequestsPerSecond = -1 }, true},
		{"negative breaker", func(c *Config) { c.RefreshBreakerFailures = -1 }, true},
		{"file store without path", func(c *Config) { c.Store.Kind = StoreFile }, true},
		{"redis store without addr", func(c *Config) { c.Store.Kind = StoreRedis }, true},
		{"unknown store", func(c *Config) { c.Store.Kind = "etcd" }, true},
		{"negative max age", func(c *Config) { c.Store.MaxAge = -time.Second }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.BaseURL = "https://api.example.com"
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseConfig(t *testing.T) {
	t.Setenv("AUTHCLIENT_TEST_HOST", "api.example.com")
	t.Setenv("AUTHCLIENT_TEST_REDIS_PASSWORD", "hunter2")

	doc := []byte(`
baseURL: https://${AUTHCLIENT_TEST_HOST}/v1
refreshTimeout: 5s
refreshAttempts: 3
requestsPerSecond: 20
headers:
  X-Client: cli
  X-Tenant: ${AUTHCLIENT_TEST_HOST}
store:
  kind: redis
  maxAge: 1h
  redis:
    addr: localhost:6379
    password: secretref:env:AUTHCLIENT_TEST_REDIS_PASSWORD
telemetry:
  logging:
    level: debug
`)

	resolver := secret.NewResolver(true, secret.NewEnvProvider(""))
	cfg, err := ParseConfig(context.Background(), doc, resolver)
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.com/v1", cfg.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.RefreshTimeout)
	assert.Equal(t, 3, cfg.RefreshAttempts)
	assert.Equal(t, 1, cfg.Burst)
	assert.Equal(t, "/login", cfg.LoginPath)
	assert.Equal(t, map[string]string{"X-Client": "cli", "X-Tenant": "api.example.com"}, cfg.Headers)
	assert.Equal(t, StoreRedis, cfg.Store.Kind)
	assert.Equal(t, time.Hour, cfg.Store.MaxAge)
	assert.Equal(t, "hunter2", cfg.Store.Redis.Password)
	assert.Equal(t, "debug", cfg.Telemetry.Logging.Level)
}

func TestParseConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown field", "baseURL: https://api.example.com\nretries: 3\n"},
		{"missing base url", "timeout: 5s\n"},
		{"bad duration", "baseURL: https://api.example.com\ntimeout: soon\n"},
		{"unset variable", "baseURL: https://${AUTHCLIENT_TEST_UNSET_VAR}\n"},
		{"unknown provider", "baseURL: https://api.example.com\nheaders:\n  X-Key: secretref:vault:key\n"},
	}

	resolver := secret.NewResolver(true, secret.NewEnvProvider(""))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig(context.Background(), []byte(tt.doc), resolver)
			assert.Error(t, err)
		})
	}
}

func TestParseConfig_Empty(t *testing.T) {
	_, err := ParseConfig(context.Background(), nil, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "authclient.yaml")
	credPath := filepath.Join(dir, "credential.json")
	doc := "baseURL: http://localhost:8080\nstore:\n  kind: file\n  path: " + credPath + "\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	cfg, err := LoadConfig(context.Background(), path, nil)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", cfg.BaseURL)
	assert.Equal(t, StoreFile, cfg.Store.Kind)
	assert.Equal(t, credPath, cfg.Store.Path)

	_, err = LoadConfig(context.Background(), filepath.Join(dir, "missing.yaml"), nil)
	assert.Error(t, err)
}
