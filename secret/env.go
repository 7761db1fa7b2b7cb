package secret

import (
	"context"
	"fmt"
	"os"
)

// EnvProviderName is the provider name used in "secretref:env:<VAR>".
const EnvProviderName = "env"

// EnvProvider resolves references from environment variables.
type EnvProvider struct {
	prefix string
	lookup func(string) (string, bool)
}

// NewEnvProvider creates a provider that reads prefix+ref from the environment.
func NewEnvProvider(prefix string) *EnvProvider {
	return &EnvProvider{prefix: prefix, lookup: os.LookupEnv}
}

// NewEnvProviderFromConfig is the ProviderFactory for EnvProvider.
// Recognised keys: "prefix".
func NewEnvProviderFromConfig(cfg map[string]any) (Provider, error) {
	prefix, err := stringOption(cfg, "prefix")
	if err != nil {
		return nil, err
	}
	return NewEnvProvider(prefix), nil
}

// Name returns "env".
func (p *EnvProvider) Name() string { return EnvProviderName }

// Resolve returns the variable's value. An unset variable is ErrNotFound.
func (p *EnvProvider) Resolve(_ context.Context, ref string) (string, error) {
	key := p.prefix + ref
	v, ok := p.lookup(key)
	if !ok {
		return "", fmt.Errorf("%w: environment variable %s", ErrNotFound, key)
	}
	return v, nil
}

// Close is a no-op.
func (p *EnvProvider) Close() error { return nil }

func stringOption(cfg map[string]any, key string) (string, error) {
	raw, ok := cfg[key]
	if !ok || raw == nil {
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%w: option %q must be a string, got %T", ErrInvalidRegistration, key, raw)
	}
	return s, nil
}

// Ensure EnvProvider implements Provider
var _ Provider = (*EnvProvider)(nil)
