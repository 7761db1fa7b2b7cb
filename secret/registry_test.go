package secret

import (
	"context"
	"errors"
	"testing"
)

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()
	factory := func(map[string]any) (Provider, error) { return &stubProvider{name: "stub"}, nil }

	if err := r.Register("stub", factory); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := r.Register("stub", factory); !errors.Is(err, ErrDuplicateProvider) {
		t.Errorf("duplicate Register() error = %v, want ErrDuplicateProvider", err)
	}
	if err := r.Register(" ", factory); !errors.Is(err, ErrInvalidRegistration) {
		t.Errorf("blank Register() error = %v, want ErrInvalidRegistration", err)
	}
	if err := r.Register("x", nil); !errors.Is(err, ErrInvalidRegistration) {
		t.Errorf("nil factory error = %v, want ErrInvalidRegistration", err)
	}
	if _, err := r.Create("missing", nil); !errors.Is(err, ErrProviderNotRegistered) {
		t.Errorf("Create(missing) error = %v, want ErrProviderNotRegistered", err)
	}
}

func TestDefaultRegistry_Builtins(t *testing.T) {
	names := DefaultRegistry.List()
	want := map[string]bool{EnvProviderName: false, FileProviderName: false}
	for _, n := range names {
		if _, ok := want[n]; ok {
			want[n] = true
		}
	}
	for n, found := range want {
		if !found {
			t.Errorf("DefaultRegistry missing %q (have %v)", n, names)
		}
	}
}

func TestRegistry_NewResolver(t *testing.T) {
	t.Setenv("APP_TOKEN", "from-env")

	res, err := DefaultRegistry.NewResolver(true, map[string]map[string]any{
		EnvProviderName: {"prefix": "APP_"},
	})
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}
	defer res.Close()

	got, err := res.ResolveValue(context.Background(), "secretref:env:TOKEN")
	if err != nil {
		t.Fatalf("ResolveValue() error = %v", err)
	}
	if got != "from-env" {
		t.Errorf("ResolveValue() = %q, want from-env", got)
	}
}

func TestRegistry_NewResolverBadConfig(t *testing.T) {
	_, err := DefaultRegistry.NewResolver(true, map[string]map[string]any{
		FileProviderName: {"dir": 42},
	})
	if !errors.Is(err, ErrInvalidRegistration) {
		t.Errorf("NewResolver() error = %v, want ErrInvalidRegistration", err)
	}
}
