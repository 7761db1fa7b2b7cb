package secret

import "errors"

// Sentinel errors for secret resolution.
var (
	ErrInvalidRegistration   = errors.New("secret: invalid provider registration")
	ErrDuplicateProvider     = errors.New("secret: provider already registered")
	ErrProviderNotRegistered = errors.New("secret: provider not registered")
	ErrInvalidRef            = errors.New("secret: invalid reference")
	ErrNotFound              = errors.New("secret: not found")
	ErrEmptySecret           = errors.New("secret: provider returned empty value")
	ErrMissingEnv            = errors.New("secret: missing required environment variables")
)
