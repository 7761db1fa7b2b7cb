package auth

import "errors"

// Sentinel errors for bearer credentials.
var (
	ErrMissingCredentials = errors.New("auth: missing credentials")
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrTokenExpired       = errors.New("auth: token expired")
	ErrTokenMalformed     = errors.New("auth: token malformed")
	ErrWrongTokenType     = errors.New("auth: wrong token type")
	ErrInvalidConfig      = errors.New("auth: invalid config")
)
