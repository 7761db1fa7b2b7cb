package client

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for the client.
var (
	// ErrSessionEnded is matched by every error that ended the session: the
	// stored credential is gone and the user has to log in again.
	ErrSessionEnded = errors.New("client: session ended")

	// ErrNoRefreshToken indicates a refresh was needed but nothing was stored.
	ErrNoRefreshToken = errors.New("client: no refresh token")

	// ErrNoCredential indicates no credential is stored.
	ErrNoCredential = errors.New("client: no credential")

	// ErrRefreshRejected indicates the refresh endpoint answered with a
	// code other than 200.
	ErrRefreshRejected = errors.New("client: refresh rejected")

	// ErrLoginRejected indicates the login endpoint answered with a code
	// other than 200.
	ErrLoginRejected = errors.New("client: login rejected")

	// ErrInvalidConfig indicates the client configuration is invalid.
	ErrInvalidConfig = errors.New("client: invalid config")

	// ErrNilRequest is returned by Do for a nil request.
	ErrNilRequest = errors.New("client: nil request")
)

// NetworkError is a transport failure: no response arrived.
type NetworkError struct {
	Op  string
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("client: %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// StatusError is a non-2xx response unrelated to authentication. The body
// is returned as received.
type StatusError struct {
	StatusCode int
	// Code and Msg are copied from the JSON envelope when the body has one.
	Code int
	Msg  string
	Body []byte
}

func (e *StatusError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("client: status %d: %s", e.StatusCode, e.Msg)
	}
	return fmt.Sprintf("client: status %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// AuthError is an authentication failure on a request that was already
// replayed once with a refreshed credential. It is terminal.
type AuthError struct {
	// Retried is true for every AuthError a caller sees.
	Retried    bool
	StatusCode int
	// InBand is set when the failure came as code 401 inside a 2xx body.
	InBand bool
	Msg    string
}

func (e *AuthError) Error() string {
	kind := "status 401"
	if e.InBand {
		kind = "in-band code 401"
	}
	msg := fmt.Sprintf("client: authentication failed (%s)", kind)
	if e.Retried {
		msg += " after credential refresh"
	}
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	return msg
}

// RefreshError is returned to every request that waited on a refresh that
// failed. It matches ErrSessionEnded and unwraps to the cause.
type RefreshError struct {
	Err error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("client: credential refresh failed: %v", e.Err)
}

func (e *RefreshError) Unwrap() error { return e.Err }

// Is reports ErrSessionEnded as a match.
func (e *RefreshError) Is(target error) bool {
	return target == ErrSessionEnded
}
