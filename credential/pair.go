package credential

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Sentinel errors for credential handling.
var (
	ErrIncompletePair = errors.New("credential: access and refresh token must be set together")
	ErrCorruptRecord  = errors.New("credential: stored record is corrupt")
)

// Pair is the bearer credential issued at login and rotated by refresh.
type Pair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	// ExpiresIn is the access token lifetime in seconds as reported by the server.
	ExpiresIn int `json:"expiresIn"`
}

// IsZero reports whether neither token is set.
func (p Pair) IsZero() bool {
	return p.AccessToken == "" && p.RefreshToken == ""
}

// Validate returns ErrIncompletePair unless both tokens are present.
func (p Pair) Validate() error {
	if p.AccessToken == "" || p.RefreshToken == "" {
		return ErrIncompletePair
	}
	if p.ExpiresIn < 0 {
		return fmt.Errorf("credential: negative expiresIn %d", p.ExpiresIn)
	}
	return nil
}

// Expiry returns when the access token stops being valid.
//
// The exp claim wins when the access token is a JWT; the signature is not
// checked since the client cannot verify it. Otherwise issuedAt+ExpiresIn is
// used. The zero time means the expiry is unknown.
func (p Pair) Expiry(issuedAt time.Time) time.Time {
	if exp, ok := jwtExpiry(p.AccessToken); ok {
		return exp
	}
	if p.ExpiresIn > 0 && !issuedAt.IsZero() {
		return issuedAt.Add(time.Duration(p.ExpiresIn) * time.Second)
	}
	return time.Time{}
}

func jwtExpiry(token string) (time.Time, bool) {
	if token == "" {
		return time.Time{}, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// String redacts both tokens.
func (p Pair) String() string {
	return fmt.Sprintf("credential.Pair{accessToken:%s refreshToken:%s expiresIn:%d}",
		redact(p.AccessToken), redact(p.RefreshToken), p.ExpiresIn)
}

// GoString redacts both tokens for %#v.
func (p Pair) GoString() string {
	return p.String()
}

func redact(s string) string {
	if s == "" {
		return `""`
	}
	return "[REDACTED]"
}
