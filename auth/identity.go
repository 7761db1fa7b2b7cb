package auth

import "time"

// TokenType distinguishes access tokens from refresh tokens.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Identity represents the principal behind a verified token.
type Identity struct {
	// Principal is the subject (sub claim).
	Principal string

	// SessionID ties an access token to the refresh token it was issued with.
	SessionID string

	// TokenID is the unique token id (jti claim).
	TokenID string

	// Type is the token type the identity was read from.
	Type TokenType

	// ExpiresAt is when the token expires.
	ExpiresAt time.Time

	// IssuedAt is when the token was issued.
	IssuedAt time.Time
}

// IsExpired reports whether the identity has expired at now.
func (id *Identity) IsExpired(now time.Time) bool {
	if id.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(id.ExpiresAt)
}
