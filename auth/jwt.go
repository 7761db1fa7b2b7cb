package auth

import (
	"context"
	"errors"
	"time"
)

// JWTConfig configures the JWT authenticator.
type JWTConfig struct {
	// Issuer is the expected token issuer (iss claim).
	Issuer string

	// HeaderName is the header containing the token.
	// Default: "Authorization"
	HeaderName string

	// Now returns the current time used for expiry checks.
	// Default: time.Now
	Now func() time.Time
}

// JWTAuthenticator accepts bearer access tokens minted by a TokenIssuer.
type JWTAuthenticator struct {
	config      JWTConfig
	keyProvider KeyProvider
}

// NewJWTAuthenticator creates a new JWT authenticator.
func NewJWTAuthenticator(config JWTConfig, keyProvider KeyProvider) *JWTAuthenticator {
	if config.HeaderName == "" {
		config.HeaderName = "Authorization"
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	return &JWTAuthenticator{
		config:      config,
		keyProvider: keyProvider,
	}
}

// Name returns "jwt".
func (a *JWTAuthenticator) Name() string {
	return "jwt"
}

// Authenticate validates the bearer access token.
func (a *JWTAuthenticator) Authenticate(ctx context.Context, req *AuthRequest) (*AuthResult, error) {
	token, ok := ExtractBearerToken(req.GetHeader(a.config.HeaderName))
	if !ok {
		return AuthFailure(ErrMissingCredentials), nil
	}

	key, err := a.keyProvider.GetKey(ctx, "")
	if err != nil {
		return nil, err
	}

	claims, err := parseClaims(token, key, a.config.Issuer, a.config.Now)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) || errors.Is(err, ErrTokenMalformed) {
			return AuthFailure(err), nil
		}
		return AuthFailure(ErrInvalidCredentials), nil
	}
	if claims.Type != TokenTypeAccess {
		return AuthFailure(ErrWrongTokenType), nil
	}

	return AuthSuccess(claims.identity()), nil
}

// Ensure JWTAuthenticator implements Authenticator
var _ Authenticator = (*JWTAuthenticator)(nil)
