package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is the claim set carried by issued tokens.
type Claims struct {
	SessionID string    `json:"sid"`
	Type      TokenType `json:"token_type"`
	jwt.RegisteredClaims
}

// IssuerConfig configures a TokenIssuer.
type IssuerConfig struct {
	// Key is the HS256 signing key. Required.
	Key []byte

	// Issuer is written to the iss claim and required on parse when set.
	Issuer string

	// AccessTTL is the access token lifetime.
	// Default: 15m
	AccessTTL time.Duration

	// RefreshTTL is the refresh token lifetime.
	// Default: 24h
	RefreshTTL time.Duration

	// Now returns the current time.
	// Default: time.Now
	Now func() time.Time
}

// Tokens is an issued access/refresh pair.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	// ExpiresIn is the access token lifetime in seconds.
	ExpiresIn int
}

// TokenIssuer mints and verifies HS256 access and refresh tokens.
type TokenIssuer struct {
	config IssuerConfig
}

// NewTokenIssuer creates an issuer.
func NewTokenIssuer(config IssuerConfig) (*TokenIssuer, error) {
	if len(config.Key) == 0 {
		return nil, fmt.Errorf("%w: signing key is required", ErrInvalidConfig)
	}
	if config.AccessTTL < 0 || config.RefreshTTL < 0 {
		return nil, fmt.Errorf("%w: negative ttl", ErrInvalidConfig)
	}
	if config.AccessTTL == 0 {
		config.AccessTTL = 15 * time.Minute
	}
	if config.RefreshTTL == 0 {
		config.RefreshTTL = 24 * time.Hour
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &TokenIssuer{config: config}, nil
}

// Issue starts a new session for subject.
func (i *TokenIssuer) Issue(subject string) (Tokens, error) {
	return i.issue(subject, uuid.NewString())
}

// Rotate verifies refreshToken and issues a fresh pair for the same session.
func (i *TokenIssuer) Rotate(refreshToken string) (Tokens, *Identity, error) {
	id, err := i.Parse(refreshToken, TokenTypeRefresh)
	if err != nil {
		return Tokens{}, nil, err
	}
	tokens, err := i.issue(id.Principal, id.SessionID)
	if err != nil {
		return Tokens{}, nil, err
	}
	return tokens, id, nil
}

// Parse verifies token and checks it has type want.
func (i *TokenIssuer) Parse(token string, want TokenType) (*Identity, error) {
	claims, err := parseClaims(token, i.config.Key, i.config.Issuer, i.config.Now)
	if err != nil {
		return nil, err
	}
	if claims.Type != want {
		return nil, ErrWrongTokenType
	}
	return claims.identity(), nil
}

func (i *TokenIssuer) issue(subject, sessionID string) (Tokens, error) {
	now := i.config.Now()

	access, err := i.sign(subject, sessionID, TokenTypeAccess, now, i.config.AccessTTL)
	if err != nil {
		return Tokens{}, err
	}
	refresh, err := i.sign(subject, sessionID, TokenTypeRefresh, now, i.config.RefreshTTL)
	if err != nil {
		return Tokens{}, err
	}
	return Tokens{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int(i.config.AccessTTL / time.Second),
	}, nil
}

func (i *TokenIssuer) sign(subject, sessionID string, typ TokenType, now time.Time, ttl time.Duration) (string, error) {
	claims := Claims{
		SessionID: sessionID,
		Type:      typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    i.config.Issuer,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.config.Key)
	if err != nil {
		return "", fmt.Errorf("auth: sign %s token: %w", typ, err)
	}
	return signed, nil
}

// KeyProvider retrieves signing keys for token validation.
type KeyProvider interface {
	// GetKey returns the key for the given key ID.
	GetKey(ctx context.Context, keyID string) ([]byte, error)
}

// StaticKeyProvider provides a static signing key.
type StaticKeyProvider struct {
	key []byte
}

// NewStaticKeyProvider creates a static key provider.
func NewStaticKeyProvider(key []byte) *StaticKeyProvider {
	return &StaticKeyProvider{key: key}
}

// GetKey returns the static key.
func (p *StaticKeyProvider) GetKey(_ context.Context, _ string) ([]byte, error) {
	return p.key, nil
}

// Ensure StaticKeyProvider implements KeyProvider
var _ KeyProvider = (*StaticKeyProvider)(nil)

func parseClaims(token string, key []byte, issuer string, now func() time.Time) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if now != nil {
		opts = append(opts, jwt.WithTimeFunc(now))
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return key, nil
	}, opts...)
	switch {
	case err == nil:
		return claims, nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenMalformed):
		return nil, ErrTokenMalformed
	default:
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
}

func (c *Claims) identity() *Identity {
	id := &Identity{
		Principal: c.Subject,
		SessionID: c.SessionID,
		TokenID:   c.ID,
		Type:      c.Type,
	}
	if c.ExpiresAt != nil {
		id.ExpiresAt = c.ExpiresAt.Time
	}
	if c.IssuedAt != nil {
		id.IssuedAt = c.IssuedAt.Time
	}
	return id
}
