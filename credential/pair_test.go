package credential

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPair_Validate(t *testing.T) {
	tests := []struct {
		name    string
		pair    Pair
		wantErr bool
	}{
		{"complete", Pair{AccessToken: "a", RefreshToken: "r", ExpiresIn: 60}, false},
		{"missing refresh", Pair{AccessToken: "a"}, true},
		{"missing access", Pair{RefreshToken: "r"}, true},
		{"empty", Pair{}, true},
		{"negative expiry", Pair{AccessToken: "a", RefreshToken: "r", ExpiresIn: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.pair.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	assert.ErrorIs(t, Pair{AccessToken: "a"}.Validate(), ErrIncompletePair)
}

func TestPair_ExpiryFromJWT(t *testing.T) {
	exp := time.Now().Add(15 * time.Minute).Truncate(time.Second)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("test-key"))
	require.NoError(t, err)

	p := Pair{AccessToken: token, RefreshToken: "r", ExpiresIn: 3600}

	// The exp claim wins over issuedAt+ExpiresIn.
	got := p.Expiry(time.Now())
	assert.True(t, got.Equal(exp), "Expiry() = %v, want %v", got, exp)
}

func TestPair_ExpiryFromExpiresIn(t *testing.T) {
	issued := time.Unix(1_700_000_000, 0)
	p := Pair{AccessToken: "opaque", RefreshToken: "r", ExpiresIn: 60}

	assert.Equal(t, issued.Add(time.Minute), p.Expiry(issued))
	assert.True(t, p.Expiry(time.Time{}).IsZero())
	assert.True(t, Pair{AccessToken: "opaque", RefreshToken: "r"}.Expiry(issued).IsZero())
}

func TestPair_StringRedacts(t *testing.T) {
	p := Pair{AccessToken: "secret-access", RefreshToken: "secret-refresh", ExpiresIn: 30}

	for _, s := range []string{p.String(), fmt.Sprintf("%v", p), fmt.Sprintf("%#v", p)} {
		assert.NotContains(t, s, "secret-access")
		assert.NotContains(t, s, "secret-refresh")
		assert.True(t, strings.Contains(s, "[REDACTED]"), "got %q", s)
	}
}
