package auth

import "strings"

// BearerScheme is the Authorization scheme used for access tokens.
const BearerScheme = "Bearer"

// FormatBearer returns the Authorization header value for token.
func FormatBearer(token string) string {
	return BearerScheme + " " + token
}

// ExtractBearerToken returns the token from an Authorization header value.
// The scheme is matched case-insensitively.
func ExtractBearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if len(header) <= len(BearerScheme)+1 {
		return "", false
	}
	if !strings.EqualFold(header[:len(BearerScheme)], BearerScheme) || header[len(BearerScheme)] != ' ' {
		return "", false
	}
	token := strings.TrimSpace(header[len(BearerScheme)+1:])
	if token == "" {
		return "", false
	}
	return token, true
}
