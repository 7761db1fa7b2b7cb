// Package auth formats and verifies bearer credentials.
//
// The client side only needs FormatBearer to build the Authorization header.
// The remaining pieces (TokenIssuer, JWTAuthenticator and RequireAuth) mint
// and check HS256 access/refresh tokens so a server, or a test double, can
// speak the same protocol.
package auth
