// Package authtest runs an in-process API that speaks the login / refresh /
// envelope protocol of package client, for tests and local experiments.
//
// Tokens are HS256 JWTs minted by auth.TokenIssuer against a manual clock,
// so a test expires every access token with Advance instead of sleeping.
// Protected routes live under /api/ and answer an expired token either with
// transport status 401 or, in in-band mode, with 200 {"code":401}.
//
//	srv := authtest.NewServer(t)
//	pair := srv.Issue("alice")
//	srv.Advance(2 * time.Minute) // pair.AccessToken is now expired
package authtest
