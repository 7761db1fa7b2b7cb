// Package credential holds the bearer credential pair and the stores that
// persist it.
//
// A Pair always carries both tokens. Every Store writes and clears the two
// tokens as one step, so a reader never observes a new access token next to
// an old refresh token.
package credential
