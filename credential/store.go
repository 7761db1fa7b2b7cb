package credential

import "context"

// Store persists the current credential pair.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Atomicity: Set and Clear change both tokens together or not at all.
// - Consistency: Get observes the most recent completed Set or Clear.
// - Errors: Get returns (Pair{}, false, nil) when nothing is stored. A
//   record holding only one token is either dropped and reported as absent
//   (KVStore, whose keys expire independently) or yields ErrIncompletePair.
type Store interface {
	// Get returns the stored pair, if any.
	Get(ctx context.Context) (Pair, bool, error)

	// Set replaces the stored pair. Incomplete pairs are rejected.
	Set(ctx context.Context, p Pair) error

	// Clear removes the stored pair. Idempotent.
	Clear(ctx context.Context) error
}
