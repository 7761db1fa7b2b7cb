// Package resilience guards the calls an authenticated client makes.
//
// The client composes these pieces around two kinds of call:
//
//   - The credential refresh runs through an Executor built from a Timeout
//     and, optionally, a Retry for transient network errors and a
//     CircuitBreaker that stops hammering an auth server that keeps failing.
//
//   - Ordinary and replayed requests pass a RateLimiter, and replays released
//     together after a refresh wait for a Bulkhead slot.
//
// Usage:
//
//	exec := resilience.NewExecutor(
//	    resilience.WithCircuitBreaker(resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{})),
//	    resilience.WithRetry(resilience.NewRetry(resilience.RetryConfig{MaxAttempts: 2})),
//	    resilience.WithTimeout(10*time.Second),
//	)
//
//	err := exec.Execute(ctx, func(ctx context.Context) error {
//	    return refresh(ctx)
//	})
//
// Errors that must not be retried are wrapped with Permanent.
package resilience
