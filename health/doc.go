// Package health reports whether an authenticated session is usable.
//
// A Checker reports one component: the stored credential, the backing
// store, or the API being called. An Aggregator runs a set of checkers
// with a shared deadline and folds them into a Report whose status is the
// worst of its parts.
//
//	agg := health.NewAggregator()
//	agg.Register("credential", client.NewCredentialChecker(c, store, 0))
//	agg.Register("redis", health.NewPingChecker("redis", func(ctx context.Context) error {
//	    return rdb.Ping(ctx).Err()
//	}))
//
//	report := agg.Report(ctx)
//	if report.Status == health.StatusUnhealthy {
//	    // the user has to log in again
//	}
//
// The HTTP handlers expose the same reports for a long-running process or
// for the fake API in package authtest.
package health
