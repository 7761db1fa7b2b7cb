package client

import (
	"context"
	"sync"

	"github.com/jonwraymond/authclient/credential"
)

// State is the refresh coordinator state.
type State int

const (
	// StateIdle means no refresh is in flight.
	StateIdle State = iota
	// StateRefreshing means one refresh is in flight and failed requests
	// queue behind it.
	StateRefreshing
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRefreshing:
		return "refreshing"
	default:
		return "unknown"
	}
}

// pendingRefresh is a request waiting for the in-flight refresh.
type pendingRefresh struct {
	fulfil func(credential.Pair)
	fail   func(error)
}

type refreshResult struct {
	pair credential.Pair
	err  error
}

// refreshFunc performs one refresh. It runs detached from any caller's
// cancellation.
type refreshFunc func(ctx context.Context) (credential.Pair, error)

// coordinator lets at most one refresh run per client and queues every
// request that fails authentication while it does.
//
// Invariant: len(queue) > 0 implies state == StateRefreshing.
type coordinator struct {
	mu    sync.Mutex
	state State
	queue []pendingRefresh
	// generation counts settled refreshes. A request sent before the
	// latest one settled takes its outcome instead of refreshing again:
	// it replays after a success and gets lastErr after a failure.
	generation uint64
	lastErr    error

	// queued and drained are called with the lock held.
	queued  func(leader bool, waiters int)
	drained func(n int)
}

func newCoordinator() *coordinator {
	return &coordinator{}
}

func (co *coordinator) State() State {
	co.mu.Lock()
	defer co.mu.Unlock()
	return co.state
}

func (co *coordinator) Pending() int {
	co.mu.Lock()
	defer co.mu.Unlock()
	return len(co.queue)
}

func (co *coordinator) Generation() uint64 {
	co.mu.Lock()
	defer co.mu.Unlock()
	return co.generation
}

// await joins the refresh for a request sent at generation gen and blocks
// until it settles or ctx is done.
//
// In Idle the caller starts the refresh; in Refreshing it only queues. If a
// refresh already settled after gen, the caller returns that refresh's
// error at once, nil when it succeeded.
//
// The refresh runs under context.WithoutCancel(ctx), so a caller that gives
// up does not abort it for the others.
func (co *coordinator) await(ctx context.Context, gen uint64, refresh refreshFunc) (credential.Pair, error) {
	done := make(chan refreshResult, 1)

	co.mu.Lock()
	if co.state == StateIdle && co.generation != gen {
		err := co.lastErr
		co.mu.Unlock()
		return credential.Pair{}, err
	}
	leader := co.state == StateIdle
	if leader {
		co.state = StateRefreshing
	}
	co.queue = append(co.queue, pendingRefresh{
		fulfil: func(p credential.Pair) { done <- refreshResult{pair: p} },
		fail:   func(err error) { done <- refreshResult{err: err} },
	})
	if co.queued != nil {
		co.queued(leader, len(co.queue))
	}
	co.mu.Unlock()

	if leader {
		go co.run(context.WithoutCancel(ctx), refresh)
	}

	select {
	case r := <-done:
		return r.pair, r.err
	case <-ctx.Done():
		return credential.Pair{}, ctx.Err()
	}
}

// run performs the refresh and drains the queue in arrival order.
func (co *coordinator) run(ctx context.Context, refresh refreshFunc) {
	pair, err := refresh(ctx)

	co.mu.Lock()
	queue := co.queue
	co.queue = nil
	co.state = StateIdle
	co.generation++
	co.lastErr = err
	if co.drained != nil {
		co.drained(len(queue))
	}
	co.mu.Unlock()

	for _, p := range queue {
		if err != nil {
			p.fail(err)
		} else {
			p.fulfil(pair)
		}
	}
}

// reset starts a new generation with no failure recorded. Requests sent
// before it replay with whatever credential is stored now.
func (co *coordinator) reset() {
	co.mu.Lock()
	co.generation++
	co.lastErr = nil
	co.mu.Unlock()
}
