package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/jonwraymond/authclient/credential"
	"github.com/jonwraymond/authclient/observe"
	"github.com/jonwraymond/authclient/resilience"
)

// Client sends authenticated API calls. When a call fails authentication it
// refreshes the credential once for every concurrently failing call, then
// replays each of them. A failed refresh clears the store and ends the
// session.
//
// Contract:
//   - Concurrency: safe for concurrent use. Refresh state belongs to the
//     Client; independent Clients never share it.
//   - Errors: transport failures are *NetworkError, other non-2xx responses
//     *StatusError, a 401 on a replay *AuthError, a failed refresh
//     *RefreshError (matching ErrSessionEnded).
type Client struct {
	cfg     Config
	store   credential.Store
	augment *augmenter

	baseHTTP *http.Client
	http     *http.Client

	refresher      Refresher
	refreshTimeout *resilience.Timeout
	limiter        *resilience.RateLimiter
	replays        *resilience.Bulkhead

	inst  *observe.Instruments
	coord *coordinator

	onSessionEnded SessionEndedFunc
	sessionEnded   chan error

	now func() time.Time

	mu       sync.Mutex // guards storedAt
	storedAt time.Time
}

// New creates a client for cfg persisting the credential in store.
// Defaults are applied to cfg before it is validated.
func New(cfg Config, store credential.Store, opts ...Option) (*Client, error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, fmt.Errorf("%w: nil credential store", ErrInvalidConfig)
	}

	c := &Client{
		cfg:          cfg,
		store:        store,
		augment:      &augmenter{store: store, headers: cfg.Headers},
		baseHTTP:     http.DefaultClient,
		inst:         observe.NopInstruments(),
		coord:        newCoordinator(),
		sessionEnded: make(chan error, 1),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.http = &http.Client{
		Transport:     observe.NewTransport(c.baseHTTP.Transport, c.inst),
		Timeout:       cfg.Timeout,
		Jar:           c.baseHTTP.Jar,
		CheckRedirect: c.baseHTTP.CheckRedirect,
	}
	c.refreshTimeout = resilience.NewTimeout(resilience.TimeoutConfig{Timeout: cfg.RefreshTimeout})
	if c.refresher == nil {
		refreshURL, err := c.resolveURL(cfg.RefreshPath, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: refreshPath: %w", ErrInvalidConfig, err)
		}
		c.refresher = NewHTTPRefresher(refreshURL, c.http, c.refreshPolicy()...)
	}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = resilience.NewRateLimiter(resilience.RateLimiterConfig{
			Rate:  cfg.RequestsPerSecond,
			Burst: cfg.Burst,
		})
	}
	if cfg.MaxConcurrentReplays > 0 {
		c.replays = resilience.NewBulkhead(resilience.BulkheadConfig{
			MaxConcurrent: cfg.MaxConcurrentReplays,
		})
	}

	c.coord.queued = func(leader bool, waiters int) {
		c.inst.Metrics.AddWaiters(context.Background(), 1)
		if !leader {
			c.inst.Logger.Debug(context.Background(), "request queued behind credential refresh",
				observe.Field{Key: "waiters", Value: waiters})
		}
	}
	c.coord.drained = func(n int) {
		c.inst.Metrics.AddWaiters(context.Background(), -int64(n))
	}

	return c, nil
}

// refreshPolicy builds the retry and circuit breaker around the refresh
// call. Rejected refresh tokens are permanent and neither retried nor
// counted against the breaker.
func (c *Client) refreshPolicy() []resilience.ExecutorOption {
	var opts []resilience.ExecutorOption
	if c.cfg.RefreshAttempts > 1 {
		opts = append(opts, resilience.WithRetry(resilience.NewRetry(resilience.RetryConfig{
			MaxAttempts: c.cfg.RefreshAttempts,
			Jitter:      true,
			OnRetry: func(attempt int, err error, delay time.Duration) {
				c.inst.Logger.Warn(context.Background(), "retrying credential refresh",
					observe.Field{Key: "attempt", Value: attempt},
					observe.Field{Key: "delay_ms", Value: delay.Milliseconds()},
					observe.Field{Key: "error", Value: err})
			},
		})))
	}
	if c.cfg.RefreshBreakerFailures > 0 {
		opts = append(opts, resilience.WithCircuitBreaker(resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			MaxFailures: c.cfg.RefreshBreakerFailures,
			IsFailure: func(err error) bool {
				return err != nil && !resilience.IsPermanent(err) && !errors.Is(err, context.Canceled)
			},
			OnStateChange: func(from, to resilience.State) {
				c.inst.Logger.Warn(context.Background(), "refresh circuit breaker changed state",
					observe.Field{Key: "from", Value: from.String()},
					observe.Field{Key: "to", Value: to.String()})
			},
		})))
	}
	return opts
}

// Do sends req. On an authentication failure it joins the single refresh
// for this client and replays req once with the new credential.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	if req == nil {
		return nil, ErrNilRequest
	}

	gen := c.coord.Generation()
	resp, outcome, err := c.dispatch(ctx, req)
	if outcome != OutcomeAuthFailure {
		return resp, err
	}

	authErr := newAuthError(resp, req.retried)
	log := c.inst.Logger.WithRequest(c.meta(req))
	if req.retried {
		log.Warn(ctx, "authentication failed after credential refresh", observe.Field{Key: "error", Value: authErr})
		return nil, authErr
	}
	log.Info(ctx, "authentication failure observed",
		observe.Field{Key: "status", Value: resp.StatusCode},
		observe.Field{Key: "in_band", Value: authErr.InBand})

	if _, err := c.coord.await(ctx, gen, c.refresh); err != nil {
		return nil, err
	}
	return c.replay(ctx, req)
}

// replay re-sends a copy of req marked as retried. A second auth failure is
// terminal.
func (c *Client) replay(ctx context.Context, req *Request) (*Response, error) {
	r := req.replay()
	meta := c.meta(r)

	if c.replays != nil {
		if err := c.replays.Acquire(ctx); err != nil {
			c.inst.Metrics.RecordReplay(ctx, meta, err)
			return nil, err
		}
		defer c.replays.Release()
	}

	c.inst.Logger.WithRequest(meta).Debug(ctx, "replaying request with refreshed credential")

	resp, outcome, err := c.dispatch(ctx, r)
	if outcome == OutcomeAuthFailure {
		err = newAuthError(resp, true)
		resp = nil
		c.inst.Logger.WithRequest(meta).Warn(ctx, "authentication failed after credential refresh",
			observe.Field{Key: "error", Value: err})
	}
	c.inst.Metrics.RecordReplay(ctx, meta, err)
	return resp, err
}

// dispatch sends req and classifies the result. On OutcomeAuthFailure the
// response is returned with a nil error.
func (c *Client) dispatch(ctx context.Context, req *Request) (*Response, Outcome, error) {
	resp, err := c.send(ctx, req)
	outcome := classify(resp, err, !c.cfg.DisableInBandAuth)
	switch outcome {
	case OutcomeOK, OutcomeAuthFailure:
		return resp, outcome, nil
	default:
		if err == nil {
			err = newStatusError(resp)
		}
		return nil, outcome, err
	}
}

// send performs one network call.
func (c *Client) send(ctx context.Context, req *Request) (*Response, error) {
	target, err := c.resolveURL(req.Path, req.Query)
	if err != nil {
		return nil, err
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	out, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("client: build request: %w", err)
	}
	if err := c.augment.apply(ctx, out, req); err != nil {
		return nil, err
	}

	meta := observe.RequestMeta{
		Method:    method,
		Path:      out.URL.Path,
		RequestID: out.Header.Get(HeaderRequestID),
		Retried:   req.retried,
	}
	out = out.WithContext(observe.WithRequestMeta(ctx, meta))

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	resp, err := c.http.Do(out)
	if err != nil {
		return nil, &NetworkError{Op: method, URL: target, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &NetworkError{Op: method, URL: target, Err: err}
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

// refresh is run by the coordinator for the request that started the
// cycle. On failure it clears the store and ends the session before any
// waiter is failed.
func (c *Client) refresh(ctx context.Context) (credential.Pair, error) {
	ctx, span := c.inst.Tracer.StartRefresh(ctx)
	c.inst.Logger.Info(ctx, "credential refresh started")

	start := time.Now()
	pair, err := c.rotate(ctx)
	duration := time.Since(start)

	c.inst.Metrics.RecordRefresh(ctx, duration, err)
	c.inst.Tracer.EndSpan(span, err)

	if err != nil {
		rerr := &RefreshError{Err: err}
		c.inst.Logger.Warn(ctx, "credential refresh failed",
			observe.Field{Key: "duration_ms", Value: duration.Milliseconds()},
			observe.Field{Key: "error", Value: err})
		if clearErr := c.store.Clear(ctx); clearErr != nil {
			c.inst.Logger.Error(ctx, "failed to clear credential", observe.Field{Key: "error", Value: clearErr})
		}
		c.setStoredAt(time.Time{})
		c.endSession(ctx, rerr)
		return credential.Pair{}, rerr
	}

	c.inst.Logger.Info(ctx, "credential refresh succeeded",
		observe.Field{Key: "duration_ms", Value: duration.Milliseconds()},
		observe.Field{Key: "expires_in", Value: pair.ExpiresIn})
	return pair, nil
}

// rotate exchanges the stored refresh token and stores the result.
func (c *Client) rotate(ctx context.Context) (credential.Pair, error) {
	current, ok, err := c.store.Get(ctx)
	if err != nil {
		return credential.Pair{}, fmt.Errorf("read credential: %w", err)
	}
	if !ok || current.RefreshToken == "" {
		return credential.Pair{}, ErrNoRefreshToken
	}

	result := make(chan credential.Pair, 1)
	err = c.refreshTimeout.Execute(ctx, func(ctx context.Context) error {
		p, err := c.refresher.Refresh(ctx, current.RefreshToken)
		if err != nil {
			return err
		}
		result <- p
		return nil
	})
	if err != nil {
		return credential.Pair{}, err
	}
	pair := <-result

	if pair.RefreshToken == "" {
		pair.RefreshToken = current.RefreshToken
	}
	if err := c.store.Set(ctx, pair); err != nil {
		return credential.Pair{}, fmt.Errorf("store credential: %w", err)
	}
	c.setStoredAt(c.now())
	return pair, nil
}

func (c *Client) endSession(ctx context.Context, err error) {
	c.inst.Logger.Error(ctx, "session ended", observe.Field{Key: "error", Value: err})
	select {
	case c.sessionEnded <- err:
	default:
	}
	if c.onSessionEnded != nil {
		c.onSessionEnded(ctx, err)
	}
}

// Login posts body to the login endpoint and stores the returned pair.
// The response must be a {"code":200,"data":{...}} token envelope.
func (c *Client) Login(ctx context.Context, body any) (credential.Pair, error) {
	req, err := NewRequest(http.MethodPost, c.cfg.LoginPath, body)
	if err != nil {
		return credential.Pair{}, err
	}
	resp, err := c.send(ctx, req)
	if err != nil {
		return credential.Pair{}, err
	}

	pair, err := decodeTokens(resp.Body, ErrLoginRejected)
	if err != nil {
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return credential.Pair{}, fmt.Errorf("%w (status %d)", err, resp.StatusCode)
		}
		return credential.Pair{}, err
	}
	if err := c.store.Set(ctx, pair); err != nil {
		return credential.Pair{}, fmt.Errorf("client: store credential: %w", err)
	}
	c.setStoredAt(c.now())
	c.coord.reset()

	c.inst.Logger.Info(ctx, "logged in", observe.Field{Key: "expires_in", Value: pair.ExpiresIn})
	return pair, nil
}

// Logout clears the stored credential.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.store.Clear(ctx); err != nil {
		return fmt.Errorf("client: clear credential: %w", err)
	}
	c.setStoredAt(time.Time{})
	c.inst.Logger.Info(ctx, "logged out")
	return nil
}

// Credential returns the stored pair or ErrNoCredential.
func (c *Client) Credential(ctx context.Context) (credential.Pair, error) {
	pair, ok, err := c.store.Get(ctx)
	if err != nil {
		return credential.Pair{}, fmt.Errorf("client: read credential: %w", err)
	}
	if !ok {
		return credential.Pair{}, ErrNoCredential
	}
	return pair, nil
}

// Get sends a GET request.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodGet, Path: path, Query: query})
}

// Post sends body as JSON in a POST request.
func (c *Client) Post(ctx context.Context, path string, body any) (*Response, error) {
	return c.doJSON(ctx, http.MethodPost, path, body)
}

// Put sends body as JSON in a PUT request.
func (c *Client) Put(ctx context.Context, path string, body any) (*Response, error) {
	return c.doJSON(ctx, http.MethodPut, path, body)
}

// Delete sends a DELETE request.
func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodDelete, Path: path})
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any) (*Response, error) {
	req, err := NewRequest(method, path, body)
	if err != nil {
		return nil, err
	}
	return c.Do(ctx, req)
}

// State returns the refresh coordinator state.
func (c *Client) State() State {
	return c.coord.State()
}

// Pending returns how many requests wait on the in-flight refresh,
// including the one that started it.
func (c *Client) Pending() int {
	return c.coord.Pending()
}

// SessionEnded receives the *RefreshError of a failed refresh. The channel
// holds one event; later events are dropped until it is drained.
func (c *Client) SessionEnded() <-chan error {
	return c.sessionEnded
}

// StoredAt returns when this client last stored a credential.
func (c *Client) StoredAt() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.storedAt, !c.storedAt.IsZero()
}

func (c *Client) setStoredAt(t time.Time) {
	c.mu.Lock()
	c.storedAt = t
	c.mu.Unlock()
}

// Config returns the effective configuration.
func (c *Client) Config() Config {
	return c.cfg
}

func (c *Client) meta(req *Request) observe.RequestMeta {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	return observe.RequestMeta{Method: method, Path: req.Path, Retried: req.retried}
}

// resolveURL joins path to the base URL unless it is absolute and appends
// query.
func (c *Client) resolveURL(path string, query url.Values) (string, error) {
	u, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("client: parse path %q: %w", path, err)
	}
	if !u.IsAbs() {
		joined := strings.TrimRight(c.cfg.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
		if u, err = url.Parse(joined); err != nil {
			return "", fmt.Errorf("client: parse url %q: %w", joined, err)
		}
	}
	if len(query) > 0 {
		q := u.Query()
		for k, vs := range query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
