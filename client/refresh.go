package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/jonwraymond/authclient/credential"
	"github.com/jonwraymond/authclient/resilience"
)

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 10 << 20

// Refresher exchanges a refresh token for a new credential pair.
//
// Contract:
//   - Concurrency: the client calls Refresh from one goroutine at a time.
//   - Errors: any error fails every request waiting on the refresh and ends
//     the session.
//   - The returned pair may omit RefreshToken; the client then keeps the
//     one it sent.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (credential.Pair, error)
}

// HTTPRefresher calls the refresh endpoint with a bare HTTP client: no
// Authorization header and no auth failure handling.
type HTTPRefresher struct {
	url    string
	client *http.Client
	exec   *resilience.Executor
}

// NewHTTPRefresher creates a refresher posting to url. The executor options
// wrap the call, for example with resilience.WithTimeout.
func NewHTTPRefresher(url string, hc *http.Client, opts ...resilience.ExecutorOption) *HTTPRefresher {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &HTTPRefresher{
		url:    url,
		client: hc,
		exec:   resilience.NewExecutor(opts...),
	}
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Refresh posts {"refreshToken": ...} and expects
// {"code":200,"data":{"accessToken","refreshToken","expiresIn"}}. Any other
// code is a rejection carrying the response msg; rejections are not retried.
func (r *HTTPRefresher) Refresh(ctx context.Context, refreshToken string) (credential.Pair, error) {
	var pair credential.Pair
	err := r.exec.Execute(ctx, func(ctx context.Context) error {
		p, err := r.call(ctx, refreshToken)
		if err != nil {
			return err
		}
		pair = p
		return nil
	})
	if err != nil {
		return credential.Pair{}, unwrapPermanent(err)
	}
	return pair, nil
}

// unwrapPermanent drops the retry marker so callers see the rejection
// itself.
func unwrapPermanent(err error) error {
	var perm *resilience.PermanentError
	if errors.As(err, &perm) {
		return perm.Err
	}
	return err
}

// CircuitBreaker returns the breaker guarding the endpoint, or nil.
func (r *HTTPRefresher) CircuitBreaker() *resilience.CircuitBreaker {
	return r.exec.CircuitBreaker()
}

func (r *HTTPRefresher) call(ctx context.Context, refreshToken string) (credential.Pair, error) {
	body, err := json.Marshal(refreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return credential.Pair{}, resilience.Permanent(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return credential.Pair{}, resilience.Permanent(fmt.Errorf("client: build refresh request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return credential.Pair{}, &NetworkError{Op: "refresh", URL: r.url, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return credential.Pair{}, &NetworkError{Op: "refresh", URL: r.url, Err: err}
	}

	if resp.StatusCode >= 500 {
		return credential.Pair{}, newStatusError(&Response{StatusCode: resp.StatusCode, Body: data})
	}

	pair, err := decodeTokens(data, ErrRefreshRejected)
	if err != nil {
		return credential.Pair{}, resilience.Permanent(err)
	}
	return pair, nil
}

// decodeTokens reads a token envelope as returned by login and refresh.
// rejected is wrapped when the envelope does not carry code 200 and a
// token.
func decodeTokens(body []byte, rejected error) (credential.Pair, error) {
	env, ok := parseEnvelope(body)
	if !ok {
		return credential.Pair{}, fmt.Errorf("%w: response is not an envelope", rejected)
	}
	if env.Code != http.StatusOK {
		msg := env.Msg
		if msg == "" {
			msg = fmt.Sprintf("code %d", env.Code)
		}
		return credential.Pair{}, fmt.Errorf("%w: %s", rejected, msg)
	}

	var pair credential.Pair
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &pair); err != nil {
			return credential.Pair{}, fmt.Errorf("%w: decode tokens: %w", rejected, err)
		}
	}
	if pair.AccessToken == "" {
		return credential.Pair{}, fmt.Errorf("%w: response has no access token", rejected)
	}
	return pair, nil
}
