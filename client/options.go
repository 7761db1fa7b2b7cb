package client

import (
	"context"
	"net/http"
	"time"

	"github.com/jonwraymond/authclient/observe"
)

// SessionEndedFunc is called once per failed refresh, after the store was
// cleared. err is the *RefreshError given to the waiting requests.
type SessionEndedFunc func(ctx context.Context, err error)

// Option configures a Client.
type Option func(*Client)

// WithSessionEndedHandler sets the callback invoked when a refresh fails and
// the session ends.
func WithSessionEndedHandler(fn SessionEndedFunc) Option {
	return func(c *Client) {
		c.onSessionEnded = fn
	}
}

// WithInstruments sets the tracer, metrics and logger. Nil members are
// replaced by no-ops.
func WithInstruments(inst *observe.Instruments) Option {
	return func(c *Client) {
		c.inst = inst.WithDefaults()
	}
}

// WithHTTPClient sets the client whose transport, cookie jar and redirect
// policy are used for every network call. Its transport is wrapped with
// observe.Transport; Config.Timeout still applies.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.baseHTTP = hc
		}
	}
}

// WithRefresher replaces the HTTP refresh call.
func WithRefresher(r Refresher) Option {
	return func(c *Client) {
		c.refresher = r
	}
}

// WithClock sets the time source used to track when the credential was
// stored.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}
