package client

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonwraymond/authclient/authtest"
	"github.com/jonwraymond/authclient/credential"
	"github.com/jonwraymond/authclient/health"
)

func TestCredentialChecker(t *testing.T) {
	ts := authtest.NewServer(t)
	c, err := New(Config{BaseURL: ts.URL()}, credential.NewMemoryStore(), WithClock(ts.Clock().Now))
	require.NoError(t, err)
	checker := NewCredentialChecker(c, 10*time.Second)
	ctx := context.Background()

	assert.Equal(t, "credential", checker.Name())

	res := checker.Check(ctx)
	assert.Equal(t, health.StatusUnhealthy, res.Status)
	assert.ErrorIs(t, res.Error, ErrNoCredential)

	_, err = c.Login(ctx, map[string]string{"username": "alice", "password": "secret"})
	require.NoError(t, err)

	res = checker.Check(ctx)
	assert.Equal(t, health.StatusHealthy, res.Status)
	assert.Equal(t, "idle", res.Details["state"])
	assert.NotEmpty(t, res.Details["expiresAt"])

	ts.Advance(55 * time.Second)
	res = checker.Check(ctx)
	assert.Equal(t, health.StatusDegraded, res.Status)
	assert.Contains(t, res.Message, "expires within")

	ts.Advance(10 * time.Second)
	res = checker.Check(ctx)
	assert.Equal(t, health.StatusDegraded, res.Status)
	assert.Contains(t, res.Message, "expired")
}

func TestCredentialChecker_DuringRefresh(t *testing.T) {
	ts := authtest.NewServer(t)
	c, _ := newTestClient(t, ts, Config{})
	checker := NewCredentialChecker(c, 0)
	ts.ExpireAccessTokens()
	ts.HoldRefresh()

	errs := make(chan error, 1)
	go func() {
		_, err := c.Get(context.Background(), "/api/items", nil)
		errs <- err
	}()
	require.Eventually(t, func() bool { return c.Pending() == 1 }, waitFor, time.Millisecond)

	res := checker.Check(context.Background())
	assert.Equal(t, health.StatusDegraded, res.Status)
	assert.Equal(t, "refreshing", res.Details["state"])
	assert.Equal(t, 1, res.Details["pending"])

	ts.ReleaseRefresh()
	require.NoError(t, <-errs)
}

func TestCredentialChecker_UnknownExpiry(t *testing.T) {
	store := credential.NewMemoryStore()
	require.NoError(t, store.Set(context.Background(), credential.Pair{AccessToken: "opaque", RefreshToken: "r"}))
	c, err := New(Config{BaseURL: "https://api.example.com"}, store)
	require.NoError(t, err)

	res := NewCredentialChecker(c, 0).Check(context.Background())
	assert.Equal(t, health.StatusHealthy, res.Status)
	assert.Contains(t, res.Message, "expiry unknown")
}

func TestCredentialChecker_InAggregator(t *testing.T) {
	ts := authtest.NewServer(t)
	c, _ := newTestClient(t, ts, Config{})
	h, err := OpenStore(StoreConfig{}, ts.URL())
	require.NoError(t, err)

	agg := health.NewAggregator()
	agg.Register("credential", NewCredentialChecker(c, time.Second))
	agg.Register("store", h.Checker())

	report := agg.Report(context.Background())
	require.Len(t, report.Checks, 2)
	assert.Equal(t, "credential", report.Checks[0].Name)
	assert.Equal(t, health.StatusHealthy, report.Status)
}
