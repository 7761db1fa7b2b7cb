package authtest

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rawEnvelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func call(t *testing.T, s *Server, method, path, token string, body any) (int, rawEnvelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	var env rawEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec.Code, env
}

func newServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	s, err := New(opts...)
	require.NoError(t, err)
	return s
}

func TestLogin(t *testing.T) {
	s := newServer(t, WithUser("bob", "hunter2"))

	status, env := call(t, s, http.MethodPost, LoginPath, "", loginRequest{Username: "bob", Password: "hunter2"})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, http.StatusOK, env.Code)

	var tokens struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
		ExpiresIn    int    `json:"expiresIn"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &tokens))
	assert.NotEmpty(t, tokens.AccessToken)
	assert.NotEmpty(t, tokens.RefreshToken)
	assert.Equal(t, 60, tokens.ExpiresIn)

	_, env = call(t, s, http.MethodPost, LoginPath, "", loginRequest{Username: "bob", Password: "wrong"})
	assert.Equal(t, http.StatusBadRequest, env.Code)
	assert.Equal(t, "invalid username or password", env.Msg)
}

func TestAPI_AcceptsValidToken(t *testing.T) {
	s := newServer(t)
	pair := s.Issue("alice")

	status, env := call(t, s, http.MethodGet, "/api/profile", pair.AccessToken, nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, http.StatusOK, env.Code)

	var echo Echo
	require.NoError(t, json.Unmarshal(env.Data, &echo))
	assert.Equal(t, "alice", echo.Principal)
	assert.Equal(t, "/api/profile", echo.Path)
	assert.Equal(t, pair.AccessToken, echo.Token)
	assert.Equal(t, []string{pair.AccessToken}, s.AcceptedTokens())
}

func TestAPI_ExpiredToken(t *testing.T) {
	t.Run("transport 401", func(t *testing.T) {
		s := newServer(t)
		pair := s.Issue("alice")
		s.ExpireAccessTokens()

		status, env := call(t, s, http.MethodGet, "/api/profile", pair.AccessToken, nil)
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, http.StatusUnauthorized, env.Code)
		assert.Equal(t, "token expired", env.Msg)
	})

	t.Run("in-band 401", func(t *testing.T) {
		s := newServer(t, WithInBand())
		pair := s.Issue("alice")
		s.ExpireAccessTokens()

		status, env := call(t, s, http.MethodGet, "/api/profile", pair.AccessToken, nil)
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, http.StatusUnauthorized, env.Code)
	})

	t.Run("missing token", func(t *testing.T) {
		s := newServer(t)
		status, _ := call(t, s, http.MethodGet, "/api/profile", "", nil)
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, 1, s.APICalls())
	})
}

func TestAPI_RejectAll(t *testing.T) {
	s := newServer(t)
	pair := s.Issue("alice")
	s.RejectAll(true)

	status, _ := call(t, s, http.MethodGet, "/api/profile", pair.AccessToken, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Empty(t, s.AcceptedTokens())

	s.RejectAll(false)
	status, _ = call(t, s, http.MethodGet, "/api/profile", pair.AccessToken, nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestAPI_StatusRoute(t *testing.T) {
	s := newServer(t)
	pair := s.Issue("alice")

	status, env := call(t, s, http.MethodGet, "/api/status/503", pair.AccessToken, nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, http.StatusServiceUnavailable, env.Code)
}

func TestRefresh_Rotates(t *testing.T) {
	s := newServer(t)
	pair := s.Issue("alice")
	s.ExpireAccessTokens()

	_, env := call(t, s, http.MethodPost, RefreshPath, "", refreshRequest{RefreshToken: pair.RefreshToken})
	require.Equal(t, http.StatusOK, env.Code)

	var fresh struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &fresh))
	assert.NotEqual(t, pair.AccessToken, fresh.AccessToken)
	assert.Equal(t, []string{fresh.RefreshToken}, s.IssuedRefreshTokens())

	status, _ := call(t, s, http.MethodGet, "/api/profile", fresh.AccessToken, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, s.RefreshCalls())
}

func TestRefresh_RejectsReuse(t *testing.T) {
	s := newServer(t)
	pair := s.Issue("alice")

	_, env := call(t, s, http.MethodPost, RefreshPath, "", refreshRequest{RefreshToken: pair.RefreshToken})
	require.Equal(t, http.StatusOK, env.Code)

	_, env = call(t, s, http.MethodPost, RefreshPath, "", refreshRequest{RefreshToken: pair.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, env.Code)
	assert.Equal(t, "refresh token already used", env.Msg)
}

func TestRefresh_RejectsAccessTokenAndExpiry(t *testing.T) {
	s := newServer(t, WithTTL(time.Minute, 10*time.Minute))
	pair := s.Issue("alice")

	_, env := call(t, s, http.MethodPost, RefreshPath, "", refreshRequest{RefreshToken: pair.AccessToken})
	assert.Equal(t, http.StatusUnauthorized, env.Code)

	s.Advance(11 * time.Minute)
	_, env = call(t, s, http.MethodPost, RefreshPath, "", refreshRequest{RefreshToken: pair.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, env.Code)
}

func TestRefresh_ForcedFailure(t *testing.T) {
	s := newServer(t)
	pair := s.Issue("alice")
	s.FailRefresh(http.StatusForbidden, "session revoked")

	_, env := call(t, s, http.MethodPost, RefreshPath, "", refreshRequest{RefreshToken: pair.RefreshToken})
	assert.Equal(t, http.StatusForbidden, env.Code)
	assert.Equal(t, "session revoked", env.Msg)

	s.FailRefresh(0, "")
	_, env = call(t, s, http.MethodPost, RefreshPath, "", refreshRequest{RefreshToken: pair.RefreshToken})
	assert.Equal(t, http.StatusOK, env.Code)
	assert.Equal(t, 2, s.RefreshCalls())
}

func TestHoldRefresh(t *testing.T) {
	ts := NewServer(t)
	pair := ts.Issue("alice")
	ts.HoldRefresh()

	done := make(chan int, 1)
	go func() {
		body, _ := json.Marshal(refreshRequest{RefreshToken: pair.RefreshToken})
		resp, err := http.Post(ts.URL()+RefreshPath, "application/json", bytes.NewReader(body))
		if err != nil {
			done <- 0
			return
		}
		resp.Body.Close()
		done <- resp.StatusCode
	}()

	require.Eventually(t, func() bool { return ts.RefreshCalls() == 1 }, time.Second, 5*time.Millisecond)
	select {
	case <-done:
		t.Fatal("refresh answered while held")
	case <-time.After(20 * time.Millisecond):
	}

	ts.ReleaseRefresh()
	select {
	case status := <-done:
		assert.Equal(t, http.StatusOK, status)
	case <-time.After(time.Second):
		t.Fatal("refresh still held after release")
	}
}

func TestHoldAPI_JudgesTokenAtRelease(t *testing.T) {
	ts := NewServer(t)
	pair := ts.Issue("alice")
	ts.HoldAPI("/api/slow")

	done := make(chan int, 1)
	go func() {
		req, _ := http.NewRequest(http.MethodGet, ts.URL()+"/api/slow", nil)
		req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			done <- 0
			return
		}
		resp.Body.Close()
		done <- resp.StatusCode
	}()

	require.Eventually(t, func() bool { return ts.HeldRequests() == 1 }, time.Second, 5*time.Millisecond)

	// Other paths are not held.
	status, _ := call(t, ts.Server, http.MethodGet, "/api/fast", pair.AccessToken, nil)
	assert.Equal(t, http.StatusOK, status)

	ts.ExpireAccessTokens()
	ts.ReleaseAPI("/api/slow")
	select {
	case status := <-done:
		assert.Equal(t, http.StatusUnauthorized, status)
	case <-time.After(time.Second):
		t.Fatal("request still held after release")
	}
	assert.Zero(t, ts.HeldRequests())
}

func TestHealthRoutes(t *testing.T) {
	s := newServer(t)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"refreshCalls"`)

	s.FailRefresh(http.StatusUnauthorized, "revoked")
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, "DEGRADED", rec.Body.String())
}
