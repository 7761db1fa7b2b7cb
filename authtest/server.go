package authtest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonwraymond/authclient/auth"
	"github.com/jonwraymond/authclient/credential"
	"github.com/jonwraymond/authclient/health"
)

// Routes served by Server.
const (
	LoginPath   = "/login"
	RefreshPath = "/refresh"
	APIPrefix   = "/api/"
)

// Config configures a Server.
type Config struct {
	// Users maps usernames to passwords accepted by /login.
	// Default: {"alice": "secret"}
	Users map[string]string

	// AccessTTL is the access token lifetime.
	// Default: 1 minute
	AccessTTL time.Duration

	// RefreshTTL is the refresh token lifetime.
	// Default: 1 hour
	RefreshTTL time.Duration

	// InBand answers auth failures on /api/ with 200 {"code":401} instead of
	// status 401.
	InBand bool

	// Start is the initial clock reading.
	// Default: time.Now()
	Start time.Time
}

// Option configures a Server.
type Option func(*Config)

// WithInBand makes /api/ report auth failures in the body.
func WithInBand() Option {
	return func(c *Config) { c.InBand = true }
}

// WithTTL sets the token lifetimes.
func WithTTL(access, refresh time.Duration) Option {
	return func(c *Config) {
		c.AccessTTL = access
		c.RefreshTTL = refresh
	}
}

// WithUser adds a login.
func WithUser(username, password string) Option {
	return func(c *Config) {
		if c.Users == nil {
			c.Users = make(map[string]string)
		}
		c.Users[username] = password
	}
}

// Envelope is the response body of every route.
type Envelope struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data any    `json:"data,omitempty"`
}

// Echo is the data of a successful /api/ call.
type Echo struct {
	Principal string `json:"principal"`
	SessionID string `json:"sessionId"`
	Method    string `json:"method"`
	Path      string `json:"path"`
	Token     string `json:"token"`
	RequestID string `json:"requestId,omitempty"`
	Body      string `json:"body,omitempty"`
}

// Server is the fake API.
//
// Contract:
//   - Concurrency: safe for concurrent use, including the control methods
//     while requests are in flight.
type Server struct {
	cfg    Config
	clock  *Clock
	issuer *auth.TokenIssuer
	authn  *auth.JWTAuthenticator
	health *health.Aggregator
	mux    *http.ServeMux

	mu            sync.Mutex
	inBand        bool
	rejectAll     bool
	refreshCalls  int
	refreshDelay  time.Duration
	refreshGate   chan struct{}
	refreshFail   *Envelope
	apiGates      map[string]chan struct{}
	held          int
	usedRefresh   map[string]bool
	apiCalls      int
	seenTokens    []string
	refreshTokens []string
}

// New creates a server that is not listening yet; use it as an
// http.Handler or call Start.
func New(opts ...Option) (*Server, error) {
	cfg := Config{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if len(cfg.Users) == 0 {
		cfg.Users = map[string]string{"alice": "secret"}
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = time.Hour
	}
	if cfg.Start.IsZero() {
		cfg.Start = time.Now()
	}

	clock := NewClock(cfg.Start)
	key := []byte("authtest-signing-key")
	issuer, err := auth.NewTokenIssuer(auth.IssuerConfig{
		Key:        key,
		Issuer:     "authtest",
		AccessTTL:  cfg.AccessTTL,
		RefreshTTL: cfg.RefreshTTL,
		Now:        clock.Now,
	})
	if err != nil {
		return nil, fmt.Errorf("authtest: %w", err)
	}

	s := &Server{
		cfg:         cfg,
		clock:       clock,
		issuer:      issuer,
		authn:       auth.NewJWTAuthenticator(auth.JWTConfig{Issuer: "authtest", Now: clock.Now}, auth.NewStaticKeyProvider(key)),
		health:      health.NewAggregator(),
		mux:         http.NewServeMux(),
		inBand:      cfg.InBand,
		usedRefresh: make(map[string]bool),
		apiGates:    make(map[string]chan struct{}),
	}
	s.health.Register("refresh", health.NewCheckerFunc("refresh", s.checkRefresh))

	s.mux.HandleFunc("POST "+LoginPath, s.handleLogin)
	s.mux.HandleFunc("POST "+RefreshPath, s.handleRefresh)
	s.mux.Handle(APIPrefix, auth.RequireAuth(s.authn, s.deny)(http.HandlerFunc(s.handleAPI)))
	health.RegisterHandlers(s.mux, s.health)
	return s, nil
}

// NewServer starts a server for the duration of the test.
func NewServer(tb testing.TB, opts ...Option) *TestServer {
	tb.Helper()
	s, err := New(opts...)
	if err != nil {
		tb.Fatalf("authtest: %v", err)
	}
	ts := &TestServer{Server: s, HTTP: httptest.NewServer(s)}
	tb.Cleanup(ts.Close)
	return ts
}

// TestServer is a Server listening on a loopback address.
type TestServer struct {
	*Server
	HTTP *httptest.Server
}

// URL returns the base URL of the server.
func (ts *TestServer) URL() string {
	return ts.HTTP.URL
}

// Close shuts the listener down and releases held requests.
func (ts *TestServer) Close() {
	ts.ReleaseRefresh()
	ts.releaseAllAPI()
	ts.HTTP.Close()
}

// ServeHTTP implements http.Handler. A request for a held path waits
// before its token is checked, so it is judged by the clock at release.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	gate := s.apiGates[r.URL.Path]
	if gate != nil {
		s.held++
	}
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
		}
		s.mu.Lock()
		s.held--
		s.mu.Unlock()
	}
	s.mux.ServeHTTP(w, r)
}

// Clock returns the server clock.
func (s *Server) Clock() *Clock {
	return s.clock
}

// Advance moves the server clock; tokens older than their TTL expire.
func (s *Server) Advance(d time.Duration) {
	s.clock.Advance(d)
}

// ExpireAccessTokens advances the clock past the access token lifetime.
func (s *Server) ExpireAccessTokens() {
	s.clock.Advance(s.cfg.AccessTTL + time.Second)
}

// Issue starts a session for username without going through /login.
func (s *Server) Issue(username string) credential.Pair {
	tokens, err := s.issuer.Issue(username)
	if err != nil {
		panic(fmt.Sprintf("authtest: issue: %v", err))
	}
	return toPair(tokens)
}

// SetInBand switches how /api/ reports auth failures.
func (s *Server) SetInBand(inBand bool) {
	s.mu.Lock()
	s.inBand = inBand
	s.mu.Unlock()
}

// RejectAll makes /api/ refuse every token, valid or not.
func (s *Server) RejectAll(reject bool) {
	s.mu.Lock()
	s.rejectAll = reject
	s.mu.Unlock()
}

// FailRefresh makes /refresh answer 200 {"code":code,"msg":msg}. A zero code
// restores normal behaviour.
func (s *Server) FailRefresh(code int, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if code == 0 {
		s.refreshFail = nil
		return
	}
	s.refreshFail = &Envelope{Code: code, Msg: msg}
}

// SetRefreshDelay delays every refresh response by d.
func (s *Server) SetRefreshDelay(d time.Duration) {
	s.mu.Lock()
	s.refreshDelay = d
	s.mu.Unlock()
}

// HoldRefresh makes /refresh block until ReleaseRefresh is called, so a
// test can pile requests up behind an in-flight refresh.
func (s *Server) HoldRefresh() {
	s.mu.Lock()
	if s.refreshGate == nil {
		s.refreshGate = make(chan struct{})
	}
	s.mu.Unlock()
}

// ReleaseRefresh unblocks refreshes held by HoldRefresh.
func (s *Server) ReleaseRefresh() {
	s.mu.Lock()
	if s.refreshGate != nil {
		close(s.refreshGate)
		s.refreshGate = nil
	}
	s.mu.Unlock()
}

// HoldAPI makes requests for path block until ReleaseAPI(path), so a test
// can keep a request in flight while a refresh runs.
func (s *Server) HoldAPI(path string) {
	s.mu.Lock()
	if s.apiGates[path] == nil {
		s.apiGates[path] = make(chan struct{})
	}
	s.mu.Unlock()
}

// ReleaseAPI unblocks requests held for path.
func (s *Server) ReleaseAPI(path string) {
	s.mu.Lock()
	if gate := s.apiGates[path]; gate != nil {
		close(gate)
		delete(s.apiGates, path)
	}
	s.mu.Unlock()
}

func (s *Server) releaseAllAPI() {
	s.mu.Lock()
	for path, gate := range s.apiGates {
		close(gate)
		delete(s.apiGates, path)
	}
	s.mu.Unlock()
}

// HeldRequests returns how many requests are blocked by HoldAPI.
func (s *Server) HeldRequests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.held
}

// RefreshCalls returns how many times /refresh was called.
func (s *Server) RefreshCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshCalls
}

// APICalls returns how many requests reached /api/, accepted or not.
func (s *Server) APICalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apiCalls
}

// AcceptedTokens returns the access tokens of accepted /api/ calls in
// arrival order.
func (s *Server) AcceptedTokens() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.seenTokens...)
}

// IssuedRefreshTokens returns the refresh tokens handed out by /refresh.
func (s *Server) IssuedRefreshTokens() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.refreshTokens...)
}

// Health returns the server's health aggregator.
func (s *Server) Health() *health.Aggregator {
	return s.health
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeEnvelope(w, http.StatusBadRequest, Envelope{Code: http.StatusBadRequest, Msg: "malformed login request"})
		return
	}
	want, ok := s.cfg.Users[req.Username]
	if !ok || want != req.Password {
		writeEnvelope(w, http.StatusOK, Envelope{Code: http.StatusBadRequest, Msg: "invalid username or password"})
		return
	}
	tokens, err := s.issuer.Issue(req.Username)
	if err != nil {
		writeEnvelope(w, http.StatusInternalServerError, Envelope{Code: http.StatusInternalServerError, Msg: err.Error()})
		return
	}
	writeEnvelope(w, http.StatusOK, Envelope{Code: http.StatusOK, Msg: "ok", Data: toPair(tokens)})
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.refreshCalls++
	delay := s.refreshDelay
	gate := s.refreshGate
	fail := s.refreshFail
	s.mu.Unlock()

	if err := wait(r.Context(), delay, gate); err != nil {
		return
	}
	if fail != nil {
		writeEnvelope(w, http.StatusOK, *fail)
		return
	}

	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		writeEnvelope(w, http.StatusOK, Envelope{Code: http.StatusBadRequest, Msg: "refreshToken is required"})
		return
	}

	id, err := s.issuer.Parse(req.RefreshToken, auth.TokenTypeRefresh)
	if err != nil {
		writeEnvelope(w, http.StatusOK, Envelope{Code: http.StatusUnauthorized, Msg: "invalid refresh token: " + err.Error()})
		return
	}

	s.mu.Lock()
	reused := s.usedRefresh[id.TokenID]
	s.usedRefresh[id.TokenID] = true
	s.mu.Unlock()
	if reused {
		writeEnvelope(w, http.StatusOK, Envelope{Code: http.StatusUnauthorized, Msg: "refresh token already used"})
		return
	}

	tokens, _, err := s.issuer.Rotate(req.RefreshToken)
	if err != nil {
		writeEnvelope(w, http.StatusOK, Envelope{Code: http.StatusUnauthorized, Msg: "invalid refresh token: " + err.Error()})
		return
	}

	s.mu.Lock()
	s.refreshTokens = append(s.refreshTokens, tokens.RefreshToken)
	s.mu.Unlock()
	writeEnvelope(w, http.StatusOK, Envelope{Code: http.StatusOK, Msg: "ok", Data: toPair(tokens)})
}

// deny answers a rejected /api/ call.
func (s *Server) deny(w http.ResponseWriter, _ *http.Request, err error) {
	s.mu.Lock()
	s.apiCalls++
	inBand := s.inBand
	s.mu.Unlock()

	msg := "unauthorized"
	if err != nil {
		msg = err.Error()
	}
	if errors.Is(err, auth.ErrTokenExpired) {
		msg = "token expired"
	}
	s.writeAuthFailure(w, inBand, msg)
}

func (s *Server) writeAuthFailure(w http.ResponseWriter, inBand bool, msg string) {
	if inBand {
		writeEnvelope(w, http.StatusOK, Envelope{Code: http.StatusUnauthorized, Msg: msg})
		return
	}
	w.Header().Set("WWW-Authenticate", auth.BearerScheme)
	writeEnvelope(w, http.StatusUnauthorized, Envelope{Code: http.StatusUnauthorized, Msg: msg})
}

// handleAPI echoes an authenticated call. /api/status/<code> answers with
// that transport status instead.
func (s *Server) handleAPI(w http.ResponseWriter, r *http.Request) {
	token, _ := auth.ExtractBearerToken(r.Header.Get("Authorization"))

	s.mu.Lock()
	s.apiCalls++
	reject := s.rejectAll
	inBand := s.inBand
	if !reject {
		s.seenTokens = append(s.seenTokens, token)
	}
	s.mu.Unlock()

	if reject {
		s.writeAuthFailure(w, inBand, "token rejected")
		return
	}

	if raw, ok := strings.CutPrefix(r.URL.Path, APIPrefix+"status/"); ok {
		code, err := strconv.Atoi(raw)
		if err != nil || code < 100 || code > 599 {
			writeEnvelope(w, http.StatusBadRequest, Envelope{Code: http.StatusBadRequest, Msg: "bad status code"})
			return
		}
		writeEnvelope(w, code, Envelope{Code: code, Msg: http.StatusText(code)})
		return
	}

	id := auth.IdentityFromContext(r.Context())
	echo := Echo{
		Method:    r.Method,
		Path:      r.URL.Path,
		Token:     token,
		RequestID: r.Header.Get("X-Request-ID"),
	}
	if id != nil {
		echo.Principal = id.Principal
		echo.SessionID = id.SessionID
	}
	if r.Body != nil {
		var body json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			echo.Body = string(body)
		}
	}
	writeEnvelope(w, http.StatusOK, Envelope{Code: http.StatusOK, Msg: "ok", Data: echo})
}

func (s *Server) checkRefresh(context.Context) health.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	details := map[string]any{"refreshCalls": s.refreshCalls}
	if s.refreshFail != nil {
		return health.Degraded("refresh is forced to fail").WithDetails(details)
	}
	return health.Healthy("refresh available").WithDetails(details)
}

func wait(ctx context.Context, delay time.Duration, gate <-chan struct{}) error {
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if delay > 0 {
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func toPair(t auth.Tokens) credential.Pair {
	return credential.Pair{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		ExpiresIn:    t.ExpiresIn,
	}
}

func writeEnvelope(w http.ResponseWriter, status int, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}
