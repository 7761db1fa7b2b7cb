package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func serve(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestLivenessHandler(t *testing.T) {
	rec := serve(t, LivenessHandler(), "/healthz")

	if rec.Code != http.StatusOK {
		t.Errorf("Status = %d, want %d", rec.Code, http.StatusOK)
	}
	if rec.Body.String() != "OK" {
		t.Errorf("Body = %v, want 'OK'", rec.Body.String())
	}
	if rec.Header().Get("Content-Type") != "text/plain" {
		t.Errorf("Content-Type = %v, want 'text/plain'", rec.Header().Get("Content-Type"))
	}
}

func TestReadinessHandler(t *testing.T) {
	tests := []struct {
		name     string
		result   Result
		wantCode int
		wantBody string
	}{
		{"healthy", Healthy("ok"), http.StatusOK, "OK"},
		{"degraded", Degraded("expiring"), http.StatusOK, "DEGRADED"},
		{"unhealthy", Unhealthy("no credential", nil), http.StatusServiceUnavailable, "UNHEALTHY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := NewAggregator()
			agg.Register("credential", staticChecker("credential", tt.result))

			rec := serve(t, ReadinessHandler(agg), "/readyz")
			if rec.Code != tt.wantCode {
				t.Errorf("Status = %d, want %d", rec.Code, tt.wantCode)
			}
			if rec.Body.String() != tt.wantBody {
				t.Errorf("Body = %v, want %v", rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestDetailedHandler(t *testing.T) {
	agg := NewAggregator()
	agg.Register("credential", staticChecker("credential", Healthy("ok").WithDetails(map[string]any{"state": "idle"})))
	agg.Register("store", staticChecker("store", Unhealthy("down", ErrCheckFailed)))

	rec := serve(t, DetailedHandler(agg), "/health")

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
	if rec.Header().Get("Content-Type") != "application/json" {
		t.Errorf("Content-Type = %v, want 'application/json'", rec.Header().Get("Content-Type"))
	}

	var response ReportResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if response.Status != "unhealthy" {
		t.Errorf("Response.Status = %v, want 'unhealthy'", response.Status)
	}
	if response.Timestamp == "" {
		t.Error("Response.Timestamp should not be empty")
	}
	if len(response.Checks) != 2 {
		t.Fatalf("len(Response.Checks) = %d, want 2", len(response.Checks))
	}
	if got := response.Checks[0]; got.Name != "credential" || got.Details["state"] != "idle" {
		t.Errorf("Response.Checks[0] = %+v, want credential with state=idle", got)
	}
	if got := response.Checks[1]; got.Error == "" {
		t.Error("Response.Checks[1].Error should contain error message")
	}
}

func TestRegisterHandlers(t *testing.T) {
	mux := http.NewServeMux()
	agg := NewAggregator()
	agg.Register("test", staticChecker("test", Healthy("ok")))
	RegisterHandlers(mux, agg)

	for _, path := range []string{"/healthz", "/readyz", "/health"} {
		if rec := serve(t, mux, path); rec.Code != http.StatusOK {
			t.Errorf("%s Status = %d, want %d", path, rec.Code, http.StatusOK)
		}
	}
}
