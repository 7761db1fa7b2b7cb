package health

import (
	"context"
	"testing"
	"time"
)

func staticChecker(name string, r Result) Checker {
	return NewCheckerFunc(name, func(context.Context) Result { return r })
}

func TestNewAggregator(t *testing.T) {
	agg := NewAggregator()
	if agg.config.Timeout != 5*time.Second {
		t.Errorf("Default timeout = %v, want 5s", agg.config.Timeout)
	}
	if agg.config.Sequential {
		t.Error("Default Sequential should be false")
	}

	agg = NewAggregator(AggregatorConfig{Timeout: time.Second, Sequential: true})
	if agg.config.Timeout != time.Second {
		t.Errorf("Timeout = %v, want 1s", agg.config.Timeout)
	}
	if !agg.config.Sequential {
		t.Error("Sequential should be true")
	}
}

func TestAggregator_RegisterUnregister(t *testing.T) {
	agg := NewAggregator()
	agg.Register("credential", staticChecker("credential", Healthy("ok")))
	agg.Register("store", staticChecker("store", Healthy("ok")))
	agg.Register("api", staticChecker("api", Healthy("ok")))

	agg.Unregister("store")
	agg.Unregister("missing")

	names := agg.CheckerNames()
	want := []string{"credential", "api"}
	if len(names) != len(want) {
		t.Fatalf("CheckerNames() = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("CheckerNames()[%d] = %v, want %v", i, names[i], want[i])
		}
	}
}

func TestAggregator_RegisterDuplicate(t *testing.T) {
	agg := NewAggregator()
	agg.Register("test", staticChecker("test", Healthy("first")))
	agg.Register("test", staticChecker("test", Healthy("second")))

	if names := agg.CheckerNames(); len(names) != 1 {
		t.Errorf("Expected 1 checker after duplicate, got %d", len(names))
	}

	result, err := agg.Check(context.Background(), "test")
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if result.Message != "second" {
		t.Errorf("Message = %v, want 'second'", result.Message)
	}
}

func TestAggregator_CheckNotFound(t *testing.T) {
	agg := NewAggregator()

	_, err := agg.Check(context.Background(), "nonexistent")
	if err != ErrCheckerNotFound {
		t.Errorf("Check() error = %v, want ErrCheckerNotFound", err)
	}
}

func TestAggregator_CheckAll(t *testing.T) {
	for _, sequential := range []bool{false, true} {
		agg := NewAggregator(AggregatorConfig{Sequential: sequential})
		agg.Register("healthy", staticChecker("healthy", Healthy("ok")))
		agg.Register("degraded", staticChecker("degraded", Degraded("expiring")))

		results := agg.CheckAll(context.Background())
		if len(results) != 2 {
			t.Fatalf("sequential=%v: expected 2 results, got %d", sequential, len(results))
		}
		if results["healthy"].Status != StatusHealthy {
			t.Errorf("sequential=%v: healthy status = %v", sequential, results["healthy"].Status)
		}
		if results["degraded"].Status != StatusDegraded {
			t.Errorf("sequential=%v: degraded status = %v", sequential, results["degraded"].Status)
		}
	}
}

func TestAggregator_CheckAllEmpty(t *testing.T) {
	if results := NewAggregator().CheckAll(context.Background()); len(results) != 0 {
		t.Errorf("Expected 0 results, got %d", len(results))
	}
}

func TestAggregator_CheckAllTimeout(t *testing.T) {
	agg := NewAggregator(AggregatorConfig{Timeout: 50 * time.Millisecond})
	agg.Register("slow", NewCheckerFunc("slow", func(ctx context.Context) Result {
		time.Sleep(200 * time.Millisecond)
		return Healthy("ok")
	}))

	results := agg.CheckAll(context.Background())
	if results["slow"].Status != StatusUnhealthy {
		t.Errorf("slow status = %v, want StatusUnhealthy", results["slow"].Status)
	}
	if results["slow"].Error != ErrCheckTimeout {
		t.Errorf("slow error = %v, want ErrCheckTimeout", results["slow"].Error)
	}
}

func TestOverallStatus(t *testing.T) {
	tests := []struct {
		name    string
		results map[string]Result
		want    Status
	}{
		{"empty", map[string]Result{}, StatusHealthy},
		{"all healthy", map[string]Result{"a": Healthy("ok"), "b": Healthy("ok")}, StatusHealthy},
		{"one degraded", map[string]Result{"a": Healthy("ok"), "b": Degraded("slow")}, StatusDegraded},
		{"one unhealthy", map[string]Result{"a": Healthy("ok"), "b": Unhealthy("down", nil)}, StatusUnhealthy},
		{"unhealthy overrides degraded", map[string]Result{"a": Degraded("slow"), "b": Unhealthy("down", nil)}, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := OverallStatus(tt.results); got != tt.want {
				t.Errorf("OverallStatus() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAggregator_Report(t *testing.T) {
	agg := NewAggregator()
	agg.Register("credential", staticChecker("credential", Degraded("expires soon")))
	agg.Register("store", staticChecker("store", Healthy("ok")))

	report := agg.Report(context.Background())

	if report.Status != StatusDegraded {
		t.Errorf("Report.Status = %v, want StatusDegraded", report.Status)
	}
	if report.Timestamp.IsZero() {
		t.Error("Report.Timestamp should not be zero")
	}
	if len(report.Checks) != 2 {
		t.Fatalf("len(Report.Checks) = %d, want 2", len(report.Checks))
	}
	if report.Checks[0].Name != "credential" || report.Checks[1].Name != "store" {
		t.Errorf("Report.Checks order = [%s %s], want [credential store]", report.Checks[0].Name, report.Checks[1].Name)
	}
	if report.Checks[0].Message != "expires soon" {
		t.Errorf("Report.Checks[0].Message = %v, want 'expires soon'", report.Checks[0].Message)
	}
}
