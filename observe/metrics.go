package observe

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric names.
const (
	MetricRequestTotal    = "authclient.request.total"
	MetricRequestErrors   = "authclient.request.errors"
	MetricRequestDuration = "authclient.request.duration_ms"
	MetricRefreshTotal    = "authclient.refresh.total"
	MetricRefreshFailures = "authclient.refresh.failures"
	MetricReplayTotal     = "authclient.replay.total"
	MetricQueueWaiters    = "authclient.queue.waiters"
)

// Metrics records client metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordRequest records one network call. status is 0 when no response arrived.
	RecordRequest(ctx context.Context, meta RequestMeta, status int, duration time.Duration, err error)

	// RecordRefresh records one credential refresh attempt.
	RecordRefresh(ctx context.Context, duration time.Duration, err error)

	// RecordReplay records the outcome of replaying a request after refresh.
	RecordReplay(ctx context.Context, meta RequestMeta, err error)

	// AddWaiters adjusts the number of requests queued behind a refresh.
	AddWaiters(ctx context.Context, delta int64)
}

type metricsImpl struct {
	requestTotal    metric.Int64Counter
	requestErrors   metric.Int64Counter
	requestDuration metric.Float64Histogram
	refreshTotal    metric.Int64Counter
	refreshFailures metric.Int64Counter
	replayTotal     metric.Int64Counter
	queueWaiters    metric.Int64UpDownCounter
}

// NewMetrics creates the client instruments on meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	m := &metricsImpl{}
	var err error

	if m.requestTotal, err = meter.Int64Counter(MetricRequestTotal,
		metric.WithDescription("Network calls sent to the API"),
		metric.WithUnit("{call}")); err != nil {
		return nil, err
	}
	if m.requestErrors, err = meter.Int64Counter(MetricRequestErrors,
		metric.WithDescription("Network calls that failed or returned a non-2xx status"),
		metric.WithUnit("{error}")); err != nil {
		return nil, err
	}
	if m.requestDuration, err = meter.Float64Histogram(MetricRequestDuration,
		metric.WithDescription("Network call duration in milliseconds"),
		metric.WithUnit("ms")); err != nil {
		return nil, err
	}
	if m.refreshTotal, err = meter.Int64Counter(MetricRefreshTotal,
		metric.WithDescription("Credential refresh attempts"),
		metric.WithUnit("{refresh}")); err != nil {
		return nil, err
	}
	if m.refreshFailures, err = meter.Int64Counter(MetricRefreshFailures,
		metric.WithDescription("Credential refresh attempts that ended the session"),
		metric.WithUnit("{refresh}")); err != nil {
		return nil, err
	}
	if m.replayTotal, err = meter.Int64Counter(MetricReplayTotal,
		metric.WithDescription("Requests replayed after a credential refresh"),
		metric.WithUnit("{call}")); err != nil {
		return nil, err
	}
	if m.queueWaiters, err = meter.Int64UpDownCounter(MetricQueueWaiters,
		metric.WithDescription("Requests waiting for an in-flight refresh"),
		metric.WithUnit("{request}")); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *metricsImpl) RecordRequest(ctx context.Context, meta RequestMeta, status int, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("http.request.method", meta.Method),
		attribute.Bool("authclient.retried", meta.Retried),
	}
	if status > 0 {
		attrs = append(attrs, attribute.String("http.response.status_code", strconv.Itoa(status)))
	}
	opt := metric.WithAttributes(attrs...)

	m.requestTotal.Add(ctx, 1, opt)
	if err != nil || status < 200 || status > 299 {
		m.requestErrors.Add(ctx, 1, opt)
	}
	m.requestDuration.Record(ctx, float64(duration.Microseconds())/1000, opt)
}

func (m *metricsImpl) RecordRefresh(ctx context.Context, _ time.Duration, err error) {
	m.refreshTotal.Add(ctx, 1)
	if err != nil {
		m.refreshFailures.Add(ctx, 1)
	}
}

func (m *metricsImpl) RecordReplay(ctx context.Context, meta RequestMeta, err error) {
	m.replayTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("http.request.method", meta.Method),
		attribute.Bool("authclient.success", err == nil),
	))
}

func (m *metricsImpl) AddWaiters(ctx context.Context, delta int64) {
	m.queueWaiters.Add(ctx, delta)
}

// NopMetrics returns metrics that record nothing.
func NopMetrics() Metrics {
	return noopMetrics{}
}

type noopMetrics struct{}

func (noopMetrics) RecordRequest(context.Context, RequestMeta, int, time.Duration, error) {}
func (noopMetrics) RecordRefresh(context.Context, time.Duration, error)                 {}
func (noopMetrics) RecordReplay(context.Context, RequestMeta, error)                    {}
func (noopMetrics) AddWaiters(context.Context, int64)                                   {}
