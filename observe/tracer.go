package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// RefreshSpanName is the span name of a credential refresh.
const RefreshSpanName = "authclient.refresh"

// Tracer manages the spans of API calls and credential refreshes.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartRequest starts a client span for one network call.
	StartRequest(ctx context.Context, meta RequestMeta) (context.Context, trace.Span)

	// StartRefresh starts the span of a credential refresh.
	StartRefresh(ctx context.Context) (context.Context, trace.Span)

	// EndSpan ends the span, recording any error.
	EndSpan(span trace.Span, err error)
}

type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer wraps an OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

// StartRequest starts a client span labelled with the request meta.
func (t *tracerImpl) StartRequest(ctx context.Context, meta RequestMeta) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("http.request.method", meta.Method),
		attribute.String("url.path", meta.Path),
		attribute.Bool("authclient.retried", meta.Retried),
	}
	if meta.RequestID != "" {
		attrs = append(attrs, attribute.String("authclient.request_id", meta.RequestID))
	}

	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// StartRefresh starts an internal span; the refresh network call nests under it.
func (t *tracerImpl) StartRefresh(ctx context.Context) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, RefreshSpanName, trace.WithSpanKind(trace.SpanKindInternal))
}

// EndSpan ends the span and records the error status if present.
func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// NopTracer returns a tracer whose spans record nothing.
func NopTracer() Tracer {
	return NewTracer(tracenoop.NewTracerProvider().Tracer("noop"))
}
