package observe

import (
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
)

// Transport is an http.RoundTripper that traces, measures and logs every
// network call. Labels come from the RequestMeta attached to the request
// context, falling back to the request itself.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Errors: errors and responses from Base are returned unchanged.
//   - Ownership: the caller's request is not modified; trace headers are
//     injected into a clone.
type Transport struct {
	base  http.RoundTripper
	inst  *Instruments
	props propagation.TextMapPropagator
}

// NewTransport wraps base (http.DefaultTransport when nil).
func NewTransport(base http.RoundTripper, inst *Instruments) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{
		base:  base,
		inst:  inst.WithDefaults(),
		props: otel.GetTextMapPropagator(),
	}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	meta, ok := RequestMetaFromContext(req.Context())
	if !ok {
		meta = RequestMeta{
			Method:    req.Method,
			Path:      req.URL.Path,
			RequestID: req.Header.Get("X-Request-ID"),
		}
	}

	ctx, span := t.inst.Tracer.StartRequest(req.Context(), meta)
	out := req.Clone(ctx)
	t.props.Inject(ctx, propagation.HeaderCarrier(out.Header))

	start := time.Now()
	resp, err := t.base.RoundTrip(out)
	duration := time.Since(start)

	status := 0
	if resp != nil {
		status = resp.StatusCode
		span.SetAttributes(attribute.Int("http.response.status_code", status))
	}
	t.inst.Tracer.EndSpan(span, err)
	t.inst.Metrics.RecordRequest(ctx, meta, status, duration, err)

	log := t.inst.Logger.WithRequest(meta)
	fields := []Field{{Key: "duration_ms", Value: duration.Milliseconds()}}
	if err != nil {
		log.Warn(ctx, "network call failed", append(fields, Field{Key: "error", Value: err})...)
	} else {
		log.Debug(ctx, "network call completed", append(fields, Field{Key: "status", Value: status})...)
	}

	return resp, err
}

// Ensure Transport implements http.RoundTripper
var _ http.RoundTripper = (*Transport)(nil)
