package observe

import "context"

// RequestMeta describes one outgoing API call for telemetry.
type RequestMeta struct {
	Method    string
	Path      string
	RequestID string
	// Retried marks the replay sent after a credential refresh.
	Retried bool
}

// SpanName returns the span name for the call, e.g. "GET /users".
func (m RequestMeta) SpanName() string {
	if m.Path == "" {
		return m.Method
	}
	return m.Method + " " + m.Path
}

type requestMetaKey struct{}

// WithRequestMeta attaches meta to ctx so Transport can label the network call.
func WithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, meta)
}

// RequestMetaFromContext returns the meta attached by WithRequestMeta.
func RequestMetaFromContext(ctx context.Context) (RequestMeta, bool) {
	meta, ok := ctx.Value(requestMetaKey{}).(RequestMeta)
	return meta, ok
}
