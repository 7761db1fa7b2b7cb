// Package observe instruments the authenticated client.
//
// It provides a JSON structured logger with credential redaction, an
// OpenTelemetry tracer and meter behind an Observer, and Transport, an
// http.RoundTripper that records a span, metrics and a log line for every
// network call. The client records refresh, replay and queue metrics itself.
package observe
