package infrastructure

import "context"

// contextKey is a type for context keys private to this package.
type contextKey string

// traceIDKey stores the per-request trace ID used to correlate log
// lines across components.
const traceIDKey contextKey = "trace_id"

// WithTraceID returns a context carrying the given trace ID.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// GetTraceID returns the trace ID stored in the context, or "".
func GetTraceID(ctx context.Context) string {
	if id, ok := ctx.Value(traceIDKey).(string); ok {
		return id
	}
	return ""
}
