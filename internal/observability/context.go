package observability

import "context"

type contextKey int

const requestIDContextKey contextKey = iota

// WithRequestID attaches a request ID to the context. The web middleware
// sets one per inbound request.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDContextKey, id)
}

// RequestID extracts the request ID from context, or "" when absent.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDContextKey).(string)
	return id
}
