package gateway

import "context"

type ctxKey int

const (
	requestIDKey ctxKey = iota
	transportKey
)

// WithRequestID attaches a request ID used in audit entries.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID returns the request ID in ctx, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithTransport tags ctx with the transport name: http, grpc or mcp.
func WithTransport(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, transportKey, name)
}

// Transport returns the transport name in ctx, or "".
func Transport(ctx context.Context) string {
	t, _ := ctx.Value(transportKey).(string)
	return t
}
