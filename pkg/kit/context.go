package kit

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	OperatorKey  contextKey = "kit_operator"
	TransportKey contextKey = "kit_transport" // "cli", "mcp"
	RequestIDKey contextKey = "kit_request_id"
)

// WithOperator records who runs the request; the editor stores it with
// each change.
func WithOperator(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, OperatorKey, name)
}
func GetOperator(ctx context.Context) string {
	v, _ := ctx.Value(OperatorKey).(string)
	return v
}

func WithTransport(ctx context.Context, t string) context.Context {
	return context.WithValue(ctx, TransportKey, t)
}
func GetTransport(ctx context.Context) string {
	if v, ok := ctx.Value(TransportKey).(string); ok {
		return v
	}
	return "cli"
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}
func GetRequestID(ctx context.Context) string {
	v, _ := ctx.Value(RequestIDKey).(string)
	return v
}

// NewRequest tags ctx with the transport and a fresh request id.
func NewRequest(ctx context.Context, transport string) context.Context {
	return WithRequestID(WithTransport(ctx, transport), uuid.NewString())
}
