// Package requestctx carries per-request identity through context.
package requestctx

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// callerContextKey is the context key for the caller identity.
type callerContextKey struct{}

// requestIDContextKey is the context key for the request identifier.
type requestIDContextKey struct{}

// WithCaller stores a caller identity in context.
func WithCaller(ctx context.Context, caller common.Address) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, callerContextKey{}, caller)
}

// CallerFromContext returns the caller identity stored in context.
// The zero address means no caller was attached.
func CallerFromContext(ctx context.Context) common.Address {
	if ctx == nil {
		return common.Address{}
	}
	value, _ := ctx.Value(callerContextKey{}).(common.Address)
	return value
}

// WithRequestID stores a request identifier in context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, requestIDContextKey{}, requestID)
}

// RequestIDFromContext returns the request identifier stored in context.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDContextKey{}).(string)
	return value
}
