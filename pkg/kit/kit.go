// Package kit provides the endpoint abstraction shared by the MCP and HTTP
// surfaces: a transport-agnostic function type, composable middleware, and
// context accessors for per-call metadata.
package kit

import (
	"context"
	"log/slog"
	"time"
)

// Endpoint is a single transport-agnostic operation.
type Endpoint func(ctx context.Context, request any) (any, error)

// Middleware wraps an Endpoint with cross-cutting behavior.
type Middleware func(Endpoint) Endpoint

// Chain composes middlewares so the first one listed is outermost.
func Chain(outer Middleware, others ...Middleware) Middleware {
	return func(next Endpoint) Endpoint {
		for i := len(others) - 1; i >= 0; i-- {
			next = others[i](next)
		}
		return outer(next)
	}
}

// Logging emits a debug record per call with its transport, correlation id
// and duration.
func Logging(action string) Middleware {
	return func(next Endpoint) Endpoint {
		return func(ctx context.Context, request any) (any, error) {
			start := time.Now()
			resp, err := next(ctx, request)
			attrs := []any{
				"action", action,
				"transport", GetTransport(ctx),
				"request_id", GetRequestID(ctx),
				"duration_ms", time.Since(start).Milliseconds(),
			}
			if err != nil {
				slog.Debug("call failed", append(attrs, "error", err)...)
			} else {
				slog.Debug("call completed", attrs...)
			}
			return resp, err
		}
	}
}

type contextKey int

const (
	transportKey contextKey = iota
	requestIDKey
)

// WithTransport records which surface ("mcp" or "http") originated the call.
func WithTransport(ctx context.Context, transport string) context.Context {
	return context.WithValue(ctx, transportKey, transport)
}

func GetTransport(ctx context.Context) string {
	if v, ok := ctx.Value(transportKey).(string); ok {
		return v
	}
	return ""
}

// WithRequestID attaches a correlation id to the call context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

func GetRequestID(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}
