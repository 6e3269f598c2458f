package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hyalen-caldeira/mcp-server-blueprint/pkg/kit"
)

// Instrument is the standard stack for an audited operation: the audit trail
// (when a logger is configured) outermost, debug logging innermost. Both the
// MCP stubs and the mutating REST handlers route through it.
func Instrument(logger Logger, action string) kit.Middleware {
	logging := kit.Logging(action)
	if logger == nil {
		return logging
	}
	return kit.Chain(Middleware(logger, action), logging)
}

// Middleware wraps an Endpoint: measures duration, captures params/result/error,
// and logs asynchronously via the Logger.
func Middleware(logger Logger, actionName string) kit.Middleware {
	return func(next kit.Endpoint) kit.Endpoint {
		return func(ctx context.Context, request any) (any, error) {
			start := time.Now()

			resp, err := next(ctx, request)

			entry := &Entry{
				Action:     actionName,
				Transport:  kit.GetTransport(ctx),
				RequestID:  kit.GetRequestID(ctx),
				DurationMs: time.Since(start).Milliseconds(),
			}

			if params, e := json.Marshal(request); e == nil {
				entry.Parameters = string(params)
			}
			if err != nil {
				entry.Error = err.Error()
				entry.Status = "error"
			} else {
				entry.Status = "success"
				if result, e := json.Marshal(resp); e == nil {
					entry.Result = string(result)
				}
			}

			logger.LogAsync(entry)
			return resp, err
		}
	}
}
