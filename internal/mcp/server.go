// Package mcp publishes active tool rows as MCP tools. Registration is a
// startup-time snapshot: each stub captures only the tool's name and resolves
// it through the service on every call, so metadata edits take effect on the
// next invocation but row additions/removals need a re-registration pass.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hyalen-caldeira/mcp-server-blueprint/internal/db"
	"github.com/hyalen-caldeira/mcp-server-blueprint/internal/service"
	"github.com/hyalen-caldeira/mcp-server-blueprint/pkg/audit"
	"github.com/hyalen-caldeira/mcp-server-blueprint/pkg/kit"
)

// ToolBinder is the registration surface the registrar writes to.
// *server.MCPServer satisfies it.
type ToolBinder interface {
	AddTool(tool mcp.Tool, handler server.ToolHandlerFunc)
}

// NewServer creates an empty MCPServer; RegisterActiveTools populates it.
func NewServer(name, version string) *server.MCPServer {
	return server.NewMCPServer(
		name,
		version,
		server.WithToolCapabilities(true),
	)
}

// RegisterActiveTools enumerates active tools from the store and registers
// one stub per row. Returns the number of tools registered.
func RegisterActiveTools(binder ToolBinder, svc *service.ToolService, auditLog audit.Logger) (int, error) {
	tools, err := svc.ListTools(true)
	if err != nil {
		return 0, fmt.Errorf("listing active tools: %w", err)
	}
	for _, t := range tools {
		registerDynamicTool(binder, svc, auditLog, t)
		slog.Info("registered tool", "name", t.Name, "handler", t.HandlerName)
	}
	return len(tools), nil
}

func registerDynamicTool(binder ToolBinder, svc *service.ToolService, auditLog audit.Logger, t *db.Tool) {
	tool := mcp.NewToolWithRawSchema(t.Name, t.Description, []byte(t.ParametersSchema))

	// The stub closes over the name only; handler and schema are re-resolved
	// from the store on every invocation.
	name := t.Name
	var endpoint kit.Endpoint = func(ctx context.Context, request any) (any, error) {
		params, _ := request.(map[string]any)
		if params == nil {
			params = map[string]any{}
		}
		return svc.ExecuteTool(name, params)
	}
	endpoint = audit.Instrument(auditLog, name)(endpoint)

	binder.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx = kit.WithTransport(ctx, "mcp")
		ctx = kit.WithRequestID(ctx, uuid.NewString())

		result, err := endpoint(ctx, req.GetArguments())
		if err != nil {
			// The stub boundary never surfaces a transport fault: every
			// failure flattens into the uniform error-result mapping.
			payload, _ := json.Marshal(map[string]any{"success": false, "error": err.Error()})
			return mcp.NewToolResultError(string(payload)), nil
		}
		data, err := json.Marshal(result)
		if err != nil {
			payload, _ := json.Marshal(map[string]any{"success": false, "error": err.Error()})
			return mcp.NewToolResultError(string(payload)), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	})
}
