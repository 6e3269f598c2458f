// Package api exposes the administrative REST surface for tool CRUD.
// Unlike the MCP stubs, these handlers surface the service's typed errors to
// the caller as HTTP statuses rather than flattening them.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/hyalen-caldeira/mcp-server-blueprint/internal/db"
	"github.com/hyalen-caldeira/mcp-server-blueprint/internal/service"
	"github.com/hyalen-caldeira/mcp-server-blueprint/pkg/audit"
	"github.com/hyalen-caldeira/mcp-server-blueprint/pkg/kit"
)

// maxBodySize is the maximum HTTP body size for tool create/update requests.
const maxBodySize = 64 * 1024 // 64KB

// WriteRateLimiter is the rate limiter for mutating endpoints (60 req/60s).
var WriteRateLimiter = NewRateLimiter(60, 60*time.Second)

type API struct {
	svc      *service.ToolService
	auditLog audit.Logger
}

// New builds the API. auditLog may be nil to disable the audit trail.
func New(svc *service.ToolService, auditLog audit.Logger) *API {
	return &API{svc: svc, auditLog: auditLog}
}

// invoke routes a mutating operation through the shared endpoint stack so
// REST mutations land in the audit trail the same way MCP calls do. request
// is what gets recorded as the entry's parameters.
func (a *API) invoke(r *http.Request, action string, request any, op kit.Endpoint) (any, error) {
	ctx := kit.WithTransport(r.Context(), "http")
	ctx = kit.WithRequestID(ctx, uuid.NewString())
	return audit.Instrument(a.auditLog, action)(op)(ctx, request)
}

func (a *API) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/tools", RateLimitMiddleware(WriteRateLimiter, a.handleCreateTool))
	mux.HandleFunc("GET /api/tools", a.handleListTools)
	mux.HandleFunc("GET /api/tools/{id}", a.handleGetTool)
	mux.HandleFunc("GET /api/tools/by-name/{name}", a.handleGetToolByName)
	mux.HandleFunc("PATCH /api/tools/{id}", RateLimitMiddleware(WriteRateLimiter, a.handleUpdateTool))
	mux.HandleFunc("DELETE /api/tools/{id}", RateLimitMiddleware(WriteRateLimiter, a.handleDeleteTool))
	mux.HandleFunc("POST /api/tools/{id}/activate", RateLimitMiddleware(WriteRateLimiter, a.handleActivateTool))

	mux.HandleFunc("GET /api/handlers", a.handleListHandlers)
	mux.HandleFunc("GET /api/health", a.handleHealth)
}

// toolView is the JSON shape for a tool. parameters_schema is surfaced as a
// JSON object, not the stored string.
type toolView struct {
	ID               int64           `json:"id"`
	Name             string          `json:"name"`
	Description      string          `json:"description"`
	HandlerName      string          `json:"handler_name"`
	ParametersSchema json.RawMessage `json:"parameters_schema"`
	IsActive         bool            `json:"is_active"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

func viewOf(t *db.Tool) toolView {
	schema := json.RawMessage(t.ParametersSchema)
	if !json.Valid(schema) {
		schema = json.RawMessage("{}")
	}
	return toolView{
		ID:               t.ID,
		Name:             t.Name,
		Description:      t.Description,
		HandlerName:      t.HandlerName,
		ParametersSchema: schema,
		IsActive:         t.IsActive,
		CreatedAt:        t.CreatedAt,
		UpdatedAt:        t.UpdatedAt,
	}
}

func viewsOf(tools []*db.Tool) []toolView {
	views := make([]toolView, 0, len(tools))
	for _, t := range tools {
		views = append(views, viewOf(t))
	}
	return views
}

func (a *API) handleCreateTool(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name             string          `json:"name"`
		Description      string          `json:"description"`
		HandlerName      string          `json:"handler_name"`
		ParametersSchema json.RawMessage `json:"parameters_schema"`
		IsActive         *bool           `json:"is_active"`
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	input := db.CreateToolInput{
		Name:             req.Name,
		Description:      req.Description,
		HandlerName:      req.HandlerName,
		ParametersSchema: string(req.ParametersSchema),
		IsActive:         active,
	}
	res, err := a.invoke(r, "create_tool", input, func(ctx context.Context, request any) (any, error) {
		return a.svc.CreateTool(request.(db.CreateToolInput))
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	jsonResp(w, http.StatusCreated, viewOf(res.(*db.Tool)))
}

func (a *API) handleListTools(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	tools, err := a.svc.ListTools(activeOnly)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	jsonResp(w, http.StatusOK, map[string]any{"tools": viewsOf(tools)})
}

func (a *API) handleGetTool(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	tool, err := a.svc.GetTool(id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	jsonResp(w, http.StatusOK, viewOf(tool))
}

func (a *API) handleGetToolByName(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		jsonError(w, "name is required", http.StatusBadRequest)
		return
	}
	tool, err := a.svc.GetToolByName(name)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	jsonResp(w, http.StatusOK, viewOf(tool))
}

func (a *API) handleUpdateTool(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req struct {
		Name             *string          `json:"name"`
		Description      *string          `json:"description"`
		HandlerName      *string          `json:"handler_name"`
		ParametersSchema *json.RawMessage `json:"parameters_schema"`
		IsActive         *bool            `json:"is_active"`
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	input := db.UpdateToolInput{
		Name:        req.Name,
		Description: req.Description,
		HandlerName: req.HandlerName,
		IsActive:    req.IsActive,
	}
	if req.ParametersSchema != nil {
		schema := string(*req.ParametersSchema)
		input.ParametersSchema = &schema
	}

	res, err := a.invoke(r, "update_tool", map[string]any{"id": id, "changes": input}, func(ctx context.Context, _ any) (any, error) {
		return a.svc.UpdateTool(id, input)
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	jsonResp(w, http.StatusOK, viewOf(res.(*db.Tool)))
}

func (a *API) handleDeleteTool(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	soft := r.URL.Query().Get("soft") != "false"
	_, err := a.invoke(r, "delete_tool", map[string]any{"id": id, "soft": soft}, func(ctx context.Context, _ any) (any, error) {
		return nil, a.svc.DeleteTool(id, soft)
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	jsonResp(w, http.StatusOK, map[string]any{"deleted": true, "soft": soft})
}

func (a *API) handleActivateTool(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	res, err := a.invoke(r, "activate_tool", map[string]any{"id": id}, func(ctx context.Context, _ any) (any, error) {
		if err := a.svc.ActivateTool(id); err != nil {
			return nil, err
		}
		return a.svc.GetTool(id)
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	jsonResp(w, http.StatusOK, viewOf(res.(*db.Tool)))
}

func (a *API) handleListHandlers(w http.ResponseWriter, r *http.Request) {
	jsonResp(w, http.StatusOK, map[string]any{"handlers": a.svc.Handlers().List()})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	jsonResp(w, http.StatusOK, map[string]string{"status": "ok"})
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, "invalid id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// writeServiceError maps the service's typed errors to HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrToolNotFound):
		jsonError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, service.ErrToolExists):
		jsonError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, service.ErrHandlerNotFound):
		jsonError(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, service.ErrInvalidTool):
		jsonError(w, err.Error(), http.StatusBadRequest)
	default:
		slog.Error("internal error", "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
	}
}

func jsonResp(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
