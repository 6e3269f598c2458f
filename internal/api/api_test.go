package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyalen-caldeira/mcp-server-blueprint/internal/db"
	"github.com/hyalen-caldeira/mcp-server-blueprint/internal/handler"
	"github.com/hyalen-caldeira/mcp-server-blueprint/internal/service"
	"github.com/hyalen-caldeira/mcp-server-blueprint/pkg/audit"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "tools.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	svc := service.New(database, handler.NewRegistry())
	mux := http.NewServeMux()
	New(svc, nil).RegisterRoutes(mux)

	ts := httptest.NewServer(SecurityHeaders(mux))
	t.Cleanup(ts.Close)
	return ts
}

func do(t *testing.T, ts *httptest.Server, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, ts.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	// Distinct client ip per test so the shared rate limiter never trips.
	req.Header.Set("X-Forwarded-For", "10.0.0.1-"+t.Name())

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func createEcho(t *testing.T, ts *httptest.Server) map[string]any {
	t.Helper()
	resp, body := do(t, ts, "POST", "/api/tools", map[string]any{
		"name":         "echo",
		"description":  "Echo back the provided text",
		"handler_name": "echo_handler",
		"parameters_schema": map[string]any{
			"type":       "object",
			"properties": map[string]any{"text": map[string]any{"type": "string"}},
			"required":   []string{"text"},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return body
}

func TestCreateTool(t *testing.T) {
	ts := newTestServer(t)

	body := createEcho(t, ts)
	assert.Equal(t, "echo", body["name"])
	assert.Equal(t, "echo_handler", body["handler_name"])
	assert.Equal(t, true, body["is_active"])
	assert.NotZero(t, body["id"])

	schema, ok := body["parameters_schema"].(map[string]any)
	require.True(t, ok, "parameters_schema should be a JSON object")
	assert.Equal(t, "object", schema["type"])
}

func TestCreateToolConflict(t *testing.T) {
	ts := newTestServer(t)
	createEcho(t, ts)

	resp, body := do(t, ts, "POST", "/api/tools", map[string]any{
		"name":         "echo",
		"description":  "Duplicate",
		"handler_name": "echo_handler",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, body["error"], "already exists")
}

func TestCreateToolUnknownHandler(t *testing.T) {
	ts := newTestServer(t)

	resp, body := do(t, ts, "POST", "/api/tools", map[string]any{
		"name":         "bad",
		"description":  "Bad handler",
		"handler_name": "missing_handler",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, body["error"], "not in the registry")
}

func TestCreateToolValidation(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := do(t, ts, "POST", "/api/tools", map[string]any{
		"name":         "",
		"description":  "No name",
		"handler_name": "echo_handler",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetTool(t *testing.T) {
	ts := newTestServer(t)
	created := createEcho(t, ts)
	id := int64(created["id"].(float64))

	resp, body := do(t, ts, "GET", fmt.Sprintf("/api/tools/%d", id), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "echo", body["name"])

	resp, _ = do(t, ts, "GET", "/api/tools/999", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = do(t, ts, "GET", "/api/tools/not-a-number", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetToolByName(t *testing.T) {
	ts := newTestServer(t)
	createEcho(t, ts)

	resp, body := do(t, ts, "GET", "/api/tools/by-name/echo", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "echo", body["name"])

	resp, _ = do(t, ts, "GET", "/api/tools/by-name/nonexistent", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListTools(t *testing.T) {
	ts := newTestServer(t)
	created := createEcho(t, ts)
	id := int64(created["id"].(float64))

	resp, _ := do(t, ts, "POST", "/api/tools", map[string]any{
		"name":         "calculator_add",
		"description":  "Add two numbers",
		"handler_name": "calculator_add_handler",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = do(t, ts, "DELETE", fmt.Sprintf("/api/tools/%d", id), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := do(t, ts, "GET", "/api/tools", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["tools"], 2)

	resp, body = do(t, ts, "GET", "/api/tools?active=true", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	tools := body["tools"].([]any)
	require.Len(t, tools, 1)
	assert.Equal(t, "calculator_add", tools[0].(map[string]any)["name"])
}

func TestUpdateTool(t *testing.T) {
	ts := newTestServer(t)
	created := createEcho(t, ts)
	id := int64(created["id"].(float64))

	resp, body := do(t, ts, "PATCH", fmt.Sprintf("/api/tools/%d", id), map[string]any{
		"description": "Updated description",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Updated description", body["description"])
	assert.Equal(t, "echo", body["name"])

	resp, _ = do(t, ts, "PATCH", "/api/tools/999", map[string]any{"description": "x"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteToolSoftThenActivate(t *testing.T) {
	ts := newTestServer(t)
	created := createEcho(t, ts)
	id := int64(created["id"].(float64))

	resp, body := do(t, ts, "DELETE", fmt.Sprintf("/api/tools/%d", id), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["soft"])

	// Soft-deleted row is still retrievable, just inactive.
	resp, body = do(t, ts, "GET", fmt.Sprintf("/api/tools/%d", id), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["is_active"])

	resp, body = do(t, ts, "POST", fmt.Sprintf("/api/tools/%d/activate", id), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["is_active"])
}

func TestDeleteToolHard(t *testing.T) {
	ts := newTestServer(t)
	created := createEcho(t, ts)
	id := int64(created["id"].(float64))

	resp, _ := do(t, ts, "DELETE", fmt.Sprintf("/api/tools/%d?soft=false", id), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = do(t, ts, "GET", fmt.Sprintf("/api/tools/%d", id), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMutatingCallsAreAudited(t *testing.T) {
	database, err := db.Open(filepath.Join(t.TempDir(), "tools.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	auditLog := audit.NewSQLiteLogger(database.DB)
	require.NoError(t, auditLog.Init())

	svc := service.New(database, handler.NewRegistry())
	mux := http.NewServeMux()
	New(svc, auditLog).RegisterRoutes(mux)
	ts := httptest.NewServer(SecurityHeaders(mux))
	t.Cleanup(ts.Close)

	created := createEcho(t, ts)
	id := int64(created["id"].(float64))

	resp, _ := do(t, ts, "DELETE", fmt.Sprintf("/api/tools/%d", id), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = do(t, ts, "PATCH", "/api/tools/999", map[string]any{"description": "x"})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Reads stay out of the trail.
	resp, _ = do(t, ts, "GET", "/api/tools", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, auditLog.Close())

	var n int
	require.NoError(t, database.QueryRow(
		`SELECT COUNT(*) FROM audit_log WHERE transport = 'http' AND status = 'success'`).Scan(&n))
	assert.Equal(t, 2, n, "create and delete should be audited")

	var action, errMsg string
	require.NoError(t, database.QueryRow(
		`SELECT action, error_message FROM audit_log WHERE status = 'error'`).Scan(&action, &errMsg))
	assert.Equal(t, "update_tool", action)
	assert.Contains(t, errMsg, "tool not found")

	require.NoError(t, database.QueryRow(`SELECT COUNT(*) FROM audit_log`).Scan(&n))
	assert.Equal(t, 3, n)
}

func TestListHandlers(t *testing.T) {
	ts := newTestServer(t)

	resp, body := do(t, ts, "GET", "/api/handlers", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []any{"calculator_add_handler", "echo_handler"}, body["handlers"])
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	resp, body := do(t, ts, "GET", "/api/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
}
