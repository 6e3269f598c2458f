// Package service implements the business rules over the tool store: input
// validation, handler resolution, lifecycle transitions and execution
// dispatch. It surfaces typed errors; flattening them into transport-safe
// result mappings is the MCP layer's job.
package service

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/hyalen-caldeira/mcp-server-blueprint/internal/db"
	"github.com/hyalen-caldeira/mcp-server-blueprint/internal/handler"
)

type ToolService struct {
	db       *db.DB
	handlers *handler.Registry
}

func New(database *db.DB, handlers *handler.Registry) *ToolService {
	return &ToolService{db: database, handlers: handlers}
}

// Handlers exposes the registry for discovery endpoints.
func (s *ToolService) Handlers() *handler.Registry {
	return s.handlers
}

// CreateTool validates and persists a new tool. The name pre-check is not
// atomic with the insert; the store's unique constraint is the backstop and
// its violation maps to ErrToolExists as well.
func (s *ToolService) CreateTool(input db.CreateToolInput) (*db.Tool, error) {
	if err := validateName(input.Name); err != nil {
		return nil, err
	}
	if input.Description == "" {
		return nil, fmt.Errorf("%w: description must not be empty", ErrInvalidTool)
	}
	if _, ok := s.handlers.Get(input.HandlerName); !ok {
		return nil, fmt.Errorf("%w: %q is not in the registry", ErrHandlerNotFound, input.HandlerName)
	}
	if err := checkSchema(input.ParametersSchema); err != nil {
		return nil, err
	}

	existing, err := s.db.GetToolByName(input.Name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: %q", ErrToolExists, input.Name)
	}

	tool, err := s.db.CreateTool(input)
	if db.IsUniqueViolation(err) {
		return nil, fmt.Errorf("%w: %q", ErrToolExists, input.Name)
	}
	if err != nil {
		return nil, err
	}
	return tool, nil
}

// GetTool returns the tool with the given id.
func (s *ToolService) GetTool(id int64) (*db.Tool, error) {
	tool, err := s.db.GetToolByID(id)
	if err != nil {
		return nil, err
	}
	if tool == nil {
		return nil, fmt.Errorf("%w: id %d", ErrToolNotFound, id)
	}
	return tool, nil
}

// GetToolByName returns the tool with the given name.
func (s *ToolService) GetToolByName(name string) (*db.Tool, error) {
	tool, err := s.db.GetToolByName(name)
	if err != nil {
		return nil, err
	}
	if tool == nil {
		return nil, fmt.Errorf("%w: %q", ErrToolNotFound, name)
	}
	return tool, nil
}

// ListTools returns all tools, or only active ones, in id order.
func (s *ToolService) ListTools(activeOnly bool) ([]*db.Tool, error) {
	if activeOnly {
		return s.db.ListActiveTools()
	}
	return s.db.ListTools()
}

// UpdateTool applies a partial update. Only fields present in the input are
// validated and written. A rename that collides with an existing name is
// caught by the store's unique constraint, not pre-checked.
func (s *ToolService) UpdateTool(id int64, input db.UpdateToolInput) (*db.Tool, error) {
	if input.Name != nil {
		if err := validateName(*input.Name); err != nil {
			return nil, err
		}
	}
	if input.Description != nil && *input.Description == "" {
		return nil, fmt.Errorf("%w: description must not be empty", ErrInvalidTool)
	}
	if input.HandlerName != nil {
		if _, ok := s.handlers.Get(*input.HandlerName); !ok {
			return nil, fmt.Errorf("%w: %q is not in the registry", ErrHandlerNotFound, *input.HandlerName)
		}
	}
	if input.ParametersSchema != nil {
		if err := checkSchema(*input.ParametersSchema); err != nil {
			return nil, err
		}
	}

	tool, err := s.db.UpdateTool(id, input)
	if db.IsUniqueViolation(err) {
		return nil, fmt.Errorf("%w: %q", ErrToolExists, *input.Name)
	}
	if err != nil {
		return nil, err
	}
	if tool == nil {
		return nil, fmt.Errorf("%w: id %d", ErrToolNotFound, id)
	}
	return tool, nil
}

// DeleteTool removes a tool. Soft deletion deactivates the row and retains
// it; hard deletion removes it.
func (s *ToolService) DeleteTool(id int64, soft bool) error {
	var (
		ok  bool
		err error
	)
	if soft {
		ok, err = s.db.SoftDeleteTool(id)
	} else {
		ok, err = s.db.DeleteTool(id)
	}
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: id %d", ErrToolNotFound, id)
	}
	return nil
}

// ActivateTool reverses a soft delete.
func (s *ToolService) ActivateTool(id int64) error {
	ok, err := s.db.ActivateTool(id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: id %d", ErrToolNotFound, id)
	}
	return nil
}

// ExecuteTool resolves the named tool and invokes its handler with the given
// parameters, returning the handler's result mapping unmodified. An inactive
// tool is indistinguishable from an absent one. A panic inside the handler is
// converted to a HandlerExecutionError carrying the original message.
func (s *ToolService) ExecuteTool(name string, params map[string]any) (result map[string]any, err error) {
	tool, err := s.db.GetToolByName(name)
	if err != nil {
		return nil, err
	}
	if tool == nil || !tool.IsActive {
		return nil, fmt.Errorf("%w: %q", ErrToolNotFound, name)
	}

	h, ok := s.handlers.Get(tool.HandlerName)
	if !ok {
		// Registry drift: the handler was valid at create time but is no
		// longer registered.
		return nil, fmt.Errorf("%w: %q", ErrHandlerNotFound, tool.HandlerName)
	}

	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = &HandlerExecutionError{Tool: name, Cause: fmt.Errorf("%v", r)}
		}
	}()
	return h(params), nil
}

func validateName(name string) error {
	// Length is in characters, not bytes.
	n := utf8.RuneCountInString(name)
	if n < 1 || n > 100 {
		return fmt.Errorf("%w: name must be 1-100 characters", ErrInvalidTool)
	}
	return nil
}

// checkSchema verifies that a parameters_schema document compiles as a JSON
// Schema. The schema is otherwise opaque: invocation parameters are passed to
// handlers without validation.
func checkSchema(schemaJSON string) error {
	if schemaJSON == "" || schemaJSON == "{}" {
		return nil
	}
	var doc any
	if err := json.Unmarshal([]byte(schemaJSON), &doc); err != nil {
		return fmt.Errorf("%w: parameters_schema is not valid JSON: %v", ErrInvalidTool, err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", doc); err != nil {
		return fmt.Errorf("%w: parameters_schema: %v", ErrInvalidTool, err)
	}
	if _, err := c.Compile("schema.json"); err != nil {
		return fmt.Errorf("%w: parameters_schema: %v", ErrInvalidTool, err)
	}
	return nil
}
