package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Tool is one invocable capability: a named row binding a JSON parameter
// schema to a registered handler function.
type Tool struct {
	ID               int64     `json:"id"`
	Name             string    `json:"name"`
	Description      string    `json:"description"`
	HandlerName      string    `json:"handler_name"`
	ParametersSchema string    `json:"parameters_schema"`
	IsActive         bool      `json:"is_active"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type CreateToolInput struct {
	Name             string
	Description      string
	HandlerName      string
	ParametersSchema string
	IsActive         bool
}

// UpdateToolInput carries a partial update: nil fields are left untouched.
type UpdateToolInput struct {
	Name             *string
	Description      *string
	HandlerName      *string
	ParametersSchema *string
	IsActive         *bool
}

const toolColumns = `id, name, description, handler_name, parameters_schema, is_active, created_at, updated_at`

func scanTool(row interface{ Scan(...any) error }) (*Tool, error) {
	t := &Tool{}
	err := row.Scan(&t.ID, &t.Name, &t.Description, &t.HandlerName,
		&t.ParametersSchema, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// CreateTool inserts a tool row and returns the persisted record with its
// assigned id and timestamps.
func (db *DB) CreateTool(input CreateToolInput) (*Tool, error) {
	schemaJSON := input.ParametersSchema
	if schemaJSON == "" {
		schemaJSON = "{}"
	}
	res, err := db.Exec(`
		INSERT INTO tools (name, description, handler_name, parameters_schema, is_active)
		VALUES (?, ?, ?, ?, ?)`,
		input.Name, input.Description, input.HandlerName, schemaJSON, boolToInt(input.IsActive))
	if err != nil {
		return nil, fmt.Errorf("creating tool: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading tool id: %w", err)
	}
	return db.GetToolByID(id)
}

// GetToolByID returns the tool with the given id, or nil if absent.
func (db *DB) GetToolByID(id int64) (*Tool, error) {
	t, err := scanTool(db.QueryRow(`SELECT `+toolColumns+` FROM tools WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting tool %d: %w", id, err)
	}
	return t, nil
}

// GetToolByName returns the tool with the given name, or nil if absent.
func (db *DB) GetToolByName(name string) (*Tool, error) {
	t, err := scanTool(db.QueryRow(`SELECT `+toolColumns+` FROM tools WHERE name = ?`, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting tool %q: %w", name, err)
	}
	return t, nil
}

// ListTools returns all tools in primary-key order.
func (db *DB) ListTools() ([]*Tool, error) {
	return db.listTools(`SELECT ` + toolColumns + ` FROM tools ORDER BY id`)
}

// ListActiveTools returns only tools with is_active set, in primary-key order.
func (db *DB) ListActiveTools() ([]*Tool, error) {
	return db.listTools(`SELECT ` + toolColumns + ` FROM tools WHERE is_active = 1 ORDER BY id`)
}

func (db *DB) listTools(query string) ([]*Tool, error) {
	rows, err := db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("listing tools: %w", err)
	}
	defer rows.Close()

	var tools []*Tool
	for rows.Next() {
		t, err := scanTool(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning tool: %w", err)
		}
		tools = append(tools, t)
	}
	return tools, rows.Err()
}

// UpdateTool applies the non-nil fields of input to the tool with the given
// id and returns the updated row, or nil if the id is absent.
func (db *DB) UpdateTool(id int64, input UpdateToolInput) (*Tool, error) {
	setClauses := ""
	var args []any
	add := func(clause string, val any) {
		if setClauses != "" {
			setClauses += ", "
		}
		setClauses += clause
		args = append(args, val)
	}
	if input.Name != nil {
		add("name = ?", *input.Name)
	}
	if input.Description != nil {
		add("description = ?", *input.Description)
	}
	if input.HandlerName != nil {
		add("handler_name = ?", *input.HandlerName)
	}
	if input.ParametersSchema != nil {
		add("parameters_schema = ?", *input.ParametersSchema)
	}
	if input.IsActive != nil {
		add("is_active = ?", boolToInt(*input.IsActive))
	}
	if setClauses == "" {
		return db.GetToolByID(id)
	}

	args = append(args, id)
	res, err := db.Exec(`UPDATE tools SET `+setClauses+` WHERE id = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("updating tool %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	return db.GetToolByID(id)
}

// SoftDeleteTool deactivates the tool. The row is retained; returns false if
// the id is absent.
func (db *DB) SoftDeleteTool(id int64) (bool, error) {
	return db.setActive(id, false)
}

// ActivateTool reverses a soft delete. Returns false if the id is absent.
func (db *DB) ActivateTool(id int64) (bool, error) {
	return db.setActive(id, true)
}

func (db *DB) setActive(id int64, active bool) (bool, error) {
	res, err := db.Exec(`UPDATE tools SET is_active = ? WHERE id = ?`, boolToInt(active), id)
	if err != nil {
		return false, fmt.Errorf("setting tool %d active=%v: %w", id, active, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteTool removes the row. Returns false if the id is absent.
func (db *DB) DeleteTool(id int64) (bool, error) {
	res, err := db.Exec(`DELETE FROM tools WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("deleting tool %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CountTools returns the number of rows in the tools table.
func (db *DB) CountTools() (int, error) {
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM tools`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting tools: %w", err)
	}
	return n, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
