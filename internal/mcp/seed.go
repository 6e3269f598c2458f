package mcp

import (
	"fmt"
	"log/slog"

	"github.com/hyalen-caldeira/mcp-server-blueprint/internal/db"
	"github.com/hyalen-caldeira/mcp-server-blueprint/internal/service"
)

var seedTools = []db.CreateToolInput{
	{
		Name:        "echo",
		Description: "Echo back the provided text. Useful for testing and simple text repetition.",
		HandlerName: "echo_handler",
		ParametersSchema: `{
			"type": "object",
			"properties": {
				"text": {"type": "string", "description": "The text to echo back"}
			},
			"required": ["text"]
		}`,
		IsActive: true,
	},
	{
		Name:        "calculator_add",
		Description: "Add two numbers together. Performs simple addition operation.",
		HandlerName: "calculator_add_handler",
		ParametersSchema: `{
			"type": "object",
			"properties": {
				"a": {"type": "number", "description": "First number to add"},
				"b": {"type": "number", "description": "Second number to add"}
			},
			"required": ["a", "b"]
		}`,
		IsActive: true,
	},
}

// SeedDefaultTools inserts the built-in tool rows if the table is empty.
func SeedDefaultTools(database *db.DB, svc *service.ToolService) error {
	count, err := database.CountTools()
	if err != nil {
		return fmt.Errorf("seed: checking registry: %w", err)
	}
	if count > 0 {
		return nil // already seeded
	}

	for _, input := range seedTools {
		tool, err := svc.CreateTool(input)
		if err != nil {
			return fmt.Errorf("seed: creating tool %q: %w", input.Name, err)
		}
		slog.Info("seeded tool", "name", tool.Name, "id", tool.ID)
	}
	return nil
}
