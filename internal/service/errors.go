package service

import (
	"errors"
	"fmt"
)

var (
	// ErrToolNotFound covers both a genuinely absent tool and one that exists
	// but is inactive; callers cannot distinguish the two.
	ErrToolNotFound = errors.New("tool not found")

	// ErrToolExists is returned when a create collides with an existing name,
	// whether caught by the pre-check or by the store's unique constraint.
	ErrToolExists = errors.New("tool already exists")

	// ErrHandlerNotFound is returned when a handler name does not resolve in
	// the registry, at validation time or at execute time.
	ErrHandlerNotFound = errors.New("handler not found")

	// ErrInvalidTool is returned when create/update input fails validation.
	ErrInvalidTool = errors.New("invalid tool")
)

// HandlerExecutionError wraps a failure raised inside a handler during
// invocation, preserving the original message.
type HandlerExecutionError struct {
	Tool  string
	Cause error
}

func (e *HandlerExecutionError) Error() string {
	return fmt.Sprintf("handler execution failed for tool %q: %v", e.Tool, e.Cause)
}

func (e *HandlerExecutionError) Unwrap() error { return e.Cause }
