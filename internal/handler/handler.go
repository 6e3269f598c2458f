// Package handler holds the process-wide registry of built-in tool handlers.
// The registry is built once at startup and never mutated afterwards; the
// service layer receives it by reference so tests can substitute their own.
package handler

import (
	"fmt"
	"sort"
	"strconv"
)

// Handler executes a tool's logic given a parameter mapping. The result
// mapping always contains a "success" boolean; failures internal to the
// handler are reported as {"success": false, "error": ...} rather than an
// error return.
type Handler func(params map[string]any) map[string]any

// Registry maps handler names to handler functions. Read-only after New.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry returns the registry of built-in handlers.
func NewRegistry() *Registry {
	return &Registry{handlers: map[string]Handler{
		"echo_handler":           Echo,
		"calculator_add_handler": CalculatorAdd,
	}}
}

// NewRegistryWith builds a registry from an explicit handler table.
func NewRegistryWith(handlers map[string]Handler) *Registry {
	m := make(map[string]Handler, len(handlers))
	for name, h := range handlers {
		m[name] = h
	}
	return &Registry{handlers: m}
}

// Get returns the named handler. The absent case is part of the normal
// contract, signaled by ok=false.
func (r *Registry) Get(name string) (Handler, bool) {
	h, ok := r.handlers[name]
	return h, ok
}

// List returns the known handler names, sorted.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Echo returns the input text prefixed with "Echo: ". Non-string values are
// echoed via their string rendering; original_text keeps the value as given.
func Echo(params map[string]any) map[string]any {
	text, ok := params["text"]
	if !ok {
		text = ""
	}
	rendered, isString := text.(string)
	if !isString {
		rendered = fmt.Sprint(text)
	}
	return map[string]any{
		"success":       true,
		"message":       "Echo: " + rendered,
		"original_text": text,
	}
}

// CalculatorAdd adds two numbers.
func CalculatorAdd(params map[string]any) map[string]any {
	a, okA := params["a"]
	if !okA {
		a = 0
	}
	b, okB := params["b"]
	if !okB {
		b = 0
	}

	fa, err := toFloat(a)
	if err == nil {
		var fb float64
		fb, err = toFloat(b)
		if err == nil {
			return map[string]any{
				"success":   true,
				"operation": "addition",
				"a":         a,
				"b":         b,
				"result":    fa + fb,
			}
		}
	}
	return map[string]any{
		"success": false,
		"error":   fmt.Sprintf("Invalid numbers provided: %v", err),
	}
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, fmt.Errorf("could not convert %q to float", n)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("could not convert %T to float", v)
	}
}
