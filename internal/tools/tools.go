// Package tools provides the tool registry: the declared capabilities
// the model may invoke mid-conversation, and their execution against
// the data-access backend.
//
// Execution never fails upward. Unknown tools, missing arguments,
// an absent backend, handler errors, and handler panics all become
// structured {"error": ...} payloads that flow back to the model as
// tool results, so the conversation can continue.
package tools

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bookly/bookly-support/internal/store"
)

// Handler executes one tool call. Expected failure modes (bad
// arguments, not-found lookups) are returned as payloads containing
// an "error" key; a non-nil error means something unexpected broke in
// the backend.
type Handler func(ctx context.Context, backend *store.Store, args map[string]any) (map[string]any, error)

// Tool pairs a definition (advertised to the model) with its handler.
type Tool struct {
	Name        string
	Description string
	// Parameters is a JSON Schema object describing the input.
	Parameters map[string]any
	Handler    Handler
}

// Registry holds the available tools in registration order.
type Registry struct {
	tools  map[string]*Tool
	order  []string
	logger *slog.Logger
}

// NewRegistry builds the registry with all built-in tools and
// validates that every definition has a handler, so a registry gap is
// a startup failure rather than a runtime surprise.
func NewRegistry(logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		tools:  make(map[string]*Tool),
		logger: logger.With("component", "tools"),
	}

	for _, t := range builtins() {
		if err := r.register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) register(t *Tool) error {
	if t.Name == "" {
		return fmt.Errorf("tool with empty name")
	}
	if t.Handler == nil {
		return fmt.Errorf("tool %q has no handler", t.Name)
	}
	if _, dup := r.tools[t.Name]; dup {
		return fmt.Errorf("tool %q registered twice", t.Name)
	}
	r.tools[t.Name] = t
	r.order = append(r.order, t.Name)
	return nil
}

// Definitions returns the tools in registration order.
func (r *Registry) Definitions() []*Tool {
	result := make([]*Tool, 0, len(r.order))
	for _, name := range r.order {
		result = append(result, r.tools[name])
	}
	return result
}

// Has reports whether a tool name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.tools[name]
	return ok
}

// Execute runs a tool by name and always returns a well-formed
// payload. A nil backend short-circuits every call: the model gets an
// explanation it can relay instead of the turn loop dying.
func (r *Registry) Execute(ctx context.Context, backend *store.Store, name string, args map[string]any) (payload map[string]any) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("tool handler panicked", "tool", name, "panic", rec)
			payload = map[string]any{
				"error": fmt.Sprintf("The %s tool failed unexpectedly. Please try again, or I can create a support ticket for follow-up.", name),
			}
		}
	}()

	tool, ok := r.tools[name]
	if !ok {
		return map[string]any{"error": fmt.Sprintf("Unknown tool: %s", name)}
	}

	if backend == nil {
		return map[string]any{
			"error": "Database session not available. Please try again in a moment.",
		}
	}

	if args == nil {
		args = map[string]any{}
	}

	result, err := tool.Handler(ctx, backend, args)
	if err != nil {
		r.logger.Error("tool execution failed", "tool", name, "error", err)
		return map[string]any{
			"error": fmt.Sprintf("The %s tool failed unexpectedly. Please try again, or I can create a support ticket for follow-up.", name),
		}
	}
	return result
}

// Argument extraction helpers. JSON numbers arrive as float64.

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

func intArg(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return def
	}
}
