package services

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/donbr-claude-code/starting-ragchatbot-codebase/internal/platform/anthropic"
	"github.com/donbr-claude-code/starting-ragchatbot-codebase/internal/platform/logger"
)

// ToolCall is one tool_use request extracted from a generative response.
type ToolCall struct {
	ID    string
	Name  string
	Input map[string]any
}

// ToolRegistry maps tool names to handlers and keeps every dispatch failure
// inside the text channel: unknown names, handler errors and handler panics
// all come back as strings the generative service can read. Register tools at
// startup; registration is not synchronized against dispatch.
type ToolRegistry struct {
	log   *logger.Logger
	order []string
	tools map[string]Tool
}

func NewToolRegistry(baseLog *logger.Logger) *ToolRegistry {
	return &ToolRegistry{
		log:   baseLog.With("service", "ToolRegistry"),
		tools: make(map[string]Tool),
	}
}

// Register adds a tool under its definition name. Registering a name twice
// silently replaces the earlier tool.
func (r *ToolRegistry) Register(tool Tool) error {
	name := tool.Definition().Name
	if name == "" {
		return fmt.Errorf("tool must have a 'name' in its definition")
	}
	if _, exists := r.tools[name]; !exists {
		r.order = append(r.order, name)
	}
	r.tools[name] = tool
	return nil
}

// Definitions returns the registered tool schemas in registration order.
func (r *ToolRegistry) Definitions() []anthropic.Tool {
	out := make([]anthropic.Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].Definition())
	}
	return out
}

// Execute dispatches one call by name.
func (r *ToolRegistry) Execute(ctx context.Context, name string, input map[string]any, cites *CitationTracker) (result string) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("Tool execution panicked", "tool", name, "panic", rec)
			result = fmt.Sprintf("Error executing tool %s: %v", name, rec)
		}
	}()

	tool, ok := r.tools[name]
	if !ok {
		return fmt.Sprintf("Tool '%s' not found", name)
	}

	text, err := tool.Execute(ctx, input, cites)
	if err != nil {
		r.log.Warn("Tool execution failed", "tool", name, "error", err)
		return fmt.Sprintf("Error executing tool %s: %s", name, err)
	}
	return text
}

// ExecuteAll dispatches one round of calls. Calls run concurrently but the
// returned slice lines up with the request order.
func (r *ToolRegistry) ExecuteAll(ctx context.Context, calls []ToolCall, cites *CitationTracker) []string {
	results := make([]string, len(calls))
	if len(calls) == 0 {
		return results
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, call := range calls {
		i, call := i, call
		g.Go(func() error {
			results[i] = r.Execute(gctx, call.Name, call.Input, cites)
			return nil
		})
	}
	_ = g.Wait()
	return results
}
