package tools

import (
	"context"
	"fmt"

	"hypertrader/pkg/errors"
)

// Tool represents a callable capability exposed to the model.
// Execute never panics and never returns a Go error: every outcome is a Result.
type Tool interface {
	// Spec returns the declarative description of the tool.
	Spec() Spec
	// Execute performs the tool's action using validated arguments.
	Execute(ctx context.Context, args Args) Result
}

// HandlerFunc is the function signature for tool handlers.
// A payload with "simulated": true marks the result as a dry run.
type HandlerFunc func(ctx context.Context, args Args) (map[string]interface{}, error)

// FunctionTool is a Tool implementation backed by a handler function.
type FunctionTool struct {
	spec    Spec
	handler HandlerFunc
}

// New creates a new function-backed Tool.
func New(spec Spec, handler HandlerFunc) Tool {
	return &FunctionTool{
		spec:    spec,
		handler: handler,
	}
}

// Spec returns the tool spec.
func (t *FunctionTool) Spec() Spec { return t.spec }

// Execute runs the handler and converts errors and panics into failure results.
func (t *FunctionTool) Execute(ctx context.Context, args Args) (result Result) {
	name := t.spec.Name

	defer func() {
		if r := recover(); r != nil {
			result = Failure(name, errors.KindAdapterExecution, fmt.Sprintf("tool panicked: %v", r))
		}
	}()

	if t.handler == nil {
		return Failure(name, errors.KindAdapterExecution, "tool handler is not defined")
	}

	payload, err := t.handler(ctx, args)
	if err != nil {
		return FailureFromError(name, err)
	}

	if sim, _ := payload["simulated"].(bool); sim {
		return Simulated(name, payload)
	}
	return Success(name, payload)
}
