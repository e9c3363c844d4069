package tool

import (
	"context"
	"fmt"

	"github.com/hupe1980/agentgate/coerce"
	"github.com/hupe1980/agentgate/task"
)

// FuncTool is a generic adapter that exposes a plain Go function as a Tool.
//
// It validates supplied arguments against the declared parameter schema
// before execution and normalizes error handling so callers receive *Error
// with consistent codes:
//
//	VALIDATION_ERROR -> missing or uncoercible argument
//	EXECUTION_ERROR  -> underlying function returned an error (non-*Error)
//	(custom codes preserved if the function returns *Error directly)
//
// A FuncTool has no internal mutable state after construction and is safe for
// concurrent use by multiple goroutines.
type FuncTool struct {
	name        string
	description string
	parameters  task.Schema
	fn          func(ctx context.Context, args map[string]any) (any, error)
}

// NewFuncTool constructs a FuncTool from an explicit schema and function.
//
//	sum := tool.NewFuncTool(
//	  "calculate_sum",
//	  "Calculate the sum of two numbers",
//	  task.Fields("a", "number", "b", "number"),
//	  func(ctx context.Context, args map[string]any) (any, error) {
//	    return args["a"].(float64) + args["b"].(float64), nil
//	  },
//	)
func NewFuncTool(
	name, description string,
	parameters task.Schema,
	fn func(ctx context.Context, args map[string]any) (any, error),
) *FuncTool {
	return &FuncTool{
		name:        name,
		description: description,
		parameters:  parameters,
		fn:          fn,
	}
}

// Name returns the unique tool name used in listings and routing.
func (t *FuncTool) Name() string { return t.name }

// Description returns the short natural language description of the tool.
func (t *FuncTool) Description() string { return t.description }

// Parameters returns the declared parameter schema.
func (t *FuncTool) Parameters() task.Schema { return t.parameters }

// Call validates the provided args against the declared schema then invokes
// the underlying function. Validation or execution failures are wrapped (or
// passed through) as *Error for uniform downstream handling.
func (t *FuncTool) Call(ctx context.Context, args map[string]any) (any, error) {
	validated := make(map[string]any, len(args))
	for _, p := range t.parameters {
		raw, ok := args[p.Name]
		if !ok {
			if p.Optional {
				continue
			}
			return nil, &Error{
				Tool:    t.name,
				Message: fmt.Sprintf("missing required argument %q", p.Name),
				Code:    CodeValidation,
			}
		}
		v, err := coerce.Coerce(raw, p.Type)
		if err != nil {
			return nil, &Error{
				Tool:    t.name,
				Message: fmt.Sprintf("argument %q: %v", p.Name, err),
				Code:    CodeValidation,
				Details: err,
			}
		}
		validated[p.Name] = v
	}
	// Pass through undeclared extras untouched.
	for k, v := range args {
		if _, ok := validated[k]; !ok {
			validated[k] = v
		}
	}

	result, err := t.fn(ctx, validated)
	if err != nil {
		if toolErr, ok := err.(*Error); ok {
			return nil, toolErr
		}
		return nil, &Error{Tool: t.name, Message: err.Error(), Code: CodeExecution}
	}
	return result, nil
}
