package task

import (
	"context"
	"fmt"

	"github.com/hupe1980/agentgate/coerce"
)

// Field declares a single named, typed schema field. Fields are required
// unless explicitly marked optional.
type Field struct {
	Name     string
	Type     coerce.Type
	Optional bool
}

// Schema is an ordered list of declared fields.
type Schema []Field

// Fields is a convenience constructor resolving type names once, at
// registration time. Unknown type names panic: schemas are static program
// configuration, not runtime input.
//
//	task.Fields("items", "array", "total", "number")
func Fields(pairs ...string) Schema {
	if len(pairs)%2 != 0 {
		panic("task.Fields: name/type pairs required")
	}
	schema := make(Schema, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		t, err := coerce.ParseType(pairs[i+1])
		if err != nil {
			panic(fmt.Sprintf("task.Fields: field %q: %v", pairs[i], err))
		}
		schema = append(schema, Field{Name: pairs[i], Type: t})
	}
	return schema
}

// Names returns the declared field names in schema order.
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, f := range s {
		names[i] = f.Name
	}
	return names
}

// Handle gives task implementations access to nested execution without
// binding to an implicit receiver. The engine passes a Handle into every
// code-backed implementation.
type Handle interface {
	// Context returns the ambient cancellation context of the invocation.
	Context() context.Context

	// ExecuteTask runs another registered task with the given inputs.
	ExecuteTask(name string, inputs map[string]any) (map[string]any, error)

	// ExecuteTool invokes a declared tool with the given arguments.
	ExecuteTool(name string, args map[string]any) (any, error)

	// ExecuteLLM sends a raw prompt to the hosted model client and returns
	// the response text.
	ExecuteLLM(prompt string) (string, error)
}

// Implementation is a deterministic task body. It receives already-validated
// inputs and returns raw outputs that the engine validates against the
// declared output schema.
type Implementation func(h Handle, inputs map[string]any) (map[string]any, error)

// Description declares a task. Immutable after registration.
type Description struct {
	// Name uniquely identifies the task within a registry.
	Name string

	// Inputs and Outputs declare the task's I/O shape.
	Inputs  Schema
	Outputs Schema

	// Instructions is optional natural-language text; if present the task
	// can be dispatched to a model.
	Instructions string

	// Implementation is an optional deterministic body; if present it is
	// preferred over model dispatch.
	Implementation Implementation
}

// CodeBacked reports whether the task has a deterministic implementation.
func (d *Description) CodeBacked() bool { return d.Implementation != nil }

// ModelBacked reports whether the task carries instructions for model dispatch.
func (d *Description) ModelBacked() bool { return d.Instructions != "" }
