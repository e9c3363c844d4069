package engine

import (
	"context"
	"fmt"

	"github.com/hupe1980/agentgate/model"
	"github.com/hupe1980/agentgate/tool"
)

// handle implements task.Handle, giving code-backed task bodies an explicit
// entry point for nested execution bound to the invocation's context.
type handle struct {
	engine *Engine
	ctx    context.Context
}

// Context returns the ambient cancellation context of the invocation.
func (h *handle) Context() context.Context { return h.ctx }

// ExecuteTask runs another registered task through the full engine pipeline
// (validation, timeout, classification, retry).
func (h *handle) ExecuteTask(name string, inputs map[string]any) (map[string]any, error) {
	return h.engine.Execute(h.ctx, name, inputs)
}

// ExecuteTool invokes a declared tool by name.
func (h *handle) ExecuteTool(name string, args map[string]any) (any, error) {
	t, ok := h.engine.tools.Get(name)
	if !ok {
		return nil, tool.NewError(name, "unknown tool", "UNKNOWN_TOOL")
	}
	return t.Call(h.ctx, args)
}

// ExecuteLLM sends a raw prompt to the model client and returns the response text.
func (h *handle) ExecuteLLM(prompt string) (string, error) {
	resp, err := h.engine.Prompt(h.ctx, prompt)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// Prompt performs a raw model round trip, bypassing the task pipeline. Used
// by the gateway's chat-completion endpoint and by ExecuteLLM.
func (e *Engine) Prompt(ctx context.Context, prompt string) (*model.Response, error) {
	if e.client == nil {
		return nil, fmt.Errorf("no model client configured")
	}
	resp, err := e.client.SendMessage(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("model call failed: %w", err)
	}
	return resp, nil
}
