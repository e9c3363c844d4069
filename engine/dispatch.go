package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/agentgate/task"
)

type dispatchResult struct {
	outputs map[string]any
	err     error
}

// dispatchWithTimeout runs the dispatch step under the effective deadline.
// Once the deadline fires the underlying work is cancelled and abandoned; its
// result, if it later arrives, is discarded. The timeout error is returned
// without waiting, which makes timeout authoritative over any error the
// dispatched code was raising at the moment of cancellation.
func (e *Engine) dispatchWithTimeout(
	ctx context.Context,
	desc *task.Description,
	inputs map[string]any,
	timeout time.Duration,
	start time.Time,
) (map[string]any, error) {
	dctx := ctx
	cancel := context.CancelFunc(func() {})
	if timeout > 0 {
		dctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	// Buffered so an abandoned dispatch can still deliver and terminate.
	resCh := make(chan dispatchResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				resCh <- dispatchResult{err: fmt.Errorf("panic in task %s: %v", desc.Name, r)}
			}
		}()
		outputs, err := e.dispatch(dctx, desc, inputs)
		resCh <- dispatchResult{outputs: outputs, err: err}
	}()

	if timeout <= 0 {
		res := <-resCh
		return res.outputs, res.err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case res := <-resCh:
		return res.outputs, res.err
	case <-timer.C:
		cancel()
		return nil, &task.TimeoutError{Task: desc.Name, Elapsed: time.Since(start), Timeout: timeout}
	}
}

// dispatch invokes the deterministic implementation when present, otherwise
// performs a model round trip.
func (e *Engine) dispatch(ctx context.Context, desc *task.Description, inputs map[string]any) (map[string]any, error) {
	if desc.CodeBacked() {
		return desc.Implementation(&handle{engine: e, ctx: ctx}, inputs)
	}
	return e.dispatchModel(ctx, desc, inputs)
}

// dispatchModel sends a structured prompt to the model client and parses the
// response. A parse failure triggers exactly one clarifying re-prompt before
// the failure is surfaced; this one-shot reparse happens inside a single
// attempt and does not consume the retry budget.
func (e *Engine) dispatchModel(ctx context.Context, desc *task.Description, inputs map[string]any) (map[string]any, error) {
	if e.client == nil {
		return nil, fmt.Errorf("task %s is model-backed but no model client is configured", desc.Name)
	}

	prompt := buildPrompt(desc, inputs)
	resp, err := e.client.SendMessage(ctx, prompt)
	if err != nil {
		return nil, err
	}

	outputs, perr := parseStructured(resp.Content, desc.Outputs)
	if perr == nil {
		return outputs, nil
	}

	e.logger.Debug("engine.reparse", "task", desc.Name, "error", perr.Error())
	reprompt := prompt + "\n\nYour previous reply could not be parsed. Respond with only a valid JSON object containing the fields listed above, no prose."
	resp, err = e.client.SendMessage(ctx, reprompt)
	if err != nil {
		return nil, err
	}
	outputs, perr = parseStructured(resp.Content, desc.Outputs)
	if perr != nil {
		return nil, fmt.Errorf("model output could not be parsed as structured data: %w", perr)
	}
	return outputs, nil
}

// buildPrompt embeds the task's instructions, the input values and the
// required output field list into a single structured prompt.
func buildPrompt(desc *task.Description, inputs map[string]any) string {
	var sb strings.Builder
	sb.WriteString(desc.Instructions)
	sb.WriteString("\n\nInputs:\n")
	if encoded, err := json.MarshalIndent(inputs, "", "  "); err == nil {
		sb.Write(encoded)
	} else {
		fmt.Fprintf(&sb, "%v", inputs)
	}
	sb.WriteString("\n\nRespond with a JSON object containing exactly these fields:\n")
	for _, f := range desc.Outputs {
		fmt.Fprintf(&sb, "- %s (%s)\n", f.Name, f.Type)
	}
	return sb.String()
}

// parseStructured extracts structured data from model output, accepting a
// bare JSON value, a fenced code block, or the first well-formed object found
// in the text. A bare non-object value is wrapped when the schema declares a
// single output field.
func parseStructured(content string, outputs task.Schema) (map[string]any, error) {
	text := strings.TrimSpace(content)
	if text == "" {
		return nil, fmt.Errorf("empty model output")
	}

	if fenced, ok := extractFencedBlock(text); ok {
		text = fenced
	}

	var value any
	if err := json.Unmarshal([]byte(text), &value); err == nil {
		if obj, ok := value.(map[string]any); ok {
			return obj, nil
		}
		if len(outputs) == 1 {
			return map[string]any{outputs[0].Name: value}, nil
		}
		return nil, fmt.Errorf("model output is a bare %T but %d output fields are declared", value, len(outputs))
	}

	if obj, ok := firstObjectIn(text); ok {
		return obj, nil
	}
	return nil, fmt.Errorf("no well-formed object found in model output")
}

// extractFencedBlock returns the body of the first ``` fenced code block,
// stripping an optional language tag.
func extractFencedBlock(text string) (string, bool) {
	open := strings.Index(text, "```")
	if open < 0 {
		return "", false
	}
	rest := text[open+3:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		// Drop the language tag line (e.g. "json").
		firstLine := strings.TrimSpace(rest[:nl])
		if firstLine == "" || !strings.ContainsAny(firstLine, "{[\"") {
			rest = rest[nl+1:]
		}
	}
	closing := strings.Index(rest, "```")
	if closing < 0 {
		return "", false
	}
	return strings.TrimSpace(rest[:closing]), true
}

// firstObjectIn scans for the first well-formed JSON object embedded in text.
func firstObjectIn(text string) (map[string]any, bool) {
	for idx := 0; idx < len(text); idx++ {
		if text[idx] != '{' {
			continue
		}
		dec := json.NewDecoder(strings.NewReader(text[idx:]))
		var obj map[string]any
		if err := dec.Decode(&obj); err == nil {
			return obj, true
		}
	}
	return nil, false
}
