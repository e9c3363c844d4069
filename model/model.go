package model

import (
	"context"
	"fmt"
	"sync"
)

// Usage captures token usage statistics for a model round trip.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Total returns input plus output tokens.
func (u Usage) Total() int { return u.InputTokens + u.OutputTokens }

// Response is the result of a single model round trip.
type Response struct {
	Content string `json:"content"`
	Usage   Usage  `json:"usage"`
}

// Client is the minimal interface the engine and gateway need to drive a
// language model. Implementations own their transport and credentials.
type Client interface {
	SendMessage(ctx context.Context, prompt string) (*Response, error)
}

// EstimateTokens approximates a token count for usage accounting when the
// provider reports none. Four characters per token is the conventional rough
// cut for English text.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

// MockClient is a lightweight in-memory Client useful for tests and examples.
// Responses can be canned per prompt, scripted in order, or forced to fail.
type MockClient struct {
	mu        sync.Mutex
	responses map[string]string
	script    []string
	failures  []error
	prompts   []string
}

// NewMockClient constructs an empty MockClient. Unmatched prompts yield a
// generic echo response.
func NewMockClient() *MockClient {
	return &MockClient{responses: make(map[string]string)}
}

// AddResponse registers a deterministic canned completion for an exact prompt.
func (m *MockClient) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// Script queues responses returned in order regardless of prompt, taking
// precedence over canned responses.
func (m *MockClient) Script(responses ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, responses...)
}

// FailWith queues errors returned before any response is produced.
func (m *MockClient) FailWith(errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, errs...)
}

// Prompts returns every prompt received, in order.
func (m *MockClient) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.prompts))
	copy(out, m.prompts)
	return out
}

// SendMessage implements Client.
func (m *MockClient) SendMessage(ctx context.Context, prompt string) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	if len(m.failures) > 0 {
		err := m.failures[0]
		m.failures = m.failures[1:]
		m.mu.Unlock()
		return nil, err
	}
	var content string
	switch {
	case len(m.script) > 0:
		content = m.script[0]
		m.script = m.script[1:]
	case m.responses[prompt] != "":
		content = m.responses[prompt]
	default:
		content = fmt.Sprintf("Mock response to: %s", prompt)
	}
	m.mu.Unlock()

	return &Response{
		Content: content,
		Usage: Usage{
			InputTokens:  EstimateTokens(prompt),
			OutputTokens: EstimateTokens(content),
		},
	}, nil
}
