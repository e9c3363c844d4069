package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentgate/model"
	"github.com/hupe1980/agentgate/task"
)

func summarize() *task.Description {
	return &task.Description{
		Name:         "summarize",
		Inputs:       task.Fields("text", "string"),
		Outputs:      task.Fields("summary", "string"),
		Instructions: "Summarize the given text in one sentence.",
	}
}

func newModelEngine(t *testing.T, client *model.MockClient) *Engine {
	t.Helper()
	e := newTestEngine(t, func(o *Options) { o.Client = client })
	require.NoError(t, e.Tasks().Register(summarize()))
	return e
}

func TestModelDispatchParsesBareObject(t *testing.T) {
	client := model.NewMockClient()
	client.Script(`{"summary": "short and sweet"}`)

	e := newModelEngine(t, client)
	outputs, err := e.Execute(context.Background(), "summarize", map[string]any{"text": "a long story"})
	require.NoError(t, err)
	assert.Equal(t, "short and sweet", outputs["summary"])

	prompts := client.Prompts()
	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0], "Summarize the given text")
	assert.Contains(t, prompts[0], "a long story")
	assert.Contains(t, prompts[0], "summary (string)")
}

func TestModelDispatchParsesFencedBlock(t *testing.T) {
	client := model.NewMockClient()
	client.Script("Here is the result:\n```json\n{\"summary\": \"fenced\"}\n```\nHope that helps!")

	e := newModelEngine(t, client)
	outputs, err := e.Execute(context.Background(), "summarize", map[string]any{"text": "x"})
	require.NoError(t, err)
	assert.Equal(t, "fenced", outputs["summary"])
}

func TestModelDispatchWrapsBareValue(t *testing.T) {
	client := model.NewMockClient()
	client.Script(`"just a plain sentence"`)

	e := newModelEngine(t, client)
	outputs, err := e.Execute(context.Background(), "summarize", map[string]any{"text": "x"})
	require.NoError(t, err)
	assert.Equal(t, "just a plain sentence", outputs["summary"])
}

func TestModelDispatchFindsEmbeddedObject(t *testing.T) {
	client := model.NewMockClient()
	client.Script(`Sure! The answer is {"summary": "embedded"} as requested.`)

	e := newModelEngine(t, client)
	outputs, err := e.Execute(context.Background(), "summarize", map[string]any{"text": "x"})
	require.NoError(t, err)
	assert.Equal(t, "embedded", outputs["summary"])
}

// A parse failure triggers exactly one clarifying re-prompt within the same
// attempt, before normal retry/backoff is consulted.
func TestModelDispatchRepromptsOnceOnMalformedOutput(t *testing.T) {
	client := model.NewMockClient()
	client.Script("I cannot answer in JSON, sorry.", `{"summary": "second try"}`)

	e := newModelEngine(t, client)
	outputs, err := e.Execute(context.Background(), "summarize", map[string]any{"text": "x"}, WithMaxRetries(0))
	require.NoError(t, err)
	assert.Equal(t, "second try", outputs["summary"])

	prompts := client.Prompts()
	require.Len(t, prompts, 2)
	assert.Contains(t, prompts[1], "could not be parsed")
}

func TestModelDispatchFailsAfterReprompt(t *testing.T) {
	client := model.NewMockClient()
	client.Script("still not json", "and neither is this")

	e := newModelEngine(t, client)
	_, err := e.Execute(context.Background(), "summarize", map[string]any{"text": "x"}, WithMaxRetries(0))

	var xerr *task.ExecutionError
	require.ErrorAs(t, err, &xerr)
	assert.Contains(t, err.Error(), "structured data")
	assert.Len(t, client.Prompts(), 2)
}

func TestModelDispatchWithoutClient(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Tasks().Register(summarize()))

	_, err := e.Execute(context.Background(), "summarize", map[string]any{"text": "x"}, WithMaxRetries(0))

	var xerr *task.ExecutionError
	require.ErrorAs(t, err, &xerr)
	assert.Contains(t, err.Error(), "no model client")
}

func TestParseStructuredRejectsBareValueForMultiFieldSchema(t *testing.T) {
	outputs := task.Fields("a", "string", "b", "string")
	_, err := parseStructured(`"bare"`, outputs)
	assert.Error(t, err)
}

func TestExtractFencedBlock(t *testing.T) {
	body, ok := extractFencedBlock("prefix\n```json\n{\"k\": 1}\n```\nsuffix")
	require.True(t, ok)
	assert.Equal(t, `{"k": 1}`, body)

	body, ok = extractFencedBlock("```\n[1, 2]\n```")
	require.True(t, ok)
	assert.Equal(t, "[1, 2]", body)

	_, ok = extractFencedBlock("no fences here")
	assert.False(t, ok)
}
