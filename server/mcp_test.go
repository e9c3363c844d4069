package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentgate/coerce"
	"github.com/hupe1980/agentgate/engine"
	"github.com/hupe1980/agentgate/task"
	"github.com/hupe1980/agentgate/tool"
)

func newMCPServer(t *testing.T) *httptest.Server {
	t.Helper()
	e := engine.New()
	e.Tools().Register(tool.NewFuncTool("get_weather", "Look up the weather for a city",
		append(task.Fields("city", "string"), task.Field{Name: "units", Type: coerce.TypeString, Optional: true}),
		func(ctx context.Context, args map[string]any) (any, error) {
			return map[string]any{"city": args["city"], "forecast": "sunny"}, nil
		}))
	e.Tools().Register(tool.NewFuncTool("fail_always", "Always fails",
		nil,
		func(ctx context.Context, args map[string]any) (any, error) {
			return nil, tool.NewError("fail_always", "backend unavailable", tool.CodeExecution)
		}))

	s := New(e, func(o *Options) {
		o.Config = Config{PoolSize: 2, AgentName: "test-agent", ModelID: "test-model"}
	})
	ts := httptest.NewServer(s.Router())
	t.Cleanup(ts.Close)
	return ts
}

func rpc(t *testing.T, ts *httptest.Server, payload map[string]any) map[string]any {
	t.Helper()
	resp, body := postJSON(t, ts, "/mcp", payload, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "2.0", body["jsonrpc"])
	return body
}

func TestMCPInitialize(t *testing.T) {
	ts := newMCPServer(t)

	body := rpc(t, ts, map[string]any{"jsonrpc": "2.0", "id": 1, "method": "initialize"})
	result := body["result"].(map[string]any)
	assert.NotEmpty(t, result["protocolVersion"])
	info := result["serverInfo"].(map[string]any)
	assert.Equal(t, "test-agent", info["name"])
}

func TestMCPToolsList(t *testing.T) {
	ts := newMCPServer(t)

	body := rpc(t, ts, map[string]any{"jsonrpc": "2.0", "id": 1, "method": "tools/list"})
	result := body["result"].(map[string]any)
	tools := result["tools"].([]any)
	require.Len(t, tools, 2)

	// Registry listing is sorted by name.
	first := tools[0].(map[string]any)
	assert.Equal(t, "fail_always", first["name"])

	weather := tools[1].(map[string]any)
	assert.Equal(t, "get_weather", weather["name"])
	assert.Equal(t, "Look up the weather for a city", weather["description"])

	schema := weather["inputSchema"].(map[string]any)
	assert.Equal(t, "object", schema["type"])
	properties := schema["properties"].(map[string]any)
	city := properties["city"].(map[string]any)
	assert.Equal(t, "string", city["type"])
	required := schema["required"].([]any)
	assert.Equal(t, []any{"city"}, required)
}

func TestMCPToolsCall(t *testing.T) {
	ts := newMCPServer(t)

	body := rpc(t, ts, map[string]any{
		"jsonrpc": "2.0", "id": 2, "method": "tools/call",
		"params": map[string]any{"name": "get_weather", "arguments": map[string]any{"city": "Berlin"}},
	})
	result := body["result"].(map[string]any)
	assert.Equal(t, false, result["isError"])
	content := result["content"].([]any)
	require.Len(t, content, 1)
	block := content[0].(map[string]any)
	assert.Equal(t, "text", block["type"])
	assert.Contains(t, block["text"], "Berlin")
	assert.Contains(t, block["text"], "sunny")
}

func TestMCPToolsCallCoercesArguments(t *testing.T) {
	ts := newMCPServer(t)

	// A numeric city is coerced to its string form rather than rejected.
	body := rpc(t, ts, map[string]any{
		"jsonrpc": "2.0", "id": 3, "method": "tools/call",
		"params": map[string]any{"name": "get_weather", "arguments": map[string]any{"city": 1600}},
	})
	result := body["result"].(map[string]any)
	assert.Equal(t, false, result["isError"])
}

func TestMCPToolsCallMissingRequiredArgument(t *testing.T) {
	ts := newMCPServer(t)

	body := rpc(t, ts, map[string]any{
		"jsonrpc": "2.0", "id": 4, "method": "tools/call",
		"params": map[string]any{"name": "get_weather", "arguments": map[string]any{}},
	})
	rpcErr := body["error"].(map[string]any)
	assert.Equal(t, float64(-32602), rpcErr["code"])
	assert.Contains(t, rpcErr["message"], "city")
}

func TestMCPToolsCallUnknownTool(t *testing.T) {
	ts := newMCPServer(t)

	body := rpc(t, ts, map[string]any{
		"jsonrpc": "2.0", "id": 5, "method": "tools/call",
		"params": map[string]any{"name": "no_such_tool"},
	})
	rpcErr := body["error"].(map[string]any)
	assert.Equal(t, float64(-32602), rpcErr["code"])
}

func TestMCPToolFailureReportedAsResult(t *testing.T) {
	ts := newMCPServer(t)

	body := rpc(t, ts, map[string]any{
		"jsonrpc": "2.0", "id": 6, "method": "tools/call",
		"params": map[string]any{"name": "fail_always"},
	})
	result := body["result"].(map[string]any)
	assert.Equal(t, true, result["isError"])
	content := result["content"].([]any)
	block := content[0].(map[string]any)
	assert.Contains(t, block["text"], "backend unavailable")
}

func TestMCPMethodNotFound(t *testing.T) {
	ts := newMCPServer(t)

	body := rpc(t, ts, map[string]any{"jsonrpc": "2.0", "id": 7, "method": "resources/list"})
	rpcErr := body["error"].(map[string]any)
	assert.Equal(t, float64(-32601), rpcErr["code"])
}

func TestMCPInvalidRequest(t *testing.T) {
	ts := newMCPServer(t)

	body := rpc(t, ts, map[string]any{"jsonrpc": "1.0", "id": 8, "method": "tools/list"})
	rpcErr := body["error"].(map[string]any)
	assert.Equal(t, float64(-32600), rpcErr["code"])
}

func TestMCPParseError(t *testing.T) {
	ts := newMCPServer(t)

	resp, err := ts.Client().Post(ts.URL+"/mcp", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	rpcErr := body["error"].(map[string]any)
	assert.Equal(t, float64(-32700), rpcErr["code"])
}
