package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/hupe1980/agentgate/coerce"
	"github.com/hupe1980/agentgate/task"
)

// JSON-RPC 2.0 error codes used by the MCP endpoint.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternalError  = -32603
)

type jsonRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type jsonRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type jsonRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *jsonRPCError   `json:"error,omitempty"`
}

type mcpToolInfo struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

type mcpContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type mcpCallResult struct {
	Content []mcpContent `json:"content"`
	IsError bool         `json:"isError"`
}

type mcpCallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// handleMCP serves the JSON-RPC tool protocol at POST /mcp: initialization,
// tool listing and tool invocation against the declared tool registry.
func (s *Server) handleMCP(w http.ResponseWriter, r *http.Request) {
	var req jsonRPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeRPCError(w, nil, codeParseError, fmt.Sprintf("parse error: %v", err))
		return
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		s.writeRPCError(w, req.ID, codeInvalidRequest, "invalid request: jsonrpc must be \"2.0\" with a method")
		return
	}

	switch req.Method {
	case "initialize":
		s.writeRPCResult(w, req.ID, map[string]any{
			"protocolVersion": "2024-11-05",
			"capabilities":    map[string]any{"tools": map[string]any{}},
			"serverInfo": map[string]any{
				"name":    s.config.AgentName,
				"version": "1.0.0",
			},
		})
	case "tools/list":
		s.handleToolsList(w, req)
	case "tools/call":
		s.handleToolsCall(w, r, req)
	default:
		s.writeRPCError(w, req.ID, codeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method))
	}
}

func (s *Server) handleToolsList(w http.ResponseWriter, req jsonRPCRequest) {
	tools := s.engine.Tools().List()
	infos := make([]mcpToolInfo, 0, len(tools))
	for _, t := range tools {
		infos = append(infos, mcpToolInfo{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: inputSchemaFor(t.Parameters()),
		})
	}
	s.writeRPCResult(w, req.ID, map[string]any{"tools": infos})
}

func (s *Server) handleToolsCall(w http.ResponseWriter, r *http.Request, req jsonRPCRequest) {
	var params mcpCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		s.writeRPCError(w, req.ID, codeInvalidParams, fmt.Sprintf("invalid params: %v", err))
		return
	}
	if params.Name == "" {
		s.writeRPCError(w, req.ID, codeInvalidParams, "invalid params: tool name required")
		return
	}

	t, ok := s.engine.Tools().Get(params.Name)
	if !ok {
		s.writeRPCError(w, req.ID, codeInvalidParams, fmt.Sprintf("unknown tool: %s", params.Name))
		return
	}

	args, err := s.coerceArguments(t.Parameters(), params.Arguments)
	if err != nil {
		s.writeRPCError(w, req.ID, codeInvalidParams, err.Error())
		return
	}

	ex := s.pool.Acquire()
	defer s.pool.Release(ex)

	result, err := t.Call(r.Context(), args)
	if err != nil {
		s.logger.Warn("server.mcp_tool_failed", "tool", params.Name, "error", err.Error())
		s.writeRPCResult(w, req.ID, mcpCallResult{
			Content: []mcpContent{{Type: "text", Text: err.Error()}},
			IsError: true,
		})
		return
	}

	s.writeRPCResult(w, req.ID, mcpCallResult{
		Content: []mcpContent{{Type: "text", Text: stringifyToolResult(result)}},
	})
}

// coerceArguments validates call arguments against the tool's declared
// parameter types before invocation.
func (s *Server) coerceArguments(schema task.Schema, args map[string]any) (map[string]any, error) {
	coerced := make(map[string]any, len(args))
	for name, value := range args {
		coerced[name] = value
	}
	for _, f := range schema {
		raw, ok := args[f.Name]
		if !ok {
			if f.Optional {
				continue
			}
			return nil, fmt.Errorf("invalid params: missing required argument %q", f.Name)
		}
		v, err := s.engine.Coercer().Coerce(raw, f.Type)
		if err != nil {
			return nil, fmt.Errorf("invalid params: argument %q: %v", f.Name, err)
		}
		coerced[f.Name] = v
	}
	return coerced, nil
}

// inputSchemaFor renders a parameter schema as a JSON-Schema object for the
// tool listing.
func inputSchemaFor(schema task.Schema) map[string]any {
	properties := make(map[string]any, len(schema))
	required := make([]string, 0, len(schema))
	for _, f := range schema {
		prop := map[string]any{}
		if f.Type != coerce.TypeAny {
			prop["type"] = f.Type.String()
		}
		properties[f.Name] = prop
		if !f.Optional {
			required = append(required, f.Name)
		}
	}
	out := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		out["required"] = required
	}
	return out
}

// stringifyToolResult renders a tool result for the text content block.
// Structured results are serialized as JSON.
func stringifyToolResult(result any) string {
	switch v := result.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}

func (s *Server) writeRPCResult(w http.ResponseWriter, id json.RawMessage, result any) {
	writeJSON(w, http.StatusOK, jsonRPCResponse{JSONRPC: "2.0", ID: id, Result: result})
}

func (s *Server) writeRPCError(w http.ResponseWriter, id json.RawMessage, code int, message string) {
	writeJSON(w, http.StatusOK, jsonRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &jsonRPCError{Code: code, Message: message},
	})
}
