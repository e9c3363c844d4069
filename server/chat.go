package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/agentgate/model"
)

// chatMessage is one turn of an OpenAI-style conversation.
type chatMessage struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// chatRequest is the subset of the OpenAI chat-completion request the
// gateway consumes. Sampling parameters are the model client's concern.
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatChoice struct {
	Index        int          `json:"index"`
	Message      *chatMessage `json:"message,omitempty"`
	Delta        *chatMessage `json:"delta,omitempty"`
	FinishReason *string      `json:"finish_reason"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type chatCompletion struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   *chatUsage   `json:"usage,omitempty"`
}

// handleChatCompletions serves POST /v1/chat/completions in both streaming
// and non-streaming form, backed by the hosted agent's model client.
func (s *Server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	rc, err := NewRequestContext(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "validation_error", "message": err.Error()})
		return
	}

	var req chatRequest
	if err := rc.DecodeJSON(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "validation_error", "message": fmt.Sprintf("invalid chat request: %v", err)})
		return
	}
	if len(req.Messages) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "validation_error", "message": "messages must not be empty"})
		return
	}

	ex := s.pool.Acquire()
	defer s.pool.Release(ex)

	prompt := s.buildConversationPrompt(req.Messages)
	resp, err := ex.Engine().Prompt(r.Context(), prompt)
	if err != nil {
		s.writeError(w, err)
		return
	}

	usage := usageFor(prompt, resp)
	id := "chatcmpl-" + uuid.NewString()
	modelID := req.Model
	if modelID == "" {
		modelID = s.config.ModelID
	}

	if req.Stream {
		s.streamCompletion(w, id, modelID, resp.Content, usage)
		return
	}

	finish := "stop"
	writeJSON(w, http.StatusOK, chatCompletion{
		ID:      id,
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   modelID,
		Choices: []chatChoice{{
			Message:      &chatMessage{Role: "assistant", Content: resp.Content},
			FinishReason: &finish,
		}},
		Usage: &usage,
	})
}

// buildConversationPrompt flattens role-tagged turns into a single prompt for
// the model client, with the configured system prompt first.
func (s *Server) buildConversationPrompt(messages []chatMessage) string {
	var b strings.Builder
	if s.config.SystemPrompt != "" {
		b.WriteString("system: ")
		b.WriteString(s.config.SystemPrompt)
		b.WriteString("\n")
	}
	for _, m := range messages {
		role := m.Role
		if role == "" {
			role = "user"
		}
		b.WriteString(role)
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// usageFor reports provider token counts when present, estimated counts
// otherwise, so clients always see usage accounting.
func usageFor(prompt string, resp *model.Response) chatUsage {
	u := resp.Usage
	if u.Total() == 0 {
		u = model.Usage{
			InputTokens:  model.EstimateTokens(prompt),
			OutputTokens: model.EstimateTokens(resp.Content),
		}
	}
	return chatUsage{
		PromptTokens:     u.InputTokens,
		CompletionTokens: u.OutputTokens,
		TotalTokens:      u.Total(),
	}
}

// streamCompletion writes the response as server-sent events: content deltas,
// a final chunk carrying the finish reason and usage, then the DONE marker.
func (s *Server) streamCompletion(w http.ResponseWriter, id, modelID, content string, usage chatUsage) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	created := time.Now().Unix()

	emit := func(chunk chatCompletion) {
		data, err := json.Marshal(chunk)
		if err != nil {
			s.logger.Error("server.stream_encode_failed", "error", err.Error())
			return
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		if flusher != nil {
			flusher.Flush()
		}
	}

	for i, piece := range splitForStreaming(content) {
		delta := &chatMessage{Content: piece}
		if i == 0 {
			delta.Role = "assistant"
		}
		emit(chatCompletion{
			ID:      id,
			Object:  "chat.completion.chunk",
			Created: created,
			Model:   modelID,
			Choices: []chatChoice{{Delta: delta}},
		})
	}

	finish := "stop"
	emit(chatCompletion{
		ID:      id,
		Object:  "chat.completion.chunk",
		Created: created,
		Model:   modelID,
		Choices: []chatChoice{{Delta: &chatMessage{}, FinishReason: &finish}},
		Usage:   &usage,
	})

	fmt.Fprint(w, "data: [DONE]\n\n")
	if flusher != nil {
		flusher.Flush()
	}
}

// splitForStreaming cuts the completion into word-boundary pieces so clients
// observe incremental deltas.
func splitForStreaming(content string) []string {
	if content == "" {
		return nil
	}
	words := strings.SplitAfter(content, " ")
	pieces := make([]string, 0, (len(words)+3)/4)
	for start := 0; start < len(words); start += 4 {
		end := start + 4
		if end > len(words) {
			end = len(words)
		}
		pieces = append(pieces, strings.Join(words[start:end], ""))
	}
	return pieces
}

// handleModels serves GET /v1/models with the single hosted model.
func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"object": "list",
		"data": []map[string]any{{
			"id":       s.config.ModelID,
			"object":   "model",
			"created":  time.Now().Unix(),
			"owned_by": s.config.AgentName,
		}},
	})
}
