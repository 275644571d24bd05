// Package llm adapts chat-completion providers with tool calling to a single
// request/response shape built on models.Message.
package llm

import (
	"context"

	"github.com/masa061580/pubmed-search-assistant/internal/models"
)

// Tool declares a capability the model may call. Parameters is a JSON Schema
// object.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Request is one completion call: a system prompt, the conversation so far and
// the tools on offer. A nil Tools slice disables tool calling.
type Request struct {
	System   string
	Messages []models.Message
	Tools    []Tool
}

// ChatModel produces the next assistant message for a Request. The returned
// message has RoleAssistant and either Content, ToolCalls or both.
type ChatModel interface {
	Complete(ctx context.Context, req Request) (models.Message, error)
}

// requiredFields extracts the "required" list from a JSON Schema map.
func requiredFields(schema map[string]any) []string {
	switch req := schema["required"].(type) {
	case []string:
		return req
	case []any:
		out := make([]string, 0, len(req))
		for _, r := range req {
			if s, ok := r.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
