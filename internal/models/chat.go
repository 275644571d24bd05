package models

import (
	"encoding/json"
	"time"
)

// Message roles stored in conversation history.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ToolCall is a capability invocation requested by the model.
type ToolCall struct {
	ID        string          `json:"id"        bson:"id"`
	Name      string          `json:"name"      bson:"name"`
	Arguments json.RawMessage `json:"arguments" bson:"arguments"`
}

// Message is one entry of a conversation history.
type Message struct {
	Role       string     `json:"role"                 bson:"role"`
	Content    string     `json:"content"              bson:"content"`
	Name       string     `json:"name,omitempty"       bson:"name,omitempty"`
	ToolCalls  []ToolCall `json:"toolCalls,omitempty"  bson:"tool_calls,omitempty"`
	ToolCallID string     `json:"toolCallId,omitempty" bson:"tool_call_id,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"            bson:"created_at"`
}

// ChatRequest is the JSON body for POST /api/chat.
type ChatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversationId"`
}

// ChatResponse is the JSON body returned by POST /api/chat.
type ChatResponse struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversationId"`
}

// Transcript is a conversation snapshot written to the archive on eviction.
type Transcript struct {
	ConversationID string    `json:"conversationId"`
	Messages       []Message `json:"messages"`
	ArchivedAt     time.Time `json:"archivedAt"`
}
