package domain

import "time"

// Role constants for message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message represents a single message in a completion request.
type Message struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	Name      string     `json:"name,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	Images    []Image    `json:"images,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// Image is inline image data attached to a message.
type Image struct {
	Base64   string `json:"base64"`
	MIMEType string `json:"mime_type"`
}

// ChatRequest is sent to an LLM provider.
type ChatRequest struct {
	Model       string       `json:"model"`
	Messages    []Message    `json:"messages"`
	Tools       []ToolSchema `json:"tools,omitempty"`
	MaxTokens   int          `json:"max_tokens,omitempty"`
	Temperature float64      `json:"temperature,omitempty"`
}

// ChatResponse is returned from an LLM provider. At most one tool call is
// honored per completion; providers that return several keep only the first.
type ChatResponse struct {
	ID            string    `json:"id"`
	Model         string    `json:"model"`
	Text          string    `json:"text"`
	ToolCall      *ToolCall `json:"tool_call,omitempty"`
	FinishReason  string    `json:"finish_reason,omitempty"`
	SafetyBlocked bool      `json:"safety_blocked,omitempty"`
	Usage         Usage     `json:"usage"`
	CreatedAt     time.Time `json:"created_at"`
}

// Usage tracks token consumption.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
