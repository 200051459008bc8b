package domain

import (
	"context"
	"encoding/json"
)

// ToolSchema describes a tool for the LLM function-calling protocol.
type ToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// ToolCall represents an LLM's request to invoke a tool.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolResult is the outcome of executing a tool. ToolCallID always carries
// the id of the invocation that produced it.
type ToolResult struct {
	ToolCallID  string `json:"tool_call_id"`
	Content     string `json:"content"`
	IsError     bool   `json:"is_error"`
	IsRetryable bool   `json:"is_retryable,omitempty"`
}

// Tool is the interface every tool must implement. The side channel is nil
// when the conversation has no live delivery surface; tools that report
// NeedsSideChannel must not be executed without one.
type Tool interface {
	Name() string
	Description() string
	Schema() ToolSchema
	// NeedsSideChannel reports whether Execute requires a live SideChannel.
	NeedsSideChannel() bool
	// NeedsResultFeedback reports whether the result should be fed back to
	// the model for another completion round. Delivery tools return false:
	// their outcome ends the turn.
	NeedsResultFeedback() bool
	Execute(ctx context.Context, params json.RawMessage, sc SideChannel) (*ToolResult, error)
}

// ToolExecutor abstracts tool lookup and execution.
type ToolExecutor interface {
	Get(name string) (Tool, error)
	Schemas() []ToolSchema
	Execute(ctx context.Context, call ToolCall, sc SideChannel) *ToolResult
}

// Emoji is a custom guild emoji available for reactions.
type Emoji struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Animated bool   `json:"animated,omitempty"`
}

// SideChannel is the live delivery surface for the conversation being
// answered: the Discord channel (and trigger message) the turn came from.
type SideChannel interface {
	// SendMessage posts content to the channel. When reply is true the
	// message references the triggering message.
	SendMessage(ctx context.Context, content string, reply bool) error
	// AddReaction reacts to the triggering message with a unicode emoji or
	// a custom guild emoji in name:id form.
	AddReaction(ctx context.Context, emoji string) error
	// GuildEmojis lists custom emojis usable in this channel's guild.
	GuildEmojis(ctx context.Context) ([]Emoji, error)
	// ChannelID identifies the channel, used as the rate-limiter key.
	ChannelID() string
}
