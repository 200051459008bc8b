package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"chloe-bot/internal/domain"
	"chloe-bot/internal/markdown"
)

// SendMessageTool delivers the assistant's reply to the Discord channel the
// conversation came from. Content passes through markdown escaping and the
// Discord length cap before posting.
type SendMessageTool struct {
	logger *slog.Logger
}

// NewSendMessageTool creates the Discord delivery tool.
func NewSendMessageTool(logger *slog.Logger) *SendMessageTool {
	return &SendMessageTool{logger: logger}
}

func (t *SendMessageTool) Name() string { return "discord_send_message" }

func (t *SendMessageTool) Description() string {
	return "Send your response to the Discord channel. ALWAYS use this tool to reply to the user. The message content to send to Discord. Be natural, conversational, and helpful."
}

func (t *SendMessageTool) NeedsSideChannel() bool    { return true }
func (t *SendMessageTool) NeedsResultFeedback() bool { return false }

func (t *SendMessageTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"content": {"type": "string", "description": "The message content to send to Discord. Be natural, conversational, and helpful. Use Discord markdown formatting if needed."},
				"reply_to_original": {"type": "boolean", "description": "Whether to reply to the original message (default: true)"}
			},
			"required": ["content"]
		}`),
	}
}

type sendMessageParams struct {
	Content         string `json:"content"`
	ReplyToOriginal *bool  `json:"reply_to_original,omitempty"`
}

func (t *SendMessageTool) Execute(ctx context.Context, params json.RawMessage, sc domain.SideChannel) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.discord_send_message", t.logger, params,
		func(ctx context.Context, span trace.Span, p sendMessageParams) (any, error) {
			if err := RequireField("content", strings.TrimSpace(p.Content)); err != nil {
				return nil, err
			}

			content := markdown.Escape(p.Content)
			content = markdown.TruncateForDiscord(content)

			reply := true
			if p.ReplyToOriginal != nil {
				reply = *p.ReplyToOriginal
			}

			if err := sc.SendMessage(ctx, content, reply); err != nil {
				return nil, fmt.Errorf("send message: %w", err)
			}

			t.logger.Debug("message delivered", "channel", sc.ChannelID(), "length", len(content), "reply", reply)
			return "Message sent", nil
		},
	)
}
