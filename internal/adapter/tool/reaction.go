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

// unicodeFallbacks suggests a unicode replacement when a requested custom
// emoji does not exist in the guild.
var unicodeFallbacks = map[string]string{
	"poggers":    "😮",
	"pog":        "😮",
	"kekw":       "😂",
	"lul":        "😂",
	"lol":        "😂",
	"sadge":      "😢",
	"sad":        "😢",
	"pepehands":  "😭",
	"monkas":     "😰",
	"nervous":    "😰",
	"thumbsup":   "👍",
	"up":         "👍",
	"thumbsdown": "👎",
	"down":       "👎",
	"heart":      "❤️",
	"love":       "❤️",
	"fire":       "🔥",
	"100":        "💯",
	"perfect":    "💯",
}

// AddReactionTool reacts to the triggering Discord message with a unicode or
// custom guild emoji.
type AddReactionTool struct {
	logger *slog.Logger
}

// NewAddReactionTool creates the Discord reaction tool.
func NewAddReactionTool(logger *slog.Logger) *AddReactionTool {
	return &AddReactionTool{logger: logger}
}

func (t *AddReactionTool) Name() string { return "discord_add_reaction" }

func (t *AddReactionTool) Description() string {
	return "Add a reaction emoji to the current Discord message. You can use Unicode emojis (like 👍, ❤️, 😂) or custom guild emoji names (like :custom_emoji:). IMPORTANT: Only use custom emojis that exist in the guild - check the Available Custom Emojis section in the prompt. When in doubt, use Unicode emojis."
}

func (t *AddReactionTool) NeedsSideChannel() bool    { return true }
func (t *AddReactionTool) NeedsResultFeedback() bool { return false }

func (t *AddReactionTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"emoji": {"type": "string", "description": "The emoji to react with. Can be Unicode emoji (👍, ❤️, 😂) or custom emoji name (:custom_emoji:)"}
			},
			"required": ["emoji"]
		}`),
	}
}

type addReactionParams struct {
	Emoji string `json:"emoji"`
}

func (t *AddReactionTool) Execute(ctx context.Context, params json.RawMessage, sc domain.SideChannel) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.discord_add_reaction", t.logger, params,
		func(ctx context.Context, span trace.Span, p addReactionParams) (any, error) {
			emoji := strings.TrimSpace(p.Emoji)
			if err := RequireField("emoji", emoji); err != nil {
				return nil, err
			}

			if name, ok := markdown.ParseGuildEmojiName(emoji); ok {
				resolved, err := t.resolveCustomEmoji(ctx, sc, name)
				if err != nil {
					return nil, err
				}
				emoji = resolved
			}

			if err := sc.AddReaction(ctx, emoji); err != nil {
				return nil, fmt.Errorf("add reaction: %w", err)
			}

			t.logger.Debug("reaction added", "channel", sc.ChannelID(), "emoji", emoji)
			return "Reaction added", nil
		},
	)
}

// resolveCustomEmoji looks up a custom emoji by name and returns it in the
// name:id form the API expects.
func (t *AddReactionTool) resolveCustomEmoji(ctx context.Context, sc domain.SideChannel, name string) (string, error) {
	emojis, err := sc.GuildEmojis(ctx)
	if err != nil {
		return "", fmt.Errorf("fetch guild emojis: %w", err)
	}

	for _, e := range emojis {
		if e.Name == name {
			return e.Name + ":" + e.ID, nil
		}
	}

	suggestion, ok := unicodeFallbacks[strings.ToLower(name)]
	if !ok {
		suggestion = "👍"
	}
	return "", fmt.Errorf(
		"custom emoji %q not found in guild, try using Unicode emoji %q instead, or check the Available Custom Emojis section for valid options",
		name, suggestion)
}
