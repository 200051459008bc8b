package usecase

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"chloe-bot/internal/domain"
	"chloe-bot/internal/infra/tracer"
	"chloe-bot/internal/markdown"
)

// Context assembly bounds.
const (
	DefaultReplyChainDepth = 10
	MinReplyChainDepth     = 5
	MaxReplyChainDepth     = 15
	DefaultMinContext      = 3
	DefaultHistoryLimit    = 20
)

// HistorySource resolves platform messages for context assembly. The Discord
// adapter implements it over the gateway cache and REST API.
type HistorySource interface {
	// Lookup fetches a single message by id, or nil when it no longer exists.
	Lookup(ctx context.Context, channelID, messageID string) (*domain.ChatMessage, error)
	// Recent returns up to limit messages from the channel, newest first.
	Recent(ctx context.Context, channelID string, limit int) ([]domain.ChatMessage, error)
}

// ContextBuilder assembles the conversation context for one turn: the reply
// chain behind the trigger message, supplemented with recent channel history
// when the chain is thin.
type ContextBuilder struct {
	history      HistorySource
	botID        string
	botName      string
	chainDepth   int
	minContext   int
	historyLimit int
	logger       *slog.Logger
}

// NewContextBuilder creates a context builder. chainDepth is clamped to
// [MinReplyChainDepth, MaxReplyChainDepth].
func NewContextBuilder(history HistorySource, botID, botName string, chainDepth, minContext, historyLimit int, logger *slog.Logger) *ContextBuilder {
	if chainDepth <= 0 {
		chainDepth = DefaultReplyChainDepth
	}
	if chainDepth < MinReplyChainDepth {
		chainDepth = MinReplyChainDepth
	}
	if chainDepth > MaxReplyChainDepth {
		chainDepth = MaxReplyChainDepth
	}
	if minContext <= 0 {
		minContext = DefaultMinContext
	}
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &ContextBuilder{
		history:      history,
		botID:        botID,
		botName:      botName,
		chainDepth:   chainDepth,
		minContext:   minContext,
		historyLimit: historyLimit,
		logger:       logger,
	}
}

// Build assembles the conversation context for the trigger message.
func (b *ContextBuilder) Build(ctx context.Context, trigger domain.ChatMessage, unsolicited bool) (*domain.ConversationContext, error) {
	ctx, span := tracer.StartSpan(ctx, "context.build",
		trace.WithAttributes(tracer.StringAttr("channel.id", trigger.ChannelID)),
	)
	defer span.End()

	collected := map[string]bool{trigger.ID: true}
	chain := b.walkReplyChain(ctx, trigger, collected)

	// Thin chains get padded with recent channel history so the model has
	// something to anchor on.
	if len(chain) < b.minContext {
		recent, err := b.history.Recent(ctx, trigger.ChannelID, b.historyLimit)
		if err != nil {
			b.logger.Warn("recent history unavailable", "channel", trigger.ChannelID, "error", err)
		}
		for _, m := range recent {
			if collected[m.ID] {
				continue
			}
			if strings.TrimSpace(m.Text) == "" && len(m.Images) == 0 {
				continue
			}
			collected[m.ID] = true
			chain = append(chain, m)
		}
	}

	sort.SliceStable(chain, func(i, j int) bool {
		return chain[i].Timestamp.Before(chain[j].Timestamp)
	})

	for i := range chain {
		chain[i] = b.guard(chain[i])
	}

	convo := &domain.ConversationContext{
		Trigger:      b.guard(trigger),
		Recent:       chain,
		Participants: b.participants(trigger, chain),
		Unsolicited:  unsolicited,
	}

	span.SetAttributes(
		tracer.IntAttr("context.messages", len(chain)),
		tracer.IntAttr("context.participants", len(convo.Participants)),
	)
	tracer.SetOK(span)
	return convo, nil
}

// walkReplyChain follows reply back-links from the trigger, skipping messages
// with no usable content and stopping at missing parents.
func (b *ContextBuilder) walkReplyChain(ctx context.Context, trigger domain.ChatMessage, collected map[string]bool) []domain.ChatMessage {
	var chain []domain.ChatMessage
	parentID := trigger.ReplyToID

	for hop := 0; hop < b.chainDepth && parentID != ""; hop++ {
		msg, err := b.history.Lookup(ctx, trigger.ChannelID, parentID)
		if err != nil {
			b.logger.Debug("reply chain lookup failed", "message", parentID, "error", err)
			break
		}
		if msg == nil {
			break
		}

		parentID = msg.ReplyToID
		if collected[msg.ID] {
			break
		}
		collected[msg.ID] = true

		if strings.TrimSpace(msg.Text) == "" && len(msg.Images) == 0 {
			continue
		}
		chain = append(chain, *msg)
	}
	return chain
}

// guard neutralizes transcript spoofing in inbound text. Assistant messages
// are the bot's own output and pass through.
func (b *ContextBuilder) guard(m domain.ChatMessage) domain.ChatMessage {
	if m.IsAssistant {
		m.SpeakerName = b.botName
		return m
	}
	m.Text = markdown.GuardImpersonation(m.Text, m.SpeakerName)
	return m
}

// participants builds the first-seen-ordered, deduplicated directory:
// current speaker, then every speaker in the history, then the bot.
func (b *ContextBuilder) participants(trigger domain.ChatMessage, chain []domain.ChatMessage) []domain.Participant {
	seen := map[string]bool{}
	var out []domain.Participant

	add := func(id, name string, isBot bool) {
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		out = append(out, domain.Participant{ID: id, DisplayName: name, IsBot: isBot})
	}

	add(trigger.SpeakerID, trigger.SpeakerName, false)
	for _, m := range chain {
		if m.IsAssistant {
			add(b.botID, b.botName, true)
			continue
		}
		add(m.SpeakerID, m.SpeakerName, false)
	}
	add(b.botID, b.botName, true)

	return out
}
