// Package channel connects the bot to Discord. The gateway adapter turns
// message-create events into conversation turns, serves message history for
// context assembly, and exposes the live channel as the delivery surface
// for tools.
package channel

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"chloe-bot/internal/domain"
	"chloe-bot/internal/usecase"
)

const (
	// Discord attachment limit for inline image context.
	maxImageBytes = 8 * 1024 * 1024
	// Discord keeps a typing indicator alive for about ten seconds.
	typingInterval = 8 * time.Second
)

var imageMIMETypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/webp": true,
	"image/gif":  true,
}

// Responder answers one conversation turn. The orchestrator implements it.
type Responder interface {
	Respond(ctx context.Context, convo *domain.ConversationContext, sc domain.SideChannel) (*usecase.TurnResult, error)
}

// BotOptions configures the gateway adapter.
type BotOptions struct {
	Token   string
	BotName string
	// RandomReplyChance is the 1-in-N chance of replying unprompted; 0 disables.
	RandomReplyChance int
	ReplyChainDepth   int
	MinContext        int
	HistoryLimit      int
}

// Bot is the discordgo session adapter. It implements usecase.HistorySource
// over the gateway cache and REST API.
type Bot struct {
	opts      BotOptions
	responder Responder
	logger    *slog.Logger

	session *discordgo.Session
	botID   string
	builder *usecase.ContextBuilder

	httpClient *http.Client

	ctx    context.Context
	cancel context.CancelFunc
	turns  sync.WaitGroup
}

// NewBot creates the gateway adapter. Start must be called before it serves
// any traffic.
func NewBot(opts BotOptions, responder Responder, logger *slog.Logger) *Bot {
	if opts.BotName == "" {
		opts.BotName = "Chloe"
	}
	return &Bot{
		opts:       opts,
		responder:  responder,
		logger:     logger,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Start opens the gateway session and begins handling messages.
func (b *Bot) Start(ctx context.Context) error {
	b.ctx, b.cancel = context.WithCancel(ctx)

	dg, err := discordgo.New("Bot " + b.opts.Token)
	if err != nil {
		return fmt.Errorf("create discord session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentMessageContent

	dg.AddHandler(b.onMessageCreate)

	if err := dg.Open(); err != nil {
		return fmt.Errorf("open discord gateway: %w", err)
	}
	b.session = dg
	b.botID = dg.State.User.ID
	b.builder = usecase.NewContextBuilder(
		b, b.botID, b.opts.BotName,
		b.opts.ReplyChainDepth, b.opts.MinContext, b.opts.HistoryLimit,
		b.logger,
	)

	b.logger.Info("discord gateway connected", "bot_id", b.botID, "bot_name", b.opts.BotName)
	return nil
}

// Stop drains in-flight turns and closes the gateway session. The context
// bounds how long draining may take.
func (b *Bot) Stop(ctx context.Context) error {
	if b.cancel != nil {
		b.cancel()
	}

	done := make(chan struct{})
	go func() {
		b.turns.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		b.logger.Warn("shutdown timeout, abandoning in-flight turns")
	}

	if b.session != nil {
		return b.session.Close()
	}
	return nil
}

func (b *Bot) onMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.ID == b.botID || m.Author.Bot {
		return
	}

	triggered, unsolicited := b.shouldRespond(m)
	if !triggered {
		return
	}

	trigger := b.toChatMessage(b.ctx, m.Message)
	trigger.Text = stripLeadingMention(trigger.Text, b.botID)
	if strings.TrimSpace(trigger.Text) == "" && len(trigger.Images) == 0 {
		return
	}

	b.turns.Add(1)
	go func() {
		defer b.turns.Done()
		b.handleTurn(b.ctx, trigger, unsolicited)
	}()
}

// shouldRespond decides whether a message starts a turn. Mentions, the bot's
// name, and replies to the bot always trigger; everything else rolls the
// unsolicited-reply dice.
func (b *Bot) shouldRespond(m *discordgo.MessageCreate) (triggered, unsolicited bool) {
	for _, u := range m.Mentions {
		if u.ID == b.botID {
			return true, false
		}
	}
	if ref := m.ReferencedMessage; ref != nil && ref.Author != nil && ref.Author.ID == b.botID {
		return true, false
	}
	if strings.Contains(strings.ToLower(m.Content), strings.ToLower(b.opts.BotName)) {
		return true, false
	}
	if b.opts.RandomReplyChance > 0 && rand.IntN(b.opts.RandomReplyChance) == 0 {
		return true, true
	}
	return false, false
}

func (b *Bot) handleTurn(ctx context.Context, trigger domain.ChatMessage, unsolicited bool) {
	started := time.Now()

	typingDone := make(chan struct{})
	go b.keepTyping(ctx, trigger.ChannelID, typingDone)
	defer close(typingDone)

	sc := &turnSideChannel{
		bot:       b,
		channelID: trigger.ChannelID,
		messageID: trigger.ID,
		guildID:   b.guildIDFor(trigger.ChannelID),
	}

	convo, err := b.builder.Build(ctx, trigger, unsolicited)
	if err != nil {
		b.logger.Error("context build failed", "channel", trigger.ChannelID, "error", err)
		return
	}

	result, err := b.responder.Respond(ctx, convo, sc)
	if err != nil {
		b.logger.Error("turn failed",
			"channel", trigger.ChannelID,
			"speaker", trigger.SpeakerName,
			"error", err,
		)
		return
	}

	b.logger.Info("turn complete",
		"channel", trigger.ChannelID,
		"speaker", trigger.SpeakerName,
		"tool_calls", result.ToolCalls,
		"delivered", result.Delivered,
		"duration", time.Since(started).Round(time.Millisecond),
	)
}

// keepTyping refreshes the typing indicator until done closes.
func (b *Bot) keepTyping(ctx context.Context, channelID string, done <-chan struct{}) {
	ticker := time.NewTicker(typingInterval)
	defer ticker.Stop()

	_ = b.session.ChannelTyping(channelID, discordgo.WithContext(ctx))
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = b.session.ChannelTyping(channelID, discordgo.WithContext(ctx))
		}
	}
}

// Lookup implements usecase.HistorySource. The gateway cache is consulted
// first; cache misses fall back to REST. A deleted message is nil, not an
// error.
func (b *Bot) Lookup(ctx context.Context, channelID, messageID string) (*domain.ChatMessage, error) {
	if cached, err := b.session.State.Message(channelID, messageID); err == nil {
		msg := b.toChatMessage(ctx, cached)
		return &msg, nil
	}

	fetched, err := b.session.ChannelMessage(channelID, messageID, discordgo.WithContext(ctx))
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch message %s: %w", messageID, err)
	}
	msg := b.toChatMessage(ctx, fetched)
	return &msg, nil
}

// Recent implements usecase.HistorySource. Other bots' messages are dropped;
// the model only needs humans and its own prior replies.
func (b *Bot) Recent(ctx context.Context, channelID string, limit int) ([]domain.ChatMessage, error) {
	msgs, err := b.session.ChannelMessages(channelID, limit, "", "", "", discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("fetch channel history: %w", err)
	}

	out := make([]domain.ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		if m.Author == nil {
			continue
		}
		if m.Author.Bot && m.Author.ID != b.botID {
			continue
		}
		out = append(out, b.toChatMessage(ctx, m))
	}
	return out, nil
}

func (b *Bot) toChatMessage(ctx context.Context, m *discordgo.Message) domain.ChatMessage {
	msg := domain.ChatMessage{
		ID:          m.ID,
		ChannelID:   m.ChannelID,
		SpeakerID:   m.Author.ID,
		SpeakerName: displayName(m),
		Text:        m.Content,
		IsAssistant: m.Author.ID == b.botID,
		Timestamp:   m.Timestamp,
		Images:      b.downloadImages(ctx, m.Attachments),
	}
	if m.MessageReference != nil {
		msg.ReplyToID = m.MessageReference.MessageID
	}
	return msg
}

// downloadImages fetches image attachments and encodes them for the
// provider. Oversized and non-image attachments are skipped.
func (b *Bot) downloadImages(ctx context.Context, attachments []*discordgo.MessageAttachment) []domain.Image {
	var images []domain.Image
	for _, a := range attachments {
		if !imageMIMETypes[a.ContentType] {
			continue
		}
		if a.Size > maxImageBytes {
			b.logger.Debug("skipping oversized attachment", "filename", a.Filename, "size", a.Size)
			continue
		}

		img, err := b.downloadImage(ctx, a.URL, a.ContentType)
		if err != nil {
			b.logger.Warn("attachment download failed", "filename", a.Filename, "error", err)
			continue
		}
		images = append(images, *img)
	}
	return images
}

func (b *Bot) downloadImage(ctx context.Context, url, mimeType string) (*domain.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("attachment fetch returned %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxImageBytes {
		return nil, fmt.Errorf("attachment exceeds %d bytes", maxImageBytes)
	}

	return &domain.Image{
		Base64:   base64.StdEncoding.EncodeToString(data),
		MIMEType: mimeType,
	}, nil
}

func (b *Bot) guildIDFor(channelID string) string {
	if ch, err := b.session.State.Channel(channelID); err == nil {
		return ch.GuildID
	}
	if ch, err := b.session.Channel(channelID); err == nil {
		return ch.GuildID
	}
	return ""
}

// displayName prefers the guild nickname, then the global display name,
// then the account username.
func displayName(m *discordgo.Message) string {
	if m.Member != nil && m.Member.Nick != "" {
		return m.Member.Nick
	}
	if m.Author.GlobalName != "" {
		return m.Author.GlobalName
	}
	return m.Author.Username
}

// stripLeadingMention removes the bot mention that addressed the message.
func stripLeadingMention(content, botID string) string {
	content = strings.TrimSpace(content)
	for _, prefix := range []string{"<@" + botID + ">", "<@!" + botID + ">"} {
		if strings.HasPrefix(content, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(content, prefix))
		}
	}
	return content
}

func isNotFound(err error) bool {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) {
		return restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound
	}
	return false
}

// turnSideChannel is the per-turn delivery surface handed to tools. Replies
// and reactions target the message that started the turn.
type turnSideChannel struct {
	bot       *Bot
	channelID string
	messageID string
	guildID   string
}

func (t *turnSideChannel) SendMessage(ctx context.Context, content string, reply bool) error {
	if reply {
		_, err := t.bot.session.ChannelMessageSendReply(t.channelID, content, &discordgo.MessageReference{
			MessageID: t.messageID,
			ChannelID: t.channelID,
			GuildID:   t.guildID,
		}, discordgo.WithContext(ctx))
		return err
	}
	_, err := t.bot.session.ChannelMessageSend(t.channelID, content, discordgo.WithContext(ctx))
	return err
}

func (t *turnSideChannel) AddReaction(ctx context.Context, emoji string) error {
	return t.bot.session.MessageReactionAdd(t.channelID, t.messageID, emoji, discordgo.WithContext(ctx))
}

func (t *turnSideChannel) GuildEmojis(ctx context.Context) ([]domain.Emoji, error) {
	if t.guildID == "" {
		return nil, nil
	}
	emojis, err := t.bot.session.GuildEmojis(t.guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("fetch guild emojis: %w", err)
	}

	out := make([]domain.Emoji, 0, len(emojis))
	for _, e := range emojis {
		out = append(out, domain.Emoji{ID: e.ID, Name: e.Name, Animated: e.Animated})
	}
	return out, nil
}

func (t *turnSideChannel) ChannelID() string { return t.channelID }
