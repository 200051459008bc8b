package channel

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
)

func newTestBot(opts BotOptions) *Bot {
	b := NewBot(opts, nil, slog.New(slog.DiscardHandler))
	b.botID = "bot-1"
	return b
}

func TestStripLeadingMention(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"<@bot-1> hello there", "hello there"},
		{"<@!bot-1> hello", "hello"},
		{"  <@bot-1>   spaced  ", "spaced"},
		{"no mention here", "no mention here"},
		{"trailing <@bot-1>", "trailing <@bot-1>"},
		{"<@other> someone else", "<@other> someone else"},
	}
	for _, tt := range tests {
		if got := stripLeadingMention(tt.in, "bot-1"); got != tt.want {
			t.Errorf("stripLeadingMention(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDisplayName(t *testing.T) {
	msg := &discordgo.Message{
		Author: &discordgo.User{Username: "alice123", GlobalName: "Alice"},
		Member: &discordgo.Member{Nick: "Ali"},
	}
	if got := displayName(msg); got != "Ali" {
		t.Errorf("nickname not preferred: %q", got)
	}

	msg.Member = nil
	if got := displayName(msg); got != "Alice" {
		t.Errorf("global name not used: %q", got)
	}

	msg.Author.GlobalName = ""
	if got := displayName(msg); got != "alice123" {
		t.Errorf("username fallback broken: %q", got)
	}
}

func TestShouldRespondMention(t *testing.T) {
	b := newTestBot(BotOptions{BotName: "Chloe"})
	m := &discordgo.MessageCreate{Message: &discordgo.Message{
		Content:  "<@bot-1> hi",
		Mentions: []*discordgo.User{{ID: "bot-1"}},
	}}
	triggered, unsolicited := b.shouldRespond(m)
	if !triggered || unsolicited {
		t.Errorf("mention: triggered=%v unsolicited=%v", triggered, unsolicited)
	}
}

func TestShouldRespondReplyToBot(t *testing.T) {
	b := newTestBot(BotOptions{BotName: "Chloe"})
	m := &discordgo.MessageCreate{Message: &discordgo.Message{
		Content: "replying to you",
		ReferencedMessage: &discordgo.Message{
			Author: &discordgo.User{ID: "bot-1"},
		},
	}}
	triggered, unsolicited := b.shouldRespond(m)
	if !triggered || unsolicited {
		t.Errorf("reply-to-bot: triggered=%v unsolicited=%v", triggered, unsolicited)
	}
}

func TestShouldRespondNameKeyword(t *testing.T) {
	b := newTestBot(BotOptions{BotName: "Chloe"})
	m := &discordgo.MessageCreate{Message: &discordgo.Message{
		Content: "hey CHLOE what do you think",
	}}
	triggered, unsolicited := b.shouldRespond(m)
	if !triggered || unsolicited {
		t.Errorf("name keyword: triggered=%v unsolicited=%v", triggered, unsolicited)
	}
}

func TestShouldRespondIgnoresUnrelated(t *testing.T) {
	b := newTestBot(BotOptions{BotName: "Chloe"})
	m := &discordgo.MessageCreate{Message: &discordgo.Message{
		Content: "just people talking",
	}}
	if triggered, _ := b.shouldRespond(m); triggered {
		t.Error("unrelated message should not trigger")
	}
}

func TestShouldRespondRandomChanceOne(t *testing.T) {
	// Chance 1 means 1-in-1: every unrelated message triggers, unsolicited.
	b := newTestBot(BotOptions{BotName: "Chloe", RandomReplyChance: 1})
	m := &discordgo.MessageCreate{Message: &discordgo.Message{
		Content: "nothing to do with the bot",
	}}
	triggered, unsolicited := b.shouldRespond(m)
	if !triggered || !unsolicited {
		t.Errorf("chance 1: triggered=%v unsolicited=%v", triggered, unsolicited)
	}
}

func TestToChatMessage(t *testing.T) {
	b := newTestBot(BotOptions{BotName: "Chloe"})
	ts := time.Date(2026, 8, 14, 10, 0, 0, 0, time.UTC)
	m := &discordgo.Message{
		ID:        "m-1",
		ChannelID: "chan-1",
		Content:   "hello",
		Author:    &discordgo.User{ID: "user-1", Username: "alice"},
		Timestamp: ts,
		MessageReference: &discordgo.MessageReference{
			MessageID: "m-0",
		},
	}

	got := b.toChatMessage(context.Background(), m)

	if got.ID != "m-1" || got.ChannelID != "chan-1" || got.SpeakerID != "user-1" {
		t.Errorf("identity fields: %+v", got)
	}
	if got.ReplyToID != "m-0" {
		t.Errorf("ReplyToID = %q", got.ReplyToID)
	}
	if got.IsAssistant {
		t.Error("user message marked as assistant")
	}
	if !got.Timestamp.Equal(ts) {
		t.Errorf("Timestamp = %v", got.Timestamp)
	}
}

func TestToChatMessageAssistant(t *testing.T) {
	b := newTestBot(BotOptions{BotName: "Chloe"})
	m := &discordgo.Message{
		ID:        "m-2",
		ChannelID: "chan-1",
		Content:   "my own reply",
		Author:    &discordgo.User{ID: "bot-1", Username: "chloe"},
	}
	if got := b.toChatMessage(context.Background(), m); !got.IsAssistant {
		t.Error("own message not marked as assistant")
	}
}

func TestDownloadImagesFiltersAttachments(t *testing.T) {
	payload := []byte{0x89, 'P', 'N', 'G'}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	b := newTestBot(BotOptions{BotName: "Chloe"})
	attachments := []*discordgo.MessageAttachment{
		{Filename: "pic.png", ContentType: "image/png", Size: len(payload), URL: srv.URL},
		{Filename: "doc.pdf", ContentType: "application/pdf", Size: 100, URL: srv.URL},
		{Filename: "huge.png", ContentType: "image/png", Size: maxImageBytes + 1, URL: srv.URL},
	}

	images := b.downloadImages(context.Background(), attachments)

	if len(images) != 1 {
		t.Fatalf("got %d images, want 1", len(images))
	}
	if images[0].MIMEType != "image/png" {
		t.Errorf("MIMEType = %q", images[0].MIMEType)
	}
	if images[0].Base64 != base64.StdEncoding.EncodeToString(payload) {
		t.Errorf("Base64 = %q", images[0].Base64)
	}
}

func TestDownloadImagesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	b := newTestBot(BotOptions{BotName: "Chloe"})
	images := b.downloadImages(context.Background(), []*discordgo.MessageAttachment{
		{Filename: "pic.png", ContentType: "image/png", Size: 10, URL: srv.URL},
	})
	if len(images) != 0 {
		t.Errorf("failed download should yield no images, got %d", len(images))
	}
}

func TestTurnSideChannelChannelID(t *testing.T) {
	sc := &turnSideChannel{channelID: "chan-9"}
	if sc.ChannelID() != "chan-9" {
		t.Errorf("ChannelID = %q", sc.ChannelID())
	}
}
