package domain

import "time"

// Participant is one speaker appearing in a conversation.
type Participant struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	IsBot       bool   `json:"is_bot"`
}

// ChatMessage is a platform message as received from the gateway, before it
// is rendered into an LLM transcript.
type ChatMessage struct {
	ID          string    `json:"id"`
	ChannelID   string    `json:"channel_id"`
	SpeakerID   string    `json:"speaker_id"`
	SpeakerName string    `json:"speaker_name"`
	Text        string    `json:"text"`
	IsAssistant bool      `json:"is_assistant"`
	ReplyToID   string    `json:"reply_to_id,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	Images      []Image   `json:"images,omitempty"`
}

// ConversationContext is everything the orchestrator needs to answer one
// turn: the trigger, the surrounding transcript in chronological order, and
// the directory of everyone who spoke.
type ConversationContext struct {
	Trigger      ChatMessage   `json:"trigger"`
	Recent       []ChatMessage `json:"recent"`
	Participants []Participant `json:"participants"`
	// Unsolicited marks turns the bot joined without being addressed.
	Unsolicited bool `json:"unsolicited,omitempty"`
}
