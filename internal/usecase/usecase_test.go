package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"chloe-bot/internal/domain"
)

func testLogger() *slog.Logger { return slog.New(slog.DiscardHandler) }

// --- Mocks ---

type mockProvider struct {
	mu        sync.Mutex
	responses []domain.ChatResponse
	errs      []error
	requests  []domain.ChatRequest
	callIdx   int
}

func (m *mockProvider) Generate(_ context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	idx := m.callIdx
	m.callIdx++
	if idx < len(m.errs) && m.errs[idx] != nil {
		return nil, m.errs[idx]
	}
	if idx >= len(m.responses) {
		return &domain.ChatResponse{Text: "fallback"}, nil
	}
	resp := m.responses[idx]
	return &resp, nil
}

func (m *mockProvider) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callIdx
}

func (m *mockProvider) Name() string            { return "mock" }
func (m *mockProvider) SupportsTools() bool     { return true }
func (m *mockProvider) SupportsImages() bool    { return false }
func (m *mockProvider) DefaultModel() string    { return "mock-model" }
func (m *mockProvider) AvailableModels() []string {
	return []string{"mock-model"}
}
func (m *mockProvider) ValidateModel(string) error { return nil }

type fakeTool struct {
	name          string
	needsSC       bool
	needsFeedback bool
	result        *domain.ToolResult
	err           error
	calls         []domain.ToolCall
}

func (f *fakeTool) Name() string        { return f.name }
func (f *fakeTool) Description() string { return "fake " + f.name }
func (f *fakeTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        f.name,
		Description: "fake " + f.name,
		Parameters:  json.RawMessage(`{"type": "object", "properties": {}}`),
	}
}
func (f *fakeTool) NeedsSideChannel() bool    { return f.needsSC }
func (f *fakeTool) NeedsResultFeedback() bool { return f.needsFeedback }
func (f *fakeTool) Execute(_ context.Context, params json.RawMessage, _ domain.SideChannel) (*domain.ToolResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &domain.ToolResult{Content: f.name + " ran"}, nil
}

// fakeExecutor is a minimal in-memory tool executor.
type fakeExecutor struct {
	tools    map[string]domain.Tool
	executed []domain.ToolCall
}

func newFakeExecutor(tools ...domain.Tool) *fakeExecutor {
	m := make(map[string]domain.Tool, len(tools))
	for _, t := range tools {
		m[t.Name()] = t
	}
	return &fakeExecutor{tools: m}
}

func (f *fakeExecutor) Get(name string) (domain.Tool, error) {
	t, ok := f.tools[name]
	if !ok {
		return nil, domain.NewDomainError("fakeExecutor.Get", domain.ErrToolNotFound, name)
	}
	return t, nil
}

func (f *fakeExecutor) Schemas() []domain.ToolSchema {
	out := make([]domain.ToolSchema, 0, len(f.tools))
	for _, t := range f.tools {
		out = append(out, t.Schema())
	}
	return out
}

func (f *fakeExecutor) Execute(ctx context.Context, call domain.ToolCall, sc domain.SideChannel) *domain.ToolResult {
	f.executed = append(f.executed, call)
	t, err := f.Get(call.Name)
	if err != nil {
		return &domain.ToolResult{ToolCallID: call.ID, IsError: true, Content: err.Error()}
	}
	res, err := t.Execute(ctx, call.Arguments, sc)
	if err != nil {
		return &domain.ToolResult{ToolCallID: call.ID, IsError: true, Content: err.Error()}
	}
	res.ToolCallID = call.ID
	return res
}

// noopLimiter satisfies TurnLimiter without pacing.
type noopLimiter struct {
	acquired int
}

func (n *noopLimiter) Acquire(context.Context, string) (func(), error) {
	n.acquired++
	return func() {}, nil
}

// stubSideChannel records deliveries.
type stubSideChannel struct {
	sent      []string
	replies   []bool
	reactions []string
	emojis    []domain.Emoji
	sendErr   error
}

func (s *stubSideChannel) SendMessage(_ context.Context, content string, reply bool) error {
	if s.sendErr != nil {
		return s.sendErr
	}
	s.sent = append(s.sent, content)
	s.replies = append(s.replies, reply)
	return nil
}

func (s *stubSideChannel) AddReaction(_ context.Context, emoji string) error {
	s.reactions = append(s.reactions, emoji)
	return nil
}

func (s *stubSideChannel) GuildEmojis(context.Context) ([]domain.Emoji, error) {
	return s.emojis, nil
}

func (s *stubSideChannel) ChannelID() string { return "chan-1" }

// memoryHistory serves canned messages as a HistorySource.
type memoryHistory struct {
	byID   map[string]domain.ChatMessage
	recent []domain.ChatMessage
}

func (h *memoryHistory) Lookup(_ context.Context, _ string, messageID string) (*domain.ChatMessage, error) {
	m, ok := h.byID[messageID]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (h *memoryHistory) Recent(_ context.Context, _ string, limit int) ([]domain.ChatMessage, error) {
	if len(h.recent) > limit {
		return h.recent[:limit], nil
	}
	return h.recent, nil
}

// --- Shared fixtures ---

func chatMsg(id, speaker, text string, ts time.Time) domain.ChatMessage {
	return domain.ChatMessage{
		ID:          id,
		ChannelID:   "chan-1",
		SpeakerID:   "user-" + speaker,
		SpeakerName: speaker,
		Text:        text,
		Timestamp:   ts,
	}
}

func testConvo(text string) *domain.ConversationContext {
	return &domain.ConversationContext{
		Trigger: chatMsg("m-1", "alice", text, time.Now()),
		Participants: []domain.Participant{
			{ID: "user-alice", DisplayName: "alice"},
		},
	}
}

func toolCallJSON(content string) json.RawMessage {
	raw, err := json.Marshal(map[string]string{"content": content})
	if err != nil {
		panic(fmt.Sprintf("marshal: %v", err))
	}
	return raw
}
