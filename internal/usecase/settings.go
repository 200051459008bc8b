package usecase

import (
	"sync"
)

// Settings holds runtime-tunable behavior shared across turns. All accessors
// are safe for concurrent use.
type Settings struct {
	mu            sync.RWMutex
	systemPrompt  string
	modelOverride string
	toolOnly      bool
}

// NewSettings creates settings with the given initial values.
func NewSettings(systemPrompt string, toolOnly bool) *Settings {
	return &Settings{
		systemPrompt: systemPrompt,
		toolOnly:     toolOnly,
	}
}

// SystemPrompt returns the current base system prompt.
func (s *Settings) SystemPrompt() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.systemPrompt
}

// SetSystemPrompt replaces the base system prompt.
func (s *Settings) SetSystemPrompt(prompt string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.systemPrompt = prompt
}

// Model returns the model override, or empty when the provider default
// should be used.
func (s *Settings) Model() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.modelOverride
}

// SetModel sets or clears (empty string) the model override.
func (s *Settings) SetModel(model string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modelOverride = model
}

// ToolOnly reports whether raw-text completions are treated as a policy
// violation and auto-corrected into a delivery tool call.
func (s *Settings) ToolOnly() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.toolOnly
}

// SetToolOnly toggles the tool-only reply policy.
func (s *Settings) SetToolOnly(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.toolOnly = v
}

// Reload atomically replaces all settings from a loader. When the loader
// fails the current values are kept.
func (s *Settings) Reload(load func() (systemPrompt, model string, toolOnly bool, err error)) error {
	prompt, model, toolOnly, err := load()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.systemPrompt = prompt
	s.modelOverride = model
	s.toolOnly = toolOnly
	return nil
}
