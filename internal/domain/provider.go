package domain

import "context"

// LLMProvider is the interface for any chat-completion backend.
type LLMProvider interface {
	// Generate sends a request and returns a complete response.
	Generate(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	// Name returns the provider's identifier (e.g., "groq", "openrouter").
	Name() string
	// SupportsTools reports whether the provider accepts tool schemas.
	SupportsTools() bool
	// SupportsImages reports whether the provider accepts inline image input.
	SupportsImages() bool
	// DefaultModel returns the model used when the request leaves Model empty.
	DefaultModel() string
	// AvailableModels lists models this provider is known to serve.
	AvailableModels() []string
	// ValidateModel returns ErrModelNotAvailable if the model is not served.
	ValidateModel(model string) error
}
