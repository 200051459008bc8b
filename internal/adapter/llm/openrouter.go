package llm

import (
	"log/slog"
	"net/http"
	"strings"

	"chloe-bot/internal/infra/config"
)

const openrouterDefaultModel = "openai/gpt-4o-mini"

// openrouterModels is advisory only: OpenRouter serves an open catalog, so
// unknown models pass validation with a warning instead of an error.
var openrouterModels = []string{
	"anthropic/claude-3.5-sonnet",
	"openai/gpt-4o",
	"openai/gpt-4o-mini",
	"google/gemini-2.5-flash",
	"google/gemini-2.5-pro",
	"x-ai/grok-code-fast-1",
	"z-ai/glm-4.5",
	"z-ai/glm-4.5v",
	"deepseek/deepseek-chat",
	"qwen/qwen-2.5-72b-instruct",
	"meta-llama/llama-3.1-70b-instruct",
}

// openrouterTransport is a custom http.RoundTripper that injects
// OpenRouter-specific headers (HTTP-Referer and X-Title) into every request.
type openrouterTransport struct {
	base http.RoundTripper
}

func (t *openrouterTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// Clone the request to avoid mutating the original.
	clone := req.Clone(req.Context())
	clone.Header.Set("HTTP-Referer", "https://github.com/chloe-bot/chloe")
	clone.Header.Set("X-Title", "Chloe Discord Bot")
	return t.base.RoundTrip(clone)
}

// NewOpenRouterProvider creates the OpenRouter provider: the OpenAI dialect
// with attribution headers, an open model catalog, and image support.
func NewOpenRouterProvider(cfg config.ProviderConfig, model string, logger *slog.Logger) *OpenAICompatProvider {
	client := NewHTTPClient(cfg)
	client.Transport = &openrouterTransport{base: client.Transport}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://openrouter.ai/api/v1"
	}
	if model == "" {
		model = openrouterDefaultModel
	}

	return &OpenAICompatProvider{
		name:           "openrouter",
		baseURL:        baseURL,
		apiKey:         cfg.APIKey,
		defaultModel:   model,
		models:         openrouterModels,
		supportsImages: true,
		strictModels:   false,
		client:         client,
		logger:         logger,
	}
}
