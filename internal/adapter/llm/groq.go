package llm

import (
	"log/slog"
	"strings"

	"chloe-bot/internal/infra/config"
)

const groqDefaultModel = "moonshotai/kimi-k2-instruct-0905"

// groqModels is the catalog Groq serves with tool-calling enabled.
var groqModels = []string{
	"llama-3.3-70b-versatile",
	"llama-3.1-8b-instant",
	"openai/gpt-oss-120b",
	"openai/gpt-oss-20b",
	"meta-llama/llama-guard-4-12b",
	"llama-3-groq-70b-8192-tool-use-preview",
	"llama-3-groq-8b-8192-tool-use-preview",
	groqDefaultModel,
}

// NewGroqProvider creates the Groq chat-completion provider.
func NewGroqProvider(cfg config.ProviderConfig, model string, logger *slog.Logger) *OpenAICompatProvider {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.groq.com/openai/v1"
	}
	if model == "" {
		model = groqDefaultModel
	}

	return &OpenAICompatProvider{
		name:           "groq",
		baseURL:        baseURL,
		apiKey:         cfg.APIKey,
		defaultModel:   model,
		models:         groqModels,
		supportsImages: false,
		strictModels:   true,
		client:         NewHTTPClient(cfg),
		logger:         logger,
	}
}
