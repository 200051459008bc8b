package llm

import (
	"log/slog"
	"strings"

	"chloe-bot/internal/infra/config"
)

const zaiDefaultModel = "GLM-4.5"

var zaiModels = []string{"GLM-4.5", "GLM-4.5-Air", "GLM-4.5V"}

// NewZAIProvider creates the Z.AI chat-completion provider.
func NewZAIProvider(cfg config.ProviderConfig, model string, logger *slog.Logger) *OpenAICompatProvider {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.z.ai/api/paas/v4"
	}
	if model == "" {
		model = zaiDefaultModel
	}

	return &OpenAICompatProvider{
		name:           "zai",
		baseURL:        baseURL,
		apiKey:         cfg.APIKey,
		defaultModel:   model,
		models:         zaiModels,
		supportsImages: false,
		strictModels:   true,
		client:         NewHTTPClient(cfg),
		logger:         logger,
	}
}
