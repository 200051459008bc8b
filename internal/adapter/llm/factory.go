package llm

import (
	"log/slog"

	"chloe-bot/internal/domain"
	"chloe-bot/internal/infra/config"
)

// NewFromConfig builds the configured provider. An explicit cfg.Provider
// wins; otherwise the first provider with an API key is chosen, in priority
// order OpenRouter, Z.AI, Groq.
func NewFromConfig(cfg config.LLMConfig, logger *slog.Logger) (domain.LLMProvider, error) {
	switch cfg.Provider {
	case "groq":
		return requireKey(NewGroqProvider(cfg.Groq, cfg.Model, logger), cfg.Groq.APIKey)
	case "openrouter":
		return requireKey(NewOpenRouterProvider(cfg.OpenRouter, cfg.Model, logger), cfg.OpenRouter.APIKey)
	case "zai":
		return requireKey(NewZAIProvider(cfg.ZAI, cfg.Model, logger), cfg.ZAI.APIKey)
	case "":
		// Auto-detect below.
	default:
		return nil, domain.NewDomainError("Factory.New", domain.ErrProviderNotFound, cfg.Provider)
	}

	switch {
	case cfg.OpenRouter.APIKey != "":
		logger.Info("auto-detected llm provider", "provider", "openrouter")
		return NewOpenRouterProvider(cfg.OpenRouter, cfg.Model, logger), nil
	case cfg.ZAI.APIKey != "":
		logger.Info("auto-detected llm provider", "provider", "zai")
		return NewZAIProvider(cfg.ZAI, cfg.Model, logger), nil
	case cfg.Groq.APIKey != "":
		logger.Info("auto-detected llm provider", "provider", "groq")
		return NewGroqProvider(cfg.Groq, cfg.Model, logger), nil
	}

	return nil, domain.NewDomainError("Factory.New", domain.ErrProviderNotFound, "no provider API key configured")
}

func requireKey(p domain.LLMProvider, key string) (domain.LLMProvider, error) {
	if key == "" {
		return nil, domain.NewDomainError("Factory.New", domain.ErrAuthFailed, "missing API key for "+p.Name())
	}
	return p, nil
}
