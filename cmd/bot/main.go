package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chloe-bot/internal/adapter/channel"
	"chloe-bot/internal/adapter/llm"
	"chloe-bot/internal/adapter/tool"
	"chloe-bot/internal/domain"
	"chloe-bot/internal/infra/config"
	"chloe-bot/internal/infra/logger"
	"chloe-bot/internal/infra/ratelimit"
	"chloe-bot/internal/infra/tracer"
	"chloe-bot/internal/usecase"
)

const defaultSystemPrompt = "You're Chloe, a discord bot."

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	if err := run(*cfgPath); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(cfgPath string) error {
	// 1. Config
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if cfg.Discord.Token == "" {
		return fmt.Errorf("config: discord token not set (DISCORD_TOKEN or discord.token)")
	}

	// 2. Logger & Tracer
	log, logCloser, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logCloser()

	ctx := context.Background()
	tracerShutdown, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	defer tracerShutdown(ctx)

	// 3. LLM provider
	provider, err := llm.NewFromConfig(cfg.LLM, log)
	if err != nil {
		return fmt.Errorf("llm: %w", err)
	}
	if cfg.LLM.CircuitBreaker.Enabled {
		provider = llm.NewCircuitBreakerProvider(provider, cfg.LLM.CircuitBreaker, log)
	}
	log.Info("llm provider ready", "provider", provider.Name(), "default_model", provider.DefaultModel())

	// 4. Tools
	registry := tool.NewRegistry(log)
	cleanupTools, err := registerTools(ctx, registry, cfg.Tools, log)
	if err != nil {
		return fmt.Errorf("tools: %w", err)
	}
	defer cleanupTools()

	// 5. Rate limiter
	limiter := ratelimit.New(
		ratelimit.WithMaxConcurrent(cfg.RateLimit.MaxConcurrent),
		ratelimit.WithMinInterval(cfg.RateLimit.MinInterval),
	)

	// 6. Settings & builders
	systemPrompt := cfg.Bot.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}
	settings := usecase.NewSettings(systemPrompt, cfg.Bot.ToolOnlyReplies)
	if cfg.LLM.Model != "" {
		settings.SetModel(cfg.LLM.Model)
	}
	prompts := usecase.NewPromptBuilder(settings, cfg.Bot.Name)

	// 7. Orchestrator
	orch := usecase.NewOrchestrator(usecase.OrchestratorDeps{
		Provider:    provider,
		Tools:       registry,
		Limiter:     &timedLimiter{inner: limiter, timeout: cfg.RateLimit.AcquireTimeout},
		Prompts:     prompts,
		Settings:    settings,
		Logger:      log,
		MaxDepth:    cfg.Bot.MaxToolDepth,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
	})

	// 8. Discord gateway
	bot := channel.NewBot(channel.BotOptions{
		Token:             cfg.Discord.Token,
		BotName:           cfg.Bot.Name,
		RandomReplyChance: cfg.Discord.RandomReplyChance,
		ReplyChainDepth:   cfg.Bot.ReplyChainDepth,
		MinContext:        cfg.Bot.MinContext,
		HistoryLimit:      cfg.Bot.HistoryLimit,
	}, orch, log)

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := bot.Start(runCtx); err != nil {
		return fmt.Errorf("discord: %w", err)
	}
	log.Info("bot running, press ctrl-c to exit")

	<-runCtx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := bot.Stop(shutdownCtx); err != nil {
		log.Error("gateway shutdown error", "error", err)
	}
	return nil
}

// registerTools builds and registers every configured tool, each wrapped
// with JSON-schema parameter validation. The returned cleanup releases
// tool-held resources such as the headless browser and MCP connections.
func registerTools(ctx context.Context, registry *tool.Registry, cfg config.ToolsConfig, log *slog.Logger) (func(), error) {
	cleanups := []func(){}
	cleanup := func() {
		for _, fn := range cleanups {
			fn()
		}
	}

	tools := []domain.Tool{
		tool.NewCalculatorTool(log),
		tool.NewTimeTool(log),
		tool.NewFetchTool(cfg.FetchTimeout, log),
		tool.NewSendMessageTool(log),
		tool.NewAddReactionTool(log),
	}

	if cfg.ExaAPIKey != "" {
		tools = append(tools, tool.NewWebSearchTool(tool.NewExaBackend(cfg.ExaAPIKey, log), 0, log))
	} else {
		log.Warn("web_search disabled, no Exa API key configured")
	}

	if cfg.GeminiAPIKey != "" {
		tools = append(tools, tool.NewImageGenerationTool(cfg.GeminiAPIKey, log))
	} else {
		log.Warn("generate_image disabled, no Gemini API key configured")
	}

	if cfg.BrowserEnabled {
		backend, err := tool.NewChromeDPBackend(tool.ChromeDPConfig{
			Headless: true,
			Timeout:  cfg.BrowserTimeout,
		}, log)
		if err != nil {
			return cleanup, fmt.Errorf("browser backend: %w", err)
		}
		cleanups = append(cleanups, func() {
			if err := backend.Close(); err != nil {
				log.Warn("browser backend close", "error", err)
			}
		})
		tools = append(tools, tool.NewBrowserTool(backend, log))
	}

	if len(cfg.MCPServers) > 0 {
		specs := make([]tool.MCPServerSpec, 0, len(cfg.MCPServers))
		for _, srv := range cfg.MCPServers {
			specs = append(specs, tool.MCPServerSpec{
				Name:      srv.Name,
				Transport: srv.Transport,
				Command:   srv.Command,
				Args:      srv.Args,
				Env:       srv.Env,
				URL:       srv.URL,
			})
		}
		bridge, err := tool.NewMCPBridge(ctx, specs, log)
		if err != nil {
			return cleanup, fmt.Errorf("mcp bridge: %w", err)
		}
		cleanups = append(cleanups, bridge.Close)
		tools = append(tools, bridge.Tools()...)
	}

	for _, t := range tools {
		validated, err := tool.WithSchemaValidation(t)
		if err != nil {
			return cleanup, fmt.Errorf("schema for %s: %w", t.Name(), err)
		}
		if err := registry.Register(validated); err != nil {
			return cleanup, err
		}
	}
	return cleanup, nil
}

// timedLimiter bounds how long a turn may wait for a provider slot.
type timedLimiter struct {
	inner   *ratelimit.Limiter
	timeout time.Duration
}

func (t *timedLimiter) Acquire(ctx context.Context, key string) (func(), error) {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}
	return t.inner.Acquire(ctx, key)
}
