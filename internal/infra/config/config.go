// Package config loads and validates the YAML configuration, with
// environment-variable overrides for secrets and deploy-time switches.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration.
type Config struct {
	Bot       BotConfig       `yaml:"bot"`
	LLM       LLMConfig       `yaml:"llm"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Tools     ToolsConfig     `yaml:"tools"`
	Discord   DiscordConfig   `yaml:"discord"`
	Logger    LoggerConfig    `yaml:"logger"`
	Tracer    TracerConfig    `yaml:"tracer"`
}

// BotConfig controls conversation behavior.
type BotConfig struct {
	Name         string `yaml:"name"`
	SystemPrompt string `yaml:"system_prompt"`
	// MaxToolDepth bounds chained tool calls within a single turn.
	MaxToolDepth int `yaml:"max_tool_depth"`
	// ToolOnlyReplies forces every reply through the send-message tool.
	ToolOnlyReplies bool `yaml:"tool_only_replies"`
	// ReplyChainDepth is how far up a reply chain the context builder walks.
	ReplyChainDepth int `yaml:"reply_chain_depth"`
	// MinContext is the chain length below which channel history is added.
	MinContext int `yaml:"min_context"`
	// HistoryLimit caps the channel-history supplement.
	HistoryLimit int `yaml:"history_limit"`
}

// LLMConfig selects and configures providers.
type LLMConfig struct {
	// Provider forces a provider; empty means auto-detect by API key.
	Provider    string         `yaml:"provider"`
	Model       string         `yaml:"model"`
	MaxTokens   int            `yaml:"max_tokens"`
	Temperature float64        `yaml:"temperature"`
	Groq        ProviderConfig `yaml:"groq"`
	OpenRouter  ProviderConfig `yaml:"openrouter"`
	ZAI         ProviderConfig `yaml:"zai"`

	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// ProviderConfig holds per-provider connection settings.
type ProviderConfig struct {
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	ConnTimeout time.Duration `yaml:"conn_timeout"`
	RespTimeout time.Duration `yaml:"resp_timeout"`
}

// CircuitBreakerConfig controls the provider circuit breaker.
type CircuitBreakerConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxFailures uint32        `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
}

// RateLimitConfig controls outbound LLM pacing.
type RateLimitConfig struct {
	MaxConcurrent  int64         `yaml:"max_concurrent"`
	MinInterval    time.Duration `yaml:"min_interval"`
	AcquireTimeout time.Duration `yaml:"acquire_timeout"`
}

// ToolsConfig configures individual tools.
type ToolsConfig struct {
	ExaAPIKey    string `yaml:"exa_api_key"`
	GeminiAPIKey string `yaml:"gemini_api_key"`
	// BrowserEnabled registers the headless-browser rendering tool.
	BrowserEnabled bool          `yaml:"browser_enabled"`
	BrowserTimeout time.Duration `yaml:"browser_timeout"`
	FetchTimeout   time.Duration `yaml:"fetch_timeout"`
	// MCPServers bridges external MCP servers into the tool registry.
	MCPServers []MCPServer `yaml:"mcp_servers,omitempty"`
}

// MCPServer configures one MCP server connection.
type MCPServer struct {
	Name      string            `yaml:"name"`
	Transport string            `yaml:"transport"` // "stdio" or "http"
	Command   string            `yaml:"command,omitempty"`
	Args      []string          `yaml:"args,omitempty"`
	URL       string            `yaml:"url,omitempty"`
	Env       map[string]string `yaml:"env,omitempty"`
}

// DiscordConfig configures the gateway connection.
type DiscordConfig struct {
	Token string `yaml:"token"`
	// RandomReplyChance is the 1-in-N chance of joining unprompted; 0 disables.
	RandomReplyChance int `yaml:"random_reply_chance"`
}

// LoggerConfig controls structured logging.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TracerConfig controls OpenTelemetry tracing.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Bot: BotConfig{
			Name:            "Chloe",
			MaxToolDepth:    5,
			ToolOnlyReplies: true,
			ReplyChainDepth: 10,
			MinContext:      3,
			HistoryLimit:    20,
		},
		LLM: LLMConfig{
			MaxTokens:   8192,
			Temperature: 1.0,
			Groq: ProviderConfig{
				BaseURL:     "https://api.groq.com/openai/v1",
				ConnTimeout: 30 * time.Second,
				RespTimeout: 120 * time.Second,
			},
			OpenRouter: ProviderConfig{
				BaseURL:     "https://openrouter.ai/api/v1",
				ConnTimeout: 30 * time.Second,
				RespTimeout: 120 * time.Second,
			},
			ZAI: ProviderConfig{
				BaseURL:     "https://api.z.ai/api/paas/v4",
				ConnTimeout: 30 * time.Second,
				RespTimeout: 120 * time.Second,
			},
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:     true,
				MaxFailures: 5,
				Timeout:     60 * time.Second,
			},
		},
		RateLimit: RateLimitConfig{
			MaxConcurrent:  5,
			MinInterval:    200 * time.Millisecond,
			AcquireTimeout: 30 * time.Second,
		},
		Tools: ToolsConfig{
			BrowserTimeout: 30 * time.Second,
			FetchTimeout:   30 * time.Second,
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracer: TracerConfig{
			Enabled:  false,
			Exporter: "noop",
		},
	}
}

// Load reads configuration from path, applies environment overrides, and
// validates the result. A missing file is not an error: env vars alone can
// carry a full deployment.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			ApplyEnvOverrides(cfg)
			if err := Validate(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	ApplyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides maps environment variables to config fields. Secrets
// are expected to arrive this way rather than in the YAML file.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DISCORD_TOKEN"); v != "" {
		cfg.Discord.Token = v
	}
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("GROQ_API_KEY"); v != "" {
		cfg.LLM.Groq.APIKey = v
	}
	if v := os.Getenv("OPENROUTER_API_KEY"); v != "" {
		cfg.LLM.OpenRouter.APIKey = v
	}
	if v := os.Getenv("ZAI_API_KEY"); v != "" {
		cfg.LLM.ZAI.APIKey = v
	}
	if v := os.Getenv("EXA_API_KEY"); v != "" {
		cfg.Tools.ExaAPIKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.Tools.GeminiAPIKey = v
	}
	if v := os.Getenv("CHLOE_LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("CHLOE_TRACER_ENABLED"); v == "true" {
		cfg.Tracer.Enabled = true
		if cfg.Tracer.Exporter == "noop" {
			cfg.Tracer.Exporter = "stdout"
		}
	}
	if v := os.Getenv("CHLOE_RANDOM_REPLY_CHANCE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Discord.RandomReplyChance = n
		}
	}
}

// Validate checks constraints that would otherwise surface as confusing
// runtime failures.
func Validate(cfg *Config) error {
	if cfg.Bot.MaxToolDepth < 1 {
		return fmt.Errorf("bot.max_tool_depth must be at least 1")
	}
	if cfg.Bot.ReplyChainDepth < 5 || cfg.Bot.ReplyChainDepth > 15 {
		return fmt.Errorf("bot.reply_chain_depth must be in [5, 15]")
	}
	if cfg.RateLimit.MaxConcurrent < 1 {
		return fmt.Errorf("rate_limit.max_concurrent must be at least 1")
	}
	if cfg.RateLimit.MinInterval < 0 {
		return fmt.Errorf("rate_limit.min_interval must not be negative")
	}
	switch cfg.LLM.Provider {
	case "", "groq", "openrouter", "zai":
	default:
		return fmt.Errorf("llm.provider %q is not one of groq, openrouter, zai", cfg.LLM.Provider)
	}
	for i, srv := range cfg.Tools.MCPServers {
		if srv.Name == "" {
			return fmt.Errorf("tools.mcp_servers[%d]: name is required", i)
		}
		switch srv.Transport {
		case "stdio":
			if srv.Command == "" {
				return fmt.Errorf("tools.mcp_servers[%d]: stdio transport requires command", i)
			}
		case "http":
			if srv.URL == "" {
				return fmt.Errorf("tools.mcp_servers[%d]: http transport requires url", i)
			}
		default:
			return fmt.Errorf("tools.mcp_servers[%d]: transport %q is not one of stdio, http", i, srv.Transport)
		}
	}
	return nil
}
