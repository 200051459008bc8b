package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, "Chloe", cfg.Bot.Name)
	assert.Equal(t, 5, cfg.Bot.MaxToolDepth)
	assert.True(t, cfg.Bot.ToolOnlyReplies)
	assert.Equal(t, int64(5), cfg.RateLimit.MaxConcurrent)
	assert.Equal(t, 200*time.Millisecond, cfg.RateLimit.MinInterval)
	assert.Equal(t, "https://api.groq.com/openai/v1", cfg.LLM.Groq.BaseURL)
	require.NoError(t, Validate(cfg))
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "Chloe", cfg.Bot.Name)
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
bot:
  name: TestBot
  max_tool_depth: 3
llm:
  provider: groq
  model: test-model
rate_limit:
  max_concurrent: 2
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "TestBot", cfg.Bot.Name)
	assert.Equal(t, 3, cfg.Bot.MaxToolDepth)
	assert.Equal(t, "groq", cfg.LLM.Provider)
	assert.Equal(t, "test-model", cfg.LLM.Model)
	assert.Equal(t, int64(2), cfg.RateLimit.MaxConcurrent)
	// Untouched sections keep defaults.
	assert.Equal(t, 200*time.Millisecond, cfg.RateLimit.MinInterval)
	assert.Equal(t, "stderr", cfg.Logger.Output)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("bot: ["), 0600))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "tok-123")
	t.Setenv("LLM_PROVIDER", "openrouter")
	t.Setenv("GROQ_API_KEY", "gk")
	t.Setenv("EXA_API_KEY", "ek")

	cfg := Defaults()
	ApplyEnvOverrides(cfg)
	assert.Equal(t, "tok-123", cfg.Discord.Token)
	assert.Equal(t, "openrouter", cfg.LLM.Provider)
	assert.Equal(t, "gk", cfg.LLM.Groq.APIKey)
	assert.Equal(t, "ek", cfg.Tools.ExaAPIKey)
}

func TestValidateRejectsBadProvider(t *testing.T) {
	cfg := Defaults()
	cfg.LLM.Provider = "bogus"
	assert.Error(t, Validate(cfg))
}

func TestValidateRejectsChainDepthOutOfRange(t *testing.T) {
	cfg := Defaults()
	cfg.Bot.ReplyChainDepth = 4
	assert.Error(t, Validate(cfg))
	cfg.Bot.ReplyChainDepth = 16
	assert.Error(t, Validate(cfg))
	cfg.Bot.ReplyChainDepth = 15
	assert.NoError(t, Validate(cfg))
}

func TestValidateRejectsZeroDepth(t *testing.T) {
	cfg := Defaults()
	cfg.Bot.MaxToolDepth = 0
	assert.Error(t, Validate(cfg))
}

func TestValidateMCPServers(t *testing.T) {
	cfg := Defaults()
	cfg.Tools.MCPServers = []MCPServer{{Name: "fs", Transport: "stdio", Command: "mcp-fs"}}
	assert.NoError(t, Validate(cfg))

	cfg.Tools.MCPServers = []MCPServer{{Name: "remote", Transport: "http", URL: "http://localhost:8123"}}
	assert.NoError(t, Validate(cfg))

	cfg.Tools.MCPServers = []MCPServer{{Transport: "stdio", Command: "mcp-fs"}}
	assert.Error(t, Validate(cfg))

	cfg.Tools.MCPServers = []MCPServer{{Name: "fs", Transport: "stdio"}}
	assert.Error(t, Validate(cfg))

	cfg.Tools.MCPServers = []MCPServer{{Name: "remote", Transport: "http"}}
	assert.Error(t, Validate(cfg))

	cfg.Tools.MCPServers = []MCPServer{{Name: "x", Transport: "websocket"}}
	assert.Error(t, Validate(cfg))
}
