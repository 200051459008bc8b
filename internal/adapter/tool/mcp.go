package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
	"go.opentelemetry.io/otel/trace"

	"chloe-bot/internal/domain"
	"chloe-bot/internal/infra/tracer"
)

// mcpCallTimeout bounds a single bridged tool call.
const mcpCallTimeout = 30 * time.Second

// MCPServerSpec describes one external MCP server to bridge. Transport is
// "stdio" (Command/Args/Env) or "http" (URL).
type MCPServerSpec struct {
	Name      string
	Transport string
	Command   string
	Args      []string
	Env       map[string]string
	URL       string
}

// mcpCaller is the slice of the MCP client the bridge needs.
type mcpCaller interface {
	ListTools(ctx context.Context, req mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	CallTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
	Close() error
}

type mcpConn struct {
	name   string
	client mcpCaller
}

// MCPBridge connects to external MCP servers and exposes every tool they
// export as a domain.Tool, named mcp_<server>_<tool>.
type MCPBridge struct {
	conns  []mcpConn
	tools  []domain.Tool
	logger *slog.Logger
}

// NewMCPBridge connects to the given servers and discovers their tools.
// A server that connects but fails discovery is skipped with a warning;
// the bridge errors only when every server is unusable.
func NewMCPBridge(ctx context.Context, specs []MCPServerSpec, logger *slog.Logger) (*MCPBridge, error) {
	b := &MCPBridge{logger: logger}

	for _, spec := range specs {
		c, err := b.dial(ctx, spec)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("mcp server %q: %w", spec.Name, err)
		}
		b.conns = append(b.conns, mcpConn{name: spec.Name, client: c})
	}

	if err := b.discover(ctx); err != nil {
		b.Close()
		return nil, err
	}
	return b, nil
}

// newMCPBridgeFromConns assembles a bridge over pre-built clients (tests).
func newMCPBridgeFromConns(ctx context.Context, conns []mcpConn, logger *slog.Logger) (*MCPBridge, error) {
	b := &MCPBridge{conns: conns, logger: logger}
	if err := b.discover(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *MCPBridge) dial(ctx context.Context, spec MCPServerSpec) (mcpCaller, error) {
	var c mcpCaller

	switch spec.Transport {
	case "stdio":
		sc, err := mcpclient.NewStdioMCPClient(spec.Command, envPairs(spec.Env), spec.Args...)
		if err != nil {
			return nil, fmt.Errorf("stdio client: %w", err)
		}
		c = sc
	case "http":
		t, err := transport.NewStreamableHTTP(spec.URL)
		if err != nil {
			return nil, fmt.Errorf("http transport: %w", err)
		}
		hc := mcpclient.NewClient(t)
		if err := hc.Start(ctx); err != nil {
			return nil, fmt.Errorf("start http client: %w", err)
		}
		c = hc
	default:
		return nil, fmt.Errorf("unsupported transport %q", spec.Transport)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "chloe-bot", Version: "1.0.0"}

	if ic, ok := c.(interface {
		Initialize(ctx context.Context, req mcp.InitializeRequest) (*mcp.InitializeResult, error)
	}); ok {
		if _, err := ic.Initialize(ctx, initReq); err != nil {
			c.Close()
			return nil, domain.WrapOp("MCPBridge.dial", err)
		}
	}

	b.logger.Info("mcp server connected", "name", spec.Name, "transport", spec.Transport)
	return c, nil
}

func (b *MCPBridge) discover(ctx context.Context) error {
	var failed []string
	reachable := 0

	for _, conn := range b.conns {
		listed, err := conn.client.ListTools(ctx, mcp.ListToolsRequest{})
		if err != nil {
			b.logger.Warn("mcp tool discovery failed, skipping server",
				"server", conn.name, "error", err)
			failed = append(failed, fmt.Sprintf("%s: %v", conn.name, err))
			continue
		}
		for _, t := range listed.Tools {
			b.tools = append(b.tools, newMCPTool(conn.name, conn.client, t, b.logger))
		}
		b.logger.Info("mcp tools discovered", "server", conn.name, "count", len(listed.Tools))
		reachable++
	}

	if reachable == 0 && len(failed) > 0 {
		return fmt.Errorf("no usable mcp servers: %s", strings.Join(failed, "; "))
	}
	return nil
}

// Tools returns the bridged tools, ready for registration.
func (b *MCPBridge) Tools() []domain.Tool { return b.tools }

// Close shuts down every server connection.
func (b *MCPBridge) Close() {
	for _, conn := range b.conns {
		if err := conn.client.Close(); err != nil {
			b.logger.Warn("mcp server close", "server", conn.name, "error", err)
		}
	}
}

// mcpTool adapts one remote MCP tool to domain.Tool.
type mcpTool struct {
	server string
	client mcpCaller
	remote mcp.Tool
	name   string
	logger *slog.Logger
}

func newMCPTool(server string, client mcpCaller, remote mcp.Tool, logger *slog.Logger) *mcpTool {
	return &mcpTool{
		server: server,
		client: client,
		remote: remote,
		name:   "mcp_" + toolNameSafe(server) + "_" + toolNameSafe(remote.Name),
		logger: logger,
	}
}

func (t *mcpTool) Name() string { return t.name }

func (t *mcpTool) Description() string {
	if t.remote.Description != "" {
		return t.remote.Description
	}
	return fmt.Sprintf("Tool %q provided by MCP server %q", t.remote.Name, t.server)
}

func (t *mcpTool) Schema() domain.ToolSchema {
	params := json.RawMessage(`{"type": "object"}`)
	if t.remote.InputSchema.Properties != nil || t.remote.InputSchema.Required != nil {
		if data, err := json.Marshal(t.remote.InputSchema); err == nil {
			params = data
		}
	}
	return domain.ToolSchema{
		Name:        t.name,
		Description: t.Description(),
		Parameters:  params,
	}
}

func (t *mcpTool) NeedsSideChannel() bool    { return false }
func (t *mcpTool) NeedsResultFeedback() bool { return true }

func (t *mcpTool) Execute(ctx context.Context, params json.RawMessage, _ domain.SideChannel) (*domain.ToolResult, error) {
	ctx, span := tracer.StartSpan(ctx, "tool."+t.name,
		trace.WithAttributes(tracer.StringAttr("mcp.server", t.server)))
	defer span.End()

	var args map[string]any
	if len(params) > 0 && string(params) != "null" {
		if err := json.Unmarshal(params, &args); err != nil {
			tracer.RecordError(span, err)
			return &domain.ToolResult{
				IsError: true,
				Content: fmt.Sprintf("invalid arguments: %v", err),
			}, nil
		}
	}

	callReq := mcp.CallToolRequest{}
	callReq.Params.Name = t.remote.Name
	callReq.Params.Arguments = args

	t.logger.Debug("mcp tool call", "server", t.server, "tool", t.remote.Name)

	callCtx, cancel := context.WithTimeout(ctx, mcpCallTimeout)
	defer cancel()

	res, err := t.client.CallTool(callCtx, callReq)
	if err != nil {
		tracer.RecordError(span, err)
		return &domain.ToolResult{
			IsError:     true,
			IsRetryable: true,
			Content:     fmt.Sprintf("mcp call failed: %v", err),
		}, nil
	}

	tracer.SetOK(span)
	return &domain.ToolResult{
		Content: flattenMCPContent(res),
		IsError: res.IsError,
	}, nil
}

// flattenMCPContent joins the textual parts of an MCP result; non-text
// parts are carried as JSON.
func flattenMCPContent(res *mcp.CallToolResult) string {
	var parts []string
	for _, c := range res.Content {
		switch v := c.(type) {
		case mcp.TextContent:
			parts = append(parts, v.Text)
		case *mcp.TextContent:
			parts = append(parts, v.Text)
		default:
			if data, err := json.Marshal(v); err == nil {
				parts = append(parts, string(data))
			}
		}
	}
	return strings.Join(parts, "\n")
}

// toolNameSafe maps anything outside [A-Za-z0-9_] to underscores so bridged
// names satisfy the function-calling name rules.
func toolNameSafe(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// envPairs flattens an env map into KEY=VALUE form for process spawning.
func envPairs(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	pairs := make([]string, 0, len(env))
	for k, v := range env {
		pairs = append(pairs, k+"="+v)
	}
	return pairs
}
