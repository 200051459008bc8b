package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"chloe-bot/internal/domain"
	"chloe-bot/internal/infra/tracer"
	"chloe-bot/internal/security"
)

const maxBrowserTextSize = 50 * 1000

// BrowserTool renders JavaScript-heavy pages in a real browser and returns
// their visible text. Use FetchTool for plain pages; this one is expensive.
type BrowserTool struct {
	backend BrowserBackend
	logger  *slog.Logger
}

// NewBrowserTool creates a browser rendering tool.
func NewBrowserTool(backend BrowserBackend, logger *slog.Logger) *BrowserTool {
	return &BrowserTool{backend: backend, logger: logger}
}

func (t *BrowserTool) Name() string { return "browser_render" }

func (t *BrowserTool) Description() string {
	return "Render a web page in a real browser and read its visible text. Use this only when fetch returns scripts instead of content, since rendering is slow."
}

func (t *BrowserTool) NeedsSideChannel() bool    { return false }
func (t *BrowserTool) NeedsResultFeedback() bool { return true }

func (t *BrowserTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"url": {"type": "string", "description": "The URL to render"}
			},
			"required": ["url"]
		}`),
	}
}

type browserParams struct {
	URL string `json:"url"`
}

func (t *BrowserTool) Execute(ctx context.Context, params json.RawMessage, _ domain.SideChannel) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.browser_render", t.logger, params,
		func(ctx context.Context, span trace.Span, p browserParams) (any, error) {
			if err := RequireField("url", p.URL); err != nil {
				return nil, err
			}
			if err := security.ValidateURL(p.URL); err != nil {
				return nil, err
			}

			span.SetAttributes(tracer.StringAttr("tool.url", p.URL))

			page, err := t.backend.Render(ctx, p.URL)
			if err != nil {
				return nil, err
			}

			text := page.Text
			truncated := false
			if len(text) > maxBrowserTextSize {
				text = snippet(text, maxBrowserTextSize)
				truncated = true
			}

			var sb strings.Builder
			fmt.Fprintf(&sb, "Title: %s\n", page.Title)
			fmt.Fprintf(&sb, "URL: %s\n\n", page.URL)
			sb.WriteString(text)
			if truncated {
				fmt.Fprintf(&sb, "\n\n[Content truncated. Original size: %d bytes]", len(page.Text))
			}
			return sb.String(), nil
		},
	)
}
