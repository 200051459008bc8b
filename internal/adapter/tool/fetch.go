package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"chloe-bot/internal/domain"
	"chloe-bot/internal/infra/tracer"
	"chloe-bot/internal/security"
)

const (
	defaultFetchTimeout = 30 * time.Second
	maxFetchBodySize    = 50 * 1000 // 50KB of content fed back to the model
	maxFetchReadSize    = 1 * 1024 * 1024
)

// FetchTool fetches content from URLs with SSRF protection.
type FetchTool struct {
	client *http.Client
	logger *slog.Logger
}

// NewFetchTool creates a URL fetch tool with SSRF protection.
func NewFetchTool(timeout time.Duration, logger *slog.Logger) *FetchTool {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &FetchTool{
		client: &http.Client{
			Transport: security.NewSSRFSafeTransport(),
			Timeout:   timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("too many redirects")
				}
				// Validate each redirect target for SSRF
				return security.ValidateURL(req.URL.String())
			},
		},
		logger: logger,
	}
}

func (t *FetchTool) Name() string { return "fetch" }

func (t *FetchTool) Description() string {
	return "Fetch the raw content of a web page. Use this when the user shares a link or when you need the full text of a specific page rather than search results."
}

func (t *FetchTool) NeedsSideChannel() bool    { return false }
func (t *FetchTool) NeedsResultFeedback() bool { return true }

func (t *FetchTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"url": {"type": "string", "description": "The URL to fetch"},
				"method": {"type": "string", "enum": ["GET", "HEAD"], "description": "HTTP method (default: GET)"}
			},
			"required": ["url"]
		}`),
	}
}

type fetchParams struct {
	URL    string `json:"url"`
	Method string `json:"method,omitempty"`
}

func (t *FetchTool) Execute(ctx context.Context, params json.RawMessage, _ domain.SideChannel) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.fetch", t.logger, params,
		func(ctx context.Context, span trace.Span, p fetchParams) (any, error) {
			if err := ValidateAll(
				RequireField("url", p.URL),
				ValidateEnum("method", p.Method, http.MethodGet, http.MethodHead),
			); err != nil {
				return nil, err
			}
			method := p.Method
			if method == "" {
				method = http.MethodGet
			}

			if err := security.ValidateURL(p.URL); err != nil {
				return nil, err
			}

			span.SetAttributes(tracer.StringAttr("tool.url", p.URL))

			req, err := http.NewRequestWithContext(ctx, method, p.URL, nil)
			if err != nil {
				return nil, fmt.Errorf("create request: %v", err)
			}

			resp, err := t.client.Do(req)
			if err != nil {
				return nil, fmt.Errorf("http request: %v", err)
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchReadSize))
			if err != nil {
				return nil, fmt.Errorf("read body: %v", err)
			}

			t.logger.Debug("fetch completed", "url", p.URL, "status", resp.StatusCode, "size", len(body))
			return formatFetchResult(resp, body), nil
		},
	)
}

// formatFetchResult renders the response headers and body, truncating large
// bodies so tool output stays within sane prompt bounds.
func formatFetchResult(resp *http.Response, body []byte) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Status: %s\n", resp.Status)
	fmt.Fprintf(&sb, "Content-Type: %s\n", resp.Header.Get("Content-Type"))
	fmt.Fprintf(&sb, "Content-Length: %d bytes\n\n", len(body))

	if len(body) > maxFetchBodySize {
		sb.WriteString("Content (truncated to 50KB):\n")
		sb.Write(body[:maxFetchBodySize])
		fmt.Fprintf(&sb, "\n\n[Content truncated. Original size: %d bytes]", len(body))
	} else {
		sb.WriteString("Content:\n")
		sb.Write(body)
	}
	return sb.String()
}
