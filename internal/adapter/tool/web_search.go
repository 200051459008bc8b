package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/trace"

	"chloe-bot/internal/domain"
	"chloe-bot/internal/infra/tracer"
)

const (
	defaultSearchCount = 5
	maxSearchCount     = 20
	maxSnippetLen      = 300
	defaultCacheTTL    = 15 * time.Minute
)

// cacheEntry holds a cached search result with its expiration time.
type cacheEntry struct {
	result    string
	expiresAt time.Time
}

// WebSearchTool performs web searches via a pluggable SearchBackend.
type WebSearchTool struct {
	backend  SearchBackend
	cacheTTL time.Duration
	logger   *slog.Logger

	mu    sync.Mutex
	cache map[string]cacheEntry
}

// NewWebSearchTool creates a web search tool backed by the given SearchBackend.
func NewWebSearchTool(backend SearchBackend, cacheTTL time.Duration, logger *slog.Logger) *WebSearchTool {
	if cacheTTL <= 0 {
		cacheTTL = defaultCacheTTL
	}
	return &WebSearchTool{
		backend:  backend,
		cacheTTL: cacheTTL,
		logger:   logger,
		cache:    make(map[string]cacheEntry),
	}
}

func (t *WebSearchTool) Name() string { return "web_search" }

func (t *WebSearchTool) Description() string {
	return "Search the web for current information. Returns raw search data that you MUST process and synthesize into a helpful, conversational response. NEVER copy-paste the raw results. Use this tool for: music, videos, news, products, people, places, current events, or any information requiring web search."
}

func (t *WebSearchTool) NeedsSideChannel() bool    { return false }
func (t *WebSearchTool) NeedsResultFeedback() bool { return true }

func (t *WebSearchTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"query": {"type": "string", "description": "The search query"},
				"count": {"type": "integer", "minimum": 1, "maximum": 20, "description": "Number of results (default: 5)"}
			},
			"required": ["query"]
		}`),
	}
}

type webSearchParams struct {
	Query string `json:"query"`
	Count int    `json:"count,omitempty"`
}

func (t *WebSearchTool) Execute(ctx context.Context, params json.RawMessage, _ domain.SideChannel) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.web_search", t.logger, params,
		func(ctx context.Context, span trace.Span, p webSearchParams) (any, error) {
			if err := RequireField("query", strings.TrimSpace(p.Query)); err != nil {
				return nil, err
			}

			span.SetAttributes(tracer.StringAttr("tool.query", p.Query))

			if p.Count <= 0 {
				p.Count = defaultSearchCount
			}
			if p.Count > maxSearchCount {
				p.Count = maxSearchCount
			}

			cacheKey := fmt.Sprintf("%s|%d", p.Query, p.Count)

			if cached, ok := t.getCached(cacheKey); ok {
				t.logger.Debug("web search cache hit", "query", p.Query)
				span.SetAttributes(tracer.StringAttr("tool.cache", "hit"))
				return cached, nil
			}

			results, err := t.backend.Search(ctx, p.Query, p.Count)
			if err != nil {
				return nil, err
			}

			if len(results) > p.Count {
				results = results[:p.Count]
			}

			content := formatSearchResults(p.Query, results)

			t.putCache(cacheKey, content)

			t.logger.Debug("web search completed", "query", p.Query, "results", len(results))
			return content, nil
		},
	)
}

// formatSearchResults renders results in a form the model is expected to
// synthesize rather than echo back to the user.
func formatSearchResults(query string, results []SearchResult) string {
	if len(results) == 0 {
		return fmt.Sprintf("No search results found for query: '%s'", query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SEARCH_RESULTS_FOR_PROCESSING - Query: '%s'\n", query)
	sb.WriteString("INSTRUCTIONS: Process this information and provide a helpful, conversational response to the user. Do not copy-paste this raw data.\n\n")
	sb.WriteString("FOUND_INFORMATION:\n")
	for i, r := range results {
		fmt.Fprintf(&sb, "Source %d: %s\n", i+1, r.Title)
		fmt.Fprintf(&sb, "URL: %s\n", r.URL)
		if r.Content != "" {
			fmt.Fprintf(&sb, "Content: %s\n", snippet(r.Content, maxSnippetLen))
		}
		if r.Published != "" {
			fmt.Fprintf(&sb, "Published: %s\n", r.Published)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("END_SEARCH_RESULTS - Now synthesize this information into a helpful response for the user.")
	return sb.String()
}

// snippet truncates s to at most max bytes on a rune boundary, appending an
// ellipsis when truncated.
func snippet(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := s[:max]
	for len(cut) > 0 && !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}
	return cut + "..."
}

// getCached returns a cached result if it exists and has not expired.
func (t *WebSearchTool) getCached(key string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.cache[key]
	if !ok {
		return "", false
	}
	if time.Now().After(entry.expiresAt) {
		delete(t.cache, key)
		return "", false
	}
	return entry.result, true
}

// putCache stores a result in the cache with the configured TTL.
func (t *WebSearchTool) putCache(key, result string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.cache[key] = cacheEntry{
		result:    result,
		expiresAt: time.Now().Add(t.cacheTTL),
	}

	// Lazy eviction: remove expired entries if cache grows large
	if len(t.cache) > 100 {
		now := time.Now()
		for k, v := range t.cache {
			if now.After(v.expiresAt) {
				delete(t.cache, k)
			}
		}
	}
}
