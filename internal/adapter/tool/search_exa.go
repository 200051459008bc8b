package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	defaultExaBaseURL = "https://api.exa.ai"
	maxSearchBodySize = 512 * 1024 // 512KB
)

// exaRequest models the Exa search API request body.
type exaRequest struct {
	Query      string      `json:"query"`
	NumResults int         `json:"numResults"`
	Type       string      `json:"type,omitempty"`
	Contents   exaContents `json:"contents"`
}

type exaContents struct {
	Text bool `json:"text"`
}

// exaResponse models the relevant portion of the Exa JSON response.
type exaResponse struct {
	Results []struct {
		Title         string `json:"title"`
		URL           string `json:"url"`
		PublishedDate string `json:"publishedDate"`
		Text          string `json:"text"`
	} `json:"results"`
}

// ExaBackend searches the web via the Exa AI search API.
type ExaBackend struct {
	client  *http.Client
	baseURL string
	apiKey  string
	logger  *slog.Logger
}

// NewExaBackend creates a search backend backed by the Exa API.
func NewExaBackend(apiKey string, logger *slog.Logger) *ExaBackend {
	return &ExaBackend{
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		baseURL: defaultExaBaseURL,
		apiKey:  apiKey,
		logger:  logger,
	}
}

func (b *ExaBackend) Name() string { return "exa" }

func (b *ExaBackend) Search(ctx context.Context, query string, count int) ([]SearchResult, error) {
	body, err := json.Marshal(exaRequest{
		Query:      query,
		NumResults: count,
		Type:       "keyword",
		Contents:   exaContents{Text: true},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(b.baseURL, "/")+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", b.apiKey)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxSearchBodySize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search failed (HTTP %d): %s", resp.StatusCode, string(respBody))
	}

	var exaResp exaResponse
	if err := json.Unmarshal(respBody, &exaResp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	results := make([]SearchResult, 0, len(exaResp.Results))
	for _, r := range exaResp.Results {
		if len(results) >= count {
			break
		}
		results = append(results, SearchResult{
			Title:     r.Title,
			URL:       r.URL,
			Content:   r.Text,
			Published: r.PublishedDate,
		})
	}

	b.logger.Debug("exa search completed", "query", query, "results", len(results))
	return results, nil
}
