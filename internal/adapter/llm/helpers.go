package llm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"chloe-bot/internal/domain"
	"chloe-bot/internal/infra/tracer"
)

// maxResponseBody is the maximum response body size we read from LLM APIs.
const maxResponseBody = 10 * 1024 * 1024 // 10 MB

// maxRetries is how many times a transient provider failure is retried.
const maxRetries = 3

// retryDelays holds the backoff before retry attempt n+1.
var retryDelays = [maxRetries]time.Duration{time.Second, 2 * time.Second, 4 * time.Second}

// doJSONRequest performs a JSON POST request and returns the response body.
// It handles: create request, set headers, execute, read body (with limit),
// and check HTTP status code. Returns a domain error for non-200 responses.
func doJSONRequest(ctx context.Context, client *http.Client, url string, body []byte, headers map[string]string) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	httpResp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, mapHTTPError(httpResp.StatusCode, respBody)
	}

	return respBody, nil
}

// doJSONRequestRetry wraps doJSONRequest with the standard retry schedule:
// transient errors retry after 1s, 2s, 4s; anything else fails immediately.
// Context cancellation cuts the backoff sleep short.
func doJSONRequestRetry(ctx context.Context, client *http.Client, url string, body []byte, headers map[string]string, logger *slog.Logger) ([]byte, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		respBody, err := doJSONRequest(ctx, client, url, body, headers)
		if err == nil {
			return respBody, nil
		}
		lastErr = err
		if attempt >= maxRetries || !domain.IsRetryableError(err) {
			return nil, lastErr
		}

		delay := retryDelays[attempt]
		logger.Warn("llm request failed, retrying",
			"attempt", attempt+1,
			"delay", delay,
			"error", err,
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
}

// logGenerateCompleted logs the standard debug message after a successful completion.
func logGenerateCompleted(logger *slog.Logger, providerName string, result *domain.ChatResponse) {
	logger.Debug("llm generate completed",
		"provider", providerName,
		"model", result.Model,
		"tokens", result.Usage.TotalTokens,
	)
}

// setUsageAttrs adds token usage attributes to a trace span.
func setUsageAttrs(span trace.Span, usage domain.Usage) {
	span.SetAttributes(
		tracer.IntAttr("llm.prompt_tokens", usage.PromptTokens),
		tracer.IntAttr("llm.completion_tokens", usage.CompletionTokens),
	)
}

// mapHTTPError maps an HTTP status code + response body to a domain error.
// The sentinel chosen here drives retry, the circuit breaker, and the
// orchestrator's terminal-vs-transient handling.
func mapHTTPError(statusCode int, body []byte) error {
	bodyStr := string(body)
	detail := fmt.Sprintf("API error %d: %s", statusCode, bodyStr)

	switch {
	case statusCode == http.StatusTooManyRequests: // 429
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, detail)
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden: // 401, 403
		return fmt.Errorf("%w: %s", domain.ErrAuthFailed, detail)
	case statusCode == http.StatusNotFound: // 404
		return fmt.Errorf("%w: %s", domain.ErrModelNotAvailable, detail)
	case statusCode == http.StatusBadRequest: // 400
		return fmt.Errorf("%w: %s", domain.ErrInvalidRequest, detail)
	case statusCode >= 500: // 500, 502, 503, etc.
		return fmt.Errorf("%w: %s", domain.ErrProviderUnavailable, detail)
	case overCapacity(bodyStr):
		return fmt.Errorf("%w: %s", domain.ErrProviderUnavailable, detail)
	default:
		return fmt.Errorf("%s", detail)
	}
}

// overCapacity recognizes capacity-shedding responses that some providers
// return with non-5xx status codes.
func overCapacity(body string) bool {
	return strings.Contains(body, "over capacity") || strings.Contains(body, "Please try again")
}
