package llm

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"chloe-bot/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestMapHTTPError(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"rate limit", 429, "slow down", domain.ErrRateLimited},
		{"unauthorized", 401, "bad key", domain.ErrAuthFailed},
		{"forbidden", 403, "no", domain.ErrAuthFailed},
		{"not found", 404, "no such model", domain.ErrModelNotAvailable},
		{"bad request", 400, "malformed", domain.ErrInvalidRequest},
		{"server error", 500, "boom", domain.ErrProviderUnavailable},
		{"bad gateway", 502, "bad", domain.ErrProviderUnavailable},
		{"unavailable", 503, "The model is over capacity", domain.ErrProviderUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mapHTTPError(tt.status, []byte(tt.body))
			if !errors.Is(err, tt.want) {
				t.Errorf("mapHTTPError(%d) = %v, want %v", tt.status, err, tt.want)
			}
		})
	}
}

func TestMapHTTPErrorOverCapacityBody(t *testing.T) {
	// Capacity shedding with an unusual status still classifies transient.
	err := mapHTTPError(429, []byte("Please try again in 2.5s"))
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Errorf("429 should stay a rate limit error, got %v", err)
	}
	err = mapHTTPError(418, []byte("over capacity"))
	if !errors.Is(err, domain.ErrProviderUnavailable) {
		t.Errorf("over capacity body should be transient, got %v", err)
	}
}

func TestMapHTTPErrorUnknownStatus(t *testing.T) {
	err := mapHTTPError(418, []byte("teapot"))
	if domain.IsRetryableError(err) {
		t.Error("unknown status should not be retryable")
	}
}

func TestDoJSONRequestSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("missing content type, got %q", r.Header.Get("Content-Type"))
		}
		if r.Header.Get("X-Custom") != "yes" {
			t.Errorf("custom header not set")
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	body, err := doJSONRequest(context.Background(), srv.Client(), srv.URL, []byte(`{}`), map[string]string{"X-Custom": "yes"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(body) != `{"ok":true}` {
		t.Errorf("body = %q", body)
	}
}

func TestDoJSONRequestRetrySchedule(t *testing.T) {
	want := [maxRetries]time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	if retryDelays != want {
		t.Errorf("retryDelays = %v, want %v", retryDelays, want)
	}
}

func TestDoJSONRequestRetryTransient(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("over capacity"))
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	start := time.Now()
	body, err := doJSONRequestRetry(context.Background(), srv.Client(), srv.URL, []byte(`{}`), nil, discardLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(body) != `{"ok":true}` {
		t.Errorf("body = %q", body)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("calls = %d, want 2", got)
	}
	if elapsed := time.Since(start); elapsed < time.Second {
		t.Errorf("first retry should wait 1s, waited %v", elapsed)
	}
}

func TestDoJSONRequestRetryTerminalNoRetry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := doJSONRequestRetry(context.Background(), srv.Client(), srv.URL, []byte(`{}`), nil, discardLogger())
	if !errors.Is(err, domain.ErrAuthFailed) {
		t.Fatalf("want auth error, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("calls = %d, want 1 (no retry on terminal errors)", got)
	}
}

func TestDoJSONRequestRetryContextCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := doJSONRequestRetry(ctx, srv.Client(), srv.URL, []byte(`{}`), nil, discardLogger())
	if err == nil {
		t.Fatal("expected error")
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("cancel should cut the backoff short, waited %v", elapsed)
	}
}
