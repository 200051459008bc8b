package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"
)

func newFetchResponse(contentType string) *http.Response {
	resp := &http.Response{
		Status:     "200 OK",
		StatusCode: http.StatusOK,
		Header:     http.Header{},
	}
	resp.Header.Set("Content-Type", contentType)
	return resp
}

func TestFormatFetchResult(t *testing.T) {
	resp := newFetchResponse("text/plain; charset=utf-8")
	got := formatFetchResult(resp, []byte("hello world"))

	for _, want := range []string{
		"Status: 200 OK",
		"Content-Type: text/plain; charset=utf-8",
		"Content-Length: 11 bytes",
		"Content:\nhello world",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("result missing %q:\n%s", want, got)
		}
	}
}

func TestFormatFetchResultTruncatesLargeBody(t *testing.T) {
	big := []byte(strings.Repeat("x", maxFetchBodySize+1000))
	got := formatFetchResult(newFetchResponse("text/html"), big)

	if !strings.Contains(got, "Content (truncated to 50KB):") {
		t.Error("expected truncation marker")
	}
	if !strings.Contains(got, fmt.Sprintf("[Content truncated. Original size: %d bytes]", len(big))) {
		t.Error("expected original size footer")
	}
	if len(got) > maxFetchBodySize+500 {
		t.Errorf("formatted result too large: %d bytes", len(got))
	}
}

func TestFetchToolRejectsBadMethod(t *testing.T) {
	ft := NewFetchTool(5*time.Second, newTestLogger())
	params, _ := json.Marshal(fetchParams{URL: "http://example.com", Method: "POST"})

	res, err := ft.Execute(context.Background(), params, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError {
		t.Error("expected error result for POST method")
	}
}

func TestFetchToolRejectsPrivateURL(t *testing.T) {
	ft := NewFetchTool(5*time.Second, newTestLogger())
	params, _ := json.Marshal(fetchParams{URL: "http://127.0.0.1/secrets"})

	res, err := ft.Execute(context.Background(), params, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError {
		t.Error("expected error result for private address")
	}
}

func TestFetchToolRejectsBadScheme(t *testing.T) {
	ft := NewFetchTool(5*time.Second, newTestLogger())
	params, _ := json.Marshal(fetchParams{URL: "file:///etc/passwd"})

	res, err := ft.Execute(context.Background(), params, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError {
		t.Error("expected error result for file scheme")
	}
}
