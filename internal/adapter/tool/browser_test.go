package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
)

// mockBrowserBackend implements BrowserBackend for testing.
type mockBrowserBackend struct {
	page *RenderedPage
	err  error
}

func (m *mockBrowserBackend) Render(context.Context, string) (*RenderedPage, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.page, nil
}

func (m *mockBrowserBackend) Close() error { return nil }

func TestBrowserToolRender(t *testing.T) {
	backend := &mockBrowserBackend{page: &RenderedPage{
		Title: "Example Domain",
		URL:   "https://example.com/",
		Text:  "This domain is for use in illustrative examples.",
	}}
	bt := NewBrowserTool(backend, newTestLogger())

	params, _ := json.Marshal(browserParams{URL: "http://8.8.8.8/page"})
	res, err := bt.Execute(context.Background(), params, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("unexpected error result: %s", res.Content)
	}

	for _, want := range []string{
		"Title: Example Domain",
		"URL: https://example.com/",
		"illustrative examples",
	} {
		if !strings.Contains(res.Content, want) {
			t.Errorf("result missing %q:\n%s", want, res.Content)
		}
	}
}

func TestBrowserToolTruncatesLongText(t *testing.T) {
	backend := &mockBrowserBackend{page: &RenderedPage{
		Title: "Big",
		URL:   "https://example.com/",
		Text:  strings.Repeat("y", maxBrowserTextSize+500),
	}}
	bt := NewBrowserTool(backend, newTestLogger())

	params, _ := json.Marshal(browserParams{URL: "http://8.8.8.8/page"})
	res, err := bt.Execute(context.Background(), params, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(res.Content, "[Content truncated.") {
		t.Error("expected truncation footer")
	}
}

func TestBrowserToolRenderFailure(t *testing.T) {
	backend := &mockBrowserBackend{err: fmt.Errorf("browser crashed")}
	bt := NewBrowserTool(backend, newTestLogger())

	params, _ := json.Marshal(browserParams{URL: "http://8.8.8.8/page"})
	res, err := bt.Execute(context.Background(), params, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError {
		t.Error("expected error result from render failure")
	}
}

func TestBrowserToolRejectsPrivateURL(t *testing.T) {
	bt := NewBrowserTool(&mockBrowserBackend{}, newTestLogger())

	params, _ := json.Marshal(browserParams{URL: "http://169.254.169.254/latest/meta-data"})
	res, err := bt.Execute(context.Background(), params, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError {
		t.Error("expected error result for metadata endpoint")
	}
}
