package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"chloe-bot/internal/domain"
	"chloe-bot/internal/infra/config"
)

func testOpenRouter(t *testing.T, handler http.HandlerFunc) *OpenAICompatProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewOpenRouterProvider(config.ProviderConfig{
		BaseURL: srv.URL,
		APIKey:  "or-key",
	}, "", discardLogger())
}

func TestOpenRouterInjectsHeaders(t *testing.T) {
	var gotReferer, gotTitle string
	p := testOpenRouter(t, func(w http.ResponseWriter, r *http.Request) {
		gotReferer = r.Header.Get("HTTP-Referer")
		gotTitle = r.Header.Get("X-Title")
		w.Write(completionJSON("hi"))
	})

	_, err := p.Generate(context.Background(), domain.ChatRequest{
		Messages: []domain.Message{{Role: domain.RoleUser, Content: "x"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotReferer == "" {
		t.Error("HTTP-Referer not injected")
	}
	if gotTitle != "Chloe Discord Bot" {
		t.Errorf("X-Title = %q", gotTitle)
	}
}

func TestOpenRouterAcceptsUnknownModel(t *testing.T) {
	p := testOpenRouter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(completionJSON("ok"))
	})

	// Open catalog: unlisted models pass validation.
	_, err := p.Generate(context.Background(), domain.ChatRequest{
		Model:    "someone/some-new-model",
		Messages: []domain.Message{{Role: domain.RoleUser, Content: "x"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestOpenRouterImageContentParts(t *testing.T) {
	var gotRaw map[string]any
	p := testOpenRouter(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotRaw)
		w.Write(completionJSON("seen"))
	})

	_, err := p.Generate(context.Background(), domain.ChatRequest{
		Messages: []domain.Message{{
			Role:    domain.RoleUser,
			Content: "what is this?",
			Images:  []domain.Image{{Base64: "aGk=", MIMEType: "image/png"}},
		}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	msgs := gotRaw["messages"].([]any)
	parts, ok := msgs[0].(map[string]any)["content"].([]any)
	if !ok {
		t.Fatalf("content should be multi-part, got %T", msgs[0].(map[string]any)["content"])
	}
	if len(parts) != 2 {
		t.Fatalf("parts = %d, want 2", len(parts))
	}
	img := parts[1].(map[string]any)
	url := img["image_url"].(map[string]any)["url"].(string)
	if url != "data:image/png;base64,aGk=" {
		t.Errorf("image url = %q", url)
	}
}

func TestOpenRouterCapabilities(t *testing.T) {
	p := NewOpenRouterProvider(config.ProviderConfig{APIKey: "k"}, "", discardLogger())
	if p.Name() != "openrouter" {
		t.Errorf("Name = %q", p.Name())
	}
	if !p.SupportsImages() {
		t.Error("openrouter supports images")
	}
	if p.DefaultModel() != openrouterDefaultModel {
		t.Errorf("DefaultModel = %q", p.DefaultModel())
	}
}
