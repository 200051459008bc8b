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

	"go.opentelemetry.io/otel/trace"

	"chloe-bot/internal/domain"
	"chloe-bot/internal/infra/tracer"
)

const (
	defaultImagenBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	imagenModel          = "imagen-3.0-generate-002"
	imagenSampleCount    = 4
	maxImageBodySize     = 64 * 1024 * 1024
)

// imagenRequest models the Imagen predict API request body.
type imagenRequest struct {
	Instances  []imagenInstance `json:"instances"`
	Parameters imagenParameters `json:"parameters"`
}

type imagenInstance struct {
	Prompt string `json:"prompt"`
}

type imagenParameters struct {
	SampleCount int `json:"sampleCount"`
}

// imagenResponse models the relevant portion of the predict response.
type imagenResponse struct {
	Predictions []struct {
		BytesBase64Encoded string `json:"bytesBase64Encoded"`
		MIMEType           string `json:"mimeType"`
	} `json:"predictions"`
}

// ImageGenerationTool generates images via Google's Imagen API and returns
// them as data URLs.
type ImageGenerationTool struct {
	client  *http.Client
	baseURL string
	apiKey  string
	logger  *slog.Logger
}

// NewImageGenerationTool creates an image generation tool.
func NewImageGenerationTool(apiKey string, logger *slog.Logger) *ImageGenerationTool {
	return &ImageGenerationTool{
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
		baseURL: defaultImagenBaseURL,
		apiKey:  apiKey,
		logger:  logger,
	}
}

func (t *ImageGenerationTool) Name() string { return "generate_image" }

func (t *ImageGenerationTool) Description() string {
	return "Generate images using Google's Imagen AI. Provide a detailed description of what you want to create. MUST be used when users ask you to create, generate, make, or draw images, pictures, or visual content."
}

func (t *ImageGenerationTool) NeedsSideChannel() bool    { return false }
func (t *ImageGenerationTool) NeedsResultFeedback() bool { return true }

func (t *ImageGenerationTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"prompt": {"type": "string", "description": "A detailed description of the image to generate"}
			},
			"required": ["prompt"]
		}`),
	}
}

type imageGenerationParams struct {
	Prompt string `json:"prompt"`
}

func (t *ImageGenerationTool) Execute(ctx context.Context, params json.RawMessage, _ domain.SideChannel) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.generate_image", t.logger, params,
		func(ctx context.Context, span trace.Span, p imageGenerationParams) (any, error) {
			if err := RequireField("prompt", strings.TrimSpace(p.Prompt)); err != nil {
				return nil, err
			}
			if t.apiKey == "" {
				return nil, fmt.Errorf("image generation is not configured (missing API key)")
			}

			body, err := json.Marshal(imagenRequest{
				Instances:  []imagenInstance{{Prompt: p.Prompt}},
				Parameters: imagenParameters{SampleCount: imagenSampleCount},
			})
			if err != nil {
				return nil, fmt.Errorf("marshal request: %w", err)
			}

			endpoint := fmt.Sprintf("%s/models/%s:predict?key=%s",
				strings.TrimRight(t.baseURL, "/"), imagenModel, t.apiKey)

			req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
			if err != nil {
				return nil, fmt.Errorf("create request: %w", err)
			}
			req.Header.Set("Content-Type", "application/json")

			resp, err := t.client.Do(req)
			if err != nil {
				return nil, fmt.Errorf("imagen request: %w", err)
			}
			defer resp.Body.Close()

			respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBodySize))
			if err != nil {
				return nil, fmt.Errorf("read response: %w", err)
			}

			if resp.StatusCode != http.StatusOK {
				return nil, fmt.Errorf("imagen failed (HTTP %d): %s", resp.StatusCode, snippet(string(respBody), 500))
			}

			var imgResp imagenResponse
			if err := json.Unmarshal(respBody, &imgResp); err != nil {
				return nil, fmt.Errorf("parse response: %w", err)
			}

			if len(imgResp.Predictions) == 0 || imgResp.Predictions[0].BytesBase64Encoded == "" {
				return nil, fmt.Errorf("no image data in response")
			}

			pred := imgResp.Predictions[0]
			mime := pred.MIMEType
			if mime == "" {
				mime = "image/png"
			}

			t.logger.Debug("image generated", "prompt", p.Prompt, "mime", mime)
			span.SetAttributes(tracer.StringAttr("tool.mime_type", mime))
			return fmt.Sprintf("data:%s;base64,%s", mime, pred.BytesBase64Encoded), nil
		},
	)
}
