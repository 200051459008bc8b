package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"chloe-bot/internal/domain"
	"chloe-bot/internal/infra/config"
	"chloe-bot/internal/infra/tracer"
)

// OpenAICompatProvider implements domain.LLMProvider for any API speaking
// the OpenAI chat-completions dialect. Groq, OpenRouter, and Z.AI are thin
// configurations of this type.
type OpenAICompatProvider struct {
	name           string
	baseURL        string
	apiKey         string
	defaultModel   string
	models         []string
	supportsImages bool
	// strictModels rejects unknown models; providers serving an open model
	// catalog leave this off and only warn.
	strictModels bool
	client       *http.Client
	logger       *slog.Logger
}

// Generate implements domain.LLMProvider.
func (p *OpenAICompatProvider) Generate(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	ctx, span := tracer.StartSpan(ctx, "llm.generate",
		trace.WithAttributes(
			tracer.StringAttr("llm.provider", p.name),
			tracer.StringAttr("llm.model", req.Model),
		),
	)
	defer span.End()

	if req.Model == "" {
		req.Model = p.defaultModel
	}
	if err := p.ValidateModel(req.Model); err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}

	body, err := json.Marshal(p.toWireRequest(req))
	if err != nil {
		tracer.RecordError(span, err)
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	headers := map[string]string{}
	if p.apiKey != "" {
		headers["Authorization"] = "Bearer " + p.apiKey
	}

	respBody, err := doJSONRequestRetry(ctx, p.client, p.baseURL+"/chat/completions", body, headers, p.logger)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}

	var wireResp oaiResponse
	if err := json.Unmarshal(respBody, &wireResp); err != nil {
		tracer.RecordError(span, err)
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	result, err := fromWireResponse(wireResp)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}

	setUsageAttrs(span, result.Usage)
	tracer.SetOK(span)
	logGenerateCompleted(p.logger, p.name, result)

	return result, nil
}

// Name implements domain.LLMProvider.
func (p *OpenAICompatProvider) Name() string { return p.name }

// SupportsTools implements domain.LLMProvider.
func (p *OpenAICompatProvider) SupportsTools() bool { return true }

// SupportsImages implements domain.LLMProvider.
func (p *OpenAICompatProvider) SupportsImages() bool { return p.supportsImages }

// DefaultModel implements domain.LLMProvider.
func (p *OpenAICompatProvider) DefaultModel() string { return p.defaultModel }

// AvailableModels implements domain.LLMProvider.
func (p *OpenAICompatProvider) AvailableModels() []string {
	return slices.Clone(p.models)
}

// ValidateModel implements domain.LLMProvider.
func (p *OpenAICompatProvider) ValidateModel(model string) error {
	if len(p.models) == 0 || slices.Contains(p.models, model) {
		return nil
	}
	if !p.strictModels {
		p.logger.Warn("model not in known catalog, passing through",
			"provider", p.name,
			"model", model,
		)
		return nil
	}
	return domain.NewDomainError("Provider.ValidateModel", domain.ErrModelNotAvailable, model)
}

// --- OpenAI-dialect wire types ---

type oaiRequest struct {
	Model       string       `json:"model"`
	Messages    []oaiMessage `json:"messages"`
	Tools       []oaiTool    `json:"tools,omitempty"`
	MaxTokens   int          `json:"max_tokens,omitempty"`
	Temperature *float64     `json:"temperature,omitempty"`
}

// oaiMessage covers both directions: requests may carry multi-part content
// (text plus images), responses always return plain text.
type oaiMessage struct {
	Role       string        `json:"role"`
	Content    any           `json:"content,omitempty"`
	Name       string        `json:"name,omitempty"`
	ToolCalls  []oaiToolCall `json:"tool_calls,omitempty"`
	ToolCallID string        `json:"tool_call_id,omitempty"`
}

type oaiContentPart struct {
	Type     string       `json:"type"`
	Text     string       `json:"text,omitempty"`
	ImageURL *oaiImageURL `json:"image_url,omitempty"`
}

type oaiImageURL struct {
	URL string `json:"url"`
}

type oaiTool struct {
	Type     string          `json:"type"`
	Function oaiToolFunction `json:"function"`
}

type oaiToolFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

type oaiToolCall struct {
	ID       string              `json:"id"`
	Type     string              `json:"type"`
	Function oaiToolCallFunction `json:"function"`
}

type oaiToolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type oaiResponse struct {
	ID      string      `json:"id"`
	Model   string      `json:"model"`
	Choices []oaiChoice `json:"choices"`
	Usage   oaiUsage    `json:"usage"`
	Created int64       `json:"created"`
}

type oaiChoice struct {
	Index        int                `json:"index"`
	Message      oaiResponseMessage `json:"message"`
	FinishReason string             `json:"finish_reason"`
}

type oaiResponseMessage struct {
	Role      string        `json:"role"`
	Content   string        `json:"content"`
	ToolCalls []oaiToolCall `json:"tool_calls,omitempty"`
}

type oaiUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

func (p *OpenAICompatProvider) toWireRequest(req domain.ChatRequest) oaiRequest {
	msgs := make([]oaiMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		wireMsg := oaiMessage{
			Role:    m.Role,
			Content: m.Content,
			Name:    m.Name,
		}

		// Tool result messages carry the tool_call_id in ToolCalls[0].ID.
		if m.Role == domain.RoleTool && len(m.ToolCalls) > 0 {
			wireMsg.ToolCallID = m.ToolCalls[0].ID
		}

		// Assistant messages echo the tool calls they made.
		if len(m.ToolCalls) > 0 && m.Role != domain.RoleTool {
			wireMsg.ToolCalls = make([]oaiToolCall, len(m.ToolCalls))
			for i, tc := range m.ToolCalls {
				wireMsg.ToolCalls[i] = oaiToolCall{
					ID:   tc.ID,
					Type: "function",
					Function: oaiToolCallFunction{
						Name:      tc.Name,
						Arguments: string(tc.Arguments),
					},
				}
			}
		}

		// Inline images become multi-part content when the provider takes
		// them; otherwise they are dropped with a warning.
		if len(m.Images) > 0 {
			if p.supportsImages {
				parts := []oaiContentPart{{Type: "text", Text: m.Content}}
				for _, img := range m.Images {
					parts = append(parts, oaiContentPart{
						Type:     "image_url",
						ImageURL: &oaiImageURL{URL: fmt.Sprintf("data:%s;base64,%s", img.MIMEType, img.Base64)},
					})
				}
				wireMsg.Content = parts
			} else {
				p.logger.Warn("provider does not support image input, dropping images",
					"provider", p.name,
					"count", len(m.Images),
				)
			}
		}

		msgs = append(msgs, wireMsg)
	}

	wireReq := oaiRequest{
		Model:    req.Model,
		Messages: msgs,
	}
	if req.MaxTokens > 0 {
		wireReq.MaxTokens = req.MaxTokens
	}
	if req.Temperature > 0 {
		wireReq.Temperature = &req.Temperature
	}

	if len(req.Tools) > 0 {
		wireReq.Tools = make([]oaiTool, len(req.Tools))
		for i, t := range req.Tools {
			wireReq.Tools[i] = oaiTool{
				Type: "function",
				Function: oaiToolFunction{
					Name:        t.Name,
					Description: t.Description,
					Parameters:  t.Parameters,
				},
			}
		}
	}

	return wireReq
}

func fromWireResponse(resp oaiResponse) (*domain.ChatResponse, error) {
	if len(resp.Choices) == 0 {
		return nil, domain.NewDomainError("Provider.Generate", domain.ErrEmptyResponse, "no choices")
	}
	choice := resp.Choices[0]

	out := &domain.ChatResponse{
		ID:           resp.ID,
		Model:        resp.Model,
		Text:         choice.Message.Content,
		FinishReason: choice.FinishReason,
		Usage: domain.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		CreatedAt: time.Unix(resp.Created, 0),
	}

	if choice.FinishReason == "content_filter" {
		out.SafetyBlocked = true
	}

	// One tool call per completion; extras are ignored.
	if len(choice.Message.ToolCalls) > 0 {
		tc := choice.Message.ToolCalls[0]
		args := strings.TrimSpace(tc.Function.Arguments)
		if args == "" {
			args = "{}"
		}
		out.ToolCall = &domain.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(args),
		}
	}

	return out, nil
}

// Compile-time interface check.
var _ domain.LLMProvider = (*OpenAICompatProvider)(nil)

// Default provider timeouts.
const (
	defaultConnTimeout = 30 * time.Second
	defaultRespTimeout = 120 * time.Second
)

// NewHTTPClient creates an *http.Client with pooled transport and timeout
// defaults suitable for LLM providers.
func NewHTTPClient(cfg config.ProviderConfig) *http.Client {
	connTimeout := cfg.ConnTimeout
	if connTimeout == 0 {
		connTimeout = defaultConnTimeout
	}
	respTimeout := cfg.RespTimeout
	if respTimeout == 0 {
		respTimeout = defaultRespTimeout
	}

	return &http.Client{
		Transport: NewPooledTransport(connTimeout, respTimeout),
		Timeout:   connTimeout + respTimeout,
	}
}
