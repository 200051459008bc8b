package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"chloe-bot/internal/domain"
	"chloe-bot/internal/infra/tracer"
	"chloe-bot/internal/markdown"
)

// DefaultMaxToolDepth bounds the tool-call chain within one turn.
const DefaultMaxToolDepth = 5

// sendMessageToolName is the delivery tool the tool-only policy and the
// safety path synthesize invocations for.
const sendMessageToolName = "discord_send_message"

const (
	safetyRefusal = "I'd rather not get into that one, sorry! Ask me something else and I'm all ears."
	turnApology   = "Sorry, something went wrong on my end. Give me a moment and try again!"
	depthNotice   = "I got a bit carried away with tools there and hit my limit. Mind rephrasing, or asking for one thing at a time?"
)

// TurnLimiter gates provider calls. Satisfied by ratelimit.Limiter.
type TurnLimiter interface {
	Acquire(ctx context.Context, key string) (func(), error)
}

// OrchestratorDeps holds injected dependencies for the orchestrator.
type OrchestratorDeps struct {
	Provider    domain.LLMProvider
	Tools       domain.ToolExecutor
	Limiter     TurnLimiter
	Prompts     *PromptBuilder
	Settings    *Settings
	Logger      *slog.Logger
	MaxDepth    int
	MaxTokens   int
	Temperature float64
}

// Orchestrator runs the completion-dispatch loop for one conversational
// turn: prompt the provider, execute any requested tool, feed the outcome
// back, and repeat until the turn resolves or the depth cap is hit.
type Orchestrator struct {
	deps OrchestratorDeps
}

// TurnResult is the resolved output of one turn.
type TurnResult struct {
	// Text is the reconciled final text. It may already have been
	// delivered through the side channel by a delivery tool.
	Text string
	// Delivered reports whether a delivery tool posted the response.
	Delivered bool
	// ToolCalls counts tool invocations executed during the turn.
	ToolCalls int
	// Usage accumulates token usage across all provider calls.
	Usage domain.Usage
}

// NewOrchestrator creates an orchestrator with the given dependencies.
func NewOrchestrator(deps OrchestratorDeps) *Orchestrator {
	if deps.MaxDepth <= 0 {
		deps.MaxDepth = DefaultMaxToolDepth
	}
	return &Orchestrator{deps: deps}
}

// Respond resolves one turn. The side channel may be nil, in which case
// delivery tools fail their invocations and the final text is only returned.
func (o *Orchestrator) Respond(ctx context.Context, convo *domain.ConversationContext, sc domain.SideChannel) (*TurnResult, error) {
	ctx, span := tracer.StartSpan(ctx, "orchestrator.respond",
		trace.WithAttributes(tracer.StringAttr("channel.id", convo.Trigger.ChannelID)),
	)
	defer span.End()

	emojis := o.guildEmojis(ctx, sc)
	schemas := o.deps.Tools.Schemas()
	messages := o.deps.Prompts.BuildMessages(convo, schemas, emojis)

	req := domain.ChatRequest{
		Model:       o.model(),
		Messages:    messages,
		MaxTokens:   o.deps.MaxTokens,
		Temperature: o.deps.Temperature,
	}
	if o.deps.Provider.SupportsTools() {
		req.Tools = schemas
	}

	limiterKey := convo.Trigger.ChannelID
	result := &TurnResult{}
	executed := map[string]bool{}
	var initialText string
	initialSent := false

	for depth := 0; depth < o.deps.MaxDepth; depth++ {
		span.AddEvent("orchestrator.round", trace.WithAttributes(tracer.IntAttr("depth", depth)))

		resp, err := o.generate(ctx, limiterKey, &req)
		if err != nil {
			tracer.RecordError(span, err)
			o.apologize(ctx, sc)
			return nil, err
		}
		accumulateUsage(&result.Usage, resp.Usage)

		if resp.SafetyBlocked {
			o.deps.Logger.Info("completion safety blocked", "channel", limiterKey, "reason", resp.FinishReason)
			o.deliverRefusal(ctx, sc, result)
			result.Text = safetyRefusal
			tracer.SetOK(span)
			return result, nil
		}

		call := resp.ToolCall
		if call == nil {
			if o.deps.Settings.ToolOnly() && resp.Text != "" {
				// Raw text violates the tool-only policy: recover by
				// wrapping it in a synthesized delivery invocation.
				o.deps.Logger.Debug("auto-correcting raw text reply", "channel", limiterKey)
				call = synthesizeSendCall(resp.Text)
			} else {
				result.Text = reconcileText(initialText, resp.Text)
				tracer.SetOK(span)
				return result, nil
			}
		}

		// Text arriving alongside a tool call goes out right away so the
		// user is not left staring at a typing indicator.
		if resp.Text != "" && call.Name != sendMessageToolName && sc != nil && !initialSent {
			initialText = resp.Text
			initialSent = true
			o.sendEager(ctx, sc, resp.Text)
		}

		var outcome *domain.ToolResult
		if executed[call.ID] {
			o.deps.Logger.Warn("duplicate tool invocation", "id", call.ID, "tool", call.Name)
			outcome = &domain.ToolResult{
				ToolCallID: call.ID,
				IsError:    true,
				Content:    domain.NewDomainError("Orchestrator.Respond", domain.ErrDuplicateToolCall, call.ID).Error(),
			}
		} else {
			executed[call.ID] = true
			result.ToolCalls++
			outcome = o.deps.Tools.Execute(ctx, *call, sc)
		}

		if !outcome.IsError && !o.needsFeedback(call.Name) {
			// The tool's effect is externally visible; the turn is done.
			if call.Name == sendMessageToolName {
				result.Delivered = true
				delivered := extractSendContent(call.Arguments)
				if delivered == "" {
					delivered = resp.Text
				}
				result.Text = reconcileText(initialText, delivered)
			} else {
				result.Text = reconcileText(initialText, outcome.Content)
			}
			tracer.SetOK(span)
			return result, nil
		}

		req.Messages = append(req.Messages,
			domain.Message{
				Role:      domain.RoleAssistant,
				Content:   resp.Text,
				ToolCalls: []domain.ToolCall{*call},
				Timestamp: time.Now(),
			},
			domain.Message{
				Role:      domain.RoleTool,
				Name:      call.Name,
				Content:   outcome.Content,
				ToolCalls: []domain.ToolCall{{ID: call.ID, Name: call.Name}},
				Timestamp: time.Now(),
			},
		)
	}

	err := domain.NewDomainError("Orchestrator.Respond", domain.ErrToolDepthExceeded,
		fmt.Sprintf("max depth %d", o.deps.MaxDepth))
	tracer.RecordError(span, err)
	if sc != nil {
		if sendErr := sc.SendMessage(ctx, depthNotice, true); sendErr != nil {
			o.deps.Logger.Warn("depth notice delivery failed", "error", sendErr)
		}
	}
	return nil, err
}

// generate runs one rate-limited provider call.
func (o *Orchestrator) generate(ctx context.Context, key string, req *domain.ChatRequest) (*domain.ChatResponse, error) {
	release, err := o.deps.Limiter.Acquire(ctx, key)
	if err != nil {
		return nil, err
	}
	defer release()

	return o.deps.Provider.Generate(ctx, *req)
}

func (o *Orchestrator) model() string {
	if m := o.deps.Settings.Model(); m != "" {
		return m
	}
	return o.deps.Provider.DefaultModel()
}

// needsFeedback reports whether the named tool's outcome must be shown back
// to the model. Unknown tools feed back so the model can recover.
func (o *Orchestrator) needsFeedback(name string) bool {
	t, err := o.deps.Tools.Get(name)
	if err != nil {
		return true
	}
	return t.NeedsResultFeedback()
}

// deliverRefusal posts the canned safety refusal through the delivery tool
// when one is registered, falling back to the raw side channel.
func (o *Orchestrator) deliverRefusal(ctx context.Context, sc domain.SideChannel, result *TurnResult) {
	if sc == nil {
		return
	}
	if _, err := o.deps.Tools.Get(sendMessageToolName); err == nil {
		outcome := o.deps.Tools.Execute(ctx, *synthesizeSendCall(safetyRefusal), sc)
		result.ToolCalls++
		if !outcome.IsError {
			result.Delivered = true
			return
		}
	}
	if err := sc.SendMessage(ctx, safetyRefusal, true); err != nil {
		o.deps.Logger.Warn("refusal delivery failed", "error", err)
		return
	}
	result.Delivered = true
}

// apologize makes sure a failed turn never goes silently unanswered.
func (o *Orchestrator) apologize(ctx context.Context, sc domain.SideChannel) {
	if sc == nil {
		return
	}
	if err := sc.SendMessage(ctx, turnApology, true); err != nil {
		o.deps.Logger.Warn("apology delivery failed", "error", err)
	}
}

// sendEager posts an initial text fragment before tool execution.
func (o *Orchestrator) sendEager(ctx context.Context, sc domain.SideChannel, text string) {
	content := markdown.TruncateForDiscord(markdown.Escape(text))
	if err := sc.SendMessage(ctx, content, true); err != nil {
		o.deps.Logger.Warn("eager text delivery failed", "error", err)
	}
}

// guildEmojis fetches the custom emoji list, tolerating failure.
func (o *Orchestrator) guildEmojis(ctx context.Context, sc domain.SideChannel) []domain.Emoji {
	if sc == nil {
		return nil
	}
	emojis, err := sc.GuildEmojis(ctx)
	if err != nil {
		o.deps.Logger.Debug("guild emoji fetch failed", "error", err)
		return nil
	}
	return emojis
}

// synthesizeSendCall wraps raw text in a delivery tool invocation.
func synthesizeSendCall(text string) *domain.ToolCall {
	args, _ := json.Marshal(map[string]string{"content": text})
	return &domain.ToolCall{
		ID:        uuid.NewString(),
		Name:      sendMessageToolName,
		Arguments: args,
	}
}

// extractSendContent pulls the content field back out of delivery arguments.
func extractSendContent(args json.RawMessage) string {
	var p struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(args, &p); err != nil {
		return ""
	}
	return p.Content
}

// reconcileText merges an eagerly sent fragment with the final text. When
// the final text already contains the fragment it wins outright; otherwise
// the two are joined in order.
func reconcileText(initial, final string) string {
	initial = strings.TrimSpace(initial)
	final = strings.TrimSpace(final)
	switch {
	case initial == "":
		return final
	case final == "":
		return initial
	case strings.Contains(final, initial):
		return final
	default:
		return initial + "\n\n" + final
	}
}

func accumulateUsage(total *domain.Usage, u domain.Usage) {
	total.PromptTokens += u.PromptTokens
	total.CompletionTokens += u.CompletionTokens
	total.TotalTokens += u.TotalTokens
}
