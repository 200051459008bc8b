package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"chloe-bot/internal/domain"
)

// TimeTool reports the current time in UTC.
type TimeTool struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewTimeTool creates a clock tool.
func NewTimeTool(logger *slog.Logger) *TimeTool {
	return &TimeTool{logger: logger, now: time.Now}
}

func (t *TimeTool) Name() string        { return "get_current_time" }
func (t *TimeTool) Description() string { return "Get the current date and time in UTC" }

func (t *TimeTool) NeedsSideChannel() bool    { return false }
func (t *TimeTool) NeedsResultFeedback() bool { return true }

func (t *TimeTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters:  json.RawMessage(`{"type": "object", "properties": {}}`),
	}
}

func (t *TimeTool) Execute(ctx context.Context, params json.RawMessage, _ domain.SideChannel) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.get_current_time", t.logger, params,
		func(ctx context.Context, span trace.Span, _ struct{}) (any, error) {
			now := t.now().UTC()
			return fmt.Sprintf("Current UTC time: %s", now.Format("2006-01-02 15:04:05 UTC")), nil
		},
	)
}
