package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"chloe-bot/internal/domain"
)

// CalculatorTool evaluates simple binary arithmetic expressions.
type CalculatorTool struct {
	logger *slog.Logger
}

// NewCalculatorTool creates a calculator tool.
func NewCalculatorTool(logger *slog.Logger) *CalculatorTool {
	return &CalculatorTool{logger: logger}
}

func (t *CalculatorTool) Name() string { return "calculate" }

func (t *CalculatorTool) Description() string {
	return "Perform a basic arithmetic calculation. Supports expressions like '2 + 2', '10 - 3', '6 * 7', '10 / 4'."
}

func (t *CalculatorTool) NeedsSideChannel() bool    { return false }
func (t *CalculatorTool) NeedsResultFeedback() bool { return true }

func (t *CalculatorTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"expression": {"type": "string", "description": "The expression to evaluate, e.g. '2 + 2'"}
			},
			"required": ["expression"]
		}`),
	}
}

type calculatorParams struct {
	Expression string `json:"expression"`
}

func (t *CalculatorTool) Execute(ctx context.Context, params json.RawMessage, _ domain.SideChannel) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.calculate", t.logger, params,
		func(ctx context.Context, span trace.Span, p calculatorParams) (any, error) {
			expr := strings.TrimSpace(p.Expression)
			if err := RequireField("expression", expr); err != nil {
				return "", err
			}
			return evalExpression(expr)
		},
	)
}

// evalExpression handles a single "a op b" binary expression. Operators are
// matched with surrounding spaces so negative numbers parse correctly.
func evalExpression(expr string) (string, error) {
	for _, op := range []string{" + ", " - ", " * ", " / "} {
		if !strings.Contains(expr, op) {
			continue
		}
		parts := strings.Split(expr, op)
		if len(parts) != 2 {
			return "", fmt.Errorf("invalid %s expression", opName(op))
		}
		a, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		if err != nil {
			return "", fmt.Errorf("invalid number: %q", parts[0])
		}
		b, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return "", fmt.Errorf("invalid number: %q", parts[1])
		}

		var result float64
		switch op {
		case " + ":
			result = a + b
		case " - ":
			result = a - b
		case " * ":
			result = a * b
		case " / ":
			if b == 0 {
				return "", fmt.Errorf("division by zero")
			}
			result = a / b
		}
		return fmt.Sprintf("%s %s %s = %s",
			formatNumber(a), strings.TrimSpace(op), formatNumber(b), formatNumber(result)), nil
	}
	return "", fmt.Errorf("unsupported expression %q, use a format like '2 + 2' or '10 * 5'", expr)
}

func opName(op string) string {
	switch op {
	case " + ":
		return "addition"
	case " - ":
		return "subtraction"
	case " * ":
		return "multiplication"
	default:
		return "division"
	}
}

// formatNumber drops the trailing ".0" that %v would keep for whole floats.
func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
