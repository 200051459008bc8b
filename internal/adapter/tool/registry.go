package tool

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"chloe-bot/internal/domain"
)

// Registry holds named tools and executes invocations against them.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]domain.Tool
	logger *slog.Logger
}

// NewRegistry creates an empty tool registry. A nil logger is allowed.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		tools:  make(map[string]domain.Tool),
		logger: logger,
	}
}

// Register adds a tool as-is. Callers wanting JSON-schema parameter
// validation wrap the tool with WithSchemaValidation before registering.
// Returns error if name already registered.
func (r *Registry) Register(t domain.Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := t.Name()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %q already registered", name)
	}

	r.tools[name] = t
	return nil
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (domain.Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tools[name]
	if !ok {
		return nil, domain.NewDomainError("Registry.Get", domain.ErrToolNotFound, name)
	}
	return t, nil
}

// List returns all registered tools.
func (r *Registry) List() []domain.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]domain.Tool, 0, len(r.tools))
	for _, t := range r.tools {
		tools = append(tools, t)
	}
	return tools
}

// Schemas returns all tool schemas for LLM function-calling.
func (r *Registry) Schemas() []domain.ToolSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	schemas := make([]domain.ToolSchema, 0, len(r.tools))
	for _, t := range r.tools {
		schemas = append(schemas, t.Schema())
	}
	return schemas
}

// Execute runs one invocation and always returns an outcome carrying the
// invocation id: unknown tools, missing side channels, handler errors, and
// panics all become failed outcomes the model can react to.
func (r *Registry) Execute(ctx context.Context, call domain.ToolCall, sc domain.SideChannel) (result *domain.ToolResult) {
	defer func() {
		if rec := recover(); rec != nil {
			if r.logger != nil {
				r.logger.Error("tool panicked", "tool", call.Name, "panic", rec)
			}
			result = &domain.ToolResult{
				ToolCallID: call.ID,
				IsError:    true,
				Content:    fmt.Sprintf("tool %q panicked: %v", call.Name, rec),
			}
		}
	}()

	t, err := r.Get(call.Name)
	if err != nil {
		return &domain.ToolResult{
			ToolCallID: call.ID,
			IsError:    true,
			Content:    err.Error(),
		}
	}

	if t.NeedsSideChannel() && sc == nil {
		err := domain.NewDomainError("Registry.Execute", domain.ErrMissingSideChannel, call.Name)
		return &domain.ToolResult{
			ToolCallID: call.ID,
			IsError:    true,
			Content:    err.Error(),
		}
	}

	res, err := t.Execute(ctx, call.Arguments, sc)
	if err != nil {
		return &domain.ToolResult{
			ToolCallID: call.ID,
			IsError:    true,
			Content:    fmt.Sprintf("%s: %v", domain.ErrToolFailure, err),
		}
	}
	res.ToolCallID = call.ID
	return res
}

// Compile-time interface check.
var _ domain.ToolExecutor = (*Registry)(nil)
