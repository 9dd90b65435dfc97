package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ilkoid/pi-llama/pkg/utils"
)

// Executor выполняет инструмент по имени.
//
// Execute никогда не возвращает ошибку: любой сбой превращается
// в JSON строку вида {"error": "..."}, которая уходит в модель
// как результат инструмента.
type Executor interface {
	Execute(ctx context.Context, name, argsJSON string) string
}

// UnknownToolResult — результат вызова незарегистрированного инструмента.
const UnknownToolResult = `{"error":"Unknown tool"}`

// RegistryExecutor — Executor поверх Registry.
type RegistryExecutor struct {
	registry *Registry
	timeout  time.Duration
}

var _ Executor = (*RegistryExecutor)(nil)

// NewExecutor создаёт Executor. timeout ограничивает один вызов; 0 = без лимита.
func NewExecutor(registry *Registry, timeout time.Duration) *RegistryExecutor {
	return &RegistryExecutor{registry: registry, timeout: timeout}
}

// Execute находит инструмент и выполняет его с очищенными аргументами.
//
// Thread-safe.
func (e *RegistryExecutor) Execute(ctx context.Context, name, argsJSON string) (result string) {
	tool, err := e.registry.Get(name)
	if err != nil {
		utils.Warn("Unknown tool requested", "tool", name)
		return UnknownToolResult
	}

	args := utils.CleanJsonBlock(argsJSON)
	if args == "" {
		args = "{}"
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			utils.Error("Tool panicked", "tool", name, "panic", r)
			result = ErrorResult(fmt.Sprintf("tool %s failed: %v", name, r))
		}
	}()

	start := time.Now()
	out, err := tool.Execute(ctx, args)
	if err != nil {
		utils.Warn("Tool execution failed",
			"tool", name,
			"error", err,
			"duration_ms", time.Since(start).Milliseconds())
		if errors.Is(err, context.DeadlineExceeded) {
			return ErrorResult(fmt.Sprintf("tool %s timed out", name))
		}
		return ErrorResult(err.Error())
	}

	utils.Debug("Tool executed",
		"tool", name,
		"result_length", len(out),
		"duration_ms", time.Since(start).Milliseconds())
	return out
}

// ErrorResult кодирует сообщение об ошибке как JSON результат инструмента.
func ErrorResult(msg string) string {
	b, err := json.Marshal(map[string]string{"error": msg})
	if err != nil {
		return UnknownToolResult
	}
	return string(b)
}

// MarshalResult кодирует результат инструмента в JSON.
func MarshalResult(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal tool result: %w", err)
	}
	return string(b), nil
}
