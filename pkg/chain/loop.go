package chain

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/ilkoid/pi-llama/pkg/llm"
	"github.com/ilkoid/pi-llama/pkg/thinking"
	"github.com/ilkoid/pi-llama/pkg/tools"
	"github.com/ilkoid/pi-llama/pkg/transcript"
	"github.com/ilkoid/pi-llama/pkg/utils"
)

// ToolLoop — цикл tool calling для одного сообщения пользователя.
//
// Не хранит состояние между вызовами Run: можно переиспользовать,
// но не параллельно для одного транскрипта.
type ToolLoop struct {
	provider  llm.Provider
	streamer  llm.Streamer
	executor  tools.Executor
	defs      []tools.ToolDefinition
	store     *transcript.Store
	cfg       LoopConfig
	observers []Observer
}

// Option настраивает ToolLoop.
type Option func(*ToolLoop)

// WithObserver добавляет наблюдателя.
func WithObserver(o Observer) Option {
	return func(l *ToolLoop) {
		if o != nil {
			l.observers = append(l.observers, o)
		}
	}
}

// NewToolLoop создаёт цикл. defs уходят в модель в переданном порядке
// при каждой итерации.
func NewToolLoop(
	provider llm.Provider,
	streamer llm.Streamer,
	executor tools.Executor,
	defs []tools.ToolDefinition,
	store *transcript.Store,
	cfg LoopConfig,
	opts ...Option,
) *ToolLoop {
	l := &ToolLoop{
		provider: provider,
		streamer: streamer,
		executor: executor,
		defs:     defs,
		store:    store,
		cfg:      cfg.withDefaults(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Config возвращает действующие параметры цикла.
func (l *ToolLoop) Config() LoopConfig {
	return l.cfg
}

// Run обрабатывает сообщение: messages — системный промпт, история
// и текущая реплика пользователя. Все записи в транскрипт идут
// в поколение gen; после Reset они молча отбрасываются.
func (l *ToolLoop) Run(ctx context.Context, messages []llm.Message, gen transcript.Generation) Result {
	start := time.Now()
	convo := append([]llm.Message(nil), messages...)

	for iter := 1; iter <= l.cfg.MaxIterations; iter++ {
		l.notifyIterationStart(iter)

		resp, err := l.provider.Generate(ctx, convo, l.defs,
			llm.WithMaxTokens(l.cfg.MaxTokens),
			llm.WithTemperature(l.cfg.Temperature))
		if err != nil {
			return l.finish(l.fail(ctx, gen, iter, convo, err), start)
		}

		if !resp.HasToolCalls() {
			res := l.StreamAnswer(ctx, convo, gen, StreamOptions{
				MaxTokens:   l.cfg.MaxTokens,
				Temperature: l.cfg.Temperature,
			})
			res.Iterations = iter
			return l.finish(res, start)
		}

		utils.Debug("Model requested tools", "iteration", iter, "count", len(resp.ToolCalls))

		resp.Role = llm.RoleAssistant
		convo = append(convo, resp)
		for _, call := range resp.ToolCalls {
			result := l.runToolCall(ctx, gen, call)
			convo = append(convo, llm.Message{
				Role:       llm.RoleTool,
				Content:    result,
				ToolCallID: call.ID,
			})
		}
	}

	utils.Warn("Tool iteration cap reached", "max_iterations", l.cfg.MaxIterations)
	idx, _ := l.store.AppendAt(gen, transcript.BotMessage{Text: TooManyIterationsText})
	return l.finish(Result{
		Iterations: l.cfg.MaxIterations,
		Outcome:    OutcomeIterationCap,
		Answer:     thinking.Result{Text: TooManyIterationsText},
		BotIndex:   idx,
		Context:    convo,
		Err:        ErrTooManyIterations,
	}, start)
}

// runToolCall записывает вызов в транскрипт, выполняет инструмент
// и записывает результат. Невалидные аргументы не выполняются:
// в транскрипт идут пустые аргументы и JSON с ошибкой.
func (l *ToolLoop) runToolCall(ctx context.Context, gen transcript.Generation, call llm.ToolCall) string {
	args, parseErr := parseArgs(call.Args)

	l.store.AppendAt(gen, transcript.ToolCallMessage{Name: call.Name, Args: args})
	l.notifyToolCall(call)

	start := time.Now()
	var result string
	if parseErr != nil {
		utils.Warn("Invalid tool arguments", "tool", call.Name, "error", parseErr)
		result = tools.ErrorResult("invalid arguments: " + parseErr.Error())
	} else {
		result = l.executor.Execute(ctx, call.Name, call.Args)
	}

	l.store.AppendAt(gen, transcript.ToolResultMessage{Result: result})
	l.notifyToolResult(call.Name, result, time.Since(start))
	return result
}

// parseArgs разбирает аргументы в map. Пустая строка — пустой объект.
func parseArgs(raw string) (map[string]any, error) {
	cleaned := utils.CleanJsonBlock(raw)
	if cleaned == "" {
		return map[string]any{}, nil
	}

	var args map[string]any
	if err := json.Unmarshal([]byte(cleaned), &args); err != nil {
		return map[string]any{}, err
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

// fail записывает ошибку запроса как ответ бота.
func (l *ToolLoop) fail(ctx context.Context, gen transcript.Generation, iter int, convo []llm.Message, err error) Result {
	outcome := OutcomeFailed
	if errors.Is(err, context.Canceled) || ctx.Err() != nil {
		outcome = OutcomeCanceled
	}

	text := ErrorText(err)
	idx, _ := l.store.AppendAt(gen, transcript.BotMessage{Text: text})

	utils.Error("Tool loop request failed", "iteration", iter, "error", err)
	return Result{
		Iterations: iter,
		Outcome:    outcome,
		Answer:     thinking.Result{Text: text},
		BotIndex:   idx,
		Context:    convo,
		Err:        err,
	}
}

// ErrorText — текст бота для ошибки запроса: "Error: <message>".
func ErrorText(err error) string {
	return "Error: " + err.Error()
}

func (l *ToolLoop) finish(res Result, start time.Time) Result {
	utils.Info("Message processed",
		"iterations", res.Iterations,
		"outcome", res.Outcome.String(),
		"answer_length", len(res.Answer.Text),
		"duration_ms", time.Since(start).Milliseconds())

	for _, o := range l.observers {
		o.OnFinish(res)
	}
	return res
}

func (l *ToolLoop) notifyIterationStart(iter int) {
	for _, o := range l.observers {
		o.OnIterationStart(iter)
	}
}

func (l *ToolLoop) notifyToolCall(call llm.ToolCall) {
	for _, o := range l.observers {
		o.OnToolCall(call)
	}
}

func (l *ToolLoop) notifyToolResult(name, result string, d time.Duration) {
	for _, o := range l.observers {
		o.OnToolResult(name, result, d)
	}
}
