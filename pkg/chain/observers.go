package chain

import (
	"context"
	"time"

	"github.com/ilkoid/pi-llama/pkg/events"
	"github.com/ilkoid/pi-llama/pkg/llm"
)

// Observer получает уведомления о ходе цикла.
//
// Вызывается синхронно из горутины цикла; реализация не должна блокировать.
type Observer interface {
	OnIterationStart(iteration int)
	OnToolCall(call llm.ToolCall)
	OnToolResult(name, result string, duration time.Duration)
	OnFinish(result Result)
}

// EmitterObserver — наблюдатель который отправляет события в Emitter.
//
// Порт UI: события tool_call / tool_result во время итераций
// и done / error в конце.
type EmitterObserver struct {
	emitter events.Emitter
}

// Ensure EmitterObserver implements Observer
var _ Observer = (*EmitterObserver)(nil)

// NewEmitterObserver создаёт новый EmitterObserver.
func NewEmitterObserver(emitter events.Emitter) *EmitterObserver {
	if emitter == nil {
		emitter = events.NopEmitter{}
	}
	return &EmitterObserver{emitter: emitter}
}

// OnIterationStart ничего не отправляет.
func (o *EmitterObserver) OnIterationStart(int) {}

// OnToolCall отправляет EventToolCall.
func (o *EmitterObserver) OnToolCall(call llm.ToolCall) {
	o.emitter.Emit(context.Background(), events.New(events.EventToolCall, events.ToolCallData{
		ToolName: call.Name,
		Args:     call.Args,
	}))
}

// OnToolResult отправляет EventToolResult.
func (o *EmitterObserver) OnToolResult(name, result string, duration time.Duration) {
	o.emitter.Emit(context.Background(), events.New(events.EventToolResult, events.ToolResultData{
		ToolName: name,
		Result:   result,
		Duration: duration,
	}))
}

// OnFinish отправляет EventError (если была ошибка), затем EventDone.
func (o *EmitterObserver) OnFinish(result Result) {
	ctx := context.Background()
	if result.Err != nil {
		o.emitter.Emit(ctx, events.New(events.EventError, events.ErrorData{Err: result.Err}))
	}
	o.emitter.Emit(ctx, events.New(events.EventDone, events.DoneData{
		Iterations: result.Iterations,
		Outcome:    result.Outcome.String(),
	}))
}
