// Package events предоставляет интерфейсы для реализации Port & Adapter паттерна.
//
// Это Port (интерфейс) для подписки на изменения транскрипта и ход
// tool-calling цикла. Позволяет подключать любые UI (TUI, CLI) без
// изменения логики диалога.
//
// # Basic Usage
//
//	emitter := events.NewChanEmitter(100, events.DropWhenFull())
//	store.SetEmitter(emitter)
//
//	sub := emitter.Subscribe()
//	for event := range sub.Events() {
//	    switch event.Type {
//	    case events.EventAppend, events.EventPatch:
//	        ui.redraw(store.WindowedView(30))
//	    case events.EventToolCall:
//	        ui.setStatus(event.Data.(events.ToolCallData).ToolName)
//	    }
//	}
//
// # Thread Safety
//
// Все реализации интерфейсов должны быть thread-safe.
//
// # Rule 11: Context Propagation
//
// Emitter.Emit() принимает context.Context для отмены операции.
package events

import (
	"context"
	"time"
)

// EventType представляет тип события.
type EventType string

const (
	// EventAppend отправляется когда в транскрипт добавлена запись.
	EventAppend EventType = "append"

	// EventPatch отправляется когда запись транскрипта изменена
	// (очередной токен streaming ответа).
	EventPatch EventType = "patch"

	// EventReset отправляется при начале нового разговора.
	EventReset EventType = "reset"

	// EventToolCall отправляется когда модель вызывает инструмент.
	EventToolCall EventType = "tool_call"

	// EventToolResult отправляется когда инструмент вернул результат.
	EventToolResult EventType = "tool_result"

	// EventError отправляется при ошибке обработки сообщения.
	EventError EventType = "error"

	// EventDone отправляется когда обработка сообщения завершена.
	EventDone EventType = "done"
)

// EventData — sealed interface для данных события.
//
// Только типы из пакета events могут реализовать этот интерфейс,
// что обеспечивает compile-time type safety.
type EventData interface {
	eventData()
}

// EntryData содержит данные для EventAppend и EventPatch.
type EntryData struct {
	Index      int
	Kind       string
	Generation uint64
}

func (EntryData) eventData() {}

// ResetData содержит данные для EventReset.
type ResetData struct {
	Generation uint64
}

func (ResetData) eventData() {}

// ToolCallData содержит данные о вызове инструмента.
type ToolCallData struct {
	ToolName string
	Args     string
}

func (ToolCallData) eventData() {}

// ToolResultData содержит результат выполнения инструмента.
type ToolResultData struct {
	ToolName string
	Result   string
	Duration time.Duration
}

func (ToolResultData) eventData() {}

// ErrorData содержит данные для EventError.
type ErrorData struct {
	Err error
}

func (ErrorData) eventData() {}

// DoneData содержит данные для EventDone.
type DoneData struct {
	Iterations int
	Outcome    string
}

func (DoneData) eventData() {}

// Event представляет событие.
//
// Для каждого EventType существует соответствующий тип данных:
//   - EventAppend, EventPatch: EntryData
//   - EventReset: ResetData
//   - EventToolCall: ToolCallData
//   - EventToolResult: ToolResultData
//   - EventError: ErrorData
//   - EventDone: DoneData
type Event struct {
	Type      EventType
	Data      EventData
	Timestamp time.Time
}

// New создаёт событие с текущим временем.
func New(typ EventType, data EventData) Event {
	return Event{Type: typ, Data: data, Timestamp: time.Now()}
}

// Emitter — это Port для отправки событий.
//
// Rule 11: все операции должны уважать context.Context.
type Emitter interface {
	// Emit отправляет событие.
	//
	// Если context отменён, операция должна прерваться.
	Emit(ctx context.Context, event Event)
}

// Subscriber позволяет читать события из канала.
//
// Rule 5: thread-safe операции.
type Subscriber interface {
	// Events возвращает read-only канал событий.
	//
	// Канал закрывается при вызове Close() эмиттера.
	Events() <-chan Event

	// Close освобождает подписчика.
	Close()
}

// NopEmitter игнорирует все события.
type NopEmitter struct{}

// Emit ничего не делает.
func (NopEmitter) Emit(context.Context, Event) {}

var _ Emitter = NopEmitter{}
