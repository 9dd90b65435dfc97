// Package transcript хранит видимую пользователю историю диалога.
//
// Записи бывают четырёх видов: реплика пользователя, ответ модели
// (текст + рассуждения), вызов инструмента и результат инструмента.
// Записи только добавляются и точечно изменяются по индексу,
// удаления и перестановки нет.
//
// Каждый новый разговор начинает новое поколение (Generation). Запись
// с устаревшим поколением отбрасывается: стрим, начатый до Reset,
// не может испортить новый разговор.
package transcript

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ilkoid/pi-llama/pkg/events"
)

// Kind — вид записи транскрипта.
type Kind string

const (
	KindUser       Kind = "user"
	KindBot        Kind = "bot"
	KindToolCall   Kind = "tool-call"
	KindToolResult Kind = "tool-result"
)

// Message — sealed interface записи транскрипта.
type Message interface {
	Kind() Kind
	message()
}

// UserMessage — реплика пользователя.
type UserMessage struct {
	Text string
}

// BotMessage — ответ модели. Thinking пуст, если модель не рассуждала.
type BotMessage struct {
	Text     string
	Thinking string
}

// ToolCallMessage — вызов инструмента с разобранными аргументами.
type ToolCallMessage struct {
	Name string
	Args map[string]any
}

// ToolResultMessage — сырой результат инструмента.
type ToolResultMessage struct {
	Result string
}

func (UserMessage) Kind() Kind       { return KindUser }
func (BotMessage) Kind() Kind        { return KindBot }
func (ToolCallMessage) Kind() Kind   { return KindToolCall }
func (ToolResultMessage) Kind() Kind { return KindToolResult }

func (UserMessage) message()       {}
func (BotMessage) message()        {}
func (ToolCallMessage) message()   {}
func (ToolResultMessage) message() {}

// Generation — номер разговора.
type Generation uint64

// ErrUnpairedToolResult — результат инструмента без предшествующего вызова.
var ErrUnpairedToolResult = errors.New("tool result without matching tool call")

// PatchFunc получает текущую запись и возвращает новую.
type PatchFunc func(Message) Message

// Store — упорядоченный список записей.
//
// Thread-safe: запись идёт из горутины обработки сообщения,
// чтение из UI.
type Store struct {
	mu       sync.RWMutex
	messages []Message
	gen      Generation
	emitter  events.Emitter
}

// NewStore создаёт пустой транскрипт.
func NewStore() *Store {
	return &Store{emitter: events.NopEmitter{}}
}

// SetEmitter подключает получателя событий изменения транскрипта.
func (s *Store) SetEmitter(e events.Emitter) {
	if e == nil {
		e = events.NopEmitter{}
	}
	s.mu.Lock()
	s.emitter = e
	s.mu.Unlock()
}

// Generation возвращает текущее поколение.
func (s *Store) Generation() Generation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen
}

// Append добавляет запись в текущее поколение и возвращает её индекс.
func (s *Store) Append(m Message) int {
	s.mu.Lock()
	idx := s.appendLocked(m)
	gen, emitter := s.gen, s.emitter
	s.mu.Unlock()

	emitter.Emit(context.Background(), events.New(events.EventAppend, entryData(idx, m, gen)))
	return idx
}

// AppendAt добавляет запись, только если gen всё ещё текущее поколение.
// Иначе возвращает (-1, false).
func (s *Store) AppendAt(gen Generation, m Message) (int, bool) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return -1, false
	}
	idx := s.appendLocked(m)
	emitter := s.emitter
	s.mu.Unlock()

	emitter.Emit(context.Background(), events.New(events.EventAppend, entryData(idx, m, gen)))
	return idx, true
}

// PatchAt заменяет запись с индексом i результатом fn.
// Индекс вне диапазона игнорируется.
func (s *Store) PatchAt(i int, fn PatchFunc) bool {
	return s.PatchAtGen(s.Generation(), i, fn)
}

// PatchAtGen как PatchAt, но только для поколения gen.
func (s *Store) PatchAtGen(gen Generation, i int, fn PatchFunc) bool {
	s.mu.Lock()
	if gen != s.gen || i < 0 || i >= len(s.messages) {
		s.mu.Unlock()
		return false
	}
	patched := fn(s.messages[i])
	if patched == nil {
		s.mu.Unlock()
		return false
	}
	s.messages[i] = patched
	emitter := s.emitter
	s.mu.Unlock()

	emitter.Emit(context.Background(), events.New(events.EventPatch, entryData(i, patched, gen)))
	return true
}

// WindowedView возвращает копию последних n записей (все, если их меньше n).
func (s *Store) WindowedView(n int) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n <= 0 {
		return []Message{}
	}
	start := max(len(s.messages)-n, 0)
	return append([]Message(nil), s.messages[start:]...)
}

// Snapshot возвращает копию всего транскрипта.
func (s *Store) Snapshot() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Message(nil), s.messages...)
}

// Len возвращает количество записей.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// Reset очищает транскрипт и начинает новое поколение.
func (s *Store) Reset() Generation {
	s.mu.Lock()
	s.messages = nil
	s.gen++
	gen, emitter := s.gen, s.emitter
	s.mu.Unlock()

	emitter.Emit(context.Background(), events.New(events.EventReset, events.ResetData{Generation: uint64(gen)}))
	return gen
}

func (s *Store) appendLocked(m Message) int {
	s.messages = append(s.messages, m)
	return len(s.messages) - 1
}

func entryData(idx int, m Message, gen Generation) events.EntryData {
	return events.EntryData{Index: idx, Kind: string(m.Kind()), Generation: uint64(gen)}
}

// CheckToolPairing проверяет, что каждому результату инструмента
// предшествует вызов, ещё не получивший результата.
func CheckToolPairing(messages []Message) error {
	pending := 0
	for i, m := range messages {
		switch m.(type) {
		case ToolCallMessage:
			pending++
		case ToolResultMessage:
			if pending == 0 {
				return fmt.Errorf("entry %d: %w", i, ErrUnpairedToolResult)
			}
			pending--
		}
	}
	return nil
}
