package events

import (
	"context"
	"sync"
	"sync/atomic"
)

// ChanEmitter — стандартная реализация Emitter через канал.
//
// Thread-safe.
type ChanEmitter struct {
	mu           sync.RWMutex
	ch           chan Event
	closed       bool
	dropWhenFull bool
	dropped      uint64
}

// ChanOption настраивает ChanEmitter.
type ChanOption func(*ChanEmitter)

// DropWhenFull делает Emit неблокирующим: при заполненном буфере
// событие отбрасывается. Подходит для UI, который на каждое событие
// перечитывает состояние целиком.
func DropWhenFull() ChanOption {
	return func(e *ChanEmitter) {
		e.dropWhenFull = true
	}
}

// NewChanEmitter создаёт новый ChanEmitter с буферизованным каналом.
//
// buffer определяет размер буфера канала.
// Если buffer = 0, канал будет небуферизованным (blocking).
func NewChanEmitter(buffer int, opts ...ChanOption) *ChanEmitter {
	e := &ChanEmitter{
		ch: make(chan Event, buffer),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Emit отправляет событие в канал.
//
// Thread-safe.
// Rule 11: уважает context.Context.
// Если канал закрыт или context отменён, событие отбрасывается.
func (e *ChanEmitter) Emit(ctx context.Context, event Event) {
	// RLock держится на время отправки, чтобы Close не закрыл канал
	// под ногами у отправителя.
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return
	}

	if e.dropWhenFull {
		select {
		case e.ch <- event:
		default:
			atomic.AddUint64(&e.dropped, 1)
		}
		return
	}

	select {
	case e.ch <- event:
		// Успешно отправлено
	case <-ctx.Done():
		// Context отменён
		return
	}
}

// Dropped возвращает число отброшенных событий в режиме DropWhenFull.
func (e *ChanEmitter) Dropped() uint64 {
	return atomic.LoadUint64(&e.dropped)
}

// Subscribe возвращает Subscriber для чтения событий.
//
// Thread-safe.
// Все подписчики читают один общий канал и конкурируют за события:
// каждое событие получает ровно один из них. Для рассылки всем
// подписчикам нужен отдельный ChanEmitter на каждого.
func (e *ChanEmitter) Subscribe() Subscriber {
	return &chanSubscriber{
		ch:   e.ch,
		once: &sync.Once{},
	}
}

// Close закрывает канал и освобождает ресурсы.
//
// Thread-safe.
// После закрытия Emit больше не отправляет события.
func (e *ChanEmitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	close(e.ch)
}

// chanSubscriber реализует Subscriber интерфейс.
type chanSubscriber struct {
	ch   <-chan Event
	once *sync.Once
}

// Events возвращает read-only канал событий.
func (s *chanSubscriber) Events() <-chan Event {
	return s.ch
}

// Close закрывает подписчика (no-op для shared channel).
//
// Реальный канал закрывается только через ChanEmitter.Close().
func (s *chanSubscriber) Close() {
	// Ничего не делаем - канал общий для всех подписчиков
}

// Ensure ChanEmitter implements Emitter
var _ Emitter = (*ChanEmitter)(nil)

// Ensure chanSubscriber implements Subscriber
var _ Subscriber = (*chanSubscriber)(nil)
