package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChanEmitter_DeliversInOrder(t *testing.T) {
	e := NewChanEmitter(4)
	sub := e.Subscribe()
	ctx := context.Background()

	e.Emit(ctx, New(EventAppend, EntryData{Index: 0, Kind: "user"}))
	e.Emit(ctx, New(EventPatch, EntryData{Index: 1, Kind: "bot"}))

	first := <-sub.Events()
	second := <-sub.Events()

	assert.Equal(t, EventAppend, first.Type)
	assert.Equal(t, EntryData{Index: 0, Kind: "user"}, first.Data)
	assert.Equal(t, EventPatch, second.Type)
	assert.False(t, first.Timestamp.IsZero())
}

func TestChanEmitter_SubscribersShareEvents(t *testing.T) {
	e := NewChanEmitter(4)
	first := e.Subscribe()
	second := e.Subscribe()

	e.Emit(context.Background(), New(EventAppend, EntryData{Index: 0}))

	got := <-second.Events()
	assert.Equal(t, EventAppend, got.Type)

	select {
	case ev := <-first.Events():
		t.Fatalf("event delivered twice: %+v", ev)
	default:
	}
}

func TestChanEmitter_DropWhenFull(t *testing.T) {
	e := NewChanEmitter(1, DropWhenFull())
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 3; i++ {
			e.Emit(ctx, New(EventPatch, EntryData{Index: i}))
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked with DropWhenFull")
	}

	assert.Equal(t, uint64(2), e.Dropped())
	ev := <-e.Subscribe().Events()
	assert.Equal(t, EntryData{Index: 0}, ev.Data)
}

func TestChanEmitter_BlockingRespectsContext(t *testing.T) {
	e := NewChanEmitter(0)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	e.Emit(ctx, New(EventDone, DoneData{Iterations: 1}))
	require.ErrorIs(t, ctx.Err(), context.DeadlineExceeded)
}

func TestChanEmitter_CloseStopsDelivery(t *testing.T) {
	e := NewChanEmitter(2)
	sub := e.Subscribe()
	e.Close()
	e.Close()

	e.Emit(context.Background(), New(EventReset, ResetData{Generation: 1}))

	_, ok := <-sub.Events()
	assert.False(t, ok)
}
