// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package events

import (
	"sync"
	"testing"
)

func TestBus_FilteredDelivery(t *testing.T) {
	bus := NewBus()

	var chunks, all []Event
	bus.Subscribe(func(ev Event) { chunks = append(chunks, ev) }, KindChunk)
	bus.Subscribe(func(ev Event) { all = append(all, ev) })

	bus.Publish(StreamStart{StreamID: "s1"})
	bus.Publish(Chunk{StreamID: "s1", Text: "hi"})
	bus.Publish(Complete{StreamID: "s1", Completed: true})

	if len(chunks) != 1 {
		t.Errorf("chunk subscriber got %d events, want 1", len(chunks))
	}
	if len(all) != 3 {
		t.Errorf("catch-all subscriber got %d events, want 3", len(all))
	}
	if c, ok := chunks[0].(Chunk); !ok || c.Text != "hi" {
		t.Errorf("unexpected event %#v", chunks[0])
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()
	count := 0
	sub := bus.Subscribe(func(Event) { count++ })

	bus.Publish(ChatsChanged{ChatID: "c"})
	sub.Unsubscribe()
	sub.Unsubscribe()
	bus.Publish(ChatsChanged{ChatID: "c"})

	if count != 1 {
		t.Errorf("handler ran %d times, want 1", count)
	}
	if bus.Len() != 0 {
		t.Errorf("Len() = %d, want 0", bus.Len())
	}
}

func TestBus_UnsubscribeDuringPublish(t *testing.T) {
	bus := NewBus()
	var sub *Subscription
	calls := 0
	sub = bus.Subscribe(func(Event) {
		calls++
		sub.Unsubscribe()
	})

	bus.Publish(Cancelled{StreamID: "s"})
	bus.Publish(Cancelled{StreamID: "s"})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestBus_ConcurrentPublish(t *testing.T) {
	bus := NewBus()
	var mu sync.Mutex
	n := 0
	bus.Subscribe(func(Event) {
		mu.Lock()
		n++
		mu.Unlock()
	}, KindChunk)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Publish(Chunk{Text: "x"})
		}()
	}
	wg.Wait()

	if n != 50 {
		t.Errorf("received %d chunks, want 50", n)
	}
}

func TestEventKinds(t *testing.T) {
	tests := []struct {
		ev   Event
		want Kind
	}{
		{StreamStart{}, KindStreamStart},
		{Chunk{}, KindChunk},
		{Complete{}, KindComplete},
		{StreamError{}, KindError},
		{Cancelled{}, KindCancelled},
		{ChatsChanged{}, KindChatsChanged},
	}
	for _, tt := range tests {
		if got := tt.ev.Kind(); got != tt.want {
			t.Errorf("%T.Kind() = %s, want %s", tt.ev, got, tt.want)
		}
	}
}
