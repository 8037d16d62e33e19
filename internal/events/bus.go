// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package events

import (
	"sync"
)

// Handler receives a published event. Handlers must not block.
type Handler func(Event)

// Subscription is returned by Subscribe and releases the handler.
type Subscription struct {
	bus  *Bus
	id   uint64
	once sync.Once
}

// Unsubscribe removes the handler. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if s == nil || s.bus == nil {
		return
	}
	s.once.Do(func() {
		s.bus.remove(s.id)
	})
}

type subscriber struct {
	handler Handler
	kinds   map[Kind]bool
}

// Bus is a synchronous in-process publish/subscribe hub.
// Publish delivers to every matching subscriber on the caller's goroutine,
// in subscription order. The Bus is safe for concurrent use.
type Bus struct {
	mu     sync.RWMutex
	subs   map[uint64]subscriber
	order  []uint64
	nextID uint64
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[uint64]subscriber)}
}

// Subscribe registers h for the given kinds, or for every kind when none are given.
func (b *Bus) Subscribe(h Handler, kinds ...Kind) *Subscription {
	var filter map[Kind]bool
	if len(kinds) > 0 {
		filter = make(map[Kind]bool, len(kinds))
		for _, k := range kinds {
			filter[k] = true
		}
	}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[id] = subscriber{handler: h, kinds: filter}
	b.order = append(b.order, id)
	b.mu.Unlock()

	return &Subscription{bus: b, id: id}
}

// Publish delivers ev to all subscribers interested in its kind.
func (b *Bus) Publish(ev Event) {
	if ev == nil {
		return
	}
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.order))
	for _, id := range b.order {
		s, ok := b.subs[id]
		if !ok {
			continue
		}
		if s.kinds == nil || s.kinds[ev.Kind()] {
			handlers = append(handlers, s.handler)
		}
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
}

// Len returns the number of active subscriptions.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, id)
	for i, v := range b.order {
		if v == id {
			b.order = append(b.order[:i:i], b.order[i+1:]...)
			break
		}
	}
}
