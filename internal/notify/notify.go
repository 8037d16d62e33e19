// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package notify holds transient user notifications (toasts) with auto-dismiss.
package notify

import (
	"sync"
	"time"
)

// =============================================================================
// KINDS
// =============================================================================

// Kind is the type of a notification.
type Kind int

const (
	KindInfo Kind = iota
	KindSuccess
	KindWarning
	KindError
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindWarning:
		return "warning"
	case KindError:
		return "error"
	default:
		return "info"
	}
}

// Default durations per kind. Zero means the notification stays until removed.
const (
	SuccessDuration = 5 * time.Second
	InfoDuration    = 5 * time.Second
	WarningDuration = 7 * time.Second
	ErrorDuration   = 0
)

// MaxNotifications caps how many are kept; the oldest are dropped first.
const MaxNotifications = 5

// Notification is one toast.
type Notification struct {
	ID        int
	Kind      Kind
	Title     string
	Message   string
	CreatedAt time.Time
	Duration  time.Duration
}

// Sticky reports whether the notification never auto-dismisses.
func (n Notification) Sticky() bool {
	return n.Duration <= 0
}

// =============================================================================
// CENTER
// =============================================================================

// Center stores active notifications. Safe for concurrent use.
type Center struct {
	mu        sync.Mutex
	items     []Notification
	timers    map[int]*time.Timer
	nextID    int
	listeners map[int]func([]Notification)
	nextSub   int
	now       func() time.Time
}

// NewCenter creates an empty Center.
func NewCenter() *Center {
	return &Center{
		timers:    make(map[int]*time.Timer),
		nextID:    1,
		listeners: make(map[int]func([]Notification)),
		now:       time.Now,
	}
}

// Add stores a notification and returns its id. A positive duration schedules removal.
func (c *Center) Add(kind Kind, title, message string, duration time.Duration) int {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.items = append(c.items, Notification{
		ID:        id,
		Kind:      kind,
		Title:     title,
		Message:   message,
		CreatedAt: c.now(),
		Duration:  duration,
	})
	for len(c.items) > MaxNotifications {
		c.dropLocked(c.items[0].ID)
	}
	if duration > 0 {
		c.timers[id] = time.AfterFunc(duration, func() { c.Remove(id) })
	}
	snap := c.snapshotLocked()
	listeners := c.listenersLocked()
	c.mu.Unlock()

	notifyAll(listeners, snap)
	return id
}

// Success adds a success notification.
func (c *Center) Success(title, message string) int {
	return c.Add(KindSuccess, title, message, SuccessDuration)
}

// Error adds a sticky error notification.
func (c *Center) Error(title, message string) int {
	return c.Add(KindError, title, message, ErrorDuration)
}

// Info adds an informational notification.
func (c *Center) Info(title, message string) int {
	return c.Add(KindInfo, title, message, InfoDuration)
}

// Warn adds a warning notification. It satisfies session.Warner.
func (c *Center) Warn(title, message string) {
	c.Add(KindWarning, title, message, WarningDuration)
}

// Remove dismisses a notification. Returns false if it is already gone.
func (c *Center) Remove(id int) bool {
	c.mu.Lock()
	if !c.dropLocked(id) {
		c.mu.Unlock()
		return false
	}
	snap := c.snapshotLocked()
	listeners := c.listenersLocked()
	c.mu.Unlock()

	notifyAll(listeners, snap)
	return true
}

// Clear dismisses everything.
func (c *Center) Clear() {
	c.mu.Lock()
	for id, t := range c.timers {
		t.Stop()
		delete(c.timers, id)
	}
	c.items = nil
	listeners := c.listenersLocked()
	c.mu.Unlock()

	notifyAll(listeners, nil)
}

// List returns active notifications, oldest first.
func (c *Center) List() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Subscribe registers fn to receive the list after every change. fn must not block.
func (c *Center) Subscribe(fn func([]Notification)) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.listeners[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

func (c *Center) dropLocked(id int) bool {
	for i, n := range c.items {
		if n.ID != id {
			continue
		}
		c.items = append(c.items[:i:i], c.items[i+1:]...)
		if t, ok := c.timers[id]; ok {
			t.Stop()
			delete(c.timers, id)
		}
		return true
	}
	return false
}

func (c *Center) snapshotLocked() []Notification {
	if len(c.items) == 0 {
		return nil
	}
	return append([]Notification(nil), c.items...)
}

func (c *Center) listenersLocked() []func([]Notification) {
	out := make([]func([]Notification), 0, len(c.listeners))
	for _, fn := range c.listeners {
		out = append(out, fn)
	}
	return out
}

func notifyAll(listeners []func([]Notification), snap []Notification) {
	for _, fn := range listeners {
		fn(snap)
	}
}
