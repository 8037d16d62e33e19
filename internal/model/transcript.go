// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"io"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// =============================================================================
// TRANSCRIPT
// =============================================================================

// Snapshot is an immutable view of the transcript at one version.
type Snapshot struct {
	Version  uint64
	Messages []*Message
}

// Listener receives a snapshot after every mutation.
type Listener func(Snapshot)

// Transcript is the ordered, observable message list for the active chat.
//
// Every mutation installs a new backing slice and a new *Message for the
// changed entry, so observers can detect updates by pointer comparison.
// The Transcript is safe for concurrent use.
type Transcript struct {
	mu        sync.RWMutex
	messages  []*Message
	version   uint64
	listeners map[int]Listener
	nextID    int
	log       logrus.FieldLogger
}

// NewTranscript creates an empty transcript.
func NewTranscript(log logrus.FieldLogger) *Transcript {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Transcript{
		listeners: make(map[int]Listener),
		log:       log,
	}
}

// Append adds a new message and returns its generated ID.
func (t *Transcript) Append(role Role, content string, streaming bool) string {
	msg := NewMessage(role, content)
	msg.Streaming = streaming

	t.mutate(func(cur []*Message) ([]*Message, bool) {
		next := make([]*Message, len(cur), len(cur)+1)
		copy(next, cur)
		return append(next, msg), true
	})
	return msg.ID
}

// ReplaceContent replaces the content and streaming flag of message id.
// Returns false, after logging a warning, when no such message exists.
func (t *Transcript) ReplaceContent(id, content string, streaming bool) bool {
	return t.replace(id, func(m *Message) {
		m.Content = content
		m.Streaming = streaming
	})
}

// SetStats attaches generation stats to message id.
func (t *Transcript) SetStats(id string, stats *Stats) bool {
	return t.replace(id, func(m *Message) {
		m.Stats = stats
	})
}

// Clear empties the transcript.
func (t *Transcript) Clear() {
	t.mutate(func(cur []*Message) ([]*Message, bool) {
		return nil, len(cur) > 0
	})
}

// Reset replaces the whole transcript, typically with history loaded from storage.
func (t *Transcript) Reset(msgs []*Message) {
	next := make([]*Message, 0, len(msgs))
	for _, m := range msgs {
		if m != nil {
			next = append(next, m.Clone())
		}
	}
	t.mutate(func([]*Message) ([]*Message, bool) {
		return next, true
	})
}

// Snapshot returns the current messages. The slice must not be modified.
func (t *Transcript) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Snapshot{Version: t.version, Messages: t.messages}
}

// Version returns a counter incremented on every mutation.
func (t *Transcript) Version() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.version
}

// Len returns the number of messages.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}

// Find returns the message with the given ID.
func (t *Transcript) Find(id string) (*Message, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if i := indexOf(t.messages, id); i >= 0 {
		return t.messages[i], true
	}
	return nil, false
}

// StreamingCount returns how many messages are flagged as streaming.
func (t *Transcript) StreamingCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, m := range t.messages {
		if m.Streaming {
			n++
		}
	}
	return n
}

// HistoryEntry is a role/content pair sent to the generation backend.
type HistoryEntry struct {
	Role    Role
	Content string
}

// History returns the conversation as role/content pairs, skipping
// in-flight and blank assistant placeholders.
func (t *Transcript) History() []HistoryEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]HistoryEntry, 0, len(t.messages))
	for _, m := range t.messages {
		if m.Role == RoleAssistant && (m.Streaming || strings.TrimSpace(m.Content) == "") {
			continue
		}
		out = append(out, HistoryEntry{Role: m.Role, Content: m.Content})
	}
	return out
}

// Subscribe registers fn to receive snapshots. The returned func unsubscribes.
func (t *Transcript) Subscribe(fn Listener) func() {
	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.listeners[id] = fn
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.listeners, id)
			t.mu.Unlock()
		})
	}
}

func (t *Transcript) replace(id string, edit func(*Message)) bool {
	found := false
	t.mutate(func(cur []*Message) ([]*Message, bool) {
		i := indexOf(cur, id)
		if i < 0 {
			return cur, false
		}
		found = true
		next := make([]*Message, len(cur))
		copy(next, cur)
		m := cur[i].Clone()
		edit(m)
		next[i] = m
		return next, true
	})
	if !found {
		t.log.WithField("message_id", id).Warn("transcript: message not found, update ignored")
	}
	return found
}

// mutate applies fn under the write lock and notifies listeners outside it.
func (t *Transcript) mutate(fn func([]*Message) ([]*Message, bool)) {
	t.mu.Lock()
	next, changed := fn(t.messages)
	if !changed {
		t.mu.Unlock()
		return
	}
	t.messages = next
	t.version++
	snap := Snapshot{Version: t.version, Messages: next}
	listeners := make([]Listener, 0, len(t.listeners))
	for _, l := range t.listeners {
		listeners = append(listeners, l)
	}
	t.mu.Unlock()

	for _, l := range listeners {
		l(snap)
	}
}

func indexOf(msgs []*Message, id string) int {
	for i, m := range msgs {
		if m.ID == id {
			return i
		}
	}
	return -1
}

// FromStored builds a Message from a persisted row.
func FromStored(id string, role Role, content string, createdAt time.Time) *Message {
	return &Message{ID: id, Role: role, Content: content, CreatedAt: createdAt}
}
