// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jeranaias/rigchat/internal/events"
	"github.com/jeranaias/rigchat/internal/model"
)

// writeTimeout bounds a single storage write.
const writeTimeout = 10 * time.Second

// job is one queued storage write. done is nil for fire-and-forget jobs.
type job struct {
	run  func(ctx context.Context) error
	desc string
	done chan error
}

// writer applies storage writes in submission order on one goroutine so a
// user turn always lands before the reply it prompted.
type writer struct {
	gateway Gateway
	bus     Bus
	log     logrus.FieldLogger
	warn    func(title, message string)

	mu     sync.Mutex
	queue  []job
	wake   chan struct{}
	closed bool
	done   chan struct{}
}

func newWriter(gateway Gateway, bus Bus, log logrus.FieldLogger, warn func(title, message string)) *writer {
	w := &writer{
		gateway: gateway,
		bus:     bus,
		log:     log,
		warn:    warn,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go w.loop()
	return w
}

// appendAndWait queues a message append and waits for it to be written.
func (w *writer) appendAndWait(ctx context.Context, chatID string, role model.Role, content string, stats *model.Stats) error {
	done := make(chan error, 1)
	if !w.enqueue(w.appendJob(chatID, role, content, stats, done)) {
		return ErrClosed
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// appendAsync queues a message append without waiting.
func (w *writer) appendAsync(chatID string, role model.Role, content string, stats *model.Stats) {
	if !w.enqueue(w.appendJob(chatID, role, content, stats, nil)) {
		w.log.WithField("chat_id", chatID).Warn("writer closed, dropping message")
	}
}

// setModel queues a model update for chatID.
func (w *writer) setModel(chatID, modelName string) {
	w.enqueue(job{
		desc: "set chat model",
		run: func(ctx context.Context) error {
			return w.gateway.SetChatModel(ctx, chatID, modelName)
		},
	})
}

func (w *writer) appendJob(chatID string, role model.Role, content string, stats *model.Stats, done chan error) job {
	return job{
		desc: "append " + role.String() + " message",
		done: done,
		run: func(ctx context.Context) error {
			if _, err := w.gateway.AppendMessage(ctx, chatID, role.String(), content, EncodeStats(stats)); err != nil {
				return err
			}
			w.bus.Publish(events.ChatsChanged{ChatID: chatID})
			return nil
		},
	}
}

func (w *writer) enqueue(j job) bool {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return false
	}
	w.queue = append(w.queue, j)
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
	return true
}

func (w *writer) loop() {
	defer close(w.done)
	for {
		w.mu.Lock()
		if len(w.queue) == 0 {
			closed := w.closed
			w.mu.Unlock()
			if closed {
				return
			}
			<-w.wake
			continue
		}
		j := w.queue[0]
		w.queue = w.queue[1:]
		w.mu.Unlock()

		w.run(j)
	}
}

func (w *writer) run(j job) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	err := j.run(ctx)
	cancel()

	if err != nil {
		perr := &PersistenceError{Op: j.desc, Err: err}
		w.log.WithError(err).Warn("failed to " + j.desc)
		w.warn("Save failed", perr.Error())
		err = perr
	}
	if j.done != nil {
		j.done <- err
	}
}

// close drains queued writes and stops the loop.
func (w *writer) close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		<-w.done
		return
	}
	w.closed = true
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
	<-w.done
}

// =============================================================================
// META
// =============================================================================

type messageMeta struct {
	PromptTokens     int   `json:"prompt_tokens,omitempty"`
	CompletionTokens int   `json:"completion_tokens,omitempty"`
	TotalDurationMs  int64 `json:"total_duration_ms,omitempty"`
	EvalDurationMs   int64 `json:"eval_duration_ms,omitempty"`
}

// EncodeStats renders stats as the meta_json column of a message.
func EncodeStats(st *model.Stats) string {
	if st == nil {
		return ""
	}
	data, err := json.Marshal(messageMeta{
		PromptTokens:     st.PromptTokens,
		CompletionTokens: st.CompletionTokens,
		TotalDurationMs:  st.TotalDuration.Milliseconds(),
		EvalDurationMs:   st.EvalDuration.Milliseconds(),
	})
	if err != nil {
		return ""
	}
	return string(data)
}

// DecodeStats reads stats back from meta_json. Unknown or invalid input gives nil.
func DecodeStats(s string) *model.Stats {
	if s == "" {
		return nil
	}
	var m messageMeta
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil
	}
	return &model.Stats{
		PromptTokens:     m.PromptTokens,
		CompletionTokens: m.CompletionTokens,
		TotalDuration:    time.Duration(m.TotalDurationMs) * time.Millisecond,
		EvalDuration:     time.Duration(m.EvalDurationMs) * time.Millisecond,
	}
}
