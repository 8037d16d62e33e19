// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/rigchat/internal/config"
	"github.com/jeranaias/rigchat/internal/events"
	"github.com/jeranaias/rigchat/internal/notify"
	"github.com/jeranaias/rigchat/internal/ollama"
	"github.com/jeranaias/rigchat/internal/session"
	"github.com/jeranaias/rigchat/internal/storage"
)

// =============================================================================
// HARNESS
// =============================================================================

type fakeBackend struct {
	requests chan ollama.GenerationRequest
}

func (b *fakeBackend) StartGeneration(_ context.Context, req ollama.GenerationRequest) (string, error) {
	b.requests <- req
	return "stream-" + req.RequestID, nil
}

func (b *fakeBackend) AbortRequest(context.Context, string) error {
	return nil
}

func (b *fakeBackend) AbortGeneration(context.Context) error {
	return nil
}

type harness struct {
	deps    Deps
	backend *fakeBackend
	store   *storage.Store
}

// newHarness wires a controller to a real store in a temp dir and a backend
// that only records requests. Markdown is off so views contain plain text.
func newHarness(t *testing.T, modelName string) *harness {
	t.Helper()

	store, err := storage.Open(filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)

	cfg := config.Default()
	cfg.DefaultModel = modelName
	cfg.UI.Markdown = false

	h := &harness{
		backend: &fakeBackend{requests: make(chan ollama.GenerationRequest, 8)},
		store:   store,
	}
	bus := events.NewBus()
	ctrl := session.New(store, h.backend, bus, nil, session.Config{Model: modelName})
	h.deps = Deps{
		Config:     cfg,
		Controller: ctrl,
		Bus:        bus,
		Notify:     notify.NewCenter(),
	}

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = ctrl.Shutdown(ctx)
		_ = store.Close()
	})
	return h
}

func (h *harness) nextRequest(t *testing.T) ollama.GenerationRequest {
	t.Helper()
	select {
	case req := <-h.backend.requests:
		return req
	case <-time.After(2 * time.Second):
		t.Fatal("no generation request issued")
		return ollama.GenerationRequest{}
	}
}

// stream publishes a full reply for req the way the generator does.
func (h *harness) stream(req ollama.GenerationRequest, parts ...string) {
	bus := h.deps.Bus
	sid := "stream-" + req.RequestID
	bus.Publish(events.StreamStart{StreamID: sid, RequestID: req.RequestID})
	for _, p := range parts {
		bus.Publish(events.Chunk{StreamID: sid, RequestID: req.RequestID, Text: p})
	}
	bus.Publish(events.Chunk{StreamID: sid, RequestID: req.RequestID, Done: true,
		Stats: &events.Stats{PromptTokens: 3, CompletionTokens: len(parts), EvalDurationNanos: int64(time.Second)}})
	bus.Publish(events.Complete{StreamID: sid, RequestID: req.RequestID, Completed: true})
}

func (h *harness) waitIdle(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, h.deps.Controller.WaitIdle(ctx))
}

// sync feeds the controller's current state to m, as the bridge would.
func (h *harness) sync(m Model) Model {
	c := h.deps.Controller
	m = update(m, TranscriptMsg{Snapshot: c.Transcript().Snapshot()})
	return update(m, SessionStateMsg{State: c.State()})
}

func (h *harness) titles() []string {
	var out []string
	for _, n := range h.deps.Notify.List() {
		out = append(out, n.Title)
	}
	return out
}

func update(m Model, msg tea.Msg) Model {
	next, _ := m.Update(msg)
	return next.(Model)
}

func updateCmd(m Model, msg tea.Msg) (Model, tea.Cmd) {
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func sized(m Model) Model {
	return update(m, tea.WindowSizeMsg{Width: 120, Height: 40})
}

func typeText(m Model, s string) Model {
	return update(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
}

func enterKey() tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyEnter}
}
