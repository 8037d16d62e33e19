// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/rigchat/internal/events"
	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/ollama"
	"github.com/jeranaias/rigchat/internal/storage"
)

// =============================================================================
// FAKES
// =============================================================================

type fakeGateway struct {
	mu        sync.Mutex
	chats     map[string]*storage.ChatMeta
	messages  map[string][]storage.MessageRow
	nextID    int
	createErr error
	appendErr error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		chats:    make(map[string]*storage.ChatMeta),
		messages: make(map[string][]storage.MessageRow),
	}
}

func (g *fakeGateway) CreateChat(_ context.Context, modelName, systemPrompt, paramsJSON string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return "", g.createErr
	}
	g.nextID++
	id := fmt.Sprintf("chat-%d", g.nextID)
	g.chats[id] = &storage.ChatMeta{ID: id, Model: modelName, SystemPrompt: systemPrompt, ParamsJSON: paramsJSON}
	return id, nil
}

func (g *fakeGateway) GetChat(_ context.Context, chatID string) (*storage.ChatMeta, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.chats[chatID]
	if !ok {
		return nil, storage.ErrChatNotFound
	}
	cp := *c
	return &cp, nil
}

func (g *fakeGateway) ListMessages(_ context.Context, chatID string, limit int) ([]storage.MessageRow, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	rows := g.messages[chatID]
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return append([]storage.MessageRow(nil), rows...), nil
}

func (g *fakeGateway) AppendMessage(_ context.Context, chatID, role, content, metaJSON string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.appendErr != nil {
		return "", g.appendErr
	}
	if _, ok := g.chats[chatID]; !ok {
		return "", storage.ErrChatNotFound
	}
	g.nextID++
	id := fmt.Sprintf("msg-%d", g.nextID)
	g.messages[chatID] = append(g.messages[chatID], storage.MessageRow{
		ID: id, ChatID: chatID, Role: role, Content: content, MetaJSON: metaJSON, CreatedAt: time.Now(),
	})
	return id, nil
}

func (g *fakeGateway) SetChatModel(_ context.Context, chatID, modelName string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.chats[chatID]
	if !ok {
		return storage.ErrChatNotFound
	}
	c.Model = modelName
	return nil
}

func (g *fakeGateway) DeleteChat(_ context.Context, chatID string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.chats[chatID]; !ok {
		return false, nil
	}
	delete(g.chats, chatID)
	delete(g.messages, chatID)
	return true, nil
}

func (g *fakeGateway) ListChatsWithFlags(_ context.Context, _ int) ([]storage.ChatWithFlags, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []storage.ChatWithFlags
	for id, c := range g.chats {
		out = append(out, storage.ChatWithFlags{ChatMeta: *c, HasMessages: len(g.messages[id]) > 0})
	}
	return out, nil
}

func (g *fakeGateway) stored(chatID string) []storage.MessageRow {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]storage.MessageRow(nil), g.messages[chatID]...)
}

type fakeBackend struct {
	mu       sync.Mutex
	requests chan ollama.GenerationRequest
	startErr error
	aborts   int
	aborted  []string
	block    chan struct{}
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{requests: make(chan ollama.GenerationRequest, 16)}
}

func (b *fakeBackend) StartGeneration(_ context.Context, req ollama.GenerationRequest) (string, error) {
	b.mu.Lock()
	err := b.startErr
	b.mu.Unlock()
	b.requests <- req
	if err != nil {
		return "", err
	}
	return "stream-" + req.RequestID, nil
}

func (b *fakeBackend) AbortRequest(_ context.Context, requestID string) error {
	b.mu.Lock()
	b.aborts++
	b.aborted = append(b.aborted, requestID)
	block := b.block
	b.mu.Unlock()
	if block != nil {
		<-block
	}
	return nil
}

func (b *fakeBackend) AbortGeneration(_ context.Context) error {
	return nil
}

func (b *fakeBackend) abortedRequests() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.aborted...)
}

func (b *fakeBackend) abortCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.aborts
}

type fakeTimer struct {
	mu      sync.Mutex
	fn      func()
	armed   int
	stopped bool
}

func (ft *fakeTimer) afterFunc(_ time.Duration, f func()) func() bool {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	ft.fn = f
	ft.armed++
	ft.stopped = false
	return func() bool {
		ft.mu.Lock()
		defer ft.mu.Unlock()
		ft.stopped = true
		return true
	}
}

func (ft *fakeTimer) fire() {
	ft.mu.Lock()
	fn, stopped := ft.fn, ft.stopped
	ft.mu.Unlock()
	if fn != nil && !stopped {
		fn()
	}
}

type fakeWarner struct {
	mu     sync.Mutex
	titles []string
}

func (w *fakeWarner) Warn(title, _ string) {
	w.mu.Lock()
	w.titles = append(w.titles, title)
	w.mu.Unlock()
}

func (w *fakeWarner) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.titles)
}

// =============================================================================
// HARNESS
// =============================================================================

type harness struct {
	ctrl    *Controller
	gateway *fakeGateway
	backend *fakeBackend
	bus     *events.Bus
	timer   *fakeTimer
	warner  *fakeWarner
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	fb := newFakeBackend()
	return newHarnessWith(t, cfg, fb, fb)
}

// newHarnessWith wires backend into the controller; fb still collects the
// issued requests.
func newHarnessWith(t *testing.T, cfg Config, fb *fakeBackend, backend Backend) *harness {
	t.Helper()
	h := &harness{
		gateway: newFakeGateway(),
		backend: fb,
		bus:     events.NewBus(),
		timer:   &fakeTimer{},
		warner:  &fakeWarner{},
	}
	if cfg.Model == "" {
		cfg.Model = "llama3.2"
	}
	cfg.AfterFunc = h.timer.afterFunc
	cfg.Warner = h.warner
	h.ctrl = New(h.gateway, backend, h.bus, nil, cfg)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = h.ctrl.Shutdown(ctx)
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
	sid := "stream-" + req.RequestID
	h.bus.Publish(events.StreamStart{StreamID: sid, RequestID: req.RequestID})
	for _, p := range parts {
		h.bus.Publish(events.Chunk{StreamID: sid, RequestID: req.RequestID, Text: p})
	}
	h.bus.Publish(events.Chunk{StreamID: sid, RequestID: req.RequestID, Done: true,
		Stats: &events.Stats{PromptTokens: 3, CompletionTokens: len(parts), EvalDurationNanos: int64(time.Second)}})
	h.bus.Publish(events.Complete{StreamID: sid, RequestID: req.RequestID, Completed: true})
}

func (h *harness) messages() []*model.Message {
	return h.ctrl.Transcript().Snapshot().Messages
}

func waitIdle(t *testing.T, c *Controller) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.WaitIdle(ctx))
}

// =============================================================================
// TESTS
// =============================================================================

func TestController_SendRoundTrip(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()

	require.NoError(t, h.ctrl.Send(ctx, "  hi  ", nil))
	req := h.nextRequest(t)

	assert.Equal(t, "llama3.2", req.Model)
	require.Len(t, req.Messages, 1)
	assert.Equal(t, "user", req.Messages[0].Role)
	assert.Equal(t, "hi", req.Messages[0].Content)

	h.stream(req, "Hel", "lo")
	waitIdle(t, h.ctrl)

	msgs := h.messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, model.RoleUser, msgs[0].Role)
	assert.Equal(t, "hi", msgs[0].Content)
	assert.Equal(t, model.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "Hello", msgs[1].Content)
	assert.False(t, msgs[1].Streaming)
	require.NotNil(t, msgs[1].Stats)
	assert.Equal(t, 2, msgs[1].Stats.CompletionTokens)

	chatID := h.ctrl.ChatID()
	require.NotEmpty(t, chatID)
	require.Eventually(t, func() bool { return len(h.gateway.stored(chatID)) == 2 }, 2*time.Second, 10*time.Millisecond)

	rows := h.gateway.stored(chatID)
	assert.Equal(t, "user", rows[0].Role)
	assert.Equal(t, "hi", rows[0].Content)
	assert.Equal(t, "assistant", rows[1].Role)
	assert.Equal(t, "Hello", rows[1].Content)
	assert.Contains(t, rows[1].MetaJSON, "completion_tokens")
}

func TestController_SendGuards(t *testing.T) {
	h := newHarness(t, Config{})
	h.ctrl.SetModel("")

	assert.ErrorIs(t, h.ctrl.Send(context.Background(), "hi", nil), ErrNoModelSelected)

	h.ctrl.SetModel("llama3.2")
	assert.ErrorIs(t, h.ctrl.Send(context.Background(), "   ", nil), ErrEmptyMessage)
	assert.Empty(t, h.messages())
	assert.Equal(t, PhaseIdle, h.ctrl.Phase())
}

func TestController_SystemPromptPrepended(t *testing.T) {
	h := newHarness(t, Config{SystemPrompt: "be brief"})

	require.NoError(t, h.ctrl.Send(context.Background(), "hi", nil))
	req := h.nextRequest(t)

	require.Len(t, req.Messages, 2)
	assert.Equal(t, "system", req.Messages[0].Role)
	assert.Equal(t, "be brief", req.Messages[0].Content)
}

func TestController_StaleStreamIgnored(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()

	require.NoError(t, h.ctrl.Send(ctx, "first", nil))
	reqA := h.nextRequest(t)
	sidA := "stream-" + reqA.RequestID
	h.bus.Publish(events.StreamStart{StreamID: sidA, RequestID: reqA.RequestID})
	h.bus.Publish(events.Chunk{StreamID: sidA, RequestID: reqA.RequestID, Text: "A1"})

	require.NoError(t, h.ctrl.Send(ctx, "second", nil))
	reqB := h.nextRequest(t)
	sidB := "stream-" + reqB.RequestID
	h.bus.Publish(events.StreamStart{StreamID: sidB, RequestID: reqB.RequestID})

	// late output of A
	h.bus.Publish(events.Chunk{StreamID: sidA, RequestID: reqA.RequestID, Text: "A2"})
	h.bus.Publish(events.Complete{StreamID: sidA, RequestID: reqA.RequestID})

	assert.True(t, h.ctrl.Streaming(), "B must still be live")

	h.bus.Publish(events.Chunk{StreamID: sidB, RequestID: reqB.RequestID, Text: "B1"})
	h.bus.Publish(events.Complete{StreamID: sidB, RequestID: reqB.RequestID, Completed: true})
	waitIdle(t, h.ctrl)

	a, ok := h.ctrl.Transcript().Find(reqA.RequestID)
	require.True(t, ok)
	assert.Equal(t, "A1", a.Content)
	assert.False(t, a.Streaming)

	b, ok := h.ctrl.Transcript().Find(reqB.RequestID)
	require.True(t, ok)
	assert.Equal(t, "B1", b.Content)
	assert.Equal(t, 0, h.ctrl.Transcript().StreamingCount())
}

func TestController_DoneChunkAndCompletePersistOnce(t *testing.T) {
	h := newHarness(t, Config{})

	require.NoError(t, h.ctrl.Send(context.Background(), "hi", nil))
	req := h.nextRequest(t)
	h.stream(req, "yo")
	// duplicate terminal events
	h.bus.Publish(events.Complete{StreamID: "stream-" + req.RequestID, RequestID: req.RequestID})
	waitIdle(t, h.ctrl)

	chatID := h.ctrl.ChatID()
	require.Eventually(t, func() bool { return len(h.gateway.stored(chatID)) == 2 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, h.gateway.stored(chatID), 2)
}

func TestController_StopDoesNotWaitForAbort(t *testing.T) {
	h := newHarness(t, Config{})
	block := make(chan struct{})
	h.backend.mu.Lock()
	h.backend.block = block
	h.backend.mu.Unlock()
	// unblock before the harness cleanup shuts down
	t.Cleanup(func() { close(block) })

	require.NoError(t, h.ctrl.Send(context.Background(), "hi", nil))
	req := h.nextRequest(t)
	sid := "stream-" + req.RequestID
	h.bus.Publish(events.StreamStart{StreamID: sid, RequestID: req.RequestID})
	h.bus.Publish(events.Chunk{StreamID: sid, RequestID: req.RequestID, Text: "partial"})

	assert.True(t, h.ctrl.Stop())
	assert.Equal(t, PhaseIdle, h.ctrl.Phase())
	assert.Equal(t, StatusCancelled, h.ctrl.State().Session.Status)

	msg, ok := h.ctrl.Transcript().Find(req.RequestID)
	require.True(t, ok)
	assert.Equal(t, "partial", msg.Content)
	assert.False(t, msg.Streaming)

	require.Eventually(t, func() bool { return h.backend.abortCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{req.RequestID}, h.backend.abortedRequests())

	chatID := h.ctrl.ChatID()
	require.Eventually(t, func() bool { return len(h.gateway.stored(chatID)) == 2 }, 2*time.Second, 10*time.Millisecond)

	// the backend's cancellation arrives later and changes nothing
	h.bus.Publish(events.Cancelled{StreamID: sid, RequestID: req.RequestID})
	assert.False(t, h.ctrl.Stop())
}

func TestController_TimeoutFinalizesWithContent(t *testing.T) {
	h := newHarness(t, Config{})

	require.NoError(t, h.ctrl.Send(context.Background(), "hi", nil))
	req := h.nextRequest(t)
	sid := "stream-" + req.RequestID
	h.bus.Publish(events.StreamStart{StreamID: sid, RequestID: req.RequestID})
	h.bus.Publish(events.Chunk{StreamID: sid, RequestID: req.RequestID, Text: "abc"})

	h.timer.fire()
	waitIdle(t, h.ctrl)

	msg, ok := h.ctrl.Transcript().Find(req.RequestID)
	require.True(t, ok)
	assert.Equal(t, "abc", msg.Content)
	assert.False(t, msg.Streaming)

	chatID := h.ctrl.ChatID()
	require.Eventually(t, func() bool { return len(h.gateway.stored(chatID)) == 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestController_ChunksDoNotExtendTimeout(t *testing.T) {
	h := newHarness(t, Config{})

	require.NoError(t, h.ctrl.Send(context.Background(), "hi", nil))
	req := h.nextRequest(t)
	sid := "stream-" + req.RequestID
	h.bus.Publish(events.StreamStart{StreamID: sid, RequestID: req.RequestID})
	for _, part := range []string{"a", "b", "c"} {
		h.bus.Publish(events.Chunk{StreamID: sid, RequestID: req.RequestID, Text: part})
	}

	h.timer.mu.Lock()
	armed := h.timer.armed
	h.timer.mu.Unlock()
	assert.Equal(t, 1, armed, "the deadline is set once per session")
	require.True(t, h.ctrl.Streaming())

	h.timer.fire()
	waitIdle(t, h.ctrl)
	msg, _ := h.ctrl.Transcript().Find(req.RequestID)
	assert.Equal(t, "abc", msg.Content)
	assert.Equal(t, StatusDone, h.ctrl.State().Session.Status)
}

func TestController_ChattyStreamStillTimesOut(t *testing.T) {
	h := newHarness(t, Config{})
	h.ctrl.afterFunc = realAfterFunc
	h.ctrl.timeout = 100 * time.Millisecond

	require.NoError(t, h.ctrl.Send(context.Background(), "hi", nil))
	req := h.nextRequest(t)
	sid := "stream-" + req.RequestID
	h.bus.Publish(events.StreamStart{StreamID: sid, RequestID: req.RequestID})

	// chunks keep coming well past the timeout, but no terminal event does
	deadline := time.Now().Add(400 * time.Millisecond)
	for time.Now().Before(deadline) && h.ctrl.Streaming() {
		h.bus.Publish(events.Chunk{StreamID: sid, RequestID: req.RequestID, Text: "."})
		time.Sleep(30 * time.Millisecond)
	}

	assert.False(t, h.ctrl.Streaming(), "stream should be force-finalized")
	assert.Equal(t, StatusDone, h.ctrl.State().Session.Status)
}

// abortAllBackend behaves like a generator whose abort is slow and cancels
// every open stream, whichever request it was issued for.
type abortAllBackend struct {
	*fakeBackend
	bus   *events.Bus
	delay time.Duration

	openMu sync.Mutex
	open   map[string]bool
	killed []string
}

func (b *abortAllBackend) StartGeneration(ctx context.Context, req ollama.GenerationRequest) (string, error) {
	b.openMu.Lock()
	b.open[req.RequestID] = true
	b.openMu.Unlock()
	return b.fakeBackend.StartGeneration(ctx, req)
}

func (b *abortAllBackend) AbortRequest(ctx context.Context, _ string) error {
	return b.AbortGeneration(ctx)
}

func (b *abortAllBackend) AbortGeneration(context.Context) error {
	time.Sleep(b.delay)
	b.openMu.Lock()
	var ids []string
	for id := range b.open {
		ids = append(ids, id)
		delete(b.open, id)
	}
	b.killed = append(b.killed, ids...)
	b.openMu.Unlock()

	for _, id := range ids {
		b.bus.Publish(events.Cancelled{StreamID: "stream-" + id, RequestID: id})
	}
	return nil
}

func (b *abortAllBackend) killedRequests() []string {
	b.openMu.Lock()
	defer b.openMu.Unlock()
	return append([]string(nil), b.killed...)
}

func TestController_SendWaitsForPreviousAbort(t *testing.T) {
	fb := newFakeBackend()
	backend := &abortAllBackend{fakeBackend: fb, delay: 20 * time.Millisecond, open: make(map[string]bool)}
	h := newHarnessWith(t, Config{}, fb, backend)
	backend.bus = h.bus
	ctx := context.Background()

	require.NoError(t, h.ctrl.Send(ctx, "first", nil))
	reqA := h.nextRequest(t)
	sidA := "stream-" + reqA.RequestID
	h.bus.Publish(events.StreamStart{StreamID: sidA, RequestID: reqA.RequestID})
	h.bus.Publish(events.Chunk{StreamID: sidA, RequestID: reqA.RequestID, Text: "A1"})

	require.NoError(t, h.ctrl.Send(ctx, "second", nil))
	reqB := h.nextRequest(t)
	assert.Equal(t, []string{reqA.RequestID}, backend.killedRequests(),
		"the first abort must have finished before the second request")

	h.stream(reqB, "B1", "B2")
	waitIdle(t, h.ctrl)

	b, ok := h.ctrl.Transcript().Find(reqB.RequestID)
	require.True(t, ok)
	assert.Equal(t, "B1B2", b.Content)
	assert.Equal(t, StatusDone, h.ctrl.State().Session.Status)
	assert.Equal(t, []string{reqA.RequestID}, backend.killedRequests())

	a, _ := h.ctrl.Transcript().Find(reqA.RequestID)
	assert.Equal(t, "A1", a.Content)
}

func TestController_SendWaitsForAbortAfterStop(t *testing.T) {
	h := newHarness(t, Config{})
	block := make(chan struct{})
	h.backend.mu.Lock()
	h.backend.block = block
	h.backend.mu.Unlock()

	require.NoError(t, h.ctrl.Send(context.Background(), "first", nil))
	reqA := h.nextRequest(t)
	h.bus.Publish(events.StreamStart{StreamID: "stream-" + reqA.RequestID, RequestID: reqA.RequestID})
	require.True(t, h.ctrl.Stop())

	sent := make(chan error, 1)
	go func() { sent <- h.ctrl.Send(context.Background(), "second", nil) }()

	select {
	case <-h.backend.requests:
		t.Fatal("second request issued while the abort was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(block)
	require.NoError(t, <-sent)
	reqB := h.nextRequest(t)
	assert.NotEqual(t, reqA.RequestID, reqB.RequestID)
}

func TestController_SendGivesUpWaitingOnContext(t *testing.T) {
	h := newHarness(t, Config{})
	block := make(chan struct{})
	h.backend.mu.Lock()
	h.backend.block = block
	h.backend.mu.Unlock()
	t.Cleanup(func() { close(block) })

	require.NoError(t, h.ctrl.Send(context.Background(), "first", nil))
	h.nextRequest(t)
	require.True(t, h.ctrl.Stop())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	err := h.ctrl.Send(ctx, "second", nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestController_StreamErrorWithoutContent(t *testing.T) {
	h := newHarness(t, Config{})

	require.NoError(t, h.ctrl.Send(context.Background(), "hi", nil))
	req := h.nextRequest(t)
	sid := "stream-" + req.RequestID
	h.bus.Publish(events.StreamStart{StreamID: sid, RequestID: req.RequestID})
	h.bus.Publish(events.StreamError{StreamID: sid, RequestID: req.RequestID, Message: "model not found"})
	waitIdle(t, h.ctrl)

	msg, _ := h.ctrl.Transcript().Find(req.RequestID)
	assert.Equal(t, "Error: model not found", msg.Content)

	chatID := h.ctrl.ChatID()
	require.Eventually(t, func() bool { return len(h.gateway.stored(chatID)) == 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, h.gateway.stored(chatID), 1, "error text is not persisted")
}

func TestController_RequestFailure(t *testing.T) {
	h := newHarness(t, Config{})
	h.backend.startErr = errors.New("connection refused")

	require.NoError(t, h.ctrl.Send(context.Background(), "hi", nil))
	req := h.nextRequest(t)
	waitIdle(t, h.ctrl)

	msg, ok := h.ctrl.Transcript().Find(req.RequestID)
	require.True(t, ok)
	assert.Equal(t, "Error: connection refused", msg.Content)
	assert.Equal(t, StatusErrored, h.ctrl.State().Session.Status)
}

func TestController_ChatCreateFailureStillStreams(t *testing.T) {
	h := newHarness(t, Config{})
	h.gateway.createErr = errors.New("disk full")

	require.NoError(t, h.ctrl.Send(context.Background(), "hi", nil))
	req := h.nextRequest(t)
	h.stream(req, "ok")
	waitIdle(t, h.ctrl)

	assert.Empty(t, h.ctrl.ChatID())
	assert.Equal(t, 1, h.warner.count())
	msg, _ := h.ctrl.Transcript().Find(req.RequestID)
	assert.Equal(t, "ok", msg.Content)
}

func TestController_ChatsChangedPublished(t *testing.T) {
	h := newHarness(t, Config{})
	var mu sync.Mutex
	changed := 0
	h.bus.Subscribe(func(events.Event) {
		mu.Lock()
		changed++
		mu.Unlock()
	}, events.KindChatsChanged)

	require.NoError(t, h.ctrl.Send(context.Background(), "hi", nil))
	req := h.nextRequest(t)
	h.stream(req, "ok")
	waitIdle(t, h.ctrl)

	// chat created, user message, assistant message
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return changed == 3
	}, 2*time.Second, 10*time.Millisecond)
}

func TestController_LoadChat(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()

	id, err := h.gateway.CreateChat(ctx, "mistral", "you are terse", "")
	require.NoError(t, err)
	_, err = h.gateway.AppendMessage(ctx, id, "user", "q", "")
	require.NoError(t, err)
	_, err = h.gateway.AppendMessage(ctx, id, "assistant", "a", `{"completion_tokens":7,"eval_duration_ms":500}`)
	require.NoError(t, err)

	require.NoError(t, h.ctrl.LoadChat(ctx, id))

	assert.Equal(t, id, h.ctrl.ChatID())
	assert.Equal(t, "you are terse", h.ctrl.SystemPrompt())
	assert.Equal(t, "llama3.2", h.ctrl.Model(), "model is not adopted from the chat")

	msgs := h.messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "q", msgs[0].Content)
	require.NotNil(t, msgs[1].Stats)
	assert.Equal(t, 7, msgs[1].Stats.CompletionTokens)
	assert.Equal(t, 500*time.Millisecond, msgs[1].Stats.EvalDuration)

	assert.Error(t, h.ctrl.LoadChat(ctx, "missing"))
}

func TestController_NewChatAndDelete(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()

	id, err := h.ctrl.NewChat(ctx, ChatOptions{SystemPrompt: "hello"})
	require.NoError(t, err)
	assert.Equal(t, id, h.ctrl.ChatID())

	require.NoError(t, h.ctrl.Send(ctx, "hi", nil))
	req := h.nextRequest(t)
	h.stream(req, "ok")
	waitIdle(t, h.ctrl)
	assert.Equal(t, id, h.ctrl.ChatID())

	chats, err := h.ctrl.ListChats(ctx, 10)
	require.NoError(t, err)
	require.Len(t, chats, 1)

	ok, err := h.ctrl.DeleteChat(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, h.ctrl.ChatID())
	assert.Empty(t, h.messages())

	ok, err = h.ctrl.DeleteChat(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestController_OnChange(t *testing.T) {
	h := newHarness(t, Config{})
	var mu sync.Mutex
	var phases []Phase
	unsub := h.ctrl.OnChange(func(s State) {
		mu.Lock()
		phases = append(phases, s.Phase)
		mu.Unlock()
	})
	defer unsub()

	require.NoError(t, h.ctrl.Send(context.Background(), "hi", nil))
	req := h.nextRequest(t)
	h.stream(req, "ok")
	waitIdle(t, h.ctrl)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, phases)
	assert.Equal(t, PhaseAwaitingStart, phases[0])
	assert.Equal(t, PhaseIdle, phases[len(phases)-1])
}

func TestController_SendAfterShutdown(t *testing.T) {
	h := newHarness(t, Config{})
	require.NoError(t, h.ctrl.Shutdown(context.Background()))
	assert.ErrorIs(t, h.ctrl.Send(context.Background(), "hi", nil), ErrClosed)
}
