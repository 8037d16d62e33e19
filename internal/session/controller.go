// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jeranaias/rigchat/internal/events"
	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/ollama"
	"github.com/jeranaias/rigchat/internal/storage"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	ErrNoModelSelected = errors.New("no model selected")
	ErrEmptyMessage    = errors.New("message is empty")
	ErrClosed          = errors.New("controller is shut down")
)

// PersistenceError wraps a failed storage write.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return "persistence " + e.Op + ": " + e.Err.Error()
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// =============================================================================
// DEPENDENCIES
// =============================================================================

// Gateway is the persistence the controller needs.
type Gateway interface {
	CreateChat(ctx context.Context, model, systemPrompt, paramsJSON string) (string, error)
	GetChat(ctx context.Context, chatID string) (*storage.ChatMeta, error)
	ListMessages(ctx context.Context, chatID string, limit int) ([]storage.MessageRow, error)
	AppendMessage(ctx context.Context, chatID, role, content, metaJSON string) (string, error)
	SetChatModel(ctx context.Context, chatID, model string) error
	DeleteChat(ctx context.Context, chatID string) (bool, error)
	ListChatsWithFlags(ctx context.Context, limit int) ([]storage.ChatWithFlags, error)
}

// Backend starts and aborts generation. AbortRequest must leave streams
// opened for other requests running.
type Backend interface {
	StartGeneration(ctx context.Context, req ollama.GenerationRequest) (string, error)
	AbortRequest(ctx context.Context, requestID string) error
	AbortGeneration(ctx context.Context) error
}

// Bus carries generation events and the chats-changed broadcast.
type Bus interface {
	Subscribe(h events.Handler, kinds ...events.Kind) *events.Subscription
	Publish(ev events.Event)
}

// Warner surfaces non-fatal problems to the user.
type Warner interface {
	Warn(title, message string)
}

// AfterFunc schedules f after d and returns a function that cancels it.
type AfterFunc func(d time.Duration, f func()) (stop func() bool)

func realAfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

// =============================================================================
// CONFIG
// =============================================================================

// DefaultStreamTimeout is how long a session may go without a terminal event
// before it is force-finalized.
const DefaultStreamTimeout = 60 * time.Second

// DefaultHistoryLimit bounds how many messages LoadChat restores.
const DefaultHistoryLimit = 1000

// Config holds controller settings.
type Config struct {
	Model         string
	SystemPrompt  string
	Options       *ollama.Options
	StreamTimeout time.Duration
	HistoryLimit  int

	Logger    logrus.FieldLogger
	Warner    Warner
	AfterFunc AfterFunc
}

// ChatOptions configures a new chat record.
type ChatOptions struct {
	Model        string
	SystemPrompt string
	ParamsJSON   string
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller owns the active chat: its transcript, the single live stream
// session, and the persistence of finished turns.
//
// State transitions happen under one mutex via Reduce; storage and backend
// calls never run while it is held. Send, LoadChat, NewChat and DeleteChat
// are serialized with each other. The Controller is safe for concurrent use.
type Controller struct {
	gateway    Gateway
	backend    Backend
	bus        Bus
	transcript *model.Transcript
	log        logrus.FieldLogger
	warner     Warner
	afterFunc  AfterFunc

	timeout      time.Duration
	historyLimit int

	// opMu serializes whole user operations (send, load, new, delete).
	opMu sync.Mutex

	mu           sync.Mutex
	state        State
	seq          uint64
	subs         map[uint64]*events.Subscription
	starts       map[uint64]context.CancelFunc
	aborts       map[uint64]chan struct{}
	stopTimer    func() bool
	idle         chan struct{}
	listeners    map[int]func(State)
	nextListener int

	model        string
	chatID       string
	systemPrompt string
	options      *ollama.Options
	closed       bool

	ctx    context.Context
	cancel context.CancelFunc
	writer *writer
	wg     sync.WaitGroup
}

// New creates a Controller and starts its persistence writer.
// Call Shutdown before exit.
func New(gateway Gateway, backend Backend, bus Bus, transcript *model.Transcript, cfg Config) *Controller {
	log := cfg.Logger
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	if transcript == nil {
		transcript = model.NewTranscript(log)
	}
	if cfg.StreamTimeout <= 0 {
		cfg.StreamTimeout = DefaultStreamTimeout
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = DefaultHistoryLimit
	}
	if cfg.AfterFunc == nil {
		cfg.AfterFunc = realAfterFunc
	}

	ctx, cancel := context.WithCancel(context.Background())
	idle := make(chan struct{})
	close(idle)

	c := &Controller{
		gateway:      gateway,
		backend:      backend,
		bus:          bus,
		transcript:   transcript,
		log:          log,
		warner:       cfg.Warner,
		afterFunc:    cfg.AfterFunc,
		timeout:      cfg.StreamTimeout,
		historyLimit: cfg.HistoryLimit,
		subs:         make(map[uint64]*events.Subscription),
		starts:       make(map[uint64]context.CancelFunc),
		aborts:       make(map[uint64]chan struct{}),
		idle:         idle,
		listeners:    make(map[int]func(State)),
		model:        cfg.Model,
		systemPrompt: cfg.SystemPrompt,
		options:      cfg.Options,
		ctx:          ctx,
		cancel:       cancel,
	}
	c.writer = newWriter(gateway, bus, log, c.warn)
	return c
}

// =============================================================================
// ACCESSORS
// =============================================================================

// Transcript returns the transcript the controller writes to.
func (c *Controller) Transcript() *model.Transcript {
	return c.transcript
}

// State returns a copy of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Phase returns the current phase.
func (c *Controller) Phase() Phase {
	return c.State().Phase
}

// Streaming reports whether a session is live.
func (c *Controller) Streaming() bool {
	return c.Phase().Live()
}

// Model returns the selected model.
func (c *Controller) Model() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.model
}

// ChatID returns the current chat, or "" before the first message is sent.
func (c *Controller) ChatID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chatID
}

// SystemPrompt returns the system prompt of the current chat.
func (c *Controller) SystemPrompt() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.systemPrompt
}

// SetOptions replaces the default generation options used by Send.
func (c *Controller) SetOptions(opts *ollama.Options) {
	c.mu.Lock()
	c.options = opts
	c.mu.Unlock()
}

// SetSystemPrompt sets the prompt used for chats created from now on.
func (c *Controller) SetSystemPrompt(prompt string) {
	c.mu.Lock()
	c.systemPrompt = prompt
	c.mu.Unlock()
}

// OnChange registers fn to run after every state transition.
// fn must not block or call back into the controller.
func (c *Controller) OnChange(fn func(State)) func() {
	c.mu.Lock()
	id := c.nextListener
	c.nextListener++
	c.listeners[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// WaitIdle blocks until no session is live or ctx is done.
func (c *Controller) WaitIdle(ctx context.Context) error {
	c.mu.Lock()
	idle := c.idle
	c.mu.Unlock()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// =============================================================================
// SEND / STOP
// =============================================================================

// Send appends text as a user turn and streams an assistant reply into a new
// placeholder. It returns once the request has been issued; the reply
// arrives through bus events. opts overrides the controller defaults when
// non-nil. A live stream is stopped first, and the new request is not
// issued until every pending backend abort has returned.
func (c *Controller) Send(ctx context.Context, text string, opts *ollama.Options) error {
	text = strings.TrimSpace(text)

	c.mu.Lock()
	modelName, closed := c.model, c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if modelName == "" {
		return ErrNoModelSelected
	}
	if text == "" {
		return ErrEmptyMessage
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	if c.Streaming() {
		c.log.Debug("send while streaming, stopping current stream first")
		c.Stop()
	}
	if err := c.waitAborts(ctx); err != nil {
		return fmt.Errorf("waiting for previous stream to stop: %w", err)
	}

	chatID := c.ensureChat(ctx, modelName)

	c.transcript.Append(model.RoleUser, text, false)
	if chatID != "" {
		c.writer.setModel(chatID, modelName)
		if err := c.writer.appendAndWait(ctx, chatID, model.RoleUser, text, nil); err != nil {
			c.log.WithError(err).WithField("chat_id", chatID).Warn("failed to persist user message")
		}
	}

	target := c.transcript.Append(model.RoleAssistant, "", true)

	c.mu.Lock()
	if opts == nil {
		opts = c.options
	}
	req := ollama.GenerationRequest{
		RequestID: target,
		Model:     modelName,
		Messages:  c.buildHistoryLocked(),
		Options:   opts,
	}
	c.seq++
	seq := c.seq
	// subscribe before the request so no early event is missed
	c.subs[seq] = c.bus.Subscribe(c.handler(seq), events.StreamKinds...)
	startCtx, cancelStart := context.WithCancel(c.ctx)
	c.starts[seq] = cancelStart
	c.mu.Unlock()

	c.dispatch(Begin{Seq: seq, TargetMessageID: target, ChatID: chatID})

	log := c.log.WithFields(logrus.Fields{"chat_id": chatID, "message_id": target, "model": modelName})
	log.Debug("starting generation")

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer func() {
			c.mu.Lock()
			delete(c.starts, seq)
			c.mu.Unlock()
			cancelStart()
		}()
		streamID, err := c.backend.StartGeneration(startCtx, req)
		if err != nil {
			log.WithError(err).Warn("generation request failed")
			c.dispatch(RequestFailed{Seq: seq, Err: err.Error()})
			return
		}
		log.WithField("stream_id", streamID).Debug("generation accepted")
	}()

	return nil
}

// Stop ends the live session locally and fires a backend abort for that
// session's request without waiting for it. Partial content is kept and persisted once.
// Returns false when nothing was streaming.
func (c *Controller) Stop() bool {
	prev := c.dispatch(StopRequested{})
	return prev.Phase.Live()
}

// =============================================================================
// CHAT MANAGEMENT
// =============================================================================

// SetModel selects the model for subsequent sends and records it on the current chat.
func (c *Controller) SetModel(modelName string) {
	c.mu.Lock()
	c.model = modelName
	chatID := c.chatID
	c.mu.Unlock()

	if chatID != "" && modelName != "" {
		c.writer.setModel(chatID, modelName)
	}
}

// NewChat stops any stream, creates a chat record and clears the transcript.
func (c *Controller) NewChat(ctx context.Context, opts ChatOptions) (string, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.Stop()

	c.mu.Lock()
	if opts.Model == "" {
		opts.Model = c.model
	}
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = c.systemPrompt
	}
	c.mu.Unlock()

	id, err := c.gateway.CreateChat(ctx, opts.Model, opts.SystemPrompt, opts.ParamsJSON)
	if err != nil {
		return "", &PersistenceError{Op: "create chat", Err: err}
	}

	c.mu.Lock()
	c.chatID = id
	c.systemPrompt = opts.SystemPrompt
	c.mu.Unlock()
	c.transcript.Clear()

	c.bus.Publish(events.ChatsChanged{ChatID: id})
	c.log.WithField("chat_id", id).Info("chat created")
	return id, nil
}

// ClearChat stops any stream and starts an unsaved chat. A record is created
// lazily by the next Send.
func (c *Controller) ClearChat() {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.Stop()
	c.mu.Lock()
	c.chatID = ""
	c.mu.Unlock()
	c.transcript.Clear()
}

// LoadChat stops any stream and replaces the transcript with the stored chat.
func (c *Controller) LoadChat(ctx context.Context, chatID string) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.Stop()

	meta, err := c.gateway.GetChat(ctx, chatID)
	if err != nil {
		return fmt.Errorf("failed to load chat: %w", err)
	}
	rows, err := c.gateway.ListMessages(ctx, chatID, c.historyLimit)
	if err != nil {
		return fmt.Errorf("failed to load messages: %w", err)
	}

	msgs := make([]*model.Message, 0, len(rows))
	for _, r := range rows {
		m := model.FromStored(r.ID, model.ParseRole(r.Role), r.Content, r.CreatedAt)
		m.Stats = DecodeStats(r.MetaJSON)
		msgs = append(msgs, m)
	}

	c.mu.Lock()
	c.chatID = chatID
	c.systemPrompt = meta.SystemPrompt
	c.mu.Unlock()
	c.transcript.Reset(msgs)

	c.log.WithFields(logrus.Fields{"chat_id": chatID, "messages": len(msgs)}).Info("chat loaded")
	return nil
}

// DeleteChat removes a chat. Deleting the current chat clears the transcript.
func (c *Controller) DeleteChat(ctx context.Context, chatID string) (bool, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if c.ChatID() == chatID {
		c.Stop()
		c.mu.Lock()
		c.chatID = ""
		c.mu.Unlock()
		c.transcript.Clear()
	}

	ok, err := c.gateway.DeleteChat(ctx, chatID)
	if err != nil {
		return false, &PersistenceError{Op: "delete chat", Err: err}
	}
	if ok {
		c.bus.Publish(events.ChatsChanged{ChatID: chatID})
	}
	return ok, nil
}

// ListChats returns chats for the sidebar.
func (c *Controller) ListChats(ctx context.Context, limit int) ([]storage.ChatWithFlags, error) {
	return c.gateway.ListChatsWithFlags(ctx, limit)
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// Shutdown aborts any live stream, releases subscriptions and timers, and
// waits for pending storage writes until ctx is done.
func (c *Controller) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	live := c.state.Phase.Live()
	c.mu.Unlock()

	if live {
		c.dispatch(StopRequested{})
	}
	if err := c.backend.AbortGeneration(ctx); err != nil {
		c.log.WithError(err).Debug("abort during shutdown failed")
	}

	c.mu.Lock()
	for seq, sub := range c.subs {
		sub.Unsubscribe()
		delete(c.subs, seq)
	}
	if c.stopTimer != nil {
		c.stopTimer()
		c.stopTimer = nil
	}
	c.mu.Unlock()

	c.cancel()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		c.writer.close()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// =============================================================================
// DISPATCH
// =============================================================================

func (c *Controller) handler(seq uint64) events.Handler {
	return func(ev events.Event) {
		c.dispatch(Delivered{Seq: seq, Event: ev})
	}
}

// dispatch runs one transition. In-memory effects are applied under the lock;
// storage and backend effects are started after it is released.
// Returns the state before the transition.
func (c *Controller) dispatch(in Input) State {
	c.mu.Lock()
	prev := c.state
	next, effects := Reduce(prev, in)
	c.state = next
	deferred := c.applyLocked(effects)

	if !prev.Phase.Live() && next.Phase.Live() {
		c.idle = make(chan struct{})
	}
	if prev.Phase.Live() && !next.Phase.Live() {
		close(c.idle)
	}

	var listeners []func(State)
	if prev != next {
		listeners = make([]func(State), 0, len(c.listeners))
		for _, fn := range c.listeners {
			listeners = append(listeners, fn)
		}
	}
	c.mu.Unlock()

	if prev.Phase != next.Phase {
		c.log.WithFields(logrus.Fields{
			"from":       prev.Phase.String(),
			"to":         next.Phase.String(),
			"message_id": next.Session.TargetMessageID,
			"stream_id":  next.Session.StreamID,
			"status":     string(next.Session.Status),
		}).Debug("session transition")
	}

	for _, fn := range deferred {
		fn()
	}
	for _, fn := range listeners {
		fn(next)
	}
	return prev
}

func (c *Controller) applyLocked(effects []Effect) []func() {
	var deferred []func()
	for _, eff := range effects {
		switch eff := eff.(type) {
		case ReplaceContent:
			c.transcript.ReplaceContent(eff.MessageID, eff.Content, eff.Streaming)

		case AttachStats:
			c.transcript.SetStats(eff.MessageID, eff.Stats)

		case Unsubscribe:
			if sub, ok := c.subs[eff.Seq]; ok {
				sub.Unsubscribe()
				delete(c.subs, eff.Seq)
			}

		case ArmTimer:
			if c.stopTimer != nil {
				c.stopTimer()
			}
			seq := eff.Seq
			c.stopTimer = c.afterFunc(c.timeout, func() {
				c.log.WithField("seq", seq).Warn("stream timed out, finalizing")
				c.dispatch(TimedOut{Seq: seq})
			})

		case StopTimer:
			if c.stopTimer != nil {
				c.stopTimer()
				c.stopTimer = nil
			}

		case Persist:
			p := eff
			deferred = append(deferred, func() {
				c.writer.appendAsync(p.ChatID, model.RoleAssistant, p.Content, p.Stats)
			})

		case Abort:
			// a request still being issued fails instead of starting
			if cancel, ok := c.starts[eff.Seq]; ok {
				cancel()
			}
			done := make(chan struct{})
			c.aborts[eff.Seq] = done
			a := eff
			deferred = append(deferred, func() {
				c.wg.Add(1)
				go func() {
					defer c.wg.Done()
					defer func() {
						c.mu.Lock()
						delete(c.aborts, a.Seq)
						c.mu.Unlock()
						close(done)
					}()
					if err := c.backend.AbortRequest(c.ctx, a.RequestID); err != nil {
						c.log.WithError(err).WithFields(logrus.Fields{
							"message_id": a.RequestID,
							"stream_id":  a.StreamID,
						}).Warn("backend abort failed")
					}
				}()
			})

		case Discard:
			c.log.WithField("reason", eff.Reason).Debug("input discarded")
		}
	}
	return deferred
}

// =============================================================================
// HELPERS
// =============================================================================

// waitAborts blocks until every backend abort started so far has returned.
func (c *Controller) waitAborts(ctx context.Context) error {
	c.mu.Lock()
	pending := make([]chan struct{}, 0, len(c.aborts))
	for _, done := range c.aborts {
		pending = append(pending, done)
	}
	c.mu.Unlock()

	for _, done := range pending {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// ensureChat returns the current chat, creating one if needed. A failure is
// reported and the send continues without persistence.
func (c *Controller) ensureChat(ctx context.Context, modelName string) string {
	c.mu.Lock()
	chatID, prompt := c.chatID, c.systemPrompt
	c.mu.Unlock()
	if chatID != "" {
		return chatID
	}

	id, err := c.gateway.CreateChat(ctx, modelName, prompt, "")
	if err != nil {
		perr := &PersistenceError{Op: "create chat", Err: err}
		c.log.WithError(err).Warn("failed to create chat, continuing without persistence")
		c.warn("Chat not saved", perr.Error())
		return ""
	}

	c.mu.Lock()
	c.chatID = id
	c.mu.Unlock()
	c.bus.Publish(events.ChatsChanged{ChatID: id})
	return id
}

// buildHistoryLocked converts the transcript into backend messages.
func (c *Controller) buildHistoryLocked() []ollama.Message {
	history := c.transcript.History()
	out := make([]ollama.Message, 0, len(history)+1)
	if c.systemPrompt != "" && (len(history) == 0 || history[0].Role != model.RoleSystem) {
		out = append(out, ollama.NewSystemMessage(c.systemPrompt))
	}
	for _, h := range history {
		out = append(out, ollama.Message{Role: h.Role.String(), Content: h.Content})
	}
	return out
}

func (c *Controller) warn(title, message string) {
	if c.warner != nil {
		c.warner.Warn(title, message)
	}
}
