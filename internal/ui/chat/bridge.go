// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the terminal chat interface of rigchat.
//
// This file forwards controller and service notifications into the running
// program. Listeners are invoked while their owners may hold a lock, and
// Program.Send blocks until the event loop reads the message, so listeners
// only signal a one-slot channel. A single goroutine reads the latest state
// and sends it, with transcript updates capped at frameRate per second.
package chat

import (
	"context"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/time/rate"

	"github.com/jeranaias/rigchat/internal/config"
	"github.com/jeranaias/rigchat/internal/events"
	"github.com/jeranaias/rigchat/internal/health"
	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/notify"
	"github.com/jeranaias/rigchat/internal/registry"
	"github.com/jeranaias/rigchat/internal/session"
)

// frameRate caps transcript redraws while tokens stream in.
const frameRate = 30

// =============================================================================
// BRIDGE
// =============================================================================

// Bridge relays state changes to a program. Every source is optional.
type Bridge struct {
	deps    Deps
	send    func(tea.Msg)
	limiter *rate.Limiter

	transcriptCh chan struct{}
	stateCh      chan struct{}
	chatsCh      chan struct{}
	healthCh     chan struct{}
	pullsCh      chan struct{}
	toastsCh     chan struct{}
	configCh     chan struct{}

	mu         sync.Mutex
	lastChatID string
	cfg        *config.Config
	cfgErr     error

	unsubs  []func()
	watcher *config.Watcher
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewBridge creates a Bridge that delivers messages through send, usually
// Program.Send.
func NewBridge(deps Deps, send func(tea.Msg)) *Bridge {
	return &Bridge{
		deps:         deps,
		send:         send,
		limiter:      rate.NewLimiter(rate.Every(time.Second/frameRate), 1),
		transcriptCh: make(chan struct{}, 1),
		stateCh:      make(chan struct{}, 1),
		chatsCh:      make(chan struct{}, 1),
		healthCh:     make(chan struct{}, 1),
		pullsCh:      make(chan struct{}, 1),
		toastsCh:     make(chan struct{}, 1),
		configCh:     make(chan struct{}, 1),
		done:         make(chan struct{}),
	}
}

// Start subscribes to every configured source and starts forwarding.
func (b *Bridge) Start(ctx context.Context) {
	ctx, b.cancel = context.WithCancel(ctx)
	d := b.deps

	if c := d.Controller; c != nil {
		b.unsubs = append(b.unsubs,
			c.Transcript().Subscribe(func(model.Snapshot) { poke(b.transcriptCh) }),
			c.OnChange(func(session.State) { poke(b.stateCh) }),
		)
	}
	if d.Bus != nil {
		sub := d.Bus.Subscribe(func(ev events.Event) {
			if cc, ok := ev.(events.ChatsChanged); ok {
				b.mu.Lock()
				b.lastChatID = cc.ChatID
				b.mu.Unlock()
			}
			poke(b.chatsCh)
		}, events.KindChatsChanged)
		b.unsubs = append(b.unsubs, sub.Unsubscribe)
	}
	if d.Health != nil {
		b.unsubs = append(b.unsubs, d.Health.Subscribe(func(health.Status) { poke(b.healthCh) }))
	}
	if d.Registry != nil {
		b.unsubs = append(b.unsubs, d.Registry.Subscribe(func([]registry.Pull) { poke(b.pullsCh) }))
	}
	if d.Notify != nil {
		b.unsubs = append(b.unsubs, d.Notify.Subscribe(func([]notify.Notification) { poke(b.toastsCh) }))
	}
	if d.ConfigPath != "" {
		w, err := config.Watch(d.ConfigPath, b.onConfig, d.logger())
		if err != nil {
			d.logger().WithError(err).Warn("config hot reload disabled")
		} else {
			b.watcher = w
		}
	}

	go b.run(ctx)
}

// Close unsubscribes and waits for the forwarding goroutine to exit.
func (b *Bridge) Close() {
	for _, unsub := range b.unsubs {
		unsub()
	}
	b.unsubs = nil
	if b.watcher != nil {
		_ = b.watcher.Close()
		b.watcher = nil
	}
	if b.cancel != nil {
		b.cancel()
		<-b.done
		b.cancel = nil
	}
}

func (b *Bridge) onConfig(cfg *config.Config, err error) {
	b.mu.Lock()
	b.cfg, b.cfgErr = cfg, err
	b.mu.Unlock()
	poke(b.configCh)
}

func (b *Bridge) run(ctx context.Context) {
	defer close(b.done)
	d := b.deps

	for {
		select {
		case <-ctx.Done():
			return

		case <-b.transcriptCh:
			if err := b.limiter.Wait(ctx); err != nil {
				return
			}
			b.send(TranscriptMsg{Snapshot: d.Controller.Transcript().Snapshot()})

		case <-b.stateCh:
			b.send(SessionStateMsg{State: d.Controller.State()})

		case <-b.chatsCh:
			b.mu.Lock()
			id := b.lastChatID
			b.mu.Unlock()
			b.send(ChatsChangedMsg{ChatID: id})

		case <-b.healthCh:
			if st, ok := d.Health.Status(); ok {
				b.send(HealthMsg{Status: st})
			}

		case <-b.pullsCh:
			b.send(PullsMsg{Pulls: d.Registry.Pulls()})

		case <-b.toastsCh:
			b.send(NotificationsMsg{List: d.Notify.List()})

		case <-b.configCh:
			b.mu.Lock()
			msg := ConfigReloadedMsg{Config: b.cfg, Err: b.cfgErr}
			b.mu.Unlock()
			b.send(msg)
		}
	}
}

// poke marks ch as pending without blocking.
func poke(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
