// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package health polls the Ollama server and reports connectivity changes.
package health

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jeranaias/rigchat/internal/ollama"
)

// DefaultInterval is how often the server is probed.
const DefaultInterval = 30 * time.Second

// DefaultTimeout bounds a single probe.
const DefaultTimeout = 5 * time.Second

// Prober checks server reachability. *ollama.Client implements it.
type Prober interface {
	CheckHealth(ctx context.Context) ollama.HealthStatus
}

// Status is the last observed server state.
type Status struct {
	ollama.HealthStatus
	CheckedAt time.Time
}

// Listener is called when connectivity or the error text changes.
type Listener func(Status)

// Monitor polls a Prober on an interval.
type Monitor struct {
	prober   Prober
	interval time.Duration
	timeout  time.Duration
	log      logrus.FieldLogger

	mu        sync.RWMutex
	status    Status
	checked   bool
	listeners map[int]Listener
	nextID    int

	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithInterval sets the polling interval.
func WithInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithTimeout sets the per-probe timeout.
func WithTimeout(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(m *Monitor) {
		if log != nil {
			m.log = log
		}
	}
}

// NewMonitor creates a stopped monitor.
func NewMonitor(prober Prober, opts ...Option) *Monitor {
	l := logrus.New()
	l.SetOutput(io.Discard)
	m := &Monitor{
		prober:    prober,
		interval:  DefaultInterval,
		timeout:   DefaultTimeout,
		log:       l,
		listeners: make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start probes once immediately, then on every interval until Stop or ctx is done.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.cancel != nil {
		m.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	done := m.done
	m.mu.Unlock()

	go m.poll(ctx, done)
}

// Stop ends polling and waits for the loop to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Status returns the last observed status and whether any probe has run.
func (m *Monitor) Status() (Status, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status, m.checked
}

// Subscribe registers fn for change notifications. fn must not block.
func (m *Monitor) Subscribe(fn Listener) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

// Check probes now and records the result.
func (m *Monitor) Check(ctx context.Context) Status {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	hs := m.prober.CheckHealth(ctx)
	cancel()

	st := Status{HealthStatus: hs, CheckedAt: time.Now()}

	m.mu.Lock()
	changed := !m.checked || m.status.Connected != hs.Connected || m.status.Error != hs.Error
	m.status = st
	m.checked = true
	var listeners []Listener
	if changed {
		for _, fn := range m.listeners {
			listeners = append(listeners, fn)
		}
	}
	m.mu.Unlock()

	if changed {
		entry := m.log.WithFields(logrus.Fields{"url": hs.URL, "connected": hs.Connected})
		if hs.Connected {
			entry.Info("ollama reachable")
		} else {
			entry.WithField("error", hs.Error).Warn("ollama unreachable")
		}
	}
	for _, fn := range listeners {
		fn(st)
	}
	return st
}

func (m *Monitor) poll(ctx context.Context, done chan struct{}) {
	defer close(done)

	m.Check(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}
