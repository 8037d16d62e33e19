// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package registry tracks installed models and in-flight model pulls.
package registry

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/jeranaias/rigchat/internal/ollama"
)

// ErrPullInProgress is returned when the same model is already being pulled.
var ErrPullInProgress = errors.New("pull already in progress")

// Progress is a completed/total byte pair.
type Progress struct {
	Completed int64
	Total     int64
}

// Pull is the state of one model download.
type Pull struct {
	Name     string
	Status   string
	Progress *Progress
	Err      error
}

// Percent returns floor(completed/total*100) clamped to 0..100, or 0 when
// total is unknown. Servers can report completed past total.
func (p Pull) Percent() int {
	if p.Progress == nil || p.Progress.Total <= 0 {
		return 0
	}
	pct := p.Progress.Completed * 100 / p.Progress.Total
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return int(pct)
}

// Failed reports whether the pull ended with an error.
func (p Pull) Failed() bool {
	return p.Err != nil
}

// Backend is the subset of the Ollama client the registry needs.
type Backend interface {
	ListModels(ctx context.Context) ([]ollama.ModelInfo, error)
	ShowModel(ctx context.Context, name string) (*ollama.ShowModelResponse, error)
	DeleteModel(ctx context.Context, name string) error
	PullModel(ctx context.Context, name string, callback ollama.PullCallback) error
}

// Registry wraps model management and keeps a live table of pulls.
// It is safe for concurrent use.
type Registry struct {
	backend Backend
	log     logrus.FieldLogger

	mu        sync.RWMutex
	pulls     map[string]Pull
	listeners map[int]func([]Pull)
	nextID    int
}

// New creates a Registry.
func New(backend Backend, log logrus.FieldLogger) *Registry {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Registry{
		backend:   backend,
		log:       log,
		pulls:     make(map[string]Pull),
		listeners: make(map[int]func([]Pull)),
	}
}

// Models lists installed models sorted by name.
func (r *Registry) Models(ctx context.Context) ([]ollama.ModelInfo, error) {
	models, err := r.backend.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(models, func(i, j int) bool { return models[i].Name < models[j].Name })
	return models, nil
}

// Show returns model details.
func (r *Registry) Show(ctx context.Context, name string) (*ollama.ShowModelResponse, error) {
	return r.backend.ShowModel(ctx, name)
}

// Delete removes an installed model.
func (r *Registry) Delete(ctx context.Context, name string) error {
	if err := r.backend.DeleteModel(ctx, name); err != nil {
		return err
	}
	r.log.WithField("model", name).Info("model deleted")
	return nil
}

// Pull downloads name, updating the pull table as progress arrives.
// On success the entry is removed; on failure it stays with its error.
func (r *Registry) Pull(ctx context.Context, name string) error {
	r.mu.Lock()
	if p, ok := r.pulls[name]; ok && !p.Failed() {
		r.mu.Unlock()
		return ErrPullInProgress
	}
	r.pulls[name] = Pull{Name: name, Status: "starting"}
	r.mu.Unlock()
	r.notify()

	log := r.log.WithField("model", name)
	log.Info("pull started")

	err := r.backend.PullModel(ctx, name, func(p ollama.PullProgress) {
		r.update(name, p)
	})

	r.mu.Lock()
	if err != nil {
		cur := r.pulls[name]
		cur.Status = "error: " + err.Error()
		cur.Err = err
		r.pulls[name] = cur
	} else {
		delete(r.pulls, name)
	}
	r.mu.Unlock()
	r.notify()

	if err != nil {
		log.WithError(err).Warn("pull failed")
		return err
	}
	log.Info("pull finished")
	return nil
}

// Dismiss removes a failed pull from the table.
func (r *Registry) Dismiss(name string) {
	r.mu.Lock()
	_, ok := r.pulls[name]
	delete(r.pulls, name)
	r.mu.Unlock()
	if ok {
		r.notify()
	}
}

// Pulls returns the current pulls sorted by name.
func (r *Registry) Pulls() []Pull {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked()
}

// Subscribe registers fn to receive the pull table after every change.
func (r *Registry) Subscribe(fn func([]Pull)) func() {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.listeners[id] = fn
	r.mu.Unlock()
	return func() {
		r.mu.Lock()
		delete(r.listeners, id)
		r.mu.Unlock()
	}
}

func (r *Registry) update(name string, p ollama.PullProgress) {
	r.mu.Lock()
	cur := r.pulls[name]
	cur.Name = name
	cur.Status = p.Status
	if p.Total > 0 {
		cur.Progress = &Progress{Completed: p.Completed, Total: p.Total}
	}
	r.pulls[name] = cur
	r.mu.Unlock()
	r.notify()
}

func (r *Registry) notify() {
	r.mu.RLock()
	snap := r.snapshotLocked()
	fns := make([]func([]Pull), 0, len(r.listeners))
	for _, fn := range r.listeners {
		fns = append(fns, fn)
	}
	r.mu.RUnlock()
	for _, fn := range fns {
		fn(snap)
	}
}

func (r *Registry) snapshotLocked() []Pull {
	out := make([]Pull, 0, len(r.pulls))
	for _, p := range r.pulls {
		if p.Progress != nil {
			prog := *p.Progress
			p.Progress = &prog
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
