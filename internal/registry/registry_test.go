// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/rigchat/internal/ollama"
)

type fakeBackend struct {
	models   []ollama.ModelInfo
	deleted  []string
	progress []ollama.PullProgress
	pullErr  error
	during   func()
}

func (f *fakeBackend) ListModels(context.Context) ([]ollama.ModelInfo, error) {
	return f.models, nil
}

func (f *fakeBackend) ShowModel(_ context.Context, name string) (*ollama.ShowModelResponse, error) {
	return &ollama.ShowModelResponse{Template: name}, nil
}

func (f *fakeBackend) DeleteModel(_ context.Context, name string) error {
	f.deleted = append(f.deleted, name)
	return nil
}

func (f *fakeBackend) PullModel(_ context.Context, _ string, cb ollama.PullCallback) error {
	for _, p := range f.progress {
		cb(p)
	}
	if f.during != nil {
		f.during()
	}
	return f.pullErr
}

func TestPull_Percent(t *testing.T) {
	tests := []struct {
		name string
		pull Pull
		want int
	}{
		{"no progress", Pull{}, 0},
		{"zero total", Pull{Progress: &Progress{Completed: 10, Total: 0}}, 0},
		{"half", Pull{Progress: &Progress{Completed: 50, Total: 100}}, 50},
		{"floors", Pull{Progress: &Progress{Completed: 999, Total: 1000}}, 99},
		{"done", Pull{Progress: &Progress{Completed: 1000, Total: 1000}}, 100},
		{"overshoot clamps", Pull{Progress: &Progress{Completed: 2000, Total: 1000}}, 100},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.pull.Percent())
		})
	}
}

func TestRegistry_ModelsSorted(t *testing.T) {
	r := New(&fakeBackend{models: []ollama.ModelInfo{{Name: "b"}, {Name: "a"}}}, nil)

	models, err := r.Models(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a", models[0].Name)
	assert.Equal(t, "b", models[1].Name)
}

func TestRegistry_PullSuccessRemovesEntry(t *testing.T) {
	fb := &fakeBackend{progress: []ollama.PullProgress{
		{Status: "pulling manifest"},
		{Status: "downloading", Total: 200, Completed: 50},
		{Status: "success"},
	}}
	r := New(fb, nil)

	var mid []Pull
	fb.during = func() { mid = r.Pulls() }

	var notifications int
	unsub := r.Subscribe(func([]Pull) { notifications++ })
	defer unsub()

	require.NoError(t, r.Pull(context.Background(), "llama3.2"))

	require.Len(t, mid, 1)
	assert.Equal(t, "success", mid[0].Status)
	assert.Equal(t, 25, mid[0].Percent(), "last known progress is kept")
	assert.Empty(t, r.Pulls())
	assert.Equal(t, 5, notifications)
}

func TestRegistry_PullFailureKeepsEntry(t *testing.T) {
	fb := &fakeBackend{pullErr: errors.New("boom")}
	r := New(fb, nil)

	err := r.Pull(context.Background(), "bad")
	require.Error(t, err)

	pulls := r.Pulls()
	require.Len(t, pulls, 1)
	assert.True(t, pulls[0].Failed())
	assert.Equal(t, "error: boom", pulls[0].Status)

	// a failed pull may be retried
	fb.pullErr = nil
	require.NoError(t, r.Pull(context.Background(), "bad"))
	assert.Empty(t, r.Pulls())
}

func TestRegistry_DuplicatePull(t *testing.T) {
	fb := &fakeBackend{}
	r := New(fb, nil)

	var dupErr error
	fb.during = func() { dupErr = r.Pull(context.Background(), "m") }

	require.NoError(t, r.Pull(context.Background(), "m"))
	assert.ErrorIs(t, dupErr, ErrPullInProgress)
}

func TestRegistry_Dismiss(t *testing.T) {
	r := New(&fakeBackend{pullErr: errors.New("x")}, nil)
	_ = r.Pull(context.Background(), "m")
	r.Dismiss("m")
	assert.Empty(t, r.Pulls())
}

func TestRegistry_Delete(t *testing.T) {
	fb := &fakeBackend{}
	r := New(fb, nil)
	require.NoError(t, r.Delete(context.Background(), "m"))
	assert.Equal(t, []string{"m"}, fb.deleted)
}
