// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// fakeClock makes created_at/updated_at strictly increasing.
func fakeClock(store *Store) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	n := 0
	store.now = func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
}

// =============================================================================
// CHAT TESTS
// =============================================================================

func TestStore_CreateAndGetChat(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.CreateChat(ctx, "llama3.2", "be brief", `{"temperature":0.2}`)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	meta, err := store.GetChat(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "llama3.2", meta.Model)
	assert.Equal(t, "be brief", meta.SystemPrompt)
	assert.Equal(t, `{"temperature":0.2}`, meta.ParamsJSON)
	assert.Equal(t, meta.CreatedAt, meta.UpdatedAt)
}

func TestStore_GetChatNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetChat(context.Background(), "missing")
	if !errors.Is(err, ErrChatNotFound) {
		t.Errorf("GetChat error = %v, want ErrChatNotFound", err)
	}
	_, err = store.GetChat(context.Background(), "")
	if !errors.Is(err, ErrEmptyChatID) {
		t.Errorf("GetChat error = %v, want ErrEmptyChatID", err)
	}
}

func TestStore_SetChatModel(t *testing.T) {
	store := newTestStore(t)
	fakeClock(store)
	ctx := context.Background()

	id, err := store.CreateChat(ctx, "a", "", "")
	require.NoError(t, err)
	require.NoError(t, store.SetChatModel(ctx, id, "b"))

	meta, err := store.GetChat(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "b", meta.Model)
	assert.True(t, meta.UpdatedAt.After(meta.CreatedAt))

	err = store.SetChatModel(ctx, "missing", "b")
	assert.ErrorIs(t, err, ErrChatNotFound)
}

func TestStore_DeleteChat(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.CreateChat(ctx, "m", "", "")
	require.NoError(t, err)
	_, err = store.AppendMessage(ctx, id, "user", "hi", "")
	require.NoError(t, err)

	ok, err := store.DeleteChat(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.DeleteChat(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok, "second delete should report nothing removed")

	msgs, err := store.ListMessages(ctx, id, 0)
	require.NoError(t, err)
	assert.Empty(t, msgs, "messages should cascade")
}

// =============================================================================
// MESSAGE TESTS
// =============================================================================

func TestStore_AppendAndListMessages(t *testing.T) {
	store := newTestStore(t)
	fakeClock(store)
	ctx := context.Background()

	id, err := store.CreateChat(ctx, "m", "", "")
	require.NoError(t, err)

	for _, m := range []struct{ role, content string }{
		{"user", "hi"}, {"assistant", "hello"}, {"user", "bye"},
	} {
		_, err := store.AppendMessage(ctx, id, m.role, m.content, "")
		require.NoError(t, err)
	}

	msgs, err := store.ListMessages(ctx, id, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "hi", msgs[0].Content)
	assert.Equal(t, "assistant", msgs[1].Role)
	assert.Equal(t, "bye", msgs[2].Content)

	limited, err := store.ListMessages(ctx, id, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	meta, err := store.GetChat(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, msgs[2].CreatedAt, meta.UpdatedAt, "append should touch updated_at")
}

func TestStore_AppendToMissingChat(t *testing.T) {
	store := newTestStore(t)

	_, err := store.AppendMessage(context.Background(), "missing", "user", "hi", "")
	assert.ErrorIs(t, err, ErrChatNotFound)
}

func TestStore_ListChatsWithFlags(t *testing.T) {
	store := newTestStore(t)
	fakeClock(store)
	ctx := context.Background()

	empty, err := store.CreateChat(ctx, "m", "", "")
	require.NoError(t, err)
	full, err := store.CreateChat(ctx, "m", "", "")
	require.NoError(t, err)
	_, err = store.AppendMessage(ctx, full, "user", "what is\nthe answer", "")
	require.NoError(t, err)

	chats, err := store.ListChatsWithFlags(ctx, 0)
	require.NoError(t, err)
	require.Len(t, chats, 2)

	// most recently updated first
	assert.Equal(t, full, chats[0].ID)
	assert.True(t, chats[0].HasMessages)
	assert.Equal(t, "what is the answer", chats[0].Title)
	assert.Equal(t, empty, chats[1].ID)
	assert.False(t, chats[1].HasMessages)
	assert.Empty(t, chats[1].Title)

	plain, err := store.ListChats(ctx, 1)
	require.NoError(t, err)
	require.Len(t, plain, 1)
	assert.Equal(t, full, plain[0].ID)
}

func TestStore_ExportChatToFile(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.CreateChat(ctx, "m", "", "")
	require.NoError(t, err)
	_, err = store.AppendMessage(ctx, id, "user", "hi", "")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "out", "chat.json")
	require.NoError(t, store.ExportChatToFile(ctx, id, path, 0))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var exp ChatExport
	require.NoError(t, json.Unmarshal(data, &exp))
	assert.Equal(t, id, exp.Chat.ID)
	require.Len(t, exp.Messages, 1)
	assert.Equal(t, "hi", exp.Messages[0].Content)

	err = store.ExportChatToFile(ctx, "missing", path, 0)
	assert.ErrorIs(t, err, ErrChatNotFound)
}

func TestDeriveTitle(t *testing.T) {
	long := "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	got := deriveTitle(long)
	if len([]rune(got)) != titleLength {
		t.Errorf("title length = %d, want %d", len([]rune(got)), titleLength)
	}
}
