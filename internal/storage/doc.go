// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides chat persistence for rigchat.
//
// Chats and their messages live in a single SQLite database opened through
// the pure Go modernc.org/sqlite driver.
//
// # Key Types
//
//   - Store: Persistence gateway for chats and messages
//   - ChatMeta, ChatWithFlags: Chat records for listing
//   - MessageRow: A persisted message
//
// # Usage
//
//	store, err := storage.Open(storage.DefaultPath())
//	chatID, err := store.CreateChat(ctx, "llama3.2", "", "")
//	_, err = store.AppendMessage(ctx, chatID, "user", "hi", "")
//	rows, err := store.ListMessages(ctx, chatID, 1000)
//
// # Storage Location
//
// The database is stored at ~/.rigchat/rigchat.db by default.
package storage
