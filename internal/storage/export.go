// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jeranaias/rigchat/internal/util"
)

// ChatExport is the JSON document written by ExportChat.
type ChatExport struct {
	Chat       ChatMeta     `json:"chat"`
	Messages   []MessageRow `json:"messages"`
	ExportedAt time.Time    `json:"exported_at"`
}

// ExportChat loads a chat with up to limit messages.
func (s *Store) ExportChat(ctx context.Context, chatID string, limit int) (*ChatExport, error) {
	meta, err := s.GetChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.ListMessages(ctx, chatID, limit)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []MessageRow{}
	}
	return &ChatExport{Chat: *meta, Messages: msgs, ExportedAt: s.now()}, nil
}

// ExportChatToFile writes the chat as indented JSON to path atomically.
func (s *Store) ExportChatToFile(ctx context.Context, chatID, path string, limit int) error {
	exp, err := s.ExportChat(ctx, chatID, limit)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(exp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal export: %w", err)
	}
	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	return nil
}
