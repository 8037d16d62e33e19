// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides chat persistence backed by SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	ErrChatNotFound = errors.New("chat not found")
	ErrEmptyChatID  = errors.New("chat id is required")
	ErrClosed       = errors.New("store is closed")
)

// =============================================================================
// LIMITS
// =============================================================================

const (
	// DefaultChatLimit bounds ListChats when no limit is given.
	DefaultChatLimit = 100

	// DefaultMessageLimit bounds ListMessages when no limit is given.
	DefaultMessageLimit = 500

	// titleLength is the rune length of derived chat titles.
	titleLength = 60
)

// =============================================================================
// TYPES
// =============================================================================

// ChatMeta is a chat record without its messages.
type ChatMeta struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Model        string    `json:"model,omitempty"`
	SystemPrompt string    `json:"system_prompt,omitempty"`
	ParamsJSON   string    `json:"params_json,omitempty"`
}

// ChatWithFlags is a chat record plus sidebar information.
type ChatWithFlags struct {
	ChatMeta
	HasMessages bool   `json:"has_messages"`
	Title       string `json:"title,omitempty"`
}

// MessageRow is a persisted message.
type MessageRow struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chat_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	MetaJSON  string    `json:"meta_json,omitempty"`
}

// =============================================================================
// SCHEMA
// =============================================================================

// Schema creates the chat tables. Timestamps are Unix milliseconds.
const Schema = `
CREATE TABLE IF NOT EXISTS chats (
	id            TEXT PRIMARY KEY,
	created_at    INTEGER NOT NULL,
	updated_at    INTEGER NOT NULL,
	model         TEXT,
	system_prompt TEXT,
	params_json   TEXT
);

CREATE TABLE IF NOT EXISTS messages (
	id         TEXT PRIMARY KEY,
	chat_id    TEXT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
	role       TEXT NOT NULL,
	content    TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	meta_json  TEXT
);

CREATE INDEX IF NOT EXISTS idx_messages_chat ON messages(chat_id, created_at);
CREATE INDEX IF NOT EXISTS idx_chats_updated ON chats(updated_at DESC);
`

// =============================================================================
// STORE
// =============================================================================

// Store is the SQLite persistence gateway for chats and messages.
// It is safe for concurrent use; SQLite serializes writers on one connection.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// DefaultPath returns ~/.rigchat/rigchat.db.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".rigchat", "rigchat.db")
	}
	return filepath.Join(home, ".rigchat", "rigchat.db")
}

// Open opens (creating if needed) the database at path and applies the schema.
// Use ":memory:" for a throwaway database.
func Open(path string) (*Store, error) {
	if path == "" {
		path = DefaultPath()
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	if path != ":memory:" {
		pragmas = append(pragmas, "PRAGMA journal_mode=WAL", "PRAGMA synchronous=NORMAL")
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", p, err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db, path: path, now: time.Now}, nil
}

// Path returns the database location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// CreateChat inserts a new chat and returns its ID.
func (s *Store) CreateChat(ctx context.Context, model, systemPrompt, paramsJSON string) (string, error) {
	id := uuid.NewString()
	now := s.now().UnixMilli()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chats (id, created_at, updated_at, model, system_prompt, params_json)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, now, now, nullString(model), nullString(systemPrompt), nullString(paramsJSON))
	if err != nil {
		return "", fmt.Errorf("failed to create chat: %w", err)
	}
	return id, nil
}

// GetChat returns the chat metadata for id.
func (s *Store) GetChat(ctx context.Context, id string) (*ChatMeta, error) {
	if id == "" {
		return nil, ErrEmptyChatID
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, updated_at, model, system_prompt, params_json
		 FROM chats WHERE id = ?`, id)

	meta, err := scanChat(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrChatNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chat: %w", err)
	}
	return meta, nil
}

// ListChats returns chats ordered by most recent activity.
func (s *Store) ListChats(ctx context.Context, limit int) ([]ChatMeta, error) {
	if limit <= 0 {
		limit = DefaultChatLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, updated_at, model, system_prompt, params_json
		 FROM chats ORDER BY updated_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}
	defer rows.Close()

	var out []ChatMeta
	for rows.Next() {
		meta, err := scanChat(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chat: %w", err)
		}
		out = append(out, *meta)
	}
	return out, rows.Err()
}

// ListChatsWithFlags returns chats with a has-messages flag and a title
// derived from the first user message.
func (s *Store) ListChatsWithFlags(ctx context.Context, limit int) ([]ChatWithFlags, error) {
	if limit <= 0 {
		limit = DefaultChatLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.id, c.created_at, c.updated_at, c.model, c.system_prompt, c.params_json,
		        EXISTS(SELECT 1 FROM messages m WHERE m.chat_id = c.id) AS has_messages,
		        (SELECT m.content FROM messages m
		          WHERE m.chat_id = c.id AND m.role = 'user'
		          ORDER BY m.created_at ASC LIMIT 1) AS first_user
		 FROM chats c
		 ORDER BY c.updated_at DESC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}
	defer rows.Close()

	var out []ChatWithFlags
	for rows.Next() {
		var (
			c                            ChatWithFlags
			created, updated             int64
			model, prompt, params, first sql.NullString
			has                          int64
		)
		if err := rows.Scan(&c.ID, &created, &updated, &model, &prompt, &params, &has, &first); err != nil {
			return nil, fmt.Errorf("failed to scan chat: %w", err)
		}
		c.CreatedAt = time.UnixMilli(created)
		c.UpdatedAt = time.UnixMilli(updated)
		c.Model = model.String
		c.SystemPrompt = prompt.String
		c.ParamsJSON = params.String
		c.HasMessages = has != 0
		c.Title = deriveTitle(first.String)
		out = append(out, c)
	}
	return out, rows.Err()
}

// SetChatModel updates the model recorded for a chat.
func (s *Store) SetChatModel(ctx context.Context, chatID, model string) error {
	if chatID == "" {
		return ErrEmptyChatID
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE chats SET model = ?, updated_at = ? WHERE id = ?`,
		nullString(model), s.now().UnixMilli(), chatID)
	if err != nil {
		return fmt.Errorf("failed to set chat model: %w", err)
	}
	return requireAffected(res)
}

// DeleteChat removes a chat and its messages.
// Returns false when no such chat existed.
func (s *Store) DeleteChat(ctx context.Context, chatID string) (bool, error) {
	if chatID == "" {
		return false, ErrEmptyChatID
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM chats WHERE id = ?`, chatID)
	if err != nil {
		return false, fmt.Errorf("failed to delete chat: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete chat: %w", err)
	}
	return n > 0, nil
}

// AppendMessage stores a message and bumps the chat's updated_at.
func (s *Store) AppendMessage(ctx context.Context, chatID, role, content, metaJSON string) (string, error) {
	if chatID == "" {
		return "", ErrEmptyChatID
	}
	id := "msg_" + uuid.NewString()
	now := s.now().UnixMilli()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE chats SET updated_at = ? WHERE id = ?`, now, chatID)
	if err != nil {
		return "", fmt.Errorf("failed to touch chat: %w", err)
	}
	if err := requireAffected(res); err != nil {
		return "", err
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO messages (id, chat_id, role, content, created_at, meta_json)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, chatID, role, content, now, nullString(metaJSON)); err != nil {
		return "", fmt.Errorf("failed to insert message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit message: %w", err)
	}
	return id, nil
}

// ListMessages returns up to limit messages of a chat in chronological order.
func (s *Store) ListMessages(ctx context.Context, chatID string, limit int) ([]MessageRow, error) {
	if chatID == "" {
		return nil, ErrEmptyChatID
	}
	if limit <= 0 {
		limit = DefaultMessageLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, chat_id, role, content, created_at, meta_json
		 FROM messages WHERE chat_id = ?
		 ORDER BY created_at ASC, rowid ASC
		 LIMIT ?`, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var out []MessageRow
	for rows.Next() {
		var (
			m       MessageRow
			created int64
			meta    sql.NullString
		)
		if err := rows.Scan(&m.ID, &m.ChatID, &m.Role, &m.Content, &created, &meta); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.CreatedAt = time.UnixMilli(created)
		m.MetaJSON = meta.String
		out = append(out, m)
	}
	return out, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

type scanner interface {
	Scan(dest ...any) error
}

func scanChat(r scanner) (*ChatMeta, error) {
	var (
		m                     ChatMeta
		created, updated      int64
		model, prompt, params sql.NullString
	)
	if err := r.Scan(&m.ID, &created, &updated, &model, &prompt, &params); err != nil {
		return nil, err
	}
	m.CreatedAt = time.UnixMilli(created)
	m.UpdatedAt = time.UnixMilli(updated)
	m.Model = model.String
	m.SystemPrompt = prompt.String
	m.ParamsJSON = params.String
	return &m, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrChatNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func deriveTitle(content string) string {
	content = strings.Join(strings.Fields(content), " ")
	runes := []rune(content)
	if len(runes) <= titleLength {
		return content
	}
	return string(runes[:titleLength-3]) + "..."
}
