// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chat transcripts and messages.
package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	case RoleSystem:
		return "System"
	default:
		return string(r)
	}
}

// ParseRole converts a stored role name back to a Role.
// Unknown names are returned unchanged so that rows written by newer
// versions still load.
func ParseRole(s string) Role {
	return Role(s)
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message is a single transcript entry.
//
// Messages are treated as immutable once they are visible in a Transcript
// snapshot: every update produces a new *Message.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`

	// Streaming is true while tokens are still being appended.
	Streaming bool `json:"-"`

	// Stats is attached to assistant messages when the server reported them.
	Stats *Stats `json:"stats,omitempty"`
}

// NewMessage creates a new message with a generated ID.
func NewMessage(role Role, content string) *Message {
	return &Message{
		ID:        NewID(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

// Clone returns a shallow copy that can be modified without affecting m.
func (m *Message) Clone() *Message {
	c := *m
	if m.Stats != nil {
		s := *m.Stats
		c.Stats = &s
	}
	return &c
}

// Preview returns a truncated preview of the message content.
// Uses rune-based truncation to handle Unicode correctly.
func (m *Message) Preview(maxLen int) string {
	runes := []rune(m.Content)
	if maxLen < 4 || len(runes) <= maxLen {
		return m.Content
	}
	return string(runes[:maxLen-3]) + "..."
}

// IsEmpty returns true if the message has no content.
func (m *Message) IsEmpty() bool {
	return len(m.Content) == 0
}

// NewID returns a fresh message identifier.
func NewID() string {
	return "msg_" + uuid.NewString()
}

// =============================================================================
// STATISTICS
// =============================================================================

// Stats holds the generation counters the server reports on the final chunk.
type Stats struct {
	PromptTokens     int
	CompletionTokens int
	TotalDuration    time.Duration
	EvalDuration     time.Duration
}

// TokensPerSecond derives generation speed from the eval counters.
func (s *Stats) TokensPerSecond() float64 {
	if s == nil || s.EvalDuration <= 0 {
		return 0
	}
	return float64(s.CompletionTokens) / s.EvalDuration.Seconds()
}

// Format renders the stats as "2.5s | 128 tokens | 51.2 tok/s".
func (s *Stats) Format() string {
	if s == nil {
		return ""
	}
	return fmt.Sprintf("%s | %d tokens | %.1f tok/s",
		formatDuration(s.TotalDuration), s.CompletionTokens, s.TokensPerSecond())
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}
