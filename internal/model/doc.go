// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chat transcripts and messages.
//
// # Key Types
//
//   - Message: Single transcript entry with role, content and streaming flag
//   - Transcript: Ordered, copy-on-write message list with subscribers
//   - Snapshot: Immutable view of a transcript at one version
//   - Role: Message role enumeration (user, assistant, system)
//
// # Usage
//
//	t := model.NewTranscript(log)
//	id := t.Append(model.RoleAssistant, "", true)
//	t.ReplaceContent(id, "Hello", true)
//	t.ReplaceContent(id, "Hello!", false)
package model
