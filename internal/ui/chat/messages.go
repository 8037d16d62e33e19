// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the terminal chat interface of rigchat.
//
// This file defines the Bubble Tea message types used by the chat interface.
// Messages are organized into the following categories:
//   - Bridge: state pushed from the controller and background services
//   - Operations: results of controller calls run as commands
//   - Overlays: model list, pulls and settings results
package chat

import (
	"github.com/jeranaias/rigchat/internal/config"
	"github.com/jeranaias/rigchat/internal/health"
	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/notify"
	"github.com/jeranaias/rigchat/internal/ollama"
	"github.com/jeranaias/rigchat/internal/registry"
	"github.com/jeranaias/rigchat/internal/session"
	"github.com/jeranaias/rigchat/internal/setup"
	"github.com/jeranaias/rigchat/internal/storage"
)

// =============================================================================
// BRIDGE MESSAGES
// =============================================================================

// TranscriptMsg carries the latest transcript snapshot.
type TranscriptMsg struct {
	Snapshot model.Snapshot
}

// SessionStateMsg carries the controller state after a transition.
type SessionStateMsg struct {
	State session.State
}

// ChatsChangedMsg signals that a chat record was written.
type ChatsChangedMsg struct {
	ChatID string
}

// HealthMsg carries a changed server status.
type HealthMsg struct {
	Status health.Status
}

// PullsMsg carries the current model downloads.
type PullsMsg struct {
	Pulls []registry.Pull
}

// NotificationsMsg carries the visible notifications.
type NotificationsMsg struct {
	List []notify.Notification
}

// ConfigReloadedMsg carries a config file change. Err is set when the new
// file could not be loaded; Config is nil then.
type ConfigReloadedMsg struct {
	Config *config.Config
	Err    error
}

// =============================================================================
// OPERATION RESULTS
// =============================================================================

// ChatsLoadedMsg is the result of listing chats for the sidebar.
type ChatsLoadedMsg struct {
	Chats []storage.ChatWithFlags
	Err   error
}

// SendDoneMsg reports whether a prompt was accepted.
type SendDoneMsg struct {
	Err error
}

// ChatOpenedMsg reports the result of loading a saved chat.
type ChatOpenedMsg struct {
	ChatID string
	Err    error
}

// ChatClearedMsg reports that an unsaved chat was started.
type ChatClearedMsg struct{}

// ChatDeletedMsg reports the result of deleting a chat.
type ChatDeletedMsg struct {
	ChatID  string
	Deleted bool
	Err     error
}

// SetupDoneMsg reports the result of starting the local server.
type SetupDoneMsg struct {
	Result setup.ActionResult
}

// =============================================================================
// OVERLAY MESSAGES
// =============================================================================

// ModelsLoadedMsg carries the local models for the picker.
type ModelsLoadedMsg struct {
	Models []ollama.ModelInfo
	Err    error
}

// PullDoneMsg reports the end of a model download.
type PullDoneMsg struct {
	Name string
	Err  error
}

// SettingSavedMsg reports the result of saving one setting. Config is the
// saved configuration when Err is nil.
type SettingSavedMsg struct {
	Key    string
	Config *config.Config
	Err    error
}
