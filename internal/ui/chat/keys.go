// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the terminal chat interface of rigchat.
//
// This file defines keyboard bindings for the chat interface and the help
// text generated from them.
package chat

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"

	"github.com/jeranaias/rigchat/internal/ui/styles"
)

// =============================================================================
// KEY MAP DEFINITION
// =============================================================================

// KeyMap defines all keyboard bindings for the chat interface.
type KeyMap struct {
	Send        key.Binding
	Newline     key.Binding
	Stop        key.Binding
	Interrupt   key.Binding
	NewChat     key.Binding
	ModelPicker key.Binding
	StartServer key.Binding
	Settings    key.Binding
	FocusNext   key.Binding
	Help        key.Binding
	Quit        key.Binding

	PageUp   key.Binding
	PageDown key.Binding

	// Sidebar
	Up     key.Binding
	Down   key.Binding
	Open   key.Binding
	Delete key.Binding

	// Overlays
	Confirm key.Binding
	Cancel  key.Binding
	Pull    key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Send: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("Enter", "send"),
		),
		Newline: key.NewBinding(
			key.WithKeys("alt+enter", "ctrl+j"),
			key.WithHelp("Alt+Enter", "new line"),
		),
		Stop: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("Esc", "stop reply"),
		),
		Interrupt: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("Ctrl+C", "stop reply, quit when idle"),
		),
		NewChat: key.NewBinding(
			key.WithKeys("ctrl+n"),
			key.WithHelp("Ctrl+N", "new chat"),
		),
		ModelPicker: key.NewBinding(
			key.WithKeys("ctrl+p"),
			key.WithHelp("Ctrl+P", "pick model"),
		),
		StartServer: key.NewBinding(
			key.WithKeys("ctrl+o"),
			key.WithHelp("Ctrl+O", "start Ollama"),
		),
		Settings: key.NewBinding(
			key.WithKeys("ctrl+s"),
			key.WithHelp("Ctrl+S", "settings"),
		),
		FocusNext: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("Tab", "chats / prompt"),
		),
		Help: key.NewBinding(
			key.WithKeys("f1"),
			key.WithHelp("F1", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+q"),
			key.WithHelp("Ctrl+Q", "quit"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("PgUp", "scroll up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("PgDn", "scroll down"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("up/k", "previous"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("down/j", "next"),
		),
		Open: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("Enter", "open chat"),
		),
		Delete: key.NewBinding(
			key.WithKeys("d", "delete"),
			key.WithHelp("d", "delete chat"),
		),
		Confirm: key.NewBinding(
			key.WithKeys("enter", "y"),
			key.WithHelp("Enter", "confirm"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("Esc", "close"),
		),
		Pull: key.NewBinding(
			key.WithKeys("ctrl+d"),
			key.WithHelp("Ctrl+D", "pull typed name"),
		),
	}
}

// =============================================================================
// HELP TEXT
// =============================================================================

// HelpSection is a titled group of bindings.
type HelpSection struct {
	Title    string
	Bindings []key.Binding
}

// HelpSections groups the bindings for the help overlay.
func (k KeyMap) HelpSections() []HelpSection {
	return []HelpSection{
		{Title: "Prompt", Bindings: []key.Binding{k.Send, k.Newline, k.Stop, k.Interrupt, k.PageUp, k.PageDown}},
		{Title: "Chats", Bindings: []key.Binding{k.NewChat, k.FocusNext, k.Up, k.Down, k.Open, k.Delete}},
		{Title: "Models and server", Bindings: []key.Binding{k.ModelPicker, k.Pull, k.StartServer}},
		{Title: "General", Bindings: []key.Binding{k.Settings, k.Help, k.Quit}},
	}
}

// helpLine renders a binding as "key  description" with the key padded to width.
func helpLine(t *styles.Theme, b key.Binding, width int) string {
	h := b.Help()
	pad := width - len(h.Key)
	if pad < 1 {
		pad = 1
	}
	return t.ShortcutKey.Render(h.Key) + strings.Repeat(" ", pad) + t.ShortcutDesc.Render(h.Desc)
}
