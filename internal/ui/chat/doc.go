// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat provides the terminal chat interface of rigchat.

The package is a Bubble Tea program on top of the session controller. The
controller owns the transcript and the live stream; this package only renders
what it publishes and turns key presses into controller operations.

# Key Components

## Model (model.go, update.go, view.go)

The Model is the Bubble Tea model:
  - Header with the active model and chat title
  - Sidebar of saved chats, re-listed whenever a chat is written
  - Viewport with the transcript, assistant replies rendered as markdown
  - Textarea for the prompt
  - Status bar with server state, stream phase, pulls and token rate
  - Toasts from the notification center

## Bridge (bridge.go)

Controller, transcript, health, registry and notification listeners can run
while their owners hold a lock, so they never call into the program. They
signal a one-slot channel and a bridge goroutine forwards the latest state
with Program.Send, limited to a fixed frame rate while tokens stream in.

## Overlays

  - Model picker (picker.go): fuzzy filter over local models, pull by name
  - Settings (settings.go): edit config keys, validated and saved to disk
  - Help: key bindings from keys.go

# Usage

	err := chat.Run(ctx, chat.Deps{
	    Config:     cfg,
	    ConfigPath: path,
	    Controller: controller,
	    Bus:        bus,
	    Registry:   reg,
	    Notify:     center,
	    Health:     monitor,
	    Setup:      setup.NewManager(client, log),
	    Log:        log,
	})
*/
package chat
