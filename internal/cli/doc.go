// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides command-line parsing and the non-TUI commands of rigchat.
//
// # Key Types
//
//   - Command: Enumeration of the top-level commands
//   - Args: Parsed global and command-specific flags
//   - App: The wired services a command runs against (config, store, client, controller)
//   - JSONResponse: The envelope printed by --json
//
// # Usage
//
//	cmd, args := cli.Parse()
//	if cmd == cli.CmdTUI {
//	    // start the terminal UI
//	}
//	cli.Exit(cli.Run(cmd, args), args.JSON)
//
// # Commands Overview
//
//   - chat: Line-mode chat with slash commands
//   - ask: Single question, streamed or not
//   - chats: List, show, delete and export saved chats
//   - models: List, pull, delete and show local models
//   - health: Ollama server reachability
//   - setup: Detect, start or stop a local Ollama
//   - config: Show, get and set configuration
//
// Most commands support --json. Exit codes are listed in errors.go.
package cli
