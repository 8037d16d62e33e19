// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for rigchat.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - GenerationConfig: Optional sampling parameters sent with each request
//   - Watcher: Reloads the file on change via fsnotify
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (RIGCHAT_*)
//   - ~/.rigchat/config.toml
//   - ~/.rigchat/config.json
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	timeout := cfg.StreamTimeout()
//
// Dot-notation access backs the `rigchat config get/set` commands:
//
//	cfg.Set("chat.history_limit", "500")
//	v, _ := cfg.Get("generation.temperature")
package config
