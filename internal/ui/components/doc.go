// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides the reusable pieces of the rigchat TUI.
//
//   - StatusBar: server health, model, session phase, pulls, last reply stats
//   - RenderToastStack: notification toasts from the notify center
//   - FuzzyMatch, FuzzyFilter: filtering for the model picker and chat list
//   - MatchErrorHint: next steps for common Ollama failures
package components
