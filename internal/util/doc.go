// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared by rigchat packages.
//
//   - AtomicWriteFile: crash-safe file writes (config, exports)
//   - TruncateWidth, PadWidth, StringWidth: terminal-width aware text fitting
//   - TruncateRunes, SingleLine: rune-safe previews
package util
