// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling system for the rigchat TUI.

# Color System (colors.go)

All colors are Lip Gloss AdaptiveColor values so they follow the terminal
background. ApplyMode forces light or dark from the ui.theme setting.

  - Purple - assistant messages and selections
  - Cyan - brand, user messages, focus
  - Emerald - server connected, success
  - Amber - warnings, pulls in progress
  - Rose - errors, server down

# Theme System (theme.go)

	theme := styles.NewTheme()
	theme.SetSize(width, height)
	sidebar := theme.SidebarWidth() // 0 in narrow layouts

# Animation System (animations.go)

Spinner frame sets convert to bubbles spinners with Bubble(). RenderProgressBar
draws the ASCII bar used for model pulls.
*/
package styles
