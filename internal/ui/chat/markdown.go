// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

// markdownRenderer renders assistant replies with glamour. The renderer is
// rebuilt when the wrap width or background changes.
type markdownRenderer struct {
	width    int
	dark     bool
	renderer *glamour.TermRenderer
}

// render returns content as terminal markdown wrapped at width. When glamour
// fails, content is returned unchanged and the caller wraps it.
func (r *markdownRenderer) render(content string, width int) (string, bool) {
	if width < 10 {
		return content, false
	}
	dark := lipgloss.HasDarkBackground()
	if r.renderer == nil || r.width != width || r.dark != dark {
		style := "light"
		if dark {
			style = "dark"
		}
		tr, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(style),
			glamour.WithWordWrap(width),
			glamour.WithEmoji(),
			glamour.WithStylesFromJSONBytes([]byte(`{"document":{"margin":0}}`)),
		)
		if err != nil {
			return content, false
		}
		r.renderer, r.width, r.dark = tr, width, dark
	}

	out, err := r.renderer.Render(content)
	if err != nil {
		return content, false
	}
	return strings.Trim(out, "\n"), true
}
