// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides UI components for the rigchat TUI.
//
// This file renders notification toasts. Toasts appear in the bottom-right
// corner and auto-dismiss, so background problems such as a failed save never
// block the chat.
package components

import (
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/rigchat/internal/notify"
	"github.com/jeranaias/rigchat/internal/ui/styles"
)

// MaxVisibleToasts caps how many toasts are drawn at once.
const MaxVisibleToasts = 3

// =============================================================================
// TOAST MESSAGES
// =============================================================================

// ToastTickMsg is sent periodically so countdowns stay current.
type ToastTickMsg struct {
	Time time.Time
}

// ToastTickCmd returns a command that ticks toasts every second.
func ToastTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return ToastTickMsg{Time: t}
	})
}

// =============================================================================
// TOAST RENDERING
// =============================================================================

// RenderToast renders a single notification.
func RenderToast(theme *styles.Theme, n notify.Notification, width int, now time.Time) string {
	maxWidth := 60
	if width > 0 && width-8 < maxWidth {
		maxWidth = width - 8
	}
	if maxWidth < 30 {
		maxWidth = 30
	}

	box, icon, color := toastStyle(theme, n.Kind)

	title := lipgloss.NewStyle().Foreground(color).Bold(true).Render(icon + " " + n.Title)
	content := title
	if n.Message != "" {
		content += "\n" + wrapToastText(n.Message, maxWidth-6)
	}

	var hints []string
	if n.Sticky() {
		hints = append(hints, "[x] dismiss")
	} else if secs := int(remaining(n, now).Seconds()); secs > 0 {
		hints = append(hints, strconv.Itoa(secs)+"s")
	}
	if len(hints) > 0 {
		content += "\n" + theme.Muted.Italic(true).Render(strings.Join(hints, "  "))
	}

	return box.MaxWidth(maxWidth).Render(content)
}

// RenderToastStack renders the newest notifications stacked vertically,
// newest at the bottom.
func RenderToastStack(theme *styles.Theme, list []notify.Notification, width int, now time.Time) string {
	if len(list) == 0 {
		return ""
	}
	if len(list) > MaxVisibleToasts {
		list = list[len(list)-MaxVisibleToasts:]
	}

	rendered := make([]string, 0, len(list))
	for _, n := range list {
		rendered = append(rendered, RenderToast(theme, n, width, now))
	}
	return lipgloss.JoinVertical(lipgloss.Right, rendered...)
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func toastStyle(theme *styles.Theme, kind notify.Kind) (lipgloss.Style, string, lipgloss.AdaptiveColor) {
	switch kind {
	case notify.KindError:
		return theme.ToastError, styles.StatusIndicators.Error, styles.Rose
	case notify.KindWarning:
		return theme.ToastWarning, styles.StatusIndicators.Warning, styles.Amber
	case notify.KindSuccess:
		return theme.ToastSuccess, styles.StatusIndicators.Success, styles.Emerald
	default:
		return theme.ToastInfo, styles.StatusIndicators.Info, styles.Cyan
	}
}

func remaining(n notify.Notification, now time.Time) time.Duration {
	left := n.Duration - now.Sub(n.CreatedAt)
	if left < 0 {
		return 0
	}
	return left
}

// wrapToastText performs simple word wrapping for toast messages.
func wrapToastText(text string, maxWidth int) string {
	if maxWidth <= 0 {
		return text
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return text
	}

	var lines []string
	var line strings.Builder
	for _, word := range words {
		switch {
		case line.Len() == 0:
			line.WriteString(word)
		case line.Len()+1+len(word) <= maxWidth:
			line.WriteString(" ")
			line.WriteString(word)
		default:
			lines = append(lines, line.String())
			line.Reset()
			line.WriteString(word)
		}
	}
	if line.Len() > 0 {
		lines = append(lines, line.String())
	}
	return strings.Join(lines, "\n")
}
