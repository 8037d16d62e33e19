// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/jeranaias/rigchat/internal/storage"
	"github.com/jeranaias/rigchat/internal/ui/styles"
	"github.com/jeranaias/rigchat/internal/util"
)

// untitled is shown for chats without a user message yet.
const untitled = "New chat"

// sidebar is the list of saved chats.
type sidebar struct {
	items    []storage.ChatWithFlags
	cursor   int
	activeID string
}

// setItems replaces the list and keeps the cursor on the same chat when it is
// still present.
func (s *sidebar) setItems(items []storage.ChatWithFlags) {
	var selected string
	if it, ok := s.selected(); ok {
		selected = it.ID
	}
	s.items = items
	s.cursor = 0
	for i, it := range items {
		if it.ID == selected {
			s.cursor = i
			break
		}
	}
	s.clamp()
}

// setActive marks the chat shown in the transcript.
func (s *sidebar) setActive(id string) {
	s.activeID = id
}

// selectID moves the cursor to id when present.
func (s *sidebar) selectID(id string) {
	for i, it := range s.items {
		if it.ID == id {
			s.cursor = i
			return
		}
	}
}

func (s *sidebar) move(delta int) {
	s.cursor += delta
	s.clamp()
}

func (s *sidebar) clamp() {
	if s.cursor >= len(s.items) {
		s.cursor = len(s.items) - 1
	}
	if s.cursor < 0 {
		s.cursor = 0
	}
}

func (s *sidebar) selected() (storage.ChatWithFlags, bool) {
	if s.cursor < 0 || s.cursor >= len(s.items) {
		return storage.ChatWithFlags{}, false
	}
	return s.items[s.cursor], true
}

// title is the display title of a chat.
func title(c storage.ChatWithFlags) string {
	t := util.SingleLine(c.Title)
	if t == "" {
		return untitled
	}
	return t
}

// view renders the sidebar as exactly height lines of the given width,
// borders included.
func (s sidebar) view(t *styles.Theme, width, height int, focused bool, now time.Time) string {
	box := t.Sidebar
	if focused {
		box = t.SidebarFocused
	}
	inner := width - box.GetHorizontalFrameSize()
	rows := height - box.GetVerticalFrameSize()
	if inner < 4 || rows < 2 {
		return ""
	}

	lines := []string{t.SidebarTitle.UnsetMarginBottom().Render(fmt.Sprintf("Chats (%d)", len(s.items)))}
	listRows := rows - 1

	if len(s.items) == 0 {
		lines = append(lines, t.SidebarMeta.Render("No saved chats"))
	} else {
		// two lines per chat
		visible := max(listRows/2, 1)
		offset := max(s.cursor-visible+1, 0)
		end := min(offset+visible, len(s.items))
		for i := offset; i < end; i++ {
			it := s.items[i]
			marker := "  "
			if it.ID == s.activeID {
				marker = "> "
			}
			name := marker + runewidth.Truncate(title(it), inner-2, "...")
			name = util.PadWidth(name, inner)

			style := t.SidebarItem
			switch {
			case i == s.cursor && focused:
				style = t.SidebarItemSelected
			case it.ID == s.activeID:
				style = t.SidebarItemActive
			}
			meta := "  " + formatAge(now.Sub(it.UpdatedAt))
			if it.Model != "" {
				meta += " " + it.Model
			}
			lines = append(lines,
				style.Render(name),
				t.SidebarMeta.Render(runewidth.Truncate(meta, inner, "...")),
			)
		}
	}

	for len(lines) < rows {
		lines = append(lines, "")
	}
	return box.Width(width - box.GetHorizontalBorderSize()).
		Height(rows).
		Render(strings.Join(lines[:rows], "\n"))
}

// formatAge renders a duration as a short relative age.
func formatAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}
