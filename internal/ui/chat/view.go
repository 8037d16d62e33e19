// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/session"
	"github.com/jeranaias/rigchat/internal/ui/components"
	"github.com/jeranaias/rigchat/internal/ui/styles"
)

// streamCursor trails the text of a reply that is still streaming.
const streamCursor = "_"

// View renders the chat screen.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Loading..."
	}

	switch m.overlay {
	case overlayModels:
		return m.place(m.picker.view(m.theme, m.width, m.pulls))
	case overlaySettings:
		return m.place(m.settings.view(m.theme, m.width))
	case overlayHelp:
		return m.place(m.renderHelp())
	case overlayConfirmDelete:
		return m.place(m.renderConfirmDelete())
	}

	main := lipgloss.JoinVertical(lipgloss.Left, m.viewport.View(), m.renderInput())
	body := main
	if sw := m.theme.SidebarWidth(); sw > 0 {
		side := m.chats.view(m.theme, sw, lipgloss.Height(main), m.focus == focusSidebar, m.now())
		body = lipgloss.JoinHorizontal(lipgloss.Top, side, main)
	}

	base := lipgloss.JoinVertical(lipgloss.Left, m.renderHeader(), body, m.status.View())
	if len(m.toasts) > 0 {
		stack := components.RenderToastStack(m.theme, m.toasts, m.width, m.now())
		base = overlayToasts(base, stack, m.width, m.height)
	}
	return base
}

// place centers an overlay box on the screen.
func (m Model) place(box string) string {
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

// =============================================================================
// HEADER AND INPUT
// =============================================================================

func (m Model) renderHeader() string {
	t := m.theme
	name := m.deps.Controller.Model()
	if name == "" {
		name = "no model"
	}

	chatTitle := "unsaved chat"
	if id := m.deps.Controller.ChatID(); id != "" {
		chatTitle = untitled
		for _, it := range m.chats.items {
			if it.ID == id {
				chatTitle = title(it)
				break
			}
		}
	}

	line := t.HeaderBrand.Render("rigchat") + "  " +
		t.HeaderModel.Render(name) + "  " +
		t.HeaderChat.Render(chatTitle)
	inner := max(m.width-t.Header.GetHorizontalFrameSize(), 1)
	return t.Header.Width(m.width).Render(ansi.Truncate(line, inner, "..."))
}

func (m Model) renderInput() string {
	box := m.theme.InputContainer
	if m.focus == focusInput {
		box = m.theme.InputContainerFocused
	}
	width := m.viewport.Width - box.GetHorizontalBorderSize()
	return box.Width(width).Render(m.input.View())
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

// refreshViewport re-renders the transcript into the viewport and keeps it
// pinned to the bottom while following.
func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}
	if !m.follow && m.viewport.AtBottom() {
		m.follow = true
	}
	m.viewport.SetContent(m.renderTranscript(m.viewport.Width))
	if m.follow {
		m.viewport.GotoBottom()
	}
}

func (m *Model) renderTranscript(width int) string {
	msgs := m.snapshot.Messages
	if len(msgs) == 0 {
		return m.renderWelcome(width)
	}

	parts := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		parts = append(parts, m.renderMessage(msg, width))
	}
	return strings.Join(parts, "\n\n")
}

// renderMessage renders one message, reusing the last rendering of the same
// message version. The waiting spinner is redrawn every frame.
func (m *Model) renderMessage(msg *model.Message, width int) string {
	waiting := msg.Streaming && msg.Content == ""
	stopped := m.state.Session.TargetMessageID == msg.ID && m.state.Session.Status == session.StatusCancelled
	if c, ok := m.renders[msg.ID]; ok && c.msg == msg && c.width == width && !waiting && !stopped {
		return c.out
	}

	t := m.theme
	var out string
	switch msg.Role {
	case model.RoleUser:
		out = t.UserLabel.Render(msg.Role.DisplayName()) + "\n" +
			t.UserBubble.Width(width-t.UserBubble.GetHorizontalBorderSize()).Render(msg.Content)
	case model.RoleAssistant:
		out = t.AssistantLabel.Render(msg.Role.DisplayName()) + "\n" +
			t.AssistantBody.Render(m.renderAssistantBody(msg, width-t.AssistantBody.GetHorizontalFrameSize()))
		if stopped {
			out += "\n" + t.Muted.Render("[stopped]")
		}
		if m.cfg.UI.ShowStats && msg.Stats != nil && !msg.Streaming {
			out += "\n" + t.MessageStats.Render(msg.Stats.Format())
		}
	default:
		out = t.SystemLabel.Render(msg.Role.DisplayName()) + "\n" +
			t.SystemBubble.Width(width-t.SystemBubble.GetHorizontalBorderSize()).Render(msg.Content)
	}

	if !waiting && !stopped {
		m.renders[msg.ID] = renderedMessage{msg: msg, width: width, out: out}
	}
	return out
}

func (m *Model) renderAssistantBody(msg *model.Message, width int) string {
	t := m.theme
	wrap := lipgloss.NewStyle().Width(max(width, 1))

	switch {
	case msg.Streaming && msg.Content == "":
		return m.spinner.View() + " " + t.Muted.Render("Waiting for model...")

	case strings.HasPrefix(msg.Content, session.ErrorPrefix):
		out := t.MessageError.Width(max(width, 1)).Render(msg.Content)
		if hint, ok := components.MatchErrorHint(msg.Content); ok {
			out += "\n" + t.Muted.Width(max(width, 1)).Render(hint.Title+": "+hint.Suggestion)
		}
		return out

	case msg.Streaming:
		return wrap.Render(msg.Content) + t.StreamCursor.Render(streamCursor)
	}

	if m.cfg.UI.Markdown {
		if out, ok := m.markdown.render(msg.Content, width); ok {
			return out
		}
	}
	return wrap.Render(msg.Content)
}

func (m Model) renderWelcome(width int) string {
	t := m.theme
	lines := []string{
		t.HeaderBrand.Render("rigchat"),
		"",
		"Type a message and press Enter.",
	}
	if m.deps.Controller.Model() == "" {
		lines = append(lines, t.StatusPending.Render(styles.StatusIndicators.Warning+" No model selected. Press Ctrl+P to pick one."))
	}
	if m.serverKnown && !m.server.Connected {
		lines = append(lines, t.StatusOffline.Render(styles.StatusIndicators.Error+" Ollama is not reachable at "+m.server.URL+". Press Ctrl+O to start it."))
	}
	lines = append(lines, "", t.Muted.Render("Tab chats  Ctrl+N new chat  Ctrl+S settings  F1 help"))
	return t.Welcome.Width(max(width, 1)).Render(strings.Join(lines, "\n"))
}

// =============================================================================
// OVERLAYS
// =============================================================================

func (m Model) renderHelp() string {
	t := m.theme
	const keyWidth = 12

	var b strings.Builder
	b.WriteString(t.OverlayTitle.Render("Keys"))
	for _, sec := range m.keys.HelpSections() {
		b.WriteString("\n\n")
		b.WriteString(t.SidebarTitle.UnsetMarginBottom().Render(sec.Title))
		for _, kb := range sec.Bindings {
			b.WriteString("\n  ")
			b.WriteString(helpLine(t, kb, keyWidth))
		}
	}
	b.WriteString("\n")
	b.WriteString(t.OverlayHint.Render("Esc close"))
	return t.OverlayBox.Render(b.String())
}

func (m Model) renderConfirmDelete() string {
	t := m.theme
	body := fmt.Sprintf("Delete %q and all its messages?", title(m.pendingDelete))
	return t.OverlayBox.Render(
		t.OverlayTitle.Render("Delete chat") + "\n" +
			body + "\n" +
			t.OverlayHint.Render("y / Enter delete  any other key cancels"),
	)
}

// overlayToasts draws the toast stack over the bottom-right corner of base,
// above the status bar.
func overlayToasts(base, stack string, width, height int) string {
	baseLines := strings.Split(base, "\n")
	toastLines := strings.Split(stack, "\n")

	startRow := max(height-len(toastLines)-1, 0)
	for i, tl := range toastLines {
		row := startRow + i
		if row >= len(baseLines) {
			break
		}
		tw := lipgloss.Width(tl)
		if tw == 0 {
			continue
		}
		cut := max(width-tw-1, 0)
		line := baseLines[row]
		if lw := lipgloss.Width(line); lw > cut {
			line = ansi.Truncate(line, cut, "")
		} else {
			line += strings.Repeat(" ", cut-lw)
		}
		baseLines[row] = line + tl
	}
	return strings.Join(baseLines, "\n")
}
