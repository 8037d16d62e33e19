// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/registry"
	"github.com/jeranaias/rigchat/internal/session"
	"github.com/jeranaias/rigchat/internal/ui/styles"
	"github.com/jeranaias/rigchat/internal/util"
)

// =============================================================================
// SERVER STATE
// =============================================================================

// ServerState is what the last health probe found.
type ServerState int

const (
	ServerUnknown ServerState = iota
	ServerOnline
	ServerOffline
)

// String returns the display string for the server state.
func (s ServerState) String() string {
	switch s {
	case ServerOnline:
		return "Ollama"
	case ServerOffline:
		return "Ollama offline"
	default:
		return "Checking..."
	}
}

// =============================================================================
// STATUS BAR COMPONENT
// =============================================================================

// StatusBar is the bottom line of the TUI: server health, model, session
// phase, pulls in progress and the stats of the last reply.
type StatusBar struct {
	Server        ServerState
	ModelName     string
	State         session.State
	Pulls         []registry.Pull
	LastStats     *model.Stats
	Width         int
	ShowShortcuts bool
	theme         *styles.Theme
}

// NewStatusBar creates a new StatusBar component.
func NewStatusBar(theme *styles.Theme) *StatusBar {
	return &StatusBar{
		Width:         80,
		ShowShortcuts: true,
		theme:         theme,
	}
}

// SetWidth updates the status bar width.
func (s *StatusBar) SetWidth(width int) {
	s.Width = width
}

// SetServer records the server reachability.
func (s *StatusBar) SetServer(connected bool) {
	if connected {
		s.Server = ServerOnline
	} else {
		s.Server = ServerOffline
	}
}

// PhaseLabel describes the session for the status bar. While idle it reports
// how the last reply ended.
func PhaseLabel(st session.State) string {
	switch st.Phase {
	case session.PhaseAwaitingStart:
		return "Waiting for model..."
	case session.PhaseStreaming:
		return "Streaming..."
	}
	switch st.Session.Status {
	case session.StatusCancelled:
		return "Stopped"
	case session.StatusErrored:
		return "Error"
	default:
		return "Ready"
	}
}

// View renders the status bar.
func (s *StatusBar) View() string {
	if s.Width < 60 {
		return s.viewNarrow()
	}
	return s.viewWide()
}

// viewNarrow renders server icon, phase and the first pull.
func (s *StatusBar) viewNarrow() string {
	parts := []string{s.serverIcon(), s.phase()}
	if pull := s.pullSummary(); pull != "" {
		parts = append(parts, pull)
	}
	return s.theme.StatusBar.Width(s.Width).Render(strings.Join(parts, " "))
}

// viewWide renders
// (+) Ollama | llama3.2 | Ready | 412 tok 38.2 tok/s      Enter send  Esc stop  F1 help
func (s *StatusBar) viewWide() string {
	sep := lipgloss.NewStyle().Foreground(styles.Overlay).Render(" | ")

	left := []string{s.serverIcon() + " " + s.serverText()}
	name := s.ModelName
	if name == "" {
		name = "no model"
	}
	left = append(left, s.theme.HeaderModel.Render(util.TruncateRunes(name, 28)))
	left = append(left, s.phase())
	if s.LastStats != nil && s.LastStats.CompletionTokens > 0 {
		left = append(left, s.theme.Muted.Render(formatStats(s.LastStats)))
	}
	if pull := s.pullSummary(); pull != "" {
		left = append(left, pull)
	}
	leftSection := strings.Join(left, sep)

	rightSection := ""
	if s.ShowShortcuts {
		rightSection = s.renderShortcuts()
	}

	spacing := s.Width - lipgloss.Width(leftSection) - lipgloss.Width(rightSection) - 2
	if spacing < 1 {
		rightSection = ""
		spacing = 1
	}
	return s.theme.StatusBar.Width(s.Width).
		Render(leftSection + strings.Repeat(" ", spacing) + rightSection)
}

// ==========================================================================
// HELPER RENDER METHODS
// ==========================================================================

func (s *StatusBar) serverIcon() string {
	switch s.Server {
	case ServerOnline:
		return s.theme.StatusOnline.Render(styles.ConnectionIndicators.Connected)
	case ServerOffline:
		return s.theme.StatusOffline.Render(styles.ConnectionIndicators.Offline)
	default:
		return s.theme.StatusPending.Render(styles.ConnectionIndicators.Unknown)
	}
}

func (s *StatusBar) serverText() string {
	if s.Server == ServerOffline {
		return s.theme.StatusOffline.Render(s.Server.String())
	}
	return s.Server.String()
}

func (s *StatusBar) phase() string {
	label := PhaseLabel(s.State)
	switch {
	case s.State.Phase.Live():
		return s.theme.StatusPhase.Render(label)
	case s.State.Session.Status == session.StatusErrored:
		return s.theme.StatusOffline.Render(label)
	default:
		return label
	}
}

// pullSummary shows the first active pull and how many more are running.
func (s *StatusBar) pullSummary() string {
	if len(s.Pulls) == 0 {
		return ""
	}
	p := s.Pulls[0]
	text := fmt.Sprintf("pull %s %d%%", util.TruncateRunes(p.Name, 20), p.Percent())
	if p.Failed() {
		text = "pull " + util.TruncateRunes(p.Name, 20) + " failed"
	}
	if extra := len(s.Pulls) - 1; extra > 0 {
		text += fmt.Sprintf(" (+%d)", extra)
	}
	if p.Failed() {
		return s.theme.StatusOffline.Render(text)
	}
	return s.theme.StatusPending.Render(text)
}

func (s *StatusBar) renderShortcuts() string {
	var b strings.Builder
	pairs := [][2]string{{"Enter", "send"}, {"Esc", "stop"}, {"F1", "help"}}
	for i, p := range pairs {
		if i > 0 {
			b.WriteString("  ")
		}
		b.WriteString(s.theme.ShortcutKey.Render(p[0]))
		b.WriteString(" ")
		b.WriteString(s.theme.ShortcutDesc.Render(p[1]))
	}
	return b.String()
}

// formatStats renders "1,234 tok 38.2 tok/s".
func formatStats(st *model.Stats) string {
	out := formatCount(st.CompletionTokens) + " tok"
	if tps := st.TokensPerSecond(); tps > 0 {
		out += fmt.Sprintf(" %.1f tok/s", tps)
	}
	return out
}

// formatCount formats n with thousand separators.
func formatCount(n int) string {
	if n < 0 {
		return "-" + formatCount(-n)
	}
	s := strconv.Itoa(n)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
