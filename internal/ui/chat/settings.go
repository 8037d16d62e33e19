// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/rigchat/internal/config"
	"github.com/jeranaias/rigchat/internal/ui/styles"
	"github.com/jeranaias/rigchat/internal/util"
)

// settingField is one editable config key.
type settingField struct {
	Key   string
	Label string
}

// settingFields are the keys editable from the TUI. Storage, logging and
// health settings only take effect on restart and stay in the config file.
var settingFields = []settingField{
	{Key: "default_model", Label: "Default model"},
	{Key: "system_prompt", Label: "System prompt"},
	{Key: "server.url", Label: "Server URL"},
	{Key: "generation.temperature", Label: "Temperature"},
	{Key: "generation.top_k", Label: "Top K"},
	{Key: "generation.top_p", Label: "Top P"},
	{Key: "generation.max_tokens", Label: "Max tokens"},
	{Key: "chat.stream_timeout_secs", Label: "Stream timeout (s)"},
	{Key: "chat.sidebar_limit", Label: "Chats in sidebar"},
	{Key: "ui.theme", Label: "Theme"},
	{Key: "ui.markdown", Label: "Markdown"},
	{Key: "ui.show_stats", Label: "Show stats"},
}

// =============================================================================
// SETTINGS OVERLAY
// =============================================================================

// settings lists config values and edits one at a time.
type settings struct {
	cfg     *config.Config
	cursor  int
	editing bool
	input   textinput.Model
	err     string
}

func newSettings() settings {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.CharLimit = 512
	return settings{input: ti}
}

// open shows the values of cfg.
func (s *settings) open(cfg *config.Config) {
	s.cfg = cfg
	s.editing = false
	s.err = ""
	s.input.Blur()
}

func (s settings) field() settingField {
	return settingFields[s.cursor]
}

func (s settings) value(key string) string {
	if s.cfg == nil {
		return ""
	}
	v, err := s.cfg.Get(key)
	if err != nil || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func (s *settings) move(delta int) {
	s.cursor = (s.cursor + delta + len(settingFields)) % len(settingFields)
	s.err = ""
}

// edit starts editing the selected field with its current value.
func (s *settings) edit() tea.Cmd {
	s.editing = true
	s.err = ""
	s.input.SetValue(s.value(s.field().Key))
	s.input.CursorEnd()
	return s.input.Focus()
}

// cancelEdit leaves edit mode without saving.
func (s *settings) cancelEdit() {
	s.editing = false
	s.input.Blur()
}

// update forwards typing to the edit input.
func (s *settings) update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)
	return cmd
}

// submitted returns the key and the typed value.
func (s settings) submitted() (string, string) {
	return s.field().Key, strings.TrimSpace(s.input.Value())
}

// applySetting sets key on a copy of cfg, validates it and writes it to path.
// cfg is left unchanged on error.
func applySetting(cfg *config.Config, path, key, value string) (*config.Config, error) {
	next := cfg.Clone()
	if err := next.Set(key, value); err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	if err := next.Validate(); err != nil {
		return nil, err
	}
	if path != "" {
		if err := config.SaveTOML(next, path); err != nil {
			return nil, err
		}
	}
	return next, nil
}

func (s settings) view(t *styles.Theme, width int) string {
	inner := max(min(width-8, 72), 30)
	labelWidth := 20
	valueWidth := inner - labelWidth - 4
	s.input.Width = valueWidth - 3

	var b strings.Builder
	b.WriteString(t.OverlayTitle.Render("Settings"))
	b.WriteString("\n")

	for i, f := range settingFields {
		label := util.PadWidth(f.Label, labelWidth)
		var value string
		if s.editing && i == s.cursor {
			value = s.input.View()
		} else {
			value = util.TruncateWidth(util.SingleLine(s.value(f.Key)), valueWidth)
			if value == "" {
				value = t.Muted.Render("(unset)")
			}
		}

		style := t.OverlayItem
		if i == s.cursor && !s.editing {
			style = t.OverlayItemSelected
		}
		b.WriteString(style.Render(label) + "  " + value)
		b.WriteString("\n")
	}

	if s.err != "" {
		b.WriteString(t.MessageError.Render(styles.StatusIndicators.Error + " " + s.err))
		b.WriteString("\n")
	}
	hint := "Enter edit  Esc close"
	if s.editing {
		hint = "Enter save  Esc cancel  empty clears optional values"
	}
	b.WriteString(t.OverlayHint.Render(hint))
	return t.OverlayBox.Width(inner + t.OverlayBox.GetHorizontalPadding()).Render(b.String())
}
