// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/rigchat/internal/ollama"
	"github.com/jeranaias/rigchat/internal/registry"
	"github.com/jeranaias/rigchat/internal/ui/components"
	"github.com/jeranaias/rigchat/internal/ui/styles"
)

// pickerRows is the number of models listed at once.
const pickerRows = 10

// =============================================================================
// MODEL PICKER
// =============================================================================

// picker selects a local model by fuzzy name, or names one to pull.
type picker struct {
	input   textinput.Model
	models  []ollama.ModelInfo
	cursor  int
	loading bool
	err     error
	current string
}

func newPicker() picker {
	ti := textinput.New()
	ti.Placeholder = "filter or name to pull"
	ti.Prompt = "/ "
	ti.CharLimit = 128
	return picker{input: ti}
}

// open resets the picker for a fresh listing.
func (p *picker) open(current string) tea.Cmd {
	p.input.SetValue("")
	p.cursor = 0
	p.loading = true
	p.err = nil
	p.current = current
	return p.input.Focus()
}

func (p *picker) close() {
	p.input.Blur()
}

func (p *picker) setModels(models []ollama.ModelInfo, err error) {
	p.loading = false
	p.models = models
	p.err = err
	p.clamp()
}

func (p picker) query() string {
	return strings.TrimSpace(p.input.Value())
}

func (p picker) filtered() []ollama.ModelInfo {
	return components.FuzzyFilter(p.query(), p.models, func(m ollama.ModelInfo) string {
		return m.Name
	})
}

func (p picker) selected() (ollama.ModelInfo, bool) {
	list := p.filtered()
	if p.cursor < 0 || p.cursor >= len(list) {
		return ollama.ModelInfo{}, false
	}
	return list[p.cursor], true
}

func (p *picker) move(delta int) {
	p.cursor += delta
	p.clamp()
}

func (p *picker) clamp() {
	n := len(p.filtered())
	if p.cursor >= n {
		p.cursor = n - 1
	}
	if p.cursor < 0 {
		p.cursor = 0
	}
}

// update forwards typing to the filter input.
func (p *picker) update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	p.input, cmd = p.input.Update(msg)
	p.clamp()
	return cmd
}

func (p picker) view(t *styles.Theme, width int, pulls []registry.Pull) string {
	inner := max(min(width-8, 64), 20)
	p.input.Width = inner - 4

	var b strings.Builder
	b.WriteString(t.OverlayTitle.Render("Models"))
	b.WriteString("\n")
	b.WriteString(p.input.View())
	b.WriteString("\n\n")

	list := p.filtered()
	switch {
	case p.loading:
		b.WriteString(t.Muted.Render("Loading models..."))
	case p.err != nil:
		b.WriteString(t.MessageError.Render(styles.StatusIndicators.Error + " " + p.err.Error()))
	case len(p.models) == 0:
		b.WriteString(t.Muted.Render("No local models. Type a name and press Ctrl+D to pull it."))
	case len(list) == 0:
		b.WriteString(t.Muted.Render(fmt.Sprintf("No match for %q. Ctrl+D pulls it.", p.query())))
	default:
		offset := max(p.cursor-pickerRows+1, 0)
		end := min(offset+pickerRows, len(list))
		for i := offset; i < end; i++ {
			b.WriteString(p.renderItem(t, list[i], i == p.cursor, inner))
			if i < end-1 {
				b.WriteString("\n")
			}
		}
		if len(list) > pickerRows {
			b.WriteString("\n" + t.Muted.Render(fmt.Sprintf("%d of %d", p.cursor+1, len(list))))
		}
	}

	if len(pulls) > 0 {
		b.WriteString("\n\n")
		for i, pl := range pulls {
			if i > 0 {
				b.WriteString("\n")
			}
			b.WriteString(renderPullLine(t, pl, inner))
		}
	}

	b.WriteString("\n")
	b.WriteString(t.OverlayHint.Render("Enter select  Ctrl+D pull  Esc close"))
	return t.OverlayBox.Width(inner + t.OverlayBox.GetHorizontalPadding()).Render(b.String())
}

func (p picker) renderItem(t *styles.Theme, m ollama.ModelInfo, selected bool, width int) string {
	name := m.Name
	if selected {
		name = t.OverlayItemSelected.Render(name)
	} else {
		name = highlight(t, m.Name, components.HighlightMatch(p.query(), m.Name))
		name = t.OverlayItem.Render(name)
	}

	meta := m.FormatSize()
	if m.Details.ParameterSize != "" {
		meta = m.Details.ParameterSize + " " + meta
	}
	if m.Name == p.current {
		meta = "current  " + meta
	}
	gap := max(width-lipgloss.Width(name)-lipgloss.Width(meta), 1)
	return name + strings.Repeat(" ", gap) + t.Muted.Render(meta)
}

// highlight bolds the runes of s at positions.
func highlight(t *styles.Theme, s string, positions []int) string {
	if len(positions) == 0 {
		return s
	}
	marked := make(map[int]bool, len(positions))
	for _, p := range positions {
		marked[p] = true
	}
	var b strings.Builder
	for i, r := range []rune(s) {
		if marked[i] {
			b.WriteString(t.ShortcutKey.Render(string(r)))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func renderPullLine(t *styles.Theme, p registry.Pull, width int) string {
	if p.Failed() {
		return t.MessageError.Render(fmt.Sprintf("%s %s: %v", styles.StatusIndicators.Error, p.Name, p.Err))
	}
	label := fmt.Sprintf("%s %s", p.Name, p.Status)
	if p.Progress == nil || p.Progress.Total <= 0 {
		return t.StatusPending.Render(label)
	}
	barWidth := max(width-lipgloss.Width(label)-6, 10)
	return t.StatusPending.Render(label) + " " +
		styles.RenderProgressBar(barWidth, float64(p.Percent())) +
		fmt.Sprintf(" %3d%%", p.Percent())
}
