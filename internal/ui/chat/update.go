// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/rigchat/internal/notify"
	"github.com/jeranaias/rigchat/internal/registry"
	"github.com/jeranaias/rigchat/internal/session"
	"github.com/jeranaias/rigchat/internal/ui/components"
)

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case TranscriptMsg:
		// the bridge always sends the newest snapshot, but a resize can
		// interleave with an older one still in flight
		if msg.Snapshot.Version < m.snapshot.Version {
			return m, nil
		}
		m.snapshot = msg.Snapshot
		m.status.LastStats = lastStats(m.snapshot)
		m.refreshViewport()
		return m, nil

	case SessionStateMsg:
		m.state = msg.State
		m.status.State = msg.State
		m.chats.setActive(m.deps.Controller.ChatID())
		m.refreshViewport()
		return m, nil

	case ChatsChangedMsg:
		return m, m.loadChatsCmd()

	case ChatsLoadedMsg:
		if msg.Err != nil {
			m.log.WithError(msg.Err).Warn("failed to list chats")
			m.notifyWarn("Chats unavailable", msg.Err.Error())
			return m, nil
		}
		m.chats.setItems(msg.Chats)
		m.chats.setActive(m.deps.Controller.ChatID())
		return m, nil

	case HealthMsg:
		return m.handleHealth(msg)

	case PullsMsg:
		m.pulls = msg.Pulls
		m.status.Pulls = msg.Pulls
		return m, nil

	case NotificationsMsg:
		m.toasts = msg.List
		return m, nil

	case ConfigReloadedMsg:
		return m.handleConfigReloaded(msg)

	case SendDoneMsg:
		return m.handleSendDone(msg)

	case ChatOpenedMsg:
		if msg.Err != nil {
			m.notifyError("Chat not loaded", msg.Err.Error())
			return m, nil
		}
		m.chats.setActive(msg.ChatID)
		m.chats.selectID(msg.ChatID)
		m.snapshot = m.deps.Controller.Transcript().Snapshot()
		m.status.LastStats = lastStats(m.snapshot)
		m.follow = true
		m.refreshViewport()
		return m, m.focusInput()

	case ChatClearedMsg:
		m.chats.setActive("")
		m.snapshot = m.deps.Controller.Transcript().Snapshot()
		m.status.LastStats = nil
		m.follow = true
		m.refreshViewport()
		return m, m.focusInput()

	case ChatDeletedMsg:
		switch {
		case msg.Err != nil:
			m.notifyError("Chat not deleted", msg.Err.Error())
		case !msg.Deleted:
			m.notifyWarn("Chat not found", "It was already deleted")
		default:
			m.notifySuccess("Chat deleted", "")
		}
		return m, m.loadChatsCmd()

	case SetupDoneMsg:
		if msg.Result.Success {
			m.notifySuccess("Ollama", msg.Result.Message)
		} else {
			m.notifyError("Ollama not started", msg.Result.Message)
		}
		return m, nil

	case ModelsLoadedMsg:
		m.picker.setModels(msg.Models, msg.Err)
		return m, nil

	case PullDoneMsg:
		return m.handlePullDone(msg)

	case SettingSavedMsg:
		if msg.Err != nil {
			m.settings.err = msg.Err.Error()
			return m, nil
		}
		m.settings.cancelEdit()
		m.settings.cfg = msg.Config
		m.applyConfig(msg.Config)
		m.notifySuccess("Setting saved", msg.Key)
		return m, nil

	case components.ToastTickMsg:
		// redraw for the countdowns; the center removes expired toasts
		return m, components.ToastTickCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.state.Phase == session.PhaseAwaitingStart {
			m.refreshViewport()
		}
		return m, cmd

	default:
		var cmds []tea.Cmd
		if m.overlay == overlayNone && m.focus == focusInput {
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			cmds = append(cmds, cmd)
		}
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
		return m, tea.Batch(cmds...)
	}
}

// =============================================================================
// RESIZE
// =============================================================================

func (m Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height
	m.theme.SetSize(msg.Width, msg.Height)
	m.status.SetWidth(msg.Width)
	m.layout()
	m.ready = true
	m.renders = make(map[string]renderedMessage)
	m.refreshViewport()
	return m, nil
}

// layout sizes the viewport and input for the current window.
//
//	header (1)
//	sidebar | viewport
//	        | input (textarea + border)
//	status bar (1)
func (m *Model) layout() {
	const headerHeight, statusHeight = 1, 1

	mainWidth := max(m.width-m.theme.SidebarWidth(), 20)
	inputHeight := m.input.Height() + m.theme.InputContainer.GetVerticalFrameSize()

	m.viewport.Width = mainWidth
	m.viewport.Height = max(m.height-headerHeight-statusHeight-inputHeight, 1)
	m.input.SetWidth(max(mainWidth-m.theme.InputContainer.GetHorizontalFrameSize(), 10))
}

// =============================================================================
// KEYS
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		m.quitting = true
		return m, tea.Quit
	}

	switch m.overlay {
	case overlayModels:
		return m.handlePickerKey(msg)
	case overlaySettings:
		return m.handleSettingsKey(msg)
	case overlayHelp:
		if key.Matches(msg, m.keys.Cancel, m.keys.Help, m.keys.Confirm) {
			m.overlay = overlayNone
			return m, m.restoreFocus()
		}
		return m, nil
	case overlayConfirmDelete:
		return m.handleConfirmDeleteKey(msg)
	}

	c := m.deps.Controller
	switch {
	case key.Matches(msg, m.keys.Interrupt):
		if m.state.Phase.Live() {
			c.Stop()
			return m, nil
		}
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.Stop):
		if m.state.Phase.Live() {
			c.Stop()
			return m, nil
		}
		if m.focus == focusSidebar {
			return m, m.focusInput()
		}
		return m, nil

	case key.Matches(msg, m.keys.NewChat):
		return m, m.clearChatCmd()

	case key.Matches(msg, m.keys.ModelPicker):
		if m.deps.Registry == nil {
			return m, nil
		}
		m.overlay = overlayModels
		m.input.Blur()
		return m, tea.Batch(m.picker.open(c.Model()), m.listModelsCmd())

	case key.Matches(msg, m.keys.StartServer):
		if m.deps.Setup == nil {
			return m, nil
		}
		m.notifyInfo("Ollama", "Starting ollama serve...")
		return m, m.startServerCmd()

	case key.Matches(msg, m.keys.Settings):
		m.overlay = overlaySettings
		m.settings.open(m.cfg)
		m.input.Blur()
		return m, nil

	case key.Matches(msg, m.keys.Help):
		m.overlay = overlayHelp
		m.input.Blur()
		return m, nil

	case key.Matches(msg, m.keys.FocusNext):
		if m.focus == focusInput && m.theme.SidebarWidth() > 0 {
			m.focus = focusSidebar
			m.input.Blur()
			return m, nil
		}
		return m, m.focusInput()

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		m.follow = m.viewport.AtBottom()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		m.follow = m.viewport.AtBottom()
		return m, nil
	}

	if m.focus == focusSidebar {
		return m.handleSidebarKey(msg)
	}

	if key.Matches(msg, m.keys.Send) {
		return m.submit()
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit sends the prompt. The input is cleared at once and restored if the
// controller rejects it.
func (m Model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}
	m.input.Reset()
	m.lastPrompt = text
	m.follow = true
	return m, m.sendCmd(text)
}

func (m Model) handleSidebarKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Up):
		m.chats.move(-1)
	case key.Matches(msg, m.keys.Down):
		m.chats.move(1)
	case key.Matches(msg, m.keys.Open):
		if it, ok := m.chats.selected(); ok {
			return m, m.openChatCmd(it.ID)
		}
	case key.Matches(msg, m.keys.Delete):
		if it, ok := m.chats.selected(); ok {
			m.pendingDelete = it
			m.overlay = overlayConfirmDelete
		}
	}
	return m, nil
}

func (m Model) handleConfirmDeleteKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.overlay = overlayNone
	if key.Matches(msg, m.keys.Confirm) {
		id := m.pendingDelete.ID
		m.pendingDelete.ID = ""
		return m, m.deleteChatCmd(id)
	}
	return m, nil
}

func (m Model) handlePickerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Cancel):
		m.overlay = overlayNone
		m.picker.close()
		return m, m.focusInput()

	case msg.Type == tea.KeyUp:
		m.picker.move(-1)
		return m, nil

	case msg.Type == tea.KeyDown:
		m.picker.move(1)
		return m, nil

	case msg.Type == tea.KeyEnter:
		sel, ok := m.picker.selected()
		if !ok {
			return m, nil
		}
		m.deps.Controller.SetModel(sel.Name)
		m.status.ModelName = sel.Name
		m.overlay = overlayNone
		m.picker.close()
		m.notifySuccess("Model selected", sel.Name)
		return m, m.focusInput()

	case key.Matches(msg, m.keys.Pull):
		name := m.picker.query()
		if name == "" {
			return m, nil
		}
		m.notifyInfo("Pulling model", name)
		return m, m.pullCmd(name)
	}
	return m, m.picker.update(msg)
}

func (m Model) handleSettingsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.settings.editing {
		switch msg.Type {
		case tea.KeyEnter:
			k, v := m.settings.submitted()
			return m, m.saveSettingCmd(k, v)
		case tea.KeyEsc:
			m.settings.cancelEdit()
			return m, nil
		}
		return m, m.settings.update(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Cancel):
		m.overlay = overlayNone
		return m, m.focusInput()
	case key.Matches(msg, m.keys.Up):
		m.settings.move(-1)
	case key.Matches(msg, m.keys.Down):
		m.settings.move(1)
	case msg.Type == tea.KeyEnter:
		return m, m.settings.edit()
	}
	return m, nil
}

// =============================================================================
// RESULT HANDLERS
// =============================================================================

func (m Model) handleSendDone(msg SendDoneMsg) (tea.Model, tea.Cmd) {
	if msg.Err == nil {
		m.lastPrompt = ""
		return m, nil
	}

	if m.input.Value() == "" && m.lastPrompt != "" {
		m.input.SetValue(m.lastPrompt)
	}
	m.lastPrompt = ""

	switch {
	case errors.Is(msg.Err, session.ErrNoModelSelected):
		m.notifyError("No model selected", "Press Ctrl+P to pick a model")
	case errors.Is(msg.Err, session.ErrEmptyMessage):
	default:
		m.log.WithError(msg.Err).Warn("send failed")
		m.notifyError("Message not sent", msg.Err.Error())
	}
	return m, nil
}

func (m Model) handleHealth(msg HealthMsg) (tea.Model, tea.Cmd) {
	m.applyHealth(msg.Status)
	if !msg.Status.Connected && !m.setupHinted && m.deps.Setup != nil {
		m.setupHinted = true
		hint := "Press Ctrl+O to start it"
		if msg.Status.Error != "" {
			hint = msg.Status.Error + ". " + hint
		}
		if m.deps.Notify != nil {
			m.deps.Notify.Add(notify.KindWarning, "Ollama not reachable", hint, 10*time.Second)
		}
	}
	return m, nil
}

func (m Model) handlePullDone(msg PullDoneMsg) (tea.Model, tea.Cmd) {
	switch {
	case errors.Is(msg.Err, registry.ErrPullInProgress):
		m.notifyInfo("Already pulling", msg.Name)
		return m, nil
	case msg.Err != nil:
		m.notifyError("Pull failed", fmt.Sprintf("%s: %v", msg.Name, msg.Err))
		return m, nil
	}
	m.notifySuccess("Model pulled", msg.Name)
	if m.overlay == overlayModels {
		m.picker.loading = true
		return m, m.listModelsCmd()
	}
	return m, nil
}

func (m Model) handleConfigReloaded(msg ConfigReloadedMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		m.notifyWarn("Config not reloaded", msg.Err.Error())
		return m, nil
	}
	if msg.Config == nil || msg.Config.String() == m.cfg.String() {
		return m, nil
	}
	m.applyConfig(msg.Config)
	if m.overlay == overlaySettings && !m.settings.editing {
		m.settings.cfg = msg.Config
	}
	m.notifyInfo("Config reloaded", m.deps.ConfigPath)
	return m, m.loadChatsCmd()
}

// =============================================================================
// FOCUS AND NOTIFICATIONS
// =============================================================================

func (m *Model) focusInput() tea.Cmd {
	m.focus = focusInput
	return m.input.Focus()
}

// restoreFocus re-focuses the input when it had focus before an overlay.
func (m *Model) restoreFocus() tea.Cmd {
	if m.focus == focusInput {
		return m.input.Focus()
	}
	return nil
}

func (m Model) notifyInfo(title, message string) {
	if m.deps.Notify != nil {
		m.deps.Notify.Info(title, message)
	}
}

func (m Model) notifySuccess(title, message string) {
	if m.deps.Notify != nil {
		m.deps.Notify.Success(title, message)
	}
}

func (m Model) notifyWarn(title, message string) {
	if m.deps.Notify != nil {
		m.deps.Notify.Warn(title, message)
	}
}

func (m Model) notifyError(title, message string) {
	if m.deps.Notify != nil {
		m.deps.Notify.Error(title, message)
	}
}
