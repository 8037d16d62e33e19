// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"github.com/jeranaias/rigchat/internal/config"
	"github.com/jeranaias/rigchat/internal/events"
	"github.com/jeranaias/rigchat/internal/health"
	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/notify"
	"github.com/jeranaias/rigchat/internal/registry"
	"github.com/jeranaias/rigchat/internal/session"
	"github.com/jeranaias/rigchat/internal/setup"
	"github.com/jeranaias/rigchat/internal/storage"
	"github.com/jeranaias/rigchat/internal/ui/components"
	"github.com/jeranaias/rigchat/internal/ui/styles"
)

// opTimeout bounds controller and registry calls made from the UI.
const opTimeout = 30 * time.Second

// =============================================================================
// DEPENDENCIES
// =============================================================================

// Deps are the services the chat interface runs against. Controller and
// Config are required; the rest may be nil.
type Deps struct {
	Config     *config.Config
	ConfigPath string
	Controller *session.Controller
	Bus        *events.Bus
	Registry   *registry.Registry
	Notify     *notify.Center
	Health     *health.Monitor
	Setup      *setup.Manager
	Log        logrus.FieldLogger
}

func (d Deps) logger() logrus.FieldLogger {
	if d.Log != nil {
		return d.Log
	}
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// =============================================================================
// MODEL
// =============================================================================

// focusArea is where key presses go when no overlay is open.
type focusArea int

const (
	focusInput focusArea = iota
	focusSidebar
)

// overlayKind is the modal shown over the chat, if any.
type overlayKind int

const (
	overlayNone overlayKind = iota
	overlayModels
	overlaySettings
	overlayHelp
	overlayConfirmDelete
)

// renderedMessage caches the rendering of one message version.
type renderedMessage struct {
	msg   *model.Message
	width int
	out   string
}

// Model is the Bubble Tea model of the chat screen.
type Model struct {
	deps  Deps
	cfg   *config.Config
	theme *styles.Theme
	keys  KeyMap
	log   logrus.FieldLogger

	width  int
	height int
	ready  bool

	viewport viewport.Model
	input    textarea.Model
	spinner  spinner.Model
	markdown *markdownRenderer
	renders  map[string]renderedMessage

	snapshot model.Snapshot
	state    session.State
	chats    sidebar
	picker   picker
	settings settings
	status   *components.StatusBar
	toasts   []notify.Notification
	pulls    []registry.Pull

	serverKnown bool
	server      health.Status
	setupHinted bool

	focus         focusArea
	overlay       overlayKind
	pendingDelete storage.ChatWithFlags
	lastPrompt    string
	follow        bool
	quitting      bool

	now func() time.Time
}

// New creates the chat model with the current state of deps.
func New(deps Deps) Model {
	cfg := deps.Config
	if cfg == nil {
		cfg = config.Default()
	}
	styles.ApplyMode(cfg.UI.Theme)
	theme := styles.NewTheme()

	ta := textarea.New()
	ta.Placeholder = "Ask anything. Enter sends, Alt+Enter adds a line."
	ta.Prompt = ""
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.SetHeight(3)
	ta.FocusedStyle.CursorLine = ta.FocusedStyle.CursorLine.UnsetBackground()
	ta.FocusedStyle.Placeholder = theme.InputPlaceholder
	ta.BlurredStyle.Placeholder = theme.InputPlaceholder
	ta.KeyMap.InsertNewline.SetKeys("alt+enter", "ctrl+j")
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = styles.DotsSpinner.Bubble()
	sp.Style = theme.Spinner

	status := components.NewStatusBar(theme)
	status.ModelName = deps.Controller.Model()

	m := Model{
		deps:     deps,
		cfg:      cfg,
		theme:    theme,
		keys:     DefaultKeyMap(),
		log:      deps.logger(),
		viewport: viewport.New(80, 20),
		input:    ta,
		spinner:  sp,
		markdown: &markdownRenderer{},
		renders:  make(map[string]renderedMessage),
		snapshot: deps.Controller.Transcript().Snapshot(),
		state:    deps.Controller.State(),
		picker:   newPicker(),
		settings: newSettings(),
		status:   status,
		follow:   true,
		now:      time.Now,
	}
	m.status.State = m.state
	m.chats.setActive(deps.Controller.ChatID())

	if deps.Health != nil {
		if st, ok := deps.Health.Status(); ok {
			m.applyHealth(st)
		}
	}
	if deps.Registry != nil {
		m.pulls = deps.Registry.Pulls()
		m.status.Pulls = m.pulls
	}
	if deps.Notify != nil {
		m.toasts = deps.Notify.List()
	}
	m.status.LastStats = lastStats(m.snapshot)
	return m
}

// =============================================================================
// BUBBLE TEA INTERFACE
// =============================================================================

// Init loads the sidebar and starts the cursor and toast timers.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		m.spinner.Tick,
		components.ToastTickCmd(),
		m.loadChatsCmd(),
	)
}

// =============================================================================
// COMMANDS
// =============================================================================

// Controller operations take the operation lock, so they run as commands
// rather than inside Update.

func (m Model) loadChatsCmd() tea.Cmd {
	c, limit := m.deps.Controller, m.cfg.Chat.SidebarLimit
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		chats, err := c.ListChats(ctx, limit)
		return ChatsLoadedMsg{Chats: chats, Err: err}
	}
}

func (m Model) sendCmd(text string) tea.Cmd {
	c := m.deps.Controller
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		return SendDoneMsg{Err: c.Send(ctx, text, nil)}
	}
}

func (m Model) openChatCmd(id string) tea.Cmd {
	c := m.deps.Controller
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		return ChatOpenedMsg{ChatID: id, Err: c.LoadChat(ctx, id)}
	}
}

func (m Model) clearChatCmd() tea.Cmd {
	c := m.deps.Controller
	return func() tea.Msg {
		c.ClearChat()
		return ChatClearedMsg{}
	}
}

func (m Model) deleteChatCmd(id string) tea.Cmd {
	c := m.deps.Controller
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		ok, err := c.DeleteChat(ctx, id)
		return ChatDeletedMsg{ChatID: id, Deleted: ok, Err: err}
	}
}

func (m Model) listModelsCmd() tea.Cmd {
	r := m.deps.Registry
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		models, err := r.Models(ctx)
		return ModelsLoadedMsg{Models: models, Err: err}
	}
}

// pullCmd has no deadline; progress arrives through the registry.
func (m Model) pullCmd(name string) tea.Cmd {
	r := m.deps.Registry
	return func() tea.Msg {
		return PullDoneMsg{Name: name, Err: r.Pull(context.Background(), name)}
	}
}

func (m Model) startServerCmd() tea.Cmd {
	s, h := m.deps.Setup, m.deps.Health
	return func() tea.Msg {
		res := s.Start(context.Background())
		if h != nil {
			h.Check(context.Background())
		}
		return SetupDoneMsg{Result: res}
	}
}

func (m Model) saveSettingCmd(key, value string) tea.Cmd {
	cfg, path := m.cfg, m.deps.ConfigPath
	return func() tea.Msg {
		next, err := applySetting(cfg, path, key, value)
		return SettingSavedMsg{Key: key, Config: next, Err: err}
	}
}

// =============================================================================
// HELPERS
// =============================================================================

// lastStats returns the stats of the newest assistant message that has them.
func lastStats(s model.Snapshot) *model.Stats {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if msg := s.Messages[i]; msg.Role == model.RoleAssistant && msg.Stats != nil {
			return msg.Stats
		}
	}
	return nil
}

// applyConfig takes over a new configuration. Generation settings and the
// system prompt apply to the next send; the model changes only when the
// default model itself changed.
func (m *Model) applyConfig(cfg *config.Config) {
	prev := m.cfg
	m.cfg = cfg
	c := m.deps.Controller
	c.SetOptions(cfg.GenerationOptions())
	c.SetSystemPrompt(cfg.SystemPrompt)
	if prev == nil || prev.DefaultModel != cfg.DefaultModel {
		c.SetModel(cfg.DefaultModel)
		m.status.ModelName = cfg.DefaultModel
	}
	if prev == nil || prev.UI.Theme != cfg.UI.Theme {
		styles.ApplyMode(cfg.UI.Theme)
	}
	m.renders = make(map[string]renderedMessage)
	m.refreshViewport()
}

func (m *Model) applyHealth(st health.Status) {
	m.server = st
	m.serverKnown = true
	m.status.SetServer(st.Connected)
}
