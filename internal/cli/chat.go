// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Line-mode chat for rigchat.
//
// Command: chat
// Short:   Chat in the terminal without the full-screen UI
//
// Examples:
//
//	rigchat chat                       Use default_model
//	rigchat chat --model qwen2.5:14b   Use a specific model
//
// Interactive Commands (during chat):
//
//	/new                Start a new chat
//	/load ID            Load a saved chat (ID prefix is enough)
//	/chats              List saved chats
//	/model [name]       Show or switch model
//	/system [text]      Show or set the system prompt (/system - clears it)
//	/clear              Clear the transcript
//	/history            Show the transcript
//	/help               Show commands
//	/quit               Exit
//	Ctrl+C              Stop the reply in progress
//	Ctrl+D              Exit
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/peterh/liner"

	"github.com/jeranaias/rigchat/internal/config"
	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/session"
	"github.com/jeranaias/rigchat/internal/ui/styles"
	"github.com/jeranaias/rigchat/internal/util"
)

// =============================================================================
// STYLES
// =============================================================================

var (
	promptStyle = lipgloss.NewStyle().
			Foreground(styles.Cyan).
			Bold(true)

	welcomeStyle = lipgloss.NewStyle().
			Foreground(styles.Purple).
			Bold(true)

	infoStyle    = lipgloss.NewStyle().Foreground(styles.TextSecondary)
	commandStyle = lipgloss.NewStyle().Foreground(styles.Emerald)
)

// slashCommands feeds tab completion.
var slashCommands = []string{"/new", "/load", "/chats", "/model", "/system", "/clear", "/history", "/help", "/quit"}

// =============================================================================
// INPUT HISTORY
// =============================================================================

// ChatCLI provides line editing and persistent input history.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a ChatCLI with history loaded from ~/.rigchat/chat_history.
func NewChatCLI() *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	line.SetCompleter(completeSlash)

	configDir, err := config.ConfigDir()
	if err != nil {
		configDir = os.TempDir()
	}

	c := &ChatCLI{
		line:        line,
		historyFile: filepath.Join(configDir, "chat_history"),
	}
	c.LoadHistory()
	return c
}

// LoadHistory loads command history from file.
func (c *ChatCLI) LoadHistory() {
	if f, err := os.Open(c.historyFile); err == nil {
		_, _ = c.line.ReadHistory(f)
		f.Close()
	}
}

// ReadInput prompts for one line. It returns liner.ErrPromptAborted on
// Ctrl+C and io.EOF on Ctrl+D.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// SaveHistory writes history with owner-only permissions.
func (c *ChatCLI) SaveHistory() error {
	if err := os.MkdirAll(filepath.Dir(c.historyFile), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = c.line.WriteHistory(f)
	return err
}

// Close saves history and restores the terminal.
func (c *ChatCLI) Close() error {
	err := c.SaveHistory()
	if cerr := c.line.Close(); err == nil {
		err = cerr
	}
	return err
}

func completeSlash(line string) []string {
	if !strings.HasPrefix(line, "/") || strings.Contains(line, " ") {
		return nil
	}
	var out []string
	for _, cmd := range slashCommands {
		if strings.HasPrefix(cmd, line) {
			out = append(out, cmd)
		}
	}
	return out
}

// =============================================================================
// CHAT LOOP
// =============================================================================

// chatREPL is the state of one "rigchat chat" run.
type chatREPL struct {
	app   *App
	c     *session.Controller
	out   io.Writer
	stats bool
	start time.Time
	turns int
}

// HandleChatCommand runs "rigchat chat".
func HandleChatCommand(args Args) error {
	if err := RequiresTTY("chat"); err != nil {
		return err
	}

	app, err := NewApp(args, AppOptions{LogToFile: true, Warner: stderrWarner{}})
	if err != nil {
		return err
	}
	defer app.CloseWithTimeout(5 * time.Second)

	r := &chatREPL{
		app:   app,
		c:     app.Controller,
		out:   os.Stdout,
		stats: app.Config.UI.ShowStats,
		start: time.Now(),
	}

	ctx := context.Background()
	probe, err := app.Probe(ctx)
	if err != nil {
		return err
	}
	r.printWelcome(probe)

	cli := NewChatCLI()
	defer cli.Close()

	for {
		input, err := cli.ReadInput(promptStyle.Render("you> "))
		if errors.Is(err, liner.ErrPromptAborted) {
			continue
		}
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(r.out)
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			cont, err := r.handleSlashCommand(ctx, input)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%s %v\n", ErrorStyle.Render("[Error]"), err)
			}
			if !cont {
				break
			}
			continue
		}

		if err := r.processMessage(ctx, input); err != nil {
			fmt.Fprintf(os.Stderr, "%s %v\n", ErrorStyle.Render("[Error]"), err)
		}
	}

	r.printExitSummary()
	return nil
}

// processMessage sends one user turn and streams the reply.
func (r *chatREPL) processMessage(ctx context.Context, input string) error {
	if err := r.c.Send(ctx, input, nil); err != nil {
		if errors.Is(err, session.ErrNoModelSelected) {
			return fmt.Errorf("%w (use /model NAME)", err)
		}
		return err
	}

	fmt.Fprint(r.out, AssistantLabelStyle.Render("ai> "))
	msg, stopped, err := streamReply(ctx, r.c, r.out, true)
	if err != nil {
		return err
	}
	fmt.Fprintln(r.out)
	r.turns++

	switch {
	case stopped:
		fmt.Fprintln(r.out, DimStyle.Render("[stopped]"))
	case r.stats && msg.Stats != nil:
		fmt.Fprintln(r.out, DimStyle.Render("["+msg.Stats.Format()+"]"))
	}
	fmt.Fprintln(r.out)
	return nil
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// handleSlashCommand processes a slash command. It returns false to exit.
func (r *chatREPL) handleSlashCommand(ctx context.Context, cmd string) (bool, error) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return true, nil
	}

	command := strings.ToLower(parts[0])
	args := parts[1:]

	switch command {
	case "/help", "/h", "/?", "/":
		printChatHelp(r.out)

	case "/quit", "/q", "/exit":
		return false, nil

	case "/new", "/n":
		if _, err := r.c.NewChat(ctx, session.ChatOptions{}); err != nil {
			return true, err
		}
		fmt.Fprintln(r.out, commandStyle.Render("[New chat]"))

	case "/clear", "/c":
		r.c.ClearChat()
		fmt.Fprintln(r.out, commandStyle.Render("[Transcript cleared]"))

	case "/load", "/l":
		if len(args) == 0 {
			return true, ErrMissingArgument("chat id", "/load 4b9c1e2a")
		}
		id, err := r.resolveChatID(ctx, args[0])
		if err != nil {
			return true, err
		}
		if err := r.c.LoadChat(ctx, id); err != nil {
			return true, err
		}
		fmt.Fprintf(r.out, "%s %s\n", commandStyle.Render("[Loaded]"), id)
		r.printHistory()

	case "/chats":
		return true, r.printChats(ctx)

	case "/model", "/m":
		if len(args) == 0 {
			name := r.c.Model()
			if name == "" {
				name = "(none)"
			}
			fmt.Fprintf(r.out, "%s %s\n", infoStyle.Render("Model:"), commandStyle.Render(name))
			return true, nil
		}
		r.c.SetModel(args[0])
		fmt.Fprintf(r.out, "%s Switched to model: %s\n", commandStyle.Render("[OK]"), args[0])

	case "/system":
		if len(args) == 0 {
			prompt := r.c.SystemPrompt()
			if prompt == "" {
				prompt = "(none)"
			}
			fmt.Fprintf(r.out, "%s %s\n", infoStyle.Render("System prompt:"), prompt)
			return true, nil
		}
		prompt := strings.Join(args, " ")
		if prompt == "-" {
			prompt = ""
		}
		r.c.SetSystemPrompt(prompt)
		fmt.Fprintln(r.out, commandStyle.Render("[System prompt updated]"))

	case "/history":
		r.printHistory()

	default:
		if s := SuggestSlashCommand(command); s != "" {
			return true, fmt.Errorf("unknown command: %s (did you mean %s?)", command, s)
		}
		return true, fmt.Errorf("unknown command: %s (type /help for commands)", command)
	}
	return true, nil
}

// resolveChatID expands a unique ID prefix.
func (r *chatREPL) resolveChatID(ctx context.Context, prefix string) (string, error) {
	return resolveChatID(ctx, r.c.ListChats, prefix)
}

// =============================================================================
// DISPLAY
// =============================================================================

func (r *chatREPL) printWelcome(probe Startup) {
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, welcomeStyle.Render("rigchat"))
	fmt.Fprintln(r.out, infoStyle.Render(strings.Repeat("─", 30)))

	name := r.c.Model()
	if name == "" {
		name = "(none, use /model NAME)"
	}
	fmt.Fprintf(r.out, "%s %s\n", infoStyle.Render("Model: "), commandStyle.Render(name))
	fmt.Fprintf(r.out, "%s %s\n", infoStyle.Render("Server:"), probe.Health.URL)

	if !probe.Health.Connected {
		fmt.Fprintf(r.out, "%s Ollama is not reachable: %s\n", WarningStyle.Render("[Warning]"), probe.Health.Error)
		fmt.Fprintln(r.out, infoStyle.Render("Run 'rigchat setup start' or start Ollama yourself."))
	} else if len(probe.Models) > 0 {
		names := make([]string, 0, len(probe.Models))
		for _, m := range probe.Models {
			names = append(names, m.Name)
		}
		fmt.Fprintf(r.out, "%s %s\n", infoStyle.Render("Models:"), strings.Join(names, ", "))
	}

	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, infoStyle.Render("Type your message and press Enter. Commands: /help, /quit"))
	fmt.Fprintln(r.out)
}

func printChatHelp(out io.Writer) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, TitleStyle.Render("Chat Commands"))

	commands := []struct {
		cmd  string
		desc string
	}{
		{"/new", "Start a new chat"},
		{"/load ID", "Load a saved chat"},
		{"/chats", "List saved chats"},
		{"/model [name]", "Show or switch model"},
		{"/system [text]", "Show or set the system prompt"},
		{"/clear", "Clear the transcript"},
		{"/history", "Show the transcript"},
		{"/quit", "Exit chat"},
	}
	for _, c := range commands {
		fmt.Fprintf(out, "  %s  %s\n",
			commandStyle.Render(fmt.Sprintf("%-15s", c.cmd)),
			infoStyle.Render(c.desc))
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, infoStyle.Render("Ctrl+C stops the current reply, Ctrl+D exits"))
	fmt.Fprintln(out)
}

func (r *chatREPL) printChats(ctx context.Context) error {
	chats, err := r.c.ListChats(ctx, r.app.Config.Chat.SidebarLimit)
	if err != nil {
		return err
	}
	if len(chats) == 0 {
		fmt.Fprintln(r.out, infoStyle.Render("[No saved chats]"))
		return nil
	}
	now := time.Now()
	current := r.c.ChatID()
	for _, ch := range chats {
		marker := " "
		if ch.ID == current {
			marker = "*"
		}
		title := ch.Title
		if title == "" {
			title = "New chat"
		}
		fmt.Fprintf(r.out, " %s %s  %s  %s\n",
			marker,
			DimStyle.Render(shortID(ch.ID)),
			util.PadWidth(util.SingleLine(title), 40),
			DimStyle.Render(formatAge(ch.UpdatedAt, now)))
	}
	return nil
}

func (r *chatREPL) printHistory() {
	snap := r.c.Transcript().Snapshot()
	if len(snap.Messages) == 0 {
		fmt.Fprintln(r.out, infoStyle.Render("[No messages yet]"))
		return
	}
	for _, msg := range snap.Messages {
		fmt.Fprintf(r.out, "%s %s\n", roleLabel(msg.Role), util.TruncateRunes(util.SingleLine(msg.Content), 100))
	}
}

func roleLabel(role model.Role) string {
	switch role {
	case model.RoleUser:
		return UserLabelStyle.Render("you>")
	case model.RoleAssistant:
		return AssistantLabelStyle.Render("ai> ")
	default:
		return SystemLabelStyle.Render("sys>")
	}
}

func (r *chatREPL) printExitSummary() {
	if r.turns > 0 {
		fmt.Fprintf(r.out, "%s %d replies in %s\n",
			infoStyle.Render("Session:"),
			r.turns,
			time.Since(r.start).Round(time.Second))
	}
	fmt.Fprintln(r.out, infoStyle.Render("Goodbye!"))
}
