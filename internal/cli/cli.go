// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - CLI parsing and command dispatch for rigchat.
package cli

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdTUI Command = iota
	CmdChat
	CmdAsk
	CmdChats
	CmdModels
	CmdHealth
	CmdSetup
	CmdConfig
	CmdVersion
	CmdHelp
)

func (c Command) String() string {
	switch c {
	case CmdTUI:
		return "tui"
	case CmdChat:
		return "chat"
	case CmdAsk:
		return "ask"
	case CmdChats:
		return "chats"
	case CmdModels:
		return "models"
	case CmdHealth:
		return "health"
	case CmdSetup:
		return "setup"
	case CmdConfig:
		return "config"
	case CmdVersion:
		return "version"
	case CmdHelp:
		return "help"
	default:
		return "unknown"
	}
}

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	Model      string
	URL        string
	ConfigPath string
	JSON       bool
	Verbose    bool
	Quiet      bool

	// Command-specific
	Subcommand string
	Query      string
	NoStream   bool
	ChatID     string

	// Remaining arguments after the command name, for ArgParser.
	Raw []string

	// Unknown is set when the command name was not recognized.
	Unknown string
}

const usageText = `rigchat - chat with local models served by Ollama

Usage:
  rigchat                          Start the terminal UI (default)
  rigchat chat [--model M]         Line-mode chat
  rigchat ask "prompt"             Ask a single question
  rigchat chats [list|show|delete|export]
                                   Manage saved chats
  rigchat models [list|pull|delete|show]
                                   Manage local models
  rigchat health                   Check the Ollama server
  rigchat setup [detect|start|stop]
                                   Detect, start or stop Ollama
  rigchat config [show|get|set|path]
                                   Configuration
  rigchat version                  Show version
  rigchat help                     Show this help

Global Flags:
  --model M        Model to use (overrides default_model)
  --url URL        Ollama server URL
  --config PATH    Config file (default ~/.rigchat/config.toml)
  --json           JSON output where supported
  -v, --verbose    Debug logging
  -q, --quiet      Less output

Ask Flags:
  --no-stream      Wait for the full reply instead of streaming
  --chat ID        Continue an existing chat

Chat Commands (inside rigchat chat):
  /new             Start a new chat
  /load ID         Load a saved chat
  /chats           List saved chats
  /model [M]       Show or switch the model
  /system [TEXT]   Show or set the system prompt
  /clear           Clear the screen transcript
  /help            Show chat commands
  /quit            Exit
  Ctrl+C stops the reply in progress, Ctrl+D exits.

Examples:
  rigchat ask "What is a goroutine?" --model llama3.2
  rigchat chats export 4b9c... --output chat.json
  rigchat models pull qwen2.5:7b
  rigchat config set chat.stream_timeout_secs 120

Version: %s
`

// PrintUsage prints the usage/help text.
func PrintUsage() {
	fmt.Printf(usageText, Version)
}

// PrintVersion prints version information.
func PrintVersion() {
	fmt.Printf("rigchat version %s\n", Version)
	fmt.Printf("  Git commit: %s\n", GitCommit)
	fmt.Printf("  Build date: %s\n", BuildDate)
	fmt.Printf("  Go:         %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// Parse parses os.Args.
func Parse() (Command, Args) {
	return ParseArgs(os.Args[1:])
}

// ParseArgs parses argv (without the program name) into a command and its args.
func ParseArgs(argv []string) (Command, Args) {
	remaining, args := parseGlobalFlags(argv)
	if len(remaining) == 0 {
		return CmdTUI, args
	}

	name := strings.ToLower(remaining[0])
	rest := remaining[1:]
	args.Raw = rest

	var cmd Command
	switch name {
	case "tui", "ui":
		cmd = CmdTUI
	case "chat", "c":
		cmd = CmdChat
	case "ask", "a":
		cmd = CmdAsk
		parseAskArgs(&args, rest)
	case "chats", "history":
		cmd = CmdChats
	case "models", "model", "m":
		cmd = CmdModels
	case "health", "status", "s":
		cmd = CmdHealth
	case "setup":
		cmd = CmdSetup
	case "config", "cfg":
		cmd = CmdConfig
	case "version", "--version", "-V":
		cmd = CmdVersion
	case "help", "--help", "-h":
		cmd = CmdHelp
	default:
		args.Unknown = remaining[0]
		return CmdHelp, args
	}

	if cmd != CmdAsk && len(rest) > 0 {
		args.Subcommand = NewArgParser(rest).Subcommand()
	}
	return cmd, args
}

// parseGlobalFlags pulls the flags valid for every command out of argv. Flags
// it does not know are left in place for the command parser.
func parseGlobalFlags(argv []string) ([]string, Args) {
	var args Args
	remaining := make([]string, 0, len(argv))

	for i := 0; i < len(argv); i++ {
		arg := argv[i]
		name, value, hasValue := strings.Cut(arg, "=")

		takeValue := func() (string, bool) {
			if hasValue {
				return value, true
			}
			if i+1 < len(argv) {
				i++
				return argv[i], true
			}
			return "", false
		}

		switch name {
		case "--model":
			if v, ok := takeValue(); ok {
				args.Model = v
			}
		case "--url":
			if v, ok := takeValue(); ok {
				args.URL = v
			}
		case "--config":
			if v, ok := takeValue(); ok {
				args.ConfigPath = v
			}
		case "--json":
			args.JSON = true
		case "--verbose", "-v":
			args.Verbose = true
		case "--quiet", "-q":
			args.Quiet = true
		default:
			remaining = append(remaining, arg)
		}
	}
	return remaining, args
}

// parseAskArgs collects the prompt text and ask-specific flags.
func parseAskArgs(args *Args, remaining []string) {
	p := NewArgParser(remaining)
	args.NoStream = p.BoolFlag("no-stream")
	args.ChatID = p.Flag("chat")
	args.Query = JoinPositionalArgs(p, 0)
}

// =============================================================================
// COMMAND HANDLERS
// =============================================================================

// Run executes a non-TUI command and returns its error.
func Run(cmd Command, args Args) error {
	switch cmd {
	case CmdChat:
		return HandleChatCommand(args)
	case CmdAsk:
		return HandleAskCommand(args)
	case CmdChats:
		return HandleChatsCommand(args)
	case CmdModels:
		return HandleModelsCommand(args)
	case CmdHealth:
		return HandleHealthCommand(args)
	case CmdSetup:
		return HandleSetupCommand(args)
	case CmdConfig:
		return HandleConfigCommand(args)
	case CmdVersion:
		return HandleVersion(args)
	default:
		return HandleHelp(args)
	}
}

// Exit prints err the way every command reports failures and exits.
func Exit(err error, jsonMode bool) {
	if err == nil {
		os.Exit(ExitSuccess)
	}
	var reported *reportedError
	switch {
	case errors.As(err, &reported):
	case jsonMode:
		DisplayErrorJSON(err)
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(GetExitCode(err))
}

// HandleVersion prints version information, as JSON with --json.
func HandleVersion(args Args) error {
	if args.JSON {
		return NewJSONResponse("version", map[string]string{
			"version":    Version,
			"git_commit": GitCommit,
			"build_date": BuildDate,
			"go_version": runtime.Version(),
			"platform":   runtime.GOOS + "/" + runtime.GOARCH,
		}).Print()
	}
	PrintVersion()
	return nil
}

// HandleHelp prints usage. An unknown command is reported as a usage error
// naming the closest known command.
func HandleHelp(args Args) error {
	if args.Unknown == "" {
		PrintUsage()
		return nil
	}
	example := "rigchat help"
	if s := SuggestCommand(args.Unknown); s != "" {
		example = "rigchat " + s
	}
	return NewValidationErrorWithExample("command", args.Unknown, "unknown command", example)
}
