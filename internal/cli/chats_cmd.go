// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chats_cmd.go - The "chats" command: list, show, delete and export saved chats.
//
// Examples:
//
//	rigchat chats                          List recent chats
//	rigchat chats show 4b9c                Show a chat (ID prefix is enough)
//	rigchat chats delete 4b9c
//	rigchat chats export 4b9c --output chat.json
package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/session"
	"github.com/jeranaias/rigchat/internal/storage"
	"github.com/jeranaias/rigchat/internal/util"
)

// resolveLimit bounds the scan used to expand an ID prefix.
const resolveLimit = 10000

// chatLister lists chats newest first.
type chatLister func(ctx context.Context, limit int) ([]storage.ChatWithFlags, error)

// resolveChatID expands a unique ID prefix to a full chat ID.
func resolveChatID(ctx context.Context, list chatLister, prefix string) (string, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return "", ErrMissingArgument("chat id", "rigchat chats show 4b9c1e2a")
	}
	chats, err := list(ctx, resolveLimit)
	if err != nil {
		return "", err
	}

	var matches []string
	for _, c := range chats {
		if c.ID == prefix {
			return c.ID, nil
		}
		if strings.HasPrefix(c.ID, prefix) {
			matches = append(matches, c.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", ErrNotFound("chat", prefix)
	case 1:
		return matches[0], nil
	default:
		return "", &ValidationError{
			Field:  "chat id",
			Value:  prefix,
			Reason: fmt.Sprintf("prefix matches %d chats", len(matches)),
		}
	}
}

// ChatSummary is one row of "chats list --json".
type ChatSummary struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Model       string    `json:"model,omitempty"`
	HasMessages bool      `json:"has_messages"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// HandleChatsCommand runs "rigchat chats".
func HandleChatsCommand(args Args) error {
	app, err := NewApp(args, AppOptions{NoSession: true})
	if err != nil {
		return err
	}
	defer app.CloseWithTimeout(5 * time.Second)

	p := NewArgParser(args.Raw)
	ctx := context.Background()

	switch p.Subcommand() {
	case "", "list", "ls":
		return chatsList(ctx, app, p, args.JSON)
	case "show", "view":
		return chatsShow(ctx, app, p, args.JSON)
	case "delete", "rm":
		return chatsDelete(ctx, app, p, args.JSON)
	case "export":
		return chatsExport(ctx, app, p, args.JSON)
	default:
		return NewValidationErrorWithExample("subcommand", p.Subcommand(), "unknown chats subcommand",
			"rigchat chats [list|show ID|delete ID|export ID]")
	}
}

func chatsList(ctx context.Context, app *App, p *ArgParser, jsonMode bool) error {
	limit := p.FlagIntOrDefault("limit", app.Config.Chat.SidebarLimit)

	return OutputJSON(jsonMode, "chats list", func() (interface{}, error) {
		chats, err := app.Store.ListChatsWithFlags(ctx, limit)
		if err != nil {
			return nil, err
		}

		rows := make([]ChatSummary, 0, len(chats))
		for _, c := range chats {
			rows = append(rows, ChatSummary{
				ID:          c.ID,
				Title:       c.Title,
				Model:       c.Model,
				HasMessages: c.HasMessages,
				CreatedAt:   c.CreatedAt,
				UpdatedAt:   c.UpdatedAt,
			})
		}
		if jsonMode {
			return rows, nil
		}

		if len(rows) == 0 {
			fmt.Println(DimStyle.Render("No saved chats."))
			return nil, nil
		}
		fmt.Println(TitleStyle.Render(fmt.Sprintf("Chats (%d)", len(rows))))
		now := time.Now()
		titleWidth := GetTerminalWidth() - 40
		if titleWidth < 20 {
			titleWidth = 20
		}
		for _, r := range rows {
			title := r.Title
			if title == "" {
				title = "New chat"
			}
			fmt.Printf("  %s  %s  %-18s %s\n",
				DimStyle.Render(shortID(r.ID)),
				util.PadWidth(util.SingleLine(title), titleWidth),
				util.TruncateWidth(r.Model, 18),
				DimStyle.Render(formatAge(r.UpdatedAt, now)))
		}
		return nil, nil
	})
}

func chatsShow(ctx context.Context, app *App, p *ArgParser, jsonMode bool) error {
	id, err := resolveChatID(ctx, app.Store.ListChatsWithFlags, p.Positional(1))
	if err != nil {
		return err
	}
	limit := p.FlagIntOrDefault("limit", app.Config.Chat.HistoryLimit)

	return OutputJSON(jsonMode, "chats show", func() (interface{}, error) {
		exp, err := app.Store.ExportChat(ctx, id, limit)
		if err != nil {
			return nil, err
		}
		if jsonMode {
			return exp, nil
		}

		fmt.Println(TitleStyle.Render("Chat " + exp.Chat.ID))
		fmt.Println(RenderField("Model:", orDash(exp.Chat.Model)))
		fmt.Println(RenderField("Created:", exp.Chat.CreatedAt.Local().Format(time.RFC1123)))
		if exp.Chat.SystemPrompt != "" {
			fmt.Println(RenderField("System prompt:", util.SingleLine(exp.Chat.SystemPrompt)))
		}
		fmt.Println(RenderSeparator())

		for _, m := range exp.Messages {
			role := model.ParseRole(m.Role)
			fmt.Printf("%s %s\n", roleLabel(role), m.Content)
			if st := session.DecodeStats(m.MetaJSON); st != nil && app.Config.UI.ShowStats {
				fmt.Println(DimStyle.Render("     [" + st.Format() + "]"))
			}
			fmt.Println()
		}
		return nil, nil
	})
}

func chatsDelete(ctx context.Context, app *App, p *ArgParser, jsonMode bool) error {
	id, err := resolveChatID(ctx, app.Store.ListChatsWithFlags, p.Positional(1))
	if err != nil {
		return err
	}

	return OutputJSON(jsonMode, "chats delete", func() (interface{}, error) {
		ok, err := app.Store.DeleteChat(ctx, id)
		if err != nil {
			return nil, NewCommandError("chats", "delete", "database error", err)
		}
		if !ok {
			return nil, ErrNotFound("chat", id)
		}
		if !jsonMode {
			fmt.Printf("%s Deleted chat %s\n", SuccessStyle.Render("[OK]"), id)
		}
		return map[string]string{"deleted": id}, nil
	})
}

func chatsExport(ctx context.Context, app *App, p *ArgParser, jsonMode bool) error {
	id, err := resolveChatID(ctx, app.Store.ListChatsWithFlags, p.Positional(1))
	if err != nil {
		return err
	}
	out := p.FlagOrDefault("output", fmt.Sprintf("chat-%s.json", shortID(id)))
	limit := p.FlagIntOrDefault("limit", app.Config.Chat.HistoryLimit)

	return OutputJSON(jsonMode, "chats export", func() (interface{}, error) {
		if err := app.Store.ExportChatToFile(ctx, id, out, limit); err != nil {
			return nil, NewCommandError("chats", "export", "write failed", err)
		}
		if !jsonMode {
			fmt.Printf("%s Exported chat %s to %s\n", SuccessStyle.Render("[OK]"), shortID(id), out)
		}
		return map[string]string{"chat_id": id, "path": out}, nil
	})
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
