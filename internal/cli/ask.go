// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ask.go - The "ask" command: one question, one streamed answer.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/ollama"
	"github.com/jeranaias/rigchat/internal/session"
)

// maxStdinPrompt caps a prompt read from a pipe.
const maxStdinPrompt = 1 << 20

// AskResult is the --json payload of ask.
type AskResult struct {
	ChatID           string  `json:"chat_id,omitempty"`
	Model            string  `json:"model"`
	Response         string  `json:"response"`
	PromptTokens     int     `json:"prompt_tokens,omitempty"`
	CompletionTokens int     `json:"completion_tokens,omitempty"`
	DurationMs       int64   `json:"duration_ms,omitempty"`
	TokensPerSecond  float64 `json:"tokens_per_second,omitempty"`
	Stopped          bool    `json:"stopped,omitempty"`
}

// stderrWarner prints persistence warnings for line-mode commands.
type stderrWarner struct{}

func (stderrWarner) Warn(title, message string) {
	fmt.Fprintf(os.Stderr, "%s %s: %s\n", WarningStyle.Render("[Warning]"), title, message)
}

// HandleAskCommand runs "rigchat ask".
func HandleAskCommand(args Args) error {
	query := strings.TrimSpace(args.Query)
	if query == "" && !IsTTY() {
		data, err := io.ReadAll(io.LimitReader(os.Stdin, maxStdinPrompt))
		if err != nil {
			return fmt.Errorf("failed to read prompt from stdin: %w", err)
		}
		query = strings.TrimSpace(string(data))
	}
	if query == "" {
		return ErrMissingArgument("prompt", `rigchat ask "What is a goroutine?"`)
	}

	app, err := NewApp(args, AppOptions{Warner: stderrWarner{}})
	if err != nil {
		return err
	}
	defer app.CloseWithTimeout(5 * time.Second)

	if app.Config.DefaultModel == "" {
		return fmt.Errorf("%w: pass --model or run 'rigchat config set default_model NAME'", session.ErrNoModelSelected)
	}

	var res *AskResult
	if args.NoStream {
		res, err = askOnce(app, query)
	} else {
		res, err = askStreaming(app, args, query)
	}

	if args.JSON {
		if err != nil {
			_ = NewJSONErrorResponse("ask", err).Print()
			return &reportedError{err: err}
		}
		return NewJSONResponse("ask", res).Print()
	}
	if err != nil {
		return err
	}
	if args.NoStream {
		fmt.Println(res.Response)
	}
	if !args.Quiet && app.Config.UI.ShowStats && res.CompletionTokens > 0 {
		fmt.Fprintln(os.Stderr, DimStyle.Render(fmt.Sprintf("[%d tokens, %.1f tok/s]", res.CompletionTokens, res.TokensPerSecond)))
	}
	return nil
}

// askStreaming sends through the session controller so the turn is persisted
// like any other chat.
func askStreaming(app *App, args Args, query string) (*AskResult, error) {
	ctx := context.Background()
	c := app.Controller

	if args.ChatID != "" {
		if err := c.LoadChat(ctx, args.ChatID); err != nil {
			return nil, fmt.Errorf("failed to load chat %s: %w", args.ChatID, err)
		}
	}

	var out io.Writer = os.Stdout
	if args.JSON {
		out = io.Discard
	}

	if err := c.Send(ctx, query, nil); err != nil {
		return nil, err
	}
	msg, stopped, err := streamReply(ctx, c, out, true)
	if err != nil {
		return nil, err
	}
	if !args.JSON {
		fmt.Fprintln(out)
	}

	res := &AskResult{
		ChatID:   c.ChatID(),
		Model:    c.Model(),
		Response: msg.Content,
		Stopped:  stopped,
	}
	if msg.Stats != nil {
		res.PromptTokens = msg.Stats.PromptTokens
		res.CompletionTokens = msg.Stats.CompletionTokens
		res.DurationMs = msg.Stats.TotalDuration.Milliseconds()
		res.TokensPerSecond = msg.Stats.TokensPerSecond()
	}
	if strings.HasPrefix(msg.Content, session.ErrorPrefix) {
		return res, errors.New(strings.TrimPrefix(msg.Content, session.ErrorPrefix))
	}
	return res, nil
}

// askOnce waits for the whole reply with a single non-streaming request and
// records both turns in a new chat.
func askOnce(app *App, query string) (*AskResult, error) {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cfg := app.Config
	var msgs []ollama.Message
	if cfg.SystemPrompt != "" {
		msgs = append(msgs, ollama.NewSystemMessage(cfg.SystemPrompt))
	}
	msgs = append(msgs, ollama.NewUserMessage(query))

	resp, err := app.Client.Chat(ctx, cfg.DefaultModel, msgs, cfg.GenerationOptions())
	if err != nil {
		return nil, err
	}

	res := &AskResult{
		Model:            cfg.DefaultModel,
		Response:         resp.Message.Content,
		PromptTokens:     resp.PromptEvalCount,
		CompletionTokens: resp.EvalCount,
		DurationMs:       time.Duration(resp.TotalDuration).Milliseconds(),
		TokensPerSecond:  resp.TokensPerSecond(),
	}

	chatID, err := app.Store.CreateChat(ctx, cfg.DefaultModel, cfg.SystemPrompt, "")
	if err != nil {
		stderrWarner{}.Warn("Chat not saved", err.Error())
		return res, nil
	}
	res.ChatID = chatID
	if _, err := app.Store.AppendMessage(ctx, chatID, string(model.RoleUser), query, ""); err != nil {
		stderrWarner{}.Warn("Message not saved", err.Error())
		return res, nil
	}
	stats := &model.Stats{
		PromptTokens:     resp.PromptEvalCount,
		CompletionTokens: resp.EvalCount,
		TotalDuration:    time.Duration(resp.TotalDuration),
		EvalDuration:     time.Duration(resp.EvalDuration),
	}
	if _, err := app.Store.AppendMessage(ctx, chatID, string(model.RoleAssistant), res.Response, session.EncodeStats(stats)); err != nil {
		stderrWarner{}.Warn("Reply not saved", err.Error())
	}
	return res, nil
}

// streamReply prints the live assistant message of c to out as it grows and
// returns the settled message once the controller is idle, and whether it was
// stopped. Ctrl+C stops the stream; the partial reply is kept.
func streamReply(ctx context.Context, c *session.Controller, out io.Writer, interruptible bool) (*model.Message, bool, error) {
	target := c.State().Session.TargetMessageID
	t := c.Transcript()

	changed := make(chan struct{}, 1)
	unsub := t.Subscribe(func(model.Snapshot) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer unsub()

	if interruptible {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt)
		defer signal.Stop(sigCh)
		done := make(chan struct{})
		defer close(done)
		go func() {
			select {
			case <-sigCh:
				c.Stop()
			case <-done:
			}
		}()
	}

	idle := make(chan error, 1)
	go func() { idle <- c.WaitIdle(ctx) }()

	p := &deltaPrinter{out: out}
	for {
		select {
		case <-changed:
			if msg, ok := t.Find(target); ok {
				p.print(msg.Content)
			}
		case err := <-idle:
			if err != nil {
				return nil, false, err
			}
			msg, ok := t.Find(target)
			if !ok {
				return nil, false, fmt.Errorf("reply %s is no longer in the transcript", target)
			}
			p.print(msg.Content)
			return msg, c.State().Session.Status == session.StatusCancelled, nil
		}
	}
}

// deltaPrinter writes only what was appended since the last call. A rewrite
// that is not an extension, such as an error marker, starts a fresh line.
type deltaPrinter struct {
	out     io.Writer
	printed string
}

func (p *deltaPrinter) print(content string) {
	switch {
	case content == p.printed:
		return
	case strings.HasPrefix(content, p.printed):
		fmt.Fprint(p.out, content[len(p.printed):])
	default:
		if p.printed != "" {
			fmt.Fprintln(p.out)
		}
		fmt.Fprint(p.out, content)
	}
	p.printed = content
}
