// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// models_cmd.go - The "models" command: list, pull, delete and show local models.
//
// Examples:
//
//	rigchat models                 List installed models
//	rigchat models pull llama3.2   Download a model with progress
//	rigchat models show llama3.2
//	rigchat models delete llama3.2
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/jeranaias/rigchat/internal/ollama"
	"github.com/jeranaias/rigchat/internal/registry"
	"github.com/jeranaias/rigchat/internal/ui/styles"
)

// HandleModelsCommand runs "rigchat models".
func HandleModelsCommand(args Args) error {
	app, err := NewApp(args, AppOptions{NoStore: true, NoSession: true})
	if err != nil {
		return err
	}
	defer app.CloseWithTimeout(5 * time.Second)

	p := NewArgParser(args.Raw)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	switch p.Subcommand() {
	case "", "list", "ls":
		return modelsList(ctx, app, args.JSON)
	case "pull":
		return modelsPull(ctx, app, p.Positional(1), args)
	case "delete", "rm":
		return modelsDelete(ctx, app, p.Positional(1), args.JSON)
	case "show", "info":
		return modelsShow(ctx, app, p.Positional(1), args.JSON)
	default:
		return NewValidationErrorWithExample("subcommand", p.Subcommand(), "unknown models subcommand",
			"rigchat models [list|pull NAME|delete NAME|show NAME]")
	}
}

func modelsList(ctx context.Context, app *App, jsonMode bool) error {
	return OutputJSON(jsonMode, "models list", func() (interface{}, error) {
		models, err := app.Registry.Models(ctx)
		if err != nil {
			return nil, err
		}
		if jsonMode {
			return models, nil
		}

		if len(models) == 0 {
			fmt.Println(DimStyle.Render("No models installed. Try: rigchat models pull llama3.2"))
			return nil, nil
		}
		current := app.Config.DefaultModel
		now := time.Now()
		fmt.Println(TitleStyle.Render(fmt.Sprintf("Models (%d)", len(models))))
		for _, m := range models {
			marker := " "
			if m.Name == current {
				marker = SuccessStyle.Render("*")
			}
			fmt.Printf(" %s %-32s %10s  %-8s %s\n",
				marker,
				m.Name,
				m.FormatSize(),
				m.Details.ParameterSize,
				DimStyle.Render(formatAge(m.ModifiedAt, now)))
		}
		return nil, nil
	})
}

func modelsPull(ctx context.Context, app *App, name string, args Args) error {
	if name == "" {
		return ErrMissingArgument("model name", "rigchat models pull llama3.2")
	}

	showProgress := !args.JSON && !args.Quiet && IsStdoutTTY()
	if showProgress {
		unsub := app.Registry.Subscribe(func(pulls []registry.Pull) {
			for _, p := range pulls {
				if p.Name == name {
					fmt.Print("\r" + renderPull(p, 30))
				}
			}
		})
		defer unsub()
	}

	return OutputJSON(args.JSON, "models pull", func() (interface{}, error) {
		err := app.Registry.Pull(ctx, name)
		if showProgress {
			fmt.Println()
		}
		if err != nil {
			return nil, NewCommandError("models", "pull", name, err)
		}
		if !args.JSON {
			fmt.Printf("%s Pulled %s\n", SuccessStyle.Render("[OK]"), name)
		}
		return map[string]string{"model": name, "status": "success"}, nil
	})
}

// renderPull formats one progress line, padded so \r rewrites cleanly.
func renderPull(p registry.Pull, barWidth int) string {
	status := p.Status
	if len(status) > 24 {
		status = status[:24]
	}
	if p.Progress == nil {
		return fmt.Sprintf("%-24s %s", status, strings.Repeat(" ", barWidth+16))
	}
	return fmt.Sprintf("%-24s [%s] %3d%% %s",
		status,
		styles.RenderProgressBar(barWidth, float64(p.Percent())),
		p.Percent(),
		ollama.FormatBytes(p.Progress.Total))
}

func modelsDelete(ctx context.Context, app *App, name string, jsonMode bool) error {
	if name == "" {
		return ErrMissingArgument("model name", "rigchat models delete llama3.2")
	}
	return OutputJSON(jsonMode, "models delete", func() (interface{}, error) {
		if err := app.Registry.Delete(ctx, name); err != nil {
			if ollama.IsModelNotFound(err) {
				return nil, ErrNotFound("model", name)
			}
			return nil, err
		}
		if !jsonMode {
			fmt.Printf("%s Deleted %s\n", SuccessStyle.Render("[OK]"), name)
		}
		return map[string]string{"deleted": name}, nil
	})
}

func modelsShow(ctx context.Context, app *App, name string, jsonMode bool) error {
	if name == "" {
		name = app.Config.DefaultModel
	}
	if name == "" {
		return ErrMissingArgument("model name", "rigchat models show llama3.2")
	}
	return OutputJSON(jsonMode, "models show", func() (interface{}, error) {
		info, err := app.Registry.Show(ctx, name)
		if err != nil {
			if ollama.IsModelNotFound(err) {
				return nil, ErrNotFound("model", name)
			}
			return nil, err
		}
		if jsonMode {
			return info, nil
		}

		fmt.Println(TitleStyle.Render(name))
		fmt.Println(RenderField("Family:", orDash(info.Details.Family)))
		fmt.Println(RenderField("Parameters:", orDash(info.Details.ParameterSize)))
		fmt.Println(RenderField("Quantization:", orDash(info.Details.QuantizationLevel)))
		fmt.Println(RenderField("Format:", orDash(info.Details.Format)))
		if info.Parameters != "" {
			fmt.Println()
			fmt.Println(LabelStyle.Render("Parameters"))
			for _, line := range strings.Split(strings.TrimSpace(info.Parameters), "\n") {
				fmt.Println("  " + DimStyle.Render(strings.Join(strings.Fields(line), " ")))
			}
		}
		return nil, nil
	})
}
