// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// setup_cmd.go - The "setup" command: detect, start and stop a local Ollama.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"time"

	"github.com/jeranaias/rigchat/internal/setup"
)

// HandleSetupCommand runs "rigchat setup".
func HandleSetupCommand(args Args) error {
	app, err := NewApp(args, AppOptions{NoStore: true, NoSession: true})
	if err != nil {
		return err
	}
	defer app.CloseWithTimeout(5 * time.Second)

	mgr := setup.NewManager(app.Client, app.Log)
	p := NewArgParser(args.Raw)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	switch p.Subcommand() {
	case "", "detect", "status":
		return OutputJSON(args.JSON, "setup detect", func() (interface{}, error) {
			d := mgr.Detect(ctx)
			if !args.JSON {
				printDetection(d)
			}
			return d, nil
		})

	case "start":
		return OutputJSON(args.JSON, "setup start", func() (interface{}, error) {
			res := mgr.Start(ctx)
			if !args.JSON {
				printAction(res)
			}
			if !res.Success {
				return res, NewCommandError("setup", "start", res.Message, nil)
			}
			if !args.JSON && res.ServiceRunning {
				// the server is a child of this process; keep it alive until Ctrl+C
				fmt.Println(DimStyle.Render("Ollama is running. Press Ctrl+C to stop it."))
				<-ctx.Done()
				printAction(mgr.Stop(context.Background()))
			}
			return res, nil
		})

	case "stop":
		return OutputJSON(args.JSON, "setup stop", func() (interface{}, error) {
			res := mgr.Stop(ctx)
			if !args.JSON {
				printAction(res)
			}
			return res, nil
		})

	default:
		return NewValidationErrorWithExample("subcommand", p.Subcommand(), "unknown setup subcommand",
			"rigchat setup [detect|start|stop]")
	}
}

func printDetection(d setup.Detection) {
	fmt.Println(TitleStyle.Render("Ollama setup"))
	if !d.Installed {
		fmt.Printf("%s Ollama is not installed\n", RenderStatus("fail"))
		fmt.Println()
		fmt.Printf("Install it for %s:\n", runtime.GOOS)
		for _, line := range d.SuggestedInstall {
			fmt.Println("  " + line)
		}
		return
	}
	fmt.Printf("%s installed\n", RenderStatus("ok"))
	fmt.Println(RenderField("Binary:", d.BinaryPath))
	fmt.Println(RenderField("Version:", orDash(d.Version)))
	fmt.Println(RenderField("Installed via:", orDash(d.InstallMethod)))
	if d.ServiceRunning {
		fmt.Printf("%s server is running\n", RenderStatus("ok"))
	} else {
		fmt.Printf("%s server is not running (rigchat setup start)\n", RenderStatus("warn"))
	}
}

func printAction(r setup.ActionResult) {
	status := "ok"
	if !r.Success {
		status = "fail"
	}
	fmt.Printf("%s %s\n", RenderStatus(status), r.Message)
}
