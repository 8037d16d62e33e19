// rigchat - Chat with local models served by Ollama, in the terminal.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jeranaias/rigchat/internal/cli"
	"github.com/jeranaias/rigchat/internal/setup"
	"github.com/jeranaias/rigchat/internal/ui/chat"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// shutdownTimeout bounds flushing pending chat writes on exit.
const shutdownTimeout = 5 * time.Second

func init() {
	// Sync version info with cli package
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	cmd, args := cli.Parse()

	if cmd != cli.CmdTUI {
		cli.Exit(cli.Run(cmd, args), args.JSON)
	}
	cli.Exit(runTUI(args), false)
}

// runTUI starts the full-screen chat. Logs go to the log file because the
// terminal belongs to the UI.
func runTUI(args cli.Args) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := cli.NewApp(args, cli.AppOptions{LogToFile: true})
	if err != nil {
		return err
	}
	defer func() {
		if err := app.CloseWithTimeout(shutdownTimeout); err != nil {
			app.Log.WithError(err).Warn("shutdown incomplete")
		}
	}()

	probe, err := app.Probe(ctx)
	if err != nil {
		return err
	}
	app.Log.WithField("connected", probe.Health.Connected).
		WithField("models", len(probe.Models)).
		WithField("chats", len(probe.Chats)).
		Info("startup probe finished")

	if app.Controller.Model() == "" && len(probe.Models) > 0 {
		app.Notify.Info("Pick a model", fmt.Sprintf("%d local models found. Press Ctrl+P to choose one.", len(probe.Models)))
	}

	return chat.Run(ctx, chat.Deps{
		Config:     app.Config,
		ConfigPath: app.ConfigPath,
		Controller: app.Controller,
		Bus:        app.Bus,
		Registry:   app.Registry,
		Notify:     app.Notify,
		Health:     app.Health,
		Setup:      setup.NewManager(app.Client, app.Log),
		Log:        app.Log,
	})
}
