// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// app.go - Wiring of config, logging, storage, backend and session for the
// commands and the TUI.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/jeranaias/rigchat/internal/config"
	"github.com/jeranaias/rigchat/internal/events"
	"github.com/jeranaias/rigchat/internal/health"
	"github.com/jeranaias/rigchat/internal/logging"
	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/notify"
	"github.com/jeranaias/rigchat/internal/ollama"
	"github.com/jeranaias/rigchat/internal/registry"
	"github.com/jeranaias/rigchat/internal/session"
	"github.com/jeranaias/rigchat/internal/storage"
)

// AppOptions selects which parts of the App are built.
type AppOptions struct {
	// LogToFile sends logs to the configured log file instead of stderr.
	LogToFile bool
	// NoStore skips opening the database.
	NoStore bool
	// NoSession skips the transcript and controller.
	NoSession bool
	// Warner receives persistence warnings. Defaults to the notification center.
	Warner session.Warner
}

// App holds the long-lived components shared by a command run.
type App struct {
	Config     *config.Config
	ConfigPath string
	Log        *logrus.Logger

	Store      *storage.Store
	Bus        *events.Bus
	Client     *ollama.Client
	Generator  *ollama.Generator
	Registry   *registry.Registry
	Transcript *model.Transcript
	Controller *session.Controller
	Notify     *notify.Center
	Health     *health.Monitor

	logCloser io.Closer
}

// Startup is what the parallel startup probes found.
type Startup struct {
	Health    ollama.HealthStatus
	Models    []ollama.ModelInfo
	ModelsErr error
	Chats     []storage.ChatWithFlags
}

// LoadConfig loads --config when given, else the default locations, and
// applies the command-line overrides.
func LoadConfig(args Args) (*config.Config, string, error) {
	var (
		cfg  *config.Config
		path = args.ConfigPath
		err  error
	)

	if path != "" {
		if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
			cfg = config.Default()
			cfg.ApplyEnvOverrides()
			cfg.SetDefaults()
		} else {
			cfg, err = config.LoadFromPath(path)
		}
	} else {
		cfg, err = config.Load()
		path, _ = config.ConfigPathTOML()
	}
	if cfg == nil {
		return nil, path, err
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
	}

	if args.Model != "" {
		cfg.DefaultModel = args.Model
	}
	if args.URL != "" {
		cfg.Server.URL = args.URL
	}
	if args.Verbose {
		cfg.Log.Level = "debug"
	}
	config.SetGlobal(cfg)
	return cfg, path, nil
}

// NewApp builds the components for one run.
func NewApp(args Args, opts AppOptions) (*App, error) {
	cfg, path, err := LoadConfig(args)
	if err != nil {
		return nil, err
	}

	logCfg := logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format}
	if opts.LogToFile {
		logCfg.File = cfg.LogFile()
	} else if !args.Verbose {
		// command output owns the terminal
		logCfg.Level = "warn"
	}
	log, closer, err := logging.New(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open log: %w", err)
	}
	logging.SetDefault(log)

	a := &App{
		Config:     cfg,
		ConfigPath: path,
		Log:        log,
		logCloser:  closer,
		Bus:        events.NewBus(),
		Notify:     notify.NewCenter(),
	}

	a.Client = ollama.NewClientWithConfig(cfg.ClientConfig())
	a.Generator = ollama.NewGenerator(a.Client, a.Bus, log)
	a.Registry = registry.New(a.Client, log)
	a.Health = health.NewMonitor(a.Client,
		health.WithInterval(cfg.HealthInterval()),
		health.WithTimeout(cfg.HealthTimeout()),
		health.WithLogger(log),
	)

	if !opts.NoStore {
		store, err := storage.Open(cfg.DatabasePath())
		if err != nil {
			a.closeLog()
			return nil, fmt.Errorf("failed to open chat database: %w", err)
		}
		a.Store = store
	}

	if !opts.NoSession && a.Store != nil {
		warner := opts.Warner
		if warner == nil {
			warner = a.Notify
		}
		a.Transcript = model.NewTranscript(log)
		a.Controller = session.New(a.Store, a.Generator, a.Bus, a.Transcript, session.Config{
			Model:         cfg.DefaultModel,
			SystemPrompt:  cfg.SystemPrompt,
			Options:       cfg.GenerationOptions(),
			StreamTimeout: cfg.StreamTimeout(),
			HistoryLimit:  cfg.Chat.HistoryLimit,
			Logger:        log,
			Warner:        warner,
		})
	}

	log.WithFields(logrus.Fields{
		"server":   cfg.Server.URL,
		"model":    cfg.DefaultModel,
		"database": cfg.DatabasePath(),
	}).Debug("app initialized")
	return a, nil
}

// Probe checks the server, lists models and lists chats in parallel. Only a
// storage failure is returned as an error; server problems are reported in
// the result.
func (a *App) Probe(ctx context.Context) (Startup, error) {
	var res Startup
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		res.Health = a.Health.Check(gctx).HealthStatus
		return nil
	})
	g.Go(func() error {
		res.Models, res.ModelsErr = a.Registry.Models(gctx)
		return nil
	})
	if a.Store != nil {
		g.Go(func() error {
			chats, err := a.Store.ListChatsWithFlags(gctx, a.Config.Chat.SidebarLimit)
			if err != nil {
				return fmt.Errorf("failed to list chats: %w", err)
			}
			res.Chats = chats
			return nil
		})
	}

	err := g.Wait()
	return res, err
}

// Close shuts the controller down and releases storage and the log file.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Controller != nil {
		if err := a.Controller.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if a.Generator != nil {
		_ = a.Generator.AbortGeneration(ctx)
		if err := a.Generator.Wait(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.Health.Stop()
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closeLog()
	return errors.Join(errs...)
}

// CloseWithTimeout is Close bounded by d.
func (a *App) CloseWithTimeout(d time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return a.Close(ctx)
}

func (a *App) closeLog() {
	if a.logCloser != nil {
		_ = a.logCloser.Close()
		a.logCloser = nil
	}
}
