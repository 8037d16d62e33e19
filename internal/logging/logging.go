// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging configures the structured logger shared by every component.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Config selects level, format and destination of the logger.
type Config struct {
	Level  string // debug, info, warn, error
	Format string // text or json
	File   string // empty means Output
	Output io.Writer
}

var (
	defaultMu     sync.RWMutex
	defaultLogger = newDiscard()
)

// New builds a logrus logger from cfg. When cfg.File is set the file is
// opened in append mode and returned as the io.Closer the caller must close.
func New(cfg Config) (*logrus.Logger, io.Closer, error) {
	log := logrus.New()
	log.SetLevel(ParseLevel(cfg.Level))

	switch strings.ToLower(cfg.Format) {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	var closer io.Closer = nopCloser{}
	switch {
	case cfg.File != "":
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0700); err != nil {
			return nil, nil, err
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return nil, nil, err
		}
		log.SetOutput(f)
		closer = f
	case cfg.Output != nil:
		log.SetOutput(cfg.Output)
	default:
		log.SetOutput(os.Stderr)
	}

	return log, closer, nil
}

// ParseLevel maps a level name to a logrus level, defaulting to info.
func ParseLevel(level string) logrus.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// L returns the process-wide logger. It discards output until SetDefault is called.
func L() *logrus.Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// SetDefault replaces the process-wide logger.
func SetDefault(log *logrus.Logger) {
	if log == nil {
		return
	}
	defaultMu.Lock()
	defaultLogger = log
	defaultMu.Unlock()
}

// Discard returns a logger that drops everything. Useful in tests.
func Discard() *logrus.Logger {
	return newDiscard()
}

func newDiscard() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
