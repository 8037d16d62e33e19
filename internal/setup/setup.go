// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package setup detects a local Ollama install and starts or stops its server.
package setup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrNotInstalled is returned when no ollama binary can be found.
var ErrNotInstalled = errors.New("ollama is not installed")

// Prober reports whether the server answers. *ollama.Client implements it.
type Prober interface {
	CheckRunning(ctx context.Context) error
}

// Detection describes the local Ollama install.
type Detection struct {
	Installed        bool     `json:"installed"`
	Version          string   `json:"version,omitempty"`
	ServiceRunning   bool     `json:"service_running"`
	InstallMethod    string   `json:"installation_method,omitempty"`
	BinaryPath       string   `json:"binary_path,omitempty"`
	SuggestedInstall []string `json:"suggested_install_commands"`
}

// ActionResult is the outcome of Start or Stop.
type ActionResult struct {
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	ServiceRunning bool   `json:"service_running"`
}

// Manager runs detection and owns a server process it started.
type Manager struct {
	prober       Prober
	log          logrus.FieldLogger
	startTimeout time.Duration

	// replaceable for tests
	lookPath func() (string, error)
	output   func(ctx context.Context, name string, args ...string) ([]byte, error)
	spawn    func(path string) (*os.Process, error)

	mu   sync.Mutex
	proc *os.Process
}

// NewManager creates a Manager. log may be nil.
func NewManager(prober Prober, log logrus.FieldLogger) *Manager {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Manager{
		prober:       prober,
		log:          log,
		startTimeout: startTimeout,
		lookPath:     findExecutable,
		output: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).Output()
		},
		spawn: spawnServe,
	}
}

// Detect reports install and service state. It never fails; missing pieces
// are left at their zero value.
func (m *Manager) Detect(ctx context.Context) Detection {
	d := Detection{SuggestedInstall: SuggestedInstall(runtime.GOOS)}

	if path, err := m.lookPath(); err == nil {
		d.Installed = true
		d.BinaryPath = path
		d.InstallMethod = installMethod(path)

		vctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		out, err := m.output(vctx, path, "--version")
		cancel()
		if err == nil {
			d.Version = ParseVersion(string(out))
		} else {
			m.log.WithError(err).Debug("ollama --version failed")
		}
	}

	cctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	d.ServiceRunning = m.prober.CheckRunning(cctx) == nil
	cancel()

	return d
}

// Start launches `ollama serve` in the background and waits until it answers.
func (m *Manager) Start(ctx context.Context) ActionResult {
	if m.prober.CheckRunning(ctx) == nil {
		return ActionResult{Success: true, Message: "Ollama is already running", ServiceRunning: true}
	}

	path, err := m.lookPath()
	if err != nil {
		return ActionResult{Message: err.Error()}
	}

	proc, err := m.spawn(path)
	if err != nil {
		m.log.WithError(err).WithField("path", path).Warn("failed to start ollama")
		return ActionResult{Message: fmt.Sprintf("failed to start Ollama (path: %s): %v", path, err)}
	}
	m.mu.Lock()
	m.proc = proc
	m.mu.Unlock()

	start := time.Now()
	deadline := start.Add(m.startTimeout)
	var lastErr error
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return ActionResult{Message: "Ollama startup cancelled"}
		default:
		}

		checkCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
		lastErr = m.prober.CheckRunning(checkCtx)
		cancel()
		if lastErr == nil {
			elapsed := time.Since(start)
			m.log.WithField("elapsed", elapsed.Round(time.Millisecond)).Info("ollama started")
			return ActionResult{
				Success:        true,
				Message:        fmt.Sprintf("Ollama started (%.1fs)", elapsed.Seconds()),
				ServiceRunning: true,
			}
		}
		time.Sleep(250 * time.Millisecond)
	}

	msg := fmt.Sprintf("Ollama started but not responding after %s", m.startTimeout)
	if lastErr != nil {
		msg += ": " + lastErr.Error()
	}
	return ActionResult{Success: true, Message: msg}
}

// Stop terminates a server started by this Manager. A server started
// elsewhere is left alone.
func (m *Manager) Stop(ctx context.Context) ActionResult {
	m.mu.Lock()
	proc := m.proc
	m.proc = nil
	m.mu.Unlock()

	if proc == nil {
		running := m.prober.CheckRunning(ctx) == nil
		msg := "Ollama is not running"
		if running {
			msg = "Ollama was not started by rigchat; stop it with your service manager"
		}
		return ActionResult{Message: msg, ServiceRunning: running}
	}

	if err := terminate(proc); err != nil {
		m.log.WithError(err).Warn("failed to stop ollama")
		return ActionResult{Message: "failed to stop Ollama: " + err.Error(), ServiceRunning: true}
	}

	// give the server a moment to release its port
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if m.prober.CheckRunning(ctx) != nil {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}

	running := m.prober.CheckRunning(ctx) == nil
	return ActionResult{Success: !running, Message: "Ollama stopped", ServiceRunning: running}
}

var versionPattern = regexp.MustCompile(`\d+\.\d+\.\d+(?:[-+.][0-9A-Za-z.-]+)?`)

// ParseVersion extracts the version from `ollama --version` output.
func ParseVersion(out string) string {
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(strings.ToLower(line), "client version") {
			continue
		}
		if v := versionPattern.FindString(line); v != "" {
			return v
		}
	}
	return versionPattern.FindString(out)
}

// SuggestedInstall lists install commands for goos.
func SuggestedInstall(goos string) []string {
	switch goos {
	case "darwin":
		return []string{"brew install ollama", "Download from https://ollama.com/download/mac"}
	case "windows":
		return []string{"winget install Ollama.Ollama", "Download from https://ollama.com/download/windows"}
	default:
		return []string{"curl -fsSL https://ollama.com/install.sh | sh"}
	}
}

func installMethod(path string) string {
	switch {
	case strings.Contains(path, "/opt/homebrew/"), strings.Contains(path, "/Cellar/"):
		return "homebrew"
	case strings.Contains(path, "Ollama.app"):
		return "app"
	case strings.HasPrefix(path, "/usr/local/bin"), strings.HasPrefix(path, "/usr/bin"):
		return "system"
	case strings.Contains(strings.ToLower(path), `programs\ollama`):
		return "installer"
	default:
		return "manual"
	}
}
