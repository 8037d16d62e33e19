// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build !windows

package setup

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

const startTimeout = 10 * time.Second

// findExecutable searches PATH, then common install locations.
func findExecutable() (string, error) {
	if path, err := exec.LookPath("ollama"); err == nil {
		return path, nil
	}

	candidates := []string{
		"/usr/local/bin/ollama",
		"/usr/bin/ollama",
		"/opt/homebrew/bin/ollama",
		"/opt/ollama/ollama",
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates,
			filepath.Join(home, ".local", "bin", "ollama"),
			filepath.Join(home, "bin", "ollama"),
		)
	}
	candidates = append(candidates, "/Applications/Ollama.app/Contents/Resources/ollama")

	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: checked PATH, /usr/local/bin, /usr/bin, ~/.local/bin", ErrNotInstalled)
}

// spawnServe starts `ollama serve` in its own process group.
func spawnServe(path string) (*os.Process, error) {
	cmd := exec.Command(path, "serve")
	cmd.Env = os.Environ()
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	go func() { _ = cmd.Wait() }()
	return cmd.Process, nil
}

// terminate sends SIGTERM to the server's process group.
func terminate(proc *os.Process) error {
	pgid, err := unix.Getpgid(proc.Pid)
	if err != nil {
		return proc.Signal(unix.SIGTERM)
	}
	return unix.Kill(-pgid, unix.SIGTERM)
}
