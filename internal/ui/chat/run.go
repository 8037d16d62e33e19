// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// Run shows the chat screen until the user quits or ctx is done. It starts
// the health monitor for the duration of the run.
func Run(ctx context.Context, deps Deps) error {
	if deps.Controller == nil {
		return errors.New("chat: controller is required")
	}
	log := deps.logger()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(New(deps),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)

	bridge := NewBridge(deps, p.Send)
	bridge.Start(ctx)
	defer bridge.Close()

	if deps.Health != nil {
		deps.Health.Start(ctx)
		defer deps.Health.Stop()
	}

	log.Info("tui started")
	_, err := p.Run()
	cancel()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("terminal UI failed: %w", err)
	}
	log.Info("tui stopped")
	return nil
}
