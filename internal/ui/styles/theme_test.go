// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
)

func TestNewTheme(t *testing.T) {
	theme := NewTheme()
	if theme == nil {
		t.Fatal("NewTheme() returned nil")
	}

	styles := []struct {
		name  string
		style lipgloss.Style
	}{
		{"Header", theme.Header},
		{"Sidebar", theme.Sidebar},
		{"UserBubble", theme.UserBubble},
		{"AssistantBody", theme.AssistantBody},
		{"InputContainer", theme.InputContainer},
		{"StatusBar", theme.StatusBar},
		{"OverlayBox", theme.OverlayBox},
		{"ToastError", theme.ToastError},
	}
	for _, s := range styles {
		if s.style.Render("test") == "" {
			t.Errorf("%s style should render", s.name)
		}
	}
}

func TestThemeLayoutMode(t *testing.T) {
	theme := NewTheme()
	tests := []struct {
		width   int
		want    LayoutMode
		sidebar int
	}{
		{40, LayoutNarrow, 0},
		{59, LayoutNarrow, 0},
		{60, LayoutMedium, 24},
		{99, LayoutMedium, 24},
		{100, LayoutWide, 32},
		{200, LayoutWide, 32},
	}

	for _, tc := range tests {
		theme.SetSize(tc.width, 30)
		if got := theme.GetLayoutMode(); got != tc.want {
			t.Errorf("width %d: layout = %v, want %v", tc.width, got, tc.want)
		}
		if got := theme.SidebarWidth(); got != tc.sidebar {
			t.Errorf("width %d: sidebar = %d, want %d", tc.width, got, tc.sidebar)
		}
	}
	if theme.Height != 30 {
		t.Errorf("Height = %d, want 30", theme.Height)
	}
}

func TestApplyMode(t *testing.T) {
	orig := lipgloss.HasDarkBackground()
	defer lipgloss.SetHasDarkBackground(orig)

	ApplyMode("light")
	if lipgloss.HasDarkBackground() {
		t.Error("light mode should clear the dark background flag")
	}
	ApplyMode("DARK")
	if !lipgloss.HasDarkBackground() {
		t.Error("dark mode should set the dark background flag")
	}
	ApplyMode("auto")
	if !lipgloss.HasDarkBackground() {
		t.Error("auto should leave the flag alone")
	}
}
