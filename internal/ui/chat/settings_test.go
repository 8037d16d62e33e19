// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/jeranaias/rigchat/internal/config"
	"github.com/jeranaias/rigchat/internal/ui/styles"
)

func TestApplySetting_SavesAndReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg := config.Default()

	next, err := applySetting(cfg, path, "generation.temperature", "0.7")
	if err != nil {
		t.Fatalf("applySetting: %v", err)
	}
	if next.Generation.Temperature == nil || *next.Generation.Temperature != 0.7 {
		t.Fatalf("temperature = %v, want 0.7", next.Generation.Temperature)
	}
	if cfg.Generation.Temperature != nil {
		t.Error("applySetting modified the original config")
	}

	loaded, err := config.LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if loaded.Generation.Temperature == nil || *loaded.Generation.Temperature != 0.7 {
		t.Errorf("saved temperature = %v, want 0.7", loaded.Generation.Temperature)
	}

	// empty clears optional values
	cleared, err := applySetting(next, path, "generation.temperature", "")
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if cleared.Generation.Temperature != nil {
		t.Errorf("temperature = %v after clearing, want nil", *cleared.Generation.Temperature)
	}
}

func TestApplySetting_Rejects(t *testing.T) {
	cfg := config.Default()
	tests := []struct {
		key   string
		value string
	}{
		{"ui.theme", "neon"},
		{"generation.temperature", "5"},
		{"generation.top_k", "many"},
		{"no.such.key", "1"},
	}
	for _, tt := range tests {
		if _, err := applySetting(cfg, "", tt.key, tt.value); err == nil {
			t.Errorf("applySetting(%s=%s) succeeded, want error", tt.key, tt.value)
		}
	}
	if cfg.UI.Theme != "dark" {
		t.Errorf("theme = %q after rejected edits, want dark", cfg.UI.Theme)
	}
}

func TestSettings_Navigation(t *testing.T) {
	s := newSettings()
	s.open(config.Default())

	s.move(-1)
	if s.field().Key != settingFields[len(settingFields)-1].Key {
		t.Errorf("moving up from the top selected %q", s.field().Key)
	}
	s.move(1)
	if s.cursor != 0 {
		t.Errorf("cursor = %d, want 0", s.cursor)
	}

	s.cursor = indexOfSetting(t, "ui.theme")
	s.edit()
	if !s.editing {
		t.Fatal("edit did not enter edit mode")
	}
	key, value := s.submitted()
	if key != "ui.theme" || value != "dark" {
		t.Errorf("submitted = %s=%q, want ui.theme=dark", key, value)
	}

	s.cancelEdit()
	if s.editing {
		t.Error("cancelEdit left edit mode on")
	}
}

func TestSettings_View(t *testing.T) {
	s := newSettings()
	s.open(config.Default())
	out := s.view(styles.NewTheme(), 100)

	for _, want := range []string{"Settings", "Default model", "(unset)", "Theme", "dark", "Enter edit"} {
		if !strings.Contains(out, want) {
			t.Errorf("view missing %q:\n%s", want, out)
		}
	}

	s.err = "ui.theme: must be dark, light or auto"
	if out := s.view(styles.NewTheme(), 100); !strings.Contains(out, "must be dark") {
		t.Errorf("view does not show the error:\n%s", out)
	}
}

func indexOfSetting(t *testing.T, key string) int {
	t.Helper()
	for i, f := range settingFields {
		if f.Key == key {
			return i
		}
	}
	t.Fatalf("no setting %q", key)
	return -1
}
