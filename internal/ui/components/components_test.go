// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/notify"
	"github.com/jeranaias/rigchat/internal/registry"
	"github.com/jeranaias/rigchat/internal/session"
	"github.com/jeranaias/rigchat/internal/ui/styles"
)

// =============================================================================
// FUZZY TESTS
// =============================================================================

func TestFuzzyMatch(t *testing.T) {
	tests := []struct {
		query, target string
		want          bool
	}{
		{"", "anything", true},
		{"l32", "llama3.2:latest", true},
		{"qw7", "qwen2.5:7b", true},
		{"QWEN", "qwen2.5:7b", true},
		{"xyz", "mistral", false},
		{"toolong", "abc", false},
		{"ba", "abc", false},
	}
	for _, tc := range tests {
		if _, got := FuzzyMatch(tc.query, tc.target); got != tc.want {
			t.Errorf("FuzzyMatch(%q, %q) matched = %v, want %v", tc.query, tc.target, got, tc.want)
		}
	}
}

func TestFuzzyMatch_PrefersPrefixAndRuns(t *testing.T) {
	prefix, _ := FuzzyMatch("lla", "llama3.2")
	scattered, _ := FuzzyMatch("lla", "deepseek-llm-a")
	if prefix <= scattered {
		t.Errorf("prefix score %d should beat scattered score %d", prefix, scattered)
	}
}

func TestFuzzyFilter(t *testing.T) {
	items := []string{"mistral:7b", "llama3.2:latest", "llava:13b", "qwen2.5:7b"}

	got := FuzzyFilter("lla", items, func(s string) string { return s })
	if len(got) != 2 {
		t.Fatalf("FuzzyFilter(lla) = %v, want the two llama/llava models", got)
	}
	for _, g := range got {
		if !strings.HasPrefix(g, "lla") {
			t.Errorf("unexpected match %q", g)
		}
	}

	if all := FuzzyFilter("", items, func(s string) string { return s }); len(all) != len(items) {
		t.Errorf("empty query should keep all items, got %v", all)
	}
	if none := FuzzyFilter("zzz", items, func(s string) string { return s }); len(none) != 0 {
		t.Errorf("FuzzyFilter(zzz) = %v, want none", none)
	}
}

func TestHighlightMatch(t *testing.T) {
	got := HighlightMatch("q7", "qwen2.5:7b")
	if len(got) != 2 || got[0] != 0 || got[1] != 8 {
		t.Errorf("HighlightMatch = %v, want [0 8]", got)
	}
	if HighlightMatch("", "x") != nil {
		t.Error("empty query should highlight nothing")
	}
}

// =============================================================================
// HINT TESTS
// =============================================================================

func TestMatchErrorHint(t *testing.T) {
	tests := []struct {
		msg   string
		title string
	}{
		{"Ollama is not running", "Ollama not reachable"},
		{`dial tcp 127.0.0.1:11434: connect: connection refused`, "Ollama not reachable"},
		{`model "llama9" not found, try pulling it first`, "Model not found"},
		{"context deadline exceeded", "Request timed out"},
		{"model requires more system memory (12 GiB) than is available", "Not enough memory"},
	}
	for _, tc := range tests {
		h, ok := MatchErrorHint(tc.msg)
		if !ok || h.Title != tc.title {
			t.Errorf("MatchErrorHint(%q) = %+v, %v; want %q", tc.msg, h, ok, tc.title)
		}
	}
	if _, ok := MatchErrorHint("something odd"); ok {
		t.Error("unknown message should not match")
	}
}

// =============================================================================
// TOAST TESTS
// =============================================================================

func TestRenderToast(t *testing.T) {
	theme := styles.NewTheme()
	now := time.Now()

	n := notify.Notification{
		ID: 1, Kind: notify.KindWarning, Title: "Reply not saved",
		Message: "database is locked", CreatedAt: now.Add(-2 * time.Second), Duration: 7 * time.Second,
	}
	out := RenderToast(theme, n, 100, now)
	for _, want := range []string{"Reply not saved", "database is locked", styles.StatusIndicators.Warning, "5s"} {
		if !strings.Contains(out, want) {
			t.Errorf("toast missing %q:\n%s", want, out)
		}
	}

	sticky := notify.Notification{Kind: notify.KindError, Title: "Boom", CreatedAt: now}
	if out := RenderToast(theme, sticky, 100, now); !strings.Contains(out, "dismiss") {
		t.Errorf("sticky toast should show the dismiss hint:\n%s", out)
	}
}

func TestRenderToastStack_ShowsNewest(t *testing.T) {
	theme := styles.NewTheme()
	now := time.Now()
	var list []notify.Notification
	for i, title := range []string{"first", "second", "third", "fourth"} {
		list = append(list, notify.Notification{ID: i + 1, Title: title, CreatedAt: now, Duration: time.Minute})
	}

	out := RenderToastStack(theme, list, 100, now)
	if strings.Contains(out, "first") {
		t.Error("oldest toast beyond the cap should be hidden")
	}
	if !strings.Contains(out, "fourth") {
		t.Error("newest toast should be shown")
	}
	if RenderToastStack(theme, nil, 100, now) != "" {
		t.Error("empty list should render nothing")
	}
}

func TestWrapToastText(t *testing.T) {
	got := wrapToastText("one two three four", 9)
	if got != "one two\nthree\nfour" {
		t.Errorf("wrapToastText = %q", got)
	}
}

// =============================================================================
// STATUS BAR TESTS
// =============================================================================

func TestPhaseLabel(t *testing.T) {
	tests := []struct {
		st   session.State
		want string
	}{
		{session.State{}, "Ready"},
		{session.State{Phase: session.PhaseAwaitingStart}, "Waiting for model..."},
		{session.State{Phase: session.PhaseStreaming}, "Streaming..."},
		{session.State{Session: session.Session{Status: session.StatusCancelled}}, "Stopped"},
		{session.State{Session: session.Session{Status: session.StatusErrored}}, "Error"},
		{session.State{Session: session.Session{Status: session.StatusDone}}, "Ready"},
	}
	for _, tc := range tests {
		if got := PhaseLabel(tc.st); got != tc.want {
			t.Errorf("PhaseLabel(%v/%v) = %q, want %q", tc.st.Phase, tc.st.Session.Status, got, tc.want)
		}
	}
}

func TestStatusBarView(t *testing.T) {
	sb := NewStatusBar(styles.NewTheme())
	sb.SetWidth(140)
	sb.SetServer(true)
	sb.ModelName = "llama3.2"
	sb.State = session.State{Phase: session.PhaseStreaming}
	sb.LastStats = &model.Stats{CompletionTokens: 1234, EvalDuration: 2 * time.Second}
	sb.Pulls = []registry.Pull{
		{Name: "qwen2.5:7b", Progress: &registry.Progress{Completed: 42, Total: 100}},
		{Name: "mistral"},
	}

	out := sb.View()
	for _, want := range []string{"llama3.2", "Streaming...", "1,234 tok", "617.0 tok/s", "pull qwen2.5:7b 42% (+1)", "Enter"} {
		if !strings.Contains(out, want) {
			t.Errorf("status bar missing %q:\n%s", want, out)
		}
	}
	if w := lipgloss.Width(out); w != 140 {
		t.Errorf("width = %d, want 140", w)
	}
}

func TestStatusBarView_Narrow(t *testing.T) {
	sb := NewStatusBar(styles.NewTheme())
	sb.SetWidth(40)
	sb.SetServer(false)
	out := sb.View()
	if !strings.Contains(out, styles.ConnectionIndicators.Offline) || !strings.Contains(out, "Ready") {
		t.Errorf("narrow status bar = %q", out)
	}
	if strings.Contains(out, "Enter") {
		t.Error("narrow layout should not show shortcuts")
	}
}

func TestFormatCount(t *testing.T) {
	tests := map[int]string{0: "0", 999: "999", 1000: "1,000", 1234567: "1,234,567", -4500: "-4,500"}
	for in, want := range tests {
		if got := formatCount(in); got != want {
			t.Errorf("formatCount(%d) = %q, want %q", in, got, want)
		}
	}
}
