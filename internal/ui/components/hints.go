// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import "strings"

// =============================================================================
// ERROR HINTS
// =============================================================================

// ErrorHint is a short explanation and next step for a failure message.
type ErrorHint struct {
	Title      string
	Suggestion string
}

type hintPattern struct {
	keywords []string
	hint     ErrorHint
}

// hintPatterns are ordered from most to least specific; the first match wins.
var hintPatterns = []hintPattern{
	{
		keywords: []string{"ollama is not running", "connection refused", "no such host", "dial tcp"},
		hint: ErrorHint{
			Title:      "Ollama not reachable",
			Suggestion: "Start it with ctrl+o or 'rigchat setup start', or check server.url",
		},
	},
	{
		keywords: []string{"model not found", "not found, try pulling", "' not found", "no such model"},
		hint: ErrorHint{
			Title:      "Model not found",
			Suggestion: "Pull it with 'rigchat models pull NAME' or pick another model with ctrl+p",
		},
	},
	{
		keywords: []string{"timed out", "deadline exceeded", "timeout"},
		hint: ErrorHint{
			Title:      "Request timed out",
			Suggestion: "The model may still be loading; try again or raise chat.stream_timeout_secs",
		},
	},
	{
		keywords: []string{"out of memory", "requires more system memory", "cuda error"},
		hint: ErrorHint{
			Title:      "Not enough memory",
			Suggestion: "Try a smaller or more quantized model",
		},
	},
	{
		keywords: []string{"context length", "context window"},
		hint: ErrorHint{
			Title:      "Context too long",
			Suggestion: "Start a new chat with ctrl+n",
		},
	},
	{
		keywords: []string{"no space left", "disk full"},
		hint: ErrorHint{
			Title:      "Disk full",
			Suggestion: "Free space or delete unused models",
		},
	},
}

// MatchErrorHint finds a hint for msg.
func MatchErrorHint(msg string) (ErrorHint, bool) {
	lower := strings.ToLower(msg)
	for _, p := range hintPatterns {
		for _, kw := range p.keywords {
			if strings.Contains(lower, kw) {
				return p.hint, true
			}
		}
	}
	return ErrorHint{}, false
}
