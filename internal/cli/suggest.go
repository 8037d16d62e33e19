// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// suggest.go - "Did you mean" for mistyped commands and slash commands.
package cli

import (
	"strings"
)

// validCommands lists command names and aliases accepted by ParseArgs.
var validCommands = []string{
	"tui", "chat", "ask", "chats", "history", "models", "model",
	"health", "status", "setup", "config", "version", "help",
}

// SuggestCommand returns the closest command name to input, or "".
func SuggestCommand(input string) string {
	return suggest(input, validCommands)
}

// SuggestSlashCommand is SuggestCommand for chat slash commands.
func SuggestSlashCommand(input string) string {
	return suggest(input, slashCommands)
}

// suggest picks the candidate with the smallest edit distance, allowing one
// edit for inputs up to 3 characters, two up to 8 and three beyond.
func suggest(input string, candidates []string) string {
	input = strings.ToLower(input)
	if len(input) < 2 {
		return ""
	}

	maxDistance := 1
	if len(input) >= 4 {
		maxDistance = 2
	}
	if len(input) > 8 {
		maxDistance = 3
	}

	best, bestDistance := "", -1
	for _, cand := range candidates {
		d := levenshteinDistance(input, cand)
		if d == 0 {
			return ""
		}
		if d <= maxDistance && (bestDistance == -1 || d < bestDistance) {
			best, bestDistance = cand, d
		}
	}
	return best
}

// levenshteinDistance is the number of single-byte insertions, deletions or
// substitutions that turn s1 into s2.
func levenshteinDistance(s1, s2 string) int {
	if len(s1) == 0 {
		return len(s2)
	}
	if len(s2) == 0 {
		return len(s1)
	}

	prev := make([]int, len(s2)+1)
	curr := make([]int, len(s2)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(s1); i++ {
		curr[0] = i
		for j := 1; j <= len(s2); j++ {
			cost := 1
			if s1[i-1] == s2[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(s2)]
}
