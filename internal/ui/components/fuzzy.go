// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"sort"
	"strings"
	"unicode"
)

// =============================================================================
// FUZZY MATCHING
// =============================================================================

// FuzzyMatch scores query against target. Every query rune must appear in
// target in order, case-insensitively. Consecutive runs, word boundaries and
// the start of the string score higher; longer targets score slightly lower.
//
//   - "l32" matches "llama3.2:latest"
//   - "qw7" matches "qwen2.5:7b"
//   - "xyz" does not match "mistral"
func FuzzyMatch(query, target string) (score int, matched bool) {
	if query == "" {
		return 0, true
	}

	q := []rune(strings.ToLower(query))
	t := []rune(strings.ToLower(target))
	if len(q) > len(t) {
		return 0, false
	}

	qi, last := 0, -1
	for ti := 0; ti < len(t) && qi < len(q); ti++ {
		if t[ti] != q[qi] {
			continue
		}
		s := 1
		if last == ti-1 {
			s += 5
		}
		if ti == 0 {
			s += 10
		}
		if isWordBoundary(t, ti) {
			s += 7
		}
		score += s
		last = ti
		qi++
	}

	if qi != len(q) {
		return 0, false
	}
	return score - len(t)/4, true
}

// isWordBoundary reports whether pos follows a separator common in model
// names and chat titles.
func isWordBoundary(runes []rune, pos int) bool {
	if pos == 0 {
		return true
	}
	if pos >= len(runes) {
		return false
	}
	prev := runes[pos-1]
	switch prev {
	case ' ', '/', '-', '_', ':', '.':
		return true
	}
	return unicode.IsDigit(runes[pos]) && !unicode.IsDigit(prev)
}

// FuzzyFilter keeps the items whose key matches query, best match first.
// Ties keep their input order. An empty query returns items unchanged.
func FuzzyFilter[T any](query string, items []T, key func(T) string) []T {
	if query == "" {
		return items
	}

	type scored struct {
		item  T
		score int
	}
	var matches []scored
	for _, it := range items {
		if s, ok := FuzzyMatch(query, key(it)); ok {
			matches = append(matches, scored{it, s})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].score > matches[j].score
	})

	out := make([]T, len(matches))
	for i, m := range matches {
		out[i] = m.item
	}
	return out
}

// HighlightMatch returns the rune positions in target matched by query.
func HighlightMatch(query, target string) []int {
	if query == "" {
		return nil
	}

	q := []rune(strings.ToLower(query))
	t := []rune(strings.ToLower(target))

	var positions []int
	qi := 0
	for ti := 0; ti < len(t) && qi < len(q); ti++ {
		if t[ti] == q[qi] {
			positions = append(positions, ti)
			qi++
		}
	}
	return positions
}
