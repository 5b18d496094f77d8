// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package hunk canonicalizes hunks before matching and derives line diffs
// between texts.
package hunk

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/petar-djukic/go-autodiff/pkg/types"
)

// Normalize canonicalizes a hunk: whitespace-only lines are reduced to their
// line ending, then a minimal hunk is regenerated from the cleaned before
// and after texts. Returns nil when the hunk changes nothing, which callers
// treat as "drop this edit".
func Normalize(h types.Hunk) types.Hunk {
	before, after := h.BeforeAfterLines()
	return FromBeforeAfter(CleanupWhitespaceLines(before), CleanupWhitespaceLines(after))
}

// CleanupWhitespaceLines replaces every whitespace-only line with just its
// own line ending. Models often emit trailing spaces on blank lines, which
// would otherwise defeat exact matching.
func CleanupWhitespaceLines(lines []string) []string {
	out := make([]string, len(lines))
	for i, line := range lines {
		if strings.TrimSpace(line) != "" {
			out[i] = line
			continue
		}
		out[i] = line[len(strings.TrimRight(line, "\r\n")):]
	}
	return out
}

// FromBeforeAfter builds a unified hunk that turns before into after. The
// context window spans the whole region, so the result is a single hunk
// holding every line of both sides exactly once. No file or @@ headers are
// emitted. Returns nil when before and after are identical.
func FromBeforeAfter(before, after []string) types.Hunk {
	n := max(len(before), len(after))
	if n == 0 {
		return nil
	}

	m := difflib.NewMatcher(before, after)
	var out types.Hunk
	for _, group := range m.GetGroupedOpCodes(n) {
		for _, c := range group {
			switch c.Tag {
			case 'e':
				out = appendLines(out, types.OpContext, before[c.I1:c.I2])
			case 'd':
				out = appendLines(out, types.OpRemove, before[c.I1:c.I2])
			case 'i':
				out = appendLines(out, types.OpAdd, after[c.J1:c.J2])
			case 'r':
				out = appendLines(out, types.OpRemove, before[c.I1:c.I2])
				out = appendLines(out, types.OpAdd, after[c.J1:c.J2])
			}
		}
	}

	if !out.HasChanges() {
		return nil
	}
	return out
}

func appendLines(h types.Hunk, op types.Op, lines []string) types.Hunk {
	for _, l := range lines {
		h = append(h, types.Line{Op: op, Text: l})
	}
	return h
}

// SplitLines splits text after every newline, keeping the endings. A final
// line without a newline is kept; an empty text yields no lines.
func SplitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
