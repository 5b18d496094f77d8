// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package types defines shared types used across go-autodiff packages.
package types

import "strings"

// Op tags a single line of a hunk.
type Op int

const (
	OpContext Op = iota // Unchanged line, present in both before and after
	OpRemove            // Line present only in the before text
	OpAdd               // Line present only in the after text
	OpOther             // Divider or annotation line; ignored when deriving text
)

func (o Op) String() string {
	switch o {
	case OpContext:
		return "context"
	case OpRemove:
		return "remove"
	case OpAdd:
		return "add"
	default:
		return "other"
	}
}

// Prefix returns the diff marker for the operation.
func (o Op) Prefix() string {
	switch o {
	case OpContext:
		return " "
	case OpRemove:
		return "-"
	case OpAdd:
		return "+"
	default:
		return ""
	}
}

// IsChange reports whether the operation is a removal or an addition.
func (o Op) IsChange() bool {
	return o == OpRemove || o == OpAdd
}

// Line is one tagged line of a hunk. Text keeps its line ending verbatim;
// for OpOther it holds the whole raw line.
type Line struct {
	Op   Op
	Text string
}

// ParseLine tags a raw diff line by its first byte. A line shorter than two
// bytes carries no room for a marker plus content and is read as a context
// line whose text is the raw line itself.
func ParseLine(raw string) Line {
	if len(raw) < 2 {
		return Line{Op: OpContext, Text: raw}
	}
	switch raw[0] {
	case ' ':
		return Line{Op: OpContext, Text: raw[1:]}
	case '-':
		return Line{Op: OpRemove, Text: raw[1:]}
	case '+':
		return Line{Op: OpAdd, Text: raw[1:]}
	default:
		return Line{Op: OpOther, Text: raw}
	}
}

// String renders the line back into diff form.
func (l Line) String() string {
	return l.Op.Prefix() + l.Text
}

// Hunk is one contiguous change region of a single file.
type Hunk []Line

// ParseHunk tags every raw line.
func ParseHunk(raw []string) Hunk {
	h := make(Hunk, len(raw))
	for i, r := range raw {
		h[i] = ParseLine(r)
	}
	return h
}

// BeforeAfterLines splits the hunk into the line sequences it expects to
// find (context and removals) and the ones it leaves behind (context and
// additions).
func (h Hunk) BeforeAfterLines() (before, after []string) {
	for _, l := range h {
		switch l.Op {
		case OpContext:
			before = append(before, l.Text)
			after = append(after, l.Text)
		case OpRemove:
			before = append(before, l.Text)
		case OpAdd:
			after = append(after, l.Text)
		}
	}
	return before, after
}

// BeforeAfter is BeforeAfterLines joined into text.
func (h Hunk) BeforeAfter() (before, after string) {
	b, a := h.BeforeAfterLines()
	return strings.Join(b, ""), strings.Join(a, "")
}

// HasChanges reports whether any line removes or adds text.
func (h Hunk) HasChanges() bool {
	for _, l := range h {
		if l.Op.IsChange() {
			return true
		}
	}
	return false
}

// String renders the hunk in diff form. Lines without a trailing newline
// are terminated so every line stays on its own row.
func (h Hunk) String() string {
	var b strings.Builder
	for _, l := range h {
		s := l.String()
		b.WriteString(s)
		if !strings.HasSuffix(s, "\n") {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// Edit is a hunk addressed to a file. Path is empty when the extractor saw
// no file header; PropagatePaths fills it in.
type Edit struct {
	Path string // Target path as written by the model (absolute or project-relative)
	Hunk Hunk
}

// MatchStage identifies which matching strategy succeeded.
type MatchStage int

const (
	StageExact                MatchStage = iota // Byte-for-byte match
	StageBlankLines                             // Match after trimming surrounding blank lines
	StageWhitespaceNormalized                   // Whitespace-collapsed line match
	StageFuzzy                                  // Similarity-threshold match
	StageNone                                   // No match found
)

func (s MatchStage) String() string {
	switch s {
	case StageExact:
		return "exact"
	case StageBlankLines:
		return "blank_lines"
	case StageWhitespaceNormalized:
		return "whitespace_normalized"
	case StageFuzzy:
		return "fuzzy"
	case StageNone:
		return "none"
	default:
		return "unknown"
	}
}

// MatchStatus is the variant tag of a MatchResult.
type MatchStatus int

const (
	StatusApplied   MatchStatus = iota // Content holds the patched text
	StatusNoMatch                      // The before text was not found
	StatusAmbiguous                    // The before text was found more than once
)

func (s MatchStatus) String() string {
	switch s {
	case StatusApplied:
		return "applied"
	case StatusNoMatch:
		return "no_match"
	case StatusAmbiguous:
		return "ambiguous"
	default:
		return "unknown"
	}
}

// MarshalText encodes the status by name.
func (s MatchStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// MatchResult is the outcome of applying one hunk to one text. Callers
// branch on Status.
type MatchResult struct {
	Status  MatchStatus
	Content string     // Patched content; also set for Partial failures
	Stage   MatchStage // Strategy that produced the last successful replacement
	Reason  string     // Human-readable detail for failures
	Partial bool       // Some sections applied before a later one failed
}

// OK reports whether the hunk applied completely.
func (r MatchResult) OK() bool {
	return r.Status == StatusApplied
}
