// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package merge

import (
	"errors"
	"strconv"
	"strings"

	"github.com/petar-djukic/go-autodiff/internal/hunk"
	"github.com/petar-djukic/go-autodiff/pkg/types"
)

// ErrVCSUnavailable is returned when the snapshot taken before applying
// edits fails. Nothing is applied in that case.
var ErrVCSUnavailable = errors.New("version control unavailable")

const gitInitHint = "merging only works inside a git repository; run `git init .` in the project root and try again"

const noMatchTemplate = "UnifiedDiffNoMatch: hunk failed to apply!\n\n" +
	"{path} does not contain lines that match the diff you provided!\n" +
	"Try again.\n" +
	"DO NOT skip blank lines, comments, docstrings, etc!\n" +
	"The diff needs to apply cleanly to the lines in {path}!\n\n" +
	"{path} does not contain these {num_lines} exact lines in a row:\n" +
	"```\n" +
	"{original}```\n"

const notUniqueTemplate = "UnifiedDiffNotUnique: hunk failed to apply!\n\n" +
	"{path} contains multiple sets of lines that match the diff you provided!\n" +
	"Try again.\n" +
	"Use additional ` ` lines to provide context that uniquely indicates which code needs to be changed.\n" +
	"The diff needs to apply to a unique set of lines in {path}!\n\n" +
	"{path} contains multiple copies of these {num_lines} lines:\n" +
	"```\n" +
	"{original}```\n"

const otherHunksApplied = "Note: some hunks did apply successfully. See the updated source code shown above.\n\n"

// Failure describes one hunk that did not apply.
type Failure struct {
	Path     string            // Project-relative path of the target file
	Status   types.MatchStatus // NoMatch or Ambiguous
	Original string            // The hunk's before text
	Hunk     types.Hunk
	Reason   string // Matcher detail
	Partial  bool   // Earlier sections of the hunk were applied and written

	// Closest is the most similar region of the file for a NoMatch failure,
	// with its 1-based line range. Empty when nothing was similar enough.
	Closest      string
	ClosestStart int
	ClosestEnd   int
}

// Message renders the failure in the form sent back to the model.
func (f Failure) Message() string {
	tmpl := noMatchTemplate
	if f.Status == types.StatusAmbiguous {
		tmpl = notUniqueTemplate
	}
	return strings.NewReplacer(
		"{path}", f.Path,
		"{num_lines}", strconv.Itoa(len(hunk.SplitLines(f.Original))),
		"{original}", f.Original,
	).Replace(tmpl)
}

// ApplyError aggregates every hunk that failed in one apply pass.
type ApplyError struct {
	Failures  []Failure
	Attempted int // Unique edits attempted in the pass
}

func (e *ApplyError) Error() string {
	msgs := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		msgs[i] = f.Message()
	}
	out := strings.Join(msgs, "\n\n")
	if e.SomeApplied() {
		out += otherHunksApplied
	}
	return out
}

// SomeApplied reports whether any edit of the pass applied, fully or in part.
func (e *ApplyError) SomeApplied() bool {
	if len(e.Failures) < e.Attempted {
		return true
	}
	for _, f := range e.Failures {
		if f.Partial {
			return true
		}
	}
	return false
}
