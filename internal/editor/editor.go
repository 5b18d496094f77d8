// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package editor applies hunks to file content. A hunk is first tried as a
// whole through a list of matching strategies; when that fails its change
// sections are applied one at a time with shrinking context windows.
package editor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/petar-djukic/go-autodiff/pkg/types"
)

// minUniqueChars is the shortest anchor, counted without whitespace, that
// may be applied when it occurs more than once in the content.
const minUniqueChars = 10

// Matcher locates hunks in file content. The zero value runs the exact,
// blank-line and whitespace-normalized strategies.
type Matcher struct {
	// FuzzyThreshold enables similarity matching when positive. Values
	// around 0.8 accept small typos in the model's context lines.
	FuzzyThreshold float64

	// Strategies overrides the strategy list when non-nil.
	Strategies []Strategy
}

func (m *Matcher) strategies() []Strategy {
	if m == nil {
		return DefaultStrategies(0)
	}
	if m.Strategies != nil {
		return m.Strategies
	}
	return DefaultStrategies(m.FuzzyThreshold)
}

// DirectlyApply replaces the hunk's before text with its after text when
// exactly one strategy finds exactly one occurrence. Strategies are tried in
// order; the first one reporting several occurrences ends the search as
// ambiguous.
func (m *Matcher) DirectlyApply(content string, h types.Hunk) types.MatchResult {
	before, after := h.BeforeAfter()
	if before == "" {
		return noMatch("hunk has no context or removed lines to anchor on")
	}

	if nonSpaceLen(before) < minUniqueChars {
		if n := strings.Count(content, before); n > 1 {
			return ambiguous(fmt.Sprintf("short anchor occurs %d times", n))
		}
	}

	for _, s := range m.strategies() {
		out, n := s.Replace(content, before, after)
		switch {
		case n == 1:
			return types.MatchResult{Status: types.StatusApplied, Content: out, Stage: s.Stage()}
		case n > 1:
			return ambiguous(fmt.Sprintf("%d occurrences with %s matching", n, s.Stage()))
		}
	}
	return noMatch("no strategy found the lines")
}

// Replace applies one hunk to a file's content. exists reports whether the
// file is present; a missing file can only be created by a hunk with no
// before text. A blank before text appends the after text.
func (m *Matcher) Replace(content string, exists bool, h types.Hunk) types.MatchResult {
	before, after := h.BeforeAfter()
	blank := strings.TrimSpace(before) == ""

	if !exists {
		if !blank {
			return noMatch("file does not exist")
		}
		return types.MatchResult{Status: types.StatusApplied, Content: after, Stage: types.StageExact}
	}

	if blank {
		if content != "" && !strings.HasSuffix(content, "\n") {
			content += "\n"
		}
		return types.MatchResult{Status: types.StatusApplied, Content: content + after, Stage: types.StageExact}
	}

	return m.ApplyHunk(content, h)
}

func noMatch(reason string) types.MatchResult {
	return types.MatchResult{Status: types.StatusNoMatch, Stage: types.StageNone, Reason: reason}
}

func ambiguous(reason string) types.MatchResult {
	return types.MatchResult{Status: types.StatusAmbiguous, Stage: types.StageNone, Reason: reason}
}

func nonSpaceLen(s string) int {
	n := 0
	for _, line := range strings.Split(s, "\n") {
		n += len(strings.TrimSpace(line))
	}
	return n
}

// WriteFile writes data to a temp file in the target directory, then renames
// it over path. Parent directories are created; an existing file keeps its
// permissions.
func WriteFile(fs afero.Fs, path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	perm := os.FileMode(0o644)
	if info, err := fs.Stat(path); err == nil {
		perm = info.Mode().Perm()
	}

	f, err := afero.TempFile(fs, dir, ".go-autodiff-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := f.Name()

	if _, err := f.Write(data); err != nil {
		f.Close()
		fs.Remove(tmpPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		fs.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := fs.Chmod(tmpPath, perm); err != nil {
		fs.Remove(tmpPath)
		return fmt.Errorf("setting permissions: %w", err)
	}

	if err := fs.Rename(tmpPath, path); err != nil {
		fs.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
