// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package editformat extracts unified-diff edits from model output and
// resolves their target paths.
package editformat

import (
	"iter"
	"strings"

	"github.com/petar-djukic/go-autodiff/internal/hunk"
	"github.com/petar-djukic/go-autodiff/pkg/types"
)

const (
	fenceDiff   = "```diff"
	fence       = "```"
	headerOld   = "--- "
	headerNew   = "+++ "
	hunkDivider = '@'

	// sentinel closes the last hunk of a block.
	sentinel = "@@ @@"
)

// Parse extracts every edit from the response and fills in missing paths
// from the most recent header. Edits that precede any header are dropped.
func Parse(response string) []types.Edit {
	var edits []types.Edit
	for e := range FindDiffs(response) {
		edits = append(edits, e)
	}
	return PropagatePaths(edits)
}

// FindDiffs yields the edits of every ```diff fenced block in text, in
// order. The sequence is lazy and restartable: each range scans the text
// again. Edits from a block without file headers carry an empty Path.
// A block whose closing fence never appears is skipped.
func FindDiffs(text string) iter.Seq[types.Edit] {
	return func(yield func(types.Edit) bool) {
		lines := hunk.SplitLines(text)
		if n := len(lines); n > 0 && !strings.HasSuffix(lines[n-1], "\n") {
			lines[n-1] += "\n"
		}

		for i := 0; i < len(lines); i++ {
			if !strings.HasPrefix(lines[i], fenceDiff) {
				continue
			}
			end := closingFence(lines, i+1)
			if end < 0 {
				return
			}
			for _, e := range processBlock(lines[i+1 : end]) {
				if !yield(e) {
					return
				}
			}
			i = end
		}
	}
}

// closingFence returns the index of the first fence line at or after start,
// or -1.
func closingFence(lines []string, start int) int {
	for j := start; j < len(lines); j++ {
		if strings.HasPrefix(lines[j], fence) {
			return j
		}
	}
	return -1
}

// processBlock splits the body of one fenced block into edits.
func processBlock(body []string) []types.Edit {
	block := make([]string, 0, len(body)+1)
	block = append(block, body...)
	block = append(block, sentinel)

	path := ""
	if isHeaderPair(block, 0) {
		path = headerPath(block[1])
		block = block[2:]
	}

	var (
		edits  []types.Edit
		cur    []string
		keeper bool
	)
	for i := 0; i < len(block); i++ {
		line := block[i]

		if isHeaderPair(block, i) {
			if keeper {
				if n := len(cur); n > 0 && cur[n-1] == "\n" {
					cur = cur[:n-1]
				}
				edits = append(edits, types.Edit{Path: path, Hunk: types.ParseHunk(cur)})
			}
			cur, keeper = nil, false
			path = headerPath(block[i+1])
			i++
			continue
		}

		cur = append(cur, line)
		if len(line) < 2 {
			continue
		}

		switch line[0] {
		case '-', '+':
			keeper = true
		case hunkDivider:
			if keeper {
				edits = append(edits, types.Edit{Path: path, Hunk: types.ParseHunk(cur[:len(cur)-1])})
			}
			cur, keeper = nil, false
		}
	}
	return edits
}

// isHeaderPair reports whether block[i] and block[i+1] form a
// "--- old" / "+++ new" file header.
func isHeaderPair(block []string, i int) bool {
	return i+1 < len(block) &&
		strings.HasPrefix(block[i], headerOld) &&
		strings.HasPrefix(block[i+1], headerNew)
}

func headerPath(line string) string {
	return strings.TrimSpace(strings.TrimPrefix(line, headerNew))
}

// PropagatePaths gives every edit without a path the path of the nearest
// preceding edit that has one. Leading edits with no path to inherit are
// dropped.
func PropagatePaths(edits []types.Edit) []types.Edit {
	out := make([]types.Edit, 0, len(edits))
	last := ""
	for _, e := range edits {
		if e.Path != "" {
			last = e.Path
		} else {
			e.Path = last
		}
		if e.Path == "" {
			continue
		}
		out = append(out, e)
	}
	return out
}
