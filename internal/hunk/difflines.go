// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package hunk

import (
	"time"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/petar-djukic/go-autodiff/pkg/types"
)

const diffTimeout = 5 * time.Second

// DiffLines computes a line-level diff from a to b. Lines present only in a
// are removals, lines present only in b are additions. Unlike
// FromBeforeAfter the result is not minimal in context: every line of both
// texts appears.
func DiffLines(a, b string) types.Hunk {
	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = diffTimeout

	ca, cb, lineArray := dmp.DiffLinesToChars(a, b)
	diffs := dmp.DiffMain(ca, cb, false)
	diffs = dmp.DiffCleanupSemantic(diffs)
	diffs = dmp.DiffCleanupEfficiency(diffs)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	var out types.Hunk
	for _, d := range diffs {
		op := types.OpContext
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			op = types.OpRemove
		case diffmatchpatch.DiffInsert:
			op = types.OpAdd
		}
		out = appendLines(out, op, SplitLines(d.Text))
	}
	return out
}
