// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package feedback turns failed applies into follow-up prompts and drives
// the retry loop.
package feedback

import (
	"fmt"
	"strings"

	"github.com/petar-djukic/go-autodiff/internal/merge"
	"github.com/petar-djukic/go-autodiff/pkg/types"
)

// FormatApplyError produces the follow-up prompt for a failed apply. It
// shows the current content of the files the pass modified, then the
// failure messages, each followed by the closest lines of the target file
// when one was found.
func FormatApplyError(err *merge.ApplyError, modified []types.FileContent) string {
	var buf strings.Builder

	if len(modified) > 0 {
		buf.WriteString("## Updated Files\n\n")
		for _, f := range modified {
			fmt.Fprintf(&buf, "%s\n```\n%s", f.Path, f.Content)
			if f.Content != "" && !strings.HasSuffix(f.Content, "\n") {
				buf.WriteString("\n")
			}
			buf.WriteString("```\n\n")
		}
	}

	for i, f := range err.Failures {
		if i > 0 {
			buf.WriteString("\n")
		}
		buf.WriteString(f.Message())
		if f.Closest != "" {
			fmt.Fprintf(&buf, "\nDid you mean to match lines %d-%d of %s?\n```\n%s", f.ClosestStart, f.ClosestEnd, f.Path, f.Closest)
			if !strings.HasSuffix(f.Closest, "\n") {
				buf.WriteString("\n")
			}
			buf.WriteString("```\n")
		}
		if f.Partial {
			buf.WriteString("\nThe changes of this hunk before the failing one were applied.\n")
		}
	}

	if err.SomeApplied() {
		buf.WriteString("\nNote: some hunks did apply successfully. See the updated source code shown above.\n")
	}
	return buf.String()
}
