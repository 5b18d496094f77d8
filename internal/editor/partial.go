// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package editor

import (
	"fmt"

	"github.com/petar-djukic/go-autodiff/internal/hunk"
	"github.com/petar-djukic/go-autodiff/pkg/types"
)

// ApplyHunk applies h to content. When the whole hunk does not match, the
// hunk is rewritten so context lines absent from the content become
// additions, then each change section is applied on its own with as much
// surrounding context as still matches. Sections that applied before a
// failing one are kept: the result then carries Partial and the content as
// of the failure.
func (m *Matcher) ApplyHunk(content string, h types.Hunk) types.MatchResult {
	direct := m.DirectlyApply(content, h)
	if direct.OK() || !h.HasChanges() {
		return direct
	}

	h = m.makeNewLinesExplicit(content, h)
	sections := splitSections(h)
	total := len(sections) / 2

	applied := 0
	stage := types.StageNone
	for i := 2; i < len(sections); i += 2 {
		res, widestAmbiguous := m.applyPartialHunk(content, sections[i-2], sections[i-1], sections[i])
		if !res.OK() {
			status := types.StatusNoMatch
			if direct.Status == types.StatusAmbiguous || widestAmbiguous {
				status = types.StatusAmbiguous
			}
			return types.MatchResult{
				Status:  status,
				Content: content,
				Stage:   stage,
				Reason:  fmt.Sprintf("change %d of %d did not match: %s", applied+1, total, direct.Reason),
				Partial: applied > 0,
			}
		}
		content = res.Content
		stage = maxStage(stage, res.Stage)
		applied++
	}
	return types.MatchResult{Status: types.StatusApplied, Content: content, Stage: stage}
}

// makeNewLinesExplicit diffs the hunk's before text against the content and
// drops the before lines the content lacks. If enough of the before text
// survives, the hunk is rebuilt from the surviving before text and the
// original after text, so the missing lines turn into additions.
func (m *Matcher) makeNewLinesExplicit(content string, h types.Hunk) types.Hunk {
	before, after := h.BeforeAfter()

	var back types.Hunk
	for _, l := range hunk.DiffLines(before, content) {
		if l.Op != types.OpAdd {
			back = append(back, l)
		}
	}

	res := m.DirectlyApply(before, back)
	if !res.OK() {
		return h
	}
	newBefore := res.Content
	if nonSpaceLen(newBefore) <= minUniqueChars {
		return h
	}

	newBeforeLines := hunk.SplitLines(newBefore)
	if float64(len(newBeforeLines)) < float64(len(hunk.SplitLines(before)))*0.66 {
		return h
	}

	rebuilt := hunk.FromBeforeAfter(newBeforeLines, hunk.SplitLines(after))
	if rebuilt == nil {
		return h
	}
	return rebuilt
}

// splitSections cuts the hunk into alternating runs of context and change
// lines. The result always starts and ends with a (possibly empty) context
// run, so change runs sit at the odd indexes.
func splitSections(h types.Hunk) []types.Hunk {
	var (
		sections []types.Hunk
		section  types.Hunk
		inChange bool
	)
	for _, l := range h {
		if l.Op.IsChange() != inChange {
			sections = append(sections, section)
			section = nil
			inChange = !inChange
		}
		section = append(section, l)
	}
	sections = append(sections, section)
	if inChange {
		sections = append(sections, nil)
	}
	return sections
}

// applyPartialHunk applies one change run with the widest window of
// preceding and following context that matches uniquely. Context is dropped
// one line at a time, preferring to keep preceding lines. The second result
// reports whether the window with all context was ambiguous.
func (m *Matcher) applyPartialHunk(content string, prec, changes, foll types.Hunk) (types.MatchResult, bool) {
	lenPrec, lenFoll := len(prec), len(foll)
	useAll := lenPrec + lenFoll

	widestAmbiguous := false
	for drop := 0; drop <= useAll; drop++ {
		use := useAll - drop
		for usePrec := lenPrec; usePrec >= 0; usePrec-- {
			if usePrec > use {
				continue
			}
			useFoll := use - usePrec
			if useFoll > lenFoll {
				continue
			}

			window := make(types.Hunk, 0, use+len(changes))
			window = append(window, prec[lenPrec-usePrec:]...)
			window = append(window, changes...)
			window = append(window, foll[:useFoll]...)

			res := m.DirectlyApply(content, window)
			if res.OK() {
				return res, widestAmbiguous
			}
			if drop == 0 && res.Status == types.StatusAmbiguous {
				widestAmbiguous = true
			}
		}
	}
	return noMatch("no context window matched"), widestAmbiguous
}

// maxStage returns the looser of two stages; StageNone counts as unset.
func maxStage(a, b types.MatchStage) types.MatchStage {
	if a == types.StageNone {
		return b
	}
	if b == types.StageNone {
		return a
	}
	return max(a, b)
}
