// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package types

// FileSnapshot maps absolute file paths to their current full text. One
// snapshot belongs to one in-flight merge and is never shared.
type FileSnapshot map[string]string

// FailedBlock records a hunk that could not be applied.
type FailedBlock struct {
	Path   string      `json:"path"`   // Project-relative path of the target file
	Hunk   string      `json:"hunk"`   // Hunk in diff form
	Status MatchStatus `json:"status"` // NoMatch or Ambiguous
	Reason string      `json:"reason"` // Matcher detail
}

// MergeOutcome is the result of applying a set of edits without side effects.
type MergeOutcome struct {
	Succeeded []FileContent `json:"succeeded"` // Final content of every file touched by a successful hunk
	Failed    []FailedBlock `json:"failed"`    // Hunks that did not apply, in edit order
}

// Clean reports whether every hunk applied.
func (o MergeOutcome) Clean() bool {
	return len(o.Failed) == 0
}

// GenerateResult holds candidate model outputs, each paired with the
// conversation that produced it.
type GenerateResult struct {
	Contents      []string       // Full candidate outputs
	Conversations []Conversation // Conversations[i] produced Contents[i]
}

// Len returns the number of candidates.
func (g GenerateResult) Len() int {
	return len(g.Contents)
}
