// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package git

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"unicode"
)

const (
	// PrePrefix marks the commit taken before edits are applied.
	PrePrefix = ToolPrefix + "pre_"
	// PostPrefix marks the commit taken after edits applied cleanly.
	PostPrefix = ToolPrefix
)

// commitTypes maps prompt keywords to commit labels.
var commitTypes = []struct {
	keywords []string
	label    string
}{
	{[]string{"fix", "bug", "repair", "patch", "resolve", "correct"}, "fix"},
	{[]string{"refactor", "restructure", "reorganize", "clean up", "simplify"}, "refactor"},
	{[]string{"test", "spec", "coverage"}, "test"},
	{[]string{"doc", "comment", "readme", "documentation"}, "docs"},
	{[]string{"style", "format", "lint", "whitespace"}, "style"},
	{[]string{"perf", "performance", "optimize", "speed"}, "perf"},
	{[]string{"build", "dependency", "deps", "module"}, "build"},
	{[]string{"chore", "cleanup", "maintain"}, "chore"},
	// "feat" is the default, so it comes last with broad keywords.
	{[]string{"add", "create", "implement", "new", "feature", "introduce"}, "feat"},
}

// SnapshotMessage builds a snapshot commit message of the form
// <prefix><label>_<md5 of content>, so the commit names the exact model
// output that produced it.
func SnapshotMessage(prefix, label, content string) string {
	sum := md5.Sum([]byte(content))
	return prefix + label + "_" + hex.EncodeToString(sum[:])
}

// LabelFor derives a short commit label from a task prompt.
func LabelFor(prompt string) string {
	lower := strings.ToLower(prompt)
	for _, ct := range commitTypes {
		for _, kw := range ct.keywords {
			if containsWord(lower, kw) {
				return ct.label
			}
		}
	}
	return "feat"
}

// containsWord checks whether text contains keyword as a whole word
// (bounded by non-letter characters or string edges). For multi-word
// keywords like "clean up", it falls back to substring matching.
func containsWord(text, keyword string) bool {
	if strings.Contains(keyword, " ") {
		return strings.Contains(text, keyword)
	}
	idx := 0
	for {
		i := strings.Index(text[idx:], keyword)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(keyword)
		leftOK := start == 0 || !unicode.IsLetter(rune(text[start-1]))
		rightOK := end == len(text) || !unicode.IsLetter(rune(text[end]))
		if leftOK && rightOK {
			return true
		}
		idx = start + 1
	}
}
