// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package editor

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/petar-djukic/go-autodiff/pkg/types"
)

// Strategy is one way of locating search text inside content. Replace
// returns the number of occurrences it found; the returned content is only
// meaningful when that count is exactly one.
type Strategy interface {
	Stage() types.MatchStage
	Replace(content, search, replace string) (string, int)
}

// DefaultStrategies returns the strategies tried by a Matcher, strictest
// first. A positive fuzzyThreshold appends the similarity stage.
func DefaultStrategies(fuzzyThreshold float64) []Strategy {
	s := []Strategy{exactStrategy{}, blankLineStrategy{}, whitespaceStrategy{}}
	if fuzzyThreshold > 0 {
		s = append(s, fuzzyStrategy{threshold: fuzzyThreshold})
	}
	return s
}

// exactStrategy is a byte-for-byte substring match.
type exactStrategy struct{}

func (exactStrategy) Stage() types.MatchStage { return types.StageExact }

func (exactStrategy) Replace(content, search, replace string) (string, int) {
	n := strings.Count(content, search)
	if n != 1 {
		return "", n
	}
	return strings.Replace(content, search, replace, 1), 1
}

// blankLineStrategy drops leading and trailing blank lines from the search
// and replacement texts, which models tend to add or lose at hunk edges.
type blankLineStrategy struct{}

func (blankLineStrategy) Stage() types.MatchStage { return types.StageBlankLines }

func (blankLineStrategy) Replace(content, search, replace string) (string, int) {
	s := trimBlankLines(search)
	if s == search || strings.TrimSpace(s) == "" {
		return "", 0
	}
	return exactStrategy{}.Replace(content, s, trimBlankLines(replace))
}

func trimBlankLines(s string) string {
	t := strings.Trim(s, "\n")
	if t == "" {
		return ""
	}
	return t + "\n"
}

// whitespaceStrategy collapses runs of whitespace in both content and search
// text, then finds the match by comparing normalized lines. A match maps
// back to the original content line boundaries.
type whitespaceStrategy struct{}

func (whitespaceStrategy) Stage() types.MatchStage { return types.StageWhitespaceNormalized }

func (whitespaceStrategy) Replace(content, search, replace string) (string, int) {
	normSearchLines := normalizeLines(search)
	if isBlank(normSearchLines) {
		return "", 0
	}

	contentLines := strings.Split(content, "\n")
	normContentLines := make([]string, len(contentLines))
	for i, line := range contentLines {
		normContentLines[i] = collapseSpaces(strings.TrimSpace(line))
	}

	// Slide a window of len(normSearchLines) over normContentLines.
	searchLen := len(normSearchLines)
	var starts []int
	for i := 0; i <= len(normContentLines)-searchLen; i++ {
		match := true
		for j := 0; j < searchLen; j++ {
			if normContentLines[i+j] != normSearchLines[j] {
				match = false
				break
			}
		}
		if match {
			starts = append(starts, i)
		}
	}
	if len(starts) != 1 {
		return "", len(starts)
	}

	start := byteOffsetOfLine(contentLines, starts[0])
	end := min(byteOffsetOfLine(contentLines, starts[0]+searchLen), len(content))
	return content[:start] + replace + content[end:], 1
}

// fuzzyStrategy scans content for the line window most similar to search
// and accepts it when the similarity meets the threshold. Several windows
// sharing the best score count as several occurrences.
type fuzzyStrategy struct {
	threshold float64
}

func (fuzzyStrategy) Stage() types.MatchStage { return types.StageFuzzy }

func (f fuzzyStrategy) Replace(content, search, replace string) (string, int) {
	body := strings.TrimSuffix(search, "\n")
	if strings.TrimSpace(body) == "" || content == "" {
		return "", 0
	}

	contentLines := strings.Split(content, "\n")
	searchLen := len(strings.Split(body, "\n"))

	best := 0.0
	var starts []int
	for i := 0; i+searchLen <= len(contentLines); i++ {
		candidate := strings.Join(contentLines[i:i+searchLen], "\n")
		sim := similarity(candidate, body)
		switch {
		case sim < f.threshold:
		case sim > best:
			best = sim
			starts = []int{i}
		case sim == best:
			starts = append(starts, i)
		}
	}
	if len(starts) != 1 {
		return "", len(starts)
	}

	start := byteOffsetOfLine(contentLines, starts[0])
	end := start + len(strings.Join(contentLines[starts[0]:starts[0]+searchLen], "\n"))
	if strings.HasSuffix(search, "\n") && end < len(content) {
		end++
	}
	return content[:start] + replace + content[end:], 1
}

// ClosestMatch finds the line window of content most similar to search.
// Returns the window text, its similarity, and its 1-based line range; an
// empty window when nothing is similar at all.
func ClosestMatch(content, search string) (closest string, sim float64, lineStart, lineEnd int) {
	search = strings.TrimSuffix(search, "\n")
	if search == "" || content == "" {
		return "", 0, 0, 0
	}

	contentLines := strings.Split(content, "\n")
	searchLen := min(len(strings.Split(search, "\n")), len(contentLines))

	var bestSim float64
	var bestStart int
	for i := 0; i <= len(contentLines)-searchLen; i++ {
		candidate := strings.Join(contentLines[i:i+searchLen], "\n")
		s := similarity(candidate, search)
		if s > bestSim {
			bestSim = s
			bestStart = i
		}
	}

	if bestSim > 0 {
		closest = strings.Join(contentLines[bestStart:bestStart+searchLen], "\n")
		return closest, bestSim, bestStart + 1, bestStart + searchLen
	}
	return "", 0, 0, 0
}

// similarity computes the Levenshtein-based similarity ratio between two
// strings. Returns a value between 0.0 and 1.0.
func similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(a, b, false)
	distance := dmp.DiffLevenshtein(diffs)
	maxLen := max(len(a), len(b))
	return 1.0 - float64(distance)/float64(maxLen)
}

// normalizeLines splits text into lines and normalizes each line by
// trimming whitespace and collapsing runs of spaces.
func normalizeLines(s string) []string {
	lines := strings.Split(s, "\n")
	// Remove trailing empty line from a terminal newline.
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	result := make([]string, len(lines))
	for i, line := range lines {
		result[i] = collapseSpaces(strings.TrimSpace(line))
	}
	return result
}

func isBlank(lines []string) bool {
	for _, l := range lines {
		if l != "" {
			return false
		}
	}
	return true
}

// collapseSpaces replaces runs of spaces and tabs with a single space.
func collapseSpaces(s string) string {
	var b strings.Builder
	inSpace := false
	for _, r := range s {
		if r == ' ' || r == '\t' {
			if !inSpace {
				b.WriteByte(' ')
				inSpace = true
			}
		} else {
			b.WriteRune(r)
			inSpace = false
		}
	}
	return b.String()
}

// byteOffsetOfLine returns the byte offset of the start of line idx
// in the content reconstructed from lines.
func byteOffsetOfLine(lines []string, idx int) int {
	offset := 0
	for i := 0; i < idx; i++ {
		offset += len(lines[i]) + 1 // +1 for newline
	}
	return offset
}
