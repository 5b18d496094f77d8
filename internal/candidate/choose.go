// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package candidate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sourcegraph/conc/iter"

	"github.com/petar-djukic/go-autodiff/pkg/types"
)

// Ranker orders candidates best first. The returned result must hold the
// same candidates as the input, reordered.
type Ranker interface {
	Rank(ctx context.Context, result types.GenerateResult) (types.GenerateResult, error)
}

// RankFunc adapts a function to Ranker.
type RankFunc func(ctx context.Context, result types.GenerateResult) (types.GenerateResult, error)

func (f RankFunc) Rank(ctx context.Context, result types.GenerateResult) (types.GenerateResult, error) {
	return f(ctx, result)
}

// DryRunner applies a model output without side effects. *merge.Merger
// satisfies it.
type DryRunner interface {
	DryRun(ctx context.Context, content string) (types.MergeOutcome, error)
}

// Selector picks the candidate to merge.
type Selector struct {
	Ranker  Ranker       // Optional; candidates keep their order without one
	DryRun  DryRunner    // Required when there is more than one candidate
	Workers int          // Concurrent dry runs (default 4)
	Logger  *slog.Logger // Defaults to slog.Default()
}

type dryRunResult struct {
	outcome types.MergeOutcome
	err     error
}

// Choose returns the candidate to merge. A single candidate is returned as
// is. Otherwise the candidates are ranked and each is dry-run against its
// own snapshot of the project; the first in rank order whose every hunk
// applies wins, falling back to the top-ranked candidate.
func (s *Selector) Choose(ctx context.Context, result types.GenerateResult) (string, error) {
	switch result.Len() {
	case 0:
		return "", ErrNoCandidates
	case 1:
		return result.Contents[0], nil
	}
	if s.DryRun == nil {
		return "", fmt.Errorf("selecting among %d candidates: %w", result.Len(), ErrNoDryRunner)
	}

	log := s.Logger
	if log == nil {
		log = slog.Default()
	}

	ranked := result
	if s.Ranker != nil {
		r, err := s.Ranker.Rank(ctx, result)
		switch {
		case err != nil:
			log.Warn("ranking failed, keeping generation order", "error", err)
		case r.Len() == 0:
			log.Warn("ranking returned no candidates, keeping generation order")
		default:
			ranked = r
		}
	}

	workers := s.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	mapper := iter.Mapper[string, dryRunResult]{MaxGoroutines: workers}
	results := mapper.Map(ranked.Contents, func(content *string) dryRunResult {
		out, err := s.DryRun.DryRun(ctx, *content)
		return dryRunResult{outcome: out, err: err}
	})

	if err := ctx.Err(); err != nil {
		return "", err
	}

	for i, r := range results {
		if r.err != nil {
			log.Warn("dry run failed", "candidate", i, "error", r.err)
			continue
		}
		log.Debug("dry run", "candidate", i, "succeeded", len(r.outcome.Succeeded), "failed", len(r.outcome.Failed))
		if r.outcome.Clean() {
			return ranked.Contents[i], nil
		}
	}
	return ranked.Contents[0], nil
}
