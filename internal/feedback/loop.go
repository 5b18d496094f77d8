// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package feedback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/petar-djukic/go-autodiff/internal/merge"
	"github.com/petar-djukic/go-autodiff/pkg/types"
)

const defaultMaxRetries = 3

// RetryFunc is called on each retry iteration with the formatted feedback.
// It should ask the model for corrected edits and merge them, returning
// what the merge returned.
type RetryFunc func(ctx context.Context, feedback string) (*merge.Result, error)

// LoopConfig configures the retry loop.
type LoopConfig struct {
	MaxRetries int          // Maximum retry iterations (default 3)
	Fs         afero.Fs     // Reads modified files for the feedback; nil omits them
	Root       string       // Project root the modified paths are relative to
	Logger     *slog.Logger // Defaults to slog.Default()
}

// LoopResult holds the outcome of the retry loop.
type LoopResult struct {
	Success       bool     // The last merge applied every edit
	Retries       int      // Number of retry iterations performed
	ModifiedFiles []string // All files modified across all iterations
	Final         *merge.Result
}

// Run continues from a first merge. While the merge fails with
// *merge.ApplyError and retries remain, the failure is formatted, retryFn is
// called, and its result becomes the current one. Any other error stops the
// loop and is returned as is.
func Run(ctx context.Context, cfg LoopConfig, first *merge.Result, firstErr error, retryFn RetryFunc) (*LoopResult, error) {
	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = defaultMaxRetries
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	result := &LoopResult{}
	res, err := first, firstErr
	for {
		result.Final = res
		var passModified []string
		if res != nil && res.Report != nil {
			passModified = res.Report.Modified
			result.ModifiedFiles = mergeFiles(result.ModifiedFiles, passModified)
		}

		var applyErr *merge.ApplyError
		if !errors.As(err, &applyErr) {
			result.Success = err == nil
			return result, err
		}

		if result.Retries >= maxRetries {
			return result, fmt.Errorf("max retries (%d) exhausted with remaining failures: %w", maxRetries, err)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, fmt.Errorf("context canceled after %d retries: %w", result.Retries, ctxErr)
		}

		result.Retries++
		log.Info("retrying failed edits", "retry", result.Retries, "failures", len(applyErr.Failures))

		prompt := FormatApplyError(applyErr, readFiles(cfg, passModified))
		res, err = retryFn(ctx, prompt)
	}
}

// readFiles loads the given project-relative files. Unreadable files are
// skipped.
func readFiles(cfg LoopConfig, paths []string) []types.FileContent {
	if cfg.Fs == nil {
		return nil
	}
	var out []types.FileContent
	for _, p := range paths {
		data, err := afero.ReadFile(cfg.Fs, filepath.Join(cfg.Root, p))
		if err != nil {
			continue
		}
		out = append(out, types.FileContent{Path: p, Content: string(data)})
	}
	return out
}

// mergeFiles combines two file lists, deduplicating entries.
func mergeFiles(existing, additional []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, f := range existing {
		seen[f] = true
	}
	merged := make([]string, len(existing))
	copy(merged, existing)
	for _, f := range additional {
		if !seen[f] {
			merged = append(merged, f)
			seen[f] = true
		}
	}
	return merged
}
