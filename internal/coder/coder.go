// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package coder implements the Runner orchestrator, wiring candidate
// generation, selection, merging and the retry loop into one task run.
package coder

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/afero"

	"github.com/petar-djukic/go-autodiff/internal/candidate"
	"github.com/petar-djukic/go-autodiff/internal/editor"
	"github.com/petar-djukic/go-autodiff/internal/feedback"
	gitpkg "github.com/petar-djukic/go-autodiff/internal/git"
	"github.com/petar-djukic/go-autodiff/internal/llm"
	"github.com/petar-djukic/go-autodiff/internal/merge"
	"github.com/petar-djukic/go-autodiff/pkg/types"
)

const maxContextFileSize = 32 * 1024

// contextExts lists the extensions picked up when no files are named.
var contextExts = map[string]bool{
	".go": true, ".py": true, ".js": true, ".ts": true,
	".yaml": true, ".yml": true, ".md": true,
}

// RunResult holds the outcome of a Runner.Run invocation. This is the
// internal result type; pkg/coder converts it to the public Result.
type RunResult struct {
	ModifiedFiles []string
	Errors        []string // Failure messages left after all retries
	Failed        []merge.Failure
	TokensUsed    types.TokenUsage
	Candidates    int // Candidates generated for the first attempt
	Retries       int
	Success       bool
	PreCommit     string // Hash of the first pre-edit snapshot, if one was made
	PostCommit    string // Hash of the last post-edit snapshot, if one was made
}

// Deps holds injected dependencies for the runner.
type Deps struct {
	Generators     []candidate.Generator    // One per model; at least one
	Ranker         candidate.Ranker         // Optional
	Usage          func() types.TokenUsage  // Optional token usage source
	Fs             afero.Fs                 // Defaults to the OS filesystem
	WorkDir        string
	Files          []string // Project-relative context files; empty walks WorkDir
	Candidates     int      // Generations per model (default 1)
	Workers        int
	MaxRetries     int
	FuzzyThreshold float64
	Language       string
	NoGit          bool
	Logger         *slog.Logger
}

// Runner orchestrates the coding lifecycle.
type Runner struct {
	deps Deps
	fs   afero.Fs
	log  *slog.Logger
}

// NewRunner creates a Runner with the given dependencies.
func NewRunner(deps Deps) *Runner {
	fs := deps.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Runner{deps: deps, fs: fs, log: log}
}

// Run executes the coding lifecycle: read context, generate candidates,
// choose one, merge it with snapshots, and retry on apply failures. Apply
// failures that survive every retry are reported in the result, not as an
// error.
func (r *Runner) Run(ctx context.Context, prompt string) (*RunResult, error) {
	result := &RunResult{}
	if len(r.deps.Generators) == 0 {
		return result, fmt.Errorf("no generators configured: %w", candidate.ErrNoCandidates)
	}

	merger := r.newMerger()

	systemPrompt, err := llm.RenderSystemPrompt(llm.TemplateData{
		OS:       runtime.GOOS,
		Shell:    os.Getenv("SHELL"),
		Language: r.deps.Language,
	})
	if err != nil {
		return result, fmt.Errorf("rendering system prompt: %w", err)
	}

	files, err := r.contextFiles()
	if err != nil {
		return result, fmt.Errorf("reading context files: %w", err)
	}
	r.log.Debug("context files", "count", len(files))

	conv := llm.BuildConversation(systemPrompt, files, prompt)
	opts := merge.Options{Label: gitpkg.LabelFor(prompt), Task: prompt}

	reply, err := r.pick(ctx, merger, conv, &result.Candidates)
	if err != nil {
		return r.finish(result), err
	}
	first, firstErr := merger.MergeCode(ctx, reply, opts)
	recordCommits(result, first)

	loopResult, loopErr := feedback.Run(ctx, feedback.LoopConfig{
		MaxRetries: r.deps.MaxRetries,
		Fs:         r.fs,
		Root:       r.deps.WorkDir,
		Logger:     r.log,
	}, first, firstErr, func(ctx context.Context, fb string) (*merge.Result, error) {
		conv = llm.RetryConversation(conv, reply, fb)
		next, err := r.pick(ctx, merger, conv, nil)
		if err != nil {
			return nil, err
		}
		reply = next
		res, err := merger.MergeCode(ctx, reply, opts)
		recordCommits(result, res)
		return res, err
	})

	if loopResult != nil {
		result.Retries = loopResult.Retries
		result.ModifiedFiles = loopResult.ModifiedFiles
		result.Success = loopResult.Success
	}

	var applyErr *merge.ApplyError
	if errors.As(loopErr, &applyErr) {
		result.Failed = applyErr.Failures
		for _, f := range applyErr.Failures {
			result.Errors = append(result.Errors, f.Message())
		}
		loopErr = nil
	}
	return r.finish(result), loopErr
}

func (r *Runner) newMerger() *merge.Merger {
	cfg := merge.Config{
		Root:    r.deps.WorkDir,
		Fs:      r.fs,
		Matcher: &editor.Matcher{FuzzyThreshold: r.deps.FuzzyThreshold},
		Logger:  r.log,
		SkipGit: r.deps.NoGit,
	}
	if !r.deps.NoGit {
		repo, err := gitpkg.Open(gitpkg.Config{WorkDir: r.deps.WorkDir})
		if err != nil {
			r.log.Warn("git unavailable", "error", err)
		} else {
			cfg.Committer = repo
		}
	}
	return merge.New(cfg)
}

// pick generates candidates for conv and chooses the one to merge.
func (r *Runner) pick(ctx context.Context, merger *merge.Merger, conv types.Conversation, count *int) (string, error) {
	gen, err := candidate.Generate(ctx, r.deps.Generators, conv, candidate.GenerateConfig{
		TimesPerModel: r.deps.Candidates,
		Workers:       r.deps.Workers,
		Logger:        r.log,
	})
	if err != nil {
		return "", fmt.Errorf("generating candidates: %w", err)
	}
	if count != nil {
		*count = gen.Len()
	}

	sel := &candidate.Selector{
		Ranker:  r.deps.Ranker,
		DryRun:  merger,
		Workers: r.deps.Workers,
		Logger:  r.log,
	}
	chosen, err := sel.Choose(ctx, gen)
	if err != nil {
		return "", fmt.Errorf("choosing candidate: %w", err)
	}
	return chosen, nil
}

func (r *Runner) finish(result *RunResult) *RunResult {
	if r.deps.Usage != nil {
		result.TokensUsed = r.deps.Usage()
	}
	return result
}

func recordCommits(result *RunResult, res *merge.Result) {
	if res == nil {
		return
	}
	if res.Pre != nil && !res.Pre.Skipped && result.PreCommit == "" {
		result.PreCommit = res.Pre.Hash
	}
	if res.Post != nil && !res.Post.Skipped {
		result.PostCommit = res.Post.Hash
	}
}

// contextFiles reads the configured files, or every small source file under
// the work directory when none are named.
func (r *Runner) contextFiles() ([]types.FileContent, error) {
	if len(r.deps.Files) > 0 {
		files := make([]types.FileContent, 0, len(r.deps.Files))
		for _, rel := range r.deps.Files {
			data, err := afero.ReadFile(r.fs, filepath.Join(r.deps.WorkDir, rel))
			switch {
			case err == nil:
				files = append(files, types.FileContent{Path: rel, Content: string(data)})
			case errors.Is(err, fs.ErrNotExist):
				// A file the model is asked to create.
				files = append(files, types.FileContent{Path: rel})
			default:
				return nil, err
			}
		}
		return files, nil
	}
	return r.walkFiles(), nil
}

func (r *Runner) walkFiles() []types.FileContent {
	var files []types.FileContent

	_ = afero.Walk(r.fs, r.deps.WorkDir, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			base := filepath.Base(path)
			if base == ".git" || base == "vendor" || base == "node_modules" || base == "testdata" {
				return filepath.SkipDir
			}
			return nil
		}

		if !contextExts[filepath.Ext(path)] || info.Size() > maxContextFileSize {
			return nil
		}

		content, err := afero.ReadFile(r.fs, path)
		if err != nil {
			return nil
		}

		relPath, _ := filepath.Rel(r.deps.WorkDir, path)
		files = append(files, types.FileContent{
			Path:    relPath,
			Content: string(content),
		})
		return nil
	})

	return files
}
