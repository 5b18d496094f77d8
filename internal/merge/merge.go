// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package merge applies the edits of one model output to the project, with
// snapshot commits around the effectful apply, and dry-runs outputs against
// private in-memory snapshots.
package merge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/petar-djukic/go-autodiff/internal/editformat"
	"github.com/petar-djukic/go-autodiff/internal/editor"
	"github.com/petar-djukic/go-autodiff/internal/git"
	"github.com/petar-djukic/go-autodiff/internal/hunk"
	"github.com/petar-djukic/go-autodiff/pkg/types"
)

// closestMin is the similarity below which no closest region is reported.
const closestMin = 0.5

// Committer takes a commit of every working-tree change. *git.Repo
// satisfies it.
type Committer interface {
	Snapshot(message string) (*git.CommitResult, error)
}

// dirtyChecker reports uncommitted changes. *git.Repo satisfies it.
type dirtyChecker interface {
	IsDirty() (bool, error)
}

// Config configures a Merger.
type Config struct {
	Root      string          // Project root; relative edit paths resolve against it
	Fs        afero.Fs        // Filesystem (defaults to the OS)
	Committer Committer       // Snapshot commits; required unless SkipGit
	Matcher   *editor.Matcher // Hunk matcher (defaults to the zero Matcher)
	Logger    *slog.Logger    // Defaults to slog.Default()
	SkipGit   bool            // Apply without snapshot commits
}

// Merger applies model outputs to a project. MergeCode calls are serialized;
// DryRun is safe for concurrent use.
type Merger struct {
	cfg      Config
	fs       afero.Fs
	resolver *editformat.Resolver
	matcher  *editor.Matcher
	log      *slog.Logger

	mu sync.Mutex
}

// New creates a Merger.
func New(cfg Config) *Merger {
	fs := cfg.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	matcher := cfg.Matcher
	if matcher == nil {
		matcher = &editor.Matcher{}
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Merger{
		cfg:      cfg,
		fs:       fs,
		resolver: editformat.NewResolver(fs, cfg.Root),
		matcher:  matcher,
		log:      log,
	}
}

// Options qualify one MergeCode call.
type Options struct {
	Label string // Short tag in the snapshot commit messages (default "autodiff")
	Task  string // Text hashed into the commit messages (defaults to the model output)
}

// Report summarizes one apply pass.
type Report struct {
	RunID    string
	Edits    int      // Unique non-empty edits attempted
	Dropped  int      // Edits dropped as no-ops or duplicates
	Modified []string // Project-relative paths written, in first-write order
	Failures []Failure
}

// Result is the outcome of MergeCode.
type Result struct {
	Report *Report
	Pre    *git.CommitResult // Snapshot before the apply; nil when SkipGit
	Post   *git.CommitResult // Snapshot after a clean apply; nil otherwise
}

// MergeCode extracts the edits from content and applies them to the
// project. A snapshot commit is taken first; if it fails, ErrVCSUnavailable
// is returned and nothing is applied. When every edit applies, a second
// snapshot commit records the result. A failed apply returns *ApplyError;
// files changed by the edits that did apply are left written.
func (m *Merger) MergeCode(ctx context.Context, content string, opts Options) (*Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	runID := uuid.NewString()
	log := m.log.With("run", runID)

	label := opts.Label
	if label == "" {
		label = "autodiff"
	}
	task := opts.Task
	if task == "" {
		task = content
	}

	res := &Result{}
	if !m.cfg.SkipGit {
		if m.cfg.Committer == nil {
			return nil, fmt.Errorf("%w: %s", ErrVCSUnavailable, gitInitHint)
		}
		if d, ok := m.cfg.Committer.(dirtyChecker); ok {
			if dirty, err := d.IsDirty(); err == nil {
				log.Debug("working tree", "dirty", dirty)
			}
		}
		pre, err := m.cfg.Committer.Snapshot(git.SnapshotMessage(git.PrePrefix, label, task))
		if err != nil {
			log.Error("pre-edit snapshot failed", "root", m.resolver.Root, "error", err)
			return nil, fmt.Errorf("%w: %s: %v", ErrVCSUnavailable, gitInitHint, err)
		}
		res.Pre = pre
		log.Debug("pre-edit snapshot", "hash", pre.Hash, "skipped", pre.Skipped)
	}

	report, err := m.apply(ctx, log, runID, editformat.Parse(content))
	res.Report = report
	if err != nil {
		return res, err
	}
	log.Info("merged edits", "files", len(report.Modified), "edits", report.Edits)

	if !m.cfg.SkipGit {
		post, err := m.cfg.Committer.Snapshot(git.SnapshotMessage(git.PostPrefix, label, task))
		if err != nil {
			return res, fmt.Errorf("post-edit snapshot: %w", err)
		}
		res.Post = post
		log.Debug("post-edit snapshot", "hash", post.Hash, "changed", len(post.Changed))
	}
	return res, nil
}

// ApplyEdits applies already extracted edits to the project without
// snapshot commits.
func (m *Merger) ApplyEdits(ctx context.Context, edits []types.Edit) (*Report, error) {
	runID := uuid.NewString()
	return m.apply(ctx, m.log.With("run", runID), runID, edits)
}

// DryRun applies the edits of content against a private snapshot of the
// project and reports what would happen. Nothing is written.
func (m *Merger) DryRun(ctx context.Context, content string) (types.MergeOutcome, error) {
	var out types.MergeOutcome
	pending, _ := m.prepare(editformat.Parse(content))

	snap := types.FileSnapshot{}
	var touched []pendingEdit
	seen := make(map[string]bool)
	for _, p := range pending {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		res, _, err := m.applyOne(snap, p)
		if err != nil {
			return out, err
		}
		if res.OK() || res.Partial {
			snap[p.abs] = res.Content
		}
		if res.OK() && !seen[p.abs] {
			seen[p.abs] = true
			touched = append(touched, p)
		}
		if !res.OK() {
			out.Failed = append(out.Failed, types.FailedBlock{
				Path:   p.rel,
				Hunk:   p.hunk.String(),
				Status: res.Status,
				Reason: res.Reason,
			})
		}
	}

	for _, p := range touched {
		out.Succeeded = append(out.Succeeded, types.FileContent{Path: p.rel, Content: snap[p.abs]})
	}
	return out, nil
}

// pendingEdit is a normalized, deduplicated edit with its resolved path.
type pendingEdit struct {
	rel  string
	abs  string
	hunk types.Hunk
}

// prepare normalizes the edits, drops the ones that change nothing and
// removes duplicates, keeping first occurrences in order.
func (m *Merger) prepare(edits []types.Edit) (pending []pendingEdit, dropped int) {
	seen := make(map[string]bool, len(edits))
	for _, e := range edits {
		h := hunk.Normalize(e.Hunk)
		if h == nil {
			dropped++
			continue
		}
		abs := m.resolver.Resolve(e.Path)
		key := abs + "\n" + h.String()
		if seen[key] {
			dropped++
			continue
		}
		seen[key] = true
		pending = append(pending, pendingEdit{rel: m.resolver.Rel(abs), abs: abs, hunk: h})
	}
	return pending, dropped
}

// applyOne applies one edit against the snapshot, loading the file on first
// use. The returned string is the file content the edit was matched against.
func (m *Merger) applyOne(snap types.FileSnapshot, p pendingEdit) (types.MatchResult, string, error) {
	content, exists := snap[p.abs]
	if !exists {
		data, err := afero.ReadFile(m.fs, p.abs)
		switch {
		case err == nil:
			content, exists = string(data), true
			snap[p.abs] = content
		case errors.Is(err, os.ErrNotExist):
		default:
			return types.MatchResult{}, "", fmt.Errorf("reading %s: %w", p.rel, err)
		}
	}
	return m.matcher.Replace(content, exists, p.hunk), content, nil
}

func (m *Merger) apply(ctx context.Context, log *slog.Logger, runID string, edits []types.Edit) (*Report, error) {
	pending, dropped := m.prepare(edits)
	report := &Report{RunID: runID, Edits: len(pending), Dropped: dropped}

	snap := types.FileSnapshot{}
	written := make(map[string]bool)
	for _, p := range pending {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		res, before, err := m.applyOne(snap, p)
		if err != nil {
			return report, err
		}

		if res.OK() || res.Partial {
			snap[p.abs] = res.Content
			if err := editor.WriteFile(m.fs, p.abs, []byte(res.Content)); err != nil {
				return report, fmt.Errorf("writing %s: %w", p.rel, err)
			}
			if !written[p.abs] {
				written[p.abs] = true
				report.Modified = append(report.Modified, p.rel)
			}
		}

		if res.OK() {
			log.Debug("hunk applied", "path", p.rel, "stage", res.Stage.String())
			continue
		}

		log.Warn("hunk failed", "path", p.rel, "status", res.Status.String(), "partial", res.Partial, "reason", res.Reason)
		report.Failures = append(report.Failures, newFailure(p, res, before))
	}

	if len(report.Failures) > 0 {
		return report, &ApplyError{Failures: report.Failures, Attempted: report.Edits}
	}
	return report, nil
}

func newFailure(p pendingEdit, res types.MatchResult, content string) Failure {
	original, _ := p.hunk.BeforeAfter()
	f := Failure{
		Path:     p.rel,
		Status:   res.Status,
		Original: original,
		Hunk:     p.hunk,
		Reason:   res.Reason,
		Partial:  res.Partial,
	}
	if res.Status == types.StatusNoMatch {
		closest, sim, start, end := editor.ClosestMatch(content, original)
		if sim >= closestMin {
			f.Closest, f.ClosestStart, f.ClosestEnd = closest, start, end
		}
	}
	return f
}
