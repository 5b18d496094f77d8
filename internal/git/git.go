// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package git takes snapshot commits around applied edits and undoes them.
package git

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	gogit "github.com/go-git/go-git/v5"
)

// ToolPrefix starts the subject of every commit this tool makes.
const ToolPrefix = "autodiff_"

// ErrNotToolCommit is returned when undo targets a commit not made by this tool.
var ErrNotToolCommit = errors.New("not a go-autodiff commit")

// ErrNoGit is returned when the working directory is not a git repository.
var ErrNoGit = errors.New("not a git repository")

// Config configures git integration.
type Config struct {
	WorkDir     string // Repository working directory
	AuthorName  string // Commit author; defaults to "go-autodiff"
	AuthorEmail string // Commit author email; defaults to "noreply@go-autodiff"
}

// Repo wraps a go-git repository for the operations we need.
type Repo struct {
	repo *gogit.Repository
	cfg  Config
}

// Open opens an existing git repository at the configured work directory.
// Parent directories are searched, so WorkDir may be any directory inside
// the work tree. Returns ErrNoGit if no repository is found.
func Open(cfg Config) (*Repo, error) {
	r, err := gogit.PlainOpenWithOptions(cfg.WorkDir, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoGit, err)
	}
	if cfg.AuthorName == "" {
		cfg.AuthorName = "go-autodiff"
	}
	if cfg.AuthorEmail == "" {
		cfg.AuthorEmail = "noreply@go-autodiff"
	}
	return &Repo{repo: r, cfg: cfg}, nil
}

// IsDirty returns true if the working tree has uncommitted changes
// (either staged or unstaged).
func (r *Repo) IsDirty() (bool, error) {
	changed, err := r.changedFiles()
	if err != nil {
		return false, err
	}
	return len(changed) > 0, nil
}

// IsToolCommit reports whether HEAD was made by this tool, judged by its
// message prefix.
func (r *Repo) IsToolCommit() (bool, error) {
	msg, err := r.lastCommitMessage()
	if err != nil {
		return false, fmt.Errorf("reading HEAD: %w", err)
	}
	return strings.HasPrefix(msg, ToolPrefix), nil
}

// changedFiles returns the sorted paths of every modified, added, deleted or
// untracked file.
func (r *Repo) changedFiles() ([]string, error) {
	wt, err := r.repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("getting worktree: %w", err)
	}

	status, err := wt.Status()
	if err != nil {
		return nil, fmt.Errorf("getting status: %w", err)
	}

	var changed []string
	for path, s := range status {
		if s.Staging == gogit.Unmodified && s.Worktree == gogit.Unmodified {
			continue
		}
		changed = append(changed, path)
	}
	sort.Strings(changed)
	return changed, nil
}

// lastCommitMessage returns the message of the HEAD commit.
func (r *Repo) lastCommitMessage() (string, error) {
	head, err := r.repo.Head()
	if err != nil {
		return "", err
	}
	commit, err := r.repo.CommitObject(head.Hash())
	if err != nil {
		return "", err
	}
	return commit.Message, nil
}
