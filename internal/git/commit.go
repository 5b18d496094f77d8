// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package git

import (
	"fmt"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// CommitResult describes a snapshot commit.
type CommitResult struct {
	Hash    string   // Commit hash; empty when Skipped
	Message string   // Full commit message
	Changed []string // Repository-relative paths included in the commit
	Skipped bool     // The tree was clean, so nothing was committed
}

// Snapshot stages every change in the working tree, deletions and untracked
// files included, and commits it under message. A clean tree is not an
// error: the result is marked Skipped.
func (r *Repo) Snapshot(message string) (*CommitResult, error) {
	changed, err := r.changedFiles()
	if err != nil {
		return nil, err
	}
	if len(changed) == 0 {
		return &CommitResult{Message: message, Skipped: true}, nil
	}

	wt, err := r.repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("getting worktree: %w", err)
	}

	if err := wt.AddWithOptions(&gogit.AddOptions{All: true}); err != nil {
		return nil, fmt.Errorf("staging changes: %w", err)
	}

	hash, err := wt.Commit(message, &gogit.CommitOptions{
		Author: &object.Signature{
			Name:  r.cfg.AuthorName,
			Email: r.cfg.AuthorEmail,
			When:  time.Now(),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("committing: %w", err)
	}

	return &CommitResult{Hash: hash.String(), Message: message, Changed: changed}, nil
}

// Undo reverts the last commit if it was made by this tool. Uses
// git reset --soft HEAD~1 so the changes stay in the working tree.
func (r *Repo) Undo() error {
	isTool, err := r.IsToolCommit()
	if err != nil {
		return err
	}
	if !isTool {
		return ErrNotToolCommit
	}

	head, err := r.repo.Head()
	if err != nil {
		return fmt.Errorf("getting HEAD: %w", err)
	}

	commit, err := r.repo.CommitObject(head.Hash())
	if err != nil {
		return fmt.Errorf("getting commit: %w", err)
	}

	if commit.NumParents() == 0 {
		return fmt.Errorf("cannot undo: HEAD is the initial commit")
	}

	parent, err := commit.Parent(0)
	if err != nil {
		return fmt.Errorf("getting parent commit: %w", err)
	}

	wt, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("getting worktree: %w", err)
	}

	err = wt.Reset(&gogit.ResetOptions{
		Commit: parent.Hash,
		Mode:   gogit.SoftReset,
	})
	if err != nil {
		return fmt.Errorf("resetting to parent: %w", err)
	}

	return nil
}
