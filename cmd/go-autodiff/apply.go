// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/petar-djukic/go-autodiff/internal/editor"
	gitpkg "github.com/petar-djukic/go-autodiff/internal/git"
	"github.com/petar-djukic/go-autodiff/internal/merge"
)

// errHunksFailed makes apply and check exit non-zero after printing the failures.
var errHunksFailed = errors.New("some hunks failed to apply")

// newApplyCmd creates the "apply" command.
func newApplyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Merge one model output into the repository",
		Long:  "Apply extracts the fenced unified diffs of a model output and merges them between git snapshot commits.",
		RunE:  runApply,
	}
	cmd.Flags().StringP("input", "i", "-", "File holding the model output, - for stdin")
	cmd.Flags().String("task", "", "Task text recorded in the snapshot commit messages")
	return cmd
}

// newCheckCmd creates the "check" command.
func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Dry-run one model output",
		Long:  "Check applies a model output to an in-memory snapshot of the repository and prints what would succeed and fail as JSON. Nothing is written.",
		RunE:  runCheck,
	}
	cmd.Flags().StringP("input", "i", "-", "File holding the model output, - for stdin")
	return cmd
}

func runApply(cmd *cobra.Command, args []string) error {
	content, err := readInput(cmd)
	if err != nil {
		return err
	}
	task, _ := cmd.Flags().GetString("task")

	res, err := newMerger().MergeCode(cmd.Context(), content, merge.Options{
		Label: gitpkg.LabelFor(task),
		Task:  task,
	})

	var applyErr *merge.ApplyError
	if errors.As(err, &applyErr) {
		fmt.Fprint(cmd.OutOrStdout(), applyErr.Error())
		return errHunksFailed
	}
	if err != nil {
		return err
	}

	for _, path := range res.Report.Modified {
		fmt.Fprintf(cmd.OutOrStdout(), "Applied edit to %s\n", path)
	}
	if res.Post != nil && !res.Post.Skipped {
		fmt.Fprintf(cmd.OutOrStdout(), "Commit %s %s\n", shortHash(res.Post.Hash), res.Post.Message)
	}
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	content, err := readInput(cmd)
	if err != nil {
		return err
	}

	out, err := newMerger().DryRun(cmd.Context(), content)
	if err != nil {
		return err
	}
	printJSON(cmd.OutOrStdout(), out)
	if !out.Clean() {
		return errHunksFailed
	}
	return nil
}

// newMerger builds a Merger for the configured work directory. A missing
// repository is left for MergeCode to report.
func newMerger() *merge.Merger {
	workDir, err := filepath.Abs(viper.GetString("workdir"))
	if err != nil {
		workDir = viper.GetString("workdir")
	}

	cfg := merge.Config{
		Root:    workDir,
		Fs:      afero.NewOsFs(),
		Matcher: &editor.Matcher{FuzzyThreshold: viper.GetFloat64("fuzzy-threshold")},
		Logger:  slog.Default(),
		SkipGit: viper.GetBool("no-git"),
	}
	if !cfg.SkipGit {
		if repo, err := gitpkg.Open(gitpkg.Config{WorkDir: workDir}); err == nil {
			cfg.Committer = repo
		}
	}
	return merge.New(cfg)
}

func readInput(cmd *cobra.Command) (string, error) {
	input, _ := cmd.Flags().GetString("input")

	var data []byte
	var err error
	if input == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(input)
	}
	if err != nil {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return string(data), nil
}

func shortHash(h string) string {
	if len(h) > 7 {
		return h[:7]
	}
	return h
}
