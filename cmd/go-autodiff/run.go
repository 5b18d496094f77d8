// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	gitpkg "github.com/petar-djukic/go-autodiff/internal/git"
	"github.com/petar-djukic/go-autodiff/pkg/coder"
)

var envKeyReplacer = strings.NewReplacer("-", "_")

// newRunCmd creates the "run" command.
func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a coding task",
		Long:  "Run sends a natural language task to the models, merges the best candidate's edits, and retries with feedback when hunks fail to apply.",
		RunE:  runCoder,
	}

	cmd.Flags().StringP("prompt", "p", "", "Coding task description (required)")
	cmd.MarkFlagRequired("prompt")

	cmd.Flags().StringSlice("models", nil, "Bedrock model IDs")
	cmd.Flags().String("region", "", "AWS region for Bedrock")
	cmd.Flags().String("profile", "", "AWS credential profile")
	cmd.Flags().StringSlice("files", nil, "Project-relative files shown to the model")
	cmd.Flags().Int("candidates", 1, "Generations per model")
	cmd.Flags().Int("workers", 4, "Concurrent model calls and dry runs")
	cmd.Flags().Int("max-retries", 3, "Maximum feedback loop iterations")
	cmd.Flags().Int("max-tokens", 4096, "Maximum tokens for LLM response")
	cmd.Flags().Float64("temperature", 0, "Sampling temperature")
	cmd.Flags().String("language", "", "Reply language")

	for _, name := range []string{"models", "region", "profile", "files", "candidates", "workers", "max-retries", "max-tokens", "temperature", "language"} {
		viper.BindPFlag(name, cmd.Flags().Lookup(name))
	}

	return cmd
}

// runCoder executes the coding task.
func runCoder(cmd *cobra.Command, args []string) error {
	prompt, _ := cmd.Flags().GetString("prompt")

	cfg := coder.Config{
		WorkDir:        viper.GetString("workdir"),
		Models:         viper.GetStringSlice("models"),
		Region:         viper.GetString("region"),
		Profile:        viper.GetString("profile"),
		Files:          viper.GetStringSlice("files"),
		Candidates:     viper.GetInt("candidates"),
		Workers:        viper.GetInt("workers"),
		MaxRetries:     viper.GetInt("max-retries"),
		MaxTokens:      viper.GetInt("max-tokens"),
		Temperature:    viper.GetFloat64("temperature"),
		FuzzyThreshold: viper.GetFloat64("fuzzy-threshold"),
		Language:       viper.GetString("language"),
		NoGit:          viper.GetBool("no-git"),
		Logger:         slog.Default(),
	}

	ctx := cmd.Context()
	c, err := coder.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	result, err := c.Run(ctx, prompt)
	if result != nil {
		printJSON(cmd.OutOrStdout(), result)
	}
	if err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("%d hunks failed to apply after %d retries", len(result.Failures), result.Retries)
	}
	return nil
}

// printJSON outputs v as indented JSON.
func printJSON(w io.Writer, v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling result: %v\n", err)
		return
	}
	fmt.Fprintln(w, string(out))
}

// newUndoCmd creates the "undo" command.
func newUndoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "undo",
		Short: "Revert the last go-autodiff commit",
		Long:  "Undo performs a soft reset of the last commit if it was made by go-autodiff.",
		RunE: func(cmd *cobra.Command, args []string) error {
			workDir := viper.GetString("workdir")

			repo, err := gitpkg.Open(gitpkg.Config{WorkDir: workDir})
			if err != nil {
				return fmt.Errorf("opening repository: %w", err)
			}

			if err := repo.Undo(); err != nil {
				return fmt.Errorf("undo failed: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Successfully reverted last go-autodiff commit.")
			return nil
		},
	}
}
