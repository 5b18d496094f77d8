// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package coder defines the public interface for go-autodiff: ask one or
// more models for unified-diff edits and apply them to a repository.
package coder

import (
	"context"
	"errors"
	"log/slog"

	"github.com/petar-djukic/go-autodiff/pkg/types"
)

// Error types for the Coder API.
var (
	ErrInvalidConfig = errors.New("invalid config")
	ErrLLMFailure    = errors.New("LLM call failed")
)

// Config configures a Coder instance.
type Config struct {
	WorkDir        string       // Repository root (required)
	Models         []string     // Bedrock model IDs (at least one)
	Region         string       // AWS region (required)
	Profile        string       // AWS credential profile
	Files          []string     // Project-relative files shown to the model; empty sends every small source file
	Candidates     int          // Generations per model (default 1)
	Workers        int          // Concurrent model calls and dry runs (default 4)
	MaxRetries     int          // Maximum feedback loop iterations (default 3)
	MaxTokens      int          // Maximum tokens for LLM response (default 4096)
	Temperature    float64      // Sampling temperature; zero leaves the model default
	FuzzyThreshold float64      // Fuzzy match similarity in (0, 1]; zero disables fuzzy matching
	Language       string       // Reply language
	NoGit          bool         // Apply without snapshot commits
	Logger         *slog.Logger // Defaults to slog.Default()
}

// Failure is one hunk that could not be applied.
type Failure struct {
	Path    string `json:"path"`
	Status  string `json:"status"`
	Reason  string `json:"reason,omitempty"`
	Partial bool   `json:"partial,omitempty"`
	Message string `json:"message"`
}

// Result holds the outcome of a Coder.Run invocation.
type Result struct {
	ModifiedFiles []string         `json:"modified_files"`
	Failures      []Failure        `json:"failures,omitempty"`
	TokensUsed    types.TokenUsage `json:"tokens_used"`
	Candidates    int              `json:"candidates"`
	Retries       int              `json:"retries"`
	Success       bool             `json:"success"`
	PreCommit     string           `json:"pre_commit,omitempty"`
	PostCommit    string           `json:"post_commit,omitempty"`
}

// Coder runs a coding task against a repository.
type Coder interface {
	// Run sends the task to the models, merges the chosen output, feeds
	// apply failures back for correction, and returns the result.
	Run(ctx context.Context, prompt string) (*Result, error)
}
