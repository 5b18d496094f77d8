// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package coder

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/petar-djukic/go-autodiff/internal/candidate"
	internalcoder "github.com/petar-djukic/go-autodiff/internal/coder"
	"github.com/petar-djukic/go-autodiff/internal/llm"
	"github.com/petar-djukic/go-autodiff/pkg/types"
)

const (
	defaultMaxRetries = 3
	defaultMaxTokens  = 4096
	defaultLLMTimeout = 5 * time.Minute
)

// New validates the config, initializes one LLM client per model, and
// returns a ready-to-use Coder.
func New(ctx context.Context, cfg Config) (Coder, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	applyDefaults(&cfg)

	clients := make([]*llm.Client, 0, len(cfg.Models))
	for _, model := range cfg.Models {
		client, err := llm.NewClient(ctx, llm.ClientConfig{
			ModelID:     model,
			Region:      cfg.Region,
			Profile:     cfg.Profile,
			Timeout:     defaultLLMTimeout,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLLMFailure, err)
		}
		clients = append(clients, client)
	}

	return newCoder(cfg, clients), nil
}

func newCoder(cfg Config, clients []*llm.Client) *coderAdapter {
	gens := make([]candidate.Generator, len(clients))
	for i, c := range clients {
		gens[i] = c
	}

	runner := internalcoder.NewRunner(internalcoder.Deps{
		Generators:     gens,
		Usage:          func() types.TokenUsage { return totalUsage(clients) },
		WorkDir:        cfg.WorkDir,
		Files:          cfg.Files,
		Candidates:     cfg.Candidates,
		Workers:        cfg.Workers,
		MaxRetries:     cfg.MaxRetries,
		FuzzyThreshold: cfg.FuzzyThreshold,
		Language:       cfg.Language,
		NoGit:          cfg.NoGit,
		Logger:         cfg.Logger,
	})

	return &coderAdapter{runner: runner}
}

func totalUsage(clients []*llm.Client) types.TokenUsage {
	var total types.TokenUsage
	for _, c := range clients {
		u := c.CumulativeUsage()
		total.InputTokens += u.InputTokens
		total.OutputTokens += u.OutputTokens
	}
	return total
}

// coderAdapter adapts internal/coder.Runner to the public Coder interface.
type coderAdapter struct {
	runner *internalcoder.Runner
}

func (a *coderAdapter) Run(ctx context.Context, prompt string) (*Result, error) {
	ir, err := a.runner.Run(ctx, prompt)
	if ir == nil {
		return &Result{}, err
	}
	return toResult(ir), err
}

func toResult(ir *internalcoder.RunResult) *Result {
	res := &Result{
		ModifiedFiles: ir.ModifiedFiles,
		TokensUsed:    ir.TokensUsed,
		Candidates:    ir.Candidates,
		Retries:       ir.Retries,
		Success:       ir.Success,
		PreCommit:     ir.PreCommit,
		PostCommit:    ir.PostCommit,
	}
	for _, f := range ir.Failed {
		res.Failures = append(res.Failures, Failure{
			Path:    f.Path,
			Status:  f.Status.String(),
			Reason:  f.Reason,
			Partial: f.Partial,
			Message: f.Message(),
		})
	}
	return res
}

// validateConfig checks that required fields are present.
func validateConfig(cfg Config) error {
	if cfg.WorkDir == "" {
		return fmt.Errorf("WorkDir is required")
	}
	if info, err := os.Stat(cfg.WorkDir); err != nil || !info.IsDir() {
		return fmt.Errorf("WorkDir %q does not exist or is not a directory", cfg.WorkDir)
	}
	if len(cfg.Models) == 0 {
		return fmt.Errorf("at least one model is required")
	}
	for _, m := range cfg.Models {
		if m == "" {
			return fmt.Errorf("model IDs must not be empty")
		}
	}
	if cfg.Region == "" {
		return fmt.Errorf("Region is required")
	}
	if cfg.FuzzyThreshold < 0 || cfg.FuzzyThreshold > 1 {
		return fmt.Errorf("FuzzyThreshold %v is outside [0, 1]", cfg.FuzzyThreshold)
	}
	if cfg.Candidates < 0 || cfg.MaxRetries < 0 {
		return fmt.Errorf("Candidates and MaxRetries must not be negative")
	}
	return nil
}

// applyDefaults fills in zero-value fields with their defaults.
func applyDefaults(cfg *Config) {
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.Candidates == 0 {
		cfg.Candidates = 1
	}
}
