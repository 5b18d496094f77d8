// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package candidate produces several model outputs for one conversation
// and picks the one to merge.
package candidate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/petar-djukic/go-autodiff/pkg/types"
)

// ErrNoCandidates is returned when no candidate output is available.
var ErrNoCandidates = errors.New("no candidates generated")

// ErrNoDryRunner is returned when several candidates need a dry run and the
// Selector has no DryRunner.
var ErrNoDryRunner = errors.New("no dry runner configured")

const defaultWorkers = 4

// Generator produces one model output for a conversation.
type Generator interface {
	Generate(ctx context.Context, conv types.Conversation) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, conv types.Conversation) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, conv types.Conversation) (string, error) {
	return f(ctx, conv)
}

// GenerateConfig configures Generate.
type GenerateConfig struct {
	TimesPerModel int          // Calls per generator (default 1)
	Workers       int          // Concurrent calls (default 4)
	Logger        *slog.Logger // Defaults to slog.Default()
}

// Generate calls every generator TimesPerModel times, at most Workers at a
// time. A failing call is logged and dropped without canceling the others.
// Results keep generator order, then repetition order. Each conversation in
// the result is the input conversation plus the assistant reply.
func Generate(ctx context.Context, gens []Generator, conv types.Conversation, cfg GenerateConfig) (types.GenerateResult, error) {
	times := max(cfg.TimesPerModel, 1)
	workers := cfg.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	n := len(gens) * times
	if n == 0 {
		return types.GenerateResult{}, ErrNoCandidates
	}
	outs := make([]string, n)
	errs := make([]error, n)

	var g errgroup.Group
	g.SetLimit(workers)
	for i, gen := range gens {
		for r := range times {
			idx := i*times + r
			g.Go(func() error {
				outs[idx], errs[idx] = gen.Generate(ctx, conv.With())
				return nil
			})
		}
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return types.GenerateResult{}, err
	}

	var res types.GenerateResult
	for idx := range n {
		if errs[idx] != nil {
			log.Warn("candidate generation failed", "generator", idx/times, "attempt", idx%times, "error", errs[idx])
			continue
		}
		res.Contents = append(res.Contents, outs[idx])
		res.Conversations = append(res.Conversations, conv.With(types.Message{Role: types.RoleAssistant, Content: outs[idx]}))
	}

	if res.Len() == 0 {
		return res, fmt.Errorf("%w: %w", ErrNoCandidates, errors.Join(errs...))
	}
	log.Debug("candidates generated", "count", res.Len(), "failed", n-res.Len())
	return res, nil
}
