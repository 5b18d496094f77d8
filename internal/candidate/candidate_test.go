// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package candidate

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petar-djukic/go-autodiff/internal/merge"
	"github.com/petar-djukic/go-autodiff/pkg/types"
)

var baseConv = types.Conversation{
	{Role: types.RoleSystem, Content: "system"},
	{Role: types.RoleUser, Content: "change f"},
}

func constGen(out string) Generator {
	return GeneratorFunc(func(ctx context.Context, conv types.Conversation) (string, error) {
		return out, nil
	})
}

func TestGenerate_OrderAndConversations(t *testing.T) {
	var calls atomic.Int32
	counting := GeneratorFunc(func(ctx context.Context, conv types.Conversation) (string, error) {
		calls.Add(1)
		return "b", nil
	})

	res, err := Generate(context.Background(), []Generator{constGen("a"), counting}, baseConv, GenerateConfig{TimesPerModel: 2, Workers: 3})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "a", "b", "b"}, res.Contents)
	assert.Equal(t, int32(2), calls.Load())

	require.Len(t, res.Conversations, 4)
	for i, conv := range res.Conversations {
		require.Len(t, conv, 3)
		assert.Equal(t, types.Message{Role: types.RoleAssistant, Content: res.Contents[i]}, conv[2])
	}
	assert.Len(t, baseConv, 2, "input conversation must not grow")
}

func TestGenerate_DropsFailures(t *testing.T) {
	failing := GeneratorFunc(func(ctx context.Context, conv types.Conversation) (string, error) {
		return "", errors.New("throttled")
	})

	res, err := Generate(context.Background(), []Generator{failing, constGen("ok")}, baseConv, GenerateConfig{})
	require.NoError(t, err)
	assert.Equal(t, []string{"ok"}, res.Contents)
}

func TestGenerate_AllFail(t *testing.T) {
	failing := GeneratorFunc(func(ctx context.Context, conv types.Conversation) (string, error) {
		return "", errors.New("model unavailable")
	})

	_, err := Generate(context.Background(), []Generator{failing}, baseConv, GenerateConfig{TimesPerModel: 3})
	assert.ErrorIs(t, err, ErrNoCandidates)
	assert.Contains(t, err.Error(), "model unavailable")

	_, err = Generate(context.Background(), nil, baseConv, GenerateConfig{})
	assert.ErrorIs(t, err, ErrNoCandidates)
}

func TestGenerate_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	blocking := GeneratorFunc(func(ctx context.Context, conv types.Conversation) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})

	_, err := Generate(ctx, []Generator{blocking}, baseConv, GenerateConfig{})
	assert.ErrorIs(t, err, context.Canceled)
}

const appPy = "def f():\n    return 1\n"

func diffOutput(oldLine, newLine string) string {
	return fmt.Sprintf("```diff\n--- app.py\n+++ app.py\n@@ @@\n def f():\n-%s\n+%s\n```\n", oldLine, newLine)
}

func newMerger(t *testing.T) *merge.Merger {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/proj/app.py", []byte(appPy), 0o644))
	return merge.New(merge.Config{Root: "/proj", Fs: fs, SkipGit: true})
}

func TestChoose_SingleCandidate(t *testing.T) {
	s := &Selector{}
	got, err := s.Choose(context.Background(), types.GenerateResult{Contents: []string{"only"}})
	require.NoError(t, err)
	assert.Equal(t, "only", got)
}

func TestChoose_NoCandidates(t *testing.T) {
	s := &Selector{}
	_, err := s.Choose(context.Background(), types.GenerateResult{})
	assert.ErrorIs(t, err, ErrNoCandidates)
}

func TestChoose_NoDryRunner(t *testing.T) {
	s := &Selector{}
	_, err := s.Choose(context.Background(), types.GenerateResult{Contents: []string{"one", "two"}})
	assert.ErrorIs(t, err, ErrNoDryRunner)
}

func TestChoose_PrefersCleanOverTopRanked(t *testing.T) {
	broken := diffOutput("    return 42", "    return 2")
	clean := diffOutput("    return 1", "    return 2")

	// The ranker puts the broken candidate first.
	ranker := RankFunc(func(ctx context.Context, r types.GenerateResult) (types.GenerateResult, error) {
		return types.GenerateResult{Contents: []string{broken, clean}}, nil
	})

	s := &Selector{Ranker: ranker, DryRun: newMerger(t), Workers: 2}
	got, err := s.Choose(context.Background(), types.GenerateResult{Contents: []string{clean, broken}})
	require.NoError(t, err)
	assert.Equal(t, clean, got)
}

func TestChoose_FallsBackToTopRanked(t *testing.T) {
	a := diffOutput("    return 42", "    return 2")
	b := diffOutput("    return 43", "    return 3")

	s := &Selector{DryRun: newMerger(t)}
	got, err := s.Choose(context.Background(), types.GenerateResult{Contents: []string{a, b}})
	require.NoError(t, err)
	assert.Equal(t, a, got)
}

func TestChoose_RankerErrorKeepsOrder(t *testing.T) {
	first := diffOutput("    return 1", "    return 2")
	second := diffOutput("    return 1", "    return 3")

	ranker := RankFunc(func(ctx context.Context, r types.GenerateResult) (types.GenerateResult, error) {
		return types.GenerateResult{}, errors.New("ranking model timed out")
	})

	s := &Selector{Ranker: ranker, DryRun: newMerger(t)}
	got, err := s.Choose(context.Background(), types.GenerateResult{Contents: []string{first, second}})
	require.NoError(t, err)
	assert.Equal(t, first, got)
}

func TestChoose_DryRunsDoNotShareState(t *testing.T) {
	// Each candidate would fail if it saw the other's changes.
	a := diffOutput("    return 1", "    return 2")
	b := diffOutput("    return 1", "    return 3")

	var cleanCount atomic.Int32
	m := newMerger(t)
	counting := dryRunFunc(func(ctx context.Context, content string) (types.MergeOutcome, error) {
		out, err := m.DryRun(ctx, content)
		if err == nil && out.Clean() {
			cleanCount.Add(1)
		}
		return out, err
	})

	s := &Selector{DryRun: counting, Workers: 2}
	_, err := s.Choose(context.Background(), types.GenerateResult{Contents: []string{a, b}})
	require.NoError(t, err)
	assert.Equal(t, int32(2), cleanCount.Load())
}

type dryRunFunc func(ctx context.Context, content string) (types.MergeOutcome, error)

func (f dryRunFunc) DryRun(ctx context.Context, content string) (types.MergeOutcome, error) {
	return f(ctx, content)
}
