// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package coder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petar-djukic/go-autodiff/internal/candidate"
	"github.com/petar-djukic/go-autodiff/internal/merge"
	"github.com/petar-djukic/go-autodiff/pkg/types"
)

// mockGenerator returns scripted responses in order and records the
// conversations it was given.
type mockGenerator struct {
	mu        sync.Mutex
	responses []string
	calls     int
	convs     []types.Conversation
}

func (m *mockGenerator) Generate(_ context.Context, conv types.Conversation) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.convs = append(m.convs, conv)
	if m.calls >= len(m.responses) {
		return "", fmt.Errorf("no more mock responses")
	}
	resp := m.responses[m.calls]
	m.calls++
	return resp, nil
}

const mainGo = "package main\n\nfunc main() {}\n"

func diff(path, oldLine, newLines string) string {
	return fmt.Sprintf("Here is the edit:\n\n```diff\n--- %s\n+++ %s\n@@ @@\n-%s\n%s```\n", path, path, oldLine, newLines)
}

var addHello = diff("main.go", "func main() {}", "+func main() {}\n+\n+func Hello() string { return \"hello\" }\n")

func memProject(t *testing.T) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/proj/main.go", []byte(mainGo), 0o644))
	return fs
}

func readMem(t *testing.T, fs afero.Fs, path string) string {
	t.Helper()
	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	return string(data)
}

func TestRunner_SuccessfulEdit(t *testing.T) {
	fs := memProject(t)
	gen := &mockGenerator{responses: []string{addHello}}

	runner := NewRunner(Deps{
		Generators: []candidate.Generator{gen},
		Fs:         fs,
		WorkDir:    "/proj",
		NoGit:      true,
	})

	result, err := runner.Run(context.Background(), "add a Hello function")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, []string{"main.go"}, result.ModifiedFiles)
	assert.Equal(t, 1, result.Candidates)
	assert.Equal(t, 0, result.Retries)
	assert.Empty(t, result.Errors)
	assert.Contains(t, readMem(t, fs, "/proj/main.go"), "func Hello() string")

	require.Len(t, gen.convs, 1)
	conv := gen.convs[0]
	assert.Equal(t, types.RoleSystem, conv[0].Role)
	assert.Contains(t, conv[1].Content, "main.go\n```\n"+mainGo+"```\n")
	assert.Equal(t, "add a Hello function", conv[len(conv)-1].Content)
}

func TestRunner_RetriesFailedApply(t *testing.T) {
	fs := memProject(t)
	bad := diff("main.go", "func main() { os.Exit(1) }", "+func main() {}\n+\n+func Bye() {}\n")
	gen := &mockGenerator{responses: []string{bad, addHello}}

	runner := NewRunner(Deps{
		Generators: []candidate.Generator{gen},
		Fs:         fs,
		WorkDir:    "/proj",
		MaxRetries: 2,
		NoGit:      true,
	})

	result, err := runner.Run(context.Background(), "add a Hello function")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.Retries)

	require.Len(t, gen.convs, 2)
	retry := gen.convs[1]
	require.GreaterOrEqual(t, len(retry), 2)
	assert.Equal(t, types.Message{Role: types.RoleAssistant, Content: bad}, retry[len(retry)-2])
	assert.Contains(t, retry[len(retry)-1].Content, "UnifiedDiffNoMatch")
	assert.Contains(t, readMem(t, fs, "/proj/main.go"), "func Hello()")
}

func TestRunner_ReportsRemainingFailures(t *testing.T) {
	fs := memProject(t)
	bad := diff("main.go", "func main() { os.Exit(1) }", "+func main() {}\n")
	gen := &mockGenerator{responses: []string{bad, bad}}

	runner := NewRunner(Deps{
		Generators: []candidate.Generator{gen},
		Fs:         fs,
		WorkDir:    "/proj",
		MaxRetries: 1,
		NoGit:      true,
	})

	result, err := runner.Run(context.Background(), "fix main")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, 1, result.Retries)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, "main.go", result.Failed[0].Path)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "main.go does not contain lines that match")
	assert.Equal(t, mainGo, readMem(t, fs, "/proj/main.go"))
}

func TestRunner_SelectsCleanCandidate(t *testing.T) {
	fs := memProject(t)
	bad := diff("main.go", "func main() { os.Exit(1) }", "+func main() {}\n")
	gen := &mockGenerator{responses: []string{bad, addHello}}

	runner := NewRunner(Deps{
		Generators: []candidate.Generator{gen},
		Fs:         fs,
		WorkDir:    "/proj",
		Candidates: 2,
		Workers:    1,
		NoGit:      true,
	})

	result, err := runner.Run(context.Background(), "add a Hello function")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 2, result.Candidates)
	assert.Equal(t, 0, result.Retries)
}

func TestRunner_NamedFiles(t *testing.T) {
	fs := memProject(t)
	require.NoError(t, afero.WriteFile(fs, "/proj/other.go", []byte("package main\n"), 0o644))
	gen := &mockGenerator{responses: []string{addHello}}

	runner := NewRunner(Deps{
		Generators: []candidate.Generator{gen},
		Fs:         fs,
		WorkDir:    "/proj",
		Files:      []string{"main.go", "new.go"},
		NoGit:      true,
	})

	_, err := runner.Run(context.Background(), "add a Hello function")
	require.NoError(t, err)

	files := gen.convs[0][1].Content
	assert.Contains(t, files, "main.go\n```\n")
	assert.Contains(t, files, "new.go\n```\n```\n")
	assert.NotContains(t, files, "other.go")
}

func TestRunner_GenerationFailure(t *testing.T) {
	gen := &mockGenerator{}
	runner := NewRunner(Deps{
		Generators: []candidate.Generator{gen},
		Fs:         memProject(t),
		WorkDir:    "/proj",
		NoGit:      true,
	})

	_, err := runner.Run(context.Background(), "add feature")
	require.Error(t, err)
	assert.ErrorIs(t, err, candidate.ErrNoCandidates)
	assert.Contains(t, err.Error(), "no more mock responses")
}

func TestRunner_NoGenerators(t *testing.T) {
	runner := NewRunner(Deps{WorkDir: "/proj", NoGit: true, Fs: memProject(t)})

	_, err := runner.Run(context.Background(), "add feature")
	assert.ErrorIs(t, err, candidate.ErrNoCandidates)
}

func TestRunner_ContextCancellation(t *testing.T) {
	gen := &mockGenerator{responses: []string{addHello}}
	runner := NewRunner(Deps{
		Generators: []candidate.Generator{gen},
		Fs:         memProject(t),
		WorkDir:    "/proj",
		NoGit:      true,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := runner.Run(ctx, "add feature")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunner_TokenUsageReported(t *testing.T) {
	gen := &mockGenerator{responses: []string{addHello}}
	runner := NewRunner(Deps{
		Generators: []candidate.Generator{gen},
		Usage:      func() types.TokenUsage { return types.TokenUsage{InputTokens: 500, OutputTokens: 200} },
		Fs:         memProject(t),
		WorkDir:    "/proj",
		NoGit:      true,
	})

	result, err := runner.Run(context.Background(), "add function")
	require.NoError(t, err)
	assert.Equal(t, 700, result.TokensUsed.Total())
}

func TestRunner_WithoutGitRepository(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte(mainGo), 0o644))
	gen := &mockGenerator{responses: []string{addHello}}

	runner := NewRunner(Deps{
		Generators: []candidate.Generator{gen},
		WorkDir:    dir,
	})

	_, err := runner.Run(context.Background(), "add feature")
	require.Error(t, err)
	assert.ErrorIs(t, err, merge.ErrVCSUnavailable)
	assert.Contains(t, err.Error(), "git init")

	data, err := os.ReadFile(filepath.Join(dir, "main.go"))
	require.NoError(t, err)
	assert.Equal(t, mainGo, string(data))
}

func TestRunner_GitSnapshots(t *testing.T) {
	dir := t.TempDir()
	r, err := gogit.PlainInit(dir, false)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte(mainGo), 0o644))
	wt, err := r.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("main.go")
	require.NoError(t, err)
	_, err = wt.Commit("initial commit", &gogit.CommitOptions{
		Author: &object.Signature{Name: "Test", Email: "test@test.com", When: time.Now()},
	})
	require.NoError(t, err)

	// Uncommitted work is captured by the pre-edit snapshot.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md"), []byte("notes\n"), 0o644))

	gen := &mockGenerator{responses: []string{addHello}}
	runner := NewRunner(Deps{
		Generators: []candidate.Generator{gen},
		WorkDir:    dir,
		Files:      []string{"main.go"},
	})

	result, err := runner.Run(context.Background(), "add a Hello function")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.NotEmpty(t, result.PreCommit)
	assert.NotEmpty(t, result.PostCommit)

	head, err := r.Head()
	require.NoError(t, err)
	commit, err := r.CommitObject(head.Hash())
	require.NoError(t, err)
	assert.Equal(t, result.PostCommit, head.Hash().String())
	assert.True(t, strings.HasPrefix(commit.Message, "autodiff_feat_"), commit.Message)
}

func TestWalkFiles(t *testing.T) {
	fs := afero.NewMemMapFs()
	for path, content := range map[string]string{
		"/proj/main.go":       "package main\n",
		"/proj/lib/lib.go":    "package lib\n",
		"/proj/data.bin":      "binary data",
		"/proj/.git/config":   "[core]\n",
		"/proj/vendor/x/x.go": "package x\n",
		"/proj/big.go":        strings.Repeat("x", maxContextFileSize+1),
	} {
		require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
	}

	runner := NewRunner(Deps{Fs: fs, WorkDir: "/proj"})
	files := runner.walkFiles()

	var paths []string
	for _, f := range files {
		paths = append(paths, f.Path)
	}
	assert.ElementsMatch(t, []string{"main.go", filepath.Join("lib", "lib.go")}, paths)
}
