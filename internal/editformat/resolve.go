// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package editformat

import (
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// Resolver maps the paths written by the model onto absolute paths under a
// project root.
type Resolver struct {
	Fs   afero.Fs // Filesystem used for existence checks (defaults to the OS)
	Root string   // Project root directory
}

// NewResolver returns a Resolver for root. A nil fs means the OS filesystem.
func NewResolver(fs afero.Fs, root string) *Resolver {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return &Resolver{Fs: fs, Root: root}
}

// Resolve returns the absolute path for an edit path. Absolute paths are
// cleaned and kept. Relative paths are joined to the root. A git-style "a/"
// or "b/" prefix is dropped when the prefixed path does not exist and either
// the unprefixed file exists or the root has no top-level directory of that
// name, so new files named "b/x" land at "x".
func (r *Resolver) Resolve(path string) string {
	path = strings.TrimSpace(path)
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}

	full := filepath.Join(r.Root, path)
	if r.exists(full) {
		return full
	}
	for _, prefix := range []string{"a/", "b/"} {
		rest, ok := strings.CutPrefix(filepath.ToSlash(path), prefix)
		if !ok || rest == "" {
			continue
		}
		stripped := filepath.Join(r.Root, filepath.FromSlash(rest))
		if r.exists(stripped) || !r.isDir(filepath.Join(r.Root, strings.TrimSuffix(prefix, "/"))) {
			return stripped
		}
	}
	return full
}

// Rel returns path relative to the root, or path unchanged when it lies
// outside the root.
func (r *Resolver) Rel(path string) string {
	rel, err := filepath.Rel(r.Root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}

func (r *Resolver) exists(path string) bool {
	ok, err := afero.Exists(r.Fs, path)
	return err == nil && ok
}

func (r *Resolver) isDir(path string) bool {
	ok, err := afero.IsDir(r.Fs, path)
	return err == nil && ok
}
