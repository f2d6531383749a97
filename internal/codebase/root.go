// Package codebase owns the directory an agent is allowed to explore.
// Every file access - the indexing walk and the agent's raw reads - goes
// through Root, which refuses anything that resolves outside the directory.
package codebase

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/bad33ndj3/code-researcher/internal/domain"
)

// FileReader reads files relative to a codebase root.
// The tools package depends on this instead of on Root directly.
type FileReader interface {
	ReadFile(path string) (string, error)
}

// Root is the canonical, symlink-resolved base directory of a codebase.
// It is fixed at construction and never changes.
type Root struct {
	path   string
	logger *slog.Logger
}

// Option configures a Root.
type Option func(*Root)

// WithLogger sets the logger used for skipped-file warnings.
func WithLogger(l *slog.Logger) Option {
	return func(r *Root) { r.logger = l }
}

// New resolves dir to an absolute, symlink-free path and checks it is a directory.
func New(dir string, opts ...Option) (*Root, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("codebase path is required")
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve codebase path: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("resolve codebase path: %w", err)
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return nil, fmt.Errorf("stat codebase: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("codebase path is not a directory: %s", dir)
	}

	r := &Root{path: resolved, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Path returns the canonical root directory.
func (r *Root) Path() string { return r.path }

// Resolve maps a caller-supplied path to a canonical path inside the root.
//
// The path is joined onto the root (an absolute path replaces it) and
// cleaned lexically, then both sides are resolved through symlinks. The
// result must have the resolved root as a component-wise prefix, which
// rejects "..", absolute paths and symlinks that leave the root.
func (r *Root) Resolve(path string) (string, error) {
	candidate := path
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(r.path, candidate)
	}
	candidate = filepath.Clean(candidate)

	realCandidate, err := realPath(candidate)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	realRoot, err := realPath(r.path)
	if err != nil {
		return "", fmt.Errorf("resolve codebase root: %w", err)
	}

	if !within(realRoot, realCandidate) {
		return "", fmt.Errorf("%w: %s", domain.ErrPathTraversal, path)
	}
	return realCandidate, nil
}

// ReadFile returns the full UTF-8 content of a file inside the root.
// There is no caching and no size limit.
func (r *Root) ReadFile(path string) (string, error) {
	resolved, err := r.Resolve(path)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(resolved)
	if err != nil || !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %s", domain.ErrFileNotFound, path)
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", domain.ErrUnreadableFile, path, err)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: %s: not valid UTF-8", domain.ErrUnreadableFile, path)
	}
	return string(data), nil
}

// maxLinkHops bounds how many dangling or looping links realPath follows.
const maxLinkHops = 40

// realPath resolves symlinks like EvalSymlinks but tolerates a missing tail:
// the longest resolvable prefix is resolved and the rest appended as is.
// A link whose target does not exist is still followed to that target.
func realPath(p string) (string, error) {
	return followLinks(p, 0)
}

func followLinks(p string, hops int) (string, error) {
	resolved, err := filepath.EvalSymlinks(p)
	if err == nil {
		return resolved, nil
	}

	parent := filepath.Dir(p)
	if parent == p {
		return "", err
	}
	realParent, perr := followLinks(parent, hops)
	if perr != nil {
		return "", perr
	}
	joined := filepath.Join(realParent, filepath.Base(p))

	info, lerr := os.Lstat(joined)
	if lerr != nil || info.Mode()&os.ModeSymlink == 0 || hops >= maxLinkHops {
		// Missing, not a link, or a loop: keep the path unresolved.
		return joined, nil
	}
	target, rerr := os.Readlink(joined)
	if rerr != nil {
		return joined, nil
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(realParent, target)
	}
	return followLinks(filepath.Clean(target), hops+1)
}

// within reports whether p equals root or lies below it.
func within(root, p string) bool {
	if p == root {
		return true
	}
	prefix := root
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(p, prefix)
}
