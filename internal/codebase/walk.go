package codebase

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bad33ndj3/code-researcher/internal/domain"
	"github.com/bmatcuk/doublestar/v4"
)

// Filter selects which files of the codebase are indexed.
type Filter struct {
	// Extensions are file name suffixes to keep (e.g. ".py", ".md").
	// Empty means domain.DefaultExtensions.
	Extensions []string

	// Excludes are doublestar globs matched against the slash-separated
	// relative path (e.g. "**/vendor/**", "**/*_test.go").
	Excludes []string
}

// Validate checks that every exclude pattern is well formed.
func (f Filter) Validate() error {
	for _, pattern := range f.Excludes {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("invalid exclude pattern: %q", pattern)
		}
	}
	return nil
}

// extensions returns the configured extensions or the defaults.
func (f Filter) extensions() []string {
	if len(f.Extensions) == 0 {
		return domain.DefaultExtensions
	}
	return f.Extensions
}

// Matches reports whether a file with the given relative path is indexed.
func (f Filter) Matches(rel string) bool {
	if f.excluded(rel) {
		return false
	}
	name := rel[strings.LastIndex(rel, "/")+1:]
	for _, ext := range f.extensions() {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

func (f Filter) excluded(rel string) bool {
	for _, pattern := range f.Excludes {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

// ScanResult is the outcome of walking the codebase.
type ScanResult struct {
	Documents []domain.Document
	Skipped   int // files that matched but were refused (symlinks leaving the root)
}

// Documents walks the root in lexical order and loads every matching file.
//
// Files are read through ReadFile, so a symlink that escapes the root is
// skipped instead of indexed. Any other read failure aborts the walk.
func (r *Root) Documents(ctx context.Context, f Filter) (*ScanResult, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	res := &ScanResult{}
	err := filepath.WalkDir(r.path, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(r.path, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		slashRel := filepath.ToSlash(rel)

		if d.IsDir() {
			if f.excluded(slashRel + "/") {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() && d.Type()&fs.ModeSymlink == 0 {
			return nil // sockets, devices, pipes
		}
		if !f.Matches(slashRel) {
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			// Symlinked directories are not followed
			if info, err := os.Stat(path); err == nil && info.IsDir() {
				return nil
			}
		}

		content, err := r.ReadFile(rel)
		if err != nil {
			if errors.Is(err, domain.ErrPathTraversal) || errors.Is(err, domain.ErrFileNotFound) {
				r.logger.Warn("skipping file", "path", slashRel, "error", err)
				res.Skipped++
				return nil
			}
			return err
		}

		res.Documents = append(res.Documents, domain.Document{
			Source: slashRel,
			Text:   content,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk codebase: %w", err)
	}

	r.logger.Debug("codebase scanned",
		"root", r.path,
		"documents", len(res.Documents),
		"skipped", res.Skipped,
	)
	return res, nil
}
