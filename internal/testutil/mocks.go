// Package testutil provides shared test helpers and fake embedders.
// This avoids duplicating fakes across test files.
package testutil

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
)

// ErrEmbeddingUnavailable is returned by FailingEmbedder by default.
var ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

// FuncEmbedder adapts a function to the embedding.Embedder contract.
type FuncEmbedder func(text string) ([]float32, error)

func (f FuncEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f(text)
}

func (f FuncEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, s := range texts {
		vec, err := f.Embed(ctx, s)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (FuncEmbedder) Available(context.Context) bool { return true }

// ConstantEmbedder returns the same vector of length dims for every text,
// so every chunk ties with every other.
func ConstantEmbedder(dims int) FuncEmbedder {
	return func(string) ([]float32, error) {
		vec := make([]float32, dims)
		for i := range vec {
			vec[i] = 1
		}
		return vec, nil
	}
}

// FailingEmbedder fails every call and counts them.
type FailingEmbedder struct {
	Err   error
	Calls atomic.Int32
}

func (f *FailingEmbedder) err() error {
	f.Calls.Add(1)
	if f.Err != nil {
		return f.Err
	}
	return ErrEmbeddingUnavailable
}

func (f *FailingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, f.err()
}

func (f *FailingEmbedder) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, f.err()
}

func (f *FailingEmbedder) Available(context.Context) bool { return false }

// WriteTree creates each relative path in files under dir with its content.
func WriteTree(t testing.TB, dir string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", rel, err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", rel, err)
		}
	}
}
