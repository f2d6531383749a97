// Package indexer builds the vector index of a codebase and answers queries
// against it. An Indexer is an owned handle: callers create one per codebase
// and pass it to whatever needs search or file access.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/bad33ndj3/code-researcher/internal/codebase"
	"github.com/bad33ndj3/code-researcher/internal/convert"
	"github.com/bad33ndj3/code-researcher/internal/domain"
	"github.com/bad33ndj3/code-researcher/internal/embedding"
	"github.com/bad33ndj3/code-researcher/internal/splitter"
	"github.com/bad33ndj3/code-researcher/internal/vectorstore"
)

// Indexer owns one codebase root, one embedder and the index built from them.
type Indexer struct {
	root         *codebase.Root
	embedder     embedding.Embedder
	splitter     splitter.Splitter
	filter       codebase.Filter
	transformers []convert.Transformer
	persistDir   string
	workers      int
	batchSize    int
	logger       *slog.Logger

	// mu serialises Build, Reload and the lazy load in Search.
	mu    sync.Mutex
	index *vectorstore.Index
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(ix *Indexer) { ix.logger = l }
}

// WithPersistDir sets the directory holding the persisted index.
func WithPersistDir(dir string) Option {
	return func(ix *Indexer) { ix.persistDir = dir }
}

// WithFilter selects which files are indexed.
func WithFilter(f codebase.Filter) Option {
	return func(ix *Indexer) { ix.filter = f }
}

// WithSplitter replaces the default 512/64 recursive splitter.
func WithSplitter(s splitter.Splitter) Option {
	return func(ix *Indexer) { ix.splitter = s }
}

// WithTransformer adds a document transformer applied before splitting.
func WithTransformer(t convert.Transformer) Option {
	return func(ix *Indexer) { ix.transformers = append(ix.transformers, t) }
}

// WithEmbedWorkers bounds concurrent embedding requests during Build.
func WithEmbedWorkers(n int) Option {
	return func(ix *Indexer) { ix.workers = n }
}

// WithEmbedBatchSize sets how many chunks are sent per embedding request.
func WithEmbedBatchSize(n int) Option {
	return func(ix *Indexer) { ix.batchSize = n }
}

// New creates an Indexer for root. Nothing is read until Build or Search.
func New(root *codebase.Root, e embedding.Embedder, opts ...Option) (*Indexer, error) {
	if root == nil {
		return nil, errors.New("indexer: codebase root is required")
	}
	if e == nil {
		return nil, errors.New("indexer: embedder is required")
	}

	ix := &Indexer{
		root:       root,
		embedder:   e,
		persistDir: domain.DefaultPersistDir,
		workers:    2,
		batchSize:  16,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(ix)
	}

	if ix.splitter == nil {
		s, err := splitter.NewRecursiveSplitter(splitter.DefaultChunkSize, splitter.DefaultChunkOverlap)
		if err != nil {
			return nil, err
		}
		ix.splitter = s
	}
	if err := ix.filter.Validate(); err != nil {
		return nil, err
	}
	return ix, nil
}

// Root returns the codebase root.
func (ix *Indexer) Root() *codebase.Root { return ix.root }

// PersistDir returns the index directory.
func (ix *Indexer) PersistDir() string { return ix.persistDir }

// BuildResult summarises a Build.
type BuildResult struct {
	Documents int
	Chunks    int
	Skipped   int
	Duration  time.Duration
}

// Build indexes the codebase from scratch and replaces the persisted index.
// On failure the previously resident index, if any, stays in place.
func (ix *Indexer) Build(ctx context.Context) (*BuildResult, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	start := time.Now()

	// 1. Load every matching file
	scan, err := ix.root.Documents(ctx, ix.filter)
	if err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}
	if len(scan.Documents) == 0 {
		return nil, domain.ErrNoDocumentsFound
	}

	// 2. Transform and split
	var chunks []domain.Chunk
	for _, doc := range scan.Documents {
		for _, t := range ix.transformers {
			if doc, err = t.Transform(doc); err != nil {
				return nil, err
			}
		}
		chunks = append(chunks, ix.splitter.Split(doc)...)
	}
	if len(chunks) == 0 {
		return nil, domain.ErrNoProcessableContent
	}
	ix.logger.Debug("documents split", "documents", len(scan.Documents), "chunks", len(chunks))

	// 3. Embed and persist
	idx, err := vectorstore.Create(ctx, chunks, ix.embedder, ix.persistDir,
		vectorstore.WithWorkers(ix.workers),
		vectorstore.WithBatchSize(ix.batchSize),
	)
	if err != nil {
		return nil, fmt.Errorf("build index: %w", err)
	}
	if err := idx.Persist(); err != nil {
		return nil, fmt.Errorf("persist index: %w", err)
	}
	ix.index = idx

	res := &BuildResult{
		Documents: len(scan.Documents),
		Chunks:    len(chunks),
		Skipped:   scan.Skipped,
		Duration:  time.Since(start),
	}
	ix.logger.Info("index built",
		"root", ix.root.Path(),
		"persist_dir", ix.persistDir,
		"documents", res.Documents,
		"chunks", res.Chunks,
		"skipped", res.Skipped,
		"duration", res.Duration,
	)
	return res, nil
}

// Search returns the k chunks most similar to query, formatted as snippets.
// If no index is resident it is loaded from the persist directory first.
func (ix *Indexer) Search(ctx context.Context, query string, k int) (string, error) {
	hits, err := ix.SearchChunks(ctx, query, k)
	if err != nil {
		return "", err
	}
	return FormatSnippets(hits), nil
}

// SearchChunks is Search without formatting.
func (ix *Indexer) SearchChunks(ctx context.Context, query string, k int) ([]domain.ScoredChunk, error) {
	idx, err := ix.resident()
	if err != nil {
		return nil, err
	}

	hits, err := idx.SimilaritySearch(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}
	ix.logger.Debug("search", "query", query, "k", k, "hits", len(hits))
	return hits, nil
}

// Reload drops the resident index and loads the persisted one again.
// A loaded index is otherwise never refreshed, even if another process
// rebuilds it on disk. The serve command calls it on SIGHUP.
func (ix *Indexer) Reload(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.index = nil
	_, err := ix.load()
	return err
}

// ReadFile reads a file under the codebase root through the path guard.
func (ix *Indexer) ReadFile(path string) (string, error) {
	return ix.root.ReadFile(path)
}

func (ix *Indexer) resident() (*vectorstore.Index, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.index != nil {
		return ix.index, nil
	}
	return ix.load()
}

// load must be called with mu held.
func (ix *Indexer) load() (*vectorstore.Index, error) {
	info, err := os.Stat(ix.persistDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrIndexNotReady, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", domain.ErrIndexNotReady, ix.persistDir)
	}

	idx, err := vectorstore.Open(ix.persistDir, ix.embedder)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrIndexNotReady, err)
	}
	ix.index = idx

	ix.logger.Info("index loaded", "persist_dir", ix.persistDir, "chunks", idx.Len())
	return idx, nil
}

// FormatSnippets renders hits as "<source>:\n<text>" joined by the snippet delimiter.
func FormatSnippets(hits []domain.ScoredChunk) string {
	parts := make([]string, 0, len(hits))
	for _, h := range hits {
		parts = append(parts, h.Chunk.Source+":\n"+h.Chunk.Text)
	}
	return strings.Join(parts, domain.SnippetDelimiter)
}
