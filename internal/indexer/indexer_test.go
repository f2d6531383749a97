package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/bad33ndj3/code-researcher/internal/codebase"
	"github.com/bad33ndj3/code-researcher/internal/convert"
	"github.com/bad33ndj3/code-researcher/internal/domain"
	"github.com/bad33ndj3/code-researcher/internal/embedding"
	"github.com/bad33ndj3/code-researcher/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const quaternionPy = `"""Quaternion helpers for the renderer."""


def slerp(q0, q1, t):
    """Spherical linear interpolation between two quaternion rotations."""
    dot = sum(x * y for x, y in zip(q0, q1))
    theta = acos(min(1.0, abs(dot)))
    return blend(q0, q1, theta, t)
`

const deployMd = `# Deployment guide

Build the container image, push it to the registry, then roll out
the release with the deployment script. Configure the database
connection string and the cache size in the environment before
starting the service. Logs are shipped to the central collector.
`

// newIndexer creates a codebase from files and an indexer persisting next to it.
func newIndexer(t *testing.T, files map[string]string, e embedding.Embedder, opts ...Option) (*Indexer, string) {
	t.Helper()
	dir := t.TempDir()
	testutil.WriteTree(t, dir, files)

	root, err := codebase.New(dir)
	require.NoError(t, err)

	persist := filepath.Join(t.TempDir(), "index")
	opts = append([]Option{WithPersistDir(persist)}, opts...)
	ix, err := New(root, e, opts...)
	require.NoError(t, err)
	return ix, persist
}

func TestNew_RequiresRootAndEmbedder(t *testing.T) {
	root, err := codebase.New(t.TempDir())
	require.NoError(t, err)

	_, err = New(nil, embedding.NewHashEmbedder(0))
	assert.Error(t, err)

	_, err = New(root, nil)
	assert.Error(t, err)

	_, err = New(root, embedding.NewHashEmbedder(0), WithFilter(codebase.Filter{Excludes: []string{"[bad"}}))
	assert.Error(t, err)
}

func TestBuild_EmptyDirectory(t *testing.T) {
	ix, _ := newIndexer(t, nil, embedding.NewHashEmbedder(0))

	_, err := ix.Build(context.Background())
	assert.ErrorIs(t, err, domain.ErrNoDocumentsFound)
}

func TestBuild_NoMatchingExtensions(t *testing.T) {
	ix, _ := newIndexer(t, map[string]string{"main.go": "package main"}, embedding.NewHashEmbedder(0))

	_, err := ix.Build(context.Background())
	assert.ErrorIs(t, err, domain.ErrNoDocumentsFound)
}

func TestBuild_OnlyEmptyFiles(t *testing.T) {
	ix, _ := newIndexer(t, map[string]string{
		"empty.py":  "",
		"blank.md":  "   \n\n  \n",
		"space.txt": " ",
	}, embedding.NewHashEmbedder(0))

	_, err := ix.Build(context.Background())
	assert.ErrorIs(t, err, domain.ErrNoProcessableContent)
}

func TestBuild_UnreadableFileAborts(t *testing.T) {
	ix, _ := newIndexer(t, map[string]string{"ok.py": "x = 1"}, embedding.NewHashEmbedder(0))
	require.NoError(t, os.WriteFile(filepath.Join(ix.Root().Path(), "bad.txt"), []byte{0xff, 0xfe}, 0o644))

	_, err := ix.Build(context.Background())
	assert.ErrorIs(t, err, domain.ErrUnreadableFile)
}

func TestBuild_PropagatesEmbedderError(t *testing.T) {
	failing := &testutil.FailingEmbedder{}
	ix, _ := newIndexer(t, map[string]string{"a.py": quaternionPy}, failing)

	_, err := ix.Build(context.Background())
	assert.ErrorIs(t, err, testutil.ErrEmbeddingUnavailable)

	// Nothing was persisted
	_, err = ix.Search(context.Background(), "anything", 4)
	assert.ErrorIs(t, err, domain.ErrIndexNotReady)
}

func TestBuild_Result(t *testing.T) {
	ix, persist := newIndexer(t, map[string]string{
		"a.py":  quaternionPy,
		"b.md":  deployMd,
		"c.go":  "package c",
		"d.txt": strings.Repeat("word ", 300),
	}, embedding.NewHashEmbedder(0))

	res, err := ix.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Documents)
	assert.Greater(t, res.Chunks, 3)
	assert.Zero(t, res.Skipped)
	assert.FileExists(t, filepath.Join(persist, "index.db"))
}

// allChunks returns every indexed chunk in index order.
func allChunks(t *testing.T, ix *Indexer) []string {
	t.Helper()
	hits, err := ix.SearchChunks(context.Background(), "q", 1<<20)
	require.NoError(t, err)
	out := make([]string, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.Chunk.Source+"|"+h.Chunk.Text)
	}
	return out
}

func TestBuild_Deterministic(t *testing.T) {
	files := map[string]string{
		"z.py":       quaternionPy,
		"a.md":       deployMd,
		"pkg/m.txt":  strings.Repeat("alpha beta gamma\n", 80),
		"pkg/n/o.py": strings.Repeat("x = 1\n", 200),
	}
	ix, _ := newIndexer(t, files, testutil.ConstantEmbedder(4))

	_, err := ix.Build(context.Background())
	require.NoError(t, err)
	first := allChunks(t, ix)

	_, err = ix.Build(context.Background())
	require.NoError(t, err)
	second := allChunks(t, ix)

	assert.Equal(t, first, second)
	assert.True(t, strings.HasPrefix(first[0], "a.md|"))
}

func TestBuild_ChunkSizeBound(t *testing.T) {
	s := strings.Repeat("lorem ipsum dolor sit amet ", 200)
	ix, _ := newIndexer(t, map[string]string{"long.txt": s}, testutil.ConstantEmbedder(2))

	_, err := ix.Build(context.Background())
	require.NoError(t, err)

	hits, err := ix.SearchChunks(context.Background(), "q", 1000)
	require.NoError(t, err)
	require.Greater(t, len(hits), 1)
	for _, h := range hits {
		assert.LessOrEqual(t, len([]rune(h.Chunk.Text)), 512)
	}
}

func TestSearch_WithoutBuild(t *testing.T) {
	ix, persist := newIndexer(t, map[string]string{"a.py": quaternionPy}, embedding.NewHashEmbedder(0))

	_, err := ix.Search(context.Background(), "x", 4)
	assert.ErrorIs(t, err, domain.ErrIndexNotReady)

	// Existing but empty directory
	require.NoError(t, os.MkdirAll(persist, 0o755))
	_, err = ix.Search(context.Background(), "x", 4)
	assert.ErrorIs(t, err, domain.ErrIndexNotReady)
}

func TestSearch_PersistLocationIsAFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	ix, _ := newIndexer(t, map[string]string{"a.py": quaternionPy}, embedding.NewHashEmbedder(0), WithPersistDir(file))

	_, err := ix.Search(context.Background(), "x", 4)
	assert.ErrorIs(t, err, domain.ErrIndexNotReady)
}

func TestSearch_EndToEnd(t *testing.T) {
	ix, _ := newIndexer(t, map[string]string{
		"a.py": quaternionPy,
		"b.md": deployMd,
	}, embedding.NewHashEmbedder(0))

	_, err := ix.Build(context.Background())
	require.NoError(t, err)

	out, err := ix.Search(context.Background(), "quaternion interpolation", 2)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "a.py:\n"), out)

	snippets := strings.Split(out, domain.SnippetDelimiter)
	assert.Len(t, snippets, 2)
	assert.True(t, strings.HasPrefix(snippets[1], "b.md:\n"))
}

func TestSearch_TopKBoundAndFormat(t *testing.T) {
	files := map[string]string{}
	for i := range 6 {
		files[fmt.Sprintf("f%d.txt", i)] = fmt.Sprintf("note number %d about caching", i)
	}
	ix, _ := newIndexer(t, files, embedding.NewHashEmbedder(0))
	_, err := ix.Build(context.Background())
	require.NoError(t, err)

	for _, k := range []int{1, 3, domain.DefaultTopK, 10} {
		out, err := ix.Search(context.Background(), "caching", k)
		require.NoError(t, err)

		snippets := strings.Split(out, domain.SnippetDelimiter)
		assert.LessOrEqual(t, len(snippets), k)
		for _, s := range snippets {
			source, text, ok := strings.Cut(s, ":\n")
			require.True(t, ok, s)
			assert.Regexp(t, `^f\d\.txt$`, source)
			assert.Contains(t, text, "caching")
		}
	}

	out, err := ix.Search(context.Background(), "caching", 0)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestSearch_LoadsPersistedIndex(t *testing.T) {
	builder, persist := newIndexer(t, map[string]string{
		"a.py": quaternionPy,
		"b.md": deployMd,
	}, embedding.NewHashEmbedder(0))
	_, err := builder.Build(context.Background())
	require.NoError(t, err)

	reader, err := New(builder.Root(), embedding.NewHashEmbedder(0), WithPersistDir(persist))
	require.NoError(t, err)

	out, err := reader.Search(context.Background(), "registry container", 1)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "b.md:\n"), out)
}

func TestReload_PicksUpRebuild(t *testing.T) {
	ctx := context.Background()
	builder, persist := newIndexer(t, map[string]string{"a.py": "x = 1"}, testutil.ConstantEmbedder(3))
	_, err := builder.Build(ctx)
	require.NoError(t, err)

	reader, err := New(builder.Root(), testutil.ConstantEmbedder(3), WithPersistDir(persist))
	require.NoError(t, err)
	assert.Len(t, allChunks(t, reader), 1)

	testutil.WriteTree(t, builder.Root().Path(), map[string]string{"b.py": "y = 2"})
	_, err = builder.Build(ctx)
	require.NoError(t, err)

	// The resident index stays authoritative until reloaded
	assert.Len(t, allChunks(t, reader), 1)
	require.NoError(t, reader.Reload(ctx))
	assert.Len(t, allChunks(t, reader), 2)
}

func TestReload_WithoutIndex(t *testing.T) {
	ix, _ := newIndexer(t, nil, embedding.NewHashEmbedder(0))
	assert.ErrorIs(t, ix.Reload(context.Background()), domain.ErrIndexNotReady)
}

func TestSearch_ConcurrentCallers(t *testing.T) {
	ix, _ := newIndexer(t, map[string]string{
		"a.py": quaternionPy,
		"b.md": deployMd,
	}, embedding.NewHashEmbedder(0))
	_, err := ix.Build(context.Background())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := ix.Search(context.Background(), "quaternion", 1)
			assert.NoError(t, err)
			assert.True(t, strings.HasPrefix(out, "a.py:\n"))
		}()
	}
	wg.Wait()
}

func TestBuild_ConvertsHTML(t *testing.T) {
	ix, _ := newIndexer(t, map[string]string{
		"docs/guide.html": "<h1>Install</h1><p>Run the <strong>installer</strong> script.</p>",
	}, embedding.NewHashEmbedder(0),
		WithFilter(codebase.Filter{Extensions: convert.HTMLExtensions}),
		WithTransformer(convert.HTMLToMarkdown{}),
	)

	_, err := ix.Build(context.Background())
	require.NoError(t, err)

	out, err := ix.Search(context.Background(), "installer", 1)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "docs/guide.html:\n# Install"), out)
	assert.NotContains(t, out, "<p>")
}

func TestReadFile_UsesGuard(t *testing.T) {
	ix, _ := newIndexer(t, map[string]string{"a.py": quaternionPy}, embedding.NewHashEmbedder(0))

	got, err := ix.ReadFile("a.py")
	require.NoError(t, err)
	assert.Equal(t, quaternionPy, got)

	_, err = ix.ReadFile("../../etc/passwd")
	assert.ErrorIs(t, err, domain.ErrPathTraversal)
}

func TestFormatSnippets(t *testing.T) {
	hits := []domain.ScoredChunk{
		{Chunk: domain.Chunk{Source: "a.py", Text: "one"}},
		{Chunk: domain.Chunk{Source: "dir/b.md", Text: "two"}},
	}
	assert.Equal(t, "a.py:\none\n---\ndir/b.md:\ntwo", FormatSnippets(hits))
	assert.Equal(t, "", FormatSnippets(nil))
}
