package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bad33ndj3/code-researcher/internal/domain"
	"github.com/bad33ndj3/code-researcher/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"
)

// keywordEmbedder scores the presence of three fixed words.
var keywordEmbedder = testutil.FuncEmbedder(func(text string) ([]float32, error) {
	vec := make([]float32, 3)
	for i, word := range []string{"alpha", "beta", "gamma"} {
		if strings.Contains(text, word) {
			vec[i] = 1
		}
	}
	return vec, nil
})

func chunk(source string, seq int, text string) domain.Chunk {
	return domain.Chunk{ID: fmt.Sprintf("%s#%d", source, seq), Source: source, Seq: seq, Text: text}
}

func sampleChunks() []domain.Chunk {
	return []domain.Chunk{
		chunk("a.py", 0, "alpha beta"),
		chunk("a.py", 1, "gamma"),
		chunk("b.md", 0, "beta"),
		chunk("c.txt", 0, "alpha"),
	}
}

func hitIDs(hits []domain.ScoredChunk) []string {
	out := make([]string, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.Chunk.ID)
	}
	return out
}

func TestSimilaritySearch_RanksByCosine(t *testing.T) {
	ctx := context.Background()
	idx, err := Create(ctx, sampleChunks(), keywordEmbedder, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 4, idx.Len())
	assert.Equal(t, 3, idx.Meta().Dimensions)

	hits, err := idx.SimilaritySearch(ctx, "alpha", 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, []string{"c.txt#0", "a.py#0"}, hitIDs(hits))
	assert.InDelta(t, 1.0, hits[0].Score, 1e-9)
	assert.Greater(t, hits[0].Score, hits[1].Score)
}

func TestSimilaritySearch_TiesKeepIndexOrder(t *testing.T) {
	ctx := context.Background()
	idx, err := Create(ctx, sampleChunks(), testutil.ConstantEmbedder(4), t.TempDir())
	require.NoError(t, err)

	hits, err := idx.SimilaritySearch(ctx, "anything", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.py#0", "a.py#1", "b.md#0", "c.txt#0"}, hitIDs(hits))
}

func TestSimilaritySearch_KBounds(t *testing.T) {
	ctx := context.Background()
	idx, err := Create(ctx, sampleChunks(), keywordEmbedder, t.TempDir())
	require.NoError(t, err)

	for _, k := range []int{0, -1} {
		hits, err := idx.SimilaritySearch(ctx, "alpha", k)
		require.NoError(t, err)
		assert.Empty(t, hits)
	}

	hits, err := idx.SimilaritySearch(ctx, "alpha", 100)
	require.NoError(t, err)
	assert.Len(t, hits, 4)
}

func TestSimilaritySearch_EmptyIndex(t *testing.T) {
	idx, err := Create(context.Background(), nil, keywordEmbedder, t.TempDir())
	require.NoError(t, err)

	hits, err := idx.SimilaritySearch(context.Background(), "alpha", 4)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSimilaritySearch_DimensionMismatch(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	idx, err := Create(ctx, sampleChunks(), keywordEmbedder, dir)
	require.NoError(t, err)
	require.NoError(t, idx.Persist())

	other, err := Open(dir, testutil.ConstantEmbedder(8))
	require.NoError(t, err)

	_, err = other.SimilaritySearch(ctx, "alpha", 4)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestCreate_PreservesOrderAcrossBatches(t *testing.T) {
	var chunks []domain.Chunk
	for i := range 50 {
		chunks = append(chunks, chunk("big.py", i, fmt.Sprintf("chunk %d", i)))
	}
	bySeq := testutil.FuncEmbedder(func(text string) ([]float32, error) {
		var n int
		_, err := fmt.Sscanf(text, "chunk %d", &n)
		return []float32{float32(n), 1}, err
	})

	idx, err := Create(context.Background(), chunks, bySeq, t.TempDir(), WithWorkers(4), WithBatchSize(3))
	require.NoError(t, err)
	for i, rec := range idx.records {
		assert.Equal(t, i, rec.Chunk.Seq)
		assert.Equal(t, []float32{float32(i), 1}, rec.Vector)
	}
}

func TestCreate_PropagatesEmbedderError(t *testing.T) {
	failing := &testutil.FailingEmbedder{}
	_, err := Create(context.Background(), sampleChunks(), failing, t.TempDir())
	assert.ErrorIs(t, err, testutil.ErrEmbeddingUnavailable)
	assert.GreaterOrEqual(t, failing.Calls.Load(), int32(1))
}

func TestCreate_RejectsInconsistentDimensions(t *testing.T) {
	ragged := testutil.FuncEmbedder(func(text string) ([]float32, error) {
		return make([]float32, len(text)), nil
	})
	_, err := Create(context.Background(), sampleChunks(), ragged, t.TempDir())
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestPersistOpen_RoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "nested", "index")

	idx, err := Create(ctx, sampleChunks(), keywordEmbedder, dir)
	require.NoError(t, err)
	require.NoError(t, idx.Persist())
	assert.FileExists(t, filepath.Join(dir, FileName))
	assert.NoFileExists(t, filepath.Join(dir, FileName+".tmp"))

	loaded, err := Open(dir, keywordEmbedder)
	require.NoError(t, err)
	assert.Equal(t, idx.records, loaded.records)
	assert.Equal(t, idx.Meta().NumChunks, loaded.Meta().NumChunks)
	assert.Equal(t, domain.IndexVersion, loaded.Meta().Version)

	want, err := idx.SimilaritySearch(ctx, "beta gamma", 3)
	require.NoError(t, err)
	got, err := loaded.SimilaritySearch(ctx, "beta gamma", 3)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestPersist_ReplacesPreviousIndex(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	first, err := Create(ctx, sampleChunks(), keywordEmbedder, dir)
	require.NoError(t, err)
	require.NoError(t, first.Persist())

	second, err := Create(ctx, sampleChunks()[:1], keywordEmbedder, dir)
	require.NoError(t, err)
	require.NoError(t, second.Persist())

	loaded, err := Open(dir, keywordEmbedder)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Len())
}

func TestOpen_Missing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope"), keywordEmbedder)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func writeRaw(t *testing.T, dir string, fill func(tx *bbolt.Tx) error) {
	t.Helper()
	db, err := bbolt.Open(filepath.Join(dir, FileName), 0o600, nil)
	require.NoError(t, err)
	require.NoError(t, db.Update(fill))
	require.NoError(t, db.Close())
}

func TestOpen_RejectsOtherVersion(t *testing.T) {
	dir := t.TempDir()
	writeRaw(t, dir, func(tx *bbolt.Tx) error {
		meta, err := tx.CreateBucket(bucketMeta)
		if err != nil {
			return err
		}
		if _, err := tx.CreateBucket(bucketRecords); err != nil {
			return err
		}
		data, _ := json.Marshal(domain.IndexMeta{Version: domain.IndexVersion + 1})
		return meta.Put(keyMeta, data)
	})

	_, err := Open(dir, keywordEmbedder)
	assert.ErrorIs(t, err, ErrVersionMismatch)
}

func TestOpen_RejectsIncompleteFile(t *testing.T) {
	dir := t.TempDir()
	writeRaw(t, dir, func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucket(bucketMeta)
		return err
	})

	_, err := Open(dir, keywordEmbedder)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.InDelta(t, -1.0, cosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Zero(t, cosineSimilarity([]float32{0, 0}, []float32{1, 0}))
	assert.Zero(t, cosineSimilarity([]float32{1}, []float32{1, 0}))
}
