package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/bad33ndj3/code-researcher/internal/domain"
)

// SimilaritySearch returns up to k chunks ranked by cosine similarity to query.
// Equal scores keep index order. The index is never modified.
func (idx *Index) SimilaritySearch(ctx context.Context, query string, k int) ([]domain.ScoredChunk, error) {
	if k <= 0 || len(idx.records) == 0 {
		return nil, nil
	}

	q, err := idx.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(q) != idx.meta.Dimensions {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d",
			domain.ErrDimensionMismatch, len(q), idx.meta.Dimensions)
	}

	scored := make([]domain.ScoredChunk, len(idx.records))
	for i, rec := range idx.records {
		scored[i] = domain.ScoredChunk{
			Chunk: rec.Chunk,
			Score: cosineSimilarity(q, rec.Vector),
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if k < len(scored) {
		scored = scored[:k]
	}
	return scored, nil
}

// cosineSimilarity returns a value between -1 (opposite) and 1 (identical).
// A zero vector is similar to nothing.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
