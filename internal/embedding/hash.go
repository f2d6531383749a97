package embedding

import (
	"context"
	"hash/fnv"
	"math"

	"github.com/bad33ndj3/code-researcher/internal/text"
)

// DefaultHashDimensions is the vector size of the hash embedder.
const DefaultHashDimensions = 512

// HashEmbedder projects normalized terms into a fixed-size vector with the
// signed hashing trick. It is lexical only, but deterministic and offline,
// which makes it the provider of choice for tests and air-gapped use.
type HashEmbedder struct {
	dims int
}

// NewHashEmbedder returns a hash embedder; dims <= 0 selects the default.
func NewHashEmbedder(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = DefaultHashDimensions
	}
	return &HashEmbedder{dims: dims}
}

// Dimensions returns the vector size.
func (e *HashEmbedder) Dimensions() int { return e.dims }

// Embed hashes the terms of text into an L2-normalized vector.
// Text without terms yields the zero vector.
func (e *HashEmbedder) Embed(ctx context.Context, s string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vec := make([]float32, e.dims)
	for _, term := range text.NormalizeTerms(s) {
		h := fnv.New64a()
		_, _ = h.Write([]byte(term))
		sum := h.Sum64()

		idx := int(sum % uint64(e.dims))
		if sum>>63 == 1 {
			vec[idx]--
		} else {
			vec[idx]++
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec, nil
	}
	inv := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= inv
	}
	return vec, nil
}

// EmbedBatch embeds each text in order.
func (e *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, s := range texts {
		vec, err := e.Embed(ctx, s)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// Available always reports true.
func (e *HashEmbedder) Available(context.Context) bool { return true }
