// Package domain contains core data types used across the code-researcher.
// These are pure data structures with no behavior - the "nouns" of the
// indexing and retrieval pipeline.
package domain

import "time"

// IndexVersion is incremented when the persisted index format changes.
// Indexes written by another version are rejected and must be rebuilt.
const IndexVersion = 1

// DefaultTopK is the number of snippets a search returns when the caller
// does not ask for a specific amount.
const DefaultTopK = 4

// SnippetDelimiter separates formatted snippets in a search response.
const SnippetDelimiter = "\n---\n"

// DefaultPersistDir is where the index is written when no directory is configured.
const DefaultPersistDir = ".code-researcher/index"

// DefaultExtensions are indexed when no extensions are configured.
var DefaultExtensions = []string{".py", ".md", ".txt"}

// Document is the full text of one matched file.
// It only lives between loading and splitting.
type Document struct {
	// Source is the path relative to the codebase root, slash separated
	// (e.g. "pkg/server/handler.py")
	Source string `json:"source"`

	// Text is the UTF-8 content of the file
	Text string `json:"text"`
}

// Chunk is a bounded slice of a Document and the unit of embedding and retrieval.
type Chunk struct {
	// ID is a stable identifier derived from Source, Seq and Text
	ID string `json:"id"`

	// Source is inherited from the Document the chunk was cut from
	Source string `json:"source"`

	// Seq is the 0-based position of the chunk inside its Document
	Seq int `json:"seq"`

	// Text is the chunk content
	Text string `json:"text"`
}

// ScoredChunk pairs a chunk with its similarity to a query.
// Higher scores are more similar.
type ScoredChunk struct {
	Chunk Chunk
	Score float64
}

// IndexMeta describes a persisted vector index.
type IndexMeta struct {
	Version    int       `json:"version"`
	Dimensions int       `json:"dimensions"`
	NumChunks  int       `json:"num_chunks"`
	CreatedAt  time.Time `json:"created_at"`
}
