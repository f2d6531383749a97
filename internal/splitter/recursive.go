// Package splitter cuts documents into overlapping, size-bounded chunks.
// It prefers structural boundaries (paragraphs, then lines, then words) and
// only falls back to cutting between characters when nothing coarser fits.
package splitter

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/bad33ndj3/code-researcher/internal/domain"
	"github.com/google/uuid"
)

// Default chunking parameters, in characters.
const (
	DefaultChunkSize    = 512
	DefaultChunkOverlap = 64
)

// DefaultSeparators is the separator hierarchy, coarsest first.
// The empty separator splits between characters and always succeeds.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// chunkNamespace scopes the name-based UUIDs used as chunk IDs.
var chunkNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("code-researcher/chunk"))

// Splitter defines how documents are cut into chunks.
type Splitter interface {
	Split(doc domain.Document) []domain.Chunk
}

// RecursiveSplitter splits text on the coarsest separator that keeps pieces
// under the chunk size, recursing into oversized pieces with finer separators.
// Consecutive chunks share up to Overlap characters.
type RecursiveSplitter struct {
	size       int
	overlap    int
	separators []string
}

// NewRecursiveSplitter creates a splitter for the given size and overlap.
func NewRecursiveSplitter(size, overlap int) (*RecursiveSplitter, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("chunk overlap must not be negative, got %d", overlap)
	}
	if overlap >= size {
		return nil, errors.New("chunk overlap must be smaller than chunk size")
	}
	return &RecursiveSplitter{
		size:       size,
		overlap:    overlap,
		separators: DefaultSeparators,
	}, nil
}

// Size returns the maximum chunk length in characters.
func (s *RecursiveSplitter) Size() int { return s.size }

// Overlap returns the overlap between consecutive chunks in characters.
func (s *RecursiveSplitter) Overlap() int { return s.overlap }

// Split cuts one document into chunks tagged with its source path.
func (s *RecursiveSplitter) Split(doc domain.Document) []domain.Chunk {
	texts := s.SplitText(doc.Text)
	chunks := make([]domain.Chunk, 0, len(texts))
	for i, txt := range texts {
		chunks = append(chunks, domain.Chunk{
			ID:     ChunkID(doc.Source, i, txt),
			Source: doc.Source,
			Seq:    i,
			Text:   txt,
		})
	}
	return chunks
}

// SplitDocuments splits every document, preserving document order.
func (s *RecursiveSplitter) SplitDocuments(docs []domain.Document) []domain.Chunk {
	var chunks []domain.Chunk
	for _, doc := range docs {
		chunks = append(chunks, s.Split(doc)...)
	}
	return chunks
}

// SplitText returns the chunk texts for a string.
func (s *RecursiveSplitter) SplitText(text string) []string {
	return s.split(text, s.separators)
}

// ChunkID derives a stable identifier for a chunk.
func ChunkID(source string, seq int, text string) string {
	name := fmt.Sprintf("%s\x00%d\x00%s", source, seq, text)
	return uuid.NewSHA1(chunkNamespace, []byte(name)).String()
}

func (s *RecursiveSplitter) split(text string, separators []string) []string {
	// Pick the coarsest separator present in the text
	sep := separators[len(separators)-1]
	var finer []string
	for i, cand := range separators {
		if cand == "" {
			sep = ""
			break
		}
		if strings.Contains(text, cand) {
			sep = cand
			finer = separators[i+1:]
			break
		}
	}

	var out, small []string
	for _, piece := range splitKeep(text, sep) {
		if runeLen(piece) < s.size {
			small = append(small, piece)
			continue
		}

		// Oversized piece: flush what we have, then go finer
		if len(small) > 0 {
			out = append(out, s.merge(small)...)
			small = nil
		}
		if len(finer) == 0 {
			if trimmed := strings.TrimSpace(piece); trimmed != "" {
				out = append(out, trimmed)
			}
			continue
		}
		out = append(out, s.split(piece, finer)...)
	}
	if len(small) > 0 {
		out = append(out, s.merge(small)...)
	}
	return out
}

// merge packs small pieces into chunks of at most size characters,
// carrying a tail of at most overlap characters into the next chunk.
// Separators are already attached to the pieces, so they join with "".
func (s *RecursiveSplitter) merge(pieces []string) []string {
	var (
		out   []string
		cur   []string
		total int
	)

	for _, piece := range pieces {
		n := runeLen(piece)
		if total+n > s.size && len(cur) > 0 {
			if doc := joinTrim(cur); doc != "" {
				out = append(out, doc)
			}
			// Drop from the front until only the overlap window is left
			// and the next piece fits.
			for total > s.overlap || (total+n > s.size && total > 0) {
				total -= runeLen(cur[0])
				cur = cur[1:]
			}
		}
		cur = append(cur, piece)
		total += n
	}

	if doc := joinTrim(cur); doc != "" {
		out = append(out, doc)
	}
	return out
}

// splitKeep splits text on sep, keeping sep at the start of every piece
// after the first. An empty sep splits into characters.
func splitKeep(text, sep string) []string {
	if sep == "" {
		out := make([]string, 0, len(text))
		for _, r := range text {
			out = append(out, string(r))
		}
		return out
	}

	parts := strings.Split(text, sep)
	out := make([]string, 0, len(parts))
	if parts[0] != "" {
		out = append(out, parts[0])
	}
	for _, p := range parts[1:] {
		out = append(out, sep+p)
	}
	return out
}

func joinTrim(pieces []string) string {
	return strings.TrimSpace(strings.Join(pieces, ""))
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
