// Package tools exposes the retrieval operations as invokable tools.
//
// The set is closed: SearchCode and ReadFile. Each tool carries its name,
// a description for the calling agent, a JSON schema for its input and an
// Invoke method taking raw JSON, so an orchestration layer only needs Tool.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/bad33ndj3/code-researcher/internal/codebase"
	"github.com/bad33ndj3/code-researcher/internal/domain"
)

// Tool is an operation an agent can call.
type Tool interface {
	Name() string
	Description() string
	InputSchema() *jsonschema.Schema
	Invoke(ctx context.Context, input json.RawMessage) (string, error)
}

// Searcher answers similarity queries with formatted snippets.
type Searcher interface {
	Search(ctx context.Context, query string, k int) (string, error)
}

// SearchCodeInput is the input of search_code.
type SearchCodeInput struct {
	Query string `json:"query" jsonschema:"what to look for, in natural language or as identifiers"`
}

// ReadFileInput is the input of read_file.
type ReadFileInput struct {
	Path string `json:"path" jsonschema:"path of the file relative to the codebase root"`
}

var (
	searchCodeSchema = mustSchema[SearchCodeInput]()
	readFileSchema   = mustSchema[ReadFileInput]()
)

func mustSchema[T any]() *jsonschema.Schema {
	s, err := jsonschema.For[T](nil)
	if err != nil {
		panic(fmt.Sprintf("tools: schema for %T: %v", *new(T), err))
	}
	return s
}

// SearchCode searches the indexed code for relevant snippets.
type SearchCode struct {
	searcher Searcher
	k        int
}

// NewSearchCode returns search_code backed by s, returning k snippets per call.
// k <= 0 selects domain.DefaultTopK.
func NewSearchCode(s Searcher, k int) *SearchCode {
	if k <= 0 {
		k = domain.DefaultTopK
	}
	return &SearchCode{searcher: s, k: k}
}

func (*SearchCode) Name() string { return "search_code" }

func (*SearchCode) Description() string {
	return "Search the indexed code for relevant snippets. Returns the best matching chunks, each prefixed with its file path."
}

func (*SearchCode) InputSchema() *jsonschema.Schema { return searchCodeSchema }

func (t *SearchCode) Invoke(ctx context.Context, input json.RawMessage) (string, error) {
	var in SearchCodeInput
	if err := decode(input, &in); err != nil {
		return "", err
	}
	if strings.TrimSpace(in.Query) == "" {
		return "", fmt.Errorf("%w: query is required", domain.ErrInvalidInput)
	}
	return t.searcher.Search(ctx, in.Query, t.k)
}

// ReadFile reads a file from the codebase.
type ReadFile struct {
	reader codebase.FileReader
}

// NewReadFile returns read_file backed by r, which must enforce the root boundary.
func NewReadFile(r codebase.FileReader) *ReadFile {
	return &ReadFile{reader: r}
}

func (*ReadFile) Name() string { return "read_file" }

func (*ReadFile) Description() string {
	return "Read a file from the codebase. The path is relative to the codebase root; paths outside it are rejected."
}

func (*ReadFile) InputSchema() *jsonschema.Schema { return readFileSchema }

func (t *ReadFile) Invoke(ctx context.Context, input json.RawMessage) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var in ReadFileInput
	if err := decode(input, &in); err != nil {
		return "", err
	}
	if in.Path == "" {
		return "", fmt.Errorf("%w: path is required", domain.ErrInvalidInput)
	}
	return t.reader.ReadFile(in.Path)
}

// Researcher is what the full tool set needs from an index handle.
type Researcher interface {
	Searcher
	codebase.FileReader
}

// Set returns the closed tool set for r.
func Set(r Researcher, k int) []Tool {
	return []Tool{NewSearchCode(r, k), NewReadFile(r)}
}

func decode(input json.RawMessage, v any) error {
	if len(input) == 0 {
		return fmt.Errorf("%w: missing arguments", domain.ErrInvalidInput)
	}
	if err := json.Unmarshal(input, v); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	return nil
}
