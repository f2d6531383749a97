package domain

import "errors"

// Build errors.
var (
	// ErrNoDocumentsFound is returned when no file under the root matches the allowed extensions.
	ErrNoDocumentsFound = errors.New("no documents found to index in the codebase directory")

	// ErrNoProcessableContent is returned when every matched document splits into zero chunks.
	ErrNoProcessableContent = errors.New("no processable content found in documents to build the index")
)

// ErrEmbedderUnavailable is returned when the embedding provider cannot be reached.
var ErrEmbedderUnavailable = errors.New("embedding provider unavailable")

// Search errors.
var (
	// ErrIndexNotReady is returned when no index is resident and none can be loaded.
	ErrIndexNotReady = errors.New("index not ready (build the index first)")

	// ErrDimensionMismatch is returned when a query vector cannot be compared to the index.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// File read errors.
var (
	// ErrPathTraversal is returned when a requested path resolves outside the codebase root.
	ErrPathTraversal = errors.New("invalid path: path traversal attempt detected")

	// ErrFileNotFound is returned when a requested path is not an existing regular file.
	ErrFileNotFound = errors.New("file not found")

	// ErrUnreadableFile is returned when a file cannot be read or is not valid UTF-8.
	ErrUnreadableFile = errors.New("unreadable file")
)

// ErrInvalidInput is returned by tools when the caller's arguments are malformed.
var ErrInvalidInput = errors.New("invalid input")

// IsUserFacing reports whether err belongs to the known error kinds a caller
// is expected to render as a short message.
func IsUserFacing(err error) bool {
	for _, kind := range []error{
		ErrNoDocumentsFound,
		ErrNoProcessableContent,
		ErrEmbedderUnavailable,
		ErrIndexNotReady,
		ErrDimensionMismatch,
		ErrPathTraversal,
		ErrFileNotFound,
		ErrUnreadableFile,
		ErrInvalidInput,
	} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}
