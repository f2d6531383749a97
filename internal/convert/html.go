// Package convert rewrites loaded documents before they are split.
package convert

import (
	"fmt"
	"path"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/bad33ndj3/code-researcher/internal/domain"
)

// Transformer rewrites a document before splitting.
// Documents it does not handle are returned unchanged.
type Transformer interface {
	Transform(doc domain.Document) (domain.Document, error)
}

// HTMLExtensions are the file suffixes HTMLToMarkdown converts.
var HTMLExtensions = []string{".html", ".htm"}

// HTMLToMarkdown converts HTML documents to markdown so that chunks carry
// prose and code blocks instead of markup.
type HTMLToMarkdown struct{}

// Transform converts doc when its source has an HTML extension.
// Source is kept so snippets still point at the original file.
func (HTMLToMarkdown) Transform(doc domain.Document) (domain.Document, error) {
	if !IsHTML(doc.Source) {
		return doc, nil
	}

	markdown, err := htmltomarkdown.ConvertString(doc.Text)
	if err != nil {
		return doc, fmt.Errorf("convert %s to markdown: %w", doc.Source, err)
	}
	doc.Text = markdown
	return doc, nil
}

// IsHTML reports whether source names an HTML file.
func IsHTML(source string) bool {
	ext := strings.ToLower(path.Ext(source))
	for _, e := range HTMLExtensions {
		if ext == e {
			return true
		}
	}
	return false
}
