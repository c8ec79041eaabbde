package ingest

import (
	"path/filepath"
	"strings"
)

// Extractor converts raw document bytes to plain text for parsing.
type Extractor interface {
	Extract(content []byte) (string, error)
}

// PlainTextExtractor returns content as-is.
type PlainTextExtractor struct{}

func (PlainTextExtractor) Extract(content []byte) (string, error) {
	return string(content), nil
}

// ExtractorFor picks an extractor by file extension. Unknown extensions are
// treated as plain text.
func ExtractorFor(path string) Extractor {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case "md", "markdown":
		return MarkdownExtractor{}
	case "html", "htm":
		return HTMLExtractor{}
	case "pdf":
		return PDFExtractor{}
	default:
		return PlainTextExtractor{}
	}
}
