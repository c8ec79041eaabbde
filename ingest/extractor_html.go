package ingest

import (
	"bytes"
	"fmt"
	"net/url"

	readability "github.com/go-shiori/go-readability"
)

// HTMLExtractor pulls the main article text out of an HTML document using
// readability extraction, dropping navigation and boilerplate.
type HTMLExtractor struct{}

func (HTMLExtractor) Extract(content []byte) (string, error) {
	article, err := readability.FromReader(bytes.NewReader(content), &url.URL{Scheme: "file"})
	if err != nil {
		return "", fmt.Errorf("extract html: %w", err)
	}
	return article.TextContent, nil
}
