package ingest

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownExtractor flattens markdown to plain text via the goldmark AST.
// Headings and block content come out as separate lines, so lesson markers
// written as headings ("## Lesson 1: ...") survive as parseable lines.
type MarkdownExtractor struct{}

func (MarkdownExtractor) Extract(content []byte) (string, error) {
	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(content))

	var out strings.Builder
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		var block string
		if h, ok := n.(*ast.Heading); ok {
			block = string(h.Text(content))
		} else {
			block = inlineText(n, content)
		}
		if block == "" {
			continue
		}
		if out.Len() > 0 {
			out.WriteString("\n\n")
		}
		out.WriteString(block)
	}
	return out.String(), nil
}

// inlineText collects the text content of a block node. Blocks with raw
// source lines (paragraphs, code blocks) use those directly; container
// blocks (lists, quotes) recurse into children.
func inlineText(n ast.Node, src []byte) string {
	if n.Type() == ast.TypeBlock {
		if lines := n.Lines(); lines.Len() > 0 {
			var buf bytes.Buffer
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				buf.Write(seg.Value(src))
			}
			return strings.TrimSpace(buf.String())
		}
	}
	var buf bytes.Buffer
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			buf.Write(t.Value(src))
			if t.HardLineBreak() || t.SoftLineBreak() {
				buf.WriteByte('\n')
			}
			continue
		}
		if part := inlineText(c, src); part != "" {
			if buf.Len() > 0 {
				buf.WriteByte('\n')
			}
			buf.WriteString(part)
		}
	}
	return strings.TrimSpace(buf.String())
}
