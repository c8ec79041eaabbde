// Package ingest turns course documents into indexed courses and chunks:
// extraction (markdown, HTML, PDF), header and lesson parsing, sentence-aware
// chunking, and embedding.
package ingest

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Chunker splits lesson text into retrieval units.
type Chunker interface {
	Chunk(text string) []string
}

// SentenceChunker produces fixed-size overlapping windows over the input,
// preferring to end each window at a sentence boundary. A single sentence
// longer than the window is emitted as one oversized chunk rather than cut
// mid-sentence. Chunks are raw substrings of the input: every character of
// the input appears in at least one chunk, and consecutive chunks share
// exactly the configured overlap (measured back from the previous chunk's
// end) unless stepping back would not advance, in which case the next chunk
// starts flush at the previous end.
type SentenceChunker struct {
	size    int
	overlap int
}

// NewSentenceChunker creates a chunker with the given window size and
// overlap, both in bytes. Overlap must be smaller than size.
func NewSentenceChunker(size, overlap int) (*SentenceChunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap %d must be in [0, %d)", overlap, size)
	}
	return &SentenceChunker{size: size, overlap: overlap}, nil
}

// Chunk splits text into overlapping windows. Empty or whitespace-only input
// yields no chunks; input at or under the window size yields exactly one.
func (c *SentenceChunker) Chunk(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if len(text) <= c.size {
		return []string{text}
	}

	boundaries := sentenceBoundaries(text)

	var chunks []string
	start := 0
	for start < len(text) {
		end := start + c.size
		if end >= len(text) {
			chunks = append(chunks, text[start:])
			break
		}
		// Prefer the latest sentence boundary inside the window. A window
		// with no boundary past its start holds a single sentence longer
		// than the window; it is emitted whole, running to the next
		// boundary or the end of the text.
		if b := lastBoundaryWithin(boundaries, start, end); b > start {
			end = b
		} else if b := nextBoundaryAfter(boundaries, end); b > end {
			end = b
			if end >= len(text) {
				chunks = append(chunks, text[start:])
				break
			}
		} else {
			chunks = append(chunks, text[start:])
			break
		}
		chunks = append(chunks, text[start:end])

		next := end - c.overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

// lastBoundaryWithin returns the largest boundary b with start < b <= limit,
// or -1. Boundaries are sorted ascending.
func lastBoundaryWithin(boundaries []int, start, limit int) int {
	best := -1
	for _, b := range boundaries {
		if b > limit {
			break
		}
		if b > start {
			best = b
		}
	}
	return best
}

// nextBoundaryAfter returns the smallest boundary b with b > limit, or -1.
func nextBoundaryAfter(boundaries []int, limit int) int {
	for _, b := range boundaries {
		if b > limit {
			return b
		}
	}
	return -1
}

// abbreviations whose trailing dot does not end a sentence.
var abbreviations = map[string]bool{
	"mr": true, "mrs": true, "ms": true, "dr": true,
	"prof": true, "sr": true, "jr": true,
	"vs": true, "etc": true, "inc": true, "ltd": true,
	"e.g": true, "i.e": true, "viz": true, "al": true,
	"approx": true, "dept": true, "est": true,
	"fig": true, "no": true, "vol": true,
}

// isAbbreviation reports whether the word ending at the dot at dotPos is a
// known abbreviation.
func isAbbreviation(text string, dotPos int) bool {
	start := dotPos
	for start > 0 {
		r, size := utf8.DecodeLastRuneInString(text[:start])
		if !unicode.IsLetter(r) && r != '.' {
			break
		}
		start -= size
	}
	return abbreviations[strings.ToLower(text[start:dotPos])]
}

// isDecimalDot reports whether the dot at dotPos sits between two digits
// (3.14, $1.50).
func isDecimalDot(text string, dotPos int) bool {
	if dotPos == 0 || dotPos+1 >= len(text) {
		return false
	}
	return text[dotPos-1] >= '0' && text[dotPos-1] <= '9' &&
		text[dotPos+1] >= '0' && text[dotPos+1] <= '9'
}

// sentenceBoundaries returns ascending byte positions where a new sentence
// begins: after ASCII terminators (.!?) followed by whitespace — skipping
// abbreviations and decimal points — and directly after CJK terminators
// (。！？). A boundary is the index of the first byte of the next sentence.
func sentenceBoundaries(text string) []int {
	var boundaries []int
	runes := []rune(text)
	n := len(runes)

	byteOffsets := make([]int, n+1)
	off := 0
	for i, r := range runes {
		byteOffsets[i] = off
		off += utf8.RuneLen(r)
	}
	byteOffsets[n] = off

	for i := 0; i < n; i++ {
		r := runes[i]

		if r == '。' || r == '！' || r == '？' {
			boundaries = append(boundaries, byteOffsets[i+1])
			continue
		}
		if r != '.' && r != '!' && r != '?' {
			continue
		}

		pos := byteOffsets[i]
		if r == '.' && (isDecimalDot(text, pos) || isAbbreviation(text, pos)) {
			continue
		}

		if i+1 >= n {
			continue
		}
		switch runes[i+1] {
		case '\n':
			boundaries = append(boundaries, byteOffsets[i+1])
		case ' ':
			if i+2 < n && unicode.IsUpper(runes[i+2]) {
				boundaries = append(boundaries, byteOffsets[i+2])
			} else if i+2 >= n {
				boundaries = append(boundaries, byteOffsets[n])
			}
		}
	}
	return boundaries
}
