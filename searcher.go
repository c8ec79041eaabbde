package lectern

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// defaultResolveThreshold is the minimum catalog similarity score required
// for a fuzzy course reference to resolve. Below it, resolution reports
// *ErrCourseNotFound and the caller decides the fallback.
const defaultResolveThreshold float32 = 0.60

// defaultMaxResults is the content-search result bound when the caller does
// not pass one.
const defaultMaxResults = 5

// SearcherOption configures a CourseSearcher.
type SearcherOption func(*CourseSearcher)

// WithResolveThreshold sets the minimum catalog match score for fuzzy
// course resolution.
func WithResolveThreshold(t float32) SearcherOption {
	return func(s *CourseSearcher) { s.threshold = t }
}

// WithMaxResults sets the default number of content results per search.
func WithMaxResults(n int) SearcherOption {
	return func(s *CourseSearcher) { s.maxResults = n }
}

// CourseSearcher is the two-stage retrieval front of the dual index:
// it resolves fuzzy course references against the catalog collection and
// runs filtered similarity search against the content collection.
type CourseSearcher struct {
	index      Index
	embedding  EmbeddingProvider
	threshold  float32
	maxResults int
}

// NewCourseSearcher creates a searcher over the given index and embedder.
func NewCourseSearcher(index Index, emb EmbeddingProvider, opts ...SearcherOption) *CourseSearcher {
	s := &CourseSearcher{
		index:      index,
		embedding:  emb,
		threshold:  defaultResolveThreshold,
		maxResults: defaultMaxResults,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// NormalizeTitle canonicalizes a course title or reference for exact
// comparison: NFC normalization plus surrounding-whitespace removal.
// Ingestion applies it to stored titles; resolution applies it to references,
// so the same course name always compares equal byte-for-byte.
func NormalizeTitle(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// ResolveCourse maps a possibly fuzzy course reference to an exact stored
// title. A reference that exactly matches a stored title short-circuits:
// the embedding service is never consulted for it. Otherwise the reference
// is embedded and matched against the catalog; the best entry wins if its
// score clears the resolve threshold, else *ErrCourseNotFound.
func (s *CourseSearcher) ResolveCourse(ctx context.Context, reference string) (string, error) {
	ref := NormalizeTitle(reference)
	if ref == "" {
		return "", &ErrCourseNotFound{Reference: reference}
	}

	if course, err := s.index.GetCourse(ctx, ref); err == nil {
		return course.Title, nil
	} else {
		var notFound *ErrCourseNotFound
		if !errors.As(err, &notFound) {
			return "", fmt.Errorf("catalog lookup: %w", err)
		}
	}

	embs, err := s.embedding.Embed(ctx, []string{ref})
	if err != nil {
		return "", fmt.Errorf("embed course reference: %w", err)
	}
	if len(embs) == 0 {
		return "", fmt.Errorf("embed course reference: no embedding returned")
	}

	matches, err := s.index.CatalogSearch(ctx, embs[0], 1)
	if err != nil {
		return "", fmt.Errorf("catalog search: %w", err)
	}
	if len(matches) == 0 || matches[0].Score < s.threshold {
		return "", &ErrCourseNotFound{Reference: reference}
	}
	return matches[0].Entry.CourseTitle, nil
}

// SearchContent runs similarity search over the content collection.
// courseTitle (when non-empty) must be an exact stored title — resolve fuzzy
// references first. lessonNumber restricts results to one lesson when
// non-nil. k <= 0 uses the configured default.
func (s *CourseSearcher) SearchContent(ctx context.Context, query, courseTitle string, lessonNumber *int, k int) ([]ScoredChunk, error) {
	if k <= 0 {
		k = s.maxResults
	}

	embs, err := s.embedding.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(embs) == 0 {
		return nil, fmt.Errorf("embed query: no embedding returned")
	}

	var filters []ChunkFilter
	if courseTitle != "" {
		filters = append(filters, ByCourse(courseTitle))
	}
	if lessonNumber != nil {
		filters = append(filters, ByLesson(*lessonNumber))
	}

	results, err := s.index.SearchChunks(ctx, embs[0], k, filters...)
	if err != nil {
		return nil, fmt.Errorf("content search: %w", err)
	}
	return results, nil
}
