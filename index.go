package lectern

import "context"

// Chunk filter field names understood by Index implementations.
const (
	FilterCourseTitle  = "course_title"
	FilterLessonNumber = "lesson_number"
)

// ChunkFilter restricts a content-index search to chunks whose field exactly
// matches the value. Filters apply before ranking.
type ChunkFilter struct {
	Field string
	Value any
}

// ByCourse filters content search to a single course title (exact match).
func ByCourse(title string) ChunkFilter {
	return ChunkFilter{Field: FilterCourseTitle, Value: title}
}

// ByLesson filters content search to a single lesson number.
func ByLesson(n int) ChunkFilter {
	return ChunkFilter{Field: FilterLessonNumber, Value: n}
}

// Index is the dual-index storage contract: a catalog collection with one
// entry per course (name resolution) and a content collection with one entry
// per chunk (passage retrieval). Implementations must keep a course's catalog
// entry, lessons, and chunks consistent — ReplaceCourse and DeleteCourse are
// atomic with respect to concurrent reads.
type Index interface {
	// --- Catalog collection ---

	// UpsertCatalog inserts or replaces the catalog entry for a course.
	UpsertCatalog(ctx context.Context, entry CatalogEntry) error
	// CatalogSearch ranks catalog entries against the query embedding and
	// returns the topK best, score descending.
	CatalogSearch(ctx context.Context, embedding []float32, topK int) ([]ScoredCatalogEntry, error)
	// GetCourse returns the course stored under the exact title, or an
	// *ErrCourseNotFound.
	GetCourse(ctx context.Context, title string) (Course, error)
	// ListCourses returns all course titles with their lesson counts,
	// in ingestion order.
	ListCourses(ctx context.Context) ([]CourseStat, error)

	// --- Content collection ---

	// UpsertChunks inserts or replaces content-index chunks.
	UpsertChunks(ctx context.Context, chunks []Chunk) error
	// SearchChunks ranks content chunks against the query embedding,
	// pre-filtered by the given filters, and returns at most topK results
	// ordered by descending score. Ties are broken by chunk ordinal.
	SearchChunks(ctx context.Context, embedding []float32, topK int, filters ...ChunkFilter) ([]ScoredChunk, error)

	// --- Course lifecycle ---

	// ReplaceCourse atomically removes any prior data for course.Title and
	// inserts the course, its catalog entry, and its chunks.
	ReplaceCourse(ctx context.Context, course Course, entry CatalogEntry, chunks []Chunk) error
	// DeleteCourse removes all catalog and content entries for the title.
	// No-op if the title is absent.
	DeleteCourse(ctx context.Context, title string) error

	// --- Ingestion fingerprints ---

	GetFingerprint(ctx context.Context, key string) (string, error)
	SetFingerprint(ctx context.Context, key, value string) error

	// --- Lifecycle ---

	Init(ctx context.Context) error
	Close() error
}
