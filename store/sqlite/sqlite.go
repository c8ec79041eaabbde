// Package sqlite implements lectern.Index using pure-Go SQLite
// with in-process brute-force vector search. Zero CGO required.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/lectern/lectern"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// IndexOption configures a SQLite Index.
type IndexOption func(*Index)

// WithLogger sets a structured logger for the index. When set, every
// operation emits debug logs with timing and row counts.
func WithLogger(l *slog.Logger) IndexOption {
	return func(ix *Index) { ix.logger = l }
}

// Index implements lectern.Index backed by a local SQLite file. Embeddings
// are stored as JSON text; catalog and content searches scan rows and score
// them in-process with cosine similarity.
type Index struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ lectern.Index = (*Index)(nil)

// New creates an Index using a local SQLite file at dbPath.
// It opens a single shared connection pool with SetMaxOpenConns(1) so that
// all goroutines serialize through one connection, eliminating SQLITE_BUSY
// errors caused by concurrent writers opening independent connections.
func New(dbPath string, opts ...IndexOption) *Index {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		// sql.Open only fails when the driver is not registered; with the
		// blank import above that never happens.
		panic(fmt.Sprintf("sqlite: open driver: %v", err))
	}
	db.SetMaxOpenConns(1)
	ix := &Index{db: db, logger: slog.New(slog.DiscardHandler)}
	for _, o := range opts {
		o(ix)
	}
	ix.logger.Debug("sqlite: index opened", "path", dbPath)
	return ix
}

// Init creates all required tables.
func (ix *Index) Init(ctx context.Context) error {
	start := time.Now()
	tables := []string{
		`CREATE TABLE IF NOT EXISTS courses (
			title TEXT PRIMARY KEY,
			link TEXT NOT NULL DEFAULT '',
			instructor TEXT NOT NULL DEFAULT '',
			catalog_text TEXT NOT NULL DEFAULT '',
			embedding TEXT,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS lessons (
			course_title TEXT NOT NULL,
			number INTEGER NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			link TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (course_title, number)
		)`,
		`CREATE TABLE IF NOT EXISTS chunks (
			id TEXT PRIMARY KEY,
			course_title TEXT NOT NULL,
			lesson_number INTEGER NOT NULL,
			chunk_index INTEGER NOT NULL,
			content TEXT NOT NULL,
			char_len INTEGER NOT NULL,
			embedding TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS fingerprints (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	}
	for _, ddl := range tables {
		if _, err := ix.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}

	_, _ = ix.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_chunks_course ON chunks(course_title, lesson_number)`)
	_, _ = ix.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_lessons_course ON lessons(course_title)`)

	ix.logger.Info("sqlite: init completed", "duration", time.Since(start))
	return nil
}

// UpsertCatalog inserts or replaces the catalog row for a course, keeping
// whatever course metadata is already stored.
func (ix *Index) UpsertCatalog(ctx context.Context, entry lectern.CatalogEntry) error {
	start := time.Now()

	var embJSON *string
	if len(entry.Embedding) > 0 {
		v := serializeEmbedding(entry.Embedding)
		embJSON = &v
	}
	_, err := ix.db.ExecContext(ctx,
		`INSERT INTO courses (title, catalog_text, embedding, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(title) DO UPDATE SET catalog_text = excluded.catalog_text, embedding = excluded.embedding`,
		entry.CourseTitle, entry.Text, embJSON, lectern.NowUnix(),
	)
	if err != nil {
		return fmt.Errorf("upsert catalog: %w", err)
	}
	ix.logger.Debug("sqlite: upsert catalog ok", "course", entry.CourseTitle, "duration", time.Since(start))
	return nil
}

// CatalogSearch performs brute-force cosine similarity over catalog entries.
func (ix *Index) CatalogSearch(ctx context.Context, embedding []float32, topK int) ([]lectern.ScoredCatalogEntry, error) {
	start := time.Now()

	rows, err := ix.db.QueryContext(ctx,
		`SELECT title, catalog_text, embedding FROM courses WHERE embedding IS NOT NULL ORDER BY created_at, title`,
	)
	if err != nil {
		return nil, fmt.Errorf("catalog search: %w", err)
	}
	defer rows.Close()

	var results []lectern.ScoredCatalogEntry
	scanned := 0
	for rows.Next() {
		var e lectern.CatalogEntry
		var embJSON string
		if err := rows.Scan(&e.CourseTitle, &e.Text, &embJSON); err != nil {
			return nil, fmt.Errorf("scan catalog entry: %w", err)
		}
		scanned++
		stored, err := deserializeEmbedding(embJSON)
		if err != nil {
			continue
		}
		results = append(results, lectern.ScoredCatalogEntry{Entry: e, Score: cosineSimilarity(embedding, stored)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate catalog: %w", err)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > topK {
		results = results[:topK]
	}
	ix.logger.Debug("sqlite: catalog search ok", "scanned", scanned, "returned", len(results), "duration", time.Since(start))
	return results, nil
}

// GetCourse returns the course stored under the exact title with its lessons.
func (ix *Index) GetCourse(ctx context.Context, title string) (lectern.Course, error) {
	var c lectern.Course
	err := ix.db.QueryRowContext(ctx,
		`SELECT title, link, instructor, created_at FROM courses WHERE title = ?`, title,
	).Scan(&c.Title, &c.Link, &c.Instructor, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return lectern.Course{}, &lectern.ErrCourseNotFound{Reference: title}
	}
	if err != nil {
		return lectern.Course{}, fmt.Errorf("get course: %w", err)
	}

	rows, err := ix.db.QueryContext(ctx,
		`SELECT number, title, link FROM lessons WHERE course_title = ? ORDER BY number`, title,
	)
	if err != nil {
		return lectern.Course{}, fmt.Errorf("get course lessons: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var l lectern.Lesson
		if err := rows.Scan(&l.Number, &l.Title, &l.Link); err != nil {
			return lectern.Course{}, fmt.Errorf("scan lesson: %w", err)
		}
		c.Lessons = append(c.Lessons, l)
	}
	return c, rows.Err()
}

// ListCourses returns all course titles with lesson counts, in ingestion order.
func (ix *Index) ListCourses(ctx context.Context) ([]lectern.CourseStat, error) {
	rows, err := ix.db.QueryContext(ctx,
		`SELECT c.title, COUNT(l.number)
		 FROM courses c LEFT JOIN lessons l ON l.course_title = c.title
		 GROUP BY c.title
		 ORDER BY c.created_at, c.title`,
	)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	defer rows.Close()

	var stats []lectern.CourseStat
	for rows.Next() {
		var s lectern.CourseStat
		if err := rows.Scan(&s.Title, &s.LessonCount); err != nil {
			return nil, fmt.Errorf("scan course stat: %w", err)
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// UpsertChunks inserts or replaces content chunks.
func (ix *Index) UpsertChunks(ctx context.Context, chunks []lectern.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	start := time.Now()

	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := insertChunks(ctx, tx, chunks); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	ix.logger.Debug("sqlite: upsert chunks ok", "count", len(chunks), "duration", time.Since(start))
	return nil
}

func insertChunks(ctx context.Context, tx *sql.Tx, chunks []lectern.Chunk) error {
	for _, c := range chunks {
		var embJSON *string
		if len(c.Embedding) > 0 {
			v := serializeEmbedding(c.Embedding)
			embJSON = &v
		}
		_, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO chunks (id, course_title, lesson_number, chunk_index, content, char_len, embedding)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			c.ID, c.CourseTitle, c.LessonNumber, c.ChunkIndex, c.Content, c.CharLen, embJSON,
		)
		if err != nil {
			return fmt.Errorf("insert chunk %s: %w", c.ID, err)
		}
	}
	return nil
}

// buildChunkFilters translates ChunkFilter values into SQL WHERE clauses.
// The returned clause carries a leading " AND ..." per filter. Unknown
// filter fields are ignored.
func buildChunkFilters(filters []lectern.ChunkFilter) (string, []any) {
	var clauses []string
	var args []any
	for _, f := range filters {
		switch f.Field {
		case lectern.FilterCourseTitle:
			clauses = append(clauses, "course_title = ?")
			args = append(args, f.Value)
		case lectern.FilterLessonNumber:
			clauses = append(clauses, "lesson_number = ?")
			args = append(args, f.Value)
		}
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " AND " + strings.Join(clauses, " AND "), args
}

// SearchChunks performs brute-force cosine similarity search over content
// chunks, pre-filtered by the given filters. Rows are visited in document
// order (course, lesson, chunk index) and sorted stably by score, so equal
// scores keep their document ordering.
func (ix *Index) SearchChunks(ctx context.Context, embedding []float32, topK int, filters ...lectern.ChunkFilter) ([]lectern.ScoredChunk, error) {
	start := time.Now()

	whereExtra, filterArgs := buildChunkFilters(filters)
	query := `SELECT id, course_title, lesson_number, chunk_index, content, char_len, embedding
		FROM chunks WHERE embedding IS NOT NULL` + whereExtra + `
		ORDER BY course_title, lesson_number, chunk_index`

	rows, err := ix.db.QueryContext(ctx, query, filterArgs...)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	defer rows.Close()

	var results []lectern.ScoredChunk
	scanned := 0
	for rows.Next() {
		var c lectern.Chunk
		var embJSON string
		if err := rows.Scan(&c.ID, &c.CourseTitle, &c.LessonNumber, &c.ChunkIndex, &c.Content, &c.CharLen, &embJSON); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		scanned++
		stored, err := deserializeEmbedding(embJSON)
		if err != nil {
			continue
		}
		results = append(results, lectern.ScoredChunk{Chunk: c, Score: cosineSimilarity(embedding, stored)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > topK {
		results = results[:topK]
	}
	ix.logger.Debug("sqlite: search chunks ok", "scanned", scanned, "returned", len(results), "filters", len(filters), "duration", time.Since(start))
	return results, nil
}

// ReplaceCourse atomically removes any prior data for course.Title and
// inserts the course row, its lessons, its catalog entry, and its chunks.
func (ix *Index) ReplaceCourse(ctx context.Context, course lectern.Course, entry lectern.CatalogEntry, chunks []lectern.Chunk) error {
	start := time.Now()

	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := deleteCourseTx(ctx, tx, course.Title); err != nil {
		return err
	}

	var embJSON *string
	if len(entry.Embedding) > 0 {
		v := serializeEmbedding(entry.Embedding)
		embJSON = &v
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO courses (title, link, instructor, catalog_text, embedding, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		course.Title, course.Link, course.Instructor, entry.Text, embJSON, course.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert course: %w", err)
	}

	for _, l := range course.Lessons {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO lessons (course_title, number, title, link) VALUES (?, ?, ?, ?)`,
			course.Title, l.Number, l.Title, l.Link,
		)
		if err != nil {
			return fmt.Errorf("insert lesson %d: %w", l.Number, err)
		}
	}

	if err := insertChunks(ctx, tx, chunks); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	ix.logger.Debug("sqlite: replace course ok",
		"course", course.Title,
		"lessons", len(course.Lessons),
		"chunks", len(chunks),
		"duration", time.Since(start))
	return nil
}

// DeleteCourse removes all catalog and content entries for the title.
// No-op if the title is absent.
func (ix *Index) DeleteCourse(ctx context.Context, title string) error {
	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := deleteCourseTx(ctx, tx, title); err != nil {
		return err
	}
	return tx.Commit()
}

func deleteCourseTx(ctx context.Context, tx *sql.Tx, title string) error {
	for _, stmt := range []string{
		`DELETE FROM chunks WHERE course_title = ?`,
		`DELETE FROM lessons WHERE course_title = ?`,
		`DELETE FROM courses WHERE title = ?`,
		`DELETE FROM fingerprints WHERE key = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, title); err != nil {
			return fmt.Errorf("delete course data: %w", err)
		}
	}
	return nil
}

// GetFingerprint returns the stored fingerprint for key, or "" when absent.
func (ix *Index) GetFingerprint(ctx context.Context, key string) (string, error) {
	var value string
	err := ix.db.QueryRowContext(ctx, `SELECT value FROM fingerprints WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get fingerprint: %w", err)
	}
	return value, nil
}

// SetFingerprint stores or replaces the fingerprint for key.
func (ix *Index) SetFingerprint(ctx context.Context, key, value string) error {
	_, err := ix.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO fingerprints (key, value) VALUES (?, ?)`, key, value)
	if err != nil {
		return fmt.Errorf("set fingerprint: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (ix *Index) Close() error {
	ix.logger.Debug("sqlite: closing index")
	return ix.db.Close()
}

// --- Vector math ---

// cosineSimilarity computes the cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return float32(dot / denom)
}

// serializeEmbedding converts []float32 to a JSON array string.
func serializeEmbedding(embedding []float32) string {
	data, _ := json.Marshal(embedding)
	return string(data)
}

// deserializeEmbedding parses a JSON array string back to []float32.
func deserializeEmbedding(s string) ([]float32, error) {
	var v []float32
	err := json.Unmarshal([]byte(s), &v)
	return v, err
}
