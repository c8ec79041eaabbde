// Package postgres implements lectern.Index using PostgreSQL with pgvector
// for native vector similarity search.
//
// The Index accepts an externally-owned *pgxpool.Pool via constructor
// injection. The caller creates and closes the pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lectern/lectern"
)

// Index implements lectern.Index backed by PostgreSQL with pgvector.
// Vector search uses HNSW indexes with cosine distance.
type Index struct {
	pool *pgxpool.Pool
	cfg  pgConfig
}

type pgConfig struct {
	embeddingDimension int // 0 = untyped vector
	hnswM              int // 0 = pgvector default (16)
	hnswEFConstruction int // 0 = pgvector default (64)
}

// Option configures a PostgreSQL Index.
type Option func(*pgConfig)

// WithEmbeddingDimension sets the vector column dimension (e.g. 1536, 768).
// When set, CREATE TABLE uses vector(N) instead of untyped vector, catching
// dimension mismatches at insert time. Only affects new table creation.
func WithEmbeddingDimension(dim int) Option {
	return func(c *pgConfig) { c.embeddingDimension = dim }
}

// WithHNSWM sets the HNSW m parameter (max connections per node).
// Only affects index creation (CREATE INDEX IF NOT EXISTS).
func WithHNSWM(m int) Option {
	return func(c *pgConfig) { c.hnswM = m }
}

// WithEFConstruction sets the HNSW ef_construction parameter.
// Only affects index creation (CREATE INDEX IF NOT EXISTS).
func WithEFConstruction(ef int) Option {
	return func(c *pgConfig) { c.hnswEFConstruction = ef }
}

var _ lectern.Index = (*Index)(nil)

// New creates an Index using an existing pgxpool.Pool.
// The caller owns the pool and is responsible for closing it.
func New(pool *pgxpool.Pool, opts ...Option) *Index {
	var cfg pgConfig
	for _, o := range opts {
		o(&cfg)
	}
	return &Index{pool: pool, cfg: cfg}
}

func (ix *Index) vectorType() string {
	if ix.cfg.embeddingDimension > 0 {
		return fmt.Sprintf("vector(%d)", ix.cfg.embeddingDimension)
	}
	return "vector"
}

func (ix *Index) hnswWithClause() string {
	var parts []string
	if ix.cfg.hnswM > 0 {
		parts = append(parts, fmt.Sprintf("m = %d", ix.cfg.hnswM))
	}
	if ix.cfg.hnswEFConstruction > 0 {
		parts = append(parts, fmt.Sprintf("ef_construction = %d", ix.cfg.hnswEFConstruction))
	}
	if len(parts) == 0 {
		return ""
	}
	return " WITH (" + strings.Join(parts, ", ") + ")"
}

// Init creates the pgvector extension, all required tables, and indexes.
// Safe to call multiple times (all statements are idempotent).
func (ix *Index) Init(ctx context.Context) error {
	vtype := ix.vectorType()
	hnswWith := ix.hnswWithClause()

	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS courses (
			title TEXT PRIMARY KEY,
			link TEXT NOT NULL DEFAULT '',
			instructor TEXT NOT NULL DEFAULT '',
			catalog_text TEXT NOT NULL DEFAULT '',
			embedding %s,
			created_at BIGINT NOT NULL
		)`, vtype),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS courses_embedding_idx ON courses USING hnsw (embedding vector_cosine_ops)%s`, hnswWith),

		`CREATE TABLE IF NOT EXISTS lessons (
			course_title TEXT NOT NULL,
			number INTEGER NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			link TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (course_title, number)
		)`,

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS chunks (
			id TEXT PRIMARY KEY,
			course_title TEXT NOT NULL,
			lesson_number INTEGER NOT NULL,
			chunk_index INTEGER NOT NULL,
			content TEXT NOT NULL,
			char_len INTEGER NOT NULL,
			embedding %s
		)`, vtype),
		`CREATE INDEX IF NOT EXISTS chunks_course_idx ON chunks(course_title, lesson_number)`,
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS chunks_embedding_idx ON chunks USING hnsw (embedding vector_cosine_ops)%s`, hnswWith),

		`CREATE TABLE IF NOT EXISTS fingerprints (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	}

	for _, stmt := range stmts {
		if _, err := ix.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: init: %w", err)
		}
	}
	return nil
}

// UpsertCatalog inserts or replaces the catalog entry for a course, keeping
// existing course metadata.
func (ix *Index) UpsertCatalog(ctx context.Context, entry lectern.CatalogEntry) error {
	embStr := serializeEmbedding(entry.Embedding)
	_, err := ix.pool.Exec(ctx,
		`INSERT INTO courses (title, catalog_text, embedding, created_at)
		 VALUES ($1, $2, $3::vector, $4)
		 ON CONFLICT (title) DO UPDATE SET
		   catalog_text = EXCLUDED.catalog_text,
		   embedding = EXCLUDED.embedding`,
		entry.CourseTitle, entry.Text, embStr, lectern.NowUnix())
	if err != nil {
		return fmt.Errorf("postgres: upsert catalog: %w", err)
	}
	return nil
}

// CatalogSearch ranks catalog entries by cosine similarity via pgvector.
func (ix *Index) CatalogSearch(ctx context.Context, embedding []float32, topK int) ([]lectern.ScoredCatalogEntry, error) {
	embStr := serializeEmbedding(embedding)
	rows, err := ix.pool.Query(ctx,
		`SELECT title, catalog_text, 1 - (embedding <=> $1::vector) AS score
		 FROM courses
		 WHERE embedding IS NOT NULL
		 ORDER BY embedding <=> $1::vector
		 LIMIT $2`,
		embStr, topK)
	if err != nil {
		return nil, fmt.Errorf("postgres: catalog search: %w", err)
	}
	defer rows.Close()

	var results []lectern.ScoredCatalogEntry
	for rows.Next() {
		var e lectern.CatalogEntry
		var score float32
		if err := rows.Scan(&e.CourseTitle, &e.Text, &score); err != nil {
			return nil, fmt.Errorf("postgres: scan catalog entry: %w", err)
		}
		results = append(results, lectern.ScoredCatalogEntry{Entry: e, Score: score})
	}
	return results, rows.Err()
}

// GetCourse returns the course stored under the exact title with its lessons.
func (ix *Index) GetCourse(ctx context.Context, title string) (lectern.Course, error) {
	var c lectern.Course
	err := ix.pool.QueryRow(ctx,
		`SELECT title, link, instructor, created_at FROM courses WHERE title = $1`, title,
	).Scan(&c.Title, &c.Link, &c.Instructor, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return lectern.Course{}, &lectern.ErrCourseNotFound{Reference: title}
	}
	if err != nil {
		return lectern.Course{}, fmt.Errorf("postgres: get course: %w", err)
	}

	rows, err := ix.pool.Query(ctx,
		`SELECT number, title, link FROM lessons WHERE course_title = $1 ORDER BY number`, title)
	if err != nil {
		return lectern.Course{}, fmt.Errorf("postgres: get course lessons: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var l lectern.Lesson
		if err := rows.Scan(&l.Number, &l.Title, &l.Link); err != nil {
			return lectern.Course{}, fmt.Errorf("postgres: scan lesson: %w", err)
		}
		c.Lessons = append(c.Lessons, l)
	}
	return c, rows.Err()
}

// ListCourses returns all course titles with lesson counts, in ingestion order.
func (ix *Index) ListCourses(ctx context.Context) ([]lectern.CourseStat, error) {
	rows, err := ix.pool.Query(ctx,
		`SELECT c.title, COUNT(l.number)
		 FROM courses c LEFT JOIN lessons l ON l.course_title = c.title
		 GROUP BY c.title, c.created_at
		 ORDER BY c.created_at, c.title`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list courses: %w", err)
	}
	defer rows.Close()

	var stats []lectern.CourseStat
	for rows.Next() {
		var s lectern.CourseStat
		if err := rows.Scan(&s.Title, &s.LessonCount); err != nil {
			return nil, fmt.Errorf("postgres: scan course stat: %w", err)
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// UpsertChunks inserts or replaces content chunks in one transaction.
func (ix *Index) UpsertChunks(ctx context.Context, chunks []lectern.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := ix.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := insertChunks(ctx, tx, chunks); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func insertChunks(ctx context.Context, tx pgx.Tx, chunks []lectern.Chunk) error {
	for _, c := range chunks {
		var embStr *string
		if len(c.Embedding) > 0 {
			v := serializeEmbedding(c.Embedding)
			embStr = &v
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO chunks (id, course_title, lesson_number, chunk_index, content, char_len, embedding)
			 VALUES ($1, $2, $3, $4, $5, $6, $7::vector)
			 ON CONFLICT (id) DO UPDATE SET
			   course_title = EXCLUDED.course_title,
			   lesson_number = EXCLUDED.lesson_number,
			   chunk_index = EXCLUDED.chunk_index,
			   content = EXCLUDED.content,
			   char_len = EXCLUDED.char_len,
			   embedding = EXCLUDED.embedding`,
			c.ID, c.CourseTitle, c.LessonNumber, c.ChunkIndex, c.Content, c.CharLen, embStr)
		if err != nil {
			return fmt.Errorf("postgres: insert chunk %s: %w", c.ID, err)
		}
	}
	return nil
}

// buildChunkFilters translates ChunkFilter values into SQL WHERE clauses
// with numbered placeholders starting at firstArg. Unknown fields are
// ignored.
func buildChunkFilters(filters []lectern.ChunkFilter, firstArg int) (string, []any) {
	var clauses []string
	var args []any
	n := firstArg
	for _, f := range filters {
		switch f.Field {
		case lectern.FilterCourseTitle:
			clauses = append(clauses, fmt.Sprintf("course_title = $%d", n))
		case lectern.FilterLessonNumber:
			clauses = append(clauses, fmt.Sprintf("lesson_number = $%d", n))
		default:
			continue
		}
		args = append(args, f.Value)
		n++
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " AND " + strings.Join(clauses, " AND "), args
}

// SearchChunks ranks content chunks by cosine similarity via pgvector,
// pre-filtered by the given filters. Equal distances fall back to document
// order (course, lesson, chunk index).
func (ix *Index) SearchChunks(ctx context.Context, embedding []float32, topK int, filters ...lectern.ChunkFilter) ([]lectern.ScoredChunk, error) {
	embStr := serializeEmbedding(embedding)
	whereExtra, filterArgs := buildChunkFilters(filters, 3) // $1=embedding, $2=topK

	q := `SELECT id, course_title, lesson_number, chunk_index, content, char_len,
	        1 - (embedding <=> $1::vector) AS score
	 FROM chunks
	 WHERE embedding IS NOT NULL` + whereExtra + `
	 ORDER BY embedding <=> $1::vector, course_title, lesson_number, chunk_index
	 LIMIT $2`

	allArgs := []any{embStr, topK}
	allArgs = append(allArgs, filterArgs...)

	rows, err := ix.pool.Query(ctx, q, allArgs...)
	if err != nil {
		return nil, fmt.Errorf("postgres: search chunks: %w", err)
	}
	defer rows.Close()

	var results []lectern.ScoredChunk
	for rows.Next() {
		var c lectern.Chunk
		var score float32
		if err := rows.Scan(&c.ID, &c.CourseTitle, &c.LessonNumber, &c.ChunkIndex, &c.Content, &c.CharLen, &score); err != nil {
			return nil, fmt.Errorf("postgres: scan chunk: %w", err)
		}
		results = append(results, lectern.ScoredChunk{Chunk: c, Score: score})
	}
	return results, rows.Err()
}

// ReplaceCourse atomically removes any prior data for course.Title and
// inserts the course row, its lessons, its catalog entry, and its chunks.
func (ix *Index) ReplaceCourse(ctx context.Context, course lectern.Course, entry lectern.CatalogEntry, chunks []lectern.Chunk) error {
	tx, err := ix.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := deleteCourseTx(ctx, tx, course.Title); err != nil {
		return err
	}

	var embStr *string
	if len(entry.Embedding) > 0 {
		v := serializeEmbedding(entry.Embedding)
		embStr = &v
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO courses (title, link, instructor, catalog_text, embedding, created_at)
		 VALUES ($1, $2, $3, $4, $5::vector, $6)`,
		course.Title, course.Link, course.Instructor, entry.Text, embStr, course.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: insert course: %w", err)
	}

	for _, l := range course.Lessons {
		_, err := tx.Exec(ctx,
			`INSERT INTO lessons (course_title, number, title, link) VALUES ($1, $2, $3, $4)`,
			course.Title, l.Number, l.Title, l.Link)
		if err != nil {
			return fmt.Errorf("postgres: insert lesson %d: %w", l.Number, err)
		}
	}

	if err := insertChunks(ctx, tx, chunks); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// DeleteCourse removes all catalog and content entries for the title.
// No-op if the title is absent.
func (ix *Index) DeleteCourse(ctx context.Context, title string) error {
	tx, err := ix.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := deleteCourseTx(ctx, tx, title); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func deleteCourseTx(ctx context.Context, tx pgx.Tx, title string) error {
	for _, stmt := range []string{
		`DELETE FROM chunks WHERE course_title = $1`,
		`DELETE FROM lessons WHERE course_title = $1`,
		`DELETE FROM courses WHERE title = $1`,
		`DELETE FROM fingerprints WHERE key = $1`,
	} {
		if _, err := tx.Exec(ctx, stmt, title); err != nil {
			return fmt.Errorf("postgres: delete course data: %w", err)
		}
	}
	return nil
}

// GetFingerprint returns the stored fingerprint for key, or "" when absent.
func (ix *Index) GetFingerprint(ctx context.Context, key string) (string, error) {
	var value string
	err := ix.pool.QueryRow(ctx, `SELECT value FROM fingerprints WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("postgres: get fingerprint: %w", err)
	}
	return value, nil
}

// SetFingerprint stores or replaces the fingerprint for key.
func (ix *Index) SetFingerprint(ctx context.Context, key, value string) error {
	_, err := ix.pool.Exec(ctx,
		`INSERT INTO fingerprints (key, value) VALUES ($1, $2)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
		key, value)
	if err != nil {
		return fmt.Errorf("postgres: set fingerprint: %w", err)
	}
	return nil
}

// Close is a no-op; the pool is owned by the caller.
func (ix *Index) Close() error { return nil }

// serializeEmbedding converts []float32 to a string like "[0.1,0.2,0.3]"
// suitable for pgvector's text input format.
func serializeEmbedding(embedding []float32) string {
	parts := make([]string, len(embedding))
	for i, v := range embedding {
		parts[i] = strconv.FormatFloat(float64(v), 'f', -1, 32)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
