package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/lectern/lectern"
)

// ContentPrefix formats the context prefix prepended to chunk text before
// embedding. Stored chunk content stays raw; only the embedded variant
// carries the prefix.
func ContentPrefix(courseTitle string, lessonNumber int) string {
	return fmt.Sprintf("Course %s Lesson %d content: ", courseTitle, lessonNumber)
}

// DocReport is the per-document outcome within an IngestReport.
type DocReport struct {
	Source      string
	CourseTitle string
	ChunkCount  int
	Skipped     bool // unchanged since last ingest
	Err         error
}

// IngestReport summarizes one ingestion run. A document failure is recorded
// here and does not abort the run.
type IngestReport struct {
	Docs []DocReport
}

// Courses returns the number of successfully ingested (non-skipped) courses.
func (r IngestReport) Courses() int {
	var n int
	for _, d := range r.Docs {
		if d.Err == nil && !d.Skipped {
			n++
		}
	}
	return n
}

// Chunks returns the total chunk count across successful documents.
func (r IngestReport) Chunks() int {
	var n int
	for _, d := range r.Docs {
		n += d.ChunkCount
	}
	return n
}

// Failed returns the reports of documents that could not be ingested.
func (r IngestReport) Failed() []DocReport {
	var out []DocReport
	for _, d := range r.Docs {
		if d.Err != nil {
			out = append(out, d)
		}
	}
	return out
}

// Ingestor runs the pipeline for course documents: extract, parse, chunk,
// embed, and replace in the index. Re-ingesting an unchanged document is a
// no-op, detected by a fingerprint of the extracted text.
type Ingestor struct {
	index     lectern.Index
	embedding lectern.EmbeddingProvider
	chunker   Chunker
	batchSize int
	logger    *slog.Logger
}

// Option configures an Ingestor.
type Option func(*Ingestor)

// WithChunker replaces the default sentence chunker.
func WithChunker(c Chunker) Option {
	return func(ing *Ingestor) { ing.chunker = c }
}

// WithBatchSize sets the number of chunks per Embed call (default 64).
func WithBatchSize(n int) Option {
	return func(ing *Ingestor) { ing.batchSize = n }
}

// WithLogger sets the ingestion logger.
func WithLogger(l *slog.Logger) Option {
	return func(ing *Ingestor) { ing.logger = l }
}

// NewIngestor creates an Ingestor. The default chunker uses 800-byte windows
// with 100 bytes of overlap.
func NewIngestor(index lectern.Index, emb lectern.EmbeddingProvider, opts ...Option) *Ingestor {
	chunker, _ := NewSentenceChunker(800, 100)
	ing := &Ingestor{
		index:     index,
		embedding: emb,
		chunker:   chunker,
		batchSize: 64,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, o := range opts {
		o(ing)
	}
	return ing
}

// IngestDirectory ingests every regular file in dir (non-recursive), in
// lexicographic name order. Per-document failures are collected in the
// report; only directory-level failures return an error.
func (ing *Ingestor) IngestDirectory(ctx context.Context, dir string) (IngestReport, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return IngestReport{}, fmt.Errorf("read dir %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var report IngestReport
	for _, name := range names {
		path := filepath.Join(dir, name)
		doc, err := ing.IngestFile(ctx, path)
		if err != nil {
			ing.logger.Warn("document skipped", "source", path, "error", err)
			report.Docs = append(report.Docs, DocReport{Source: path, Err: err})
			continue
		}
		report.Docs = append(report.Docs, doc)
	}
	return report, nil
}

// IngestFile ingests one course document from disk.
func (ing *Ingestor) IngestFile(ctx context.Context, path string) (DocReport, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return DocReport{}, fmt.Errorf("read %s: %w", path, err)
	}
	return ing.Ingest(ctx, content, path)
}

// Ingest runs the full pipeline on raw document bytes. source is used for
// extractor selection (extension) and error reporting.
func (ing *Ingestor) Ingest(ctx context.Context, content []byte, source string) (DocReport, error) {
	start := time.Now()

	text, err := ExtractorFor(source).Extract(content)
	if err != nil {
		return DocReport{}, fmt.Errorf("extract %s: %w", source, err)
	}

	doc, err := ParseCourseDocument(source, text)
	if err != nil {
		return DocReport{}, err
	}
	title := doc.Course.Title

	// Unchanged documents are skipped outright: same title, same extracted
	// text, nothing to re-embed.
	sum := sha256.Sum256([]byte(text))
	fingerprint := hex.EncodeToString(sum[:])
	if prev, err := ing.index.GetFingerprint(ctx, title); err == nil && prev == fingerprint {
		ing.logger.Debug("document unchanged", "source", source, "course", title)
		return DocReport{Source: source, CourseTitle: title, Skipped: true}, nil
	}

	chunks := ing.chunkCourse(doc)
	if err := ing.embedChunks(ctx, title, chunks); err != nil {
		return DocReport{}, err
	}

	entry, err := ing.catalogEntry(ctx, doc.Course)
	if err != nil {
		return DocReport{}, err
	}

	if err := ing.index.ReplaceCourse(ctx, doc.Course, entry, chunks); err != nil {
		return DocReport{}, fmt.Errorf("replace course %q: %w", title, err)
	}
	if err := ing.index.SetFingerprint(ctx, title, fingerprint); err != nil {
		return DocReport{}, fmt.Errorf("record fingerprint for %q: %w", title, err)
	}

	ing.logger.Info("course ingested",
		"source", source,
		"course", title,
		"lessons", len(doc.Course.Lessons),
		"chunks", len(chunks),
		"duration", time.Since(start))

	return DocReport{Source: source, CourseTitle: title, ChunkCount: len(chunks)}, nil
}

// chunkCourse chunks every lesson body in lesson order. Preamble text before
// the first lesson marker is indexed under lesson 0.
func (ing *Ingestor) chunkCourse(doc *CourseDocument) []lectern.Chunk {
	var chunks []lectern.Chunk
	appendLesson := func(number int, body string) {
		for i, piece := range ing.chunker.Chunk(body) {
			chunks = append(chunks, lectern.Chunk{
				ID:           lectern.NewID(),
				CourseTitle:  doc.Course.Title,
				LessonNumber: number,
				ChunkIndex:   i,
				Content:      piece,
				CharLen:      len(piece),
			})
		}
	}

	if doc.Preamble != "" {
		appendLesson(0, doc.Preamble)
	}
	for _, lesson := range doc.Course.Lessons {
		appendLesson(lesson.Number, doc.LessonTexts[lesson.Number])
	}
	return chunks
}

// embedChunks embeds chunk contents in batches, prefixing each text with its
// course and lesson context.
func (ing *Ingestor) embedChunks(ctx context.Context, title string, chunks []lectern.Chunk) error {
	for i := 0; i < len(chunks); i += ing.batchSize {
		end := min(i+ing.batchSize, len(chunks))
		batch := chunks[i:end]

		texts := make([]string, len(batch))
		for j, c := range batch {
			texts[j] = ContentPrefix(c.CourseTitle, c.LessonNumber) + c.Content
		}

		embeddings, err := ing.embedding.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed batch %d-%d for %q: %w", i, end, title, err)
		}
		if len(embeddings) != len(batch) {
			return fmt.Errorf("embed batch for %q: got %d vectors for %d texts", title, len(embeddings), len(batch))
		}
		for j := range batch {
			chunks[i+j].Embedding = embeddings[j]
		}
	}
	return nil
}

// catalogEntry builds and embeds the course's catalog representation:
// title, instructor, and lesson titles, which is what fuzzy references
// tend to mention.
func (ing *Ingestor) catalogEntry(ctx context.Context, course lectern.Course) (lectern.CatalogEntry, error) {
	var b strings.Builder
	b.WriteString(course.Title)
	if course.Instructor != "" {
		b.WriteString("\nInstructor: ")
		b.WriteString(course.Instructor)
	}
	for _, l := range course.Lessons {
		fmt.Fprintf(&b, "\nLesson %d: %s", l.Number, l.Title)
	}
	text := b.String()

	embs, err := ing.embedding.Embed(ctx, []string{text})
	if err != nil {
		return lectern.CatalogEntry{}, fmt.Errorf("embed catalog entry for %q: %w", course.Title, err)
	}
	if len(embs) == 0 {
		return lectern.CatalogEntry{}, fmt.Errorf("embed catalog entry for %q: no embedding returned", course.Title)
	}
	return lectern.CatalogEntry{CourseTitle: course.Title, Text: text, Embedding: embs[0]}, nil
}
