// Package coursesearch exposes indexed course materials to the generator as
// a single search_course_content tool function.
package coursesearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/lectern/lectern"
)

// Searcher is the retrieval surface the tool needs. *lectern.CourseSearcher
// satisfies it.
type Searcher interface {
	ResolveCourse(ctx context.Context, reference string) (string, error)
	SearchContent(ctx context.Context, query, courseTitle string, lessonNumber *int, k int) ([]lectern.ScoredChunk, error)
}

// CourseSearchTool searches course content, optionally scoped to one course
// and one lesson. It records the source label of every passage it returns;
// the orchestrator drains those labels once per query for citations.
type CourseSearchTool struct {
	searcher Searcher
	topK     int

	mu      sync.Mutex
	sources []string
}

// Option configures a CourseSearchTool.
type Option func(*CourseSearchTool)

// WithTopK sets the number of passages to retrieve. Default is 5.
func WithTopK(n int) Option {
	return func(t *CourseSearchTool) { t.topK = n }
}

// New creates a CourseSearchTool over the given searcher.
func New(searcher Searcher, opts ...Option) *CourseSearchTool {
	t := &CourseSearchTool{searcher: searcher, topK: 5}
	for _, o := range opts {
		o(t)
	}
	return t
}

func (t *CourseSearchTool) Definitions() []lectern.ToolDefinition {
	return []lectern.ToolDefinition{{
		Name:        "search_course_content",
		Description: "Search indexed course materials for passages relevant to a query. Optionally restrict the search to one course (by full or partial name) and to one lesson number within it.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"query": {"type": "string", "description": "What to search for in the course content"},
				"course_name": {"type": "string", "description": "Course title, full or partial (e.g. 'MCP', 'Introduction')"},
				"lesson_number": {"type": "integer", "description": "Specific lesson number to search within (e.g. 1, 3)"}
			},
			"required": ["query"]
		}`),
	}}
}

func (t *CourseSearchTool) Execute(ctx context.Context, _ string, args json.RawMessage) (lectern.ToolResult, error) {
	var params struct {
		Query        string `json:"query"`
		CourseName   string `json:"course_name"`
		LessonNumber *int   `json:"lesson_number"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return lectern.ToolResult{Error: "invalid args: " + err.Error()}, nil
	}
	if strings.TrimSpace(params.Query) == "" {
		return lectern.ToolResult{Error: "query is required"}, nil
	}

	// Resolve the course reference once. A miss is an answer for the
	// generator, not a failure.
	var courseTitle string
	if params.CourseName != "" {
		title, err := t.searcher.ResolveCourse(ctx, params.CourseName)
		var notFound *lectern.ErrCourseNotFound
		if errors.As(err, &notFound) {
			return lectern.ToolResult{Content: fmt.Sprintf("No course found matching '%s'", params.CourseName)}, nil
		}
		if err != nil {
			return lectern.ToolResult{Error: "resolve course: " + err.Error()}, nil
		}
		courseTitle = title
	}

	chunks, err := t.searcher.SearchContent(ctx, params.Query, courseTitle, params.LessonNumber, t.topK)
	if err != nil {
		return lectern.ToolResult{Error: "search error: " + err.Error()}, nil
	}

	if len(chunks) == 0 {
		return lectern.ToolResult{Content: noResultsMessage(courseTitle, params.LessonNumber)}, nil
	}

	var out strings.Builder
	labels := make([]string, 0, len(chunks))
	for i, sc := range chunks {
		label := sourceLabel(sc.Chunk)
		labels = append(labels, label)
		if i > 0 {
			out.WriteString("\n\n")
		}
		fmt.Fprintf(&out, "%s\n%s", label, sc.Chunk.Content)
	}
	t.record(labels)

	return lectern.ToolResult{Content: out.String()}, nil
}

// LastSources returns the labels recorded since the previous call and resets
// the record.
func (t *CourseSearchTool) LastSources() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := t.sources
	t.sources = nil
	return out
}

func (t *CourseSearchTool) record(labels []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sources = append(t.sources, labels...)
}

func sourceLabel(c lectern.Chunk) string {
	if c.LessonNumber > 0 {
		return fmt.Sprintf("[%s - Lesson %d]", c.CourseTitle, c.LessonNumber)
	}
	return fmt.Sprintf("[%s]", c.CourseTitle)
}

func noResultsMessage(courseTitle string, lessonNumber *int) string {
	var scope strings.Builder
	scope.WriteString("No relevant content found")
	if courseTitle != "" {
		fmt.Fprintf(&scope, " in course '%s'", courseTitle)
	}
	if lessonNumber != nil {
		fmt.Fprintf(&scope, " in lesson %d", *lessonNumber)
	}
	scope.WriteString(".")
	return scope.String()
}

// Compile-time interface checks.
var (
	_ lectern.Tool           = (*CourseSearchTool)(nil)
	_ lectern.SourceRecorder = (*CourseSearchTool)(nil)
)
