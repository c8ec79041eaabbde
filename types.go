package lectern

import "encoding/json"

// --- Domain types (index records) ---

// Course is the unit of ingestion: one course document produces one Course.
// The title is the primary key for resolution; re-ingesting a title replaces
// the prior instance wholesale.
type Course struct {
	Title      string   `json:"title"`
	Link       string   `json:"link"`
	Instructor string   `json:"instructor"`
	Lessons    []Lesson `json:"lessons"`
	CreatedAt  int64    `json:"created_at"`
}

// Lesson is owned by exactly one Course. Lesson content is not stored here;
// it is chunked and indexed separately.
type Lesson struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	Link   string `json:"link,omitempty"`
}

// Chunk is a bounded window of lesson text, the unit of retrieval.
// CourseTitle and LessonNumber are foreign-key references, not back-pointers.
// Content holds the raw chunk text for citation; the embedding is computed
// over a context-prefixed variant of it (see ingest.ContentPrefix).
type Chunk struct {
	ID           string    `json:"id"`
	CourseTitle  string    `json:"course_title"`
	LessonNumber int       `json:"lesson_number"`
	ChunkIndex   int       `json:"chunk_index"`
	Content      string    `json:"content"`
	CharLen      int       `json:"char_len"`
	Embedding    []float32 `json:"-"`
}

// CatalogEntry is the searchable representation of one course, used only
// for resolving fuzzy course references to an exact title.
type CatalogEntry struct {
	CourseTitle string    `json:"course_title"`
	Text        string    `json:"text"`
	Embedding   []float32 `json:"-"`
}

// ScoredChunk pairs a content-index chunk with its relevance score.
type ScoredChunk struct {
	Chunk Chunk
	Score float32
}

// ScoredCatalogEntry pairs a catalog entry with its match score.
type ScoredCatalogEntry struct {
	Entry CatalogEntry
	Score float32
}

// CourseStat is one row of the course listing surface.
type CourseStat struct {
	Title       string `json:"title"`
	LessonCount int    `json:"lesson_count"`
}

// --- LLM protocol types ---

type ChatMessage struct {
	Role       string     `json:"role"` // "system", "user", "assistant", "tool"
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

type ToolCall struct {
	ID   string          `json:"id"`
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"`
}

type ChatRequest struct {
	Messages []ChatMessage    `json:"messages"`
	Tools    []ToolDefinition `json:"tools,omitempty"`
}

type ChatResponse struct {
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	Usage     Usage      `json:"usage"`
}

type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"` // JSON Schema
}

// --- ChatMessage constructors ---

func UserMessage(text string) ChatMessage {
	return ChatMessage{Role: "user", Content: text}
}

func SystemMessage(text string) ChatMessage {
	return ChatMessage{Role: "system", Content: text}
}

func AssistantMessage(text string) ChatMessage {
	return ChatMessage{Role: "assistant", Content: text}
}

func ToolResultMessage(callID, content string) ChatMessage {
	return ChatMessage{Role: "tool", Content: content, ToolCallID: callID}
}
