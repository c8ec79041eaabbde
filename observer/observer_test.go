package observer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/lectern/lectern"
)

// ---------------------------------------------------------------------------
// Mock implementations
// ---------------------------------------------------------------------------

type mockProvider struct {
	name     string
	chatResp lectern.ChatResponse
	chatErr  error
}

func (m *mockProvider) Name() string { return m.name }
func (m *mockProvider) Chat(_ context.Context, _ lectern.ChatRequest) (lectern.ChatResponse, error) {
	return m.chatResp, m.chatErr
}

type mockTool struct {
	defs    []lectern.ToolDefinition
	result  lectern.ToolResult
	err     error
	sources []string
}

func (m *mockTool) Definitions() []lectern.ToolDefinition { return m.defs }
func (m *mockTool) Execute(_ context.Context, _ string, _ json.RawMessage) (lectern.ToolResult, error) {
	return m.result, m.err
}
func (m *mockTool) LastSources() []string {
	out := m.sources
	m.sources = nil
	return out
}

type plainTool struct{}

func (plainTool) Definitions() []lectern.ToolDefinition { return nil }
func (plainTool) Execute(_ context.Context, _ string, _ json.RawMessage) (lectern.ToolResult, error) {
	return lectern.ToolResult{}, nil
}

type mockEmbedding struct {
	name string
	dims int
	vecs [][]float32
	err  error
}

func (m *mockEmbedding) Name() string    { return m.name }
func (m *mockEmbedding) Dimensions() int { return m.dims }
func (m *mockEmbedding) Embed(_ context.Context, _ []string) ([][]float32, error) {
	return m.vecs, m.err
}

// testInstruments creates a no-op Instruments using the global OTEL providers
// (which are no-ops by default). This is safe for testing delegation behavior
// without any real OTEL backend.
func testInstruments(t *testing.T) *Instruments {
	t.Helper()
	inst, err := newInstruments(nil)
	if err != nil {
		t.Fatalf("newInstruments: %v", err)
	}
	return inst
}

// ---------------------------------------------------------------------------
// ObservedProvider tests
// ---------------------------------------------------------------------------

func TestObservedProviderName(t *testing.T) {
	inner := &mockProvider{name: "test-provider"}
	op := WrapProvider(inner, "test-model", testInstruments(t))

	if got := op.Name(); got != "test-provider" {
		t.Errorf("Name() = %q, want %q", got, "test-provider")
	}
}

func TestObservedProviderChat(t *testing.T) {
	want := lectern.ChatResponse{
		Content: "Lesson 2 covers indexes.",
		Usage:   lectern.Usage{InputTokens: 10, OutputTokens: 5},
	}
	inner := &mockProvider{name: "p", chatResp: want}
	op := WrapProvider(inner, "m", testInstruments(t))

	got, err := op.Chat(context.Background(), lectern.ChatRequest{})
	if err != nil {
		t.Fatalf("Chat returned unexpected error: %v", err)
	}
	if got.Content != want.Content {
		t.Errorf("Content = %q, want %q", got.Content, want.Content)
	}
	if got.Usage != want.Usage {
		t.Errorf("Usage = %+v, want %+v", got.Usage, want.Usage)
	}
}

func TestObservedProviderChatError(t *testing.T) {
	wantErr := errors.New("provider unavailable")
	inner := &mockProvider{name: "p", chatErr: wantErr}
	op := WrapProvider(inner, "m", testInstruments(t))

	_, err := op.Chat(context.Background(), lectern.ChatRequest{})
	if !errors.Is(err, wantErr) {
		t.Errorf("Chat error = %v, want %v", err, wantErr)
	}
}

func TestObservedProviderChatWithTools(t *testing.T) {
	inner := &mockProvider{name: "p", chatResp: lectern.ChatResponse{
		ToolCalls: []lectern.ToolCall{{ID: "call_1", Name: "search_course_content"}},
	}}
	op := WrapProvider(inner, "m", testInstruments(t))

	got, err := op.Chat(context.Background(), lectern.ChatRequest{
		Tools: []lectern.ToolDefinition{{Name: "search_course_content"}},
	})
	if err != nil {
		t.Fatalf("Chat returned unexpected error: %v", err)
	}
	if len(got.ToolCalls) != 1 {
		t.Errorf("expected tool calls to pass through, got %d", len(got.ToolCalls))
	}
}

// ---------------------------------------------------------------------------
// ObservedTool tests
// ---------------------------------------------------------------------------

func TestObservedToolExecute(t *testing.T) {
	inner := &mockTool{result: lectern.ToolResult{Content: "passages"}}
	ot := WrapTool(inner, testInstruments(t))

	got, err := ot.Execute(context.Background(), "search_course_content", json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("Execute returned unexpected error: %v", err)
	}
	if got.Content != "passages" {
		t.Errorf("Content = %q, want %q", got.Content, "passages")
	}
}

func TestObservedToolExecuteError(t *testing.T) {
	wantErr := errors.New("boom")
	inner := &mockTool{err: wantErr}
	ot := WrapTool(inner, testInstruments(t))

	_, err := ot.Execute(context.Background(), "search_course_content", json.RawMessage(`{}`))
	if !errors.Is(err, wantErr) {
		t.Errorf("Execute error = %v, want %v", err, wantErr)
	}
}

func TestObservedToolForwardsSources(t *testing.T) {
	inner := &mockTool{sources: []string{"[Intro to Databases - Lesson 2]"}}
	ot := WrapTool(inner, testInstruments(t))

	sources := ot.LastSources()
	if len(sources) != 1 || sources[0] != "[Intro to Databases - Lesson 2]" {
		t.Errorf("unexpected sources: %v", sources)
	}
	if again := ot.LastSources(); len(again) != 0 {
		t.Errorf("expected drained sources, got %v", again)
	}
}

func TestObservedToolNonRecordingInner(t *testing.T) {
	ot := WrapTool(plainTool{}, testInstruments(t))
	if sources := ot.LastSources(); sources != nil {
		t.Errorf("expected nil sources for non-recording inner, got %v", sources)
	}
}

// ---------------------------------------------------------------------------
// ObservedEmbedding tests
// ---------------------------------------------------------------------------

func TestObservedEmbeddingEmbed(t *testing.T) {
	inner := &mockEmbedding{name: "e", dims: 3, vecs: [][]float32{{1, 0, 0}}}
	oe := WrapEmbedding(inner, "text-embedding-3-small", testInstruments(t))

	vecs, err := oe.Embed(context.Background(), []string{"hello"})
	if err != nil {
		t.Fatalf("Embed returned unexpected error: %v", err)
	}
	if len(vecs) != 1 || vecs[0][0] != 1 {
		t.Errorf("unexpected vectors: %v", vecs)
	}
	if oe.Dimensions() != 3 {
		t.Errorf("Dimensions() = %d, want 3", oe.Dimensions())
	}
	if oe.Name() != "e" {
		t.Errorf("Name() = %q, want %q", oe.Name(), "e")
	}
}

func TestObservedEmbeddingError(t *testing.T) {
	wantErr := errors.New("embed failed")
	inner := &mockEmbedding{name: "e", dims: 3, err: wantErr}
	oe := WrapEmbedding(inner, "text-embedding-3-small", testInstruments(t))

	_, err := oe.Embed(context.Background(), []string{"hello"})
	if !errors.Is(err, wantErr) {
		t.Errorf("Embed error = %v, want %v", err, wantErr)
	}
}
