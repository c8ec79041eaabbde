package lectern

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
)

// sourcedTool is an echoTool that also records retrieval sources.
type sourcedTool struct {
	echoTool
	sources []string
}

func (t *sourcedTool) Execute(ctx context.Context, name string, args json.RawMessage) (ToolResult, error) {
	t.sources = append(t.sources, "[Intro to Databases - Lesson 2]")
	return t.echoTool.Execute(ctx, name, args)
}

func (t *sourcedTool) LastSources() []string {
	s := t.sources
	t.sources = nil
	return s
}

func TestAppQueryAssignsSession(t *testing.T) {
	provider := &scriptedProvider{responses: []ChatResponse{{Content: "hello"}}}
	app, err := NewApp(provider)
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}

	ans, err := app.Query(context.Background(), "", "hi")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if ans.SessionID == "" {
		t.Error("empty session ID not replaced")
	}
	if ans.Content != "hello" {
		t.Errorf("content = %q", ans.Content)
	}
	if len(ans.Sources) != 0 {
		t.Errorf("sources without retrieval: %v", ans.Sources)
	}
}

func TestAppQueryCarriesHistory(t *testing.T) {
	provider := &scriptedProvider{responses: []ChatResponse{
		{Content: "first answer"},
		{Content: "second answer"},
	}}
	app, err := NewApp(provider, WithMaxHistory(2))
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}

	ans, err := app.Query(context.Background(), "", "first question")
	if err != nil {
		t.Fatalf("first Query: %v", err)
	}
	if _, err := app.Query(context.Background(), ans.SessionID, "second question"); err != nil {
		t.Fatalf("second Query: %v", err)
	}

	msgs := provider.requests[1].Messages
	if msgs[0].Role != "system" {
		t.Fatalf("first message role = %s", msgs[0].Role)
	}
	var seenPrior bool
	for _, m := range msgs {
		if m.Role == "assistant" && m.Content == "first answer" {
			seenPrior = true
		}
	}
	if !seenPrior {
		t.Error("second query did not carry the prior exchange")
	}
}

func TestAppQueryCollectsSources(t *testing.T) {
	provider := &scriptedProvider{responses: []ChatResponse{
		{ToolCalls: []ToolCall{{ID: "c1", Name: "search_course_content", Args: json.RawMessage(`{"query":"indexes"}`)}}},
		{Content: "answer"},
	}}
	tool := &sourcedTool{echoTool: echoTool{result: ToolResult{Content: "passage"}}}
	app, err := NewApp(provider, WithTools(tool))
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}

	ans, err := app.Query(context.Background(), "s", "what are indexes")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(ans.Sources) != 1 || ans.Sources[0] != "[Intro to Databases - Lesson 2]" {
		t.Errorf("sources = %v", ans.Sources)
	}

	// Sources are drained: a follow-up turn without retrieval has none.
	provider.responses = append(provider.responses, ChatResponse{Content: "direct"})
	ans2, err := app.Query(context.Background(), "s", "thanks")
	if err != nil {
		t.Fatalf("follow-up Query: %v", err)
	}
	if len(ans2.Sources) != 0 {
		t.Errorf("stale sources leaked: %v", ans2.Sources)
	}
}

func TestAppQuerySystemPrompt(t *testing.T) {
	provider := &scriptedProvider{responses: []ChatResponse{{Content: "ok"}}}
	app, err := NewApp(provider, WithPrompt("custom instructions"))
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	if _, err := app.Query(context.Background(), "s", "q"); err != nil {
		t.Fatalf("Query: %v", err)
	}
	if got := provider.requests[0].Messages[0]; got.Role != "system" || got.Content != "custom instructions" {
		t.Errorf("system message = %+v", got)
	}
}

func TestAppQueryProviderError(t *testing.T) {
	provider := &scriptedProvider{err: &ErrLLM{Provider: "scripted", Message: "overloaded"}}
	app, err := NewApp(provider)
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	if _, err := app.Query(context.Background(), "s", "q"); err == nil || !strings.Contains(err.Error(), "overloaded") {
		t.Errorf("expected provider error, got %v", err)
	}
}

func TestAppClearSession(t *testing.T) {
	provider := &scriptedProvider{responses: []ChatResponse{
		{Content: "a1"},
		{Content: "a2"},
	}}
	app, err := NewApp(provider)
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	if _, err := app.Query(context.Background(), "s", "q1"); err != nil {
		t.Fatalf("Query: %v", err)
	}
	app.ClearSession("s")
	if _, err := app.Query(context.Background(), "s", "q2"); err != nil {
		t.Fatalf("Query: %v", err)
	}
	for _, m := range provider.requests[1].Messages {
		if m.Content == "a1" {
			t.Error("cleared history still present")
		}
	}
}

func TestNewAppRequiresProvider(t *testing.T) {
	if _, err := NewApp(nil); err == nil {
		t.Error("expected error for nil provider")
	}
}

func TestAppListCourses(t *testing.T) {
	provider := &scriptedProvider{}
	index := &mockIndex{stats: []CourseStat{
		{Title: "Intro to Databases", LessonCount: 3},
		{Title: "Compilers", LessonCount: 10},
	}}
	app, err := NewApp(provider, WithIndex(index))
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}

	stats, err := app.ListCourses(context.Background())
	if err != nil {
		t.Fatalf("ListCourses: %v", err)
	}
	if len(stats) != 2 || stats[0].Title != "Intro to Databases" || stats[1].LessonCount != 10 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestAppListCoursesWithoutIndex(t *testing.T) {
	app, err := NewApp(&scriptedProvider{})
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	if _, err := app.ListCourses(context.Background()); err == nil {
		t.Error("expected error without an index")
	}
}
