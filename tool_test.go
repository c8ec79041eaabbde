package lectern

import (
	"context"
	"testing"
)

func TestRegistryExecuteRoutesByDefinitionName(t *testing.T) {
	tool := &echoTool{result: ToolResult{Content: "ok"}}
	r := NewToolRegistry()
	r.Add(tool)

	res, err := r.Execute(context.Background(), "search_course_content", nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Content != "ok" {
		t.Errorf("content = %q", res.Content)
	}
}

func TestRegistryUnknownToolIsResultNotError(t *testing.T) {
	r := NewToolRegistry()
	res, err := r.Execute(context.Background(), "missing", nil)
	if err != nil {
		t.Fatalf("unknown tool should not be a Go error: %v", err)
	}
	if res.Error != "unknown tool: missing" {
		t.Errorf("result error = %q", res.Error)
	}
}

func TestRegistryDrainSourcesSkipsNonRecorders(t *testing.T) {
	plain := &echoTool{}
	recording := &sourcedTool{}
	recording.sources = []string{"[Course A - Lesson 1]"}

	r := NewToolRegistry()
	r.Add(plain)
	r.Add(recording)

	sources := r.DrainSources()
	if len(sources) != 1 || sources[0] != "[Course A - Lesson 1]" {
		t.Fatalf("sources = %v", sources)
	}
	if again := r.DrainSources(); len(again) != 0 {
		t.Errorf("drain did not reset: %v", again)
	}
}
