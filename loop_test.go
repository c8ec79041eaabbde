package lectern

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
)

// scriptedProvider returns canned responses in order and records requests.
type scriptedProvider struct {
	responses []ChatResponse
	requests  []ChatRequest
	err       error
}

func (p *scriptedProvider) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	p.requests = append(p.requests, req)
	if p.err != nil {
		return ChatResponse{}, p.err
	}
	if len(p.requests) > len(p.responses) {
		return ChatResponse{}, fmt.Errorf("unexpected chat call %d", len(p.requests))
	}
	return p.responses[len(p.requests)-1], nil
}

func (p *scriptedProvider) Name() string { return "scripted" }

// echoTool returns its query argument and records executions.
type echoTool struct {
	executions []string
	result     ToolResult
	err        error
}

func (t *echoTool) Definitions() []ToolDefinition {
	return []ToolDefinition{{
		Name:        "search_course_content",
		Description: "Search indexed course material",
		Parameters:  json.RawMessage(`{"type":"object","properties":{"query":{"type":"string"}},"required":["query"]}`),
	}}
}

func (t *echoTool) Execute(ctx context.Context, name string, args json.RawMessage) (ToolResult, error) {
	t.executions = append(t.executions, string(args))
	return t.result, t.err
}

func TestRunTurnDirectAnswer(t *testing.T) {
	provider := &scriptedProvider{responses: []ChatResponse{
		{Content: "direct answer", Usage: Usage{InputTokens: 10, OutputTokens: 5}},
	}}
	tool := &echoTool{}
	registry := NewToolRegistry()
	registry.Add(tool)

	result, err := runTurn(context.Background(), provider, registry, []ChatMessage{UserMessage("hi")}, nopLogger)
	if err != nil {
		t.Fatalf("runTurn: %v", err)
	}
	if result.Content != "direct answer" {
		t.Errorf("content = %q", result.Content)
	}
	if len(provider.requests) != 1 {
		t.Fatalf("expected 1 chat call, got %d", len(provider.requests))
	}
	if len(provider.requests[0].Tools) != 1 {
		t.Errorf("first call carried %d tool definitions, want 1", len(provider.requests[0].Tools))
	}
	if len(tool.executions) != 0 {
		t.Errorf("tool executed %d times without a tool call", len(tool.executions))
	}
}

func TestRunTurnSingleToolRound(t *testing.T) {
	provider := &scriptedProvider{responses: []ChatResponse{
		{
			ToolCalls: []ToolCall{{ID: "c1", Name: "search_course_content", Args: json.RawMessage(`{"query":"indexes"}`)}},
			Usage:     Usage{InputTokens: 10, OutputTokens: 5},
		},
		{Content: "answer from search", Usage: Usage{InputTokens: 20, OutputTokens: 8}},
	}}
	tool := &echoTool{result: ToolResult{Content: "found passage about indexes"}}
	registry := NewToolRegistry()
	registry.Add(tool)

	result, err := runTurn(context.Background(), provider, registry, []ChatMessage{UserMessage("what are indexes")}, nopLogger)
	if err != nil {
		t.Fatalf("runTurn: %v", err)
	}
	if result.Content != "answer from search" {
		t.Errorf("content = %q", result.Content)
	}
	if len(tool.executions) != 1 {
		t.Fatalf("tool executed %d times, want 1", len(tool.executions))
	}

	if len(provider.requests) != 2 {
		t.Fatalf("expected 2 chat calls, got %d", len(provider.requests))
	}
	// Follow-up call must carry no tool definitions so the model cannot
	// open a second round.
	if len(provider.requests[1].Tools) != 0 {
		t.Errorf("follow-up call carried %d tool definitions", len(provider.requests[1].Tools))
	}

	// Follow-up conversation includes the assistant tool-call message and
	// the tool result linked by call ID.
	msgs := provider.requests[1].Messages
	last := msgs[len(msgs)-1]
	if last.Role != "tool" || last.ToolCallID != "c1" || last.Content != "found passage about indexes" {
		t.Errorf("unexpected tool result message: %+v", last)
	}
	if prev := msgs[len(msgs)-2]; prev.Role != "assistant" || len(prev.ToolCalls) != 1 {
		t.Errorf("unexpected assistant message: %+v", prev)
	}

	if result.Usage.InputTokens != 30 || result.Usage.OutputTokens != 13 {
		t.Errorf("usage not accumulated: %+v", result.Usage)
	}
}

func TestRunTurnToolErrorBecomesResult(t *testing.T) {
	provider := &scriptedProvider{responses: []ChatResponse{
		{ToolCalls: []ToolCall{{ID: "c1", Name: "search_course_content", Args: json.RawMessage(`{}`)}}},
		{Content: "answer despite failure"},
	}}
	tool := &echoTool{err: fmt.Errorf("backend unreachable")}
	registry := NewToolRegistry()
	registry.Add(tool)

	result, err := runTurn(context.Background(), provider, registry, []ChatMessage{UserMessage("q")}, nopLogger)
	if err != nil {
		t.Fatalf("runTurn should not fail on tool error: %v", err)
	}
	if result.Content != "answer despite failure" {
		t.Errorf("content = %q", result.Content)
	}
	msgs := provider.requests[1].Messages
	last := msgs[len(msgs)-1]
	if last.Role != "tool" || last.Content != "error: backend unreachable" {
		t.Errorf("tool error not surfaced as result: %+v", last)
	}
}

func TestRunTurnUnknownToolCall(t *testing.T) {
	provider := &scriptedProvider{responses: []ChatResponse{
		{ToolCalls: []ToolCall{{ID: "c1", Name: "no_such_tool", Args: json.RawMessage(`{}`)}}},
		{Content: "recovered"},
	}}
	registry := NewToolRegistry()
	registry.Add(&echoTool{})

	result, err := runTurn(context.Background(), provider, registry, []ChatMessage{UserMessage("q")}, nopLogger)
	if err != nil {
		t.Fatalf("runTurn: %v", err)
	}
	if result.Content != "recovered" {
		t.Errorf("content = %q", result.Content)
	}
	msgs := provider.requests[1].Messages
	if last := msgs[len(msgs)-1]; last.Content != "error: unknown tool: no_such_tool" {
		t.Errorf("unknown tool result = %q", last.Content)
	}
}
