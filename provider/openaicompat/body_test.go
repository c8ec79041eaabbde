package openaicompat

import (
	"encoding/json"
	"testing"

	"github.com/lectern/lectern"
)

func TestBuildBody_SystemAndUserMessages(t *testing.T) {
	messages := []lectern.ChatMessage{
		{Role: "system", Content: "You answer questions about course materials."},
		{Role: "user", Content: "Hello"},
	}

	req := BuildBody(messages, nil, "gpt-4o-mini")

	if req.Model != "gpt-4o-mini" {
		t.Errorf("expected model 'gpt-4o-mini', got %q", req.Model)
	}
	if len(req.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(req.Messages))
	}
	if req.Messages[0].Role != "system" {
		t.Errorf("expected role 'system', got %q", req.Messages[0].Role)
	}
	if req.Messages[1].Role != "user" {
		t.Errorf("expected role 'user', got %q", req.Messages[1].Role)
	}
	if len(req.Tools) != 0 {
		t.Errorf("expected no tools, got %d", len(req.Tools))
	}
	if req.ToolChoice != "" {
		t.Errorf("expected empty tool_choice, got %q", req.ToolChoice)
	}
}

func TestBuildBody_AssistantWithToolCalls(t *testing.T) {
	messages := []lectern.ChatMessage{
		{Role: "user", Content: "What does lesson 3 cover?"},
		{
			Role: "assistant",
			ToolCalls: []lectern.ToolCall{
				{
					ID:   "call_123",
					Name: "search_course_content",
					Args: json.RawMessage(`{"query":"lesson 3"}`),
				},
			},
		},
	}

	req := BuildBody(messages, nil, "gpt-4o-mini")

	if len(req.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(req.Messages))
	}

	msg := req.Messages[1]
	if msg.Role != "assistant" {
		t.Errorf("expected role 'assistant', got %q", msg.Role)
	}
	if len(msg.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(msg.ToolCalls))
	}
	tc := msg.ToolCalls[0]
	if tc.ID != "call_123" {
		t.Errorf("expected tool call ID 'call_123', got %q", tc.ID)
	}
	if tc.Type != "function" {
		t.Errorf("expected type 'function', got %q", tc.Type)
	}
	if tc.Function.Name != "search_course_content" {
		t.Errorf("unexpected function name: %q", tc.Function.Name)
	}
	if tc.Function.Arguments != `{"query":"lesson 3"}` {
		t.Errorf("unexpected arguments: %q", tc.Function.Arguments)
	}
}

func TestBuildBody_ToolResultMessage(t *testing.T) {
	messages := []lectern.ChatMessage{
		lectern.ToolResultMessage("call_123", "[Databases - Lesson 3]\nIndexes speed up lookups."),
	}

	req := BuildBody(messages, nil, "gpt-4o-mini")

	if len(req.Messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(req.Messages))
	}
	msg := req.Messages[0]
	if msg.Role != "tool" {
		t.Errorf("expected role 'tool', got %q", msg.Role)
	}
	if msg.ToolCallID != "call_123" {
		t.Errorf("expected tool_call_id 'call_123', got %q", msg.ToolCallID)
	}
	if msg.Content != "[Databases - Lesson 3]\nIndexes speed up lookups." {
		t.Errorf("unexpected content: %q", msg.Content)
	}
}

func TestBuildBody_WithTools(t *testing.T) {
	tools := []lectern.ToolDefinition{
		{
			Name:        "search_course_content",
			Description: "Search indexed course materials.",
			Parameters:  json.RawMessage(`{"type":"object"}`),
		},
	}

	req := BuildBody([]lectern.ChatMessage{{Role: "user", Content: "Hi"}}, tools, "gpt-4o-mini")

	if len(req.Tools) != 1 {
		t.Fatalf("expected 1 tool, got %d", len(req.Tools))
	}
	if req.Tools[0].Type != "function" {
		t.Errorf("expected tool type 'function', got %q", req.Tools[0].Type)
	}
	if req.Tools[0].Function.Name != "search_course_content" {
		t.Errorf("unexpected tool name: %q", req.Tools[0].Function.Name)
	}
	if req.ToolChoice != "auto" {
		t.Errorf("expected tool_choice 'auto', got %q", req.ToolChoice)
	}
}

func TestBuildToolDefs_EmptyParameters(t *testing.T) {
	tools := []lectern.ToolDefinition{
		{Name: "noop", Description: "does nothing"},
	}

	defs := BuildToolDefs(tools)

	if len(defs) != 1 {
		t.Fatalf("expected 1 def, got %d", len(defs))
	}
	if string(defs[0].Function.Parameters) != "{}" {
		t.Errorf("expected empty object parameters, got %q", string(defs[0].Function.Parameters))
	}
}
