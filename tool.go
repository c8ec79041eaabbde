package lectern

import (
	"context"
	"encoding/json"
)

// Tool defines a capability exposed to the generator, with one or more
// tool functions.
type Tool interface {
	Definitions() []ToolDefinition
	Execute(ctx context.Context, name string, args json.RawMessage) (ToolResult, error)
}

// ToolResult is the outcome of a tool execution.
type ToolResult struct {
	Content string `json:"content"`
	Error   string `json:"error,omitempty"`
}

// SourceRecorder is an optional Tool capability: tools that retrieve indexed
// content record the source labels of the passages they returned. The
// orchestrator drains them once per query to assemble citations without
// re-querying; callers discover the capability via type assertion.
type SourceRecorder interface {
	// LastSources returns the labels recorded since the previous call and
	// resets the record.
	LastSources() []string
}

// ToolRegistry holds all registered tools and dispatches execution.
type ToolRegistry struct {
	tools []Tool
}

// NewToolRegistry creates an empty registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{}
}

// Add registers a tool.
func (r *ToolRegistry) Add(t Tool) {
	r.tools = append(r.tools, t)
}

// AllDefinitions returns tool definitions from all registered tools.
func (r *ToolRegistry) AllDefinitions() []ToolDefinition {
	var defs []ToolDefinition
	for _, t := range r.tools {
		defs = append(defs, t.Definitions()...)
	}
	return defs
}

// Execute dispatches a tool call by name.
func (r *ToolRegistry) Execute(ctx context.Context, name string, args json.RawMessage) (ToolResult, error) {
	for _, t := range r.tools {
		for _, d := range t.Definitions() {
			if d.Name == name {
				return t.Execute(ctx, name, args)
			}
		}
	}
	return ToolResult{Error: "unknown tool: " + name}, nil
}

// DrainSources collects and resets source labels from every registered tool
// that implements SourceRecorder, preserving registration order.
func (r *ToolRegistry) DrainSources() []string {
	var sources []string
	for _, t := range r.tools {
		if rec, ok := t.(SourceRecorder); ok {
			sources = append(sources, rec.LastSources()...)
		}
	}
	return sources
}
