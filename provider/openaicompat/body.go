package openaicompat

import (
	"encoding/json"

	"github.com/lectern/lectern"
)

// BuildBody converts chat messages and tool definitions into an OpenAI-format
// request body. Assistant messages carrying tool calls are re-encoded with the
// arguments as JSON strings; tool-result messages get the "tool" role with
// their originating call ID.
func BuildBody(messages []lectern.ChatMessage, tools []lectern.ToolDefinition, model string) ChatRequest {
	out := make([]Message, 0, len(messages))

	for _, m := range messages {
		switch {
		case len(m.ToolCalls) > 0:
			msg := Message{Role: "assistant", Content: m.Content}
			for _, tc := range m.ToolCalls {
				msg.ToolCalls = append(msg.ToolCalls, ToolCallRequest{
					ID:   tc.ID,
					Type: "function",
					Function: FunctionCall{
						Name:      tc.Name,
						Arguments: string(tc.Args),
					},
				})
			}
			out = append(out, msg)

		case m.Role == "tool":
			out = append(out, Message{
				Role:       "tool",
				Content:    m.Content,
				ToolCallID: m.ToolCallID,
			})

		default:
			out = append(out, Message{Role: m.Role, Content: m.Content})
		}
	}

	body := ChatRequest{
		Model:    model,
		Messages: out,
	}
	if len(tools) > 0 {
		body.Tools = BuildToolDefs(tools)
		body.ToolChoice = "auto"
	}
	return body
}

// BuildToolDefs wraps tool definitions in the OpenAI function-tool format.
// Empty parameter schemas become "{}" because some backends reject null.
func BuildToolDefs(tools []lectern.ToolDefinition) []Tool {
	out := make([]Tool, 0, len(tools))
	for _, t := range tools {
		params := t.Parameters
		if len(params) == 0 {
			params = json.RawMessage(`{}`)
		}
		out = append(out, Tool{
			Type: "function",
			Function: Function{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
			},
		})
	}
	return out
}
