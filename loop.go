package lectern

import (
	"context"
	"log/slog"
	"time"
)

// turnResult carries the outcome of one orchestrated turn.
type turnResult struct {
	Content string
	Usage   Usage
}

// runTurn drives one question through the generator with at most one tool
// round. The first Chat call advertises the registry's tools; if the model
// requests any, they are executed in call order and their results appended,
// and the follow-up Chat call carries no tool definitions, so the model must
// produce the final answer. Tool execution failures become error-text results
// in the conversation rather than aborting the turn.
func runTurn(ctx context.Context, provider Provider, registry *ToolRegistry, messages []ChatMessage, logger *slog.Logger) (turnResult, error) {
	var total Usage

	start := time.Now()
	resp, err := provider.Chat(ctx, ChatRequest{
		Messages: messages,
		Tools:    registry.AllDefinitions(),
	})
	if err != nil {
		return turnResult{}, err
	}
	total.InputTokens += resp.Usage.InputTokens
	total.OutputTokens += resp.Usage.OutputTokens
	logger.Debug("generator call complete",
		"provider", provider.Name(),
		"tool_calls", len(resp.ToolCalls),
		"duration", time.Since(start))

	if len(resp.ToolCalls) == 0 {
		return turnResult{Content: resp.Content, Usage: total}, nil
	}

	messages = append(messages, ChatMessage{
		Role:      "assistant",
		Content:   resp.Content,
		ToolCalls: resp.ToolCalls,
	})

	for _, tc := range resp.ToolCalls {
		tcStart := time.Now()
		result, err := registry.Execute(ctx, tc.Name, tc.Args)
		if err != nil {
			result = ToolResult{Error: err.Error()}
		}
		content := result.Content
		if result.Error != "" {
			content = "error: " + result.Error
		}
		logger.Debug("tool executed",
			"tool", tc.Name,
			"error", result.Error != "",
			"duration", time.Since(tcStart))
		messages = append(messages, ToolResultMessage(tc.ID, content))
	}

	// Second call omits tool definitions. The model cannot request another
	// round, which bounds every turn at one.
	start = time.Now()
	final, err := provider.Chat(ctx, ChatRequest{Messages: messages})
	if err != nil {
		return turnResult{}, err
	}
	total.InputTokens += final.Usage.InputTokens
	total.OutputTokens += final.Usage.OutputTokens
	logger.Debug("synthesis call complete",
		"provider", provider.Name(),
		"duration", time.Since(start))

	return turnResult{Content: final.Content, Usage: total}, nil
}
