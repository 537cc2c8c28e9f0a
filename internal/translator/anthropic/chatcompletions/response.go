package chatcompletions

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/copilotgw/gateway/internal/dialect"
)

// mapFinishReason translates an upstream ChatCompletions finish_reason into
// its Anthropic stop_reason equivalent.
func mapFinishReason(reason string) string {
	switch reason {
	case "length":
		return "max_tokens"
	case "tool_calls", "function_call":
		return "tool_use"
	case "content_filter":
		return "end_turn"
	case "stop":
		return "end_turn"
	default:
		return "end_turn"
	}
}

// ConvertChatCompletionsResponseToClaudeNonStream converts a ChatCompletions
// completion into an Anthropic message: blocks in thinking, text, tool_use
// order per choice, choices concatenated, tool_calls finish_reason
// taking precedence over the first choice's value.
func ConvertChatCompletionsResponseToClaudeNonStream(_ context.Context, _ string, _, _, rawJSON []byte, _ *any) string {
	root := gjson.ParseBytes(rawJSON)

	var blocks []any
	finishReason := ""
	sawToolCalls := false

	choices := root.Get("choices")
	for _, choice := range choices.Array() {
		message := choice.Get("message")

		reasoningText, hasReasoningText := dialect.NonEmptyStr(message, "reasoning_text")
		reasoningOpaque, hasReasoningOpaque := dialect.NonEmptyStr(message, "reasoning_opaque")
		if hasReasoningText || hasReasoningOpaque {
			blocks = append(blocks, map[string]any{
				"type":      dialect.BlockThinking,
				"thinking":  reasoningText,
				"signature": reasoningOpaque,
			})
		}

		if content := message.Get("content"); content.Type == gjson.String && content.Str != "" {
			blocks = append(blocks, map[string]any{"type": dialect.BlockText, "text": content.Str})
		}

		if toolCalls := message.Get("tool_calls"); toolCalls.IsArray() {
			for _, tc := range toolCalls.Array() {
				sawToolCalls = true
				id := tc.Get("id").String()
				if id == "" {
					id = "toolu_" + uuid.NewString()
				}
				blocks = append(blocks, map[string]any{
					"type":  dialect.BlockToolUse,
					"id":    id,
					"name":  tc.Get("function.name").String(),
					"input": json.RawMessage(dialect.ParseFunctionCallArguments(tc.Get("function.arguments").String())),
				})
			}
		}

		if cr := choice.Get("finish_reason").String(); finishReason == "" && cr != "" {
			finishReason = cr
		}
	}

	stopReason := mapFinishReason(finishReason)
	if sawToolCalls {
		stopReason = "tool_use"
	}

	usage := root.Get("usage")
	promptTokens := usage.Get("prompt_tokens").Int()
	completionTokens := usage.Get("completion_tokens").Int()
	cachedTokens := dialect.OptInt64(usage, "prompt_tokens_details.cached_tokens")

	usageOut := map[string]any{
		"input_tokens":  promptTokens,
		"output_tokens": completionTokens,
	}
	if cachedTokens != nil {
		usageOut["input_tokens"] = promptTokens - *cachedTokens
		usageOut["cache_read_input_tokens"] = *cachedTokens
	}

	out := map[string]any{
		"id":          root.Get("id").String(),
		"type":        "message",
		"role":        "assistant",
		"model":       root.Get("model").String(),
		"content":     blocks,
		"stop_reason": stopReason,
		"usage":       usageOut,
	}

	data, _ := json.Marshal(out)
	return string(data)
}
