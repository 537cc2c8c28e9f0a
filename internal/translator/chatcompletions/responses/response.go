package responses

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/copilotgw/gateway/internal/dialect"
)

// ConvertResponsesResponseToChatCompletionsNonStream aggregates message text,
// collects function_call items as tool_calls, and concatenates reasoning
// summaries into a ChatCompletions-shaped completion.
func ConvertResponsesResponseToChatCompletionsNonStream(_ context.Context, _ string, _, _, rawJSON []byte, _ *any) string {
	root := gjson.ParseBytes(rawJSON)
	resp := root
	if root.Get("response").Exists() {
		resp = root.Get("response")
	}

	var text strings.Builder
	var reasoning []string
	var toolCalls []any

	for _, item := range resp.Get("output").Array() {
		switch item.Get("type").String() {
		case dialect.ItemMessage:
			text.WriteString(aggregateMessageText(item))
		case dialect.ItemReasoning:
			if t := aggregateReasoningText(item); t != "" {
				reasoning = append(reasoning, t)
			}
		case dialect.ItemFunctionCall:
			id := item.Get("call_id").String()
			if id == "" {
				id = item.Get("id").String()
			}
			if id == "" {
				id = "call_" + uuid.NewString()
			}
			toolCalls = append(toolCalls, map[string]any{
				"id":   id,
				"type": "function",
				"function": map[string]any{
					"name":      item.Get("name").String(),
					"arguments": rawOrEmptyArguments(item.Get("arguments")),
				},
			})
		}
	}

	finishReason := "stop"
	if len(toolCalls) > 0 {
		finishReason = "tool_calls"
	}

	message := map[string]any{
		"role":    "assistant",
		"content": text.String(),
	}
	if len(reasoning) > 0 {
		message["reasoning_text"] = strings.Join(reasoning, "\n\n")
	}
	if len(toolCalls) > 0 {
		message["tool_calls"] = toolCalls
	}

	out := map[string]any{
		"id":      resp.Get("id").String(),
		"object":  "chat.completion",
		"model":   resp.Get("model").String(),
		"choices": []any{map[string]any{"index": 0, "message": message, "finish_reason": finishReason}},
		"usage": map[string]any{
			"prompt_tokens":     resp.Get("usage.input_tokens").Int(),
			"completion_tokens": resp.Get("usage.output_tokens").Int(),
			"total_tokens":      resp.Get("usage.input_tokens").Int() + resp.Get("usage.output_tokens").Int(),
		},
	}

	data, _ := json.Marshal(out)
	return string(data)
}

func aggregateMessageText(item gjson.Result) string {
	var sb strings.Builder
	for _, c := range item.Get("content").Array() {
		switch c.Get("type").String() {
		case dialect.ContentOutputText:
			sb.WriteString(c.Get("text").String())
		case dialect.ContentRefusal:
			sb.WriteString(c.Get("refusal").String())
		}
	}
	return sb.String()
}

func aggregateReasoningText(item gjson.Result) string {
	var parts []string
	for _, s := range item.Get("summary").Array() {
		if t, ok := dialect.NonEmptyStr(s, "text"); ok {
			parts = append(parts, t)
		}
	}
	for _, r := range item.Get("reasoning").Array() {
		for _, key := range []string{"text", "thinking", "reasoning"} {
			if t, ok := dialect.NonEmptyStr(r, key); ok {
				parts = append(parts, t)
				break
			}
		}
	}
	if t, ok := dialect.NonEmptyStr(item, "thinking"); ok {
		parts = append(parts, t)
	}
	return strings.TrimSpace(strings.Join(parts, "\n\n"))
}
