package responses

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/copilotgw/gateway/internal/dialect"
	"github.com/copilotgw/gateway/internal/toolnames"
)

// stopReasonFromResponse maps a Responses status to an Anthropic
// stop_reason, shared by the non-stream and stream translators.
func stopReasonFromResponse(resp gjson.Result) any {
	switch resp.Get("status").String() {
	case "completed":
		return "end_turn"
	case "incomplete":
		switch resp.Get("incomplete_details.reason").String() {
		case "max_output_tokens":
			return "max_tokens"
		case "content_filter":
			return "end_turn"
		case "tool_use":
			return "tool_use"
		}
		return nil
	default:
		return nil
	}
}

// aggregateReasoningText implements the reasoning-text aggregation rule:
// join summary[].text, reasoning[].text|thinking|reasoning, and the item's
// own thinking/text fields, trimmed.
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
	if t, ok := dialect.NonEmptyStr(item, "text"); ok {
		parts = append(parts, t)
	}
	return strings.TrimSpace(strings.Join(parts, "\n\n"))
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

// ConvertResponsesToClaudeNonStream converts a complete Responses result
// into an Anthropic message.
func ConvertResponsesToClaudeNonStream(_ context.Context, _ string, originalRequestRawJSON, _, rawJSON []byte, _ *any) string {
	root := gjson.ParseBytes(rawJSON)
	resp := root
	if root.Get("response").Exists() {
		resp = root.Get("response")
	}
	names := toolnames.BuildFromClaudeTools(originalRequestRawJSON)

	var blocks []any
	for _, item := range resp.Get("output").Array() {
		switch item.Get("type").String() {
		case dialect.ItemReasoning:
			if text := aggregateReasoningText(item); text != "" {
				blocks = append(blocks, map[string]any{"type": dialect.BlockThinking, "thinking": text})
			}
		case dialect.ItemFunctionCall:
			id := item.Get("call_id").String()
			if id == "" {
				id = item.Get("id").String()
			}
			name := names.Original(item.Get("name").String())
			blocks = append(blocks, map[string]any{
				"type":  dialect.BlockToolUse,
				"id":    id,
				"name":  name,
				"input": json.RawMessage(dialect.ParseFunctionCallArguments(item.Get("arguments").String())),
			})
		case dialect.ItemFunctionCallOut:
			if out, ok := dialect.NonEmptyStr(item, "output"); ok {
				blocks = append(blocks, map[string]any{"type": dialect.BlockText, "text": out})
			}
		case dialect.ItemMessage:
			if text := aggregateMessageText(item); text != "" {
				blocks = append(blocks, map[string]any{"type": dialect.BlockText, "text": text})
			}
		}
	}

	if len(blocks) == 0 {
		if text, ok := dialect.NonEmptyStr(resp, "output_text"); ok {
			blocks = append(blocks, map[string]any{"type": dialect.BlockText, "text": text})
		}
	}

	out := map[string]any{
		"id":          resp.Get("id").String(),
		"type":        "message",
		"role":        "assistant",
		"model":       resp.Get("model").String(),
		"content":     blocks,
		"stop_reason": stopReasonFromResponse(resp),
		"usage": map[string]any{
			"input_tokens":  resp.Get("usage.input_tokens").Int(),
			"output_tokens": resp.Get("usage.output_tokens").Int(),
		},
	}

	data, _ := json.Marshal(out)
	return string(data)
}
