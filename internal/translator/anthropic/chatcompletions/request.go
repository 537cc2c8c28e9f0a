// Package chatcompletions translates between the Anthropic Messages client
// dialect and a ChatCompletions-speaking upstream.
package chatcompletions

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/copilotgw/gateway/internal/dialect"
)

var (
	sonnet4Rewrite = regexp.MustCompile(`^claude-sonnet-4-.*$`)
	opus4Rewrite   = regexp.MustCompile(`^claude-opus-4-.*$`)
)

func rewriteModelName(model string) string {
	switch {
	case sonnet4Rewrite.MatchString(model):
		return "claude-sonnet-4"
	case opus4Rewrite.MatchString(model):
		return "claude-opus-4"
	default:
		return model
	}
}

// ConvertClaudeRequestToChatCompletions builds a ChatCompletions request
// payload from an Anthropic Messages request.
func ConvertClaudeRequestToChatCompletions(model string, rawJSON []byte, stream bool) []byte {
	root := gjson.ParseBytes(rawJSON)

	out := map[string]any{
		"model":  rewriteModelName(model),
		"stream": stream,
	}

	var messages []any

	if sys := root.Get("system"); sys.Exists() {
		if sys.IsArray() {
			var parts []string
			for _, b := range sys.Array() {
				if t, ok := dialect.NonEmptyStr(b, "text"); ok {
					parts = append(parts, t)
				}
			}
			if len(parts) > 0 {
				messages = append(messages, map[string]any{"role": "system", "content": strings.Join(parts, "\n\n")})
			}
		} else if sys.Type == gjson.String && sys.Str != "" {
			messages = append(messages, map[string]any{"role": "system", "content": sys.Str})
		}
	}

	for _, m := range root.Get("messages").Array() {
		role := m.Get("role").String()
		content := m.Get("content")

		switch role {
		case "user":
			messages = append(messages, convertUserMessage(content)...)
		case "assistant":
			messages = append(messages, convertAssistantMessage(content))
		}
	}
	out["messages"] = messages

	if tools := root.Get("tools"); tools.IsArray() {
		var converted []any
		for _, t := range tools.Array() {
			converted = append(converted, map[string]any{
				"type": "function",
				"function": map[string]any{
					"name":        t.Get("name").String(),
					"description": t.Get("description").String(),
					"parameters":  rawOrEmptyObject(t.Get("input_schema")),
				},
			})
		}
		out["tools"] = converted
	}

	if tc := root.Get("tool_choice"); tc.Exists() {
		out["tool_choice"] = convertToolChoice(tc)
	}

	if v := root.Get("max_tokens"); v.Exists() {
		out["max_tokens"] = v.Int()
	}
	if v := root.Get("temperature"); v.Exists() {
		out["temperature"] = v.Num
	}

	data, _ := json.Marshal(out)
	return data
}

// convertUserMessage splits tool_result blocks (emitted first, as role=tool
// messages) from the remainder of the user turn's content.
func convertUserMessage(content gjson.Result) []any {
	if content.Type == gjson.String {
		return []any{map[string]any{"role": "user", "content": content.Str}}
	}
	if !content.IsArray() {
		return nil
	}

	var toolMessages []any
	var parts []any
	hasImage := false

	for _, b := range content.Array() {
		switch b.Get("type").String() {
		case dialect.BlockToolResult:
			toolMessages = append(toolMessages, map[string]any{
				"role":         "tool",
				"tool_call_id": b.Get("tool_use_id").String(),
				"content":      toolResultContentString(b),
			})
		case dialect.BlockText:
			parts = append(parts, map[string]any{"type": "text", "text": b.Get("text").String()})
		case dialect.BlockImage:
			hasImage = true
			parts = append(parts, map[string]any{
				"type":      "image_url",
				"image_url": map[string]any{"url": imageDataURL(b)},
			})
		}
	}

	var result []any
	result = append(result, toolMessages...)

	if len(parts) == 0 {
		return result
	}
	if !hasImage {
		var texts []string
		for _, p := range parts {
			texts = append(texts, p.(map[string]any)["text"].(string))
		}
		result = append(result, map[string]any{"role": "user", "content": strings.Join(texts, "\n\n")})
		return result
	}
	result = append(result, map[string]any{"role": "user", "content": parts})
	return result
}

func toolResultContentString(block gjson.Result) string {
	c := block.Get("content")
	if c.Type == gjson.String {
		return c.Str
	}
	if c.IsArray() {
		var texts []string
		for _, part := range c.Array() {
			if t, ok := dialect.NonEmptyStr(part, "text"); ok {
				texts = append(texts, t)
			}
		}
		return strings.Join(texts, "\n\n")
	}
	return c.Raw
}

func imageDataURL(block gjson.Result) string {
	src := block.Get("source")
	mime := src.Get("media_type").String()
	data := src.Get("data").String()
	return "data:" + mime + ";base64," + data
}

// convertAssistantMessage aggregates thinking blocks into reasoning
// text/signature, maps tool_use blocks into tool_calls, and joins text
// blocks into the message content.
func convertAssistantMessage(content gjson.Result) any {
	msg := map[string]any{"role": "assistant"}

	if content.Type == gjson.String {
		msg["content"] = content.Str
		return msg
	}
	if !content.IsArray() {
		return msg
	}

	var thinkingParts []string
	var signature string
	var textParts []string
	var toolCalls []any

	for _, b := range content.Array() {
		switch b.Get("type").String() {
		case dialect.BlockThinking:
			if t := b.Get("thinking").String(); t != "" {
				thinkingParts = append(thinkingParts, t)
			}
			if signature == "" {
				if s, ok := dialect.NonEmptyStr(b, "signature"); ok {
					signature = s
				}
			}
		case dialect.BlockText:
			textParts = append(textParts, b.Get("text").String())
		case dialect.BlockToolUse:
			toolCalls = append(toolCalls, map[string]any{
				"id":   b.Get("id").String(),
				"type": "function",
				"function": map[string]any{
					"name":      b.Get("name").String(),
					"arguments": rawOrEmptyObject(b.Get("input")),
				},
			})
		}
	}

	if len(thinkingParts) > 0 || signature != "" {
		msg["reasoning_text"] = strings.Join(thinkingParts, "\n\n")
		msg["reasoning_opaque"] = signature
	}
	if len(textParts) > 0 {
		msg["content"] = strings.Join(textParts, "\n\n")
	} else {
		msg["content"] = nil
	}
	if len(toolCalls) > 0 {
		msg["tool_calls"] = toolCalls
	}
	return msg
}

func convertToolChoice(tc gjson.Result) any {
	if tc.Type == gjson.String {
		switch tc.Str {
		case "auto":
			return "auto"
		case "any":
			return "required"
		case "none":
			return "none"
		}
	}
	switch tc.Get("type").String() {
	case "any":
		return "required"
	case "none":
		return "none"
	case "tool":
		return map[string]any{
			"type":     "function",
			"function": map[string]any{"name": tc.Get("name").String()},
		}
	}
	return "auto"
}

func rawOrEmptyObject(v gjson.Result) string {
	if v.Exists() && v.IsObject() {
		return v.Raw
	}
	return "{}"
}
