// Package responses translates between an Anthropic Messages client and the
// Responses dialect upstream; this file handles the request direction.
package responses

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/copilotgw/gateway/internal/config"
	"github.com/copilotgw/gateway/internal/dialect"
	"github.com/copilotgw/gateway/internal/preamble"
	"github.com/copilotgw/gateway/internal/toolnames"
)

var userIDPattern = regexp.MustCompile(`^user_(.+?)_account.*?_session_(.+)$`)

// ConvertClaudeRequestToResponses builds a Responses request payload from an
// Anthropic Messages request.
func ConvertClaudeRequestToResponses(model string, rawJSON []byte, stream bool) []byte {
	root := gjson.ParseBytes(rawJSON)
	names := toolnames.BuildFromClaudeTools(rawJSON)

	out := map[string]any{
		"model":               model,
		"stream":              stream,
		"store":               false,
		"parallel_tool_calls": true,
		"reasoning":           map[string]any{"effort": config.Global().ReasoningEffortForModel(model), "summary": "auto"},
		"include":             []string{"reasoning.encrypted_content"},
	}

	instructions := buildInstructions(root.Get("system"))
	if extra := config.Global().ExtraPromptForModel(model); extra != "" {
		instructions = instructions + "\n\n" + extra
	}
	out["instructions"] = instructions

	var input []any
	for _, m := range root.Get("messages").Array() {
		role := m.Get("role").String()
		content := m.Get("content")
		switch role {
		case dialect.RoleUser:
			input = append(input, convertUserTurn(content)...)
		case dialect.RoleAssistant:
			input = append(input, convertAssistantTurn(content, names)...)
		}
	}
	out["input"] = input

	if tools := root.Get("tools"); tools.IsArray() {
		var converted []any
		for _, t := range tools.Array() {
			converted = append(converted, map[string]any{
				"type":        "function",
				"name":        names.Short(t.Get("name").String()),
				"description": t.Get("description").String(),
				"parameters":  json.RawMessage(rawOrEmptyObject(t.Get("input_schema"))),
			})
		}
		out["tools"] = converted
	}
	if tc := root.Get("tool_choice"); tc.Exists() {
		out["tool_choice"] = convertToolChoice(tc)
	}

	if uid, ok := dialect.NonEmptyStr(root, "metadata.user_id"); ok {
		if matches := userIDPattern.FindStringSubmatch(uid); matches != nil {
			out["safety_identifier"] = matches[1]
			out["prompt_cache_key"] = matches[2]
		}
	}

	data, _ := json.Marshal(out)
	return data
}

func buildInstructions(sys gjson.Result) string {
	guidance := preamble.AgentGuidance()
	if sys.IsArray() {
		var parts []string
		for _, b := range sys.Array() {
			if t, ok := dialect.NonEmptyStr(b, "text"); ok {
				parts = append(parts, t)
			}
		}
		if len(parts) == 0 {
			return guidance
		}
		parts[0] = parts[0] + "\n\n" + guidance
		return strings.Join(parts, "\n\n")
	}
	if sys.Type == gjson.String && sys.Str != "" {
		return sys.Str + "\n\n" + guidance
	}
	return guidance
}

func convertUserTurn(content gjson.Result) []any {
	if content.Type == gjson.String {
		return []any{map[string]any{
			"type": dialect.ItemMessage, "role": dialect.RoleUser,
			"content": content.Str,
		}}
	}
	if !content.IsArray() {
		return nil
	}

	var items []any
	var pending []any

	flush := func() {
		if len(pending) == 0 {
			return
		}
		if len(pending) == 1 {
			if text, ok := pending[0].(map[string]any)["text"]; ok {
				if _, isImage := pending[0].(map[string]any)["image_url"]; !isImage {
					items = append(items, map[string]any{"type": dialect.ItemMessage, "role": dialect.RoleUser, "content": text})
					pending = nil
					return
				}
			}
		}
		items = append(items, map[string]any{"type": dialect.ItemMessage, "role": dialect.RoleUser, "content": pending})
		pending = nil
	}

	for _, b := range content.Array() {
		switch b.Get("type").String() {
		case dialect.BlockText:
			pending = append(pending, map[string]any{"type": dialect.ContentInputText, "text": b.Get("text").String()})
		case dialect.BlockImage:
			pending = append(pending, map[string]any{"type": dialect.ContentInputImage, "image_url": imageDataURL(b)})
		case dialect.BlockToolResult:
			flush()
			status := "completed"
			if dialect.Bool(b, "is_error", false) {
				status = "incomplete"
			}
			items = append(items, map[string]any{
				"type":    dialect.ItemFunctionCallOut,
				"call_id": b.Get("tool_use_id").String(),
				"output":  toolResultOutputString(b),
				"status":  status,
			})
		}
	}
	flush()
	return items
}

func convertAssistantTurn(content gjson.Result, names *toolnames.Map) []any {
	if content.Type == gjson.String {
		if content.Str == "" {
			return nil
		}
		return []any{map[string]any{
			"type": dialect.ItemMessage, "role": dialect.RoleAssistant,
			"content": []any{map[string]any{"type": dialect.ContentOutputText, "text": content.Str}},
		}}
	}
	if !content.IsArray() {
		return nil
	}

	var items []any
	var pending []any

	flush := func() {
		if len(pending) == 0 {
			return
		}
		items = append(items, map[string]any{"type": dialect.ItemMessage, "role": dialect.RoleAssistant, "content": pending})
		pending = nil
	}

	for _, b := range content.Array() {
		switch b.Get("type").String() {
		case dialect.BlockText:
			pending = append(pending, map[string]any{"type": dialect.ContentOutputText, "text": b.Get("text").String()})
		case dialect.BlockThinking:
			pending = append(pending, map[string]any{"type": dialect.ContentOutputText, "text": b.Get("thinking").String()})
		case dialect.BlockToolUse:
			flush()
			items = append(items, map[string]any{
				"type":      dialect.ItemFunctionCall,
				"call_id":   b.Get("id").String(),
				"name":      names.Short(b.Get("name").String()),
				"arguments": json.RawMessage(rawOrEmptyObject(b.Get("input"))),
				"status":    "completed",
			})
		}
	}
	flush()
	return items
}

func toolResultOutputString(block gjson.Result) string {
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
	return "data:" + src.Get("media_type").String() + ";base64," + src.Get("data").String()
}

func convertToolChoice(tc gjson.Result) any {
	if tc.Type == gjson.String {
		switch tc.Str {
		case "auto", "none":
			return tc.Str
		case "any":
			return "required"
		}
	}
	switch tc.Get("type").String() {
	case "any":
		return "required"
	case "none":
		return "none"
	case "tool":
		return map[string]any{"type": "function", "name": tc.Get("name").String()}
	}
	return "auto"
}

func rawOrEmptyObject(v gjson.Result) string {
	if v.Exists() && v.IsObject() {
		return v.Raw
	}
	return "{}"
}
