// Package responses translates between the Responses dialect upstream and a
// ChatCompletions client; this file handles the request direction
// (ChatCompletions-client, Responses-upstream), mapping a ChatCompletions
// request payload onto the Responses request shape.
package responses

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/copilotgw/gateway/internal/config"
	"github.com/copilotgw/gateway/internal/dialect"
)

// ConvertChatCompletionsRequestToResponses builds a Responses request payload
// from a ChatCompletions request.
func ConvertChatCompletionsRequestToResponses(model string, rawJSON []byte, stream bool) []byte {
	root := gjson.ParseBytes(rawJSON)

	out := map[string]any{
		"model":               model,
		"stream":              stream,
		"store":               false,
		"parallel_tool_calls": true,
		"reasoning":           map[string]any{"effort": config.Global().ReasoningEffortForModel(model), "summary": "detailed"},
		"include":             []string{"reasoning.encrypted_content"},
	}

	var input []any
	instructionsSet := false
	for _, m := range root.Get("messages").Array() {
		role := m.Get("role").String()
		if role == dialect.RoleSystem && !instructionsSet {
			if text, ok := dialect.NonEmptyStr(m, "content"); ok {
				out["instructions"] = text
				instructionsSet = true
				continue
			}
		}
		input = append(input, convertMessage(m, role)...)
	}
	if extra := config.Global().ExtraPromptForModel(model); extra != "" {
		if instr, ok := out["instructions"].(string); ok && instr != "" {
			out["instructions"] = instr + "\n\n" + extra
		} else {
			out["instructions"] = extra
		}
	}
	out["input"] = input

	if tools := root.Get("tools"); tools.IsArray() {
		var converted []any
		for _, t := range tools.Array() {
			fn := t.Get("function")
			converted = append(converted, map[string]any{
				"type":        "function",
				"name":        fn.Get("name").String(),
				"description": fn.Get("description").String(),
				"parameters":  json.RawMessage(rawOrEmptyObject(fn.Get("parameters"))),
			})
		}
		out["tools"] = converted
	}
	if tc := root.Get("tool_choice"); tc.Exists() {
		out["tool_choice"] = convertToolChoice(tc)
	}

	data, _ := json.Marshal(out)
	return data
}

func convertMessage(m gjson.Result, role string) []any {
	switch role {
	case dialect.RoleTool:
		return []any{map[string]any{
			"type":    dialect.ItemFunctionCallOut,
			"call_id": m.Get("tool_call_id").String(),
			"output":  toolMessageOutputString(m.Get("content")),
			"status":  "completed",
		}}
	case dialect.RoleAssistant:
		return convertAssistantMessage(m)
	default:
		return []any{map[string]any{
			"type":    dialect.ItemMessage,
			"role":    role,
			"content": messageContent(m.Get("content")),
		}}
	}
}

func convertAssistantMessage(m gjson.Result) []any {
	var items []any
	if content, ok := dialect.NonEmptyStr(m, "content"); ok {
		items = append(items, map[string]any{
			"type": dialect.ItemMessage, "role": dialect.RoleAssistant,
			"content": []any{map[string]any{"type": dialect.ContentOutputText, "text": content}},
		})
	}
	for _, tc := range m.Get("tool_calls").Array() {
		items = append(items, map[string]any{
			"type":      dialect.ItemFunctionCall,
			"call_id":   tc.Get("id").String(),
			"name":      tc.Get("function.name").String(),
			"arguments": json.RawMessage(rawOrEmptyArguments(tc.Get("function.arguments"))),
			"status":    "completed",
		})
	}
	return items
}

// messageContent returns the raw string when content is a plain string, or
// the decoded slice of parts when content is a typed-part array, matching
// what the Responses "content" field of a message item accepts.
func messageContent(content gjson.Result) any {
	if content.Type == gjson.String {
		return content.Str
	}
	if !content.IsArray() {
		return ""
	}
	var parts []any
	for _, p := range content.Array() {
		switch p.Get("type").String() {
		case "text":
			parts = append(parts, map[string]any{"type": dialect.ContentInputText, "text": p.Get("text").String()})
		case "image_url":
			parts = append(parts, map[string]any{"type": dialect.ContentInputImage, "image_url": p.Get("image_url.url").String()})
		}
	}
	return parts
}

func toolMessageOutputString(content gjson.Result) string {
	if content.Type == gjson.String {
		return content.Str
	}
	return content.Raw
}

func convertToolChoice(tc gjson.Result) any {
	if tc.Type == gjson.String {
		switch tc.Str {
		case "auto", "none", "required":
			return tc.Str
		}
	}
	if tc.Get("type").String() == "function" {
		return map[string]any{"type": "function", "name": tc.Get("function.name").String()}
	}
	return "auto"
}

func rawOrEmptyObject(v gjson.Result) string {
	if v.Exists() && v.IsObject() {
		return v.Raw
	}
	return "{}"
}

func rawOrEmptyArguments(v gjson.Result) string {
	if v.Type != gjson.String {
		return "{}"
	}
	s := strings.TrimSpace(v.Str)
	if s == "" {
		return "{}"
	}
	return s
}
