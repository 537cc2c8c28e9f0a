// Package dialect holds the small, shared vocabulary used by every
// translator: content-block type discriminators, typed gjson accessors for
// the "parsed generic JSON value, queried by typed accessor" style used
// throughout the translator packages (wire shapes are unbounded maps-of-any,
// not fixed structs), and the per-dialect Usage record.
package dialect

import "github.com/tidwall/gjson"

// Anthropic content block type discriminators.
const (
	BlockText       = "text"
	BlockImage      = "image"
	BlockToolUse    = "tool_use"
	BlockToolResult = "tool_result"
	BlockThinking   = "thinking"
)

// Responses item/content type discriminators.
const (
	ItemMessage         = "message"
	ItemFunctionCall    = "function_call"
	ItemFunctionCallOut = "function_call_output"
	ItemReasoning       = "reasoning"
	ContentInputText    = "input_text"
	ContentOutputText   = "output_text"
	ContentInputImage   = "input_image"
	ContentRefusal      = "refusal"
	RoleAssistant       = "assistant"
	RoleUser            = "user"
	RoleSystem          = "system"
	RoleTool            = "tool"
	RoleDeveloper       = "developer"
)

// Usage is the dialect-neutral token accounting record. Nullable fields are
// represented as pointers so "absent" and "zero" remain distinguishable,
// since cache/reasoning token details may legitimately be absent rather
// than zero.
type Usage struct {
	InputTokens              int64
	OutputTokens             int64
	CacheReadInputTokens     *int64
	CacheCreationInputTokens *int64
	ReasoningTokens          *int64
}

// Str returns the string at path, or "" if absent or not a string-coercible
// scalar.
func Str(v gjson.Result, path string) string {
	r := v.Get(path)
	if !r.Exists() {
		return ""
	}
	return r.String()
}

// NonEmptyStr returns (value, true) only when the path holds a non-empty
// string.
func NonEmptyStr(v gjson.Result, path string) (string, bool) {
	r := v.Get(path)
	if r.Type != gjson.String || r.Str == "" {
		return "", false
	}
	return r.Str, true
}

// OptInt64 returns a pointer to the integer at path, or nil if the path is
// absent. Used for usage fields that must stay distinguishable from zero.
func OptInt64(v gjson.Result, path string) *int64 {
	r := v.Get(path)
	if !r.Exists() || r.Type != gjson.Number {
		return nil
	}
	n := r.Int()
	return &n
}

// Int64 returns the integer at path, or 0 if absent.
func Int64(v gjson.Result, path string) int64 {
	return v.Get(path).Int()
}

// Bool returns the boolean at path, or def if absent.
func Bool(v gjson.Result, path string, def bool) bool {
	r := v.Get(path)
	if !r.Exists() {
		return def
	}
	return r.Bool()
}

// IsObject reports whether the value at path is a JSON object.
func IsObject(v gjson.Result, path string) bool {
	r := v.Get(path)
	return r.Exists() && r.IsObject()
}

// IsArray reports whether the value at path is a JSON array.
func IsArray(v gjson.Result, path string) bool {
	r := v.Get(path)
	return r.Exists() && r.IsArray()
}
