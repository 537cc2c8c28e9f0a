// Package toolnames shortens tool names before they are sent to the
// Responses upstream (some backends cap function-name length and charset)
// and restores the original name when relaying a function_call back to the
// client.
package toolnames

import (
	"crypto/sha1"
	"encoding/hex"
	"regexp"

	"github.com/tidwall/gjson"
)

const maxLength = 64

var disallowed = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// Map is a bidirectional original<->short tool name mapping for one request.
type Map struct {
	shortByOriginal map[string]string
	originalByShort map[string]string
}

// Build derives a Map from the client's declared tool names, in order. Names
// already within bounds and charset pass through unchanged.
func Build(names []string) *Map {
	m := &Map{
		shortByOriginal: make(map[string]string, len(names)),
		originalByShort: make(map[string]string, len(names)),
	}
	for _, name := range names {
		short := shorten(name)
		for {
			if _, taken := m.originalByShort[short]; !taken || m.originalByShort[short] == name {
				break
			}
			short = short + "_"
		}
		m.shortByOriginal[name] = short
		m.originalByShort[short] = name
	}
	return m
}

// BuildFromClaudeTools reads `tools[].name` from an Anthropic request payload
// and builds the corresponding Map.
func BuildFromClaudeTools(requestRawJSON []byte) *Map {
	tools := gjson.GetBytes(requestRawJSON, "tools")
	if !tools.IsArray() {
		return Build(nil)
	}
	var names []string
	for _, t := range tools.Array() {
		if n := t.Get("name").String(); n != "" {
			names = append(names, n)
		}
	}
	return Build(names)
}

// Short returns the short form of an original tool name, or the name itself
// if it was never registered (no tools declared, or name unknown).
func (m *Map) Short(original string) string {
	if m == nil {
		return original
	}
	if short, ok := m.shortByOriginal[original]; ok {
		return short
	}
	return original
}

// Original returns the original tool name for a short name, or the short
// name itself if it has no registered mapping (it was never shortened).
func (m *Map) Original(short string) string {
	if m == nil {
		return short
	}
	if original, ok := m.originalByShort[short]; ok {
		return original
	}
	return short
}

// shorten maps a tool name into the upstream's allowed charset and length,
// appending a short content hash when truncation risks collisions.
func shorten(name string) string {
	sanitized := disallowed.ReplaceAllString(name, "_")
	if len(sanitized) <= maxLength {
		return sanitized
	}
	sum := sha1.Sum([]byte(name))
	suffix := "_" + hex.EncodeToString(sum[:])[:8]
	cut := maxLength - len(suffix)
	if cut < 0 {
		cut = 0
	}
	return sanitized[:cut] + suffix
}
