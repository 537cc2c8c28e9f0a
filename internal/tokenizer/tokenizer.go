// Package tokenizer estimates input token counts for the
// /v1/messages/count_tokens handler, independent of the translation path.
package tokenizer

import (
	"strings"

	"github.com/pkoukk/tiktoken-go"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

const encodingName = "cl100k_base"

// CountTokens estimates the input token count of a request payload by
// concatenating every text-bearing field on the message/tool tree and
// encoding it with cl100k_base. It is a heuristic stand-in for the
// upstream provider's own tokenizer.
func CountTokens(payload []byte, _ string) int64 {
	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		log.Warnf("tokenizer: failed to load %s encoding: %v", encodingName, err)
		return 0
	}

	var sb strings.Builder
	root := gjson.ParseBytes(payload)
	if sys := root.Get("system"); sys.Exists() {
		collectText(sys, &sb)
	}
	for _, m := range root.Get("messages").Array() {
		collectText(m.Get("content"), &sb)
	}
	for _, t := range root.Get("tools").Array() {
		sb.WriteString(t.Get("name").String())
		sb.WriteString(" ")
		sb.WriteString(t.Get("description").String())
		sb.WriteString(" ")
		sb.WriteString(t.Get("input_schema").Raw)
		sb.WriteString(" ")
	}

	return int64(len(enc.Encode(sb.String(), nil, nil)))
}

func collectText(v gjson.Result, sb *strings.Builder) {
	if v.Type == gjson.String {
		sb.WriteString(v.Str)
		sb.WriteString("\n")
		return
	}
	if v.IsArray() {
		for _, part := range v.Array() {
			if t := part.Get("text"); t.Exists() {
				sb.WriteString(t.String())
				sb.WriteString("\n")
			}
			if part.Get("type").String() == "tool_result" {
				collectText(part.Get("content"), sb)
			}
		}
	}
}
