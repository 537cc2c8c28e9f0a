// Package routing decides which upstream dialect a model uses, and derives
// the request-side vision/initiator flags the external upstream transport
// attaches as headers.
package routing

import (
	"strings"

	"github.com/tidwall/gjson"

	"github.com/copilotgw/gateway/internal/constant"
	"github.com/copilotgw/gateway/internal/registry"
	"github.com/copilotgw/gateway/internal/util"
)

// ChooseUpstreamDialect consults the catalog for model's supported_endpoints
// and returns constant.Responses when "/responses" is supported, else
// constant.ChatCompletions. An unknown model defaults to ChatCompletions.
func ChooseUpstreamDialect(catalog *registry.Catalog, model string) string {
	if catalog != nil && catalog.SupportsResponses(model) {
		return constant.Responses
	}
	return constant.ChatCompletions
}

// DeriveVision reports whether the upstream request payload contains at
// least one input_image content part anywhere in its structure.
func DeriveVision(upstreamRequestRawJSON []byte) bool {
	root := gjson.ParseBytes(upstreamRequestRawJSON)
	var paths []string
	util.Walk(root, "", "input_image", &paths)
	if len(paths) > 0 {
		return true
	}
	// ChatCompletions-shaped payloads use "image_url" parts instead.
	util.Walk(root, "", "image_url", &paths)
	return len(paths) > 0
}

// DeriveInitiator returns "agent" iff any input/message item in the
// Responses-shaped payload has an assistant role, or omits role entirely
// (treated as assistant); otherwise "user". For ChatCompletions-shaped
// payloads the same rule is applied to each message's "role".
func DeriveInitiator(upstreamRequestRawJSON []byte) string {
	root := gjson.ParseBytes(upstreamRequestRawJSON)
	items := root.Get("input")
	if !items.Exists() {
		items = root.Get("messages")
	}
	if !items.IsArray() {
		return "user"
	}
	for _, item := range items.Array() {
		role := item.Get("role")
		if !role.Exists() || role.String() == "" || role.String() == "assistant" {
			return "agent"
		}
	}
	return "user"
}

// countTokenAdjustment is the fixed per-family addend/multiplier pair: the
// addend is added to the tokenizer's raw count when tools are present, and
// the multiplier is then applied to the resulting total.
type countTokenAdjustment struct {
	addend     int64
	multiplier float64
}

var countTokenAdjustments = map[string]countTokenAdjustment{
	"claude": {addend: 346, multiplier: 1.15},
	"grok":   {addend: 480, multiplier: 1.03},
}

// AdjustCountTokens adds the model-family-specific fixed addend to a raw
// tokenizer count when the request declares tools and (per the anthropic-beta
// gate) does not already include an mcp__-prefixed tool, then multiplies the
// total by the family multiplier, rounding half up. hasTools/hasMCPTool/isClaudeCodeBeta are derived by the caller from
// the request payload and the anthropic-beta header.
func AdjustCountTokens(model string, rawCount int64, hasTools, hasMCPTool, isClaudeCodeBeta bool) int64 {
	family := modelFamily(model)
	adj, ok := countTokenAdjustments[family]
	if !ok {
		return rawCount
	}
	total := rawCount
	if hasTools && !(isClaudeCodeBeta && hasMCPTool) {
		total += adj.addend
	}
	return int64(float64(total)*adj.multiplier + 0.5)
}

func modelFamily(model string) string {
	switch {
	case strings.HasPrefix(model, "claude"):
		return "claude"
	case strings.HasPrefix(model, "grok"):
		return "grok"
	default:
		return ""
	}
}
