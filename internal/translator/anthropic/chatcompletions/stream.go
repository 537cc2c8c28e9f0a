package chatcompletions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/copilotgw/gateway/internal/dialect"
)

var dataPrefix = []byte("data:")

// streamState is the lighter state machine described for the
// ChatCompletions-upstream, Anthropic-client streaming direction: it tracks
// message_start emission, a single open text block, a single open thinking
// block, and a per-tool-call-index accumulator, converting upstream delta
// chunks into Anthropic SSE events with the same content_block lifecycle
// used by the richer Responses-upstream translator.
type streamState struct {
	modelName string

	messageStartSent bool
	messageCompleted bool

	nextBlockIndex int

	textBlockOpen  bool
	textBlockIndex int

	thinkingBlockOpen  bool
	thinkingBlockIndex int

	toolBlockIndexByCallIndex map[int64]int
	toolArgsStarted           map[int64]bool
}

func newStreamState(modelName string) *streamState {
	return &streamState{
		modelName:                 modelName,
		toolBlockIndexByCallIndex: make(map[int64]int),
		toolArgsStarted:           make(map[int64]bool),
	}
}

func sseEvent(eventType string, payload any) string {
	data, _ := json.Marshal(payload)
	return fmt.Sprintf("event: %s\ndata: %s\n\n", eventType, string(data))
}

// ensureMessageStart emits the message_start event exactly once, filling the
// id/model from root when present (a real upstream frame) and falling back
// to a generated id and the client-requested model otherwise (finalizing a
// stream that closed before any frame arrived).
func (s *streamState) ensureMessageStart(root gjson.Result) []string {
	if s.messageStartSent {
		return nil
	}
	s.messageStartSent = true

	id := root.Get("id").String()
	if id == "" {
		id = "msg_" + uuid.NewString()
	}
	model := root.Get("model").String()
	if model == "" {
		model = s.modelName
	}
	return []string{sseEvent("message_start", map[string]any{
		"type": "message_start",
		"message": map[string]any{
			"id":          id,
			"type":        "message",
			"role":        "assistant",
			"model":       model,
			"content":     []any{},
			"stop_reason": nil,
			"usage":       map[string]any{"input_tokens": 0, "output_tokens": 0},
		},
	})}
}

// ConvertChatCompletionsStreamToClaude translates one upstream ChatCompletions
// SSE frame into zero or more Anthropic SSE events.
func ConvertChatCompletionsStreamToClaude(_ context.Context, modelName string, _, _, rawJSON []byte, param *any) []string {
	if *param == nil {
		*param = newStreamState(modelName)
	}
	state := (*param).(*streamState)

	if state.messageCompleted {
		return nil
	}

	if !bytes.HasPrefix(bytes.TrimSpace(rawJSON), dataPrefix) {
		return nil
	}
	payload := bytes.TrimSpace(bytes.TrimPrefix(bytes.TrimSpace(rawJSON), dataPrefix))
	if string(payload) == "[DONE]" {
		return nil
	}

	root := gjson.ParseBytes(payload)
	var out []string

	out = append(out, state.ensureMessageStart(root)...)

	choice := root.Get("choices.0")
	delta := choice.Get("delta")

	if reasoning, ok := dialect.NonEmptyStr(delta, "reasoning_text"); ok {
		out = append(out, state.emitThinkingDelta(reasoning)...)
	} else if reasoning, ok = dialect.NonEmptyStr(delta, "reasoning_content"); ok {
		out = append(out, state.emitThinkingDelta(reasoning)...)
	}

	if text, ok := dialect.NonEmptyStr(delta, "content"); ok {
		out = append(out, state.emitTextDelta(text)...)
	}

	if toolCalls := delta.Get("tool_calls"); toolCalls.IsArray() {
		for _, tc := range toolCalls.Array() {
			out = append(out, state.emitToolCallDelta(tc)...)
		}
	}

	if finish, ok := dialect.NonEmptyStr(choice, "finish_reason"); ok {
		out = append(out, state.emitTerminal(finish, root)...)
	}

	return out
}

func (s *streamState) emitThinkingDelta(text string) []string {
	var out []string
	if !s.thinkingBlockOpen {
		s.thinkingBlockIndex = s.nextBlockIndex
		s.nextBlockIndex++
		s.thinkingBlockOpen = true
		out = append(out, sseEvent("content_block_start", map[string]any{
			"type":          "content_block_start",
			"index":         s.thinkingBlockIndex,
			"content_block": map[string]any{"type": dialect.BlockThinking, "thinking": ""},
		}))
	}
	out = append(out, sseEvent("content_block_delta", map[string]any{
		"type":  "content_block_delta",
		"index": s.thinkingBlockIndex,
		"delta": map[string]any{"type": "thinking_delta", "thinking": text},
	}))
	return out
}

func (s *streamState) emitTextDelta(text string) []string {
	var out []string
	if !s.textBlockOpen {
		s.textBlockIndex = s.nextBlockIndex
		s.nextBlockIndex++
		s.textBlockOpen = true
		out = append(out, sseEvent("content_block_start", map[string]any{
			"type":          "content_block_start",
			"index":         s.textBlockIndex,
			"content_block": map[string]any{"type": dialect.BlockText, "text": ""},
		}))
	}
	out = append(out, sseEvent("content_block_delta", map[string]any{
		"type":  "content_block_delta",
		"index": s.textBlockIndex,
		"delta": map[string]any{"type": "text_delta", "text": text},
	}))
	return out
}

func (s *streamState) emitToolCallDelta(tc gjson.Result) []string {
	idx := tc.Get("index").Int()
	var out []string
	blockIndex, started := s.toolBlockIndexByCallIndex[idx]
	if !started {
		blockIndex = s.nextBlockIndex
		s.nextBlockIndex++
		s.toolBlockIndexByCallIndex[idx] = blockIndex
		id := tc.Get("id").String()
		if id == "" {
			id = "toolu_" + uuid.NewString()
		}
		out = append(out, sseEvent("content_block_start", map[string]any{
			"type":  "content_block_start",
			"index": blockIndex,
			"content_block": map[string]any{
				"type":  dialect.BlockToolUse,
				"id":    id,
				"name":  tc.Get("function.name").String(),
				"input": map[string]any{},
			},
		}))
	}
	if args, ok := dialect.NonEmptyStr(tc, "function.arguments"); ok {
		s.toolArgsStarted[idx] = true
		out = append(out, sseEvent("content_block_delta", map[string]any{
			"type":  "content_block_delta",
			"index": blockIndex,
			"delta": map[string]any{"type": "input_json_delta", "partial_json": args},
		}))
	}
	return out
}

func (s *streamState) emitTerminal(finishReason string, root gjson.Result) []string {
	var out []string
	if s.thinkingBlockOpen {
		out = append(out, sseEvent("content_block_stop", map[string]any{"type": "content_block_stop", "index": s.thinkingBlockIndex}))
		s.thinkingBlockOpen = false
	}
	if s.textBlockOpen {
		out = append(out, sseEvent("content_block_stop", map[string]any{"type": "content_block_stop", "index": s.textBlockIndex}))
		s.textBlockOpen = false
	}
	for _, idx := range sortedKeys(s.toolBlockIndexByCallIndex) {
		out = append(out, sseEvent("content_block_stop", map[string]any{"type": "content_block_stop", "index": s.toolBlockIndexByCallIndex[idx]}))
	}

	stopReason := mapFinishReason(finishReason)
	if len(s.toolBlockIndexByCallIndex) > 0 {
		stopReason = "tool_use"
	}

	delta := map[string]any{"stop_reason": stopReason, "stop_sequence": nil}
	messageDelta := map[string]any{"type": "message_delta", "delta": delta}

	if usage := root.Get("usage"); usage.Exists() {
		promptTokens := usage.Get("prompt_tokens").Int()
		completionTokens := usage.Get("completion_tokens").Int()
		usageJSON, _ := sjson.Set("{}", "input_tokens", promptTokens)
		usageJSON, _ = sjson.Set(usageJSON, "output_tokens", completionTokens)
		messageDelta["usage"] = json.RawMessage(usageJSON)
	}

	out = append(out, sseEvent("message_delta", messageDelta))
	out = append(out, sseEvent("message_stop", map[string]any{"type": "message_stop"}))

	s.messageCompleted = true
	return out
}

// FinalizeIncompleteStream handles the premature-EOF case for this
// direction: if the upstream stream ends without a finish_reason having
// closed the message, close any still-open blocks and emit a synthetic
// terminal error.
func FinalizeIncompleteStream(param *any) []string {
	if *param == nil {
		return nil
	}
	state, ok := (*param).(*streamState)
	if !ok || state.messageCompleted {
		return nil
	}
	var out []string
	out = append(out, state.ensureMessageStart(gjson.Result{})...)
	if state.thinkingBlockOpen {
		out = append(out, sseEvent("content_block_stop", map[string]any{"type": "content_block_stop", "index": state.thinkingBlockIndex}))
	}
	if state.textBlockOpen {
		out = append(out, sseEvent("content_block_stop", map[string]any{"type": "content_block_stop", "index": state.textBlockIndex}))
	}
	for _, idx := range sortedKeys(state.toolBlockIndexByCallIndex) {
		out = append(out, sseEvent("content_block_stop", map[string]any{"type": "content_block_stop", "index": state.toolBlockIndexByCallIndex[idx]}))
	}
	out = append(out, sseEvent("error", map[string]any{
		"type":  "error",
		"error": map[string]any{"type": "api_error", "message": "ChatCompletions stream ended without completion"},
	}))
	state.messageCompleted = true
	return out
}

func sortedKeys(m map[int64]int) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}
