package responses

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/copilotgw/gateway/internal/dialect"
	"github.com/copilotgw/gateway/internal/toolnames"
)

var dataPrefix = []byte("data:")

type functionCallState struct {
	blockIndex int
	toolCallID string
	name       string
}

// streamState is the per-request mutable state for one upstream stream. It
// is created on stream open, mutated only by the single consumer of the
// upstream event stream, and discarded on stream close - no locking.
type streamState struct {
	messageStartSent bool
	messageCompleted bool

	nextContentBlockIndex int
	blockIndexByKey       map[string]int
	openBlocks            map[int]bool
	blockHasDelta         map[int]bool

	currentResponseID        string
	currentModel             string
	initialInputTokens       int64
	initialInputCachedTokens int64

	functionCallStateByOutputIndex  map[int64]*functionCallState
	functionCallOutputIndexByItemID map[string]int64

	names *toolnames.Map
}

func newAnthropicStreamState(originalRequestRawJSON []byte) *streamState {
	return &streamState{
		blockIndexByKey:                 make(map[string]int),
		openBlocks:                      make(map[int]bool),
		blockHasDelta:                   make(map[int]bool),
		functionCallStateByOutputIndex:  make(map[int64]*functionCallState),
		functionCallOutputIndexByItemID: make(map[string]int64),
		names:                           toolnames.BuildFromClaudeTools(originalRequestRawJSON),
	}
}

func blockKey(outputIndex, contentIndex int64) string {
	return strconv.FormatInt(outputIndex, 10) + ":" + strconv.FormatInt(contentIndex, 10)
}

func (s *streamState) allocateBlock(key string) (int, bool) {
	if idx, ok := s.blockIndexByKey[key]; ok {
		return idx, false
	}
	idx := s.nextContentBlockIndex
	s.nextContentBlockIndex++
	s.blockIndexByKey[key] = idx
	return idx, true
}

func (s *streamState) ensureMessageStart() []string {
	if s.messageStartSent {
		return nil
	}
	s.messageStartSent = true
	usage := map[string]any{
		"input_tokens":  s.initialInputTokens - s.initialInputCachedTokens,
		"output_tokens": 0,
	}
	if s.initialInputCachedTokens > 0 {
		usage["cache_creation_input_tokens"] = s.initialInputCachedTokens
	}
	return []string{sseEvent("message_start", map[string]any{
		"type": "message_start",
		"message": map[string]any{
			"id":          s.currentResponseID,
			"type":        "message",
			"role":        "assistant",
			"model":       s.currentModel,
			"content":     []any{},
			"stop_reason": nil,
			"usage":       usage,
		},
	})}
}

func sseEvent(eventType string, payload any) string {
	data, _ := json.Marshal(payload)
	return fmt.Sprintf("event: %s\ndata: %s\n\n", eventType, string(data))
}

// ConvertResponsesStreamToClaude is the stream translator for the
// Anthropic-client, Responses-upstream direction.
func ConvertResponsesStreamToClaude(_ context.Context, modelName string, originalRequestRawJSON, _, rawJSON []byte, param *any) []string {
	if *param == nil {
		*param = newAnthropicStreamState(originalRequestRawJSON)
	}
	state := (*param).(*streamState)

	if state.messageCompleted {
		return nil
	}

	trimmed := bytes.TrimSpace(rawJSON)
	if bytes.HasPrefix(trimmed, dataPrefix) {
		trimmed = bytes.TrimSpace(bytes.TrimPrefix(trimmed, dataPrefix))
	}
	if len(trimmed) == 0 || string(trimmed) == "[DONE]" {
		return nil
	}

	event := gjson.ParseBytes(trimmed)
	eventType := event.Get("type").String()

	var out []string

	switch eventType {
	case "response.created":
		resp := event.Get("response")
		state.currentResponseID = resp.Get("id").String()
		if state.currentResponseID == "" {
			state.currentResponseID = "msg_" + uuid.NewString()
		}
		state.currentModel = resp.Get("model").String()
		if state.currentModel == "" {
			state.currentModel = modelName
		}
		state.initialInputTokens = resp.Get("usage.input_tokens").Int()
		state.initialInputCachedTokens = resp.Get("usage.input_tokens_details.cached_tokens").Int()

	case "response.output_text.delta":
		out = append(out, state.ensureMessageStart()...)
		out = append(out, state.handleTextDelta(event)...)

	case "response.output_text.done":
		out = append(out, state.ensureMessageStart()...)
		out = append(out, state.handleTextDone(event)...)

	case "response.reasoning_summary_text.delta":
		out = append(out, state.ensureMessageStart()...)
		out = append(out, state.handleThinkingDelta(event)...)

	case "response.reasoning_summary_part.done":
		out = append(out, state.ensureMessageStart()...)
		out = append(out, state.handleReasoningPartDone(event)...)

	case "response.output_item.added":
		out = append(out, state.ensureMessageStart()...)
		out = append(out, state.handleOutputItemAdded(event)...)

	case "response.output_item.done":
		out = append(out, state.ensureMessageStart()...)
		out = append(out, state.handleOutputItemDone(event)...)

	case "response.function_call_arguments.delta":
		out = append(out, state.ensureMessageStart()...)
		out = append(out, state.handleFunctionCallArgumentsDelta(event)...)

	case "response.function_call_arguments.done":
		out = append(out, state.ensureMessageStart()...)
		out = append(out, state.handleFunctionCallArgumentsDone(event)...)

	case "response.completed", "response.incomplete":
		out = append(out, state.ensureMessageStart()...)
		out = append(out, state.handleTerminal(event)...)

	case "response.failed":
		out = append(out, state.ensureMessageStart()...)
		out = append(out, state.handleFailed(event)...)

	case "error":
		out = append(out, state.ensureMessageStart()...)
		out = append(out, state.handleError(event)...)

	default:
		// Unrecognized event types are ignored.
	}

	return out
}

func (s *streamState) openBlock(index int, blockType string, seed map[string]any) []string {
	if s.openBlocks[index] {
		return nil
	}
	s.openBlocks[index] = true
	block := map[string]any{"type": blockType}
	for k, v := range seed {
		block[k] = v
	}
	return []string{sseEvent("content_block_start", map[string]any{
		"type":          "content_block_start",
		"index":         index,
		"content_block": block,
	})}
}

func (s *streamState) closeBlock(index int) []string {
	if !s.openBlocks[index] {
		return nil
	}
	delete(s.openBlocks, index)
	return []string{sseEvent("content_block_stop", map[string]any{"type": "content_block_stop", "index": index})}
}

func (s *streamState) closeAllOpenBlocks() []string {
	var out []string
	for _, idx := range sortedIntKeys(s.openBlocks) {
		out = append(out, s.closeBlock(idx)...)
	}
	return out
}

func (s *streamState) handleTextDelta(event gjson.Result) []string {
	outputIndex := event.Get("output_index").Int()
	contentIndex := event.Get("content_index").Int()
	key := blockKey(outputIndex, contentIndex)
	idx, _ := s.allocateBlock(key)

	var out []string
	out = append(out, s.openBlock(idx, dialect.BlockText, map[string]any{"text": ""})...)

	if delta, ok := dialect.NonEmptyStr(event, "delta"); ok {
		s.blockHasDelta[idx] = true
		out = append(out, sseEvent("content_block_delta", map[string]any{
			"type":  "content_block_delta",
			"index": idx,
			"delta": map[string]any{"type": "text_delta", "text": delta},
		}))
	}
	return out
}

func (s *streamState) handleTextDone(event gjson.Result) []string {
	outputIndex := event.Get("output_index").Int()
	contentIndex := event.Get("content_index").Int()
	key := blockKey(outputIndex, contentIndex)
	idx, _ := s.allocateBlock(key)

	var out []string
	out = append(out, s.openBlock(idx, dialect.BlockText, map[string]any{"text": ""})...)
	if !s.blockHasDelta[idx] {
		if text, ok := dialect.NonEmptyStr(event, "text"); ok {
			out = append(out, sseEvent("content_block_delta", map[string]any{
				"type":  "content_block_delta",
				"index": idx,
				"delta": map[string]any{"type": "text_delta", "text": text},
			}))
		}
	}
	out = append(out, s.closeBlock(idx)...)
	return out
}

func (s *streamState) handleThinkingDelta(event gjson.Result) []string {
	outputIndex := event.Get("output_index").Int()
	key := blockKey(outputIndex, 0)
	idx, _ := s.allocateBlock(key)

	var out []string
	out = append(out, s.openBlock(idx, dialect.BlockThinking, map[string]any{"thinking": ""})...)
	if delta, ok := dialect.NonEmptyStr(event, "delta"); ok {
		s.blockHasDelta[idx] = true
		out = append(out, sseEvent("content_block_delta", map[string]any{
			"type":  "content_block_delta",
			"index": idx,
			"delta": map[string]any{"type": "thinking_delta", "thinking": delta},
		}))
	}
	return out
}

func (s *streamState) handleReasoningPartDone(event gjson.Result) []string {
	outputIndex := event.Get("output_index").Int()
	key := blockKey(outputIndex, 0)
	idx, _ := s.allocateBlock(key)

	var out []string
	out = append(out, s.openBlock(idx, dialect.BlockThinking, map[string]any{"thinking": ""})...)
	if !s.blockHasDelta[idx] {
		if text, ok := dialect.NonEmptyStr(event, "part.text"); ok {
			out = append(out, sseEvent("content_block_delta", map[string]any{
				"type":  "content_block_delta",
				"index": idx,
				"delta": map[string]any{"type": "thinking_delta", "thinking": text},
			}))
		}
	}
	// Part completion does not close the block - the owning output_item.done
	// (carrying the signature) does.
	return out
}

func (s *streamState) handleOutputItemAdded(event gjson.Result) []string {
	item := event.Get("item")
	if item.Get("type").String() != dialect.ItemFunctionCall {
		return nil
	}
	outputIndex := event.Get("output_index").Int()

	idx := s.nextContentBlockIndex
	s.nextContentBlockIndex++
	s.blockIndexByKey[blockKey(outputIndex, 0)+":fc"] = idx

	toolCallID := item.Get("call_id").String()
	if toolCallID == "" {
		toolCallID = item.Get("id").String()
	}
	if toolCallID == "" {
		toolCallID = fmt.Sprintf("tool_call_%d", idx)
	}
	name := s.names.Original(item.Get("name").String())

	s.functionCallStateByOutputIndex[outputIndex] = &functionCallState{blockIndex: idx, toolCallID: toolCallID, name: name}
	if itemID := item.Get("id").String(); itemID != "" {
		s.functionCallOutputIndexByItemID[itemID] = outputIndex
	}

	var out []string
	out = append(out, s.openBlock(idx, dialect.BlockToolUse, map[string]any{
		"id":    toolCallID,
		"name":  name,
		"input": map[string]any{},
	})...)

	if args, ok := dialect.NonEmptyStr(item, "arguments"); ok {
		s.blockHasDelta[idx] = true
		out = append(out, sseEvent("content_block_delta", map[string]any{
			"type":  "content_block_delta",
			"index": idx,
			"delta": map[string]any{"type": "input_json_delta", "partial_json": args},
		}))
	}
	return out
}

func (s *streamState) handleOutputItemDone(event gjson.Result) []string {
	item := event.Get("item")
	if item.Get("type").String() != dialect.ItemReasoning {
		return nil
	}
	outputIndex := event.Get("output_index").Int()
	key := blockKey(outputIndex, 0)
	idx, _ := s.allocateBlock(key)

	var out []string
	out = append(out, s.openBlock(idx, dialect.BlockThinking, map[string]any{"thinking": ""})...)
	if sig, ok := dialect.NonEmptyStr(item, "encrypted_content"); ok {
		out = append(out, sseEvent("content_block_delta", map[string]any{
			"type":  "content_block_delta",
			"index": idx,
			"delta": map[string]any{"type": "signature_delta", "signature": sig},
		}))
	}
	out = append(out, s.closeBlock(idx)...)
	return out
}

func (s *streamState) resolveFunctionCallState(event gjson.Result) (int64, *functionCallState) {
	outputIndex := event.Get("output_index")
	if outputIndex.Exists() {
		if st, ok := s.functionCallStateByOutputIndex[outputIndex.Int()]; ok {
			return outputIndex.Int(), st
		}
	}
	if itemID, ok := dialect.NonEmptyStr(event, "item_id"); ok {
		if oi, ok := s.functionCallOutputIndexByItemID[itemID]; ok {
			if st, ok := s.functionCallStateByOutputIndex[oi]; ok {
				return oi, st
			}
		}
	}
	return 0, nil
}

func (s *streamState) handleFunctionCallArgumentsDelta(event gjson.Result) []string {
	_, st := s.resolveFunctionCallState(event)
	if st == nil {
		return nil
	}
	delta, ok := dialect.NonEmptyStr(event, "delta")
	if !ok {
		return nil
	}
	s.blockHasDelta[st.blockIndex] = true
	return []string{sseEvent("content_block_delta", map[string]any{
		"type":  "content_block_delta",
		"index": st.blockIndex,
		"delta": map[string]any{"type": "input_json_delta", "partial_json": delta},
	})}
}

func (s *streamState) handleFunctionCallArgumentsDone(event gjson.Result) []string {
	outputIndex, st := s.resolveFunctionCallState(event)
	if st == nil {
		return nil
	}

	var out []string
	out = append(out, s.openBlock(st.blockIndex, dialect.BlockToolUse, map[string]any{
		"id": st.toolCallID, "name": st.name, "input": map[string]any{},
	})...)
	if !s.blockHasDelta[st.blockIndex] {
		if args, ok := dialect.NonEmptyStr(event, "arguments"); ok {
			out = append(out, sseEvent("content_block_delta", map[string]any{
				"type":  "content_block_delta",
				"index": st.blockIndex,
				"delta": map[string]any{"type": "input_json_delta", "partial_json": args},
			}))
		}
	}
	out = append(out, s.closeBlock(st.blockIndex)...)
	delete(s.functionCallStateByOutputIndex, outputIndex)
	return out
}

func (s *streamState) handleTerminal(event gjson.Result) []string {
	var out []string
	out = append(out, s.closeAllOpenBlocks()...)

	resp := event.Get("response")
	messageDelta := map[string]any{"type": "message_delta"}
	if resp.Exists() {
		messageDelta["delta"] = map[string]any{"stop_reason": stopReasonFromResponse(resp), "stop_sequence": nil}
		messageDelta["usage"] = map[string]any{
			"input_tokens":  resp.Get("usage.input_tokens").Int(),
			"output_tokens": resp.Get("usage.output_tokens").Int(),
		}
	} else {
		messageDelta["delta"] = map[string]any{"stop_reason": nil, "stop_sequence": nil}
	}
	out = append(out, sseEvent("message_delta", messageDelta))
	out = append(out, sseEvent("message_stop", map[string]any{"type": "message_stop"}))
	s.messageCompleted = true
	return out
}

func (s *streamState) handleFailed(event gjson.Result) []string {
	var out []string
	out = append(out, s.closeAllOpenBlocks()...)
	message := event.Get("error.message").String()
	if message == "" {
		message = "upstream response failed"
	}
	out = append(out, sseEvent("error", map[string]any{"type": "error", "error": map[string]any{"type": "api_error", "message": message}}))
	s.messageCompleted = true
	return out
}

func (s *streamState) handleError(event gjson.Result) []string {
	message := event.Get("error").String()
	if message == "" {
		message = "upstream stream error"
	}
	out := []string{sseEvent("error", map[string]any{"type": "error", "error": map[string]any{"type": "api_error", "message": message}})}
	s.messageCompleted = true
	return out
}

// FinalizeIncompleteStream handles the premature-EOF case: if the upstream
// stream ends without a completion event, synthesize a terminal error.
// Handlers call this after the upstream read loop exits normally (EOF)
// without state.messageCompleted having been set.
func FinalizeIncompleteStream(param *any) []string {
	if *param == nil {
		return nil
	}
	state, ok := (*param).(*streamState)
	if !ok || state.messageCompleted {
		return nil
	}
	var out []string
	out = append(out, state.ensureMessageStart()...)
	out = append(out, state.closeAllOpenBlocks()...)
	out = append(out, sseEvent("error", map[string]any{
		"type":  "error",
		"error": map[string]any{"type": "api_error", "message": "Responses stream ended without completion"},
	}))
	state.messageCompleted = true
	return out
}

func sortedIntKeys(m map[int]bool) []int {
	keys := make([]int, 0, len(m))
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
