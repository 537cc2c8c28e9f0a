package responses

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/tidwall/gjson"
)

var dataPrefix = []byte("data:")

type toolCallChunkState struct {
	index int
	id    string
}

// chunkStreamState is the lighter state machine for the ChatCompletions-client,
// Responses-upstream direction: no content-block lifecycle, just a running
// tool-call index and cached response identity.
type chunkStreamState struct {
	id    string
	model string

	nextToolCallIndex           int
	toolCallStateByOutputIndex  map[int64]*toolCallChunkState
	toolCallOutputIndexByItemID map[string]int64

	completed bool
}

func newChunkStreamState() *chunkStreamState {
	return &chunkStreamState{
		toolCallStateByOutputIndex:  make(map[int64]*toolCallChunkState),
		toolCallOutputIndexByItemID: make(map[string]int64),
	}
}

func (s *chunkStreamState) chunk(delta map[string]any, finishReason any) string {
	payload := map[string]any{
		"id":      s.id,
		"object":  "chat.completion.chunk",
		"created": time.Now().Unix(),
		"model":   s.model,
		"choices": []any{map[string]any{"index": 0, "delta": delta, "finish_reason": finishReason}},
	}
	data, _ := json.Marshal(payload)
	// "reasoning_text" is the wire name produced above; the ChatCompletions
	// client-facing field is "reasoning_content".
	wire := bytes.Replace(data, []byte(`"reasoning_text"`), []byte(`"reasoning_content"`), 1)
	return "data: " + string(wire) + "\n\n"
}

func (s *chunkStreamState) resolveToolCall(event gjson.Result) (int64, *toolCallChunkState) {
	outputIndex := event.Get("output_index")
	if outputIndex.Exists() {
		if st, ok := s.toolCallStateByOutputIndex[outputIndex.Int()]; ok {
			return outputIndex.Int(), st
		}
	}
	if itemID := event.Get("item_id").String(); itemID != "" {
		if oi, ok := s.toolCallOutputIndexByItemID[itemID]; ok {
			if st, ok := s.toolCallStateByOutputIndex[oi]; ok {
				return oi, st
			}
		}
	}
	return 0, nil
}

// ConvertResponsesStreamToChatCompletions is the stream translator for the
// ChatCompletions-client, Responses-upstream direction.
func ConvertResponsesStreamToChatCompletions(_ context.Context, modelName string, _, _, rawJSON []byte, param *any) []string {
	if *param == nil {
		*param = newChunkStreamState()
	}
	state := (*param).(*chunkStreamState)
	if state.completed {
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

	switch event.Get("type").String() {
	case "response.created":
		resp := event.Get("response")
		state.id = resp.Get("id").String()
		state.model = resp.Get("model").String()
		if state.model == "" {
			state.model = modelName
		}

	case "response.output_text.delta":
		if delta := event.Get("delta").String(); delta != "" {
			return []string{state.chunk(map[string]any{"content": delta}, nil)}
		}

	case "response.reasoning_summary_text.delta":
		if delta := event.Get("delta").String(); delta != "" {
			return []string{state.chunk(map[string]any{"reasoning_text": delta}, nil)}
		}

	case "response.output_item.added":
		item := event.Get("item")
		if item.Get("type").String() != "function_call" {
			return nil
		}
		outputIndex := event.Get("output_index").Int()
		idx := state.nextToolCallIndex
		state.nextToolCallIndex++
		id := item.Get("call_id").String()
		if id == "" {
			id = item.Get("id").String()
		}
		state.toolCallStateByOutputIndex[outputIndex] = &toolCallChunkState{index: idx, id: id}
		if itemID := item.Get("id").String(); itemID != "" {
			state.toolCallOutputIndexByItemID[itemID] = outputIndex
		}
		return []string{state.chunk(map[string]any{
			"tool_calls": []any{map[string]any{
				"index": idx,
				"id":    id,
				"type":  "function",
				"function": map[string]any{
					"name":      item.Get("name").String(),
					"arguments": "",
				},
			}},
		}, nil)}

	case "response.function_call_arguments.delta":
		_, st := state.resolveToolCall(event)
		if st == nil {
			return nil
		}
		delta := event.Get("delta").String()
		if delta == "" {
			return nil
		}
		return []string{state.chunk(map[string]any{
			"tool_calls": []any{map[string]any{"index": st.index, "function": map[string]any{"arguments": delta}}},
		}, nil)}

	case "response.completed":
		state.completed = true
		return []string{state.chunk(map[string]any{}, "stop"), "data: [DONE]\n\n"}

	case "response.incomplete", "response.failed":
		state.completed = true
		return []string{state.chunk(map[string]any{}, "stop"), "data: [DONE]\n\n"}

	case "error":
		// ChatCompletions-client streams end without synthesising further
		// chunks on upstream protocol failure.
		state.completed = true
	}

	return nil
}

// FinalizeIncompleteStream ends a ChatCompletions-client stream that closed
// without a completion event. No extra chunk is synthesised beyond the
// terminating sentinel.
func FinalizeIncompleteStream(param *any) []string {
	if *param == nil {
		return nil
	}
	state, ok := (*param).(*chunkStreamState)
	if !ok || state.completed {
		return nil
	}
	state.completed = true
	return []string{"data: [DONE]\n\n"}
}
