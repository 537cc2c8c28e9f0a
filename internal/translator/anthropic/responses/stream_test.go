package responses

import (
	"strings"
	"testing"
)

func feedClaude(model string, originalRequest []byte, state *any, events []string) []string {
	var out []string
	for _, e := range events {
		out = append(out, ConvertResponsesStreamToClaude(nil, model, originalRequest, nil, []byte(e), state)...)
	}
	return out
}

func eventTypesOf(frames []string) []string {
	var types []string
	for _, f := range frames {
		// Each SSE frame is "event: <type>\ndata: ...\n\n"
		if strings.HasPrefix(f, "event: ") {
			line := f[len("event: "):]
			if idx := strings.Index(line, "\n"); idx >= 0 {
				types = append(types, line[:idx])
			}
		}
	}
	return types
}

func TestConvertResponsesStreamToClaude_TextFlow(t *testing.T) {
	var state any
	frames := feedClaude("gpt-5", []byte(`{}`), &state, []string{
		`{"type":"response.created","response":{"id":"resp_1","model":"gpt-5","usage":{"input_tokens":15}}}`,
		`{"type":"response.output_text.delta","output_index":0,"content_index":0,"delta":"Hello"}`,
		`{"type":"response.output_text.delta","output_index":0,"content_index":0,"delta":" world"}`,
		`{"type":"response.output_text.done","output_index":0,"content_index":0,"text":"Hello world"}`,
		`{"type":"response.completed","response":{"status":"completed","usage":{"input_tokens":15,"output_tokens":5}}}`,
	})

	types := eventTypesOf(frames)
	want := []string{
		"message_start",
		"content_block_start",
		"content_block_delta",
		"content_block_delta",
		"content_block_stop",
		"message_delta",
		"message_stop",
	}
	if len(types) != len(want) {
		t.Fatalf("event sequence = %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("event[%d] = %q, want %q (full: %v)", i, types[i], want[i], types)
		}
	}

	if !strings.Contains(frames[0], `"id":"resp_1"`) {
		t.Errorf("message_start should carry response id: %s", frames[0])
	}
	if !strings.Contains(frames[0], `"input_tokens":15`) {
		t.Errorf("message_start usage should reflect initial input tokens: %s", frames[0])
	}
}

func TestConvertResponsesStreamToClaude_ToolUse(t *testing.T) {
	originalRequest := []byte(`{"tools":[{"name":"get_weather"}]}`)
	var state any
	frames := feedClaude("gpt-5", originalRequest, &state, []string{
		`{"type":"response.created","response":{"id":"resp_2","model":"gpt-5"}}`,
		`{"type":"response.output_item.added","output_index":0,"item":{"type":"function_call","id":"item_1","call_id":"call_1","name":"get_weather","arguments":""}}`,
		`{"type":"response.function_call_arguments.delta","output_index":0,"delta":"{\"city\""}`,
		`{"type":"response.function_call_arguments.delta","output_index":0,"delta":":\"NYC\"}"}`,
		`{"type":"response.function_call_arguments.done","output_index":0,"arguments":"{\"city\":\"NYC\"}"}`,
		`{"type":"response.completed","response":{"status":"completed"}}`,
	})

	types := eventTypesOf(frames)
	// message_start, content_block_start(tool_use), 2x content_block_delta, content_block_stop, message_delta, message_stop
	wantCounts := map[string]int{
		"message_start":       1,
		"content_block_start": 1,
		"content_block_delta": 2,
		"content_block_stop":  1,
		"message_delta":       1,
		"message_stop":        1,
	}
	gotCounts := map[string]int{}
	for _, ty := range types {
		gotCounts[ty]++
	}
	for ty, want := range wantCounts {
		if gotCounts[ty] != want {
			t.Errorf("count of %q = %d, want %d (full sequence: %v)", ty, gotCounts[ty], want, types)
		}
	}

	var toolUseBlockStart string
	for _, f := range frames {
		if strings.Contains(f, "content_block_start") && strings.Contains(f, "tool_use") {
			toolUseBlockStart = f
		}
	}
	if toolUseBlockStart == "" {
		t.Fatalf("expected a tool_use content_block_start frame")
	}
	if !strings.Contains(toolUseBlockStart, `"name":"get_weather"`) {
		t.Errorf("tool_use block should carry original (un-shortened) tool name: %s", toolUseBlockStart)
	}
	if !strings.Contains(toolUseBlockStart, `"id":"call_1"`) {
		t.Errorf("tool_use block should carry call_id: %s", toolUseBlockStart)
	}
}

func TestConvertResponsesStreamToClaude_NoFramesAfterCompletion(t *testing.T) {
	var state any
	_ = feedClaude("gpt-5", []byte(`{}`), &state, []string{
		`{"type":"response.created","response":{"id":"resp_3","model":"gpt-5"}}`,
		`{"type":"response.completed","response":{"status":"completed"}}`,
	})

	extra := ConvertResponsesStreamToClaude(nil, "gpt-5", []byte(`{}`), nil, []byte(`{"type":"response.output_text.delta","delta":"late"}`), &state)
	if extra != nil {
		t.Errorf("expected nil frames after stream completion, got %v", extra)
	}
}

func TestFinalizeIncompleteStream_EmitsErrorAndClosesOpenBlocks(t *testing.T) {
	var state any
	_ = feedClaude("gpt-5", []byte(`{}`), &state, []string{
		`{"type":"response.created","response":{"id":"resp_4","model":"gpt-5"}}`,
		`{"type":"response.output_text.delta","output_index":0,"content_index":0,"delta":"partial"}`,
	})

	frames := FinalizeIncompleteStream(&state)
	types := eventTypesOf(frames)

	foundClose, foundError := false, false
	for _, ty := range types {
		if ty == "content_block_stop" {
			foundClose = true
		}
		if ty == "error" {
			foundError = true
		}
	}
	if !foundClose {
		t.Errorf("expected an open content block to be closed, types=%v", types)
	}
	if !foundError {
		t.Errorf("expected a synthetic error event, types=%v", types)
	}

	// Calling Finalize again after it already ran is a no-op.
	if again := FinalizeIncompleteStream(&state); again != nil {
		t.Errorf("expected nil on second Finalize call, got %v", again)
	}
}

func TestFinalizeIncompleteStream_EmitsMessageStartAfterResponseCreatedOnly(t *testing.T) {
	var state any
	_ = feedClaude("gpt-5", []byte(`{}`), &state, []string{
		`{"type":"response.created","response":{"id":"resp_6","model":"gpt-5","usage":{"input_tokens":8}}}`,
	})

	frames := FinalizeIncompleteStream(&state)
	types := eventTypesOf(frames)
	if len(types) == 0 || types[0] != "message_start" {
		t.Fatalf("expected message_start to be the first emitted event, got %v", types)
	}
	if !strings.Contains(frames[0], `"id":"resp_6"`) {
		t.Errorf("message_start should carry the response id recorded from response.created: %s", frames[0])
	}

	var sawError bool
	for _, ty := range types {
		if ty == "error" {
			sawError = true
		}
	}
	if !sawError {
		t.Errorf("expected a synthetic error event, types=%v", types)
	}
}

func TestConvertResponsesStreamToClaude_ErrorEventEndsStream(t *testing.T) {
	var state any
	frames := feedClaude("gpt-5", []byte(`{}`), &state, []string{
		`{"type":"response.created","response":{"id":"resp_5","model":"gpt-5"}}`,
		`{"type":"error","error":"something broke"}`,
	})

	var sawError bool
	for _, f := range frames {
		if strings.Contains(f, "event: error") {
			sawError = true
		}
	}
	if !sawError {
		t.Errorf("expected an error event frame, got %v", frames)
	}

	extra := ConvertResponsesStreamToClaude(nil, "gpt-5", []byte(`{}`), nil, []byte(`{"type":"response.output_text.delta","delta":"late"}`), &state)
	if extra != nil {
		t.Errorf("expected nil after error terminated the stream, got %v", extra)
	}
}
