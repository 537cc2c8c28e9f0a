package responses

import (
	"strings"
	"testing"

	"github.com/tidwall/gjson"
)

func feed(t *testing.T, state *any, model string, events []string) []string {
	t.Helper()
	var out []string
	for _, e := range events {
		out = append(out, ConvertResponsesStreamToChatCompletions(nil, model, nil, nil, []byte(e), state)...)
	}
	return out
}

func TestConvertResponsesStreamToChatCompletions_TextDeltas(t *testing.T) {
	var state any
	frames := feed(t, &state, "gpt-5", []string{
		`{"type":"response.created","response":{"id":"resp_1","model":"gpt-5"}}`,
		`{"type":"response.output_text.delta","delta":"Hel"}`,
		`{"type":"response.output_text.delta","delta":"lo"}`,
		`{"type":"response.completed"}`,
	})

	if len(frames) != 4 {
		t.Fatalf("expected 4 emitted frames (2 text deltas + final stop chunk + DONE), got %d: %v", len(frames), frames)
	}

	first := strings.TrimPrefix(strings.TrimSuffix(frames[0], "\n\n"), "data: ")
	if got := gjson.Get(first, "choices.0.delta.content").String(); got != "Hel" {
		t.Errorf("first delta content = %q, want Hel", got)
	}
	if got := gjson.Get(first, "id").String(); got != "resp_1" {
		t.Errorf("id = %q, want resp_1", got)
	}

	last := frames[len(frames)-1]
	if last != "data: [DONE]\n\n" {
		t.Errorf("final frame = %q, want DONE sentinel", last)
	}
}

func TestConvertResponsesStreamToChatCompletions_ToolCall(t *testing.T) {
	var state any
	frames := feed(t, &state, "gpt-5", []string{
		`{"type":"response.created","response":{"id":"resp_2","model":"gpt-5"}}`,
		`{"type":"response.output_item.added","output_index":0,"item":{"type":"function_call","id":"item_1","call_id":"call_1","name":"get_weather"}}`,
		`{"type":"response.function_call_arguments.delta","output_index":0,"delta":"{\"city\""}`,
		`{"type":"response.function_call_arguments.delta","output_index":0,"delta":":\"NYC\"}"}`,
		`{"type":"response.completed"}`,
	})

	if len(frames) != 5 {
		t.Fatalf("expected 5 frames (added + 2 arg deltas + stop chunk + DONE), got %d: %v", len(frames), frames)
	}

	added := strings.TrimPrefix(strings.TrimSuffix(frames[0], "\n\n"), "data: ")
	if got := gjson.Get(added, "choices.0.delta.tool_calls.0.function.name").String(); got != "get_weather" {
		t.Errorf("tool_calls[0].function.name = %q, want get_weather", got)
	}
	if got := gjson.Get(added, "choices.0.delta.tool_calls.0.id").String(); got != "call_1" {
		t.Errorf("tool_calls[0].id = %q, want call_1", got)
	}

	argDelta1 := strings.TrimPrefix(strings.TrimSuffix(frames[1], "\n\n"), "data: ")
	if got := gjson.Get(argDelta1, "choices.0.delta.tool_calls.0.function.arguments").String(); got != `{"city"` {
		t.Errorf("argument delta = %q", got)
	}
}

func TestConvertResponsesStreamToChatCompletions_ReasoningRenamedOnWire(t *testing.T) {
	var state any
	frames := feed(t, &state, "gpt-5", []string{
		`{"type":"response.created","response":{"id":"resp_3","model":"gpt-5"}}`,
		`{"type":"response.reasoning_summary_text.delta","delta":"thinking..."}`,
	})
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
	if strings.Contains(frames[0], `"reasoning_text"`) {
		t.Errorf("wire frame should not contain internal reasoning_text key: %s", frames[0])
	}
	if !strings.Contains(frames[0], `"reasoning_content"`) {
		t.Errorf("wire frame should contain reasoning_content key: %s", frames[0])
	}
}

func TestConvertResponsesStreamToChatCompletions_DoneSentinelIgnored(t *testing.T) {
	var state any
	frames := feed(t, &state, "gpt-5", []string{
		`{"type":"response.created","response":{"id":"resp_4","model":"gpt-5"}}`,
		`data: [DONE]`,
	})
	if len(frames) != 0 {
		t.Errorf("expected no frames from [DONE] passthrough, got %v", frames)
	}
}

func TestConvertResponsesStreamToChatCompletions_NoFramesAfterCompleted(t *testing.T) {
	var state any
	_ = feed(t, &state, "gpt-5", []string{
		`{"type":"response.created","response":{"id":"resp_5","model":"gpt-5"}}`,
		`{"type":"response.completed"}`,
	})
	extra := ConvertResponsesStreamToChatCompletions(nil, "gpt-5", nil, nil, []byte(`{"type":"response.output_text.delta","delta":"late"}`), &state)
	if extra != nil {
		t.Errorf("expected nil after completion, got %v", extra)
	}
}

func TestFinalizeIncompleteStream(t *testing.T) {
	var state any
	_ = feed(t, &state, "gpt-5", []string{
		`{"type":"response.created","response":{"id":"resp_6","model":"gpt-5"}}`,
		`{"type":"response.output_text.delta","delta":"partial"}`,
	})

	frames := FinalizeIncompleteStream(&state)
	if len(frames) != 1 || frames[0] != "data: [DONE]\n\n" {
		t.Errorf("FinalizeIncompleteStream = %v, want single DONE sentinel", frames)
	}

	// Calling again after completion is a no-op.
	frames = FinalizeIncompleteStream(&state)
	if frames != nil {
		t.Errorf("expected nil on second Finalize call, got %v", frames)
	}
}

func TestFinalizeIncompleteStream_NilState(t *testing.T) {
	var state any
	if got := FinalizeIncompleteStream(&state); got != nil {
		t.Errorf("FinalizeIncompleteStream on nil state = %v, want nil", got)
	}
}
