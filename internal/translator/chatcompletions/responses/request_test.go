package responses

import (
	"testing"

	"github.com/tidwall/gjson"

	"github.com/copilotgw/gateway/internal/config"
)

func TestConvertChatCompletionsRequestToResponses_SystemBecomesInstructions(t *testing.T) {
	in := []byte(`{
		"model": "gpt-5",
		"messages": [
			{"role": "system", "content": "You are helpful."},
			{"role": "user", "content": "hi"}
		]
	}`)

	out := ConvertChatCompletionsRequestToResponses("gpt-5", in, false)

	if got := gjson.GetBytes(out, "instructions").String(); got != "You are helpful." {
		t.Errorf("instructions = %q, want 'You are helpful.'", got)
	}

	input := gjson.GetBytes(out, "input").Array()
	if len(input) != 1 {
		t.Fatalf("expected system message to be consumed as instructions, not forwarded as input; got %d items", len(input))
	}
	if input[0].Get("role").String() != "user" {
		t.Errorf("input[0].role = %q, want user", input[0].Get("role").String())
	}
}

func TestConvertChatCompletionsRequestToResponses_ToolCallsAndResults(t *testing.T) {
	in := []byte(`{
		"model": "gpt-5",
		"messages": [
			{"role": "user", "content": "weather?"},
			{"role": "assistant", "content": null, "tool_calls": [
				{"id": "call_1", "type": "function", "function": {"name": "get_weather", "arguments": "{\"city\":\"NYC\"}"}}
			]},
			{"role": "tool", "tool_call_id": "call_1", "content": "sunny"}
		]
	}`)

	out := ConvertChatCompletionsRequestToResponses("gpt-5", in, false)
	input := gjson.GetBytes(out, "input").Array()

	var sawCall, sawOut bool
	for _, item := range input {
		switch item.Get("type").String() {
		case "function_call":
			sawCall = true
			if item.Get("call_id").String() != "call_1" {
				t.Errorf("function_call.call_id = %q, want call_1", item.Get("call_id").String())
			}
		case "function_call_output":
			sawOut = true
			if item.Get("output").String() != "sunny" {
				t.Errorf("function_call_output.output = %q, want sunny", item.Get("output").String())
			}
		}
	}
	if !sawCall || !sawOut {
		t.Errorf("expected both function_call and function_call_output in input: %s", gjson.GetBytes(out, "input").Raw)
	}
}

func TestConvertChatCompletionsRequestToResponses_ExtraPromptAppended(t *testing.T) {
	prior := config.Global()
	defer config.SetGlobal(prior)
	config.SetGlobal(&config.Config{ExtraPrompt: map[string]string{"gpt-5": "Always be concise."}})

	in := []byte(`{"model":"gpt-5","messages":[{"role":"system","content":"Base prompt."},{"role":"user","content":"hi"}]}`)
	out := ConvertChatCompletionsRequestToResponses("gpt-5", in, false)

	instr := gjson.GetBytes(out, "instructions").String()
	if instr != "Base prompt.\n\nAlways be concise." {
		t.Errorf("instructions = %q, want base + extra prompt appended", instr)
	}
}

func TestConvertChatCompletionsRequestToResponses_ToolChoice(t *testing.T) {
	in := []byte(`{"model":"gpt-5","messages":[{"role":"user","content":"hi"}],"tool_choice":{"type":"function","function":{"name":"get_weather"}}}`)
	out := ConvertChatCompletionsRequestToResponses("gpt-5", in, false)
	if got := gjson.GetBytes(out, "tool_choice.name").String(); got != "get_weather" {
		t.Errorf("tool_choice.name = %q, want get_weather", got)
	}
	if got := gjson.GetBytes(out, "tool_choice.type").String(); got != "function" {
		t.Errorf("tool_choice.type = %q, want function", got)
	}
}
