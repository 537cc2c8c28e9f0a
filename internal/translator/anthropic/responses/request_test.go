package responses

import (
	"testing"

	"github.com/tidwall/gjson"

	"github.com/copilotgw/gateway/internal/config"
)

func TestConvertClaudeRequestToResponses_BasicTextTurn(t *testing.T) {
	in := []byte(`{
		"model": "gpt-5",
		"system": "You are a helpful assistant.",
		"messages": [
			{"role": "user", "content": "hello"}
		]
	}`)

	out := ConvertClaudeRequestToResponses("gpt-5", in, false)

	if got := gjson.GetBytes(out, "model").String(); got != "gpt-5" {
		t.Errorf("model = %q, want gpt-5", got)
	}
	if gjson.GetBytes(out, "stream").Bool() {
		t.Errorf("stream should be false")
	}
	instructions := gjson.GetBytes(out, "instructions").String()
	if instructions == "" {
		t.Fatalf("instructions should not be empty")
	}

	input := gjson.GetBytes(out, "input").Array()
	if len(input) != 1 {
		t.Fatalf("expected 1 input item, got %d", len(input))
	}
	if input[0].Get("role").String() != "user" {
		t.Errorf("input[0].role = %q, want user", input[0].Get("role").String())
	}
	if input[0].Get("content").String() != "hello" {
		t.Errorf("input[0].content = %q, want hello", input[0].Get("content").String())
	}
}

func TestConvertClaudeRequestToResponses_ToolUseAndResult(t *testing.T) {
	in := []byte(`{
		"model": "gpt-5",
		"messages": [
			{"role": "user", "content": "what's the weather?"},
			{"role": "assistant", "content": [
				{"type": "tool_use", "id": "call_1", "name": "get_weather", "input": {"city": "NYC"}}
			]},
			{"role": "user", "content": [
				{"type": "tool_result", "tool_use_id": "call_1", "content": "sunny"}
			]}
		],
		"tools": [
			{"name": "get_weather", "description": "Get weather", "input_schema": {"type": "object"}}
		]
	}`)

	out := ConvertClaudeRequestToResponses("gpt-5", in, false)

	tools := gjson.GetBytes(out, "tools").Array()
	if len(tools) != 1 || tools[0].Get("name").String() != "get_weather" {
		t.Fatalf("expected get_weather tool, got %v", tools)
	}

	input := gjson.GetBytes(out, "input").Array()
	var sawFunctionCall, sawFunctionCallOut bool
	for _, item := range input {
		switch item.Get("type").String() {
		case "function_call":
			sawFunctionCall = true
			if item.Get("call_id").String() != "call_1" {
				t.Errorf("function_call call_id = %q, want call_1", item.Get("call_id").String())
			}
			if item.Get("name").String() != "get_weather" {
				t.Errorf("function_call name = %q, want get_weather", item.Get("name").String())
			}
		case "function_call_output":
			sawFunctionCallOut = true
			if item.Get("call_id").String() != "call_1" {
				t.Errorf("function_call_output call_id = %q, want call_1", item.Get("call_id").String())
			}
			if item.Get("output").String() != "sunny" {
				t.Errorf("function_call_output output = %q, want sunny", item.Get("output").String())
			}
			if item.Get("status").String() != "completed" {
				t.Errorf("function_call_output status = %q, want completed", item.Get("status").String())
			}
		}
	}
	if !sawFunctionCall || !sawFunctionCallOut {
		t.Errorf("expected both function_call and function_call_output items, input=%s", gjson.GetBytes(out, "input").Raw)
	}
}

func TestConvertClaudeRequestToResponses_ToolChoice(t *testing.T) {
	cases := []struct {
		name  string
		claim string
		want  string // gjson path expression result as raw
	}{
		{"auto", `"auto"`, `"auto"`},
		{"any maps to required", `"any"`, `"required"`},
		{"typed none", `{"type":"none"}`, `"none"`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := []byte(`{"model":"gpt-5","messages":[{"role":"user","content":"hi"}],"tool_choice":` + tc.claim + `}`)
			out := ConvertClaudeRequestToResponses("gpt-5", in, false)
			got := gjson.GetBytes(out, "tool_choice").Raw
			if got != tc.want {
				t.Errorf("tool_choice = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestConvertClaudeRequestToResponses_ReasoningEffortFromConfig(t *testing.T) {
	prior := config.Global()
	defer config.SetGlobal(prior)

	config.SetGlobal(&config.Config{
		ReasoningEffort: config.ReasoningEffort{
			Default: "medium",
			Overrides: map[string]string{
				"gpt-5-codex": "high",
			},
		},
	})

	in := []byte(`{"model":"gpt-5","messages":[{"role":"user","content":"hi"}]}`)

	out := ConvertClaudeRequestToResponses("gpt-5", in, false)
	if got := gjson.GetBytes(out, "reasoning.effort").String(); got != "medium" {
		t.Errorf("reasoning.effort for gpt-5 = %q, want medium (default)", got)
	}

	out = ConvertClaudeRequestToResponses("gpt-5-codex", in, false)
	if got := gjson.GetBytes(out, "reasoning.effort").String(); got != "high" {
		t.Errorf("reasoning.effort for gpt-5-codex = %q, want high (override)", got)
	}
}

func TestConvertClaudeRequestToResponses_UserIDMetadataParsing(t *testing.T) {
	in := []byte(`{
		"model": "gpt-5",
		"messages": [{"role": "user", "content": "hi"}],
		"metadata": {"user_id": "user_abc123_account__session_def456"}
	}`)

	out := ConvertClaudeRequestToResponses("gpt-5", in, false)

	if got := gjson.GetBytes(out, "safety_identifier").String(); got != "abc123" {
		t.Errorf("safety_identifier = %q, want abc123", got)
	}
	if got := gjson.GetBytes(out, "prompt_cache_key").String(); got != "def456" {
		t.Errorf("prompt_cache_key = %q, want def456", got)
	}
}
