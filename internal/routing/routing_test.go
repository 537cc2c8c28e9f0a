package routing

import (
	"testing"

	"github.com/copilotgw/gateway/internal/constant"
	"github.com/copilotgw/gateway/internal/registry"
)

func TestChooseUpstreamDialect(t *testing.T) {
	catalog := registry.NewCatalog()
	catalog.Load([]registry.Model{
		{ID: "gpt-5", SupportedEndpoints: []string{"/responses", "/chat/completions"}},
		{ID: "gpt-4o", SupportedEndpoints: []string{"/chat/completions"}},
	})

	cases := []struct {
		model string
		want  string
	}{
		{"gpt-5", constant.Responses},
		{"gpt-4o", constant.ChatCompletions},
		{"unknown-model", constant.ChatCompletions},
	}
	for _, tc := range cases {
		if got := ChooseUpstreamDialect(catalog, tc.model); got != tc.want {
			t.Errorf("ChooseUpstreamDialect(%q) = %q, want %q", tc.model, got, tc.want)
		}
	}

	if got := ChooseUpstreamDialect(nil, "gpt-5"); got != constant.ChatCompletions {
		t.Errorf("nil catalog: got %q, want %q", got, constant.ChatCompletions)
	}
}

func TestDeriveVision(t *testing.T) {
	cases := []struct {
		name string
		body string
		want bool
	}{
		{"no image", `{"input":[{"role":"user","content":[{"type":"input_text","text":"hi"}]}]}`, false},
		{"responses image", `{"input":[{"role":"user","content":[{"type":"input_image","image_url":"data:..."}]}]}`, true},
		{"chat image_url", `{"messages":[{"role":"user","content":[{"type":"image_url","image_url":{"url":"data:..."}}]}]}`, true},
	}
	for _, tc := range cases {
		if got := DeriveVision([]byte(tc.body)); got != tc.want {
			t.Errorf("%s: DeriveVision() = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestDeriveInitiator(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"empty", `{}`, "user"},
		{"responses user-only", `{"input":[{"role":"user","content":"hi"}]}`, "user"},
		{"responses with assistant", `{"input":[{"role":"user","content":"hi"},{"role":"assistant","content":"ok"}]}`, "agent"},
		{"responses item with no role", `{"input":[{"type":"function_call","name":"x"}]}`, "agent"},
		{"chat messages", `{"messages":[{"role":"system","content":"s"},{"role":"assistant","content":"a"}]}`, "agent"},
	}
	for _, tc := range cases {
		if got := DeriveInitiator([]byte(tc.body)); got != tc.want {
			t.Errorf("%s: DeriveInitiator() = %q, want %q", tc.name, got, tc.want)
		}
	}
}

// roundHalfUp computes int64(float64(raw)*mult + 0.5) as a runtime
// operation so the result isn't rejected as an invalid constant conversion
// when mult produces a non-integer value.
func roundHalfUp(raw int64, mult float64) int64 {
	return int64(float64(raw)*mult + 0.5)
}

func TestAdjustCountTokens(t *testing.T) {
	cases := []struct {
		name             string
		model            string
		raw              int64
		hasTools         bool
		hasMCPTool       bool
		isClaudeCodeBeta bool
		want             int64
	}{
		{"non-adjusted family", "gpt-5", 1000, true, false, false, 1000},
		{"claude no tools", "claude-opus-4", 1000, false, false, false, 1150},
		{"claude with tools", "claude-opus-4", 1000, true, false, false, roundHalfUp(1346, 1.15)},
		{"claude with tools + claude-code mcp exemption", "claude-opus-4", 1000, true, true, true, 1150},
		{"grok with tools", "grok-4", 1000, true, false, false, roundHalfUp(1480, 1.03)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := AdjustCountTokens(tc.model, tc.raw, tc.hasTools, tc.hasMCPTool, tc.isClaudeCodeBeta)
			if got != tc.want {
				t.Errorf("AdjustCountTokens() = %d, want %d", got, tc.want)
			}
		})
	}
}
