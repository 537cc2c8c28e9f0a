// Package preamble embeds the agent-guidance text appended to the
// instructions sent to the Responses upstream for Anthropic-dialect
// requests, compensating for tool-usage conventions the upstream model
// wasn't originally instructed on.
package preamble

import _ "embed"

//go:embed agent_preamble.txt
var agentPreamble string

// AgentGuidance returns the Bash / BashOutput / TodoWrite tool-usage
// preamble appended to (string) system instructions, or folded into the
// first system text block (array form).
func AgentGuidance() string {
	return agentPreamble
}
