// Package constant defines the dialect identifiers shared across the gateway.
// A dialect identifier names a wire protocol on either side of translation: the
// client-facing ones (Anthropic, ChatCompletions, Responses) and the two the
// single upstream provider actually speaks (ChatCompletions, Responses).
package constant

const (
	// Anthropic identifies the Anthropic Messages dialect (POST /v1/messages).
	Anthropic = "anthropic"

	// ChatCompletions identifies the OpenAI Chat Completions dialect
	// (POST /v1/chat/completions). It is used both as a client dialect and,
	// when the selected model lacks Responses support, as the upstream dialect.
	ChatCompletions = "chatcompletions"

	// Responses identifies the OpenAI Responses dialect (POST /v1/responses).
	// It is used both as a client dialect and, when the selected model
	// supports it, as the upstream dialect.
	Responses = "responses"
)
