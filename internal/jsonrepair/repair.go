// Package jsonrepair provides a last-resort fixup for malformed JSON text
// produced by partial/truncated tool-call argument accumulation, before the
// translators fall through to the raw_arguments wrapping rule.
package jsonrepair

import "github.com/copilotgw/gateway/internal/util"

// Repair converts non-standard JSON that uses single quotes for strings into
// RFC 8259-compliant double-quoted JSON, and closes an unterminated trailing
// string. It never errors - callers re-attempt parsing the result and fall
// back to the raw_arguments wrapping rule if it still fails.
func Repair(input string) string {
	return util.FixJSON(input)
}
