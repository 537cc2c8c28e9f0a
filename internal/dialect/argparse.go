package dialect

import (
	"encoding/json"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/copilotgw/gateway/internal/jsonrepair"
)

// ParseFunctionCallArguments implements the tool/function-call arguments
// parsing rule shared by every response translator: a valid JSON object
// passes through unchanged; a JSON array is wrapped as {"arguments": [...]};
// a non-object scalar, or a string that fails to parse even after repair, is
// wrapped as {"raw_arguments": "..."}; empty or whitespace-only input yields
// {}. This never returns an error - malformed input is always recoverable.
func ParseFunctionCallArguments(raw string) json.RawMessage {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return json.RawMessage("{}")
	}

	if obj, ok := tryParseObjectOrArray(trimmed); ok {
		return obj
	}

	repaired := jsonrepair.Repair(trimmed)
	if repaired != trimmed {
		if obj, ok := tryParseObjectOrArray(repaired); ok {
			return obj
		}
	}

	log.Warnf("failed to parse function call arguments as JSON, wrapping as raw_arguments: %s", trimmed)
	wrapped, _ := json.Marshal(map[string]string{"raw_arguments": raw})
	return wrapped
}

func tryParseObjectOrArray(s string) (json.RawMessage, bool) {
	var probe any
	if err := json.Unmarshal([]byte(s), &probe); err != nil {
		return nil, false
	}
	switch probe.(type) {
	case map[string]any:
		return json.RawMessage(s), true
	case []any:
		wrapped, err := json.Marshal(map[string]json.RawMessage{"arguments": json.RawMessage(s)})
		if err != nil {
			return nil, false
		}
		return wrapped, true
	default:
		// A valid but non-object, non-array scalar (number, string, bool, null):
		// still wrapped with the original raw text, not the decoded value.
		wrapped, _ := json.Marshal(map[string]string{"raw_arguments": s})
		return wrapped, true
	}
}
