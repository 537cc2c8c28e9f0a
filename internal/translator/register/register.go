// Package register blank-imports every translation direction so its init()
// registers with the translator package's registry. main imports this
// package solely for its side effects.
package register

import (
	_ "github.com/copilotgw/gateway/internal/translator/anthropic/chatcompletions"
	_ "github.com/copilotgw/gateway/internal/translator/anthropic/responses"
	_ "github.com/copilotgw/gateway/internal/translator/chatcompletions/responses"
)
