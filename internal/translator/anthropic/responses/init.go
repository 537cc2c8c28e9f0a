package responses

import (
	"context"
	"fmt"

	"github.com/copilotgw/gateway/internal/constant"
	"github.com/copilotgw/gateway/internal/translator"
	sdktranslator "github.com/copilotgw/gateway/sdk/translator"
)

func init() {
	translator.Register(
		constant.Anthropic,
		constant.Responses,
		ConvertClaudeRequestToResponses,
		sdktranslator.ResponseTransform{
			Stream:    ConvertResponsesStreamToClaude,
			NonStream: ConvertResponsesToClaudeNonStream,
			TokenCount: func(_ context.Context, count int64) string {
				return fmt.Sprintf(`{"input_tokens":%d}`, count)
			},
			Finalize: FinalizeIncompleteStream,
		},
	)
}
