// Package claude implements the Anthropic Messages dialect endpoints:
// POST /v1/messages and POST /v1/messages/count_tokens.
package claude

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/copilotgw/gateway/internal/api/handlers"
	"github.com/copilotgw/gateway/internal/constant"
	"github.com/copilotgw/gateway/internal/routing"
	"github.com/copilotgw/gateway/internal/tokenizer"
)

// Handler serves the Anthropic Messages dialect.
type Handler struct {
	*handlers.Base
}

// New constructs a Handler.
func New(base *handlers.Base) *Handler {
	return &Handler{Base: base}
}

// Messages handles POST /v1/messages.
func (h *Handler) Messages(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"type": "invalid_request_error", "message": err.Error()}})
		return
	}

	model := gjson.GetBytes(body, "model").String()
	model, body = applyWarmupRewrite(c, h.Store.Get().Upstream.SmallModel, model, body)

	h.Relay(c, constant.Anthropic, model, body)
}

// CountTokens handles POST /v1/messages/count_tokens.
func (h *Handler) CountTokens(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"type": "invalid_request_error", "message": err.Error()}})
		return
	}
	model := gjson.GetBytes(body, "model").String()

	raw := tokenizer.CountTokens(body, model)

	tools := gjson.GetBytes(body, "tools")
	hasTools := tools.IsArray() && len(tools.Array()) > 0
	hasMCPTool := false
	for _, t := range tools.Array() {
		if strings.HasPrefix(t.Get("name").String(), "mcp__") {
			hasMCPTool = true
			break
		}
	}
	isClaudeCodeBeta := strings.HasPrefix(c.GetHeader("anthropic-beta"), "claude-code")

	adjusted := routing.AdjustCountTokens(model, raw, hasTools, hasMCPTool, isClaudeCodeBeta)

	c.JSON(http.StatusOK, gin.H{"input_tokens": adjusted})
}

// applyWarmupRewrite forces a cheap no-tools warmup ping (Claude Code sends
// one before real turns, identified by the anthropic-beta header) onto the
// configured small model, when one is set.
func applyWarmupRewrite(c *gin.Context, smallModel, model string, body []byte) (string, []byte) {
	if smallModel == "" || c.GetHeader("anthropic-beta") == "" {
		return model, body
	}
	tools := gjson.GetBytes(body, "tools")
	if tools.Exists() && tools.IsArray() && len(tools.Array()) > 0 {
		return model, body
	}
	rewritten, err := sjson.SetBytes(body, "model", smallModel)
	if err != nil {
		return model, body
	}
	return smallModel, rewritten
}
