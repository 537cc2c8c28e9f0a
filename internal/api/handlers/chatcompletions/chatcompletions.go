// Package chatcompletions implements the OpenAI ChatCompletions dialect
// endpoint: POST /v1/chat/completions.
package chatcompletions

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"

	"github.com/copilotgw/gateway/internal/api/handlers"
	"github.com/copilotgw/gateway/internal/constant"
)

// Handler serves the ChatCompletions dialect.
type Handler struct {
	*handlers.Base
}

// New constructs a Handler.
func New(base *handlers.Base) *Handler {
	return &Handler{Base: base}
}

// Completions handles POST /v1/chat/completions.
func (h *Handler) Completions(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"type": "invalid_request_error", "message": err.Error()}})
		return
	}

	model := gjson.GetBytes(body, "model").String()
	h.Relay(c, constant.ChatCompletions, model, body)
}
