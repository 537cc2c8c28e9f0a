// Package responses implements the Responses dialect pass-through endpoint:
// POST /v1/responses.
package responses

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"

	"github.com/copilotgw/gateway/internal/api/handlers"
)

// Handler serves the Responses dialect.
type Handler struct {
	*handlers.Base
}

// New constructs a Handler.
func New(base *handlers.Base) *Handler {
	return &Handler{Base: base}
}

// Create handles POST /v1/responses.
func (h *Handler) Create(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"type": "invalid_request_error", "message": err.Error()}})
		return
	}

	model := gjson.GetBytes(body, "model").String()
	h.RelayResponsesPassthrough(c, model, body)
}
