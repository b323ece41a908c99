// Package call exposes call history and busy lookups over HTTP. The
// signaling operations themselves run over the WebSocket.
package call

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"callbridge-backend/internal/service/call"
	"callbridge-backend/pkg/response"
)

// Handler handles HTTP requests for calls
type Handler struct {
	callService *call.Service
}

// NewHandler creates a new call handler
func NewHandler(callService *call.Service) *Handler {
	return &Handler{
		callService: callService,
	}
}

// History returns the caller's call history, newest first
// GET /api/v1/calls?limit=20&offset=0
func (h *Handler) History(c *gin.Context) {
	userID, ok := c.MustGet("user_id").(uuid.UUID)
	if !ok {
		response.Unauthorized(c, "Unauthorized")
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	calls, err := h.callService.History(c.Request.Context(), userID, limit, offset)
	if err != nil {
		response.FromAppError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"calls": calls,
		"count": len(calls),
	})
}

// Busy reports whether a user is currently in an active call
// GET /api/v1/users/:user_id/busy
func (h *Handler) Busy(c *gin.Context) {
	targetID, err := uuid.Parse(c.Param("user_id"))
	if err != nil {
		response.ValidationError(c, "Invalid user_id")
		return
	}

	busy, err := h.callService.IsBusy(c.Request.Context(), targetID)
	if err != nil {
		response.FromAppError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"user_id": targetID,
		"busy":    busy,
	})
}
