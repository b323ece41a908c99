// Package chat exposes conversation history over HTTP. Live messaging
// runs over the WebSocket.
package chat

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"callbridge-backend/internal/service/chat"
	"callbridge-backend/pkg/response"
)

// Handler handles HTTP requests for chat
type Handler struct {
	chatService *chat.Service
}

// NewHandler creates a new chat handler
func NewHandler(chatService *chat.Service) *Handler {
	return &Handler{
		chatService: chatService,
	}
}

// History returns the conversation with a peer, newest first
// GET /api/v1/messages/:peer_id?limit=20
func (h *Handler) History(c *gin.Context) {
	userID, ok := c.MustGet("user_id").(uuid.UUID)
	if !ok {
		response.Unauthorized(c, "Unauthorized")
		return
	}

	peerID, err := uuid.Parse(c.Param("peer_id"))
	if err != nil {
		response.ValidationError(c, "Invalid peer_id")
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	messages, err := h.chatService.History(c.Request.Context(), userID, peerID, limit)
	if err != nil {
		response.FromAppError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"messages": messages,
		"count":    len(messages),
	})
}
