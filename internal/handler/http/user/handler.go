// Package user exposes profile, avatar, and presence lookups over HTTP.
package user

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"callbridge-backend/internal/service/auth"
	"callbridge-backend/internal/service/storage"
	"callbridge-backend/pkg/response"
)

// PresenceReader reads online status from the presence store
type PresenceReader interface {
	GetOnlineUsers(ctx context.Context) ([]uuid.UUID, error)
	IsUserOnline(ctx context.Context, userID uuid.UUID) (bool, error)
}

// Handler handles HTTP requests for users
type Handler struct {
	authService    *auth.Service
	storageService *storage.Service
	presence       PresenceReader
}

// NewHandler creates a new user handler
func NewHandler(authService *auth.Service, storageService *storage.Service, presence PresenceReader) *Handler {
	return &Handler{
		authService:    authService,
		storageService: storageService,
		presence:       presence,
	}
}

// Me returns the caller's profile
// GET /api/v1/users/me
func (h *Handler) Me(c *gin.Context) {
	userID, ok := c.MustGet("user_id").(uuid.UUID)
	if !ok {
		response.Unauthorized(c, "Unauthorized")
		return
	}

	user, err := h.authService.GetUser(c.Request.Context(), userID)
	if err != nil {
		response.FromAppError(c, err)
		return
	}

	response.Success(c, http.StatusOK, user)
}

// Get returns another user's profile
// GET /api/v1/users/:user_id
func (h *Handler) Get(c *gin.Context) {
	targetID, err := uuid.Parse(c.Param("user_id"))
	if err != nil {
		response.ValidationError(c, "Invalid user_id")
		return
	}

	user, err := h.authService.GetUser(c.Request.Context(), targetID)
	if err != nil {
		response.FromAppError(c, err)
		return
	}

	online, err := h.presence.IsUserOnline(c.Request.Context(), targetID)
	if err != nil {
		online = false
	}

	response.Success(c, http.StatusOK, gin.H{
		"user":   user,
		"online": online,
	})
}

// UploadAvatar stores a new avatar for the caller
// POST /api/v1/users/me/avatar
func (h *Handler) UploadAvatar(c *gin.Context) {
	userID, ok := c.MustGet("user_id").(uuid.UUID)
	if !ok {
		response.Unauthorized(c, "Unauthorized")
		return
	}

	fileHeader, err := c.FormFile("avatar")
	if err != nil {
		response.ValidationError(c, "Missing avatar file")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.InternalError(c, "Failed to read upload")
		return
	}
	defer file.Close()

	url, err := h.storageService.UploadAvatar(
		c.Request.Context(),
		userID,
		file,
		fileHeader.Size,
		fileHeader.Header.Get("Content-Type"),
	)
	if err != nil {
		response.FromAppError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"avatar_url": url})
}

// Online lists currently online users
// GET /api/v1/users/online
func (h *Handler) Online(c *gin.Context) {
	userIDs, err := h.presence.GetOnlineUsers(c.Request.Context())
	if err != nil {
		response.FromAppError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"users": userIDs,
		"count": len(userIDs),
	})
}
