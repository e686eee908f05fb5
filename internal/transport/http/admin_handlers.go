package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-relay/internal/auth"
	"github.com/vovakirdan/wirechat-relay/internal/store"
)

// AdminHandlers provides moderation endpoints.
type AdminHandlers struct {
	authService *auth.Service
	log         *zerolog.Logger
}

// NewAdminHandlers creates a new admin handlers instance.
func NewAdminHandlers(authService *auth.Service, logger *zerolog.Logger) *AdminHandlers {
	return &AdminHandlers{
		authService: authService,
		log:         logger,
	}
}

// Ban blocks a user from logging in. Existing connections are not dropped.
// POST /api/admin/users/:id/ban
func (h *AdminHandlers) Ban(c *gin.Context) {
	h.setBanned(c, true)
}

// Unban lifts a ban.
// POST /api/admin/users/:id/unban
func (h *AdminHandlers) Unban(c *gin.Context) {
	h.setBanned(c, false)
}

func (h *AdminHandlers) setBanned(c *gin.Context, banned bool) {
	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || userID <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid user id"})
		return
	}

	if err := h.authService.SetBanned(c.Request.Context(), userID, banned); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "user not found"})
			return
		}
		h.log.Error().Err(err).Int64("user_id", userID).Msg("failed to update ban")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Int64("user_id", userID).Bool("banned", banned).Msg("ban updated")
	c.Status(http.StatusNoContent)
}
