package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-relay/internal/auth"
	"github.com/vovakirdan/wirechat-relay/internal/store"
)

// UserHandlers serves the user directory.
type UserHandlers struct {
	authService *auth.Service
	log         *zerolog.Logger
}

// NewUserHandlers creates a new user handlers instance.
func NewUserHandlers(authService *auth.Service, logger *zerolog.Logger) *UserHandlers {
	return &UserHandlers{
		authService: authService,
		log:         logger,
	}
}

// UserResponse represents another user as seen by a member. ID is the peer_id of join_private.
type UserResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Online   bool   `json:"online"`
}

// AdminUserResponse adds moderation fields.
type AdminUserResponse struct {
	ID       int64      `json:"id"`
	Username string     `json:"username"`
	Email    string     `json:"email"`
	Role     store.Role `json:"role"`
	Banned   bool       `json:"banned"`
	Online   bool       `json:"online"`
}

// ListUsers returns everyone except the caller.
// GET /api/users
func (h *UserHandlers) ListUsers(c *gin.Context) {
	who, ok := identityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	users, err := h.authService.ListUsers(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list users")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]UserResponse, 0, len(users))
	for _, u := range users {
		if u.ID == who.UserID {
			continue
		}
		response = append(response, UserResponse{ID: u.ID, Username: u.Username, Online: u.Online})
	}
	c.JSON(http.StatusOK, response)
}

// ListAllUsers returns every account for the moderation panel.
// GET /api/admin/users
func (h *UserHandlers) ListAllUsers(c *gin.Context) {
	users, err := h.authService.ListUsers(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list users")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]AdminUserResponse, 0, len(users))
	for _, u := range users {
		response = append(response, AdminUserResponse{
			ID:       u.ID,
			Username: u.Username,
			Email:    u.Email,
			Role:     u.Role,
			Banned:   u.Banned,
			Online:   u.Online,
		})
	}
	c.JSON(http.StatusOK, response)
}
