package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-relay/internal/core"
	"github.com/vovakirdan/wirechat-relay/internal/service/groups"
	"github.com/vovakirdan/wirechat-relay/internal/store"
)

// GroupHandlers provides HTTP handlers for group management endpoints.
type GroupHandlers struct {
	service *groups.Service
	hub     *core.Hub
	log     *zerolog.Logger
}

// NewGroupHandlers creates a new group handlers instance.
func NewGroupHandlers(svc *groups.Service, hub *core.Hub, logger *zerolog.Logger) *GroupHandlers {
	return &GroupHandlers{
		service: svc,
		hub:     hub,
		log:     logger,
	}
}

// CreateGroupRequest represents the request body for creating a group.
type CreateGroupRequest struct {
	Name      string  `json:"name" binding:"required,max=64"`
	MemberIDs []int64 `json:"member_ids"`
}

// AddMemberRequest represents the request body for adding a group member.
type AddMemberRequest struct {
	UserID int64 `json:"user_id" binding:"required,gt=0"`
}

// GroupResponse represents a group in API responses.
type GroupResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
}

// MemberResponse represents a group member in API responses.
type MemberResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Online   bool   `json:"online"`
}

func groupToResponse(g *store.Group) GroupResponse {
	return GroupResponse{
		ID:        g.ID,
		Name:      g.Name,
		CreatedAt: g.CreatedAt.Format(time.RFC3339),
	}
}

// CreateGroup creates a group with the caller as first member.
// POST /api/groups
func (h *GroupHandlers) CreateGroup(c *gin.Context) {
	who, ok := identityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create group request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	group, err := h.service.Create(c.Request.Context(), who.UserID, req.Name, req.MemberIDs)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	h.log.Info().Int64("group_id", group.ID).Int64("creator_id", who.UserID).Msg("group created")
	c.JSON(http.StatusCreated, groupToResponse(group))
}

// ListGroups lists the caller's groups.
// GET /api/groups
func (h *GroupHandlers) ListGroups(c *gin.Context) {
	who, ok := identityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	list, err := h.service.ListForUser(c.Request.Context(), who.UserID)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	response := make([]GroupResponse, 0, len(list))
	for _, g := range list {
		response = append(response, groupToResponse(g))
	}
	c.JSON(http.StatusOK, response)
}

// AddMember adds a user to a group the caller belongs to.
// POST /api/groups/:id/members
func (h *GroupHandlers) AddMember(c *gin.Context) {
	who, groupID, ok := h.groupRequest(c)
	if !ok {
		return
	}

	var req AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if err := h.service.AddMember(c.Request.Context(), who.UserID, groupID, req.UserID); err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListMembers lists the members of a group the caller belongs to.
// GET /api/groups/:id/members
func (h *GroupHandlers) ListMembers(c *gin.Context) {
	who, groupID, ok := h.groupRequest(c)
	if !ok {
		return
	}

	users, err := h.service.Members(c.Request.Context(), who.UserID, groupID)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	response := make([]MemberResponse, 0, len(users))
	for _, u := range users {
		response = append(response, MemberResponse{ID: u.ID, Username: u.Username, Online: u.Online})
	}
	c.JSON(http.StatusOK, response)
}

// GroupHistory returns the latest messages of a group.
// GET /api/groups/:id/messages?limit=N
func (h *GroupHandlers) GroupHistory(c *gin.Context) {
	_, groupID, ok := h.groupRequest(c)
	if !ok {
		return
	}
	serveHistory(c, h.hub, h.log, core.HistoryQuery{Scope: core.ScopeGroup, GroupID: groupID})
}

func (h *GroupHandlers) groupRequest(c *gin.Context) (core.Identity, int64, bool) {
	who, ok := identityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return core.Identity{}, 0, false
	}
	groupID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || groupID <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid group id"})
		return core.Identity{}, 0, false
	}
	return who, groupID, true
}

func (h *GroupHandlers) writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, groups.ErrEmptyName):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.Is(err, groups.ErrUserNotFound), errors.Is(err, groups.ErrGroupNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case errors.Is(err, groups.ErrNotMember):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: err.Error(), Code: core.ErrCodeNotAMember})
	default:
		h.log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("group request failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
	}
}
