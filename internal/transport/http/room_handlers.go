package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-relay/internal/core"
)

// RoomHandlers serves the room list and conversation history.
type RoomHandlers struct {
	hub   *core.Hub
	rooms []string
	log   *zerolog.Logger
}

// NewRoomHandlers creates a new room handlers instance.
func NewRoomHandlers(hub *core.Hub, rooms []string, logger *zerolog.Logger) *RoomHandlers {
	return &RoomHandlers{
		hub:   hub,
		rooms: rooms,
		log:   logger,
	}
}

// RoomsResponse lists the advertised rooms. Any other name can be joined too.
type RoomsResponse struct {
	Rooms []string `json:"rooms"`
}

// MessageResponse represents a stored message in API responses.
type MessageResponse struct {
	ID         int64  `json:"id"`
	Sender     string `json:"sender"`
	SenderID   int64  `json:"sender_id"`
	Room       string `json:"room,omitempty"`
	Receiver   string `json:"receiver,omitempty"`
	ReceiverID int64  `json:"receiver_id,omitempty"`
	GroupID    int64  `json:"group_id,omitempty"`
	Content    string `json:"content"`
	CreatedAt  string `json:"created_at"`
	Read       bool   `json:"read"`
}

// ListRooms returns the advertised public rooms.
// GET /api/rooms
func (h *RoomHandlers) ListRooms(c *gin.Context) {
	rooms := h.rooms
	if rooms == nil {
		rooms = []string{}
	}
	c.JSON(http.StatusOK, RoomsResponse{Rooms: rooms})
}

// RoomHistory returns the latest messages of a public room, oldest first.
// GET /api/rooms/:room/messages?limit=N
func (h *RoomHandlers) RoomHistory(c *gin.Context) {
	serveHistory(c, h.hub, h.log, core.HistoryQuery{Scope: core.ScopeRoom, Room: c.Param("room")})
}

// PrivateHistory returns the conversation between the caller and peer.
// GET /api/private/:peer/messages?limit=N
func (h *RoomHandlers) PrivateHistory(c *gin.Context) {
	serveHistory(c, h.hub, h.log, core.HistoryQuery{Scope: core.ScopePrivate, Peer: c.Param("peer")})
}

func serveHistory(c *gin.Context, hub *core.Hub, logger *zerolog.Logger, q core.HistoryQuery) {
	who, ok := identityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	limit, err := parseLimit(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: core.ErrCodeBadRequest})
		return
	}
	q.Limit = limit

	messages, err := hub.History(c.Request.Context(), who, q)
	if err != nil {
		writeCoreError(c, logger, err)
		return
	}

	response := make([]MessageResponse, 0, len(messages))
	for _, m := range messages {
		response = append(response, MessageResponse{
			ID:         m.ID,
			Sender:     m.Sender,
			SenderID:   m.SenderID,
			Room:       m.Room,
			Receiver:   m.Receiver,
			ReceiverID: m.ReceiverID,
			GroupID:    m.GroupID,
			Content:    m.Text,
			CreatedAt:  m.CreatedAt.Format(time.RFC3339Nano),
			Read:       m.Read,
		})
	}
	c.JSON(http.StatusOK, response)
}

func parseLimit(c *gin.Context) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, errors.New("limit must be a non-negative integer")
	}
	return limit, nil
}

// writeCoreError maps domain errors to HTTP statuses.
func writeCoreError(c *gin.Context, logger *zerolog.Logger, err error) {
	code := core.ErrorCode(err)
	status := http.StatusInternalServerError
	switch code {
	case core.ErrCodeBadRequest:
		status = http.StatusBadRequest
	case core.ErrCodeUnknownUser, core.ErrCodeUnknownGroup:
		status = http.StatusNotFound
	case core.ErrCodeNotAMember:
		status = http.StatusForbidden
	}

	if status == http.StatusInternalServerError {
		logger.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
		c.JSON(status, ErrorResponse{Error: "internal server error", Code: code})
		return
	}
	var ce *core.CoreError
	msg := err.Error()
	if errors.As(err, &ce) {
		msg = ce.Message
	}
	c.JSON(status, ErrorResponse{Error: msg, Code: code})
}
