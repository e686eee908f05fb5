package proto

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	InboundTypeJoin                = "join"
	InboundTypeLeave               = "leave"
	InboundTypeRoomMessage         = "room_message"
	InboundTypeJoinPrivate         = "join_private"
	InboundTypeLeavePrivate        = "leave_private"
	InboundTypePrivateMessage      = "private_message"
	InboundTypeJoinPrivateGroup    = "join_private_group"
	InboundTypeLeavePrivateGroup   = "leave_private_group"
	InboundTypePrivateGroupMessage = "private_group_message"
	InboundTypeTyping              = "typing"
	InboundTypeStopTyping          = "stop_typing"
	InboundTypeMessageRead         = "message_read"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"
)

// Error codes produced at the protocol boundary. Domain codes come from core.
const (
	ErrCodeInvalidMessage = "invalid_message"
	ErrCodeBadRequest     = "bad_request"
	ErrCodeRateLimited    = "rate_limited"
)

// JoinData requests to join a public room. Username is accepted but ignored.
type JoinData struct {
	Room     string `json:"room" validate:"required,max=64"`
	Username string `json:"username,omitempty"`
}

// RoomMessageData is a chat message for a public room.
type RoomMessageData struct {
	Room     string `json:"room" validate:"required,max=64"`
	Username string `json:"username,omitempty"`
	Msg      string `json:"msg" validate:"required,max=4096"`
}

// JoinPrivateData subscribes to the conversation with peer_id.
type JoinPrivateData struct {
	PeerID int64 `json:"peer_id" validate:"required,gt=0"`
}

// PrivateMessageData is a direct message to the user named Peer.
type PrivateMessageData struct {
	Username string `json:"username,omitempty"`
	Peer     string `json:"peer" validate:"required,max=64"`
	Msg      string `json:"msg" validate:"required,max=4096"`
}

// JoinGroupData subscribes to a private group.
type JoinGroupData struct {
	GroupID  int64  `json:"group_id" validate:"required,gt=0"`
	Username string `json:"username,omitempty"`
}

// GroupMessageData is a chat message for a private group.
type GroupMessageData struct {
	GroupID  int64  `json:"group_id" validate:"required,gt=0"`
	Username string `json:"username,omitempty"`
	Msg      string `json:"msg" validate:"required,max=4096"`
}

// TypingData carries typing and stop_typing signals.
type TypingData struct {
	Room     string `json:"room" validate:"required,max=64"`
	Username string `json:"username,omitempty"`
}

// ID is a numeric identifier that browsers may also send as a decimal string.
type ID int64

// UnmarshalJSON accepts 12 as well as "12".
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = 0
		return nil
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return err
	}
	*id = ID(n)
	return nil
}

// MessageReadData marks a message as read.
type MessageReadData struct {
	MessageID ID `json:"message_id" validate:"required,gt=0"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// EventMessage is a stored chat message. Exactly one of Room, Peer and GroupID is set.
type EventMessage struct {
	ID      int64  `json:"id"`
	Room    string `json:"room,omitempty"`
	Peer    string `json:"peer,omitempty"`
	GroupID int64  `json:"group_id,omitempty"`
	User    string `json:"user"`
	Text    string `json:"text"`
	TS      int64  `json:"ts"`
	Read    bool   `json:"read,omitempty"`
}

// EventUserJoined notifies that a user joined a room or group.
type EventUserJoined struct {
	Room    string `json:"room,omitempty"`
	GroupID int64  `json:"group_id,omitempty"`
	User    string `json:"user"`
}

// EventUserLeft notifies that a user left a room or group.
type EventUserLeft struct {
	Room    string `json:"room,omitempty"`
	GroupID int64  `json:"group_id,omitempty"`
	User    string `json:"user"`
}

// EventTyping is sent for both typing and stop_typing.
type EventTyping struct {
	Room string `json:"room"`
	User string `json:"user"`
}

// EventReadReceipt tells the conversation that User read MessageID.
// Reader repeats User for clients that expect that name.
type EventReadReceipt struct {
	MessageID int64  `json:"message_id"`
	User      string `json:"user"`
	Reader    string `json:"reader"`
}

// EventSubscribed acknowledges a join. Channel is the routing key.
type EventSubscribed struct {
	Channel string `json:"channel"`
	Room    string `json:"room,omitempty"`
	GroupID int64  `json:"group_id,omitempty"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
