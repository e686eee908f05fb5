package core

import "time"

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventMessage delivers a persisted chat message.
	EventMessage EventKind = iota
	// EventUserJoined announces a subscriber to the other members of a room or group.
	EventUserJoined
	// EventUserLeft announces that a subscriber left.
	EventUserLeft
	// EventTyping tells the others that a user started typing.
	EventTyping
	// EventStopTyping tells the others that a user stopped typing.
	EventStopTyping
	// EventReadReceipt tells the sender side that a message was read.
	EventReadReceipt
	// EventSubscribed confirms a join to the joining connection only.
	EventSubscribed
)

func (k EventKind) String() string {
	switch k {
	case EventMessage:
		return "message"
	case EventUserJoined:
		return "user_joined"
	case EventUserLeft:
		return "user_left"
	case EventTyping:
		return "typing"
	case EventStopTyping:
		return "stop_typing"
	case EventReadReceipt:
		return "message_read_receipt"
	case EventSubscribed:
		return "subscribed"
	default:
		return "unknown"
	}
}

// Event is sent to clients to describe what happened in the system.
// Events are shared between subscribers and must not be mutated after publishing.
type Event struct {
	Kind      EventKind
	Key       RoutingKey
	User      string
	Message   *Message // EventMessage
	MessageID int64    // EventReadReceipt
}

// Message is the domain model for a delivered chat message.
// Exactly one of Room, ReceiverID and GroupID is meaningful, selected by Scope.
type Message struct {
	ID         int64
	Scope      Scope
	SenderID   int64
	Sender     string
	Room       string
	ReceiverID int64
	Receiver   string
	GroupID    int64
	Text       string
	CreatedAt  time.Time
	Read       bool
}
