package core

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-relay/internal/store"
)

// Signals carries ephemeral notifications over the broadcast path.
// Only read receipts touch the store, and only to flip the read flag.
type Signals struct {
	messages    store.MessageStore
	broadcaster *Broadcaster
	timeout     time.Duration
	log         *zerolog.Logger
}

// NewSignals wires the signal channel.
func NewSignals(messages store.MessageStore, broadcaster *Broadcaster, timeout time.Duration, logger *zerolog.Logger) *Signals {
	if timeout <= 0 {
		timeout = DefaultStoreTimeout
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Signals{
		messages:    messages,
		broadcaster: broadcaster,
		timeout:     timeout,
		log:         logger,
	}
}

// Typing tells everyone in the room except the originator that it is typing.
func (s *Signals) Typing(origin *Client, room string) int {
	key := RoomKey(room)
	return s.broadcaster.Publish(key, &Event{Kind: EventTyping, Key: key, User: origin.Name()}, ExcludeConn(origin.ID))
}

// StopTyping clears the originator's typing signal for everyone else in the room.
func (s *Signals) StopTyping(origin *Client, room string) int {
	key := RoomKey(room)
	return s.broadcaster.Publish(key, &Event{Kind: EventStopTyping, Key: key, User: origin.Name()}, ExcludeConn(origin.ID))
}

// AnnounceJoin tells the subscribers of key that origin joined.
func (s *Signals) AnnounceJoin(origin *Client, key RoutingKey) int {
	return s.broadcaster.Publish(key, &Event{Kind: EventUserJoined, Key: key, User: origin.Name()})
}

// AnnounceLeave tells the remaining subscribers of key that origin left.
func (s *Signals) AnnounceLeave(origin *Client, key RoutingKey) int {
	return s.broadcaster.Publish(key, &Event{Kind: EventUserLeft, Key: key, User: origin.Name()})
}

// MarkRead flips the read flag of messageID and notifies the conversation the
// message belongs to. A missing message or a message already read is a silent no-op.
func (s *Signals) MarkRead(ctx context.Context, reader Identity, messageID int64) error {
	if messageID <= 0 {
		return wrapError(ErrCodeBadRequest, "message_id is required", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	record, err := s.messages.GetMessage(ctx, messageID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.log.Debug().Int64("message_id", messageID).Msg("read receipt for unknown message ignored")
			return nil
		}
		return wrapError(ErrCodePersistenceFailed, "load message", err)
	}

	flipped, err := s.messages.MarkRead(ctx, messageID)
	if err != nil {
		return wrapError(ErrCodePersistenceFailed, "mark message read", err)
	}
	if !flipped {
		return nil
	}

	key := receiptKey(record)
	s.broadcaster.Publish(key, &Event{
		Kind:      EventReadReceipt,
		Key:       key,
		User:      reader.Username,
		MessageID: messageID,
	})
	return nil
}

// receiptKey routes a receipt to the scope the original message was sent to.
func receiptKey(m *store.Message) RoutingKey {
	switch {
	case m.ReceiverID != nil:
		return DyadKey(m.SenderID, *m.ReceiverID)
	case m.GroupID != nil:
		return GroupKey(*m.GroupID)
	case m.Room != nil:
		return RoomKey(*m.Room)
	default:
		return RoutingKey{}
	}
}
