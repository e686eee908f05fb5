package core

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-relay/internal/metrics"
	"github.com/vovakirdan/wirechat-relay/internal/store"
)

// DefaultStoreTimeout bounds store calls when no timeout is configured.
const DefaultStoreTimeout = 5 * time.Second

// Target is the unresolved destination of a content-bearing event.
type Target struct {
	Scope   Scope
	Room    string
	Peer    string
	GroupID int64
}

// RoomTarget addresses a public room.
func RoomTarget(room string) Target { return Target{Scope: ScopeRoom, Room: room} }

// PrivateTarget addresses a peer by username.
func PrivateTarget(peer string) Target { return Target{Scope: ScopePrivate, Peer: peer} }

// GroupTarget addresses a group.
func GroupTarget(groupID int64) Target { return Target{Scope: ScopeGroup, GroupID: groupID} }

// Pipeline resolves, persists and broadcasts chat messages, in that order.
type Pipeline struct {
	messages    store.MessageStore
	resolver    *Resolver
	broadcaster *Broadcaster
	locks       *keyLocker
	timeout     time.Duration
	log         *zerolog.Logger
}

// NewPipeline wires a pipeline. timeout bounds the store write.
func NewPipeline(messages store.MessageStore, resolver *Resolver, broadcaster *Broadcaster, timeout time.Duration, logger *zerolog.Logger) *Pipeline {
	if timeout <= 0 {
		timeout = DefaultStoreTimeout
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Pipeline{
		messages:    messages,
		resolver:    resolver,
		broadcaster: broadcaster,
		locks:       newKeyLocker(),
		timeout:     timeout,
		log:         logger,
	}
}

// PublishMessage stores text from sender at target and broadcasts the stored
// message, originator included. Nothing is broadcast unless the write succeeded.
//
// The caller's cancellation is ignored once the call starts: a sender that
// disconnects right after sending still gets its message recorded.
func (p *Pipeline) PublishMessage(ctx context.Context, sender Identity, target Target, text string) (*Message, error) {
	ctx = context.WithoutCancel(ctx)

	if strings.TrimSpace(text) == "" {
		metrics.PipelineFailures.WithLabelValues(ErrCodeBadRequest).Inc()
		return nil, wrapError(ErrCodeBadRequest, "message text is required", nil)
	}

	addr, err := p.resolve(ctx, sender, target)
	if err != nil {
		metrics.PipelineFailures.WithLabelValues(ErrorCode(err)).Inc()
		return nil, err
	}

	record := &store.Message{SenderID: sender.UserID, Content: text}
	switch target.Scope {
	case ScopeRoom:
		record.Room = &addr.Room
	case ScopePrivate:
		record.ReceiverID = &addr.ReceiverID
	case ScopeGroup:
		record.GroupID = &addr.GroupID
	}

	// Persist and broadcast as one unit per routing key so subscribers of a key
	// see messages in id order.
	unlock := p.locks.Lock(addr.Key)
	defer unlock()

	if err := p.persist(ctx, record); err != nil {
		p.log.Error().
			Err(err).
			Int64("sender_id", sender.UserID).
			Str("key", addr.Key.String()).
			Msg("failed to persist message")
		if errors.Is(err, store.ErrInvalidMessage) {
			metrics.PipelineFailures.WithLabelValues(ErrCodeBadRequest).Inc()
			return nil, wrapError(ErrCodeBadRequest, "invalid message", err)
		}
		metrics.PipelineFailures.WithLabelValues(ErrCodePersistenceFailed).Inc()
		return nil, wrapError(ErrCodePersistenceFailed, "message was not stored", err)
	}
	metrics.MessagesPersisted.WithLabelValues(target.Scope.String()).Inc()

	msg := &Message{
		ID:         record.ID,
		Scope:      target.Scope,
		SenderID:   sender.UserID,
		Sender:     sender.Username,
		Room:       addr.Room,
		ReceiverID: addr.ReceiverID,
		Receiver:   addr.Receiver,
		GroupID:    addr.GroupID,
		Text:       record.Content,
		CreatedAt:  record.CreatedAt,
	}

	delivered := p.broadcaster.Publish(addr.Key, &Event{
		Kind:    EventMessage,
		Key:     addr.Key,
		User:    sender.Username,
		Message: msg,
	})
	p.log.Debug().
		Int64("message_id", msg.ID).
		Str("key", addr.Key.String()).
		Int("delivered", delivered).
		Msg("message published")

	return msg, nil
}

func (p *Pipeline) resolve(ctx context.Context, sender Identity, target Target) (Address, error) {
	switch target.Scope {
	case ScopeRoom:
		return p.resolver.Room(target.Room)
	case ScopePrivate:
		return p.resolver.Private(ctx, sender, target.Peer)
	case ScopeGroup:
		return p.resolver.Group(ctx, sender, target.GroupID)
	default:
		return Address{}, wrapError(ErrCodeBadRequest, "unknown scope", nil)
	}
}

func (p *Pipeline) persist(ctx context.Context, record *store.Message) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	err := p.messages.SaveMessage(ctx, record)
	metrics.StoreLatency.Observe(time.Since(start).Seconds())
	return err
}
