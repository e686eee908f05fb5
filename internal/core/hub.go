package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-relay/internal/store"
)

// DefaultHistoryLimit caps history queries that do not ask for a limit.
const DefaultHistoryLimit = 50

// MaxHistoryLimit caps every history query.
const MaxHistoryLimit = 500

type options struct {
	storeTimeout time.Duration
	clientBuffer int
}

// Option configures a Hub.
type Option func(*options)

// WithStoreTimeout bounds every store call made on behalf of an event.
func WithStoreTimeout(d time.Duration) Option {
	return func(o *options) { o.storeTimeout = d }
}

// WithClientBuffer sets the outbound queue length of new clients.
func WithClientBuffer(n int) Option {
	return func(o *options) { o.clientBuffer = n }
}

// Hub is the entry point of the messaging core: it owns the connection
// registry and dispatches client commands to the pipeline and signal channel.
type Hub struct {
	store       store.Store
	registry    *Registry
	broadcaster *Broadcaster
	resolver    *Resolver
	pipeline    *Pipeline
	signals     *Signals
	opts        options
	log         *zerolog.Logger
}

// NewHub creates a new chat hub instance backed by st.
func NewHub(st store.Store, logger *zerolog.Logger, opts ...Option) *Hub {
	o := options{
		storeTimeout: DefaultStoreTimeout,
		clientBuffer: DefaultClientBuffer,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	registry := NewRegistry()
	broadcaster := NewBroadcaster(registry, logger)
	resolver := NewResolver(st, o.storeTimeout)

	return &Hub{
		store:       st,
		registry:    registry,
		broadcaster: broadcaster,
		resolver:    resolver,
		pipeline:    NewPipeline(st, resolver, broadcaster, o.storeTimeout, logger),
		signals:     NewSignals(st, broadcaster, o.storeTimeout, logger),
		opts:        o,
		log:         logger,
	}
}

// Registry exposes the connection registry.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Connect registers a new connection for identity.
func (h *Hub) Connect(connID string, identity Identity) (*Client, error) {
	client := NewClient(connID, identity, h.opts.clientBuffer)
	if err := h.registry.Register(client); err != nil {
		return nil, err
	}
	h.log.Debug().Str("conn_id", connID).Str("user", identity.Username).Msg("client connected")
	return client, nil
}

// Disconnect drops the connection and all of its subscriptions.
// It is safe for clients that were never registered.
func (h *Hub) Disconnect(c *Client) {
	if c == nil {
		return
	}
	if h.registry.Deregister(c.ID) != nil {
		h.log.Debug().Str("conn_id", c.ID).Str("user", c.Name()).Msg("client disconnected")
	}
}

// Handle executes one command on behalf of c.
func (h *Hub) Handle(ctx context.Context, c *Client, cmd Command) error {
	if registered, ok := h.registry.Lookup(c.ID); !ok || registered != c {
		return ErrNotRegistered
	}

	switch cmd := cmd.(type) {
	case JoinRoom:
		addr, err := h.resolver.Room(cmd.Room)
		if err != nil {
			return err
		}
		return h.join(c, addr.Key, true)
	case JoinPrivate:
		addr, err := h.resolver.PrivateByID(ctx, c.Identity, cmd.PeerID)
		if err != nil {
			return err
		}
		return h.join(c, addr.Key, false)
	case JoinGroup:
		addr, err := h.resolver.Group(ctx, c.Identity, cmd.GroupID)
		if err != nil {
			return err
		}
		return h.join(c, addr.Key, true)
	case LeaveRoom:
		if strings.TrimSpace(cmd.Room) == "" {
			return wrapError(ErrCodeBadRequest, "room is required", nil)
		}
		h.leave(c, RoomKey(cmd.Room), true)
		return nil
	case LeavePrivate:
		if cmd.PeerID <= 0 {
			return wrapError(ErrCodeBadRequest, "peer_id is required", nil)
		}
		h.leave(c, DyadKey(c.Identity.UserID, cmd.PeerID), false)
		return nil
	case LeaveGroup:
		if cmd.GroupID <= 0 {
			return wrapError(ErrCodeBadRequest, "group_id is required", nil)
		}
		h.leave(c, GroupKey(cmd.GroupID), true)
		return nil
	case SendRoomMessage:
		_, err := h.pipeline.PublishMessage(ctx, c.Identity, RoomTarget(cmd.Room), cmd.Text)
		return err
	case SendPrivateMessage:
		_, err := h.pipeline.PublishMessage(ctx, c.Identity, PrivateTarget(cmd.Peer), cmd.Text)
		return err
	case SendGroupMessage:
		_, err := h.pipeline.PublishMessage(ctx, c.Identity, GroupTarget(cmd.GroupID), cmd.Text)
		return err
	case StartTyping:
		if strings.TrimSpace(cmd.Room) == "" {
			return wrapError(ErrCodeBadRequest, "room is required", nil)
		}
		h.signals.Typing(c, cmd.Room)
		return nil
	case StopTyping:
		if strings.TrimSpace(cmd.Room) == "" {
			return wrapError(ErrCodeBadRequest, "room is required", nil)
		}
		h.signals.StopTyping(c, cmd.Room)
		return nil
	case MarkRead:
		return h.signals.MarkRead(ctx, c.Identity, cmd.MessageID)
	default:
		return wrapError(ErrCodeBadRequest, fmt.Sprintf("unsupported command %T", cmd), nil)
	}
}

// Publish runs the message pipeline directly, for callers without a connection.
func (h *Hub) Publish(ctx context.Context, sender Identity, target Target, text string) (*Message, error) {
	return h.pipeline.PublishMessage(ctx, sender, target, text)
}

func (h *Hub) join(c *Client, key RoutingKey, announce bool) error {
	added, err := h.registry.Subscribe(c.ID, key)
	if err != nil {
		return err
	}
	h.broadcaster.Direct(c, &Event{Kind: EventSubscribed, Key: key, User: c.Name()})
	if added && announce {
		h.signals.AnnounceJoin(c, key)
	}
	return nil
}

func (h *Hub) leave(c *Client, key RoutingKey, announce bool) {
	if h.registry.Unsubscribe(c.ID, key) && announce {
		h.signals.AnnounceLeave(c, key)
	}
}

// HistoryQuery selects one conversation. Exactly one of Room, Peer and GroupID is used, by Scope.
type HistoryQuery struct {
	Scope   Scope
	Room    string
	Peer    string
	GroupID int64
	Limit   int
}

// History returns messages of one conversation visible to who, oldest first.
func (h *Hub) History(ctx context.Context, who Identity, q HistoryQuery) ([]Message, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	var (
		records []*store.Message
		addr    Address
		err     error
	)
	switch q.Scope {
	case ScopeRoom:
		if addr, err = h.resolver.Room(q.Room); err != nil {
			return nil, err
		}
		records, err = h.withTimeout(ctx, func(ctx context.Context) ([]*store.Message, error) {
			return h.store.ListRoomMessages(ctx, addr.Room, limit)
		})
	case ScopePrivate:
		if addr, err = h.resolver.Private(ctx, who, q.Peer); err != nil {
			return nil, err
		}
		records, err = h.withTimeout(ctx, func(ctx context.Context) ([]*store.Message, error) {
			return h.store.ListPrivateMessages(ctx, who.UserID, addr.ReceiverID, limit)
		})
	case ScopeGroup:
		if addr, err = h.resolver.Group(ctx, who, q.GroupID); err != nil {
			return nil, err
		}
		records, err = h.withTimeout(ctx, func(ctx context.Context) ([]*store.Message, error) {
			return h.store.ListGroupMessages(ctx, addr.GroupID, limit)
		})
	default:
		return nil, wrapError(ErrCodeBadRequest, "unknown scope", nil)
	}
	if err != nil {
		return nil, wrapError(ErrCodePersistenceFailed, "load history", err)
	}

	return h.toMessages(ctx, records)
}

func (h *Hub) withTimeout(ctx context.Context, fn func(context.Context) ([]*store.Message, error)) ([]*store.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, h.opts.storeTimeout)
	defer cancel()
	return fn(ctx)
}

// toMessages converts stored rows, resolving usernames once per user.
func (h *Hub) toMessages(ctx context.Context, records []*store.Message) ([]Message, error) {
	names := make(map[int64]string)
	name := func(id int64) (string, error) {
		if n, ok := names[id]; ok {
			return n, nil
		}
		ctx, cancel := context.WithTimeout(ctx, h.opts.storeTimeout)
		defer cancel()
		u, err := h.store.GetUserByID(ctx, id)
		if err != nil {
			return "", wrapError(ErrCodePersistenceFailed, "load user", err)
		}
		names[id] = u.Username
		return u.Username, nil
	}

	out := make([]Message, 0, len(records))
	for _, r := range records {
		sender, err := name(r.SenderID)
		if err != nil {
			return nil, err
		}
		m := Message{
			ID:        r.ID,
			SenderID:  r.SenderID,
			Sender:    sender,
			Text:      r.Content,
			CreatedAt: r.CreatedAt,
			Read:      r.Read,
		}
		switch {
		case r.Room != nil:
			m.Scope = ScopeRoom
			m.Room = *r.Room
		case r.ReceiverID != nil:
			m.Scope = ScopePrivate
			m.ReceiverID = *r.ReceiverID
			if m.Receiver, err = name(*r.ReceiverID); err != nil {
				return nil, err
			}
		case r.GroupID != nil:
			m.Scope = ScopeGroup
			m.GroupID = *r.GroupID
		}
		out = append(out, m)
	}
	return out, nil
}
