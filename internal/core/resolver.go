package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vovakirdan/wirechat-relay/internal/store"
)

// Directory is the read-only view of users and groups the resolver needs.
type Directory interface {
	GetUserByID(ctx context.Context, id int64) (*store.User, error)
	GetUserByUsername(ctx context.Context, username string) (*store.User, error)
	GetGroup(ctx context.Context, id int64) (*store.Group, error)
	IsGroupMember(ctx context.Context, groupID, userID int64) (bool, error)
}

// Address is a resolved destination: the routing key plus the fields that get persisted.
type Address struct {
	Key        RoutingKey
	Room       string
	ReceiverID int64
	Receiver   string
	GroupID    int64
}

// Resolver turns scope-specific fields into routing keys.
type Resolver struct {
	dir     Directory
	timeout time.Duration
}

// NewResolver builds a resolver. Every store lookup is bounded by timeout.
func NewResolver(dir Directory, timeout time.Duration) *Resolver {
	return &Resolver{dir: dir, timeout: timeout}
}

// Room resolves a public room. Rooms need no backing entity.
func (r *Resolver) Room(room string) (Address, error) {
	if strings.TrimSpace(room) == "" {
		return Address{}, wrapError(ErrCodeBadRequest, "room is required", nil)
	}
	return Address{Key: RoomKey(room), Room: room}, nil
}

// Private resolves the conversation between sender and the user named peer.
func (r *Resolver) Private(ctx context.Context, sender Identity, peer string) (Address, error) {
	if strings.TrimSpace(peer) == "" {
		return Address{}, wrapError(ErrCodeBadRequest, "peer is required", nil)
	}

	ctx, cancel := r.bound(ctx)
	defer cancel()

	user, err := r.dir.GetUserByUsername(ctx, peer)
	if err != nil {
		return Address{}, lookupError(err, ErrCodeUnknownUser, fmt.Sprintf("unknown user %q", peer))
	}
	return Address{
		Key:        DyadKey(sender.UserID, user.ID),
		ReceiverID: user.ID,
		Receiver:   user.Username,
	}, nil
}

// PrivateByID resolves the conversation between self and the user with peerID.
func (r *Resolver) PrivateByID(ctx context.Context, self Identity, peerID int64) (Address, error) {
	if peerID <= 0 {
		return Address{}, wrapError(ErrCodeBadRequest, "peer_id is required", nil)
	}

	ctx, cancel := r.bound(ctx)
	defer cancel()

	user, err := r.dir.GetUserByID(ctx, peerID)
	if err != nil {
		return Address{}, lookupError(err, ErrCodeUnknownUser, fmt.Sprintf("unknown user %d", peerID))
	}
	return Address{
		Key:        DyadKey(self.UserID, user.ID),
		ReceiverID: user.ID,
		Receiver:   user.Username,
	}, nil
}

// Group resolves a group after confirming who belongs to it.
func (r *Resolver) Group(ctx context.Context, who Identity, groupID int64) (Address, error) {
	if groupID <= 0 {
		return Address{}, wrapError(ErrCodeBadRequest, "group_id is required", nil)
	}

	ctx, cancel := r.bound(ctx)
	defer cancel()

	if _, err := r.dir.GetGroup(ctx, groupID); err != nil {
		return Address{}, lookupError(err, ErrCodeUnknownGroup, fmt.Sprintf("unknown group %d", groupID))
	}

	member, err := r.dir.IsGroupMember(ctx, groupID, who.UserID)
	if err != nil {
		return Address{}, wrapError(ErrCodePersistenceFailed, "check group membership", err)
	}
	if !member {
		return Address{}, wrapError(ErrCodeNotAMember, fmt.Sprintf("%s is not a member of group %d", who.Username, groupID), nil)
	}
	return Address{Key: GroupKey(groupID), GroupID: groupID}, nil
}

func (r *Resolver) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.timeout)
}

// lookupError maps a store miss to the given code and anything else to a persistence failure.
func lookupError(err error, code, msg string) error {
	if errors.Is(err, store.ErrNotFound) {
		return wrapError(code, msg, nil)
	}
	return wrapError(ErrCodePersistenceFailed, "lookup failed", err)
}
