package core

import (
	"fmt"
	"strconv"
)

// Identity is the authenticated caller attached to a connection.
type Identity struct {
	UserID   int64
	Username string
}

// Scope is the addressing category of a message.
type Scope int

const (
	// ScopeRoom addresses a public room by name.
	ScopeRoom Scope = iota + 1
	// ScopePrivate addresses a two-party conversation.
	ScopePrivate
	// ScopeGroup addresses a private group.
	ScopeGroup
)

func (s Scope) String() string {
	switch s {
	case ScopeRoom:
		return "room"
	case ScopePrivate:
		return "private"
	case ScopeGroup:
		return "group"
	default:
		return "unknown"
	}
}

// RoutingKey names one delivery scope. It is comparable and used as a map key.
type RoutingKey struct {
	Scope Scope
	Name  string
}

// RoomKey returns the routing key of a public room. Room names are used verbatim.
func RoomKey(room string) RoutingKey {
	return RoutingKey{Scope: ScopeRoom, Name: room}
}

// DyadKey returns the routing key shared by two users, independent of argument order.
func DyadKey(a, b int64) RoutingKey {
	if a > b {
		a, b = b, a
	}
	return RoutingKey{Scope: ScopePrivate, Name: fmt.Sprintf("dm:%d:%d", a, b)}
}

// GroupKey returns the routing key of a group.
func GroupKey(groupID int64) RoutingKey {
	return RoutingKey{Scope: ScopeGroup, Name: strconv.FormatInt(groupID, 10)}
}

func (k RoutingKey) String() string {
	switch k.Scope {
	case ScopePrivate:
		return k.Name
	default:
		return k.Scope.String() + ":" + k.Name
	}
}
