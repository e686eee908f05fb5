package store

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrNotFound is returned (wrapped) when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned (wrapped) when a unique constraint would be violated.
var ErrConflict = errors.New("already exists")

// ErrInvalidMessage is returned when a message violates the addressing rules.
var ErrInvalidMessage = errors.New("invalid message")

// Role defines the authorization level of a user.
type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

// User represents a user in the system.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	Role         Role
	Banned       bool
	Online       bool
	CreatedAt    time.Time
}

// Message represents a persisted chat message.
// Exactly one of Room, ReceiverID and GroupID is set.
type Message struct {
	ID         int64
	SenderID   int64
	Room       *string
	ReceiverID *int64
	GroupID    *int64
	Content    string
	CreatedAt  time.Time
	Read       bool
}

// Validate checks addressing exclusivity and content presence.
func (m *Message) Validate() error {
	if m.SenderID == 0 {
		return errors.Join(ErrInvalidMessage, errors.New("sender is required"))
	}
	if strings.TrimSpace(m.Content) == "" {
		return errors.Join(ErrInvalidMessage, errors.New("content is required"))
	}

	addressed := 0
	if m.Room != nil {
		if *m.Room == "" {
			return errors.Join(ErrInvalidMessage, errors.New("room is empty"))
		}
		addressed++
	}
	if m.ReceiverID != nil {
		addressed++
	}
	if m.GroupID != nil {
		addressed++
	}
	if addressed != 1 {
		return errors.Join(ErrInvalidMessage, errors.New("message must have exactly one address"))
	}
	return nil
}

// Group represents a private group.
type Group struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// GroupMember represents group membership.
type GroupMember struct {
	GroupID  int64
	UserID   int64
	JoinedAt time.Time
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a new member with hashed password.
	CreateUser(ctx context.Context, username, email, passwordHash string, role Role) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id int64) (*User, error)

	// GetUserByUsername retrieves a user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// GetUserByEmail retrieves a user by email.
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	// ListUsers lists all users ordered by username.
	ListUsers(ctx context.Context) ([]*User, error)

	// SetBanned toggles the banned flag.
	SetBanned(ctx context.Context, userID int64, banned bool) error

	// SetOnline toggles the online flag.
	SetOnline(ctx context.Context, userID int64, online bool) error
}

// GroupStore handles groups and their membership relation.
type GroupStore interface {
	CreateGroup(ctx context.Context, name string) (*Group, error)
	GetGroup(ctx context.Context, id int64) (*Group, error)
	// AddGroupMember is idempotent.
	AddGroupMember(ctx context.Context, groupID, userID int64) error
	IsGroupMember(ctx context.Context, groupID, userID int64) (bool, error)
	ListGroupMembers(ctx context.Context, groupID int64) ([]int64, error)
	ListUserGroups(ctx context.Context, userID int64) ([]*Group, error)
}

// MessageStore handles message persistence.
type MessageStore interface {
	// SaveMessage validates and persists a message, assigning ID and CreatedAt.
	SaveMessage(ctx context.Context, msg *Message) error

	// GetMessage retrieves a message by ID.
	GetMessage(ctx context.Context, id int64) (*Message, error)

	// MarkRead sets the read flag. Returns true only if the flag flipped.
	MarkRead(ctx context.Context, id int64) (bool, error)

	// ListRoomMessages returns the latest messages of a public room, oldest first.
	ListRoomMessages(ctx context.Context, room string, limit int) ([]*Message, error)

	// ListPrivateMessages returns the latest messages exchanged between two users, oldest first.
	ListPrivateMessages(ctx context.Context, userA, userB int64, limit int) ([]*Message, error)

	// ListGroupMessages returns the latest messages of a group, oldest first.
	ListGroupMessages(ctx context.Context, groupID int64, limit int) ([]*Message, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	GroupStore
	MessageStore

	// Close closes the underlying database connection.
	Close() error
}
