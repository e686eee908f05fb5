package groups

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vovakirdan/wirechat-relay/internal/store"
)

// Common errors for group operations.
var (
	ErrEmptyName     = errors.New("group name is required")
	ErrUserNotFound  = errors.New("user not found")
	ErrGroupNotFound = errors.New("group not found")
	ErrNotMember     = errors.New("not a member of this group")
)

// Store is what the service needs from persistence.
type Store interface {
	store.GroupStore
	GetUserByID(ctx context.Context, id int64) (*store.User, error)
}

// Service provides group membership administration.
type Service struct {
	store Store
}

// New creates a new group Service.
func New(st Store) *Service {
	return &Service{store: st}
}

// Create makes a group containing the creator and every user in memberIDs.
// Unknown member ids fail the whole call before anything is written.
func (s *Service) Create(ctx context.Context, creatorID int64, name string, memberIDs []int64) (*store.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}

	members := []int64{creatorID}
	seen := map[int64]bool{creatorID: true}
	for _, id := range memberIDs {
		if !seen[id] {
			seen[id] = true
			members = append(members, id)
		}
	}
	for _, id := range members {
		if err := s.ensureUser(ctx, id); err != nil {
			return nil, err
		}
	}

	group, err := s.store.CreateGroup(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("create group: %w", err)
	}
	for _, id := range members {
		if err := s.store.AddGroupMember(ctx, group.ID, id); err != nil {
			return nil, fmt.Errorf("add member %d: %w", id, err)
		}
	}
	return group, nil
}

// AddMember lets an existing member add userID to the group. Adding a current member is a no-op.
func (s *Service) AddMember(ctx context.Context, actorID, groupID, userID int64) error {
	if err := s.ensureMember(ctx, groupID, actorID); err != nil {
		return err
	}
	if err := s.ensureUser(ctx, userID); err != nil {
		return err
	}
	if err := s.store.AddGroupMember(ctx, groupID, userID); err != nil {
		return fmt.Errorf("add member: %w", err)
	}
	return nil
}

// Members lists the users of a group. Only members may list it.
func (s *Service) Members(ctx context.Context, actorID, groupID int64) ([]*store.User, error) {
	if err := s.ensureMember(ctx, groupID, actorID); err != nil {
		return nil, err
	}

	ids, err := s.store.ListGroupMembers(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	users := make([]*store.User, 0, len(ids))
	for _, id := range ids {
		u, err := s.store.GetUserByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("get member %d: %w", id, err)
		}
		users = append(users, u)
	}
	return users, nil
}

// ListForUser returns the groups userID belongs to.
func (s *Service) ListForUser(ctx context.Context, userID int64) ([]*store.Group, error) {
	groups, err := s.store.ListUserGroups(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	return groups, nil
}

func (s *Service) ensureUser(ctx context.Context, id int64) error {
	if _, err := s.store.GetUserByID(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: %d", ErrUserNotFound, id)
		}
		return fmt.Errorf("get user: %w", err)
	}
	return nil
}

func (s *Service) ensureMember(ctx context.Context, groupID, userID int64) error {
	if _, err := s.store.GetGroup(ctx, groupID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrGroupNotFound
		}
		return fmt.Errorf("get group: %w", err)
	}
	ok, err := s.store.IsGroupMember(ctx, groupID, userID)
	if err != nil {
		return fmt.Errorf("check membership: %w", err)
	}
	if !ok {
		return ErrNotMember
	}
	return nil
}
