package http

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/vovakirdan/wirechat-relay/internal/core"
	"github.com/vovakirdan/wirechat-relay/internal/store"
)

func TestRegisterLoginLogout(t *testing.T) {
	s := startTestServer(t)

	var reg AuthResponse
	code := s.request(t, http.MethodPost, "/api/register", "", RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "password123"}, &reg)
	if code != http.StatusCreated || reg.Token == "" {
		t.Fatalf("register: status %d token %q", code, reg.Token)
	}

	if code := s.request(t, http.MethodPost, "/api/register", "", RegisterRequest{Username: "alice", Email: "other@example.com", Password: "password123"}, nil); code != http.StatusConflict {
		t.Fatalf("duplicate register: expected 409, got %d", code)
	}
	if code := s.request(t, http.MethodPost, "/api/register", "", RegisterRequest{Username: "alice2", Email: "alice@example.com", Password: "password123"}, nil); code != http.StatusConflict {
		t.Fatalf("duplicate email: expected 409, got %d", code)
	}
	if code := s.request(t, http.MethodPost, "/api/register", "", map[string]string{"username": "bob"}, nil); code != http.StatusBadRequest {
		t.Fatalf("incomplete register: expected 400, got %d", code)
	}

	if code := s.request(t, http.MethodPost, "/api/login", "", LoginRequest{Username: "alice", Password: "nope"}, nil); code != http.StatusUnauthorized {
		t.Fatalf("bad login: expected 401, got %d", code)
	}

	var login AuthResponse
	if code := s.request(t, http.MethodPost, "/api/login", "", LoginRequest{Username: "alice", Password: "password123"}, &login); code != http.StatusOK {
		t.Fatalf("login: status %d", code)
	}
	u, _ := s.store.GetUserByUsername(context.Background(), "alice")
	if !u.Online {
		t.Fatalf("expected alice online")
	}

	if code := s.request(t, http.MethodPost, "/api/logout", "", nil, nil); code != http.StatusUnauthorized {
		t.Fatalf("logout without token: expected 401, got %d", code)
	}
	if code := s.request(t, http.MethodPost, "/api/logout", login.Token, nil, nil); code != http.StatusNoContent {
		t.Fatalf("logout: status %d", code)
	}
	u, _ = s.store.GetUserByUsername(context.Background(), "alice")
	if u.Online {
		t.Fatalf("expected alice offline")
	}
}

func TestListRooms(t *testing.T) {
	s := startTestServer(t)
	token := s.register(t, "alice")

	var rooms RoomsResponse
	if code := s.request(t, http.MethodGet, "/api/rooms", token, nil, &rooms); code != http.StatusOK {
		t.Fatalf("list rooms: status %d", code)
	}
	if len(rooms.Rooms) != 4 || rooms.Rooms[0] != "General" {
		t.Fatalf("unexpected rooms: %v", rooms.Rooms)
	}
}

func TestHistoryEndpoints(t *testing.T) {
	s := startTestServer(t)
	ctx := context.Background()
	aliceToken := s.register(t, "alice")
	bobToken := s.register(t, "bob")
	alice := core.Identity{UserID: s.userID(t, "alice"), Username: "alice"}

	for i := range 3 {
		if _, err := s.hub.Publish(ctx, alice, core.RoomTarget("General"), fmt.Sprintf("room %d", i)); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}
	if _, err := s.hub.Publish(ctx, alice, core.PrivateTarget("bob"), "just us"); err != nil {
		t.Fatalf("publish private: %v", err)
	}

	var room []MessageResponse
	if code := s.request(t, http.MethodGet, "/api/rooms/General/messages?limit=2", bobToken, nil, &room); code != http.StatusOK {
		t.Fatalf("room history: status %d", code)
	}
	if len(room) != 2 || room[0].Content != "room 1" || room[1].Content != "room 2" {
		t.Fatalf("unexpected room history: %+v", room)
	}

	var fromAlice, fromBob []MessageResponse
	s.request(t, http.MethodGet, "/api/private/bob/messages", aliceToken, nil, &fromAlice)
	s.request(t, http.MethodGet, "/api/private/alice/messages", bobToken, nil, &fromBob)
	if len(fromAlice) != 1 || len(fromBob) != 1 || fromAlice[0].ID != fromBob[0].ID {
		t.Fatalf("private histories differ: %+v vs %+v", fromAlice, fromBob)
	}
	if fromBob[0].Sender != "alice" || fromBob[0].Receiver != "bob" {
		t.Fatalf("unexpected private row: %+v", fromBob[0])
	}

	if code := s.request(t, http.MethodGet, "/api/private/ghost/messages", aliceToken, nil, nil); code != http.StatusNotFound {
		t.Fatalf("unknown peer: expected 404, got %d", code)
	}
	if code := s.request(t, http.MethodGet, "/api/rooms/General/messages?limit=abc", aliceToken, nil, nil); code != http.StatusBadRequest {
		t.Fatalf("bad limit: expected 400, got %d", code)
	}
	if code := s.request(t, http.MethodGet, "/api/rooms/General/messages", "", nil, nil); code != http.StatusUnauthorized {
		t.Fatalf("no token: expected 401, got %d", code)
	}
}

func TestGroupEndpoints(t *testing.T) {
	s := startTestServer(t)
	aliceToken := s.register(t, "alice")
	bobToken := s.register(t, "bob")
	malloryToken := s.register(t, "mallory")
	bobID := s.userID(t, "bob")

	var group GroupResponse
	if code := s.request(t, http.MethodPost, "/api/groups", aliceToken, CreateGroupRequest{Name: "team"}, &group); code != http.StatusCreated {
		t.Fatalf("create group: status %d", code)
	}
	if code := s.request(t, http.MethodPost, "/api/groups", aliceToken, CreateGroupRequest{Name: "x", MemberIDs: []int64{999}}, nil); code != http.StatusNotFound {
		t.Fatalf("unknown member: expected 404, got %d", code)
	}

	path := fmt.Sprintf("/api/groups/%d/members", group.ID)
	if code := s.request(t, http.MethodPost, path, malloryToken, AddMemberRequest{UserID: bobID}, nil); code != http.StatusForbidden {
		t.Fatalf("outsider add: expected 403, got %d", code)
	}
	if code := s.request(t, http.MethodPost, path, aliceToken, AddMemberRequest{UserID: bobID}, nil); code != http.StatusNoContent {
		t.Fatalf("add member: status %d", code)
	}

	var members []MemberResponse
	if code := s.request(t, http.MethodGet, path, bobToken, nil, &members); code != http.StatusOK || len(members) != 2 {
		t.Fatalf("members: status %d, %+v", code, members)
	}

	var bobGroups []GroupResponse
	s.request(t, http.MethodGet, "/api/groups", bobToken, nil, &bobGroups)
	if len(bobGroups) != 1 || bobGroups[0].ID != group.ID {
		t.Fatalf("unexpected groups for bob: %+v", bobGroups)
	}

	history := fmt.Sprintf("/api/groups/%d/messages", group.ID)
	if code := s.request(t, http.MethodGet, history, malloryToken, nil, nil); code != http.StatusForbidden {
		t.Fatalf("outsider history: expected 403, got %d", code)
	}
	if code := s.request(t, http.MethodGet, "/api/groups/4242/messages", aliceToken, nil, nil); code != http.StatusNotFound {
		t.Fatalf("unknown group history: expected 404, got %d", code)
	}
	var msgs []MessageResponse
	if code := s.request(t, http.MethodGet, history, bobToken, nil, &msgs); code != http.StatusOK || len(msgs) != 0 {
		t.Fatalf("member history: status %d, %+v", code, msgs)
	}
}

func TestAdminBan(t *testing.T) {
	s := startTestServer(t)
	ctx := context.Background()
	memberToken := s.register(t, "alice")
	aliceID := s.userID(t, "alice")

	if _, err := s.auth.CreateUser(ctx, "root", "root@example.com", "password123", store.RoleAdmin); err != nil {
		t.Fatalf("create admin: %v", err)
	}
	adminToken, err := s.auth.IssueToken(ctx, "root")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	banPath := fmt.Sprintf("/api/admin/users/%d/ban", aliceID)
	if code := s.request(t, http.MethodPost, banPath, memberToken, nil, nil); code != http.StatusForbidden {
		t.Fatalf("member ban: expected 403, got %d", code)
	}
	if code := s.request(t, http.MethodPost, banPath, adminToken, nil, nil); code != http.StatusNoContent {
		t.Fatalf("admin ban: status %d", code)
	}
	if code := s.request(t, http.MethodPost, "/api/login", "", LoginRequest{Username: "alice", Password: "password123"}, nil); code != http.StatusForbidden {
		t.Fatalf("banned login: expected 403, got %d", code)
	}

	if code := s.request(t, http.MethodPost, fmt.Sprintf("/api/admin/users/%d/unban", aliceID), adminToken, nil, nil); code != http.StatusNoContent {
		t.Fatalf("admin unban: status %d", code)
	}
	if code := s.request(t, http.MethodPost, "/api/login", "", LoginRequest{Username: "alice", Password: "password123"}, nil); code != http.StatusOK {
		t.Fatalf("login after unban: status %d", code)
	}
	if code := s.request(t, http.MethodPost, "/api/admin/users/999/ban", adminToken, nil, nil); code != http.StatusNotFound {
		t.Fatalf("unknown user ban: expected 404, got %d", code)
	}
}

func TestUserDirectory(t *testing.T) {
	s := startTestServer(t)
	ctx := context.Background()
	aliceToken := s.register(t, "alice")
	s.register(t, "bob")
	bobID := s.userID(t, "bob")
	if err := s.store.SetOnline(ctx, bobID, true); err != nil {
		t.Fatalf("set online: %v", err)
	}

	if code := s.request(t, http.MethodGet, "/api/users", "", nil, nil); code != http.StatusUnauthorized {
		t.Fatalf("anonymous directory: expected 401, got %d", code)
	}

	var users []UserResponse
	if code := s.request(t, http.MethodGet, "/api/users", aliceToken, nil, &users); code != http.StatusOK {
		t.Fatalf("list users: status %d", code)
	}
	if len(users) != 1 || users[0].Username != "bob" || users[0].ID != bobID || !users[0].Online {
		t.Fatalf("expected only bob, online: %+v", users)
	}

	if code := s.request(t, http.MethodGet, "/api/admin/users", aliceToken, nil, nil); code != http.StatusForbidden {
		t.Fatalf("member admin directory: expected 403, got %d", code)
	}

	if _, err := s.auth.CreateUser(ctx, "root", "root@example.com", "password123", store.RoleAdmin); err != nil {
		t.Fatalf("create admin: %v", err)
	}
	adminToken, err := s.auth.IssueToken(ctx, "root")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if code := s.request(t, http.MethodPost, fmt.Sprintf("/api/admin/users/%d/ban", bobID), adminToken, nil, nil); code != http.StatusNoContent {
		t.Fatalf("ban bob: status %d", code)
	}

	var all []AdminUserResponse
	if code := s.request(t, http.MethodGet, "/api/admin/users", adminToken, nil, &all); code != http.StatusOK {
		t.Fatalf("admin directory: status %d", code)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 accounts, got %+v", all)
	}
	byName := make(map[string]AdminUserResponse, len(all))
	for _, u := range all {
		byName[u.Username] = u
	}
	if !byName["bob"].Banned || byName["alice"].Banned {
		t.Fatalf("unexpected ban flags: %+v", all)
	}
	if byName["root"].Role != store.RoleAdmin || byName["alice"].Role != store.RoleMember {
		t.Fatalf("unexpected roles: %+v", all)
	}
}
