package core

import (
	"context"
	"testing"
	"time"

	"github.com/vovakirdan/wirechat-relay/internal/store"
	"github.com/vovakirdan/wirechat-relay/internal/store/sqlite"
)

// flakyStore lets tests break message writes on an otherwise working store.
// With stall set, writes block until their context ends.
type flakyStore struct {
	store.Store
	saveErr error
	stall   bool
}

func (f *flakyStore) SaveMessage(ctx context.Context, msg *store.Message) error {
	if f.stall {
		<-ctx.Done()
		return ctx.Err()
	}
	if f.saveErr != nil {
		return f.saveErr
	}
	return f.Store.SaveMessage(ctx, msg)
}

type testEnv struct {
	hub   *Hub
	store *flakyStore
	users map[string]Identity
}

func newTestEnv(t testing.TB, usernames ...string) *testEnv {
	t.Helper()

	st, err := sqlite.New(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	env := &testEnv{
		store: &flakyStore{Store: st},
		users: make(map[string]Identity),
	}
	for _, name := range usernames {
		u, err := st.CreateUser(context.Background(), name, name+"@example.com", "hash", store.RoleMember)
		if err != nil {
			t.Fatalf("create user %s: %v", name, err)
		}
		env.users[name] = Identity{UserID: u.ID, Username: u.Username}
	}
	env.hub = NewHub(env.store, nil, WithStoreTimeout(time.Second), WithClientBuffer(16))
	return env
}

// rebuild replaces the hub with one using opts. Call it before connecting clients.
func (e *testEnv) rebuild(opts ...Option) {
	e.hub = NewHub(e.store, nil, opts...)
}

func (e *testEnv) connect(t *testing.T, connID, username string) *Client {
	t.Helper()

	id, ok := e.users[username]
	if !ok {
		t.Fatalf("unknown test user %s", username)
	}
	c, err := e.hub.Connect(connID, id)
	if err != nil {
		t.Fatalf("connect %s: %v", connID, err)
	}
	return c
}

func (e *testEnv) do(t *testing.T, c *Client, cmd Command) {
	t.Helper()

	if err := e.hub.Handle(context.Background(), c, cmd); err != nil {
		t.Fatalf("%T from %s: %v", cmd, c.ID, err)
	}
}

func (e *testEnv) group(t *testing.T, name string, members ...string) int64 {
	t.Helper()

	ctx := context.Background()
	g, err := e.store.CreateGroup(ctx, name)
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	for _, m := range members {
		if err := e.store.AddGroupMember(ctx, g.ID, e.users[m].UserID); err != nil {
			t.Fatalf("add member %s: %v", m, err)
		}
	}
	return g.ID
}

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev, ok := <-ch:
			if !ok {
				t.Fatalf("channel closed while waiting for %v", kind)
			}
			if ev != nil && ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

// noEvent drains everything queued and fails if an event of kind is among it.
func noEvent(t *testing.T, ch <-chan *Event, kind EventKind) {
	t.Helper()

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if ev != nil && ev.Kind == kind {
				t.Fatalf("unexpected event %v: %+v", kind, ev)
			}
		default:
			return
		}
	}
}

// drain discards everything queued so far.
func drain(ch <-chan *Event) {
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		default:
			return
		}
	}
}
