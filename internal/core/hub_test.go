package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestHubRoomFanOut(t *testing.T) {
	env := newTestEnv(t, "alice", "bob", "carol", "dave")

	a := env.connect(t, "a", "alice")
	b := env.connect(t, "b", "bob")
	c := env.connect(t, "c", "carol")
	d := env.connect(t, "d", "dave")

	for _, cl := range []*Client{a, b, c} {
		env.do(t, cl, JoinRoom{Room: "General"})
	}
	env.do(t, d, JoinRoom{Room: "Gaming"})
	for _, cl := range []*Client{a, b, c, d} {
		drain(cl.Events)
	}

	env.do(t, a, SendRoomMessage{Room: "General", Text: "hi"})

	for _, cl := range []*Client{a, b, c} {
		ev := mustEvent(t, cl.Events, EventMessage)
		if ev.Message.Text != "hi" || ev.Message.Room != "General" || ev.Message.Sender != "alice" {
			t.Fatalf("unexpected message for %s: %+v", cl.ID, ev.Message)
		}
		if ev.Message.ID == 0 {
			t.Fatalf("broadcast message has no id")
		}
	}
	noEvent(t, d.Events, EventMessage)

	msgs, err := env.store.ListRoomMessages(context.Background(), "General", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 stored message, got %d", len(msgs))
	}
	m := msgs[0]
	if m.Room == nil || *m.Room != "General" || m.SenderID != env.users["alice"].UserID || m.Content != "hi" {
		t.Fatalf("unexpected stored message: %+v", m)
	}
	if m.ReceiverID != nil || m.GroupID != nil {
		t.Fatalf("room message carries a second address: %+v", m)
	}
}

func TestHubJoinAnnouncesOnceAndAcks(t *testing.T) {
	env := newTestEnv(t, "alice", "bob")
	a := env.connect(t, "a", "alice")
	b := env.connect(t, "b", "bob")

	env.do(t, a, JoinRoom{Room: "general"})
	drain(a.Events)

	env.do(t, b, JoinRoom{Room: "general"})

	ack := mustEvent(t, b.Events, EventSubscribed)
	if ack.Key != RoomKey("general") {
		t.Fatalf("unexpected ack key: %v", ack.Key)
	}
	// Bob sees his own join event (broadcast to the whole room).
	if ev := mustEvent(t, b.Events, EventUserJoined); ev.User != "bob" {
		t.Fatalf("unexpected join event: %+v", ev)
	}
	if ev := mustEvent(t, a.Events, EventUserJoined); ev.User != "bob" || ev.Key != RoomKey("general") {
		t.Fatalf("unexpected join event: %+v", ev)
	}

	// A second join is a no-op for the registry and is not announced again.
	env.do(t, b, JoinRoom{Room: "general"})
	mustEvent(t, b.Events, EventSubscribed)
	noEvent(t, a.Events, EventUserJoined)

	if got := len(env.hub.Registry().SubscribersOf(RoomKey("general"))); got != 2 {
		t.Fatalf("expected 2 subscribers, got %d", got)
	}
}

func TestHubLeaveAnnouncesToRemaining(t *testing.T) {
	env := newTestEnv(t, "alice", "bob")
	a := env.connect(t, "a", "alice")
	b := env.connect(t, "b", "bob")

	env.do(t, a, JoinRoom{Room: "general"})
	env.do(t, b, JoinRoom{Room: "general"})
	drain(a.Events)
	drain(b.Events)

	env.do(t, a, LeaveRoom{Room: "general"})
	leftEv := mustEvent(t, b.Events, EventUserLeft)
	if leftEv.User != "alice" || leftEv.Key != RoomKey("general") {
		t.Fatalf("unexpected leave event: %+v", leftEv)
	}

	env.do(t, b, SendRoomMessage{Room: "general", Text: "still here?"})
	noEvent(t, a.Events, EventMessage)

	// Leaving a room that was never joined is harmless.
	env.do(t, a, LeaveRoom{Room: "ghost"})
}

func TestHubTypingExcludesOriginator(t *testing.T) {
	env := newTestEnv(t, "alice", "bob", "carol")
	a := env.connect(t, "a", "alice")
	b := env.connect(t, "b", "bob")
	c := env.connect(t, "c", "carol")
	for _, cl := range []*Client{a, b, c} {
		env.do(t, cl, JoinRoom{Room: "Tech"})
	}
	for _, cl := range []*Client{a, b, c} {
		drain(cl.Events)
	}

	env.do(t, a, StartTyping{Room: "Tech"})
	for _, cl := range []*Client{b, c} {
		if ev := mustEvent(t, cl.Events, EventTyping); ev.User != "alice" {
			t.Fatalf("unexpected typing event: %+v", ev)
		}
	}
	noEvent(t, a.Events, EventTyping)

	env.do(t, a, StopTyping{Room: "Tech"})
	mustEvent(t, b.Events, EventStopTyping)
	noEvent(t, a.Events, EventStopTyping)

	msgs, err := env.store.ListRoomMessages(context.Background(), "Tech", 10)
	if err != nil || len(msgs) != 0 {
		t.Fatalf("typing must not persist anything: %v, %v", msgs, err)
	}
}

func TestHubPrivateDyadIsSymmetric(t *testing.T) {
	env := newTestEnv(t, "alice", "bob", "carol")
	a := env.connect(t, "a", "alice")
	b := env.connect(t, "b", "bob")
	c := env.connect(t, "c", "carol")

	env.do(t, a, JoinPrivate{PeerID: env.users["bob"].UserID})
	env.do(t, b, JoinPrivate{PeerID: env.users["alice"].UserID})
	env.do(t, c, JoinPrivate{PeerID: env.users["alice"].UserID})

	ackA := mustEvent(t, a.Events, EventSubscribed)
	ackB := mustEvent(t, b.Events, EventSubscribed)
	if ackA.Key != ackB.Key {
		t.Fatalf("dyad keys differ: %v vs %v", ackA.Key, ackB.Key)
	}

	env.do(t, a, SendPrivateMessage{Peer: "bob", Text: "psst"})

	for _, cl := range []*Client{a, b} {
		ev := mustEvent(t, cl.Events, EventMessage)
		if ev.Message.Sender != "alice" || ev.Message.Receiver != "bob" || ev.Message.Scope != ScopePrivate {
			t.Fatalf("unexpected private message: %+v", ev.Message)
		}
	}
	noEvent(t, c.Events, EventMessage)

	ctx := context.Background()
	fromAlice, err := env.hub.History(ctx, env.users["alice"], HistoryQuery{Scope: ScopePrivate, Peer: "bob"})
	if err != nil {
		t.Fatalf("alice history: %v", err)
	}
	fromBob, err := env.hub.History(ctx, env.users["bob"], HistoryQuery{Scope: ScopePrivate, Peer: "alice"})
	if err != nil {
		t.Fatalf("bob history: %v", err)
	}
	if len(fromAlice) != 1 || len(fromBob) != 1 {
		t.Fatalf("expected one row each, got %d and %d", len(fromAlice), len(fromBob))
	}
	if fromAlice[0].ID != fromBob[0].ID ||
		fromAlice[0].SenderID != env.users["alice"].UserID ||
		fromBob[0].ReceiverID != env.users["bob"].UserID {
		t.Fatalf("histories disagree: %+v vs %+v", fromAlice[0], fromBob[0])
	}
}

func TestHubPrivateMessageUnknownPeer(t *testing.T) {
	env := newTestEnv(t, "alice")
	a := env.connect(t, "a", "alice")

	err := env.hub.Handle(context.Background(), a, SendPrivateMessage{Peer: "ghost", Text: "hello?"})
	if !errors.Is(err, ErrUnknownUser) {
		t.Fatalf("expected ErrUnknownUser, got %v", err)
	}

	err = env.hub.Handle(context.Background(), a, JoinPrivate{PeerID: 999})
	if !errors.Is(err, ErrUnknownUser) {
		t.Fatalf("expected ErrUnknownUser on join, got %v", err)
	}
}

func TestHubGroupMembershipEnforced(t *testing.T) {
	env := newTestEnv(t, "alice", "bob", "mallory")
	groupID := env.group(t, "team", "alice", "bob")

	a := env.connect(t, "a", "alice")
	b := env.connect(t, "b", "bob")
	m := env.connect(t, "m", "mallory")
	ctx := context.Background()

	env.do(t, a, JoinGroup{GroupID: groupID})
	env.do(t, b, JoinGroup{GroupID: groupID})
	if ev := mustEvent(t, a.Events, EventUserJoined); ev.User != "alice" {
		t.Fatalf("unexpected join: %+v", ev)
	}

	if err := env.hub.Handle(ctx, m, JoinGroup{GroupID: groupID}); !errors.Is(err, ErrNotAMember) {
		t.Fatalf("expected ErrNotAMember on join, got %v", err)
	}
	if err := env.hub.Handle(ctx, m, SendGroupMessage{GroupID: groupID, Text: "let me in"}); !errors.Is(err, ErrNotAMember) {
		t.Fatalf("expected ErrNotAMember on publish, got %v", err)
	}
	if err := env.hub.Handle(ctx, a, SendGroupMessage{GroupID: 424242, Text: "anyone?"}); !errors.Is(err, ErrUnknownGroup) {
		t.Fatalf("expected ErrUnknownGroup, got %v", err)
	}

	msgs, err := env.store.ListGroupMessages(ctx, groupID, 10)
	if err != nil || len(msgs) != 0 {
		t.Fatalf("rejected publishes must not persist: %v, %v", msgs, err)
	}
	if env.hub.Registry().State("m") != StateConnected {
		t.Fatalf("rejected join must not subscribe")
	}

	drain(a.Events)
	drain(b.Events)
	env.do(t, b, SendGroupMessage{GroupID: groupID, Text: "hello team"})
	if ev := mustEvent(t, a.Events, EventMessage); ev.Message.GroupID != groupID || ev.Message.Text != "hello team" {
		t.Fatalf("unexpected group message: %+v", ev.Message)
	}
	noEvent(t, m.Events, EventMessage)

	if _, err := env.hub.History(ctx, env.users["mallory"], HistoryQuery{Scope: ScopeGroup, GroupID: groupID}); !errors.Is(err, ErrNotAMember) {
		t.Fatalf("expected ErrNotAMember on history, got %v", err)
	}
}

func TestHubPersistenceFailureBroadcastsNothing(t *testing.T) {
	env := newTestEnv(t, "alice", "bob")
	a := env.connect(t, "a", "alice")
	b := env.connect(t, "b", "bob")
	env.do(t, a, JoinRoom{Room: "General"})
	env.do(t, b, JoinRoom{Room: "General"})
	drain(a.Events)
	drain(b.Events)

	env.store.saveErr = errors.New("disk on fire")

	err := env.hub.Handle(context.Background(), a, SendRoomMessage{Room: "General", Text: "lost"})
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
	if ErrorCode(err) != ErrCodePersistenceFailed {
		t.Fatalf("unexpected code %q", ErrorCode(err))
	}
	noEvent(t, a.Events, EventMessage)
	noEvent(t, b.Events, EventMessage)
}

func TestHubStalledStoreFailsWithinTimeout(t *testing.T) {
	env := newTestEnv(t, "alice", "bob")
	env.rebuild(WithStoreTimeout(100 * time.Millisecond))
	a := env.connect(t, "a", "alice")
	b := env.connect(t, "b", "bob")
	env.do(t, a, JoinRoom{Room: "General"})
	env.do(t, b, JoinRoom{Room: "General"})
	drain(a.Events)
	drain(b.Events)

	env.store.stall = true

	start := time.Now()
	err := env.hub.Handle(context.Background(), a, SendRoomMessage{Room: "General", Text: "stuck"})
	elapsed := time.Since(start)

	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
	if elapsed > time.Second {
		t.Fatalf("stalled write took %v, want about 100ms", elapsed)
	}
	noEvent(t, a.Events, EventMessage)
	noEvent(t, b.Events, EventMessage)

	// The key is free again after the failed write.
	env.store.stall = false
	env.do(t, b, SendRoomMessage{Room: "General", Text: "back"})
	if ev := mustEvent(t, a.Events, EventMessage); ev.Message.Text != "back" {
		t.Fatalf("unexpected message %+v", ev.Message)
	}
}

func TestHubConcurrentPublishesArriveInIDOrder(t *testing.T) {
	const senders, perSender = 4, 10

	names := []string{"watcher"}
	for i := 0; i < senders; i++ {
		names = append(names, fmt.Sprintf("sender%d", i))
	}
	env := newTestEnv(t, names...)
	env.rebuild(WithStoreTimeout(time.Second), WithClientBuffer(senders*perSender+8))

	w := env.connect(t, "w", "watcher")
	env.do(t, w, JoinRoom{Room: "General"})
	drain(w.Events)

	var wg sync.WaitGroup
	errs := make(chan error, senders*perSender)
	for i := 0; i < senders; i++ {
		who := env.users[fmt.Sprintf("sender%d", i)]
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perSender; j++ {
				if _, err := env.hub.Publish(context.Background(), who, RoomTarget("General"), fmt.Sprintf("m%d", j)); err != nil {
					errs <- err
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("publish: %v", err)
	}

	var last int64
	for i := 0; i < senders*perSender; i++ {
		ev := mustEvent(t, w.Events, EventMessage)
		if ev.Message.ID <= last {
			t.Fatalf("message %d arrived after %d", ev.Message.ID, last)
		}
		last = ev.Message.ID
	}
}

func TestHubReadReceiptIsIdempotent(t *testing.T) {
	env := newTestEnv(t, "alice", "bob")
	a := env.connect(t, "a", "alice")
	b := env.connect(t, "b", "bob")
	ctx := context.Background()

	env.do(t, a, JoinPrivate{PeerID: env.users["bob"].UserID})
	env.do(t, b, JoinPrivate{PeerID: env.users["alice"].UserID})

	msg, err := env.hub.Publish(ctx, env.users["alice"], PrivateTarget("bob"), "read me")
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	drain(a.Events)
	drain(b.Events)

	env.do(t, b, MarkRead{MessageID: msg.ID})
	receipt := mustEvent(t, a.Events, EventReadReceipt)
	if receipt.MessageID != msg.ID || receipt.User != "bob" {
		t.Fatalf("unexpected receipt: %+v", receipt)
	}
	drain(a.Events)
	drain(b.Events)

	// Second mark: no error, no second notification.
	env.do(t, b, MarkRead{MessageID: msg.ID})
	noEvent(t, a.Events, EventReadReceipt)

	stored, err := env.store.GetMessage(ctx, msg.ID)
	if err != nil || !stored.Read {
		t.Fatalf("expected read=true, got %+v err=%v", stored, err)
	}

	// Unknown ids are tolerated silently.
	env.do(t, b, MarkRead{MessageID: 987654})
}

func TestHubReadReceiptRoutesToRoom(t *testing.T) {
	env := newTestEnv(t, "alice", "bob")
	a := env.connect(t, "a", "alice")
	b := env.connect(t, "b", "bob")
	env.do(t, a, JoinRoom{Room: "Random"})
	env.do(t, b, JoinRoom{Room: "Random"})

	msg, err := env.hub.Publish(context.Background(), env.users["alice"], RoomTarget("Random"), "hello")
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	drain(a.Events)

	env.do(t, b, MarkRead{MessageID: msg.ID})
	if ev := mustEvent(t, a.Events, EventReadReceipt); ev.Key != RoomKey("Random") {
		t.Fatalf("unexpected receipt key: %v", ev.Key)
	}
}

func TestHubDisconnectDropsSubscriptions(t *testing.T) {
	env := newTestEnv(t, "alice", "bob")
	a := env.connect(t, "a", "alice")
	b := env.connect(t, "b", "bob")
	env.do(t, a, JoinRoom{Room: "General"})
	env.do(t, b, JoinRoom{Room: "General"})

	env.hub.Disconnect(a)
	if env.hub.Registry().State("a") != StateDisconnected {
		t.Fatalf("expected disconnected state")
	}
	if got := env.hub.Registry().SubscribersOf(RoomKey("General")); len(got) != 1 || got[0] != b {
		t.Fatalf("stale subscription left behind: %v", got)
	}

	// Events channel is closed once drained.
	drain(a.Events)
	if _, ok := <-a.Events; ok {
		t.Fatalf("expected closed events channel")
	}

	if err := env.hub.Handle(context.Background(), a, SendRoomMessage{Room: "General", Text: "ghost"}); !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("expected ErrNotRegistered, got %v", err)
	}

	// Disconnecting twice, or a client that never registered, is harmless.
	env.hub.Disconnect(a)
	env.hub.Disconnect(NewClient("never", Identity{}, 1))
	env.hub.Disconnect(nil)
}

func TestHubSenderCancellationStillPersists(t *testing.T) {
	env := newTestEnv(t, "alice", "bob")
	b := env.connect(t, "b", "bob")
	env.do(t, b, JoinRoom{Room: "General"})
	drain(b.Events)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	msg, err := env.hub.Publish(ctx, env.users["alice"], RoomTarget("General"), "sent before leaving")
	if err != nil {
		t.Fatalf("publish with cancelled context: %v", err)
	}
	mustEvent(t, b.Events, EventMessage)
	if _, err := env.store.GetMessage(context.Background(), msg.ID); err != nil {
		t.Fatalf("message not stored: %v", err)
	}
}

func TestHubRejectsEmptyInput(t *testing.T) {
	env := newTestEnv(t, "alice")
	a := env.connect(t, "a", "alice")
	ctx := context.Background()

	cases := []Command{
		JoinRoom{Room: " "},
		SendRoomMessage{Room: "General", Text: "   "},
		SendRoomMessage{Room: "", Text: "hi"},
		StartTyping{Room: ""},
		MarkRead{MessageID: 0},
		JoinGroup{GroupID: 0},
	}
	for _, cmd := range cases {
		if err := env.hub.Handle(ctx, a, cmd); !errors.Is(err, ErrBadRequest) {
			t.Fatalf("%#v: expected ErrBadRequest, got %v", cmd, err)
		}
	}
}
