package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Will-23-K/chatsphere/internal/store"
)

func TestTransitionCreatesRoomLazily(t *testing.T) {
	svc := newTestService(t, Options{})
	ctx := context.Background()

	carol := svc.Connect(ctx, "carol")
	res, err := svc.TransitionTo(ctx, carol, "Brand-New")
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if !res.Created {
		t.Fatal("first join to a missing room must create it")
	}
	if res.Room.Name != "brand-new" {
		t.Fatalf("expected normalized name brand-new, got %q", res.Room.Name)
	}
	if len(res.History) != 0 {
		t.Fatalf("fresh room must have empty history, got %d messages", len(res.History))
	}
	if !equalStrings(res.OnlineUsers, []string{"carol"}) {
		t.Fatalf("expected online users [carol], got %v", res.OnlineUsers)
	}

	// A second creation attempt resolves to the existing room.
	dave := svc.Connect(ctx, "dave")
	res2, err := svc.CreateRoom(ctx, dave, "brand-new", "desc")
	if err != nil {
		t.Fatalf("create existing room: %v", err)
	}
	if res2.Created {
		t.Fatal("existing room must not be created again")
	}
	if res2.Room.CreatedBy != "carol" {
		t.Fatalf("existing room must keep its creator, got %q", res2.Room.CreatedBy)
	}
}

func TestTransitionRejectsBadRoomName(t *testing.T) {
	svc := newTestService(t, Options{})
	ctx := context.Background()

	alice := svc.Connect(ctx, "alice")
	if _, err := svc.TransitionTo(ctx, alice, "x"); err == nil {
		t.Fatal("expected validation error for one-character room name")
	}
	if got := len(svc.OnlineUsersIn("x")); got != 0 {
		t.Fatalf("rejected join must not change membership, got %d users", got)
	}
}

func TestJoinBroadcastsToExistingMembers(t *testing.T) {
	svc := newTestService(t, Options{})
	ctx := context.Background()

	alice := svc.Connect(ctx, "alice")
	if _, err := svc.TransitionTo(ctx, alice, "general"); err != nil {
		t.Fatalf("alice join: %v", err)
	}
	drainEvents(alice.Events)

	bob := svc.Connect(ctx, "bob")
	if _, err := svc.TransitionTo(ctx, bob, "general"); err != nil {
		t.Fatalf("bob join: %v", err)
	}

	notice := mustEvent(t, alice.Events, EventReceiveMessage)
	if notice.Message == nil || notice.Message.Author != SystemUser || notice.Message.Kind != store.KindJoin {
		t.Fatalf("expected system join notice, got %+v", notice.Message)
	}

	joined := mustEvent(t, alice.Events, EventUserJoinedRoom)
	if joined.User != "bob" || joined.Room != "general" {
		t.Fatalf("unexpected join event: %+v", joined)
	}
	if !equalStrings(joined.OnlineUsers, []string{"alice", "bob"}) {
		t.Fatalf("expected online users [alice bob], got %v", joined.OnlineUsers)
	}

	// The joiner learns of its own join through the transition result only.
	noEvent(t, bob.Events, EventUserJoinedRoom)
}

func TestSendMessageFanout(t *testing.T) {
	svc := newTestService(t, Options{})
	ctx := context.Background()

	alice := svc.Connect(ctx, "alice")
	bob := svc.Connect(ctx, "bob")
	if _, err := svc.TransitionTo(ctx, alice, "general"); err != nil {
		t.Fatalf("alice join: %v", err)
	}
	if _, err := svc.TransitionTo(ctx, bob, "general"); err != nil {
		t.Fatalf("bob join: %v", err)
	}
	drainEvents(alice.Events)
	drainEvents(bob.Events)

	msg, err := svc.SendMessage(ctx, "alice", "general", "hi there", nil)
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	got := mustEvent(t, bob.Events, EventReceiveMessage)
	if got.Message.ID != msg.ID || got.Message.Text != "hi there" || got.Message.Author != "alice" {
		t.Fatalf("unexpected message event: %+v", got.Message)
	}
	notif := mustEvent(t, bob.Events, EventNewMessageNotification)
	if notif.User != "alice" || notif.Preview != "hi there" {
		t.Fatalf("unexpected notification: %+v", notif)
	}

	// The sender sees its own message but no notification.
	own := mustEvent(t, alice.Events, EventReceiveMessage)
	if own.Message.ID != msg.ID {
		t.Fatalf("expected own message %s, got %s", msg.ID, own.Message.ID)
	}
	noEvent(t, alice.Events, EventNewMessageNotification)
}

func TestSendMessageValidation(t *testing.T) {
	svc := newTestService(t, Options{})
	ctx := context.Background()

	alice := svc.Connect(ctx, "alice")
	if _, err := svc.TransitionTo(ctx, alice, "general"); err != nil {
		t.Fatalf("join: %v", err)
	}

	if _, err := svc.SendMessage(ctx, "alice", "general", "   ", nil); err == nil {
		t.Fatal("expected validation error for blank text")
	}
	if _, err := svc.SendMessage(ctx, "alice", "ghostroom", "hi", nil); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}

	// A file-only message is valid.
	file := &store.FileInfo{Name: "pic.png", MediaType: "image/png", Size: 10, URL: "/uploads/pic.png"}
	msg, err := svc.SendMessage(ctx, "alice", "general", "", file)
	if err != nil {
		t.Fatalf("file message: %v", err)
	}
	if msg.Kind != store.KindImage {
		t.Fatalf("expected image kind, got %q", msg.Kind)
	}
}

func TestHistoryWindowScopedToJoin(t *testing.T) {
	svc := newTestService(t, Options{})
	ctx := context.Background()

	alice := svc.Connect(ctx, "alice")
	if _, err := svc.TransitionTo(ctx, alice, "general"); err != nil {
		t.Fatalf("alice join: %v", err)
	}
	if _, err := svc.SendMessage(ctx, "alice", "general", "before bob", nil); err != nil {
		t.Fatalf("send: %v", err)
	}

	time.Sleep(20 * time.Millisecond)

	bob := svc.Connect(ctx, "bob")
	res, err := svc.TransitionTo(ctx, bob, "general")
	if err != nil {
		t.Fatalf("bob join: %v", err)
	}
	for _, m := range res.History {
		if m.CreatedAt.Before(res.JoinedAt) {
			t.Fatalf("history leaked message %q created before join", m.Text)
		}
		if m.Text == "before bob" {
			t.Fatal("bob must not see messages predating his join")
		}
	}

	// Messages after the join arrive live.
	drainEvents(bob.Events)
	if _, err := svc.SendMessage(ctx, "alice", "general", "after bob", nil); err != nil {
		t.Fatalf("send: %v", err)
	}
	got := mustEvent(t, bob.Events, EventReceiveMessage)
	if got.Message.Text != "after bob" {
		t.Fatalf("expected live delivery of new message, got %q", got.Message.Text)
	}
}

func TestRejoinResetsVisibilityWindow(t *testing.T) {
	svc := newTestService(t, Options{})
	ctx := context.Background()

	alice := svc.Connect(ctx, "alice")
	if _, err := svc.TransitionTo(ctx, alice, "general"); err != nil {
		t.Fatalf("first join: %v", err)
	}
	if _, err := svc.SendMessage(ctx, "alice", "general", "old news", nil); err != nil {
		t.Fatalf("send: %v", err)
	}

	time.Sleep(20 * time.Millisecond)

	if _, err := svc.TransitionTo(ctx, alice, "random"); err != nil {
		t.Fatalf("switch away: %v", err)
	}
	res, err := svc.TransitionTo(ctx, alice, "general")
	if err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	for _, m := range res.History {
		if m.Text == "old news" {
			t.Fatal("rejoin must not resurrect messages from before the new join")
		}
	}
}

func TestSingleRoomPolicyLeavesPreviousRoom(t *testing.T) {
	svc := newTestService(t, Options{})
	ctx := context.Background()

	alice := svc.Connect(ctx, "alice")
	bob := svc.Connect(ctx, "bob")
	if _, err := svc.TransitionTo(ctx, alice, "general"); err != nil {
		t.Fatalf("alice join: %v", err)
	}
	if _, err := svc.TransitionTo(ctx, bob, "general"); err != nil {
		t.Fatalf("bob join: %v", err)
	}
	drainEvents(alice.Events)

	if _, err := svc.TransitionTo(ctx, bob, "random"); err != nil {
		t.Fatalf("bob switch: %v", err)
	}

	left := mustEvent(t, alice.Events, EventUserLeftRoom)
	if left.User != "bob" || left.Room != "general" {
		t.Fatalf("unexpected leave event: %+v", left)
	}
	if !equalStrings(left.OnlineUsers, []string{"alice"}) {
		t.Fatalf("expected online users [alice], got %v", left.OnlineUsers)
	}
	if !equalStrings(svc.OnlineUsersIn("general"), []string{"alice"}) {
		t.Fatalf("bob must be gone from general, got %v", svc.OnlineUsersIn("general"))
	}
}

func TestMultiRoomPolicyKeepsMemberships(t *testing.T) {
	svc := newTestService(t, Options{MultiRoom: true})
	ctx := context.Background()

	alice := svc.Connect(ctx, "alice")
	if _, err := svc.TransitionTo(ctx, alice, "general"); err != nil {
		t.Fatalf("join general: %v", err)
	}
	if _, err := svc.TransitionTo(ctx, alice, "random"); err != nil {
		t.Fatalf("join random: %v", err)
	}

	if !equalStrings(svc.OnlineUsersIn("general"), []string{"alice"}) {
		t.Fatalf("alice must remain in general, got %v", svc.OnlineUsersIn("general"))
	}
	if !equalStrings(svc.OnlineUsersIn("random"), []string{"alice"}) {
		t.Fatalf("alice must be in random, got %v", svc.OnlineUsersIn("random"))
	}
}

func TestDeleteMessageIsAuthorOnlyAndIdempotent(t *testing.T) {
	svc := newTestService(t, Options{})
	ctx := context.Background()

	alice := svc.Connect(ctx, "alice")
	bob := svc.Connect(ctx, "bob")
	if _, err := svc.TransitionTo(ctx, alice, "general"); err != nil {
		t.Fatalf("alice join: %v", err)
	}
	if _, err := svc.TransitionTo(ctx, bob, "general"); err != nil {
		t.Fatalf("bob join: %v", err)
	}

	msg, err := svc.SendMessage(ctx, "alice", "general", "delete me", nil)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	drainEvents(bob.Events)

	if err := svc.DeleteMessage(ctx, "bob", msg.ID, "general"); !errors.Is(err, ErrNotAuthor) {
		t.Fatalf("expected ErrNotAuthor for foreign delete, got %v", err)
	}

	if err := svc.DeleteMessage(ctx, "alice", msg.ID, "general"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	ev := mustEvent(t, bob.Events, EventMessageDeleted)
	if ev.MessageID != msg.ID || ev.User != "alice" {
		t.Fatalf("unexpected delete event: %+v", ev)
	}

	// Repeating the delete reports not-found and emits nothing.
	drainEvents(bob.Events)
	if err := svc.DeleteMessage(ctx, "alice", msg.ID, "general"); !errors.Is(err, ErrMessageNotFound) {
		t.Fatalf("expected ErrMessageNotFound on re-delete, got %v", err)
	}
	noEvent(t, bob.Events, EventMessageDeleted)

	// The deleted message is absent from subsequent history fetches.
	carol := svc.Connect(ctx, "carol")
	res, err := svc.TransitionTo(ctx, carol, "general")
	if err != nil {
		t.Fatalf("carol join: %v", err)
	}
	for _, m := range res.History {
		if m.ID == msg.ID {
			t.Fatal("deleted message leaked into history")
		}
	}
}

func TestReactionsAreAddOnlyAndAggregate(t *testing.T) {
	svc := newTestService(t, Options{})
	ctx := context.Background()

	alice := svc.Connect(ctx, "alice")
	bob := svc.Connect(ctx, "bob")
	if _, err := svc.TransitionTo(ctx, alice, "general"); err != nil {
		t.Fatalf("alice join: %v", err)
	}
	if _, err := svc.TransitionTo(ctx, bob, "general"); err != nil {
		t.Fatalf("bob join: %v", err)
	}

	msg, err := svc.SendMessage(ctx, "alice", "general", "react to me", nil)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	drainEvents(alice.Events)

	reactions, err := svc.AddReaction(ctx, "alice", msg.ID, "general", "👍")
	if err != nil {
		t.Fatalf("first reaction: %v", err)
	}
	if len(reactions) != 1 || reactions[0].Count() != 1 {
		t.Fatalf("expected single reaction with count 1, got %+v", reactions)
	}

	reactions, err = svc.AddReaction(ctx, "bob", msg.ID, "general", "👍")
	if err != nil {
		t.Fatalf("second reaction: %v", err)
	}
	if len(reactions) != 1 || reactions[0].Count() != 2 {
		t.Fatalf("expected count 2 after second user, got %+v", reactions)
	}
	if !equalStrings(reactions[0].Users, []string{"alice", "bob"}) {
		t.Fatalf("expected users [alice bob], got %v", reactions[0].Users)
	}

	// Repeating the same reaction is a no-op.
	reactions, err = svc.AddReaction(ctx, "alice", msg.ID, "general", "👍")
	if err != nil {
		t.Fatalf("repeat reaction: %v", err)
	}
	if reactions[0].Count() != 2 {
		t.Fatalf("repeat reaction must not change count, got %d", reactions[0].Count())
	}

	ev := mustEvent(t, alice.Events, EventMessageUpdated)
	if ev.MessageID != msg.ID || len(ev.Reactions) == 0 {
		t.Fatalf("unexpected update event: %+v", ev)
	}

	if _, err := svc.AddReaction(ctx, "alice", msg.ID, "general", " "); err == nil {
		t.Fatal("expected validation error for blank emoji")
	}
	if _, err := svc.AddReaction(ctx, "alice", "no-such-id", "general", "👍"); !errors.Is(err, ErrMessageNotFound) {
		t.Fatalf("expected ErrMessageNotFound, got %v", err)
	}
}

func TestTypingIndicatorExcludesSender(t *testing.T) {
	svc := newTestService(t, Options{})
	ctx := context.Background()

	alice := svc.Connect(ctx, "alice")
	bob := svc.Connect(ctx, "bob")
	if _, err := svc.TransitionTo(ctx, alice, "general"); err != nil {
		t.Fatalf("alice join: %v", err)
	}
	if _, err := svc.TransitionTo(ctx, bob, "general"); err != nil {
		t.Fatalf("bob join: %v", err)
	}
	drainEvents(alice.Events)
	drainEvents(bob.Events)

	svc.SetTyping("alice", "general", true)

	ev := mustEvent(t, bob.Events, EventUserTyping)
	if ev.User != "alice" || !ev.IsTyping {
		t.Fatalf("unexpected typing event: %+v", ev)
	}
	noEvent(t, alice.Events, EventUserTyping)
}

func TestDisconnectBroadcastsSingleLeave(t *testing.T) {
	svc := newTestService(t, Options{})
	ctx := context.Background()

	alice := svc.Connect(ctx, "alice")
	bob := svc.Connect(ctx, "bob")
	if _, err := svc.TransitionTo(ctx, alice, "general"); err != nil {
		t.Fatalf("alice join: %v", err)
	}
	if _, err := svc.TransitionTo(ctx, bob, "general"); err != nil {
		t.Fatalf("bob join: %v", err)
	}
	drainEvents(alice.Events)

	svc.Disconnect(ctx, bob)

	notice := mustEvent(t, alice.Events, EventReceiveMessage)
	if notice.Message == nil || notice.Message.Kind != store.KindLeave {
		t.Fatalf("expected leave notice, got %+v", notice.Message)
	}
	left := mustEvent(t, alice.Events, EventUserLeftRoom)
	if left.User != "bob" || !equalStrings(left.OnlineUsers, []string{"alice"}) {
		t.Fatalf("unexpected leave event: %+v", left)
	}
	if !equalStrings(svc.OnlineUsersIn("general"), []string{"alice"}) {
		t.Fatalf("bob must be offline in general, got %v", svc.OnlineUsersIn("general"))
	}

	select {
	case <-bob.Done():
	default:
		t.Fatal("done channel must be closed after disconnect")
	}

	// A second disconnect is a no-op: no duplicate leave broadcast.
	drainEvents(alice.Events)
	svc.Disconnect(ctx, bob)
	noEvent(t, alice.Events, EventUserLeftRoom)
}

func TestSecondLoginTakesOverPresence(t *testing.T) {
	svc := newTestService(t, Options{})
	ctx := context.Background()

	bob := svc.Connect(ctx, "bob")
	if _, err := svc.TransitionTo(ctx, bob, "general"); err != nil {
		t.Fatalf("bob join: %v", err)
	}

	first := svc.Connect(ctx, "alice")
	if _, err := svc.TransitionTo(ctx, first, "general"); err != nil {
		t.Fatalf("alice first join: %v", err)
	}
	drainEvents(bob.Events)

	// Second login evicts the first connection's memberships.
	second := svc.Connect(ctx, "alice")

	left := mustEvent(t, bob.Events, EventUserLeftRoom)
	if left.User != "alice" || left.Room != "general" {
		t.Fatalf("unexpected eviction event: %+v", left)
	}

	// The stale connection can no longer transition.
	if _, err := svc.TransitionTo(ctx, first, "general"); !errors.Is(err, ErrConnectionGone) {
		t.Fatalf("expected ErrConnectionGone for evicted connection, got %v", err)
	}

	// The new connection works normally.
	if _, err := svc.TransitionTo(ctx, second, "general"); err != nil {
		t.Fatalf("new connection join: %v", err)
	}
	if !equalStrings(svc.OnlineUsersIn("general"), []string{"alice", "bob"}) {
		t.Fatalf("expected [alice bob] online, got %v", svc.OnlineUsersIn("general"))
	}

	// A late disconnect of the evicted connection must not knock alice offline.
	svc.Disconnect(ctx, first)
	if !svc.Registry().IsOnline("alice") {
		t.Fatal("stale disconnect must not unregister the new connection")
	}
	if !equalStrings(svc.OnlineUsersIn("general"), []string{"alice", "bob"}) {
		t.Fatalf("stale disconnect changed presence: %v", svc.OnlineUsersIn("general"))
	}
}

func TestRoomCreatedIsAnnouncedGlobally(t *testing.T) {
	svc := newTestService(t, Options{})
	ctx := context.Background()

	alice := svc.Connect(ctx, "alice")
	if _, err := svc.TransitionTo(ctx, alice, "general"); err != nil {
		t.Fatalf("alice join: %v", err)
	}
	// Bob is connected but in no room; global events still reach him.
	bob := svc.Connect(ctx, "bob")

	carol := svc.Connect(ctx, "carol")
	if _, err := svc.CreateRoom(ctx, carol, "hangout", "chill zone"); err != nil {
		t.Fatalf("create room: %v", err)
	}

	for _, ch := range []<-chan *Event{alice.Events, bob.Events} {
		ev := mustEvent(t, ch, EventRoomCreated)
		if ev.RoomInfo == nil || ev.RoomInfo.Name != "hangout" || ev.RoomInfo.CreatedBy != "carol" {
			t.Fatalf("unexpected room created event: %+v", ev.RoomInfo)
		}
	}
}

func TestListRoomsReportsLiveCounts(t *testing.T) {
	svc := newTestService(t, Options{})
	ctx := context.Background()

	alice := svc.Connect(ctx, "alice")
	bob := svc.Connect(ctx, "bob")
	if _, err := svc.TransitionTo(ctx, alice, "general"); err != nil {
		t.Fatalf("alice join: %v", err)
	}
	if _, err := svc.TransitionTo(ctx, bob, "general"); err != nil {
		t.Fatalf("bob join: %v", err)
	}
	carol := svc.Connect(ctx, "carol")
	if _, err := svc.TransitionTo(ctx, carol, "random"); err != nil {
		t.Fatalf("carol join: %v", err)
	}

	rooms, err := svc.ListRooms(ctx)
	if err != nil {
		t.Fatalf("list rooms: %v", err)
	}
	counts := make(map[string]int, len(rooms))
	for _, r := range rooms {
		counts[r.Name] = r.UserCount
	}
	if counts["general"] != 2 || counts["random"] != 1 {
		t.Fatalf("unexpected user counts: %v", counts)
	}
}
