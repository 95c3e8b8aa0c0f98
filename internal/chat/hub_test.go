package chat

import (
	"testing"

	"github.com/rs/zerolog"
)

func newTestHub() *Hub {
	logger := zerolog.Nop()
	return NewHub(&logger)
}

func TestHubRoomBroadcast(t *testing.T) {
	hub := newTestHub()

	alice := NewSession(1, "alice", 2, "bob", 8)
	bob := NewSession(2, "bob", 1, "alice", 8)
	hub.Register(alice)
	hub.Register(bob)

	drainEvents(alice.Events)
	drainEvents(bob.Events)

	hub.BroadcastRoom(RoomKey(1, 2), &Event{Kind: EventSeen, MessageID: 5})

	for _, s := range []*Session{alice, bob} {
		ev := mustEvent(t, s.Events, EventSeen)
		if ev.MessageID != 5 {
			t.Fatalf("unexpected event: %+v", ev)
		}
	}
}

func TestHubPublishScopedToUser(t *testing.T) {
	hub := newTestHub()

	alice := NewNotificationSession(1, "alice", 8)
	aliceTab2 := NewNotificationSession(1, "alice", 8)
	bob := NewNotificationSession(2, "bob", 8)
	hub.Register(alice)
	hub.Register(aliceTab2)
	hub.Register(bob)

	drainEvents(alice.Events)
	drainEvents(aliceTab2.Events)
	drainEvents(bob.Events)

	hub.Publish(1, &Event{Kind: EventUnseenCount, UnseenCount: 3})

	// Every session of user 1 gets the push.
	for _, s := range []*Session{alice, aliceTab2} {
		ev := mustEvent(t, s.Events, EventUnseenCount)
		if ev.UnseenCount != 3 {
			t.Fatalf("unexpected count: %+v", ev)
		}
	}

	select {
	case ev := <-bob.Events:
		if ev.Kind == EventUnseenCount {
			t.Fatalf("bob should not receive alice's count: %+v", ev)
		}
	default:
	}
}

func TestHubPresenceBroadcastOnTransitions(t *testing.T) {
	hub := newTestHub()

	alice := NewNotificationSession(1, "alice", 8)
	hub.Register(alice)
	mustEvent(t, alice.Events, EventOnlineStatus)

	// A second session of the same user is not a presence transition.
	aliceTab2 := NewNotificationSession(1, "alice", 8)
	hub.Register(aliceTab2)
	select {
	case ev := <-alice.Events:
		if ev.Kind == EventOnlineStatus {
			t.Fatalf("no presence change expected: %+v", ev)
		}
	default:
	}

	// A new user coming online is.
	bob := NewNotificationSession(2, "bob", 8)
	hub.Register(bob)
	ev := mustEvent(t, alice.Events, EventOnlineStatus)
	if len(ev.OnlineIDs) != 2 {
		t.Fatalf("expected two online users, got %v", ev.OnlineIDs)
	}
	drainEvents(bob.Events)

	// Closing one of two tabs keeps the user online.
	hub.Unregister(aliceTab2)
	select {
	case ev := <-bob.Events:
		if ev.Kind == EventOnlineStatus {
			t.Fatalf("alice flapped offline: %+v", ev)
		}
	default:
	}

	hub.Unregister(alice)
	ev = mustEvent(t, bob.Events, EventOnlineStatus)
	if len(ev.OnlineIDs) != 1 || ev.OnlineIDs[0] != 2 {
		t.Fatalf("expected only bob online, got %v", ev.OnlineIDs)
	}
}

func TestHubUnregisterClosesQueue(t *testing.T) {
	hub := newTestHub()

	s := NewNotificationSession(1, "alice", 8)
	hub.Register(s)
	hub.Unregister(s)

	if _, ok := <-s.Events; ok {
		// Drain the presence event that arrived before unregister; the
		// channel must eventually report closed.
		for range s.Events {
		}
	}

	// Double unregister must be a no-op, not a panic.
	hub.Unregister(s)

	// Publishing to a gone user must not panic either.
	hub.Publish(1, &Event{Kind: EventUnseenCount, UnseenCount: 1})
}

func TestHubDropsWhenQueueFull(t *testing.T) {
	hub := newTestHub()

	s := NewNotificationSession(1, "alice", 1)
	hub.Register(s)
	drainEvents(s.Events)

	hub.Publish(1, &Event{Kind: EventUnseenCount, UnseenCount: 1})
	hub.Publish(1, &Event{Kind: EventUnseenCount, UnseenCount: 2})
	hub.Publish(1, &Event{Kind: EventUnseenCount, UnseenCount: 3})

	// Queue capacity is one: the first event is kept, the rest dropped.
	ev := <-s.Events
	if ev.UnseenCount != 1 {
		t.Fatalf("expected first event kept, got %+v", ev)
	}
	select {
	case ev := <-s.Events:
		t.Fatalf("expected overflow to be dropped, got %+v", ev)
	default:
	}
}
