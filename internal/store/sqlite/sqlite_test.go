package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/pixelclasses/chat-server/internal/store"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedUsers(t *testing.T, s *SQLiteStore, names ...string) []*store.User {
	t.Helper()
	ctx := context.Background()
	users := make([]*store.User, 0, len(names))
	for _, name := range names {
		u, err := s.CreateUser(ctx, name, name+"@example.com", "hash")
		if err != nil {
			t.Fatalf("failed to create user %s: %v", name, err)
		}
		users = append(users, u)
	}
	return users
}

func TestCreateAndGetUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created := seedUsers(t, s, "alice")[0]
	if created.ID == 0 || created.Username != "alice" || created.Email != "alice@example.com" {
		t.Fatalf("unexpected user: %+v", created)
	}

	byName, err := s.GetUserByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("get by username: %v", err)
	}
	if byName.ID != created.ID {
		t.Fatalf("id mismatch: %d vs %d", byName.ID, created.ID)
	}

	if _, err := s.GetUserByID(ctx, 9999); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateUserDuplicateUsername(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedUsers(t, s, "alice")

	_, err := s.CreateUser(ctx, "alice", "other@example.com", "hash")
	if !errors.Is(err, store.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestSearchUsers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedUsers(t, s, "alice", "alex", "alan", "bob", "charlie")

	tests := []struct {
		name     string
		query    string
		expected []string
	}{
		{name: "search 'al'", query: "al", expected: []string{"alan", "alex", "alice"}},
		{name: "search 'li'", query: "li", expected: []string{"alice", "charlie"}},
		{name: "search non-existent", query: "z", expected: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := s.SearchUsers(ctx, tt.query)
			if err != nil {
				t.Fatalf("SearchUsers failed: %v", err)
			}
			if len(results) != len(tt.expected) {
				t.Fatalf("expected %d results, got %d", len(tt.expected), len(results))
			}
			for i, u := range results {
				if u.Username != tt.expected[i] {
					t.Errorf("result %d: expected %s, got %s", i, tt.expected[i], u.Username)
				}
			}
		})
	}
}

func TestSearchUsersEscapesWildcards(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedUsers(t, s, "mr_underscore", "mrxunderscore")

	results, err := s.SearchUsers(ctx, "r_u")
	if err != nil {
		t.Fatalf("SearchUsers failed: %v", err)
	}
	if len(results) != 1 || results[0].Username != "mr_underscore" {
		t.Fatalf("underscore should match literally, got %+v", results)
	}

	results, err = s.SearchUsers(ctx, "%")
	if err != nil {
		t.Fatalf("SearchUsers failed: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("percent should match nothing, got %+v", results)
	}
}

func TestProfileDefaults(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := seedUsers(t, s, "alice")[0]

	p, err := s.GetProfile(ctx, alice.ID)
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if p.ProfilePic != store.DefaultProfilePic {
		t.Fatalf("expected default pic, got %q", p.ProfilePic)
	}

	if err := s.UpsertProfile(ctx, &store.Profile{UserID: alice.ID, ProfilePic: "custom.png"}); err != nil {
		t.Fatalf("upsert profile: %v", err)
	}
	p, err = s.GetProfile(ctx, alice.ID)
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if p.ProfilePic != "custom.png" {
		t.Fatalf("expected custom pic, got %q", p.ProfilePic)
	}
}

func TestFollowEdges(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	users := seedUsers(t, s, "alice", "bob", "carol")
	alice, bob, carol := users[0], users[1], users[2]

	if err := s.CreateFollow(ctx, alice.ID, bob.ID); err != nil {
		t.Fatalf("follow: %v", err)
	}
	// Duplicate edge is a no-op.
	if err := s.CreateFollow(ctx, alice.ID, bob.ID); err != nil {
		t.Fatalf("duplicate follow: %v", err)
	}
	if err := s.CreateFollow(ctx, carol.ID, alice.ID); err != nil {
		t.Fatalf("follow: %v", err)
	}

	following, err := s.ListFollowing(ctx, alice.ID)
	if err != nil {
		t.Fatalf("list following: %v", err)
	}
	if len(following) != 1 || following[0] != bob.ID {
		t.Fatalf("unexpected following: %v", following)
	}

	ok, err := s.IsFollowing(ctx, alice.ID, bob.ID)
	if err != nil || !ok {
		t.Fatalf("expected alice to follow bob: ok=%v err=%v", ok, err)
	}
	ok, err = s.IsFollowing(ctx, bob.ID, alice.ID)
	if err != nil || ok {
		t.Fatalf("edge is directed: ok=%v err=%v", ok, err)
	}

	followers, err := s.ListFollowers(ctx, alice.ID)
	if err != nil {
		t.Fatalf("list followers: %v", err)
	}
	if len(followers) != 1 || followers[0] != carol.ID {
		t.Fatalf("unexpected followers: %v", followers)
	}

	if err := s.DeleteFollow(ctx, alice.ID, bob.ID); err != nil {
		t.Fatalf("unfollow: %v", err)
	}
	following, err = s.ListFollowing(ctx, alice.ID)
	if err != nil {
		t.Fatalf("list following: %v", err)
	}
	if len(following) != 0 {
		t.Fatalf("expected no following, got %v", following)
	}
}

func TestCreateMessageRequiresParticipants(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := seedUsers(t, s, "alice")[0]

	if _, err := s.CreateMessage(ctx, alice.ID, 999, "hello?"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown receiver, got %v", err)
	}
	if _, err := s.CreateMessage(ctx, 999, alice.ID, "hello?"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown sender, got %v", err)
	}

	// Self-messages are legal; the store does not enforce sender != receiver.
	if _, err := s.CreateMessage(ctx, alice.ID, alice.ID, "note to self"); err != nil {
		t.Fatalf("self message: %v", err)
	}
}

func TestMarkMessageSeenTransition(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	users := seedUsers(t, s, "alice", "bob")

	msg, err := s.CreateMessage(ctx, users[0].ID, users[1].ID, "hi")
	if err != nil {
		t.Fatalf("create message: %v", err)
	}
	if msg.IsSeen || msg.SeenAt != nil {
		t.Fatalf("new message should be unseen: %+v", msg)
	}

	if err := s.MarkMessageSeen(ctx, msg.ID); err != nil {
		t.Fatalf("mark seen: %v", err)
	}
	seen, err := s.GetMessageByID(ctx, msg.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !seen.IsSeen || seen.SeenAt == nil {
		t.Fatalf("seen transition not applied: %+v", seen)
	}

	// Second call is a no-op and keeps the original seen_at.
	if err := s.MarkMessageSeen(ctx, msg.ID); err != nil {
		t.Fatalf("duplicate mark seen: %v", err)
	}
	again, err := s.GetMessageByID(ctx, msg.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !again.SeenAt.Equal(*seen.SeenAt) {
		t.Fatalf("seen_at changed: %v vs %v", again.SeenAt, seen.SeenAt)
	}

	if err := s.MarkMessageSeen(ctx, 9999); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListConversation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	users := seedUsers(t, s, "alice", "bob", "carol")
	alice, bob, carol := users[0], users[1], users[2]

	texts := []struct {
		from, to int64
		text     string
	}{
		{alice.ID, bob.ID, "Hello Bob"},
		{bob.ID, alice.ID, "hi alice"},
		{alice.ID, bob.ID, "lecture notes attached"},
		{alice.ID, carol.ID, "unrelated"},
	}
	for _, m := range texts {
		if _, err := s.CreateMessage(ctx, m.from, m.to, m.text); err != nil {
			t.Fatalf("create message: %v", err)
		}
	}

	msgs, err := s.ListConversation(ctx, bob.ID, alice.ID, "")
	if err != nil {
		t.Fatalf("list conversation: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	for i := 1; i < len(msgs); i++ {
		if msgs[i].CreatedAt.Before(msgs[i-1].CreatedAt) {
			t.Fatal("messages not ordered by timestamp ascending")
		}
	}

	// Case-insensitive substring filter.
	filtered, err := s.ListConversation(ctx, alice.ID, bob.ID, "HELLO")
	if err != nil {
		t.Fatalf("filtered list: %v", err)
	}
	if len(filtered) != 1 || filtered[0].Content != "Hello Bob" {
		t.Fatalf("unexpected filter result: %+v", filtered)
	}
}

func TestListConversationFilterTreatsWildcardsLiterally(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	users := seedUsers(t, s, "alice", "bob")
	alice, bob := users[0], users[1]

	for _, text := range []string{"progress: 100% done", "fully done", "under_score", "underXscore"} {
		if _, err := s.CreateMessage(ctx, alice.ID, bob.ID, text); err != nil {
			t.Fatalf("create message: %v", err)
		}
	}

	tests := []struct {
		filter   string
		expected []string
	}{
		{filter: "%", expected: []string{"progress: 100% done"}},
		{filter: "100%", expected: []string{"progress: 100% done"}},
		{filter: "_", expected: []string{"under_score"}},
	}

	for _, tt := range tests {
		msgs, err := s.ListConversation(ctx, alice.ID, bob.ID, tt.filter)
		if err != nil {
			t.Fatalf("filter %q: %v", tt.filter, err)
		}
		if len(msgs) != len(tt.expected) {
			t.Fatalf("filter %q: expected %d matches, got %d", tt.filter, len(tt.expected), len(msgs))
		}
		for i, m := range msgs {
			if m.Content != tt.expected[i] {
				t.Errorf("filter %q: expected %q, got %q", tt.filter, tt.expected[i], m.Content)
			}
		}
	}
}

func TestLatestMessage(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	users := seedUsers(t, s, "alice", "bob")
	alice, bob := users[0], users[1]

	if _, err := s.LatestMessage(ctx, alice.ID, bob.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound with no messages, got %v", err)
	}

	if _, err := s.CreateMessage(ctx, alice.ID, bob.ID, "first"); err != nil {
		t.Fatalf("create message: %v", err)
	}
	if _, err := s.CreateMessage(ctx, bob.ID, alice.ID, "second"); err != nil {
		t.Fatalf("create message: %v", err)
	}

	latest, err := s.LatestMessage(ctx, alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("latest message: %v", err)
	}
	if latest.Content != "second" {
		t.Fatalf("expected latest message, got %+v", latest)
	}
}

func TestCountUnseenSenders(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	users := seedUsers(t, s, "alice", "bob", "carol")
	alice, bob, carol := users[0], users[1], users[2]

	for i := 0; i < 5; i++ {
		if _, err := s.CreateMessage(ctx, bob.ID, alice.ID, "ping"); err != nil {
			t.Fatalf("create message: %v", err)
		}
	}
	if _, err := s.CreateMessage(ctx, carol.ID, alice.ID, "hello"); err != nil {
		t.Fatalf("create message: %v", err)
	}

	count, err := s.CountUnseenSenders(ctx, alice.ID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 distinct senders, got %d", count)
	}

	unseen, err := s.ListUnseenFrom(ctx, bob.ID, alice.ID)
	if err != nil {
		t.Fatalf("list unseen: %v", err)
	}
	if len(unseen) != 5 {
		t.Fatalf("expected 5 unseen from bob, got %d", len(unseen))
	}
}

func TestEditAndDeleteMessage(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	users := seedUsers(t, s, "alice", "bob")

	msg, err := s.CreateMessage(ctx, users[0].ID, users[1].ID, "draft")
	if err != nil {
		t.Fatalf("create message: %v", err)
	}

	if err := s.UpdateMessageContent(ctx, msg.ID, "final"); err != nil {
		t.Fatalf("update: %v", err)
	}
	updated, err := s.GetMessageByID(ctx, msg.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if updated.Content != "final" || !updated.CreatedAt.Equal(msg.CreatedAt) {
		t.Fatalf("unexpected message after edit: %+v", updated)
	}

	if err := s.DeleteMessage(ctx, msg.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetMessageByID(ctx, msg.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}

	if err := s.UpdateMessageContent(ctx, 9999, "x"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown edit, got %v", err)
	}
	if err := s.DeleteMessage(ctx, 9999); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown delete, got %v", err)
	}
}
