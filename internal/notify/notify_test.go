package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/pixelclasses/chat-server/internal/store"
	"github.com/pixelclasses/chat-server/internal/store/sqlite"
)

type recordedDigest struct {
	sender   string
	receiver string
	count    int
}

type fakeMailer struct {
	mu      sync.Mutex
	digests []recordedDigest
	done    chan struct{}
}

func newFakeMailer() *fakeMailer {
	return &fakeMailer{done: make(chan struct{}, 16)}
}

func (m *fakeMailer) SendUnseenDigest(_ context.Context, sender, receiver *store.User, unseen []*store.Message) error {
	m.mu.Lock()
	m.digests = append(m.digests, recordedDigest{
		sender:   sender.Username,
		receiver: receiver.Username,
		count:    len(unseen),
	})
	m.mu.Unlock()
	m.done <- struct{}{}
	return nil
}

func (m *fakeMailer) sent() []recordedDigest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]recordedDigest, len(m.digests))
	copy(out, m.digests)
	return out
}

func newTestNotifier(t *testing.T, mailer Mailer) (*Notifier, *sqlite.SQLiteStore) {
	t.Helper()
	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	logger := zerolog.Nop()
	return New(st, mailer, 8, 1, &logger), st
}

func seedPair(t *testing.T, st *sqlite.SQLiteStore) (*store.User, *store.User) {
	t.Helper()
	ctx := context.Background()
	alice, err := st.CreateUser(ctx, "alice", "alice@example.com", "hash")
	if err != nil {
		t.Fatalf("create alice: %v", err)
	}
	bob, err := st.CreateUser(ctx, "bob", "bob@example.com", "hash")
	if err != nil {
		t.Fatalf("create bob: %v", err)
	}
	return alice, bob
}

func waitForDigest(t *testing.T, m *fakeMailer) {
	t.Helper()
	select {
	case <-m.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for digest")
	}
}

func TestNotifierDeliversDigest(t *testing.T) {
	mailer := newFakeMailer()
	n, st := newTestNotifier(t, mailer)
	alice, bob := seedPair(t, st)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := st.CreateMessage(ctx, alice.ID, bob.ID, "ping"); err != nil {
			t.Fatalf("create message: %v", err)
		}
	}

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go n.Run(runCtx)

	if !n.Schedule(alice.ID, bob.ID) {
		t.Fatal("schedule rejected on empty queue")
	}
	waitForDigest(t, mailer)

	sent := mailer.sent()
	if len(sent) != 1 {
		t.Fatalf("expected 1 digest, got %d", len(sent))
	}
	d := sent[0]
	if d.sender != "alice" || d.receiver != "bob" || d.count != 3 {
		t.Fatalf("unexpected digest: %+v", d)
	}
}

func TestNotifierSkipsWhenAllSeen(t *testing.T) {
	mailer := newFakeMailer()
	n, st := newTestNotifier(t, mailer)
	alice, bob := seedPair(t, st)

	ctx := context.Background()
	msg, err := st.CreateMessage(ctx, alice.ID, bob.ID, "ping")
	if err != nil {
		t.Fatalf("create message: %v", err)
	}
	// Receiver reads the message before the worker gets to the job.
	if err := st.MarkMessageSeen(ctx, msg.ID); err != nil {
		t.Fatalf("mark seen: %v", err)
	}

	if err := n.process(ctx, Job{SenderID: alice.ID, ReceiverID: bob.ID}); err != nil {
		t.Fatalf("process: %v", err)
	}
	if sent := mailer.sent(); len(sent) != 0 {
		t.Fatalf("expected no digest, got %d", len(sent))
	}
}

func TestNotifierSkipsDeletedUsers(t *testing.T) {
	mailer := newFakeMailer()
	n, st := newTestNotifier(t, mailer)
	alice, _ := seedPair(t, st)

	if err := n.process(context.Background(), Job{SenderID: alice.ID, ReceiverID: 9999}); err != nil {
		t.Fatalf("process with unknown receiver: %v", err)
	}
	if err := n.process(context.Background(), Job{SenderID: 9999, ReceiverID: alice.ID}); err != nil {
		t.Fatalf("process with unknown sender: %v", err)
	}
	if sent := mailer.sent(); len(sent) != 0 {
		t.Fatalf("expected no digest, got %d", len(sent))
	}
}

func TestScheduleDropsWhenQueueFull(t *testing.T) {
	logger := zerolog.Nop()
	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	// Queue of 1 and no running workers: second job must be dropped.
	n := New(st, newFakeMailer(), 1, 1, &logger)
	if !n.Schedule(1, 2) {
		t.Fatal("first schedule should succeed")
	}
	if n.Schedule(3, 4) {
		t.Fatal("second schedule should be dropped")
	}
}
