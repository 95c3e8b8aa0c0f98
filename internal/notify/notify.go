// Package notify delivers "you have unseen messages" emails off the
// message write path. Senders enqueue jobs onto a bounded queue; a small
// worker pool drains it and hands digests to the Mailer sink.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/pixelclasses/chat-server/internal/store"
)

// Job identifies one (sender, receiver) pair to notify.
type Job struct {
	SenderID   int64
	ReceiverID int64
}

// Mailer is the external transactional-email sink.
type Mailer interface {
	SendUnseenDigest(ctx context.Context, sender, receiver *store.User, unseen []*store.Message) error
}

// Notifier runs the bounded queue and worker pool.
type Notifier struct {
	store   store.Store
	mailer  Mailer
	jobs    chan Job
	workers int
	log     *zerolog.Logger
	wg      sync.WaitGroup
}

// New constructs a notifier with the given queue capacity and worker count.
func New(st store.Store, mailer Mailer, queueSize, workers int, logger *zerolog.Logger) *Notifier {
	if queueSize <= 0 {
		queueSize = 64
	}
	if workers <= 0 {
		workers = 2
	}
	return &Notifier{
		store:   st,
		mailer:  mailer,
		jobs:    make(chan Job, queueSize),
		workers: workers,
		log:     logger,
	}
}

// Schedule enqueues a job without blocking. Returns false when the queue
// is full and the job was dropped.
func (n *Notifier) Schedule(senderID, receiverID int64) bool {
	select {
	case n.jobs <- Job{SenderID: senderID, ReceiverID: receiverID}:
		return true
	default:
		return false
	}
}

// Run starts the worker pool and blocks until the context is cancelled
// and all in-flight jobs finished.
func (n *Notifier) Run(ctx context.Context) {
	for i := 0; i < n.workers; i++ {
		n.wg.Add(1)
		go func() {
			defer n.wg.Done()
			for {
				select {
				case job := <-n.jobs:
					if err := n.process(ctx, job); err != nil {
						n.log.Error().Err(err).
							Int64("sender", job.SenderID).
							Int64("receiver", job.ReceiverID).
							Msg("unseen email job failed")
					}
				case <-ctx.Done():
					return
				}
			}
		}()
	}
	n.wg.Wait()
}

func (n *Notifier) process(ctx context.Context, job Job) error {
	receiver, err := n.store.GetUserByID(ctx, job.ReceiverID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil // user deleted between send and delivery
		}
		return fmt.Errorf("load receiver: %w", err)
	}
	sender, err := n.store.GetUserByID(ctx, job.SenderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load sender: %w", err)
	}

	unseen, err := n.store.ListUnseenFrom(ctx, job.SenderID, job.ReceiverID)
	if err != nil {
		return fmt.Errorf("list unseen: %w", err)
	}
	if len(unseen) == 0 {
		// Everything was seen before the worker got here.
		return nil
	}

	return n.mailer.SendUnseenDigest(ctx, sender, receiver, unseen)
}

// LogMailer is the default Mailer: it records the digest instead of
// talking to a provider. Deployments plug a real transactional sink here.
type LogMailer struct {
	Log *zerolog.Logger
}

// SendUnseenDigest logs the digest that would have been emailed.
func (m *LogMailer) SendUnseenDigest(_ context.Context, sender, receiver *store.User, unseen []*store.Message) error {
	m.Log.Info().
		Str("to", receiver.Email).
		Str("from_user", sender.Username).
		Int("unseen_count", len(unseen)).
		Msg("unseen message digest")
	return nil
}
