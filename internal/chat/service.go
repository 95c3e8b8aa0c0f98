package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pixelclasses/chat-server/internal/store"
)

// EmailScheduler enqueues a fire-and-forget unseen-message notification job.
// Implemented by the notify worker pool; the write path never blocks on it.
type EmailScheduler interface {
	Schedule(senderID, receiverID int64) bool
}

// Service owns all message mutation and the fan-out that follows it.
// Every write goes store-first: a room broadcast is only issued after the
// durable write completed, so a receiver never observes an event for a
// message a concurrent history read would not find.
type Service struct {
	store    store.Store
	hub      *Hub
	inbox    *InboxAggregator
	debounce *Debouncer
	emails   EmailScheduler
	log      *zerolog.Logger
}

// NewService wires the message service.
func NewService(st store.Store, hub *Hub, inbox *InboxAggregator, debounce *Debouncer, emails EmailScheduler, logger *zerolog.Logger) *Service {
	return &Service{
		store:    st,
		hub:      hub,
		inbox:    inbox,
		debounce: debounce,
		emails:   emails,
		log:      logger,
	}
}

// SendMessage persists a message from the session user to their peer,
// broadcasts it to the conversation room, refreshes both unseen badges,
// and signals inbox recomputation. At most one email notification job is
// scheduled per (sender, receiver) pair per debounce window.
func (s *Service) SendMessage(ctx context.Context, sender, receiver *store.User, text, tempID string) (*store.Message, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: message text is required", ErrInvalidRequest)
	}

	msg, err := s.store.CreateMessage(ctx, sender.ID, receiver.ID, text)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown participant", ErrNotFound)
		}
		s.log.Error().Err(err).Int64("sender", sender.ID).Int64("receiver", receiver.ID).Msg("persist message")
		return nil, fmt.Errorf("%w: persist message", ErrUnavailable)
	}

	if s.emails != nil && s.debounce.TrySchedule(sender.ID, receiver.ID) {
		if !s.emails.Schedule(sender.ID, receiver.ID) {
			s.log.Warn().Int64("receiver", receiver.ID).Msg("email queue full, notification dropped")
		}
	}

	s.hub.BroadcastRoom(RoomKey(sender.ID, receiver.ID), &Event{
		Kind:         EventChat,
		Message:      msg,
		SenderName:   sender.Username,
		ReceiverName: receiver.Username,
		TempID:       tempID,
	})
	s.fanOutState(ctx, sender.ID, receiver.ID)

	return msg, nil
}

// MarkSeen sets the one-way seen transition on a message. Idempotent:
// duplicate or out-of-order seen frames are safe.
func (s *Service) MarkSeen(ctx context.Context, messageID int64) error {
	if err := s.store.MarkMessageSeen(ctx, messageID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: message %d", ErrNotFound, messageID)
		}
		return fmt.Errorf("%w: mark seen", ErrUnavailable)
	}

	msg, err := s.store.GetMessageByID(ctx, messageID)
	if err != nil {
		return fmt.Errorf("%w: reload message", ErrUnavailable)
	}

	s.hub.BroadcastRoom(RoomKey(msg.SenderID, msg.ReceiverID), &Event{
		Kind:      EventSeen,
		MessageID: messageID,
	})
	s.fanOutState(ctx, msg.SenderID, msg.ReceiverID)
	return nil
}

// Edit replaces a message's content. Only the original sender may edit.
func (s *Service) Edit(ctx context.Context, messageID, editorID int64, newContent string) (*store.Message, error) {
	if strings.TrimSpace(newContent) == "" {
		return nil, fmt.Errorf("%w: content is required", ErrInvalidRequest)
	}

	msg, err := s.authorizeMutation(ctx, messageID, editorID)
	if err != nil {
		return nil, err
	}

	if err := s.store.UpdateMessageContent(ctx, messageID, newContent); err != nil {
		return nil, fmt.Errorf("%w: update message", ErrUnavailable)
	}
	msg.Content = newContent

	s.hub.BroadcastRoom(RoomKey(msg.SenderID, msg.ReceiverID), &Event{
		Kind:       EventEdit,
		MessageID:  messageID,
		NewContent: newContent,
	})
	s.fanOutState(ctx, msg.SenderID, msg.ReceiverID)
	return msg, nil
}

// Delete removes a message permanently. Only the original sender may delete.
func (s *Service) Delete(ctx context.Context, messageID, editorID int64) error {
	msg, err := s.authorizeMutation(ctx, messageID, editorID)
	if err != nil {
		return err
	}

	if err := s.store.DeleteMessage(ctx, messageID); err != nil {
		return fmt.Errorf("%w: delete message", ErrUnavailable)
	}

	s.hub.BroadcastRoom(RoomKey(msg.SenderID, msg.ReceiverID), &Event{
		Kind:      EventDelete,
		MessageID: messageID,
	})
	s.fanOutState(ctx, msg.SenderID, msg.ReceiverID)
	return nil
}

// History returns the full conversation between two users, oldest first,
// optionally filtered by a case-insensitive substring.
func (s *Service) History(ctx context.Context, userA, userB int64, textFilter string) ([]*store.Message, error) {
	msgs, err := s.store.ListConversation(ctx, userA, userB, textFilter)
	if err != nil {
		return nil, fmt.Errorf("%w: list conversation", ErrUnavailable)
	}
	return msgs, nil
}

// UnseenSenderCount reports how many distinct people have unseen messages
// waiting on the receiver.
func (s *Service) UnseenSenderCount(ctx context.Context, receiverID int64) (int, error) {
	count, err := s.store.CountUnseenSenders(ctx, receiverID)
	if err != nil {
		return 0, fmt.Errorf("%w: count unseen senders", ErrUnavailable)
	}
	return count, nil
}

// Inbox returns the aggregated inbox view for a user.
func (s *Service) Inbox(ctx context.Context, userID int64) ([]InboxEntry, error) {
	return s.inbox.BuildInbox(ctx, userID)
}

// NotifySocialGraphChanged is called when a follow edge between two users
// is created or removed; both inboxes are stale afterwards.
func (s *Service) NotifySocialGraphChanged(userA, userB int64) {
	s.inbox.Invalidate(userA, userB)
	s.hub.Publish(userA, &Event{Kind: EventInboxUpdate})
	s.hub.Publish(userB, &Event{Kind: EventInboxUpdate})
}

func (s *Service) authorizeMutation(ctx context.Context, messageID, editorID int64) (*store.Message, error) {
	msg, err := s.store.GetMessageByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: message %d", ErrNotFound, messageID)
		}
		return nil, fmt.Errorf("%w: load message", ErrUnavailable)
	}
	if msg.SenderID != editorID {
		return nil, fmt.Errorf("%w: only the sender may modify a message", ErrPermissionDenied)
	}
	return msg, nil
}

// fanOutState invalidates both participants' inboxes and pushes fresh
// unseen-sender counts and inbox-update signals to their notification groups.
func (s *Service) fanOutState(ctx context.Context, participants ...int64) {
	s.inbox.Invalidate(participants...)
	for _, userID := range participants {
		count, err := s.store.CountUnseenSenders(ctx, userID)
		if err != nil {
			s.log.Warn().Err(err).Int64("user_id", userID).Msg("refresh unseen count")
			continue
		}
		s.hub.Publish(userID, &Event{Kind: EventUnseenCount, UnseenCount: count})
		s.hub.Publish(userID, &Event{Kind: EventInboxUpdate})
	}
}
