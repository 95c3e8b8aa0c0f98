package chat

import "github.com/pixelclasses/chat-server/internal/store"

// EventKind is a notification delivered to sessions.
type EventKind int

const (
	// EventChat notifies a conversation room about a new message.
	EventChat EventKind = iota
	// EventSeen notifies a conversation room that a message was seen.
	EventSeen
	// EventEdit notifies a conversation room that a message was edited.
	EventEdit
	// EventDelete notifies a conversation room that a message was deleted.
	EventDelete
	// EventUnseenCount carries the recipient's distinct unseen-sender count.
	EventUnseenCount
	// EventOnlineStatus carries the full presence snapshot.
	EventOnlineStatus
	// EventInboxUpdate tells inbox sessions to recompute and re-push
	// their aggregate. No payload.
	EventInboxUpdate
)

// Event is pushed to session outbound queues by the hub.
type Event struct {
	Kind EventKind

	// Chat payload.
	Message      *store.Message
	SenderName   string
	ReceiverName string
	TempID       string

	// Seen/edit/delete payload.
	MessageID  int64
	NewContent string

	// Counter and presence payloads.
	UnseenCount int
	OnlineIDs   []int64
}
