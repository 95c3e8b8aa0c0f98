package chat

import "github.com/google/uuid"

// Session is one authenticated persistent connection belonging to one user.
// All identity fields are fixed when the connection is authenticated; only
// hub-side subscription state changes afterwards.
type Session struct {
	ID       string
	UserID   int64
	Username string

	// Peer fields are set for chat sessions and zero for
	// notification-only sessions.
	PeerID   int64
	PeerName string
	RoomKey  string

	// Events is the bounded outbound queue. The hub drops events rather
	// than block on a slow session.
	Events chan *Event
}

// NewSession constructs a chat session scoped to a conversation peer.
func NewSession(userID int64, username string, peerID int64, peerName string, buffer int) *Session {
	return &Session{
		ID:       uuid.NewString(),
		UserID:   userID,
		Username: username,
		PeerID:   peerID,
		PeerName: peerName,
		RoomKey:  RoomKey(userID, peerID),
		Events:   make(chan *Event, buffer),
	}
}

// NewNotificationSession constructs a session that only joins the user's
// notification group (badge counts, presence, inbox updates).
func NewNotificationSession(userID int64, username string, buffer int) *Session {
	return &Session{
		ID:       uuid.NewString(),
		UserID:   userID,
		Username: username,
		Events:   make(chan *Event, buffer),
	}
}

// IsNotificationOnly reports whether the session has no conversation room.
func (s *Session) IsNotificationOnly() bool {
	return s.RoomKey == ""
}
