// Package proto defines the JSON frames exchanged over WebSocket
// connections, discriminated by a "type" field.
package proto

const (
	InboundTypeChat = "chat"
	InboundTypeSeen = "seen"

	OutboundTypeChat         = "chat"
	OutboundTypeSeen         = "seen"
	OutboundTypeEdit         = "edit"
	OutboundTypeDelete       = "delete"
	OutboundTypeUnseenCount  = "total_unseen_count"
	OutboundTypeOnlineStatus = "online_status"
	OutboundTypeInboxData    = "inbox_data"
)

// Inbound is the envelope for frames coming from the client.
type Inbound struct {
	Type string `json:"type"`

	// chat fields. Sender and receiver are implicit from the session.
	Message string `json:"message,omitempty"`
	TempID  string `json:"tempId,omitempty"`

	// seen fields.
	MessageID int64 `json:"message_id,omitempty"`
}

// ChatFrame echoes a persisted message to the conversation room.
type ChatFrame struct {
	Type     string `json:"type"`
	ID       int64  `json:"id"`
	Sender   string `json:"sender"`
	Receiver string `json:"receiver"`
	Message  string `json:"message"`
	TempID   string `json:"temp_id,omitempty"`
}

// SeenFrame notifies the room that a message transitioned to seen.
type SeenFrame struct {
	Type      string `json:"type"`
	MessageID int64  `json:"message_id"`
}

// EditFrame notifies the room that a message's content changed.
type EditFrame struct {
	Type       string `json:"type"`
	ID         int64  `json:"id"`
	NewContent string `json:"new_content"`
}

// DeleteFrame notifies the room that a message was removed.
type DeleteFrame struct {
	Type string `json:"type"`
	ID   int64  `json:"id"`
}

// UnseenCountFrame carries the distinct unseen-sender count badge.
type UnseenCountFrame struct {
	Type             string `json:"type"`
	TotalUnseenCount int    `json:"total_unseen_count"`
}

// OnlineStatusFrame carries the full presence snapshot.
type OnlineStatusFrame struct {
	Type      string  `json:"type"`
	OnlineIDs []int64 `json:"online_ids"`
}

// InboxItem is one aggregated conversation in an inbox push.
type InboxItem struct {
	UserID        int64  `json:"user_id"`
	Username      string `json:"username"`
	ProfilePic    string `json:"profile_pic"`
	LatestMessage string `json:"latest_message"`
	Timestamp     string `json:"timestamp"`
	IsSeen        bool   `json:"is_seen"`
}

// InboxFrame re-pushes a recomputed inbox aggregate.
type InboxFrame struct {
	Type  string      `json:"type"`
	Inbox []InboxItem `json:"inbox"`
}

// ErrorFrame is the in-band error response; the connection stays open.
type ErrorFrame struct {
	Error string `json:"error"`
}
