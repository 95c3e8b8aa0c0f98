package chat

import (
	"sync"

	"github.com/rs/zerolog"
)

// Hub tracks every live session, each user's notification group, and each
// conversation room, and fans events out to them. Delivery is best-effort:
// a full session queue drops the event instead of blocking the publisher.
type Hub struct {
	mu       sync.RWMutex
	sessions map[*Session]struct{}
	groups   map[int64]map[*Session]struct{}
	rooms    map[string]map[*Session]struct{}

	presence *Presence
	log      *zerolog.Logger
}

// NewHub constructs an empty hub.
func NewHub(logger *zerolog.Logger) *Hub {
	return &Hub{
		sessions: make(map[*Session]struct{}),
		groups:   make(map[int64]map[*Session]struct{}),
		rooms:    make(map[string]map[*Session]struct{}),
		presence: NewPresence(),
		log:      logger,
	}
}

// Register subscribes a session to its notification group and, for chat
// sessions, its conversation room, and marks the user online. A presence
// transition is broadcast to every connected session.
func (h *Hub) Register(s *Session) {
	h.mu.Lock()
	h.sessions[s] = struct{}{}

	group, ok := h.groups[s.UserID]
	if !ok {
		group = make(map[*Session]struct{})
		h.groups[s.UserID] = group
	}
	group[s] = struct{}{}

	if s.RoomKey != "" {
		room, ok := h.rooms[s.RoomKey]
		if !ok {
			room = make(map[*Session]struct{})
			h.rooms[s.RoomKey] = room
		}
		room[s] = struct{}{}
	}

	cameOnline := h.presence.MarkOnline(s.UserID)
	h.mu.Unlock()

	h.log.Debug().
		Str("session_id", s.ID).
		Int64("user_id", s.UserID).
		Str("room", s.RoomKey).
		Msg("session registered")

	if cameOnline {
		h.broadcastPresence()
	}
}

// Unregister releases a session from every group it joined, closes its
// outbound queue, and marks one session offline. Safe to call once per
// session regardless of how the connection terminated.
func (h *Hub) Unregister(s *Session) {
	h.mu.Lock()
	if _, ok := h.sessions[s]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.sessions, s)

	if group, ok := h.groups[s.UserID]; ok {
		delete(group, s)
		if len(group) == 0 {
			delete(h.groups, s.UserID)
		}
	}
	if s.RoomKey != "" {
		if room, ok := h.rooms[s.RoomKey]; ok {
			delete(room, s)
			if len(room) == 0 {
				delete(h.rooms, s.RoomKey)
			}
		}
	}

	wentOffline := h.presence.MarkOffline(s.UserID)

	// No publisher can hold a reference anymore; safe to close.
	close(s.Events)
	h.mu.Unlock()

	h.log.Debug().
		Str("session_id", s.ID).
		Int64("user_id", s.UserID).
		Msg("session unregistered")

	if wentOffline {
		h.broadcastPresence()
	}
}

// Publish delivers an event to every session in the user's notification group.
func (h *Hub) Publish(userID int64, ev *Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.groups[userID] {
		h.send(s, ev)
	}
}

// BroadcastRoom delivers an event to every session in a conversation room.
func (h *Hub) BroadcastRoom(roomKey string, ev *Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.rooms[roomKey] {
		h.send(s, ev)
	}
}

// BroadcastAll delivers an event to every connected session.
func (h *Hub) BroadcastAll(ev *Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.sessions {
		h.send(s, ev)
	}
}

// OnlineUsers returns the current presence snapshot.
func (h *Hub) OnlineUsers() []int64 {
	return h.presence.Snapshot()
}

// send must be called with h.mu held; that excludes Unregister's close.
func (h *Hub) send(s *Session, ev *Event) {
	select {
	case s.Events <- ev:
	default:
		h.log.Warn().
			Str("session_id", s.ID).
			Int64("user_id", s.UserID).
			Msg("session queue full, dropping event")
	}
}

func (h *Hub) broadcastPresence() {
	h.BroadcastAll(&Event{
		Kind:      EventOnlineStatus,
		OnlineIDs: h.presence.Snapshot(),
	})
}
