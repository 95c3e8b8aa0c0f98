package chat

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/pixelclasses/chat-server/internal/store"
)

// InboxEntry is one conversation partner merged with latest-message state.
type InboxEntry struct {
	UserID     int64
	Username   string
	ProfilePic string
	// Latest is nil when the pair has never exchanged a message.
	Latest *store.Message
}

// InboxAggregator computes per-user inbox views: every follow-graph partner
// joined with the latest message of that conversation. Results are cached
// per user and invalidated on any message write touching the user, so the
// recomputation cost is paid once per change, not per read.
type InboxAggregator struct {
	store store.Store

	mu    sync.Mutex
	cache map[int64][]InboxEntry
	gen   map[int64]uint64
}

// NewInboxAggregator constructs an aggregator over the given store.
func NewInboxAggregator(st store.Store) *InboxAggregator {
	return &InboxAggregator{
		store: st,
		cache: make(map[int64][]InboxEntry),
		gen:   make(map[int64]uint64),
	}
}

// BuildInbox returns the user's inbox ordered by latest message timestamp
// descending; partners with no messages yet sort last.
func (a *InboxAggregator) BuildInbox(ctx context.Context, userID int64) ([]InboxEntry, error) {
	a.mu.Lock()
	if cached, ok := a.cache[userID]; ok {
		a.mu.Unlock()
		return cached, nil
	}
	startGen := a.gen[userID]
	a.mu.Unlock()

	entries, err := a.compute(ctx, userID)
	if err != nil {
		return nil, err
	}

	// An invalidation that raced the rebuild means this snapshot may
	// already be stale; return it but leave the cache empty so the next
	// read recomputes.
	a.mu.Lock()
	if a.gen[userID] == startGen {
		a.cache[userID] = entries
	}
	a.mu.Unlock()
	return entries, nil
}

// Invalidate drops cached inboxes for the given users and marks in-flight
// rebuilds stale.
func (a *InboxAggregator) Invalidate(userIDs ...int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, id := range userIDs {
		delete(a.cache, id)
		a.gen[id]++
	}
}

func (a *InboxAggregator) compute(ctx context.Context, userID int64) ([]InboxEntry, error) {
	following, err := a.store.ListFollowing(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list following: %w", err)
	}
	followers, err := a.store.ListFollowers(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list followers: %w", err)
	}

	partners := make(map[int64]struct{}, len(following)+len(followers))
	for _, id := range following {
		partners[id] = struct{}{}
	}
	for _, id := range followers {
		partners[id] = struct{}{}
	}
	delete(partners, userID)

	entries := make([]InboxEntry, 0, len(partners))
	for partnerID := range partners {
		user, err := a.store.GetUserByID(ctx, partnerID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("resolve partner %d: %w", partnerID, err)
		}
		profile, err := a.store.GetProfile(ctx, partnerID)
		if err != nil {
			return nil, fmt.Errorf("resolve profile %d: %w", partnerID, err)
		}

		entry := InboxEntry{
			UserID:     user.ID,
			Username:   user.Username,
			ProfilePic: profile.ProfilePic,
		}
		latest, err := a.store.LatestMessage(ctx, userID, partnerID)
		switch {
		case err == nil:
			entry.Latest = latest
		case errors.Is(err, store.ErrNotFound):
			// Partner with no conversation yet; sorts last.
		default:
			return nil, fmt.Errorf("latest message with %d: %w", partnerID, err)
		}
		entries = append(entries, entry)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return sortKey(entries[i]) > sortKey(entries[j])
	})
	return entries, nil
}

// sortKey compares conversations by latest timestamp; the empty-string
// sentinel puts message-less partners after everyone else.
func sortKey(e InboxEntry) string {
	if e.Latest == nil {
		return ""
	}
	return e.Latest.CreatedAt.UTC().Format("2006-01-02T15:04:05.000000000")
}
