package chat

import (
	"sort"
	"sync"
)

// Presence tracks which users currently have at least one open session.
// Sessions are refcounted per user so a user with several tabs or devices
// stays online until the last one disconnects.
type Presence struct {
	mu   sync.Mutex
	refs map[int64]int
}

// NewPresence constructs an empty presence tracker.
func NewPresence() *Presence {
	return &Presence{refs: make(map[int64]int)}
}

// MarkOnline records one more session for the user. Returns true if the
// user transitioned from offline to online.
func (p *Presence) MarkOnline(userID int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refs[userID]++
	return p.refs[userID] == 1
}

// MarkOffline records one session close for the user. Returns true if the
// user transitioned from online to offline.
func (p *Presence) MarkOffline(userID int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	n, ok := p.refs[userID]
	if !ok {
		return false
	}
	if n <= 1 {
		delete(p.refs, userID)
		return true
	}
	p.refs[userID] = n - 1
	return false
}

// Snapshot returns the sorted set of online user IDs.
func (p *Presence) Snapshot() []int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]int64, 0, len(p.refs))
	for id := range p.refs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
