package chat

import (
	"sync"
	"time"
)

type pairKey struct {
	senderID   int64
	receiverID int64
}

// Debouncer coalesces repeated triggers for the same (sender, receiver)
// pair into at most one downstream action per rolling window. The
// check-and-set is atomic under one mutex, so two concurrent sends cannot
// both schedule a notification.
type Debouncer struct {
	mu      sync.Mutex
	window  time.Duration
	expires map[pairKey]time.Time
	now     func() time.Time
}

// NewDebouncer constructs a debouncer with the given rolling window.
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{
		window:  window,
		expires: make(map[pairKey]time.Time),
		now:     time.Now,
	}
}

// TrySchedule returns true if no trigger for the pair fired within the
// window, marking the pair so subsequent calls return false until expiry.
func (d *Debouncer) TrySchedule(senderID, receiverID int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	key := pairKey{senderID: senderID, receiverID: receiverID}
	if exp, ok := d.expires[key]; ok && now.Before(exp) {
		return false
	}
	d.expires[key] = now.Add(d.window)
	d.sweep(now)
	return true
}

// sweep drops expired entries so the map stays bounded by active pairs.
func (d *Debouncer) sweep(now time.Time) {
	for key, exp := range d.expires {
		if now.After(exp) {
			delete(d.expires, key)
		}
	}
}
