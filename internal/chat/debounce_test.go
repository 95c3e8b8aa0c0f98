package chat

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestDebouncerCoalescesWithinWindow(t *testing.T) {
	d := NewDebouncer(time.Minute)

	if !d.TrySchedule(1, 2) {
		t.Fatal("first trigger should schedule")
	}
	if d.TrySchedule(1, 2) {
		t.Fatal("second trigger within window should be coalesced")
	}
	// Opposite direction is a different pair.
	if !d.TrySchedule(2, 1) {
		t.Fatal("reverse pair should schedule independently")
	}
	// Different receiver is a different pair.
	if !d.TrySchedule(1, 3) {
		t.Fatal("different receiver should schedule independently")
	}
}

func TestDebouncerExpires(t *testing.T) {
	d := NewDebouncer(time.Minute)
	now := time.Unix(1000, 0)
	d.now = func() time.Time { return now }

	if !d.TrySchedule(1, 2) {
		t.Fatal("first trigger should schedule")
	}
	now = now.Add(30 * time.Second)
	if d.TrySchedule(1, 2) {
		t.Fatal("trigger within window should be coalesced")
	}
	now = now.Add(31 * time.Second)
	if !d.TrySchedule(1, 2) {
		t.Fatal("trigger after expiry should schedule again")
	}
}

func TestDebouncerConcurrentSingleWinner(t *testing.T) {
	d := NewDebouncer(time.Minute)

	var wins int64
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if d.TrySchedule(1, 2) {
				atomic.AddInt64(&wins, 1)
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
}
