package chat

import "fmt"

// RoomKey derives the canonical conversation key for a pair of users.
// It is commutative: both directions of a conversation map to the same
// key, so the lower ID always comes first.
func RoomKey(userA, userB int64) string {
	if userA > userB {
		userA, userB = userB, userA
	}
	return fmt.Sprintf("dm:%d:%d", userA, userB)
}
