package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned when an insert hits a uniqueness
	// constraint, such as a taken username.
	ErrAlreadyExists = errors.New("already exists")
)

// DefaultProfilePic is used for users who never uploaded an avatar.
const DefaultProfilePic = "https://mphkxojdifbgafp1.public.blob.vercel-storage.com/Profile/p.webp"

// User represents a registered user.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Profile holds display metadata attached to a user.
type Profile struct {
	UserID     int64
	ProfilePic string
}

// Follow is a directed edge in the social graph.
type Follow struct {
	FollowerID int64
	FolloweeID int64
	CreatedAt  time.Time
}

// Message is a persisted direct message between two users.
type Message struct {
	ID         int64
	SenderID   int64
	ReceiverID int64
	Content    string
	CreatedAt  time.Time
	IsSeen     bool
	SeenAt     *time.Time
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a new user with hashed password.
	CreateUser(ctx context.Context, username, email, passwordHash string) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id int64) (*User, error)

	// GetUserByUsername retrieves a user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// SearchUsers searches for users by username substring.
	SearchUsers(ctx context.Context, query string) ([]*User, error)
}

// ProfileStore handles display metadata persistence.
type ProfileStore interface {
	// GetProfile retrieves a user's profile. Users without an explicit
	// profile row get DefaultProfilePic.
	GetProfile(ctx context.Context, userID int64) (*Profile, error)

	// UpsertProfile creates or replaces a user's profile.
	UpsertProfile(ctx context.Context, p *Profile) error
}

// FollowStore handles the follow graph.
type FollowStore interface {
	// CreateFollow adds a follower -> followee edge. Adding an existing edge is a no-op.
	CreateFollow(ctx context.Context, followerID, followeeID int64) error

	// DeleteFollow removes a follower -> followee edge.
	DeleteFollow(ctx context.Context, followerID, followeeID int64) error

	// IsFollowing reports whether a follower -> followee edge exists.
	IsFollowing(ctx context.Context, followerID, followeeID int64) (bool, error)

	// ListFollowing lists user IDs the given user follows.
	ListFollowing(ctx context.Context, userID int64) ([]int64, error)

	// ListFollowers lists user IDs following the given user.
	ListFollowers(ctx context.Context, userID int64) ([]int64, error)
}

// MessageStore handles message persistence. Authorization rules
// (sender-only edit/delete) live in the chat service, not here.
type MessageStore interface {
	// CreateMessage persists a new unseen message and returns it with
	// its assigned ID and timestamp. Both participants must exist.
	CreateMessage(ctx context.Context, senderID, receiverID int64, content string) (*Message, error)

	// GetMessageByID retrieves a message by ID.
	GetMessageByID(ctx context.Context, id int64) (*Message, error)

	// MarkMessageSeen transitions a message to seen, setting seen_at once.
	// Idempotent: marking an already-seen message is a no-op.
	MarkMessageSeen(ctx context.Context, id int64) error

	// UpdateMessageContent replaces the content of an existing message.
	UpdateMessageContent(ctx context.Context, id int64, content string) error

	// DeleteMessage removes a message permanently.
	DeleteMessage(ctx context.Context, id int64) error

	// ListConversation returns all messages between two users in either
	// direction, ordered by creation time ascending. A non-empty textFilter
	// restricts to messages containing it (case-insensitive).
	ListConversation(ctx context.Context, userA, userB int64, textFilter string) ([]*Message, error)

	// LatestMessage returns the most recent message between two users,
	// or ErrNotFound if they have never exchanged one.
	LatestMessage(ctx context.Context, userA, userB int64) (*Message, error)

	// CountUnseenSenders counts distinct senders with at least one unseen
	// message addressed to the receiver.
	CountUnseenSenders(ctx context.Context, receiverID int64) (int, error)

	// ListUnseenFrom returns unseen messages from one sender to one receiver,
	// oldest first. Used by the email notification worker.
	ListUnseenFrom(ctx context.Context, senderID, receiverID int64) ([]*Message, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	ProfileStore
	FollowStore
	MessageStore

	// Close releases the underlying database resources.
	Close() error
}
