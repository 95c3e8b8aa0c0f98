package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/pixelclasses/chat-server/internal/store"
)

// Schema is applied on startup. Kept additive; CREATE IF NOT EXISTS only.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	username      TEXT NOT NULL UNIQUE,
	email         TEXT NOT NULL DEFAULT '',
	password_hash TEXT NOT NULL,
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS profiles (
	user_id     INTEGER PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
	profile_pic TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS follows (
	follower_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	followee_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (follower_id, followee_id)
);

CREATE TABLE IF NOT EXISTS messages (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	sender_id   INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	receiver_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	content     TEXT NOT NULL,
	created_at  DATETIME NOT NULL,
	is_seen     BOOLEAN NOT NULL DEFAULT 0,
	seen_at     DATETIME
);

CREATE INDEX IF NOT EXISTS idx_messages_pair ON messages (sender_id, receiver_id, created_at);
CREATE INDEX IF NOT EXISTS idx_messages_unseen ON messages (receiver_id, is_seen, created_at);
`

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New opens (or creates) the database at dbPath and applies the schema.
func New(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection; this also serializes
	// row mutation so seen/edit/delete on one message cannot interleave.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// NewWithSetup opens the database and runs a setup function after the schema.
// Useful for tests to seed fixtures.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	s, err := New(dbPath)
	if err != nil {
		return nil, err
	}
	if setup != nil {
		if err := setup(s.db); err != nil {
			s.db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== UserStore implementation ====

// CreateUser creates a new user with hashed password.
func (s *SQLiteStore) CreateUser(ctx context.Context, username, email, passwordHash string) (*store.User, error) {
	query := `
		INSERT INTO users (username, email, password_hash)
		VALUES (?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, username, email, passwordHash)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return nil, fmt.Errorf("%w: username %q", store.ErrAlreadyExists, username)
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetUserByID(ctx, id)
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (*store.User, error) {
	query := `
		SELECT id, username, email, password_hash, created_at
		FROM users
		WHERE id = ?
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, id))
}

// GetUserByUsername retrieves a user by username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	query := `
		SELECT id, username, email, password_hash, created_at
		FROM users
		WHERE username = ?
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, username))
}

// escapeLike escapes LIKE wildcards so user input matches literally.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}

// SearchUsers searches for users by username substring.
func (s *SQLiteStore) SearchUsers(ctx context.Context, q string) ([]*store.User, error) {
	query := `
		SELECT id, username, email, password_hash, created_at
		FROM users
		WHERE username LIKE '%' || ? || '%' ESCAPE '\'
		ORDER BY username
		LIMIT 50
	`
	rows, err := s.db.QueryContext(ctx, query, escapeLike(q))
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	defer rows.Close()

	users := make([]*store.User, 0)
	for rows.Next() {
		var u store.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, &u)
	}
	return users, rows.Err()
}

func (s *SQLiteStore) scanUser(row *sql.Row) (*store.User, error) {
	var u store.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &u, nil
}

// ==== ProfileStore implementation ====

// GetProfile retrieves a user's profile, defaulting the picture when no row exists.
func (s *SQLiteStore) GetProfile(ctx context.Context, userID int64) (*store.Profile, error) {
	query := `SELECT user_id, profile_pic FROM profiles WHERE user_id = ?`
	var p store.Profile
	err := s.db.QueryRowContext(ctx, query, userID).Scan(&p.UserID, &p.ProfilePic)
	if errors.Is(err, sql.ErrNoRows) {
		return &store.Profile{UserID: userID, ProfilePic: store.DefaultProfilePic}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query profile: %w", err)
	}
	return &p, nil
}

// UpsertProfile creates or replaces a user's profile.
func (s *SQLiteStore) UpsertProfile(ctx context.Context, p *store.Profile) error {
	query := `
		INSERT INTO profiles (user_id, profile_pic) VALUES (?, ?)
		ON CONFLICT(user_id) DO UPDATE SET profile_pic = excluded.profile_pic
	`
	if _, err := s.db.ExecContext(ctx, query, p.UserID, p.ProfilePic); err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

// ==== FollowStore implementation ====

// CreateFollow adds a follow edge; duplicates are ignored.
func (s *SQLiteStore) CreateFollow(ctx context.Context, followerID, followeeID int64) error {
	query := `
		INSERT OR IGNORE INTO follows (follower_id, followee_id, created_at)
		VALUES (?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, followerID, followeeID, time.Now().UTC()); err != nil {
		return fmt.Errorf("insert follow: %w", err)
	}
	return nil
}

// DeleteFollow removes a follow edge.
func (s *SQLiteStore) DeleteFollow(ctx context.Context, followerID, followeeID int64) error {
	query := `DELETE FROM follows WHERE follower_id = ? AND followee_id = ?`
	if _, err := s.db.ExecContext(ctx, query, followerID, followeeID); err != nil {
		return fmt.Errorf("delete follow: %w", err)
	}
	return nil
}

// IsFollowing reports whether a follower -> followee edge exists.
func (s *SQLiteStore) IsFollowing(ctx context.Context, followerID, followeeID int64) (bool, error) {
	query := `SELECT 1 FROM follows WHERE follower_id = ? AND followee_id = ?`
	var one int
	err := s.db.QueryRowContext(ctx, query, followerID, followeeID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query follow edge: %w", err)
	}
	return true, nil
}

// ListFollowing lists user IDs the given user follows.
func (s *SQLiteStore) ListFollowing(ctx context.Context, userID int64) ([]int64, error) {
	return s.listEdges(ctx, `SELECT followee_id FROM follows WHERE follower_id = ?`, userID)
}

// ListFollowers lists user IDs following the given user.
func (s *SQLiteStore) ListFollowers(ctx context.Context, userID int64) ([]int64, error) {
	return s.listEdges(ctx, `SELECT follower_id FROM follows WHERE followee_id = ?`, userID)
}

func (s *SQLiteStore) listEdges(ctx context.Context, query string, userID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query follows: %w", err)
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan follow: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ==== MessageStore implementation ====

// CreateMessage persists a new unseen message. Both participants must exist.
func (s *SQLiteStore) CreateMessage(ctx context.Context, senderID, receiverID int64, content string) (*store.Message, error) {
	for _, id := range []int64{senderID, receiverID} {
		if _, err := s.GetUserByID(ctx, id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, fmt.Errorf("participant %d: %w", id, store.ErrNotFound)
			}
			return nil, err
		}
	}

	query := `
		INSERT INTO messages (sender_id, receiver_id, content, created_at, is_seen)
		VALUES (?, ?, ?, ?, 0)
	`
	result, err := s.db.ExecContext(ctx, query, senderID, receiverID, content, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetMessageByID(ctx, id)
}

// GetMessageByID retrieves a message by ID.
func (s *SQLiteStore) GetMessageByID(ctx context.Context, id int64) (*store.Message, error) {
	query := `
		SELECT id, sender_id, receiver_id, content, created_at, is_seen, seen_at
		FROM messages
		WHERE id = ?
	`
	var m store.Message
	var seenAt sql.NullTime
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&m.ID,
		&m.SenderID,
		&m.ReceiverID,
		&m.Content,
		&m.CreatedAt,
		&m.IsSeen,
		&seenAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query message: %w", err)
	}
	if seenAt.Valid {
		t := seenAt.Time
		m.SeenAt = &t
	}
	return &m, nil
}

// MarkMessageSeen transitions a message to seen. The guard on is_seen makes
// the transition one-way and sets seen_at exactly once.
func (s *SQLiteStore) MarkMessageSeen(ctx context.Context, id int64) error {
	query := `
		UPDATE messages
		SET is_seen = 1, seen_at = ?
		WHERE id = ? AND is_seen = 0
	`
	result, err := s.db.ExecContext(ctx, query, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("mark seen: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		// Either already seen (fine) or missing (not found).
		if _, err := s.GetMessageByID(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// UpdateMessageContent replaces the content of an existing message.
func (s *SQLiteStore) UpdateMessageContent(ctx context.Context, id int64, content string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE messages SET content = ? WHERE id = ?`, content, id)
	if err != nil {
		return fmt.Errorf("update message: %w", err)
	}
	return requireAffected(result)
}

// DeleteMessage removes a message permanently.
func (s *SQLiteStore) DeleteMessage(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return requireAffected(result)
}

func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ListConversation returns messages between two users, oldest first.
func (s *SQLiteStore) ListConversation(ctx context.Context, userA, userB int64, textFilter string) ([]*store.Message, error) {
	query := `
		SELECT id, sender_id, receiver_id, content, created_at, is_seen, seen_at
		FROM messages
		WHERE ((sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?))
	`
	args := []any{userA, userB, userB, userA}
	if textFilter != "" {
		query += ` AND LOWER(content) LIKE '%' || LOWER(?) || '%' ESCAPE '\'`
		args = append(args, escapeLike(textFilter))
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query conversation: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

// LatestMessage returns the most recent message between two users.
func (s *SQLiteStore) LatestMessage(ctx context.Context, userA, userB int64) (*store.Message, error) {
	query := `
		SELECT id, sender_id, receiver_id, content, created_at, is_seen, seen_at
		FROM messages
		WHERE ((sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?))
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`
	rows, err := s.db.QueryContext(ctx, query, userA, userB, userB, userA)
	if err != nil {
		return nil, fmt.Errorf("query latest message: %w", err)
	}
	defer rows.Close()

	msgs, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, store.ErrNotFound
	}
	return msgs[0], nil
}

// CountUnseenSenders counts distinct senders with unseen messages to the receiver.
func (s *SQLiteStore) CountUnseenSenders(ctx context.Context, receiverID int64) (int, error) {
	query := `
		SELECT COUNT(DISTINCT sender_id)
		FROM messages
		WHERE receiver_id = ? AND is_seen = 0
	`
	var count int
	if err := s.db.QueryRowContext(ctx, query, receiverID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count unseen senders: %w", err)
	}
	return count, nil
}

// ListUnseenFrom returns unseen messages from one sender to one receiver, oldest first.
func (s *SQLiteStore) ListUnseenFrom(ctx context.Context, senderID, receiverID int64) ([]*store.Message, error) {
	query := `
		SELECT id, sender_id, receiver_id, content, created_at, is_seen, seen_at
		FROM messages
		WHERE sender_id = ? AND receiver_id = ? AND is_seen = 0
		ORDER BY created_at ASC, id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, senderID, receiverID)
	if err != nil {
		return nil, fmt.Errorf("query unseen messages: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

func scanMessages(rows *sql.Rows) ([]*store.Message, error) {
	msgs := make([]*store.Message, 0)
	for rows.Next() {
		var m store.Message
		var seenAt sql.NullTime
		if err := rows.Scan(
			&m.ID,
			&m.SenderID,
			&m.ReceiverID,
			&m.Content,
			&m.CreatedAt,
			&m.IsSeen,
			&seenAt,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if seenAt.Valid {
			t := seenAt.Time
			m.SeenAt = &t
		}
		msgs = append(msgs, &m)
	}
	return msgs, rows.Err()
}
