package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/Will-23-K/chatsphere/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	username      TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	last_seen     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS rooms (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	name        TEXT NOT NULL UNIQUE,
	description TEXT NOT NULL DEFAULT '',
	created_by  TEXT NOT NULL DEFAULT '',
	is_default  BOOLEAN NOT NULL DEFAULT 0,
	created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS messages (
	id              TEXT PRIMARY KEY,
	room            TEXT NOT NULL,
	author          TEXT NOT NULL,
	kind            TEXT NOT NULL DEFAULT 'message',
	text            TEXT NOT NULL DEFAULT '',
	file_name       TEXT,
	file_media_type TEXT,
	file_size       INTEGER,
	file_url        TEXT,
	deleted         BOOLEAN NOT NULL DEFAULT 0,
	deleted_at      DATETIME,
	created_at      DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_room_created ON messages(room, created_at);

CREATE TABLE IF NOT EXISTS message_reactions (
	message_id TEXT NOT NULL,
	emoji      TEXT NOT NULL,
	username   TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (message_id, emoji, username),
	FOREIGN KEY (message_id) REFERENCES messages(id)
);

CREATE TABLE IF NOT EXISTS room_joins (
	username  TEXT NOT NULL,
	room      TEXT NOT NULL,
	joined_at DATETIME NOT NULL,
	PRIMARY KEY (username, room)
);
`

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// NewWithSetup creates a new SQLite store and runs a setup function after the
// schema is applied. Useful for tests to seed data.
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

// mapConstraint converts a unique-constraint violation into store.ErrDuplicate.
func mapConstraint(err error) error {
	var sqlErr sqlite3.Error
	if errors.As(err, &sqlErr) {
		if sqlErr.ExtendedCode == sqlite3.ErrConstraintUnique || sqlErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
			return store.ErrDuplicate
		}
	}
	return err
}

// ==== UserStore implementation ====

// CreateUser creates a new user with hashed password.
func (s *SQLiteStore) CreateUser(ctx context.Context, username, passwordHash string) (*store.User, error) {
	query := `
		INSERT INTO users (username, password_hash)
		VALUES (?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, username, passwordHash); err != nil {
		if mapped := mapConstraint(err); errors.Is(mapped, store.ErrDuplicate) {
			return nil, store.ErrDuplicate
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	return s.GetUserByUsername(ctx, username)
}

// GetUserByUsername retrieves a user by username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	query := `
		SELECT id, username, password_hash, last_seen, created_at
		FROM users
		WHERE username = ?
	`
	var user store.User
	err := s.db.QueryRowContext(ctx, query, username).Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.LastSeen,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query user: %w", err)
	}

	return &user, nil
}

// TouchLastSeen updates the user's last-seen timestamp.
func (s *SQLiteStore) TouchLastSeen(ctx context.Context, username string, at time.Time) error {
	query := `UPDATE users SET last_seen = ? WHERE username = ?`
	if _, err := s.db.ExecContext(ctx, query, at.UTC(), username); err != nil {
		return fmt.Errorf("touch last seen: %w", err)
	}
	return nil
}

// ==== RoomStore implementation ====

// CreateRoom inserts a new room.
func (s *SQLiteStore) CreateRoom(ctx context.Context, room *store.Room) (*store.Room, error) {
	query := `
		INSERT INTO rooms (name, description, created_by, is_default, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	createdAt := room.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	if _, err := s.db.ExecContext(ctx, query, room.Name, room.Description, room.CreatedBy, room.IsDefault, createdAt.UTC()); err != nil {
		if mapped := mapConstraint(err); errors.Is(mapped, store.ErrDuplicate) {
			return nil, store.ErrDuplicate
		}
		return nil, fmt.Errorf("insert room: %w", err)
	}

	return s.GetRoomByName(ctx, room.Name)
}

// GetRoomByName retrieves a room by its normalized name.
func (s *SQLiteStore) GetRoomByName(ctx context.Context, name string) (*store.Room, error) {
	query := `
		SELECT id, name, description, created_by, is_default, created_at
		FROM rooms
		WHERE name = ?
	`
	var room store.Room
	err := s.db.QueryRowContext(ctx, query, name).Scan(
		&room.ID,
		&room.Name,
		&room.Description,
		&room.CreatedBy,
		&room.IsDefault,
		&room.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query room: %w", err)
	}

	return &room, nil
}

// ListRooms lists all rooms ordered by creation time.
func (s *SQLiteStore) ListRooms(ctx context.Context) ([]*store.Room, error) {
	query := `
		SELECT id, name, description, created_by, is_default, created_at
		FROM rooms
		ORDER BY created_at, id
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query rooms: %w", err)
	}
	defer rows.Close()

	var rooms []*store.Room
	for rows.Next() {
		var room store.Room
		if err := rows.Scan(
			&room.ID,
			&room.Name,
			&room.Description,
			&room.CreatedBy,
			&room.IsDefault,
			&room.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		rooms = append(rooms, &room)
	}

	return rooms, rows.Err()
}

// UpdateRoomDescription sets the room description.
func (s *SQLiteStore) UpdateRoomDescription(ctx context.Context, name, description string) error {
	query := `UPDATE rooms SET description = ? WHERE name = ?`
	result, err := s.db.ExecContext(ctx, query, description, name)
	if err != nil {
		return fmt.Errorf("update room description: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ==== MessageStore implementation ====

// SaveMessage persists a message.
func (s *SQLiteStore) SaveMessage(ctx context.Context, msg *store.Message) error {
	query := `
		INSERT INTO messages (id, room, author, kind, text, file_name, file_media_type, file_size, file_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	var fileName, fileMedia, fileURL *string
	var fileSize *int64
	if msg.File != nil {
		fileName = &msg.File.Name
		fileMedia = &msg.File.MediaType
		fileSize = &msg.File.Size
		fileURL = &msg.File.URL
	}

	_, err := s.db.ExecContext(ctx, query,
		msg.ID, msg.Room, msg.Author, msg.Kind, msg.Text,
		fileName, fileMedia, fileSize, fileURL,
		msg.CreatedAt.UTC(),
	)
	if err != nil {
		if mapped := mapConstraint(err); errors.Is(mapped, store.ErrDuplicate) {
			return store.ErrDuplicate
		}
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// GetMessage retrieves a message by id, including reactions.
func (s *SQLiteStore) GetMessage(ctx context.Context, id string) (*store.Message, error) {
	query := `
		SELECT id, room, author, kind, text, file_name, file_media_type, file_size, file_url, deleted, deleted_at, created_at
		FROM messages
		WHERE id = ?
	`
	msg, err := scanMessage(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query message: %w", err)
	}

	reactions, err := s.listReactions(ctx, msg.ID)
	if err != nil {
		return nil, err
	}
	msg.Reactions = reactions
	return msg, nil
}

// ListMessagesSince returns non-deleted messages in a room created at or after
// since, ascending by creation time, capped at limit.
func (s *SQLiteStore) ListMessagesSince(ctx context.Context, room string, since time.Time, limit int) ([]*store.Message, error) {
	query := `
		SELECT id, room, author, kind, text, file_name, file_media_type, file_size, file_url, deleted, deleted_at, created_at
		FROM messages
		WHERE room = ? AND created_at >= ? AND deleted = 0
		ORDER BY created_at, id
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, room, since.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []*store.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, msg := range messages {
		reactions, err := s.listReactions(ctx, msg.ID)
		if err != nil {
			return nil, err
		}
		msg.Reactions = reactions
	}

	return messages, nil
}

// MarkDeleted soft-deletes a message. The deleted=0 guard makes repeated
// deletes report not-found instead of rewriting the tombstone.
func (s *SQLiteStore) MarkDeleted(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE messages SET deleted = 1, deleted_at = ? WHERE id = ? AND deleted = 0`
	result, err := s.db.ExecContext(ctx, query, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("mark deleted: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// AddReaction records that username reacted with emoji. INSERT OR IGNORE on
// the composite key makes concurrent adds lose nothing and repeats no-ops.
func (s *SQLiteStore) AddReaction(ctx context.Context, messageID, emoji, username string) ([]store.Reaction, error) {
	if _, err := s.GetMessage(ctx, messageID); err != nil {
		return nil, err
	}

	query := `
		INSERT OR IGNORE INTO message_reactions (message_id, emoji, username, created_at)
		VALUES (?, ?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, messageID, emoji, username, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("insert reaction: %w", err)
	}

	return s.listReactions(ctx, messageID)
}

func (s *SQLiteStore) listReactions(ctx context.Context, messageID string) ([]store.Reaction, error) {
	query := `
		SELECT emoji, username
		FROM message_reactions
		WHERE message_id = ?
		ORDER BY created_at, emoji, username
	`
	rows, err := s.db.QueryContext(ctx, query, messageID)
	if err != nil {
		return nil, fmt.Errorf("query reactions: %w", err)
	}
	defer rows.Close()

	var order []string
	byEmoji := make(map[string]*store.Reaction)
	for rows.Next() {
		var emoji, username string
		if err := rows.Scan(&emoji, &username); err != nil {
			return nil, fmt.Errorf("scan reaction: %w", err)
		}
		agg, ok := byEmoji[emoji]
		if !ok {
			agg = &store.Reaction{Emoji: emoji}
			byEmoji[emoji] = agg
			order = append(order, emoji)
		}
		agg.Users = append(agg.Users, username)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	reactions := make([]store.Reaction, 0, len(order))
	for _, emoji := range order {
		reactions = append(reactions, *byEmoji[emoji])
	}
	return reactions, nil
}

// ==== JoinStore implementation ====

// UpsertJoin records the user's most recent join to a room.
func (s *SQLiteStore) UpsertJoin(ctx context.Context, username, room string, at time.Time) error {
	query := `
		INSERT INTO room_joins (username, room, joined_at)
		VALUES (?, ?, ?)
		ON CONFLICT (username, room) DO UPDATE SET joined_at = excluded.joined_at
	`
	if _, err := s.db.ExecContext(ctx, query, username, room, at.UTC()); err != nil {
		return fmt.Errorf("upsert join: %w", err)
	}
	return nil
}

// LastJoin returns the timestamp of the user's most recent join.
func (s *SQLiteStore) LastJoin(ctx context.Context, username, room string) (time.Time, error) {
	query := `SELECT joined_at FROM room_joins WHERE username = ? AND room = ?`
	var joinedAt time.Time
	err := s.db.QueryRowContext(ctx, query, username, room).Scan(&joinedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, store.ErrNotFound
		}
		return time.Time{}, fmt.Errorf("query join: %w", err)
	}
	return joinedAt, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*store.Message, error) {
	var (
		msg       store.Message
		fileName  sql.NullString
		fileMedia sql.NullString
		fileSize  sql.NullInt64
		fileURL   sql.NullString
		deletedAt sql.NullTime
	)
	err := row.Scan(
		&msg.ID,
		&msg.Room,
		&msg.Author,
		&msg.Kind,
		&msg.Text,
		&fileName,
		&fileMedia,
		&fileSize,
		&fileURL,
		&msg.Deleted,
		&deletedAt,
		&msg.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if fileName.Valid || fileURL.Valid {
		msg.File = &store.FileInfo{
			Name:      fileName.String,
			MediaType: fileMedia.String,
			Size:      fileSize.Int64,
			URL:       fileURL.String,
		}
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		msg.DeletedAt = &t
	}
	return &msg, nil
}
