package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique constraint is violated.
	ErrDuplicate = errors.New("duplicate")
)

// User represents a registered account.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	LastSeen     time.Time
	CreatedAt    time.Time
}

// Room represents a chat room. Rooms are created lazily on first join and
// never deleted.
type Room struct {
	ID          int64
	Name        string
	Description string
	CreatedBy   string
	IsDefault   bool
	CreatedAt   time.Time
}

// MessageKind tags the body variant of a message.
type MessageKind string

const (
	KindText  MessageKind = "message"
	KindJoin  MessageKind = "join"
	KindLeave MessageKind = "leave"
	KindFile  MessageKind = "file"
	KindImage MessageKind = "image"
)

// FileInfo describes an uploaded attachment.
type FileInfo struct {
	Name      string
	MediaType string
	Size      int64
	URL       string
}

// Reaction is an emoji aggregate on a message. The count is always derived
// from the user set; the two can never diverge.
type Reaction struct {
	Emoji string
	Users []string
}

// Count returns the number of distinct reacting users.
func (r Reaction) Count() int { return len(r.Users) }

// Message is a persisted chat message. Text, author and room are immutable
// after creation; only reactions and the soft-delete flag change.
type Message struct {
	ID        string
	Room      string
	Author    string
	Kind      MessageKind
	Text      string
	File      *FileInfo
	Reactions []Reaction
	Deleted   bool
	DeletedAt *time.Time
	CreatedAt time.Time
}

// JoinRecord tracks the most recent join of a user to a room. At most one
// live record per (username, room) pair, last write wins.
type JoinRecord struct {
	Username string
	Room     string
	JoinedAt time.Time
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a new user with hashed password.
	// Returns ErrDuplicate if the username is taken.
	CreateUser(ctx context.Context, username, passwordHash string) (*User, error)

	// GetUserByUsername retrieves a user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// TouchLastSeen updates the user's last-seen timestamp.
	TouchLastSeen(ctx context.Context, username string, at time.Time) error
}

// RoomStore handles room persistence.
type RoomStore interface {
	// CreateRoom inserts a new room. Returns ErrDuplicate if the name is taken.
	CreateRoom(ctx context.Context, room *Room) (*Room, error)

	// GetRoomByName retrieves a room by its normalized name.
	GetRoomByName(ctx context.Context, name string) (*Room, error)

	// ListRooms lists all rooms ordered by creation time.
	ListRooms(ctx context.Context) ([]*Room, error)

	// UpdateRoomDescription sets the room description.
	UpdateRoomDescription(ctx context.Context, name, description string) error
}

// MessageStore handles message persistence.
type MessageStore interface {
	// SaveMessage persists a message.
	SaveMessage(ctx context.Context, msg *Message) error

	// GetMessage retrieves a message by id, including reactions.
	GetMessage(ctx context.Context, id string) (*Message, error)

	// ListMessagesSince returns non-deleted messages in a room created at or
	// after since, ascending by creation time, capped at limit.
	ListMessagesSince(ctx context.Context, room string, since time.Time, limit int) ([]*Message, error)

	// MarkDeleted soft-deletes a message. Returns ErrNotFound if the message
	// does not exist or is already deleted, so repeat deletes stay idempotent.
	MarkDeleted(ctx context.Context, id string, at time.Time) error

	// AddReaction records that username reacted with emoji. Adding the same
	// reaction twice is a no-op. Returns the refreshed aggregate list.
	AddReaction(ctx context.Context, messageID, emoji, username string) ([]Reaction, error)
}

// JoinStore handles the join-scope ledger.
type JoinStore interface {
	// UpsertJoin records the user's most recent join to a room.
	UpsertJoin(ctx context.Context, username, room string, at time.Time) error

	// LastJoin returns the timestamp of the user's most recent join.
	// Returns ErrNotFound if the user never joined the room.
	LastJoin(ctx context.Context, username, room string) (time.Time, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	RoomStore
	MessageStore
	JoinStore

	// Close closes the underlying database connection.
	Close() error
}
