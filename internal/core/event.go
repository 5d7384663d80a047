package core

import (
	"time"

	"github.com/Will-23-K/chatsphere/internal/store"
)

// EventKind is a notification the core emits to client connections.
type EventKind int

const (
	// EventRoomCreated announces a new room to every connected client.
	EventRoomCreated EventKind = iota
	// EventReceiveMessage delivers a chat or system message to room members.
	EventReceiveMessage
	// EventMessageDeleted notifies room members of a soft-deleted message.
	EventMessageDeleted
	// EventMessageUpdated carries a refreshed reaction list for a message.
	EventMessageUpdated
	// EventUserJoinedRoom is a presence delta with the refreshed online-user set.
	EventUserJoinedRoom
	// EventUserLeftRoom is a presence delta with the refreshed online-user set.
	EventUserLeftRoom
	// EventUserTyping relays a typing indicator to other room members.
	EventUserTyping
	// EventNewMessageNotification is sent to room members other than the author.
	EventNewMessageNotification
)

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind        EventKind
	Room        string
	User        string
	Message     *store.Message
	MessageID   string
	Reactions   []store.Reaction
	OnlineUsers []string
	IsTyping    bool
	RoomInfo    *RoomSummary
	Preview     string
	Timestamp   time.Time
}

// RoomSummary is the client-facing view of a room with its live user count.
type RoomSummary struct {
	Name        string
	Description string
	CreatedBy   string
	IsDefault   bool
	UserCount   int
}
