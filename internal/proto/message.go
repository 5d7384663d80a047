package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	InboundTypeJoinRoom      = "join_room"
	InboundTypeCreateRoom    = "create_room"
	InboundTypeSendMessage   = "send_message"
	InboundTypeDeleteMessage = "delete_message"
	InboundTypeAddReaction   = "add_reaction"
	InboundTypeTyping        = "typing"
	InboundTypeGetRooms      = "get_rooms"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventRoomCreated            = "room_created"
	EventRoomJoined             = "room_joined"
	EventInitialData            = "initial_data"
	EventReceiveMessage         = "receive_message"
	EventMessageDeleted         = "message_deleted"
	EventMessageUpdated         = "message_updated"
	EventUserJoinedRoom         = "user_joined_room"
	EventUserLeftRoom           = "user_left_room"
	EventUserTyping             = "user_typing"
	EventNewMessageNotification = "new_message_notification"
	EventRooms                  = "rooms"
)

// JoinRoomData requests a transition into a room.
type JoinRoomData struct {
	Room string `json:"room"`
}

// CreateRoomData requests creation of a new room.
type CreateRoomData struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// SendMessageData is a chat message from the client. Either text or file
// must be present.
type SendMessageData struct {
	Room string       `json:"room"`
	Text string       `json:"text,omitempty"`
	File *FilePayload `json:"file,omitempty"`
}

// DeleteMessageData requests a soft delete of an own message.
type DeleteMessageData struct {
	Room      string `json:"room"`
	MessageID string `json:"message_id"`
}

// ReactionData adds an emoji reaction to a message.
type ReactionData struct {
	Room      string `json:"room"`
	MessageID string `json:"message_id"`
	Emoji     string `json:"emoji"`
}

// TypingData toggles the typing indicator.
type TypingData struct {
	Room     string `json:"room"`
	IsTyping bool   `json:"is_typing"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// FilePayload describes an attachment on the wire.
type FilePayload struct {
	Name      string `json:"name"`
	MediaType string `json:"media_type"`
	Size      int64  `json:"size"`
	URL       string `json:"url"`
}

// EmojiPayload is one reaction aggregate. Count always equals len(Users).
type EmojiPayload struct {
	Emoji string   `json:"emoji"`
	Users []string `json:"users"`
	Count int      `json:"count"`
}

// MessagePayload is a chat or system message on the wire.
type MessagePayload struct {
	ID        string         `json:"id"`
	Room      string         `json:"room"`
	Username  string         `json:"username"`
	Type      string         `json:"type"`
	Text      string         `json:"text,omitempty"`
	File      *FilePayload   `json:"file,omitempty"`
	Emojis    []EmojiPayload `json:"emojis,omitempty"`
	Timestamp string         `json:"timestamp"`
}

// RoomPayload summarizes a room with its live user count.
type RoomPayload struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	CreatedBy   string `json:"created_by,omitempty"`
	IsDefault   bool   `json:"is_default"`
	UserCount   int    `json:"user_count"`
}

// RoomJoinedPayload is sent to the joining connection only.
type RoomJoinedPayload struct {
	RoomName    string           `json:"room_name"`
	Messages    []MessagePayload `json:"messages"`
	OnlineUsers []string         `json:"online_users"`
}

// InitialDataPayload is delivered once after the connection handshake.
type InitialDataPayload struct {
	Username    string           `json:"username"`
	Rooms       []RoomPayload    `json:"rooms"`
	CurrentRoom string           `json:"current_room"`
	Messages    []MessagePayload `json:"messages"`
	OnlineUsers []string         `json:"online_users"`
}

// PresencePayload is a join/leave delta with the refreshed online-user set.
type PresencePayload struct {
	Username    string   `json:"username"`
	RoomName    string   `json:"room_name"`
	OnlineUsers []string `json:"online_users"`
	Timestamp   string   `json:"timestamp"`
}

// TypingPayload relays a typing indicator.
type TypingPayload struct {
	Username string `json:"username"`
	RoomName string `json:"room_name"`
	IsTyping bool   `json:"is_typing"`
}

// NotificationPayload announces a new message to other room members.
type NotificationPayload struct {
	Username  string `json:"username"`
	RoomName  string `json:"room_name"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// DeletedPayload announces a soft-deleted message.
type DeletedPayload struct {
	MessageID string `json:"message_id"`
	DeletedBy string `json:"deleted_by"`
	Timestamp string `json:"timestamp"`
}

// UpdatedPayload carries a message's refreshed reaction list.
type UpdatedPayload struct {
	MessageID string         `json:"message_id"`
	Emojis    []EmojiPayload `json:"emojis"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
