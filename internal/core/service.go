package core

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Will-23-K/chatsphere/internal/store"
)

// Options configures the chat service.
type Options struct {
	// HistoryLimit caps the history slice returned on room entry.
	HistoryLimit int
	// MultiRoom lets a connection occupy several rooms at once. The default
	// policy leaves all other rooms on every join.
	MultiRoom bool
}

// Service is the inbound operation surface the connection-handling layer
// talks to. It owns the presence state (registry, membership) and delegates
// persistence to the store.
type Service struct {
	store       store.Store
	registry    *Registry
	membership  *Membership
	directory   *Directory
	ledger      *Ledger
	history     *HistoryResolver
	router      *Router
	coordinator *Coordinator
	log         *zerolog.Logger
}

// NewService wires the presence and broadcast engine.
func NewService(st store.Store, logger *zerolog.Logger, opts Options) *Service {
	registry := NewRegistry()
	membership := NewMembership()
	directory := NewDirectory(st)
	ledger := NewLedger(st)
	history := NewHistoryResolver(st, opts.HistoryLimit)
	router := NewRouter(membership, registry, logger)
	coordinator := NewCoordinator(directory, ledger, history, membership, registry, router, st, opts.MultiRoom, logger)

	return &Service{
		store:       st,
		registry:    registry,
		membership:  membership,
		directory:   directory,
		ledger:      ledger,
		history:     history,
		router:      router,
		coordinator: coordinator,
		log:         logger,
	}
}

// Directory exposes the room directory for seeding and listing.
func (s *Service) Directory() *Directory { return s.directory }

// Registry exposes the connection registry.
func (s *Service) Registry() *Registry { return s.registry }

// Connect registers a new connection for the authenticated identity and
// returns its client handle. A second login for the same username takes over
// presence: the earlier connection's room memberships are evicted and leave
// notices are broadcast, but its socket is left to die on its own.
func (s *Service) Connect(ctx context.Context, username string) *Client {
	c := NewClient(uuid.NewString(), username)
	prev := s.registry.Register(c)
	if prev != nil {
		s.log.Info().
			Str("user", username).
			Str("old_conn", prev.ID).
			Str("new_conn", c.ID).
			Msg("presence takeover")
		for _, room := range s.membership.LeaveAll(prev.ID) {
			s.coordinator.AnnounceLeave(ctx, username, room)
		}
	}

	if err := s.store.TouchLastSeen(ctx, username, time.Now()); err != nil {
		s.log.Warn().Err(err).Str("user", username).Msg("failed to update last seen")
	}

	s.log.Info().Str("user", username).Str("conn_id", c.ID).Msg("connected")
	return c
}

// Disconnect tears a connection down exactly once: membership cleanup, a
// leave broadcast per occupied room, then the guarded registry removal. Safe
// to call from both graceful and abrupt teardown paths.
func (s *Service) Disconnect(ctx context.Context, c *Client) {
	c.doneOnce.Do(func() {
		close(c.done)

		rooms := s.membership.LeaveAll(c.ID)
		for _, room := range rooms {
			s.coordinator.AnnounceLeave(ctx, c.Username, room)
		}

		s.registry.Unregister(c.Username, c.ID)

		if err := s.store.TouchLastSeen(ctx, c.Username, time.Now()); err != nil {
			s.log.Warn().Err(err).Str("user", c.Username).Msg("failed to update last seen")
		}

		s.log.Info().
			Str("user", c.Username).
			Str("conn_id", c.ID).
			Strs("rooms", rooms).
			Msg("disconnected")
	})
}

// TransitionTo moves the connection into the target room, creating it when
// missing, and returns the join-scoped history and live online-user set.
func (s *Service) TransitionTo(ctx context.Context, c *Client, roomName string) (*JoinResult, error) {
	return s.coordinator.TransitionTo(ctx, c, roomName)
}

// CreateRoom creates a room and joins the creator to it. A name collision is
// an idempotent success: the existing room is joined instead.
func (s *Service) CreateRoom(ctx context.Context, c *Client, name, description string) (*JoinResult, error) {
	result, err := s.coordinator.TransitionTo(ctx, c, name)
	if err != nil {
		return nil, err
	}

	if result.Created && description != "" {
		if err := s.directory.UpdateDescription(ctx, result.Room.Name, description); err != nil {
			s.log.Warn().Err(err).Str("room", result.Room.Name).Msg("failed to set room description")
		} else {
			updated := *result.Room
			updated.Description = description
			result.Room = &updated
		}
	}

	return result, nil
}

// SendMessage validates, persists and fans out a message. The message event
// goes to the whole room including the sender (so the sender's other sessions
// stay consistent); the notification event excludes the sender.
func (s *Service) SendMessage(ctx context.Context, username, roomName, text string, file *store.FileInfo) (*store.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" && file == nil {
		return nil, validationError("message cannot be empty")
	}

	room, err := s.directory.Find(ctx, roomName)
	if err != nil {
		return nil, err
	}

	kind := store.KindText
	if file != nil {
		kind = store.KindFile
		if strings.HasPrefix(file.MediaType, "image/") {
			kind = store.KindImage
		}
	}

	msg := &store.Message{
		ID:        uuid.NewString(),
		Room:      room.Name,
		Author:    username,
		Kind:      kind,
		Text:      text,
		File:      file,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.SaveMessage(ctx, msg); err != nil {
		return nil, storeError("message write", err)
	}

	var senderConn string
	if c, ok := s.registry.Current(username); ok {
		senderConn = c.ID
	}

	s.router.Publish(room.Name, &Event{
		Kind:      EventReceiveMessage,
		Room:      room.Name,
		User:      username,
		Message:   msg,
		Timestamp: msg.CreatedAt,
	}, "")

	s.router.Publish(room.Name, &Event{
		Kind:      EventNewMessageNotification,
		Room:      room.Name,
		User:      username,
		Preview:   notificationPreview(msg),
		Timestamp: msg.CreatedAt,
	}, senderConn)

	return msg, nil
}

// DeleteMessage soft-deletes a message after an author check. Re-deleting an
// already-deleted message reports not-found and emits no second event.
func (s *Service) DeleteMessage(ctx context.Context, username, messageID, roomName string) error {
	msg, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFoundError(ErrCodeMessageNotFound, "message not found", ErrMessageNotFound)
		}
		return storeError("message lookup", err)
	}

	if msg.Author != username {
		return forbiddenError("you can only delete your own messages")
	}

	if err := s.store.MarkDeleted(ctx, messageID, time.Now()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFoundError(ErrCodeMessageNotFound, "message already deleted", ErrMessageNotFound)
		}
		return storeError("message delete", err)
	}

	s.router.Publish(msg.Room, &Event{
		Kind:      EventMessageDeleted,
		Room:      msg.Room,
		User:      username,
		MessageID: messageID,
		Timestamp: time.Now(),
	}, "")

	return nil
}

// AddReaction records an emoji reaction and broadcasts the refreshed
// aggregate list. Reacting twice with the same emoji is a no-op; reactions
// are add-only.
func (s *Service) AddReaction(ctx context.Context, username, messageID, roomName, emoji string) ([]store.Reaction, error) {
	if strings.TrimSpace(emoji) == "" {
		return nil, validationError("emoji is required")
	}

	reactions, err := s.store.AddReaction(ctx, messageID, emoji, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFoundError(ErrCodeMessageNotFound, "message not found", ErrMessageNotFound)
		}
		return nil, storeError("reaction write", err)
	}

	room := roomName
	if msg, lookupErr := s.store.GetMessage(ctx, messageID); lookupErr == nil {
		room = msg.Room
	}

	s.router.Publish(room, &Event{
		Kind:      EventMessageUpdated,
		Room:      room,
		MessageID: messageID,
		Reactions: reactions,
		Timestamp: time.Now(),
	}, "")

	return reactions, nil
}

// SetTyping relays a typing indicator to the other room members. No
// persistence, no validation feedback; fire-and-forget.
func (s *Service) SetTyping(username, roomName string, isTyping bool) {
	var senderConn string
	if c, ok := s.registry.Current(username); ok {
		senderConn = c.ID
	}

	s.router.Publish(roomName, &Event{
		Kind:      EventUserTyping,
		Room:      roomName,
		User:      username,
		IsTyping:  isTyping,
		Timestamp: time.Now(),
	}, senderConn)
}

// ListRooms returns every room with its live member count.
func (s *Service) ListRooms(ctx context.Context) ([]RoomSummary, error) {
	rooms, err := s.directory.List(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		summaries = append(summaries, RoomSummary{
			Name:        room.Name,
			Description: room.Description,
			CreatedBy:   room.CreatedBy,
			IsDefault:   room.IsDefault,
			UserCount:   len(s.membership.OnlineUsersIn(room.Name, s.registry)),
		})
	}
	return summaries, nil
}

// OnlineUsersIn reports the live online-user set for a room.
func (s *Service) OnlineUsersIn(room string) []string {
	return s.membership.OnlineUsersIn(room, s.registry)
}

func notificationPreview(msg *store.Message) string {
	if msg.Text != "" {
		return msg.Text
	}
	switch msg.Kind {
	case store.KindImage:
		return "Sent an image"
	case store.KindFile:
		return "Sent a file"
	default:
		return "Sent a message"
	}
}
