package core

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Will-23-K/chatsphere/internal/store"
)

// SystemUser authors join/leave notices.
const SystemUser = "system"

// JoinResult is returned to the joining connection. The joiner learns of its
// own join through this response, not through the room broadcast.
type JoinResult struct {
	Room        *store.Room
	Created     bool
	JoinedAt    time.Time
	History     []*store.Message
	OnlineUsers []string
}

// Coordinator orchestrates the atomic room transition sequence: resolve the
// room, record the join in the ledger, switch membership, snapshot history
// and announce the change, such that no message can be excluded from both
// the history result and the live feed.
//
// The ordering guarantee: the membership switch (which begins live delivery)
// happens before the history fetch, and the history bound is the ledger
// timestamp written before both. A message created between the switch and the
// fetch may arrive twice (once in history, once live) and clients merge by
// message id; a gap can never occur.
type Coordinator struct {
	directory  *Directory
	ledger     *Ledger
	history    *HistoryResolver
	membership *Membership
	registry   *Registry
	router     *Router
	messages   store.MessageStore
	multiRoom  bool
	log        *zerolog.Logger
}

// NewCoordinator wires a transition coordinator. With multiRoom false (the
// default policy) every join first leaves all other rooms.
func NewCoordinator(
	directory *Directory,
	ledger *Ledger,
	history *HistoryResolver,
	membership *Membership,
	registry *Registry,
	router *Router,
	messages store.MessageStore,
	multiRoom bool,
	logger *zerolog.Logger,
) *Coordinator {
	return &Coordinator{
		directory:  directory,
		ledger:     ledger,
		history:    history,
		membership: membership,
		registry:   registry,
		router:     router,
		messages:   messages,
		multiRoom:  multiRoom,
		log:        logger,
	}
}

// TransitionTo moves the connection into the target room.
//
// Failure semantics: a bad room name rejects before any mutation; a failed
// ledger write aborts before membership changes; a failed history read rolls
// the membership switch back before any broadcast is emitted, leaving the
// connection in its prior rooms.
func (co *Coordinator) TransitionTo(ctx context.Context, c *Client, roomName string) (*JoinResult, error) {
	room, created, err := co.directory.Ensure(ctx, roomName, c.Username)
	if err != nil {
		return nil, err
	}

	// The ledger write must complete before the membership switch; its
	// timestamp is the history bound.
	joinedAt, err := co.ledger.RecordJoin(ctx, c.Username, room.Name)
	if err != nil {
		return nil, err
	}

	// Atomic switch; live events for the target room flow to the connection
	// from this point on. The registry liveness check inside guards against
	// racing disconnects and takeovers.
	left, err := co.membership.Switch(c, room.Name, co.multiRoom, co.registry)
	if err != nil {
		return nil, &Error{Code: ErrCodeUnauthorized, Message: "connection no longer active", cause: err}
	}

	history, err := co.history.History(ctx, room.Name, joinedAt)
	if err != nil {
		// Roll back before anything was announced.
		co.membership.Restore(c, room.Name, left)
		return nil, err
	}

	if created {
		co.announceRoomCreated(room)
	}

	for _, r := range left {
		co.AnnounceLeave(ctx, c.Username, r)
	}

	co.announceJoin(ctx, c, room.Name)

	return &JoinResult{
		Room:        room,
		Created:     created,
		JoinedAt:    joinedAt,
		History:     history,
		OnlineUsers: co.membership.OnlineUsersIn(room.Name, co.registry),
	}, nil
}

// AnnounceLeave persists a leave notice and broadcasts it, followed by the
// presence delta with the refreshed online-user set. The leaver is no longer
// a room member, so the fan-out naturally excludes them.
func (co *Coordinator) AnnounceLeave(ctx context.Context, username, room string) {
	notice := systemMessage(room, store.KindLeave, fmt.Sprintf("%s left the room", username))
	if err := co.messages.SaveMessage(ctx, notice); err != nil {
		co.log.Warn().Err(err).Str("room", room).Msg("failed to persist leave notice")
	}
	co.router.Publish(room, &Event{
		Kind:      EventReceiveMessage,
		Room:      room,
		Message:   notice,
		Timestamp: notice.CreatedAt,
	}, "")
	co.router.Publish(room, &Event{
		Kind:        EventUserLeftRoom,
		Room:        room,
		User:        username,
		OnlineUsers: co.membership.OnlineUsersIn(room, co.registry),
		Timestamp:   time.Now(),
	}, "")
}

func (co *Coordinator) announceJoin(ctx context.Context, c *Client, room string) {
	notice := systemMessage(room, store.KindJoin, fmt.Sprintf("%s joined the room", c.Username))
	if err := co.messages.SaveMessage(ctx, notice); err != nil {
		co.log.Warn().Err(err).Str("room", room).Msg("failed to persist join notice")
	}
	co.router.Publish(room, &Event{
		Kind:      EventReceiveMessage,
		Room:      room,
		Message:   notice,
		Timestamp: notice.CreatedAt,
	}, c.ID)
	co.router.Publish(room, &Event{
		Kind:        EventUserJoinedRoom,
		Room:        room,
		User:        c.Username,
		OnlineUsers: co.membership.OnlineUsersIn(room, co.registry),
		Timestamp:   time.Now(),
	}, c.ID)
}

// announceRoomCreated goes to every connected client: presence in a
// not-yet-joined room is meaningless, so this is the one global event.
func (co *Coordinator) announceRoomCreated(room *store.Room) {
	co.router.PublishGlobal(&Event{
		Kind: EventRoomCreated,
		Room: room.Name,
		RoomInfo: &RoomSummary{
			Name:        room.Name,
			Description: room.Description,
			CreatedBy:   room.CreatedBy,
			IsDefault:   room.IsDefault,
			UserCount:   co.membership.CountIn(room.Name),
		},
		Timestamp: time.Now(),
	})
}

func systemMessage(room string, kind store.MessageKind, text string) *store.Message {
	return &store.Message{
		ID:        uuid.NewString(),
		Room:      room,
		Author:    SystemUser,
		Kind:      kind,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
}
