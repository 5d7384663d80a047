package http

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/Will-23-K/chatsphere/internal/core"
	"github.com/Will-23-K/chatsphere/internal/proto"
	"github.com/Will-23-K/chatsphere/internal/store"
)

// handleInbound dispatches one client frame to the core service and returns
// a direct reply for the write loop, or nil when the operation answers only
// through broadcasts.
func (h *WSHandler) handleInbound(ctx context.Context, client *core.Client, inbound proto.Inbound) *proto.Outbound {
	switch inbound.Type {
	case proto.InboundTypeJoinRoom:
		var data proto.JoinRoomData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return badRequest("invalid join_room payload")
		}
		result, err := h.svc.TransitionTo(ctx, client, data.Room)
		if err != nil {
			return errorOutbound(err)
		}
		return roomJoinedOutbound(result)

	case proto.InboundTypeCreateRoom:
		var data proto.CreateRoomData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return badRequest("invalid create_room payload")
		}
		result, err := h.svc.CreateRoom(ctx, client, data.Name, data.Description)
		if err != nil {
			return errorOutbound(err)
		}
		return roomJoinedOutbound(result)

	case proto.InboundTypeSendMessage:
		var data proto.SendMessageData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return badRequest("invalid send_message payload")
		}
		var file *store.FileInfo
		if data.File != nil {
			file = &store.FileInfo{
				Name:      data.File.Name,
				MediaType: data.File.MediaType,
				Size:      data.File.Size,
				URL:       data.File.URL,
			}
		}
		if _, err := h.svc.SendMessage(ctx, client.Username, data.Room, data.Text, file); err != nil {
			return errorOutbound(err)
		}
		// The sender receives the message through the room broadcast.
		return nil

	case proto.InboundTypeDeleteMessage:
		var data proto.DeleteMessageData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return badRequest("invalid delete_message payload")
		}
		if err := h.svc.DeleteMessage(ctx, client.Username, data.MessageID, data.Room); err != nil {
			return errorOutbound(err)
		}
		return nil

	case proto.InboundTypeAddReaction:
		var data proto.ReactionData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return badRequest("invalid add_reaction payload")
		}
		if _, err := h.svc.AddReaction(ctx, client.Username, data.MessageID, data.Room, data.Emoji); err != nil {
			return errorOutbound(err)
		}
		return nil

	case proto.InboundTypeTyping:
		var data proto.TypingData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return badRequest("invalid typing payload")
		}
		h.svc.SetTyping(client.Username, data.Room, data.IsTyping)
		return nil

	case proto.InboundTypeGetRooms:
		summaries, err := h.svc.ListRooms(ctx)
		if err != nil {
			return errorOutbound(err)
		}
		rooms := make([]proto.RoomPayload, 0, len(summaries))
		for _, summary := range summaries {
			rooms = append(rooms, roomPayload(summary))
		}
		return &proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventRooms,
			Data:  rooms,
		}

	default:
		return badRequest("unknown message type")
	}
}

// outboundFromEvent maps a core broadcast event onto the wire envelope.
func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventRoomCreated:
		var room proto.RoomPayload
		if event.RoomInfo != nil {
			room = roomPayload(*event.RoomInfo)
		}
		return eventOutbound(proto.EventRoomCreated, room)

	case core.EventReceiveMessage:
		return eventOutbound(proto.EventReceiveMessage, messagePayload(event.Message))

	case core.EventMessageDeleted:
		return eventOutbound(proto.EventMessageDeleted, proto.DeletedPayload{
			MessageID: event.MessageID,
			DeletedBy: event.User,
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
		})

	case core.EventMessageUpdated:
		return eventOutbound(proto.EventMessageUpdated, proto.UpdatedPayload{
			MessageID: event.MessageID,
			Emojis:    emojiPayloads(event.Reactions),
		})

	case core.EventUserJoinedRoom:
		return eventOutbound(proto.EventUserJoinedRoom, presencePayload(event))

	case core.EventUserLeftRoom:
		return eventOutbound(proto.EventUserLeftRoom, presencePayload(event))

	case core.EventUserTyping:
		return eventOutbound(proto.EventUserTyping, proto.TypingPayload{
			Username: event.User,
			RoomName: event.Room,
			IsTyping: event.IsTyping,
		})

	case core.EventNewMessageNotification:
		return eventOutbound(proto.EventNewMessageNotification, proto.NotificationPayload{
			Username:  event.User,
			RoomName:  event.Room,
			Message:   event.Preview,
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
		})

	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}

func eventOutbound(name string, data any) proto.Outbound {
	return proto.Outbound{
		Type:  proto.OutboundTypeEvent,
		Event: name,
		Data:  data,
	}
}

func roomJoinedOutbound(result *core.JoinResult) *proto.Outbound {
	return &proto.Outbound{
		Type:  proto.OutboundTypeEvent,
		Event: proto.EventRoomJoined,
		Data: proto.RoomJoinedPayload{
			RoomName:    result.Room.Name,
			Messages:    messagePayloads(result.History),
			OnlineUsers: result.OnlineUsers,
		},
	}
}

func presencePayload(event *core.Event) proto.PresencePayload {
	return proto.PresencePayload{
		Username:    event.User,
		RoomName:    event.Room,
		OnlineUsers: event.OnlineUsers,
		Timestamp:   event.Timestamp.UTC().Format(time.RFC3339),
	}
}

func roomPayload(summary core.RoomSummary) proto.RoomPayload {
	return proto.RoomPayload{
		Name:        summary.Name,
		Description: summary.Description,
		CreatedBy:   summary.CreatedBy,
		IsDefault:   summary.IsDefault,
		UserCount:   summary.UserCount,
	}
}

func messagePayload(msg *store.Message) proto.MessagePayload {
	if msg == nil {
		return proto.MessagePayload{}
	}

	payload := proto.MessagePayload{
		ID:        msg.ID,
		Room:      msg.Room,
		Username:  msg.Author,
		Type:      string(msg.Kind),
		Text:      msg.Text,
		Emojis:    emojiPayloads(msg.Reactions),
		Timestamp: msg.CreatedAt.UTC().Format(time.RFC3339),
	}
	if msg.File != nil {
		payload.File = &proto.FilePayload{
			Name:      msg.File.Name,
			MediaType: msg.File.MediaType,
			Size:      msg.File.Size,
			URL:       msg.File.URL,
		}
	}
	return payload
}

func messagePayloads(messages []*store.Message) []proto.MessagePayload {
	payloads := make([]proto.MessagePayload, 0, len(messages))
	for _, msg := range messages {
		payloads = append(payloads, messagePayload(msg))
	}
	return payloads
}

func emojiPayloads(reactions []store.Reaction) []proto.EmojiPayload {
	if len(reactions) == 0 {
		return nil
	}
	payloads := make([]proto.EmojiPayload, 0, len(reactions))
	for _, r := range reactions {
		payloads = append(payloads, proto.EmojiPayload{
			Emoji: r.Emoji,
			Users: r.Users,
			Count: r.Count(),
		})
	}
	return payloads
}

func errorOutbound(err error) *proto.Outbound {
	var coreErr *core.Error
	if errors.As(err, &coreErr) {
		return &proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: coreErr.Code, Msg: coreErr.Message},
		}
	}
	return &proto.Outbound{
		Type:  proto.OutboundTypeError,
		Error: &proto.Error{Code: "internal", Msg: "internal server error"},
	}
}

func badRequest(msg string) *proto.Outbound {
	return &proto.Outbound{
		Type:  proto.OutboundTypeError,
		Error: &proto.Error{Code: core.ErrCodeBadRequest, Msg: msg},
	}
}
