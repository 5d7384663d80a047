package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/Will-23-K/chatsphere/internal/auth"
	"github.com/Will-23-K/chatsphere/internal/core"
	"github.com/Will-23-K/chatsphere/internal/proto"
)

// defaultRoom is joined automatically after the handshake.
const defaultRoom = "general"

// WSHandler authenticates, upgrades and bridges connections to the core
// service.
type WSHandler struct {
	svc  *core.Service
	auth *auth.Service
	log  *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(svc *core.Service, authService *auth.Service, logger *zerolog.Logger) *WSHandler {
	return &WSHandler{svc: svc, auth: authService, log: logger}
}

// Handle authenticates the token, upgrades the connection and runs the
// session until either side closes.
// GET /ws?token=...
func (h *WSHandler) Handle(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
			token = strings.TrimPrefix(header, "Bearer ")
		}
	}

	username, err := h.auth.Authenticate(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "authentication required"})
		return
	}

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	client := h.svc.Connect(ctx, username)
	// Cleanup must run even when the request context is already canceled.
	defer h.svc.Disconnect(context.Background(), client)

	session := &wsSession{
		handler: h,
		conn:    conn,
		client:  client,
		replies: make(chan proto.Outbound, 8),
	}

	if err := session.sendInitialData(ctx); err != nil {
		h.log.Warn().Err(err).Str("user", username).Msg("ws initial data failed")
		return
	}

	errCh := make(chan error, 2)
	go func() {
		errCh <- session.readLoop(ctx)
	}()
	go func() {
		errCh <- session.writeLoop(ctx)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != 0 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Str("user", username).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

// wsSession serializes all writes to the connection through the write loop:
// broadcast events and direct replies share one writer goroutine.
type wsSession struct {
	handler *WSHandler
	conn    *websocket.Conn
	client  *core.Client
	replies chan proto.Outbound
}

// sendInitialData joins the default room and delivers the initial snapshot,
// mirroring what a freshly connected client needs to render: rooms, current
// room history and online users.
func (s *wsSession) sendInitialData(ctx context.Context) error {
	result, err := s.handler.svc.TransitionTo(ctx, s.client, defaultRoom)
	if err != nil {
		return err
	}

	summaries, err := s.handler.svc.ListRooms(ctx)
	if err != nil {
		return err
	}

	rooms := make([]proto.RoomPayload, 0, len(summaries))
	for _, summary := range summaries {
		rooms = append(rooms, roomPayload(summary))
	}

	return wsjson.Write(ctx, s.conn, proto.Outbound{
		Type:  proto.OutboundTypeEvent,
		Event: proto.EventInitialData,
		Data: proto.InitialDataPayload{
			Username:    s.client.Username,
			Rooms:       rooms,
			CurrentRoom: result.Room.Name,
			Messages:    messagePayloads(result.History),
			OnlineUsers: result.OnlineUsers,
		},
	})
}

func (s *wsSession) readLoop(ctx context.Context) error {
	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, s.conn, &inbound); err != nil {
			return err
		}

		reply := s.handler.handleInbound(ctx, s.client, inbound)
		if reply == nil {
			continue
		}

		select {
		case s.replies <- *reply:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *wsSession) writeLoop(ctx context.Context) error {
	for {
		select {
		case event, ok := <-s.client.Events:
			if !ok {
				return nil
			}
			if err := wsjson.Write(ctx, s.conn, outboundFromEvent(event)); err != nil {
				return err
			}
		case reply := <-s.replies:
			if err := wsjson.Write(ctx, s.conn, reply); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
