package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/Will-23-K/chatsphere/internal/core"
	"github.com/Will-23-K/chatsphere/internal/proto"
)

// RoomHandlers provides HTTP handlers for room endpoints.
type RoomHandlers struct {
	svc *core.Service
	log *zerolog.Logger
}

// NewRoomHandlers creates a new room handlers instance.
func NewRoomHandlers(svc *core.Service, logger *zerolog.Logger) *RoomHandlers {
	return &RoomHandlers{svc: svc, log: logger}
}

// ListRooms returns every room with its live user count.
// GET /api/rooms
func (h *RoomHandlers) ListRooms(c *gin.Context) {
	summaries, err := h.svc.ListRooms(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list rooms")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]proto.RoomPayload, 0, len(summaries))
	for _, s := range summaries {
		response = append(response, roomPayload(s))
	}
	c.JSON(http.StatusOK, response)
}
