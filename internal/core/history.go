package core

import (
	"context"
	"time"

	"github.com/Will-23-K/chatsphere/internal/store"
)

// DefaultHistoryLimit caps the number of messages returned on room entry.
// This bounds payload size; it is not a pagination mechanism.
const DefaultHistoryLimit = 100

// HistoryResolver returns the message slice a joining user is entitled to
// see: ascending by creation time, soft-deleted messages excluded, bounded
// below by the user's join timestamp.
type HistoryResolver struct {
	store store.MessageStore
	limit int
}

// NewHistoryResolver constructs a resolver with the given cap. A non-positive
// limit falls back to DefaultHistoryLimit.
func NewHistoryResolver(messageStore store.MessageStore, limit int) *HistoryResolver {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &HistoryResolver{store: messageStore, limit: limit}
}

// History fetches the visible slice for the room since the given timestamp.
// Messages created strictly before since are never returned.
func (h *HistoryResolver) History(ctx context.Context, room string, since time.Time) ([]*store.Message, error) {
	messages, err := h.store.ListMessagesSince(ctx, room, since, h.limit)
	if err != nil {
		return nil, storeError("history read", err)
	}
	return messages, nil
}
