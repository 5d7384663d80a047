package core

import (
	"sync"

	"github.com/rs/zerolog"
)

// Router fans events out to connections. Delivery is best-effort and
// fire-and-forget per connection: a slow consumer's event is dropped rather
// than blocking the rest of the room.
//
// All publishes share one mutex, so any two events published to the same room
// are enqueued to every member in the same relative order. No cross-room
// ordering is guaranteed.
type Router struct {
	mu         sync.Mutex
	membership *Membership
	registry   *Registry
	log        *zerolog.Logger
}

// NewRouter constructs a broadcast router.
func NewRouter(membership *Membership, registry *Registry, logger *zerolog.Logger) *Router {
	return &Router{
		membership: membership,
		registry:   registry,
		log:        logger,
	}
}

// Publish delivers the event to every connection in the room's member set,
// except the optionally excluded connection (used to avoid echoing a sender's
// own typing and notification events).
func (r *Router) Publish(room string, event *Event, excludeConnID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range r.membership.Members(room) {
		if c.ID == excludeConnID {
			continue
		}
		r.deliver(c, event)
	}
}

// PublishGlobal delivers the event to every registered connection regardless
// of room. Used only for room-creation announcements.
func (r *Router) PublishGlobal(event *Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range r.registry.Snapshot() {
		r.deliver(c, event)
	}
}

func (r *Router) deliver(c *Client, event *Event) {
	select {
	case c.Events <- event:
	default:
		// Drop if slow consumer.
		r.log.Warn().
			Str("conn_id", c.ID).
			Str("user", c.Username).
			Msg("event dropped for slow consumer")
	}
}
