package core

import "sync"

// Client is a live authenticated connection as seen by the core layer.
// One client maps to one network session; a user logging in twice produces
// two clients, of which only the most recent is registered for presence.
type Client struct {
	ID       string
	Username string
	Events   chan *Event

	done     chan struct{}
	doneOnce sync.Once
}

// NewClient constructs a client with an initialized event channel.
func NewClient(id, username string) *Client {
	return &Client{
		ID:       id,
		Username: username,
		Events:   make(chan *Event, 32),
		done:     make(chan struct{}),
	}
}

// Done is closed when the client has been disconnected. The Events channel is
// never closed, so publishers can always send without racing teardown.
func (c *Client) Done() <-chan struct{} {
	return c.done
}
