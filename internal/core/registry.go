package core

import "sync"

// Registry maps each authenticated username to at most one live connection.
// Registration is last-write-wins: a second login replaces the presence
// mapping and the previous client is returned so the caller can evict its
// room memberships. State is in-memory only; presence is transient.
type Registry struct {
	mu     sync.RWMutex
	byUser map[string]*Client
}

// NewRegistry constructs an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{byUser: make(map[string]*Client)}
}

// Register stores the client as the current connection for its username and
// returns the previously registered client, if any.
func (r *Registry) Register(c *Client) *Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.byUser[c.Username]
	r.byUser[c.Username] = c
	return prev
}

// Unregister removes the mapping only if connID still matches the stored
// connection. This guards against a stale disconnect unregistering a newer
// session that took over the username in the meantime.
func (r *Registry) Unregister(username, connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.byUser[username]
	if !ok || current.ID != connID {
		return false
	}
	delete(r.byUser, username)
	return true
}

// IsOnline reports whether the username has a registered connection.
func (r *Registry) IsOnline(username string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.byUser[username]
	return ok
}

// Current returns the registered connection for the username, if any.
func (r *Registry) Current(username string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.byUser[username]
	return c, ok
}

// IsCurrent reports whether connID is still the registered connection for
// the username.
func (r *Registry) IsCurrent(username, connID string) bool {
	c, ok := r.Current(username)
	return ok && c.ID == connID
}

// Snapshot returns all currently registered clients.
func (r *Registry) Snapshot() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clients := make([]*Client, 0, len(r.byUser))
	for _, c := range r.byUser {
		clients = append(clients, c)
	}
	return clients
}
