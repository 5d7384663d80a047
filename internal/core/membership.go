package core

import (
	"sort"
	"sync"
)

// Membership tracks which connections occupy which rooms. The room→connection
// and connection→room maps are always mutated together under one mutex, so a
// connection appears in a room's member set if and only if that room is in the
// connection's joined set.
//
// Lock order: membership.mu may be held while taking the registry's read lock
// (liveness checks, online-user computation), never the other way around.
type Membership struct {
	mu     sync.Mutex
	rooms  map[string]map[string]*Client   // room name -> connID -> client
	joined map[string]map[string]struct{}  // connID -> room name set
}

// NewMembership constructs an empty membership tracker.
func NewMembership() *Membership {
	return &Membership{
		rooms:  make(map[string]map[string]*Client),
		joined: make(map[string]map[string]struct{}),
	}
}

// Switch atomically moves the client into room. When multiRoom is false every
// previously joined room is left first; the left room names are returned.
// The registry liveness check happens inside the same critical section so an
// in-flight transition that lost a race against a disconnect (or a takeover)
// cannot re-register a gone connection.
func (m *Membership) Switch(c *Client, room string, multiRoom bool, reg *Registry) (left []string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !reg.IsCurrent(c.Username, c.ID) {
		return nil, ErrConnectionGone
	}

	if !multiRoom {
		for r := range m.joined[c.ID] {
			if r == room {
				continue
			}
			m.removeLocked(c.ID, r)
			left = append(left, r)
		}
	}

	m.addLocked(c, room)
	sort.Strings(left)
	return left, nil
}

// Restore compensates a failed transition: the target room is left and the
// previously occupied rooms are re-added, atomically. Callers only invoke it
// before any broadcast about the switch has been emitted.
func (m *Membership) Restore(c *Client, target string, rooms []string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.removeLocked(c.ID, target)
	for _, r := range rooms {
		m.addLocked(c, r)
	}
}

// LeaveAll atomically removes the connection from every room it was in and
// returns the affected room names, so the caller can broadcast one leave
// notice per room.
func (m *Membership) LeaveAll(connID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var rooms []string
	for r := range m.joined[connID] {
		m.removeLocked(connID, r)
		rooms = append(rooms, r)
	}
	sort.Strings(rooms)
	return rooms
}

// Members returns the clients currently in the room.
func (m *Membership) Members(room string) []*Client {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.membersLocked(room)
}

// RoomsOf returns the rooms the connection currently occupies.
func (m *Membership) RoomsOf(connID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	rooms := make([]string, 0, len(m.joined[connID]))
	for r := range m.joined[connID] {
		rooms = append(rooms, r)
	}
	sort.Strings(rooms)
	return rooms
}

// OnlineUsersIn computes the room's live online-user set: connections in the
// room's member set whose username still maps to them in the registry.
func (m *Membership) OnlineUsersIn(room string, reg *Registry) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[string]struct{})
	for _, c := range m.rooms[room] {
		if !reg.IsCurrent(c.Username, c.ID) {
			continue
		}
		seen[c.Username] = struct{}{}
	}

	users := make([]string, 0, len(seen))
	for u := range seen {
		users = append(users, u)
	}
	sort.Strings(users)
	return users
}

// CountIn returns the number of member connections in the room.
func (m *Membership) CountIn(room string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rooms[room])
}

func (m *Membership) membersLocked(room string) []*Client {
	members := make([]*Client, 0, len(m.rooms[room]))
	for _, c := range m.rooms[room] {
		members = append(members, c)
	}
	return members
}

func (m *Membership) addLocked(c *Client, room string) {
	if _, ok := m.rooms[room]; !ok {
		m.rooms[room] = make(map[string]*Client)
	}
	m.rooms[room][c.ID] = c

	if _, ok := m.joined[c.ID]; !ok {
		m.joined[c.ID] = make(map[string]struct{})
	}
	m.joined[c.ID][room] = struct{}{}
}

func (m *Membership) removeLocked(connID, room string) {
	if members, ok := m.rooms[room]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(m.rooms, room)
		}
	}
	if rooms, ok := m.joined[connID]; ok {
		delete(rooms, room)
		if len(rooms) == 0 {
			delete(m.joined, connID)
		}
	}
}
