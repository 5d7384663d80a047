package core

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/Will-23-K/chatsphere/internal/store"
)

const (
	minRoomNameLen = 2
	maxRoomNameLen = 20
)

// NormalizeRoomName trims and lowercases the name and validates its length.
// Validation happens before any store call.
func NormalizeRoomName(name string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if len(normalized) < minRoomNameLen || len(normalized) > maxRoomNameLen {
		return "", validationError("room name must be 2-20 characters long")
	}
	return normalized, nil
}

// Directory resolves room names against the durable store with an in-memory
// cache for fast existence checks. Rooms are never deleted, so a cache entry
// can only go stale in its description, never in its existence.
type Directory struct {
	store store.RoomStore

	mu    sync.RWMutex
	cache map[string]*store.Room
}

// NewDirectory constructs a room directory over the given store.
func NewDirectory(roomStore store.RoomStore) *Directory {
	return &Directory{
		store: roomStore,
		cache: make(map[string]*store.Room),
	}
}

// Ensure resolves the room, creating it when missing. Creation races resolve
// to the already-existing record, so a duplicate name is an idempotent
// success, not an error.
func (d *Directory) Ensure(ctx context.Context, name, creator string) (*store.Room, bool, error) {
	normalized, err := NormalizeRoomName(name)
	if err != nil {
		return nil, false, err
	}

	if room, ok := d.cached(normalized); ok {
		return room, false, nil
	}

	room, err := d.store.GetRoomByName(ctx, normalized)
	if err == nil {
		d.put(room)
		return room, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, storeError("room lookup", err)
	}

	room, err = d.store.CreateRoom(ctx, &store.Room{
		Name:      normalized,
		CreatedBy: creator,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			room, err = d.store.GetRoomByName(ctx, normalized)
			if err != nil {
				return nil, false, storeError("room lookup", err)
			}
			d.put(room)
			return room, false, nil
		}
		return nil, false, storeError("room creation", err)
	}

	d.put(room)
	return room, true, nil
}

// Find resolves an existing room by name.
func (d *Directory) Find(ctx context.Context, name string) (*store.Room, error) {
	normalized, err := NormalizeRoomName(name)
	if err != nil {
		return nil, err
	}

	if room, ok := d.cached(normalized); ok {
		return room, nil
	}

	room, err := d.store.GetRoomByName(ctx, normalized)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFoundError(ErrCodeRoomNotFound, "room does not exist", ErrRoomNotFound)
		}
		return nil, storeError("room lookup", err)
	}

	d.put(room)
	return room, nil
}

// List returns all rooms from the store.
func (d *Directory) List(ctx context.Context) ([]*store.Room, error) {
	rooms, err := d.store.ListRooms(ctx)
	if err != nil {
		return nil, storeError("room list", err)
	}
	for _, room := range rooms {
		d.put(room)
	}
	return rooms, nil
}

// UpdateDescription validates and persists a new room description.
func (d *Directory) UpdateDescription(ctx context.Context, name, description string) error {
	normalized, err := NormalizeRoomName(name)
	if err != nil {
		return err
	}
	if len(description) > 100 {
		return validationError("description must be at most 100 characters")
	}

	if err := d.store.UpdateRoomDescription(ctx, normalized, description); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFoundError(ErrCodeRoomNotFound, "room does not exist", ErrRoomNotFound)
		}
		return storeError("room update", err)
	}

	d.mu.Lock()
	if room, ok := d.cache[normalized]; ok {
		updated := *room
		updated.Description = description
		d.cache[normalized] = &updated
	}
	d.mu.Unlock()
	return nil
}

func (d *Directory) cached(name string) (*store.Room, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	room, ok := d.cache[name]
	return room, ok
}

func (d *Directory) put(room *store.Room) {
	d.mu.Lock()
	d.cache[room.Name] = room
	d.mu.Unlock()
}
