package core

import (
	"context"
	"errors"
	"time"

	"github.com/Will-23-K/chatsphere/internal/store"
)

// Ledger records, per (user, room) pair, the timestamp of the most recent
// join. The recorded timestamp bounds every subsequent history read for that
// pair: rejoining resets the visibility window by design.
type Ledger struct {
	store store.JoinStore
}

// NewLedger constructs a join-scope ledger over the given store.
func NewLedger(joinStore store.JoinStore) *Ledger {
	return &Ledger{store: joinStore}
}

// RecordJoin upserts the join record and returns the timestamp it wrote.
// Callers use the returned value directly as the history bound instead of
// re-reading, which gives read-your-writes within one join operation.
func (l *Ledger) RecordJoin(ctx context.Context, username, room string) (time.Time, error) {
	at := time.Now().UTC()
	if err := l.store.UpsertJoin(ctx, username, room, at); err != nil {
		return time.Time{}, storeError("join ledger write", err)
	}
	return at, nil
}

// LastJoin returns the most recent join timestamp for the pair.
func (l *Ledger) LastJoin(ctx context.Context, username, room string) (time.Time, bool, error) {
	at, err := l.store.LastJoin(ctx, username, room)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, storeError("join ledger read", err)
	}
	return at, true, nil
}
