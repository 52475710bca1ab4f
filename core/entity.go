package core

import (
	"context"
	"encoding/json"
	"time"
)

const (
	ChangeCreate = "create"
	ChangeCommit = "commit"
)

type (
	// Room is a point-in-time copy of a room's state.
	Room struct {
		ID      string          `json:"id"`
		Version uint64          `json:"version"`
		Data    json.RawMessage `json:"data,omitempty"`
	}

	// Change describes a successful mutation of a room.
	Change struct {
		ID      string          `json:"id"`
		Room    string          `json:"room"`
		Version uint64          `json:"version"`
		Kind    string          `json:"kind"`
		Data    json.RawMessage `json:"data"`
		At      time.Time       `json:"at"`
	}

	RoomStore interface {
		// Create inserts a new room at version 1 under a freshly generated name.
		Create(ctx context.Context, data json.RawMessage) (string, error)

		// Read returns the room once its version is greater than known,
		// blocking until a commit makes it so.
		Read(ctx context.Context, id string, known uint64) (Room, error)

		// Commit replaces the room's data if its version equals expected.
		Commit(ctx context.Context, id string, expected uint64, data json.RawMessage) (Room, error)

		// Rooms lists every room's id and version.
		Rooms(ctx context.Context) []Room
	}

	// ChangeListener is notified after each successful create or commit.
	// Changes arrive one at a time, outside the store lock, in the order they
	// were committed. A slow listener delays later deliveries, not commits.
	ChangeListener interface {
		RoomChanged(ctx context.Context, change Change) error
	}

	Journal interface {
		Append(ctx context.Context, change Change) error
		Close() error
	}

	// HistoryReader is implemented by journals that can read changes back.
	HistoryReader interface {
		History(ctx context.Context, roomID string, limit int) ([]Change, error)
	}
)

// ChangeListenerFunc adapts an ordinary function to ChangeListener.
type ChangeListenerFunc func(ctx context.Context, change Change) error

func (f ChangeListenerFunc) RoomChanged(ctx context.Context, change Change) error {
	return f(ctx, change)
}
