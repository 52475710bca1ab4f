package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"roomsync/core"
	"roomsync/names"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

const DefaultMaxNameAttempts = 64

// NameSource produces candidate room names. *names.Generator satisfies it.
type NameSource interface {
	Next() string
}

type Option func(*roomStore)

func WithNames(src NameSource) Option {
	return func(s *roomStore) {
		s.names = src
	}
}

// WithMaxNameAttempts bounds how many candidates Create draws before giving up.
func WithMaxNameAttempts(n int) Option {
	return func(s *roomStore) {
		if n > 0 {
			s.attempts = n
		}
	}
}

// WithPollTimeout bounds how long Read waits for a commit. Zero waits forever.
func WithPollTimeout(d time.Duration) Option {
	return func(s *roomStore) {
		s.pollTimeout = d
	}
}

func WithListeners(listeners ...core.ChangeListener) Option {
	return func(s *roomStore) {
		s.listeners = append(s.listeners, listeners...)
	}
}

type room struct {
	version uint64
	data    json.RawMessage

	// changed is closed by the commit that supersedes version and replaced
	// with a fresh channel under the same write lock.
	changed chan struct{}
}

type roomStore struct {
	mu    sync.RWMutex
	rooms map[string]*room

	names       NameSource
	attempts    int
	pollTimeout time.Duration
	listeners   []core.ChangeListener

	// pending holds changes in the order they were minted under mu. One
	// dispatcher goroutine at a time drains it, so listeners see each room's
	// versions in order.
	qmu         sync.Mutex
	pending     []core.Change
	dispatching bool
}

func NewRoomStore(opts ...Option) core.RoomStore {
	s := &roomStore{
		rooms:    make(map[string]*room),
		attempts: DefaultMaxNameAttempts,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.names == nil {
		s.names = names.Default()
	}
	return s
}

func (s *roomStore) Create(ctx context.Context, data json.RawMessage) (string, error) {
	data = cloneData(data)

	s.mu.Lock()
	id := ""
	for attempt := 0; attempt < s.attempts; attempt++ {
		candidate := s.names.Next()
		if _, taken := s.rooms[candidate]; taken {
			continue
		}
		id = candidate
		s.rooms[id] = &room{
			version: 1,
			data:    data,
			changed: make(chan struct{}),
		}
		s.enqueue(change(id, 1, core.ChangeCreate, data))
		break
	}
	s.mu.Unlock()

	if id == "" {
		logrus.WithField("attempts", s.attempts).Warn("No free room name found")
		return "", fmt.Errorf("create room after %d attempts: %w", s.attempts, core.ErrNameExhausted)
	}

	logrus.WithFields(logrus.Fields{
		"room_id":     id,
		"data_length": len(data),
	}).Info("Room created successfully")

	return id, nil
}

// Read returns the room once its version exceeds known. The returned Data
// is shared with the store and must not be modified.
func (s *roomStore) Read(ctx context.Context, id string, known uint64) (core.Room, error) {
	log := logrus.WithFields(logrus.Fields{
		"room_id":       id,
		"known_version": known,
	})

	var expired <-chan time.Time
	if s.pollTimeout > 0 {
		timer := time.NewTimer(s.pollTimeout)
		defer timer.Stop()
		expired = timer.C
	}

	for {
		s.mu.RLock()
		r, ok := s.rooms[id]
		if !ok {
			s.mu.RUnlock()
			log.Warn("Room with specified ID not found")
			return core.Room{}, core.ErrNotFound
		}
		if r.version > known {
			snapshot := core.Room{ID: id, Version: r.version, Data: r.data}
			s.mu.RUnlock()
			log.WithField("version", snapshot.Version).Debug("Room read")
			return snapshot, nil
		}
		changed := r.changed
		s.mu.RUnlock()

		log.Debug("Waiting for room to change")
		select {
		case <-changed:
		case <-expired:
			log.Debug("Poll timeout expired")
			return core.Room{}, core.ErrNoChange
		case <-ctx.Done():
			log.WithError(ctx.Err()).Debug("Wait abandoned")
			return core.Room{}, ctx.Err()
		}
	}
}

func (s *roomStore) Commit(ctx context.Context, id string, expected uint64, data json.RawMessage) (core.Room, error) {
	log := logrus.WithFields(logrus.Fields{
		"room_id":          id,
		"expected_version": expected,
	})
	data = cloneData(data)

	s.mu.Lock()
	r, ok := s.rooms[id]
	if !ok {
		s.mu.Unlock()
		log.Warn("Room with specified ID not found")
		return core.Room{}, core.ErrNotFound
	}
	if r.version != expected {
		current := r.version
		s.mu.Unlock()
		log.WithField("version", current).Warn("Commit rejected with stale version")
		return core.Room{ID: id, Version: current}, core.ErrVersionConflict
	}

	r.data = data
	r.version++
	close(r.changed)
	r.changed = make(chan struct{})
	committed := core.Room{ID: id, Version: r.version, Data: r.data}
	s.enqueue(change(id, committed.Version, core.ChangeCommit, data))
	s.mu.Unlock()

	log.WithFields(logrus.Fields{
		"version":     committed.Version,
		"data_length": len(data),
	}).Info("Room committed successfully")

	return committed, nil
}

func (s *roomStore) Rooms(ctx context.Context) []core.Room {
	s.mu.RLock()
	rooms := make([]core.Room, 0, len(s.rooms))
	for id, r := range s.rooms {
		rooms = append(rooms, core.Room{ID: id, Version: r.version})
	}
	s.mu.RUnlock()

	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].ID < rooms[j].ID
	})
	return rooms
}

// enqueue must be called with mu held.
func (s *roomStore) enqueue(c core.Change) {
	if len(s.listeners) == 0 {
		return
	}

	s.qmu.Lock()
	s.pending = append(s.pending, c)
	start := !s.dispatching
	s.dispatching = true
	s.qmu.Unlock()

	if start {
		go s.dispatch()
	}
}

// dispatch delivers pending changes until the queue is empty, then exits.
func (s *roomStore) dispatch() {
	for {
		s.qmu.Lock()
		if len(s.pending) == 0 {
			s.dispatching = false
			s.qmu.Unlock()
			return
		}
		c := s.pending[0]
		s.pending[0] = core.Change{}
		s.pending = s.pending[1:]
		s.qmu.Unlock()

		s.notify(c)
	}
}

// notify runs outside the store lock. A failing listener is logged; the
// mutation it reports has already happened.
func (s *roomStore) notify(c core.Change) {
	for _, l := range s.listeners {
		if err := l.RoomChanged(context.Background(), c); err != nil {
			logrus.WithFields(logrus.Fields{
				"room_id": c.Room,
				"version": c.Version,
				"kind":    c.Kind,
			}).WithError(err).Error("Failed to deliver room change")
		}
	}
}

func change(id string, version uint64, kind string, data json.RawMessage) core.Change {
	return core.Change{
		ID:      ulid.Make().String(),
		Room:    id,
		Version: version,
		Kind:    kind,
		Data:    data,
		At:      time.Now().UTC(),
	}
}

func cloneData(data json.RawMessage) json.RawMessage {
	if len(bytes.TrimSpace(data)) == 0 {
		return json.RawMessage("null")
	}
	return bytes.Clone(data)
}
