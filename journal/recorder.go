// Package journal forwards room changes to a core.Journal from a single
// background goroutine so commits never wait on the sink.
package journal

import (
	"context"
	"errors"
	"roomsync/core"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

const DefaultQueueSize = 1024

var ErrClosed = errors.New("journal recorder closed")

// appendTimeout bounds a single sink write.
const appendTimeout = 10 * time.Second

type Recorder struct {
	sink core.Journal
	ch   chan core.Change
	done chan struct{}

	mu     sync.RWMutex
	closed bool

	dropped atomic.Int64
}

func NewRecorder(sink core.Journal, queueSize int) *Recorder {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	r := &Recorder{
		sink: sink,
		ch:   make(chan core.Change, queueSize),
		done: make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *Recorder) run() {
	defer close(r.done)
	for c := range r.ch {
		ctx, cancel := context.WithTimeout(context.Background(), appendTimeout)
		err := r.sink.Append(ctx, c)
		cancel()
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"room_id": c.Room,
				"version": c.Version,
			}).WithError(err).Error("Failed to journal change")
		}
	}
}

// RoomChanged queues the change. A full queue drops the change rather than
// stall the committing request.
func (r *Recorder) RoomChanged(ctx context.Context, c core.Change) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return ErrClosed
	}

	select {
	case r.ch <- c:
		return nil
	default:
		r.dropped.Add(1)
		logrus.WithFields(logrus.Fields{
			"room_id": c.Room,
			"version": c.Version,
		}).Warn("Journal queue full, dropping change")
		return nil
	}
}

// Close drains queued changes and closes the sink.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.ch)
	r.mu.Unlock()

	<-r.done
	return r.sink.Close()
}

// Dropped reports how many changes were discarded because the queue was full.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}
