// Package queue provides the durable FIFO of updates that could not be pushed to the remote yet.
package queue

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/jonathan/cv-sync/internal/storage"
	"github.com/jonathan/cv-sync/internal/types"
)

// DefaultMaxEntries is the queue length above which entries are compacted into one.
const DefaultMaxEntries = 50

// UpdateType distinguishes document edits from profile image changes.
type UpdateType string

const (
	TypeCVUpdate     UpdateType = "cv_update"
	TypeProfileImage UpdateType = "profile_image"
)

// PendingUpdate is one queued partial document.
// Session and Revision identify the local edit that produced it.
type PendingUpdate struct {
	ID        string        `json:"id"`
	Type      UpdateType    `json:"type"`
	Data      types.Partial `json:"data"`
	Timestamp time.Time     `json:"timestamp"`
	Session   string        `json:"session,omitempty"`
	Revision  uint64        `json:"revision,omitempty"`
}

// Pusher sends a consolidated partial to the remote.
type Pusher func(ctx context.Context, data types.Partial) error

// Persister is the subset of storage.Local the queue needs.
type Persister interface {
	Save(ctx context.Context, key string, v any) error
	Load(ctx context.Context, key string, v any) error
	Remove(ctx context.Context, key string) error
}

// Queue is safe for concurrent use. Every mutation rewrites the whole queue to the store.
type Queue struct {
	// writeMu is held from copying the entries until the copy is saved, so
	// saves land in the order the copies were taken. Acquire before mu.
	writeMu sync.Mutex

	mu         sync.Mutex
	store      Persister
	clock      clockwork.Clock
	maxEntries int
	entries    []PendingUpdate
	draining   bool
	group      singleflight.Group
}

// Option configures a Queue.
type Option func(*Queue)

func WithClock(c clockwork.Clock) Option {
	return func(q *Queue) { q.clock = c }
}

// WithMaxEntries sets the compaction threshold. Values below 1 disable compaction.
func WithMaxEntries(n int) Option {
	return func(q *Queue) { q.maxEntries = n }
}

// New returns an empty queue backed by store. Call Load to restore persisted entries.
func New(store Persister, opts ...Option) *Queue {
	q := &Queue{
		store:      store,
		clock:      clockwork.NewRealClock(),
		maxEntries: DefaultMaxEntries,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Load replaces the in-memory queue with the persisted one.
// A missing key yields an empty queue. A corrupt blob also yields an empty queue, and the error is returned for logging.
func (q *Queue) Load(ctx context.Context) error {
	var entries []PendingUpdate
	err := q.store.Load(ctx, storage.KeyPendingUpdates, &entries)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		q.mu.Lock()
		q.entries = nil
		q.mu.Unlock()
		return &QueueError{Op: "load", Message: "discarding unreadable pending updates", Cause: err}
	}

	q.mu.Lock()
	q.entries = entries
	q.mu.Unlock()
	if len(entries) > 0 {
		log.Printf("[queue] restored %d pending update(s)", len(entries))
	}
	return nil
}

// NewUpdate builds a cv_update entry stamped with the queue clock.
func (q *Queue) NewUpdate(data types.Partial, session string, revision uint64) PendingUpdate {
	return PendingUpdate{
		ID:        uuid.NewString(),
		Type:      TypeCVUpdate,
		Data:      data,
		Timestamp: q.clock.Now().UTC(),
		Session:   session,
		Revision:  revision,
	}
}

// Enqueue appends u and persists the queue.
// An update whose payload equals the tail entry is dropped. The entry stays
// queued in memory when persisting fails.
func (q *Queue) Enqueue(ctx context.Context, u PendingUpdate) error {
	if len(u.Data) == 0 {
		return nil
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Type == "" {
		u.Type = TypeCVUpdate
	}
	if u.Timestamp.IsZero() {
		u.Timestamp = q.clock.Now().UTC()
	}

	q.writeMu.Lock()
	defer q.writeMu.Unlock()

	q.mu.Lock()
	if n := len(q.entries); n > 0 {
		tail := q.entries[n-1]
		if tail.Type == u.Type && tail.Data.Equal(u.Data) {
			// Same payload; only the revision moves forward.
			if tail.Session == u.Session && u.Revision > tail.Revision {
				q.entries[n-1].Revision = u.Revision
			}
			snapshot := q.copyLocked()
			q.mu.Unlock()
			return q.persist(ctx, snapshot)
		}
	}
	q.entries = append(q.entries, u)
	if q.maxEntries > 0 && len(q.entries) > q.maxEntries && !q.draining {
		q.entries = []PendingUpdate{compact(q.entries)}
		log.Printf("[queue] compacted pending updates into one entry")
	}
	snapshot := q.copyLocked()
	q.mu.Unlock()

	return q.persist(ctx, snapshot)
}

// Len returns the number of queued entries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Entries returns a copy of the queued entries in FIFO order.
func (q *Queue) Entries() []PendingUpdate {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.copyLocked()
}

// Drain pushes every currently queued entry as one consolidated partial.
//
// On success exactly the drained entries are removed and returned; entries
// enqueued while the push was in flight stay queued. On failure the queue is
// left untouched and the push error is returned. Concurrent calls share a
// single push and receive the same result.
func (q *Queue) Drain(ctx context.Context, push Pusher) ([]PendingUpdate, error) {
	v, err, _ := q.group.Do("drain", func() (any, error) {
		return q.drain(ctx, push)
	})
	drained, _ := v.([]PendingUpdate)
	return drained, err
}

func (q *Queue) drain(ctx context.Context, push Pusher) ([]PendingUpdate, error) {
	q.mu.Lock()
	if len(q.entries) == 0 {
		q.mu.Unlock()
		return nil, nil
	}
	batch := q.copyLocked()
	q.draining = true
	q.mu.Unlock()

	data := Consolidate(batch)
	log.Printf("[queue] draining %d entries (%d fields)", len(batch), len(data))
	err := push(ctx, data)

	q.writeMu.Lock()
	defer q.writeMu.Unlock()

	q.mu.Lock()
	q.draining = false
	if err != nil {
		q.mu.Unlock()
		return nil, err
	}
	drained := make(map[string]struct{}, len(batch))
	for _, u := range batch {
		drained[u.ID] = struct{}{}
	}
	kept := q.entries[:0:0]
	for _, u := range q.entries {
		if _, ok := drained[u.ID]; !ok {
			kept = append(kept, u)
		}
	}
	q.entries = kept
	snapshot := q.copyLocked()
	q.mu.Unlock()

	if err := q.persist(ctx, snapshot); err != nil {
		log.Printf("[queue] warning: drained entries acknowledged but not persisted: %v", err)
	}
	return batch, nil
}

// Discard drops every queued entry. It is only called on explicit user request.
func (q *Queue) Discard(ctx context.Context) error {
	q.writeMu.Lock()
	defer q.writeMu.Unlock()

	q.mu.Lock()
	n := len(q.entries)
	q.entries = nil
	q.mu.Unlock()

	log.Printf("[queue] discarded %d pending update(s)", n)
	if err := q.store.Remove(ctx, storage.KeyPendingUpdates); err != nil {
		return &QueueError{Op: "discard", Message: "failed to remove persisted queue", Cause: err}
	}
	return nil
}

func (q *Queue) persist(ctx context.Context, entries []PendingUpdate) error {
	if err := q.store.Save(ctx, storage.KeyPendingUpdates, entries); err != nil {
		return &QueueError{Op: "persist", Message: "failed to persist pending updates", Cause: err}
	}
	return nil
}

func (q *Queue) copyLocked() []PendingUpdate {
	out := make([]PendingUpdate, len(q.entries))
	copy(out, q.entries)
	return out
}

// Consolidate merges the payloads of updates in order. For every top-level
// field the latest value wins; list fields are replaced, never concatenated.
func Consolidate(updates []PendingUpdate) types.Partial {
	merged := types.Partial{}
	for _, u := range updates {
		merged = merged.Merge(u.Data)
	}
	return merged
}

// compact folds entries into one whose payload pushes the same result as draining them all.
func compact(entries []PendingUpdate) PendingUpdate {
	last := entries[len(entries)-1]
	out := PendingUpdate{
		ID:        uuid.NewString(),
		Type:      last.Type,
		Data:      Consolidate(entries),
		Timestamp: last.Timestamp,
		Session:   last.Session,
		Revision:  last.Revision,
	}
	for _, u := range entries {
		if u.Type != out.Type {
			out.Type = TypeCVUpdate
		}
		if u.Session == out.Session && u.Revision > out.Revision {
			out.Revision = u.Revision
		}
	}
	return out
}
