// Package autosave provides the debounced save pipeline: persist the latest
// document snapshot locally, then hand it to the sync path.
package autosave

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/jonathan/cv-sync/internal/cvstate"
	"github.com/jonathan/cv-sync/internal/debounce"
	"github.com/jonathan/cv-sync/internal/types"
)

const (
	// DefaultDelay is the quiet period after the last edit before a save runs.
	DefaultDelay = 2000 * time.Millisecond
	// DefaultTimeout bounds one save, including the remote push.
	DefaultTimeout = 30 * time.Second
)

// DocumentStore persists the document snapshot.
type DocumentStore interface {
	SaveDocument(ctx context.Context, doc types.CVDocument) error
}

// Syncer receives a snapshot after it has been persisted and decides whether
// to push it directly or queue it.
type Syncer interface {
	SyncSnapshot(ctx context.Context, snap cvstate.Snapshot) error
}

// Saver runs one save.
type Saver struct {
	Store DocumentStore
	Sync  Syncer
}

// Save persists snap and syncs it. A local persistence failure is logged and
// does not stop the sync attempt.
func (s *Saver) Save(ctx context.Context, snap cvstate.Snapshot) error {
	if s.Store != nil {
		if err := s.Store.SaveDocument(ctx, snap.Document); err != nil {
			log.Printf("[autosave] warning: failed to persist revision %d locally: %v", snap.Revision, err)
		}
	}
	if s.Sync == nil || len(snap.Dirty) == 0 {
		return nil
	}
	return s.Sync.SyncSnapshot(ctx, snap)
}

// Scheduler coalesces snapshots so that only the last one in a quiet window is saved.
type Scheduler struct {
	debouncer *debounce.Debouncer
	saver     *Saver
	timeout   time.Duration

	mu     sync.Mutex
	latest *cvstate.Snapshot
	newest uint64 // highest revision scheduled so far
	saves  int
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithTimeout bounds every save.
func WithTimeout(d time.Duration) Option {
	return func(s *Scheduler) { s.timeout = d }
}

// NewScheduler returns a scheduler that saves delay after the last Schedule call.
func NewScheduler(clock clockwork.Clock, delay time.Duration, saver *Saver, opts ...Option) *Scheduler {
	if delay <= 0 {
		delay = DefaultDelay
	}
	s := &Scheduler{
		debouncer: debounce.New(clock, delay),
		saver:     saver,
		timeout:   DefaultTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule records snap as the latest state and re-arms the timer.
// Subscribers may be notified out of order, so a snapshot older than one
// already scheduled is dropped.
func (s *Scheduler) Schedule(snap cvstate.Snapshot) {
	s.mu.Lock()
	if snap.Revision < s.newest {
		s.mu.Unlock()
		log.Printf("[autosave] ignoring stale revision %d (have %d)", snap.Revision, s.newest)
		return
	}
	s.newest = snap.Revision
	s.latest = &snap
	s.mu.Unlock()
	s.debouncer.Trigger(s.run)
}

// Flush saves the pending snapshot now, if any. It reports whether a save ran.
func (s *Scheduler) Flush() bool {
	return s.debouncer.Flush()
}

// Stop drops the pending snapshot without saving it.
func (s *Scheduler) Stop() {
	s.debouncer.Stop()
	s.mu.Lock()
	s.latest = nil
	s.mu.Unlock()
}

// Pending reports whether a save is scheduled.
func (s *Scheduler) Pending() bool {
	return s.debouncer.Pending()
}

// Saves returns how many saves have run.
func (s *Scheduler) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

func (s *Scheduler) run() {
	s.mu.Lock()
	snap := s.latest
	s.latest = nil
	if snap != nil {
		s.saves++
	}
	s.mu.Unlock()
	if snap == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.saver.Save(ctx, *snap); err != nil {
		log.Printf("[autosave] revision %d not synced: %v", snap.Revision, err)
	}
}
