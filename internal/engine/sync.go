package engine

import (
	"context"
	"errors"
	"log"

	"github.com/jonathan/cv-sync/internal/cvstate"
	"github.com/jonathan/cv-sync/internal/queue"
	"github.com/jonathan/cv-sync/internal/remote"
	"github.com/jonathan/cv-sync/internal/types"
)

// ErrQueued is returned by SyncSnapshot when an edit was queued instead of pushed.
var ErrQueued = errors.New("update queued for later sync")

// SyncSnapshot pushes the dirty sections of snap, or queues them.
//
// A direct push only happens when online with an empty queue, so a queued
// older value can never land after a newer direct push. Otherwise the edit is
// queued and, when online, the whole queue is drained.
func (e *Engine) SyncSnapshot(ctx context.Context, snap cvstate.Snapshot) error {
	data, err := types.PartialOf(snap.Document, snap.Dirty...)
	if err != nil {
		return err
	}

	e.syncMu.Lock()
	defer e.syncMu.Unlock()

	if !e.monitor.Online() {
		e.enqueue(ctx, snap, data)
		log.Printf("[sync] offline, queued revision %d", snap.Revision)
		return ErrQueued
	}

	if e.queue.Len() > 0 {
		e.enqueue(ctx, snap, data)
		if e.isParked() {
			return ErrQueued
		}
		return e.drainLocked(ctx)
	}

	if _, err := e.remote.Push(ctx, data); err != nil {
		e.enqueue(ctx, snap, data)
		e.recordFailure(err)
		return err
	}
	e.container.MarkSynced(snap.Revision)
	e.markSuccess()
	log.Printf("[sync] pushed revision %d (%d sections)", snap.Revision, len(data))
	return nil
}

// ForceSync flushes a pending autosave and drains the queue, even when parked.
func (e *Engine) ForceSync(ctx context.Context) error {
	e.setParked(false)
	e.autosave.Flush()

	e.syncMu.Lock()
	defer e.syncMu.Unlock()
	return e.drainLocked(ctx)
}

// DiscardPending drops every queued update and clears the sync error.
func (e *Engine) DiscardPending(ctx context.Context) error {
	e.syncMu.Lock()
	defer e.syncMu.Unlock()
	if err := e.queue.Discard(ctx); err != nil {
		return err
	}
	e.statusMu.Lock()
	e.parked = false
	e.syncErr = ""
	e.statusMu.Unlock()
	return nil
}

func (e *Engine) onReconnect() {
	if e.isParked() {
		log.Printf("[sync] reconnected; queue is parked after a rejected update, waiting for a manual sync")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.SyncTimeout)
	defer cancel()

	e.syncMu.Lock()
	defer e.syncMu.Unlock()
	if err := e.drainLocked(ctx); err != nil {
		log.Printf("[sync] reconnect drain failed: %v", err)
	}
}

// drainLocked must be called with syncMu held.
func (e *Engine) drainLocked(ctx context.Context) error {
	drained, err := e.queue.Drain(ctx, func(ctx context.Context, data types.Partial) error {
		_, err := e.remote.Push(ctx, data)
		return err
	})
	if err != nil {
		e.recordFailure(err)
		return err
	}
	if len(drained) == 0 {
		return nil
	}

	var synced uint64
	for _, u := range drained {
		if u.Session == e.session && u.Revision > synced {
			synced = u.Revision
		}
	}
	if synced > 0 {
		e.container.MarkSynced(synced)
	}
	e.markSuccess()
	log.Printf("[sync] drained %d queued update(s)", len(drained))
	return nil
}

// enqueue keeps the entry in memory even when persisting it fails.
func (e *Engine) enqueue(ctx context.Context, snap cvstate.Snapshot, data types.Partial) {
	u := e.queue.NewUpdate(data, e.session, snap.Revision)
	if len(snap.Dirty) == 1 && snap.Dirty[0] == types.SectionProfileImage {
		u.Type = queue.TypeProfileImage
	}
	if err := e.queue.Enqueue(ctx, u); err != nil {
		log.Printf("[sync] warning: %v", err)
	}
}

// recordFailure classifies a push failure. Network failures flip the monitor
// offline and wait for the reconnect; anything else parks the queue.
func (e *Engine) recordFailure(err error) {
	if remote.IsRetryable(err) {
		e.monitor.Set(false)
		return
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return
	}
	e.statusMu.Lock()
	e.syncErr = err.Error()
	e.parked = true
	e.statusMu.Unlock()
	log.Printf("[sync] update rejected, queue parked: %v", err)
}

func (e *Engine) markSuccess() {
	now := e.clock.Now()
	e.statusMu.Lock()
	e.lastSync = &now
	e.syncErr = ""
	e.parked = false
	e.statusMu.Unlock()
	if !e.monitor.Online() {
		e.monitor.Set(true)
	}
}

func (e *Engine) setParked(v bool) {
	e.statusMu.Lock()
	e.parked = v
	e.statusMu.Unlock()
}

func (e *Engine) isParked() bool {
	e.statusMu.Lock()
	defer e.statusMu.Unlock()
	return e.parked
}
