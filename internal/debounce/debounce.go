// Package debounce provides a single-slot scheduler that coalesces bursts of triggers into one run.
package debounce

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Debouncer holds at most one pending job. Triggering again before the delay
// elapses cancels the pending job and replaces it with the new one.
type Debouncer struct {
	clock clockwork.Clock
	delay time.Duration

	mu      sync.Mutex
	timer   clockwork.Timer
	pending func()
	seq     uint64
}

// New creates a Debouncer that runs jobs delay after the last trigger.
func New(clock clockwork.Clock, delay time.Duration) *Debouncer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Debouncer{clock: clock, delay: delay}
}

// Delay returns the configured quiet period.
func (d *Debouncer) Delay() time.Duration {
	return d.delay
}

// Trigger (re)arms the timer with fn as the pending job.
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.seq++
	seq := d.seq
	d.pending = fn
	d.timer = d.clock.AfterFunc(d.delay, func() { d.fire(seq) })
}

// Pending reports whether a job is waiting to run.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending != nil
}

// Flush runs the pending job immediately on the calling goroutine.
// It reports whether a job was run.
func (d *Debouncer) Flush() bool {
	fn := d.take(0)
	if fn == nil {
		return false
	}
	fn()
	return true
}

// Stop drops the pending job without running it.
func (d *Debouncer) Stop() {
	d.take(0)
}

func (d *Debouncer) fire(seq uint64) {
	if fn := d.take(seq); fn != nil {
		fn()
	}
}

// take removes the pending job. A non-zero seq only matches the trigger that armed it,
// so a timer that fires after being replaced runs nothing.
func (d *Debouncer) take(seq uint64) func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if seq != 0 && seq != d.seq {
		return nil
	}
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	fn := d.pending
	d.pending = nil
	return fn
}
