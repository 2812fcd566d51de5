package netmon

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	DefaultProbeInterval = 15 * time.Second
	DefaultProbeTimeout  = 5 * time.Second
)

// Checker performs one reachability check. Any error counts as offline.
type Checker interface {
	Ping(ctx context.Context) error
}

// Prober polls a Checker and feeds the result into a Monitor.
type Prober struct {
	clock    clockwork.Clock
	monitor  *Monitor
	checker  Checker
	interval time.Duration
	timeout  time.Duration
}

// NewProber returns a prober polling every interval.
func NewProber(clock clockwork.Clock, m *Monitor, c Checker, interval time.Duration) *Prober {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if interval <= 0 {
		interval = DefaultProbeInterval
	}
	return &Prober{
		clock:    clock,
		monitor:  m,
		checker:  c,
		interval: interval,
		timeout:  DefaultProbeTimeout,
	}
}

// Probe runs one check and updates the monitor. It returns the observed status.
func (p *Prober) Probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	online := p.checker.Ping(ctx) == nil
	p.monitor.Set(online)
	return online
}

// Run probes immediately and then on every tick until ctx is done.
func (p *Prober) Run(ctx context.Context) error {
	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	p.Probe(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
			p.Probe(ctx)
		}
	}
}
