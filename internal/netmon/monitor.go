// Package netmon provides the network reachability monitor and an HTTP prober that feeds it.
package netmon

import (
	"log"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/jonathan/cv-sync/internal/debounce"
)

// DefaultSettle is how long connectivity must stay up before reconnect handlers run.
const DefaultSettle = 500 * time.Millisecond

// Monitor tracks whether the remote is reachable.
//
// A false to true transition schedules the reconnect handlers once the status
// has been stable for the settle window. Flapping inside the window yields at
// most one reconnect, and handlers never run while offline.
type Monitor struct {
	settle *debounce.Debouncer

	mu        sync.Mutex
	online    bool
	listeners []func(bool)
	reconnect []func()
}

// New returns a monitor starting in the given state.
func New(clock clockwork.Clock, settle time.Duration, online bool) *Monitor {
	if settle <= 0 {
		settle = DefaultSettle
	}
	return &Monitor{
		settle: debounce.New(clock, settle),
		online: online,
	}
}

// Online reports the last known status.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Set records a new status. Repeating the current status is a no-op.
func (m *Monitor) Set(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	listeners := append([]func(bool){}, m.listeners...)
	m.mu.Unlock()

	if online {
		log.Printf("[netmon] online")
		m.settle.Trigger(m.fireReconnect)
	} else {
		log.Printf("[netmon] offline")
		m.settle.Stop()
	}
	for _, fn := range listeners {
		fn(online)
	}
}

// Subscribe registers fn for every status change.
func (m *Monitor) Subscribe(fn func(online bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// OnReconnect registers fn to run after each settled offline to online transition.
func (m *Monitor) OnReconnect(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reconnect = append(m.reconnect, fn)
}

// Stop cancels a pending reconnect.
func (m *Monitor) Stop() {
	m.settle.Stop()
}

func (m *Monitor) fireReconnect() {
	m.mu.Lock()
	if !m.online {
		m.mu.Unlock()
		return
	}
	handlers := append([]func(){}, m.reconnect...)
	m.mu.Unlock()

	for _, fn := range handlers {
		fn()
	}
}
