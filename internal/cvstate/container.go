package cvstate

import (
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/jonathan/cv-sync/internal/types"
)

// Snapshot is a consistent view of the container at one revision.
type Snapshot struct {
	Document types.CVDocument
	Revision uint64
	// Dirty lists the sections changed since the last acknowledged sync.
	Dirty []types.Section
}

// Container owns the canonical document and its edit session.
// Transitions are serialized by a mutex, so no two actions interleave.
type Container struct {
	mu             sync.RWMutex
	clock          clockwork.Clock
	doc            types.CVDocument
	session        EditSession
	revision       uint64
	modified       map[types.Section]uint64
	syncedRevision uint64
	subscribers    []func(Snapshot)
}

// NewContainer creates a container holding initial, considered in sync with the remote.
func NewContainer(clock clockwork.Clock, initial types.CVDocument) *Container {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Container{
		clock:    clock,
		doc:      initial.Normalize(),
		session:  NewEditSession(),
		modified: make(map[types.Section]uint64),
	}
}

// Dispatch applies a without validation and returns the resulting snapshot.
// Actions that change nothing do not bump the revision or notify subscribers.
func (c *Container) Dispatch(a Action) Snapshot {
	c.mu.Lock()
	next, touched := Reduce(c.doc, a, c.clock.Now())

	_, isLoad := a.(LoadDocument)
	if len(touched) == 0 && !isLoad {
		snap := c.snapshotLocked()
		c.mu.Unlock()
		return snap
	}

	c.doc = next
	c.revision++
	if isLoad {
		// A loaded document is the new baseline.
		c.modified = make(map[types.Section]uint64)
		c.syncedRevision = c.revision
	}
	for _, s := range touched {
		c.modified[s] = c.revision
	}
	c.session.HasUnsavedChanges = c.revision > c.syncedRevision
	snap := c.snapshotLocked()
	subs := append([]func(Snapshot){}, c.subscribers...)
	c.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
	return snap
}

// Apply validates a and dispatches it. On failure the field errors are recorded
// in the session and the document is left unchanged.
func (c *Container) Apply(a Action) (Snapshot, error) {
	if fields := ValidateAction(a); len(fields) > 0 {
		c.mu.Lock()
		c.session.ValidationErrors = fields
		snap := c.snapshotLocked()
		c.mu.Unlock()
		return snap, &ValidationError{Fields: fields}
	}

	c.mu.Lock()
	c.session.ValidationErrors = make(map[string]string)
	c.mu.Unlock()
	return c.Dispatch(a), nil
}

// Document returns a copy of the current document.
func (c *Container) Document() types.CVDocument {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.doc.Clone()
}

// Session returns a copy of the edit session.
func (c *Container) Session() EditSession {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session.clone()
}

// Snapshot returns the current document, revision and dirty sections.
func (c *Container) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked()
}

// MarkSynced records that the remote acknowledged every change up to revision.
// The session stays dirty when newer edits exist.
func (c *Container) MarkSynced(revision uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if revision > c.revision {
		revision = c.revision
	}
	if revision > c.syncedRevision {
		c.syncedRevision = revision
	}
	c.session.HasUnsavedChanges = c.revision > c.syncedRevision
}

// Subscribe registers fn to be called after every state-changing dispatch.
func (c *Container) Subscribe(fn func(Snapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribers = append(c.subscribers, fn)
}

// SetActiveSection moves the editor focus.
func (c *Container) SetActiveSection(s types.Section) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session.ActiveSection = s
}

// ToggleSection flips the collapse flag of s and returns the new value.
func (c *Container) ToggleSection(s types.Section) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session.Collapsed[s] = !c.session.Collapsed[s]
	return c.session.Collapsed[s]
}

func (c *Container) SetPreviewMode(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session.PreviewMode = on
}

func (c *Container) ClearValidationErrors() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session.ValidationErrors = make(map[string]string)
}

func (c *Container) snapshotLocked() Snapshot {
	var dirty []types.Section
	for _, s := range types.AllSections() {
		if c.modified[s] > c.syncedRevision {
			dirty = append(dirty, s)
		}
	}
	return Snapshot{
		Document: c.doc.Clone(),
		Revision: c.revision,
		Dirty:    dirty,
	}
}
