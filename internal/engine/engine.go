// Package engine wires the document container, local store, pending-update
// queue, reachability monitor, autosave scheduler, remote client and PDF
// orchestrator into one explicitly constructed sync engine.
package engine

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/cv-sync/internal/autosave"
	"github.com/jonathan/cv-sync/internal/cvstate"
	"github.com/jonathan/cv-sync/internal/netmon"
	"github.com/jonathan/cv-sync/internal/pdf"
	"github.com/jonathan/cv-sync/internal/queue"
	"github.com/jonathan/cv-sync/internal/remote"
	"github.com/jonathan/cv-sync/internal/storage"
	"github.com/jonathan/cv-sync/internal/types"
)

// DefaultSyncTimeout bounds background drains triggered by reconnects.
const DefaultSyncTimeout = 30 * time.Second

// Remote is the server API the engine depends on. *remote.Client implements it.
type Remote interface {
	Fetch(ctx context.Context) (*types.CVDocument, error)
	Push(ctx context.Context, data types.Partial) (*types.CVDocument, error)
	UploadProfileImage(ctx context.Context, name string, r io.Reader, onProgress func(float64)) (string, error)
	RenderPDF(ctx context.Context, req types.RenderRequest, onProgress func(int)) (string, error)
	Ping(ctx context.Context) error
}

// Config holds the engine timings.
type Config struct {
	AutosaveDelay   time.Duration
	SettleDelay     time.Duration
	ProbeInterval   time.Duration // zero disables the background prober
	MaxQueueEntries int
	SyncTimeout     time.Duration
	StartOnline     bool
}

// Deps are the engine collaborators. Clock and Config are optional.
type Deps struct {
	Clock  clockwork.Clock
	Store  storage.Store
	Remote Remote
	Config Config
}

// Engine is safe for concurrent use.
type Engine struct {
	clock   clockwork.Clock
	local   *storage.Local
	remote  Remote
	cfg     Config
	session string

	container *cvstate.Container
	queue     *queue.Queue
	monitor   *netmon.Monitor
	prober    *netmon.Prober
	autosave  *autosave.Scheduler
	pdf       *pdf.Orchestrator

	// syncMu serializes every push and drain.
	syncMu sync.Mutex

	statusMu sync.Mutex
	lastSync *time.Time
	syncErr  string
	parked   bool

	cancel context.CancelFunc
	group  *errgroup.Group
}

// New builds an engine. Nothing runs until Start.
func New(deps Deps) (*Engine, error) {
	if deps.Store == nil {
		return nil, errors.New("engine: store is required")
	}
	if deps.Remote == nil {
		return nil, errors.New("engine: remote is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	cfg := deps.Config
	if cfg.SyncTimeout <= 0 {
		cfg.SyncTimeout = DefaultSyncTimeout
	}
	maxEntries := cfg.MaxQueueEntries
	if maxEntries == 0 {
		maxEntries = queue.DefaultMaxEntries
	}

	local := storage.NewLocal(deps.Store, storage.WithClock(clock))
	e := &Engine{
		clock:     clock,
		local:     local,
		remote:    deps.Remote,
		cfg:       cfg,
		session:   uuid.NewString(),
		container: cvstate.NewContainer(clock, types.NewCVDocument(clock.Now())),
		queue:     queue.New(local, queue.WithClock(clock), queue.WithMaxEntries(maxEntries)),
		monitor:   netmon.New(clock, cfg.SettleDelay, cfg.StartOnline),
		pdf:       pdf.New(clock, deps.Remote),
	}
	e.autosave = autosave.NewScheduler(clock, cfg.AutosaveDelay, &autosave.Saver{Store: local, Sync: e},
		autosave.WithTimeout(cfg.SyncTimeout))
	if cfg.ProbeInterval > 0 {
		e.prober = netmon.NewProber(clock, e.monitor, deps.Remote, cfg.ProbeInterval)
	}
	return e, nil
}

// Start restores the document and queue, then starts listening for edits and reconnects.
// The document comes from the remote when online and nothing is queued, else from
// the local cache, else defaults.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.queue.Load(ctx); err != nil {
		log.Printf("[engine] warning: %v", err)
	}

	if e.prober != nil {
		e.prober.Probe(ctx)
	}
	e.container.Dispatch(cvstate.LoadDocument{Document: e.initialDocument(ctx)})

	e.container.Subscribe(e.autosave.Schedule)
	e.monitor.OnReconnect(e.onReconnect)

	bg, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.group, bg = errgroup.WithContext(bg)
	if e.prober != nil {
		e.group.Go(func() error { return e.prober.Run(bg) })
	}

	if e.monitor.Online() && e.queue.Len() > 0 {
		e.syncMu.Lock()
		err := e.drainLocked(ctx)
		e.syncMu.Unlock()
		if err != nil {
			log.Printf("[engine] startup drain failed: %v", err)
		}
	}
	return nil
}

func (e *Engine) initialDocument(ctx context.Context) types.CVDocument {
	if e.monitor.Online() && e.queue.Len() == 0 {
		doc, err := e.remote.Fetch(ctx)
		if err == nil {
			if err := e.local.SaveDocument(ctx, *doc); err != nil {
				log.Printf("[engine] warning: failed to cache fetched document: %v", err)
			}
			e.markSuccess()
			return *doc
		}
		log.Printf("[engine] fetch failed, using local copy: %v", err)
		if remote.IsRetryable(err) {
			e.monitor.Set(false)
		}
	}

	doc, err := e.local.LoadDocument(ctx)
	switch {
	case err == nil:
		return doc
	case errors.Is(err, storage.ErrNotFound):
		return types.NewCVDocument(e.clock.Now())
	default:
		log.Printf("[engine] warning: local document unreadable, starting empty: %v", err)
		return types.NewCVDocument(e.clock.Now())
	}
}

// Stop flushes the pending autosave and stops background work.
func (e *Engine) Stop(ctx context.Context) error {
	e.autosave.Flush()
	e.monitor.Stop()
	if e.cancel != nil {
		e.cancel()
		if err := e.group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	}
	return e.local.Close()
}

// Apply validates and applies an edit.
func (e *Engine) Apply(a cvstate.Action) (cvstate.Snapshot, error) {
	before := e.container.Snapshot().Revision
	snap, err := e.container.Apply(a)
	if err == nil && snap.Revision != before {
		e.setParked(false)
	}
	return snap, err
}

// Dispatch applies an edit without validation.
func (e *Engine) Dispatch(a cvstate.Action) cvstate.Snapshot {
	before := e.container.Snapshot().Revision
	snap := e.container.Dispatch(a)
	if snap.Revision != before {
		e.setParked(false)
	}
	return snap
}

// Flush runs a pending autosave now. It reports whether a save ran.
func (e *Engine) Flush() bool {
	return e.autosave.Flush()
}

// Reset restores an empty document. The selected template and network state are kept.
func (e *Engine) Reset() cvstate.Snapshot {
	return e.Dispatch(cvstate.ResetDocument{})
}

// Document returns a copy of the current document.
func (e *Engine) Document() types.CVDocument {
	return e.container.Document()
}

// Session returns a copy of the edit session.
func (e *Engine) Session() cvstate.EditSession {
	return e.container.Session()
}

// Container exposes the document container for editor-state calls.
func (e *Engine) Container() *cvstate.Container {
	return e.container
}

// Monitor exposes the reachability monitor.
func (e *Engine) Monitor() *netmon.Monitor {
	return e.monitor
}

// PendingUpdates returns the queued entries.
func (e *Engine) PendingUpdates() []queue.PendingUpdate {
	return e.queue.Entries()
}

// Status returns the current sync status.
func (e *Engine) Status() types.SyncStatus {
	e.statusMu.Lock()
	defer e.statusMu.Unlock()
	return types.SyncStatus{
		IsOnline:     e.monitor.Online(),
		LastSyncTime: e.lastSync,
		SyncError:    e.syncErr,
		PendingCount: e.queue.Len(),
		Parked:       e.parked,
	}
}

// PDFJob returns the PDF generation state.
func (e *Engine) PDFJob() pdf.Job {
	return e.pdf.Job()
}

// SubscribePDF registers fn for PDF job changes.
func (e *Engine) SubscribePDF(fn func(pdf.Job)) {
	e.pdf.Subscribe(fn)
}

// SelectTemplate picks the template for later PDF generation.
func (e *Engine) SelectTemplate(t types.PDFTemplate) error {
	return e.pdf.SelectTemplate(t)
}

// GeneratePDF renders the current document.
func (e *Engine) GeneratePDF(ctx context.Context, template types.PDFTemplate, opts pdf.Options) (string, error) {
	uri, err := e.pdf.Generate(ctx, e.container.Document(), template, opts)
	if err != nil && remote.IsRetryable(err) {
		e.monitor.Set(false)
	}
	return uri, err
}

// UploadProfileImage uploads an image and sets the returned URL on the document.
func (e *Engine) UploadProfileImage(ctx context.Context, name string, r io.Reader, onProgress func(float64)) (string, error) {
	u, err := e.remote.UploadProfileImage(ctx, name, r, onProgress)
	if err != nil {
		if remote.IsRetryable(err) {
			e.monitor.Set(false)
		}
		return "", err
	}
	e.Dispatch(cvstate.SetProfileImage{URL: u})
	return u, nil
}
