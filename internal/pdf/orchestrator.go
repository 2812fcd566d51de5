// Package pdf provides the orchestrator for long-running PDF generation with progress reporting.
package pdf

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/jonathan/cv-sync/internal/types"
)

var (
	ErrAlreadyGenerating = errors.New("a PDF is already being generated")
	ErrInvalidTemplate   = errors.New("unknown PDF template")
)

const (
	DefaultSimulateInterval = 400 * time.Millisecond
	DefaultSimulateStep     = 10
	DefaultSimulateCeiling  = 90

	// maxInFlight is the highest progress shown before the renderer confirms success.
	maxInFlight = 99
)

// Status is the orchestrator state.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusGenerating Status = "generating"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Job is a snapshot of the generation state.
type Job struct {
	IsGenerating     bool              `json:"isGenerating"`
	Progress         int               `json:"progress"`
	Template         types.PDFTemplate `json:"template"`
	LastGeneratedURI string            `json:"lastGeneratedUri,omitempty"`
	Status           Status            `json:"status"`
	Error            string            `json:"error,omitempty"`
}

// Renderer produces a PDF for a request and reports progress in percent.
type Renderer interface {
	RenderPDF(ctx context.Context, req types.RenderRequest, onProgress func(int)) (string, error)
}

// Options tunes one Generate call. Zero values use the defaults.
type Options struct {
	Format types.PDFFormat
	// SimulateInterval, SimulateStep and SimulateCeiling drive synthetic progress
	// until the renderer reports its own.
	SimulateInterval time.Duration
	SimulateStep     int
	SimulateCeiling  int
}

func (o Options) withDefaults() Options {
	if o.Format == "" {
		o.Format = types.FormatA4
	}
	if o.SimulateInterval <= 0 {
		o.SimulateInterval = DefaultSimulateInterval
	}
	if o.SimulateStep <= 0 {
		o.SimulateStep = DefaultSimulateStep
	}
	if o.SimulateCeiling <= 0 || o.SimulateCeiling > maxInFlight {
		o.SimulateCeiling = DefaultSimulateCeiling
	}
	return o
}

// Orchestrator runs at most one generation at a time.
//
// Progress never decreases during a run and reaches 100 only on success. A
// failed run keeps the progress it had reached and the previous URI.
type Orchestrator struct {
	clock    clockwork.Clock
	renderer Renderer

	mu          sync.Mutex
	job         Job
	subscribers []func(Job)
}

// New returns an idle orchestrator using the default template.
func New(clock clockwork.Clock, renderer Renderer) *Orchestrator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Orchestrator{
		clock:    clock,
		renderer: renderer,
		job:      Job{Template: types.DefaultTemplate, Status: StatusIdle},
	}
}

// Job returns the current state.
func (o *Orchestrator) Job() Job {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.job
}

// Subscribe registers fn for every state change. fn runs with the orchestrator
// locked and must not call back into it.
func (o *Orchestrator) Subscribe(fn func(Job)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.subscribers = append(o.subscribers, fn)
}

// SelectTemplate sets the template used when Generate is called without one.
func (o *Orchestrator) SelectTemplate(t types.PDFTemplate) error {
	if !t.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidTemplate, t)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.job.Template = t
	o.emitLocked()
	return nil
}

// Generate renders doc with template (or the selected one when empty) and returns the PDF URI.
func (o *Orchestrator) Generate(ctx context.Context, doc types.CVDocument, template types.PDFTemplate, opts Options) (string, error) {
	opts = opts.withDefaults()

	o.mu.Lock()
	if template == "" {
		template = o.job.Template
	}
	if !template.Valid() {
		o.mu.Unlock()
		return "", fmt.Errorf("%w: %q", ErrInvalidTemplate, template)
	}
	if o.job.IsGenerating {
		o.mu.Unlock()
		return "", ErrAlreadyGenerating
	}
	o.job.IsGenerating = true
	o.job.Progress = 0
	o.job.Template = template
	o.job.Status = StatusGenerating
	o.job.Error = ""
	o.emitLocked()
	o.mu.Unlock()

	log.Printf("[pdf] generating %s (%s)", template, opts.Format)

	var reported sync.WaitGroup
	stop := make(chan struct{})
	var realProgress bool
	var progressMu sync.Mutex

	reported.Add(1)
	go func() {
		defer reported.Done()
		o.simulate(stop, opts, func() bool {
			progressMu.Lock()
			defer progressMu.Unlock()
			return realProgress
		})
	}()

	req := types.RenderRequest{Document: doc, TemplateID: template, Format: opts.Format}
	uri, err := o.renderer.RenderPDF(ctx, req, func(p int) {
		progressMu.Lock()
		realProgress = true
		progressMu.Unlock()
		o.advance(p)
	})

	close(stop)
	reported.Wait()

	o.mu.Lock()
	defer o.mu.Unlock()
	o.job.IsGenerating = false
	if err != nil {
		o.job.Status = StatusFailed
		o.job.Error = err.Error()
		o.emitLocked()
		log.Printf("[pdf] generation failed at %d%%: %v", o.job.Progress, err)
		return "", err
	}
	o.job.Status = StatusCompleted
	o.job.Progress = 100
	o.job.LastGeneratedURI = uri
	o.emitLocked()
	log.Printf("[pdf] generated %s", uri)
	return uri, nil
}

// simulate advances progress on a ticker until stop closes or the renderer reports real progress.
func (o *Orchestrator) simulate(stop <-chan struct{}, opts Options, hasReal func() bool) {
	ticker := o.clock.NewTicker(opts.SimulateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
			if hasReal() {
				return
			}
			o.mu.Lock()
			next := o.job.Progress + opts.SimulateStep
			o.mu.Unlock()
			if next > opts.SimulateCeiling {
				next = opts.SimulateCeiling
			}
			o.advance(next)
		}
	}
}

// advance raises progress to p, clamped to the in-flight range. Lower values are ignored.
func (o *Orchestrator) advance(p int) {
	if p > maxInFlight {
		p = maxInFlight
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.job.IsGenerating || p <= o.job.Progress {
		return
	}
	o.job.Progress = p
	o.emitLocked()
}

func (o *Orchestrator) emitLocked() {
	job := o.job
	for _, fn := range o.subscribers {
		fn(job)
	}
}
