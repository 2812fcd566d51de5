package rendering

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/jonathan/cv-sync/internal/types"
)

// DefaultPrintTimeout bounds one headless-browser print.
const DefaultPrintTimeout = 60 * time.Second

// Printer turns an HTML page into PDF bytes.
type Printer interface {
	PrintPDF(ctx context.Context, html string, format types.PDFFormat) ([]byte, error)
}

// ChromeRenderer prints HTML to PDF with a headless Chrome driven by chromedp.
// Requires Chrome/Chromium to be installed on the system.
type ChromeRenderer struct {
	ExecPath string // empty lets chromedp find the browser
	Timeout  time.Duration
}

// NewChromeRenderer creates a renderer using the browser at execPath.
func NewChromeRenderer(execPath string) *ChromeRenderer {
	return &ChromeRenderer{ExecPath: execPath, Timeout: DefaultPrintTimeout}
}

// paperSize returns width and height in inches.
func paperSize(format types.PDFFormat) (float64, float64) {
	if format == types.FormatLetter {
		return 8.5, 11
	}
	// A4: 210mm x 297mm
	return 8.27, 11.69
}

// PrintPDF loads html from a temporary file and prints it.
func (r *ChromeRenderer) PrintPDF(ctx context.Context, html string, format types.PDFFormat) ([]byte, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if r.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(r.ExecPath))
	}

	allocCtx, cancel := chromedp.NewExecAllocator(ctx, opts...)
	defer cancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultPrintTimeout
	}
	browserCtx, cancel = context.WithTimeout(browserCtx, timeout)
	defer cancel()

	tmpDir, err := os.MkdirTemp("", "cvsync-render-")
	if err != nil {
		return nil, &RenderError{Stage: "prepare", Message: "failed to create temp dir", Cause: err}
	}
	defer os.RemoveAll(tmpDir)

	htmlPath := filepath.Join(tmpDir, "cv.html")
	if err := os.WriteFile(htmlPath, []byte(html), 0o644); err != nil {
		return nil, &RenderError{Stage: "prepare", Message: "failed to write HTML", Cause: err}
	}

	width, height := paperSize(format)
	var pdf []byte
	err = chromedp.Run(browserCtx,
		chromedp.Navigate("file://"+htmlPath),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			pdf, _, err = page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(width).
				WithPaperHeight(height).
				WithPreferCSSPageSize(true).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, &RenderError{Stage: "print", Message: "browser print failed", Cause: err}
	}

	log.Printf("[render] printed %s PDF: %d bytes", format, len(pdf))
	return pdf, nil
}

var _ Printer = (*ChromeRenderer)(nil)

// Stage reports a render step to a progress listener.
type Stage struct {
	Progress int
	Name     string
}

// Render stages, in order.
var (
	StageLayout = Stage{Progress: 20, Name: "layout"}
	StagePrint  = Stage{Progress: 50, Name: "print"}
	StageStore  = Stage{Progress: 90, Name: "store"}
)

// RenderPDF renders doc to HTML then prints it, reporting each stage to onStage.
func RenderPDF(ctx context.Context, p Printer, doc types.CVDocument, tmpl types.PDFTemplate, format types.PDFFormat, onStage func(Stage)) ([]byte, error) {
	if onStage == nil {
		onStage = func(Stage) {}
	}
	onStage(StageLayout)
	html, err := RenderHTML(doc, tmpl, format)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	onStage(StagePrint)
	pdf, err := p.PrintPDF(ctx, html, format)
	if err != nil {
		return nil, err
	}
	if len(pdf) == 0 {
		return nil, &RenderError{Stage: "print", Message: "empty PDF"}
	}
	return pdf, nil
}

// String implements fmt.Stringer.
func (s Stage) String() string {
	return fmt.Sprintf("%s (%d%%)", s.Name, s.Progress)
}
