package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/cv-sync/internal/observability"
	"github.com/jonathan/cv-sync/internal/pdf"
	"github.com/jonathan/cv-sync/internal/types"
)

var (
	pdfTemplate string
	pdfFormat   string
	pdfOut      string
)

var pdfCmd = &cobra.Command{
	Use:   "pdf",
	Short: "Render the CV to PDF on the server",
	Long: `Render the current document with one of the server templates (modern, classic
or minimal) and print the resulting PDF URL. With --out the PDF is also downloaded.`,
	Args: cobra.NoArgs,
	RunE: runPDF,
}

func init() {
	pdfCmd.Flags().StringVarP(&pdfTemplate, "template", "t", "", "Template: modern, classic or minimal")
	pdfCmd.Flags().StringVar(&pdfFormat, "format", "", "Paper format: A4 or Letter")
	pdfCmd.Flags().StringVarP(&pdfOut, "out", "o", "", "Download the PDF to this path")
	rootCmd.AddCommand(pdfCmd)
}

func runPDF(cmd *cobra.Command, _ []string) error {
	return withEngine(cmd, func(ctx context.Context, a *app) error {
		template := types.PDFTemplate(a.cfg.Template)
		if cmd.Flags().Changed("template") {
			template = types.PDFTemplate(pdfTemplate)
		}
		format := types.PDFFormat(a.cfg.Format)
		if cmd.Flags().Changed("format") {
			format = types.PDFFormat(pdfFormat)
		}
		if err := a.engine.SelectTemplate(template); err != nil {
			return err
		}

		progressOut := cmd.ErrOrStderr()
		a.engine.SubscribePDF(func(job pdf.Job) {
			if job.IsGenerating {
				_, _ = fmt.Fprintf(progressOut, "\r%s", observability.ProgressLine("Rendering", job.Progress))
			}
		})

		uri, err := a.engine.GeneratePDF(ctx, template, pdf.Options{Format: format})
		_, _ = fmt.Fprintln(progressOut)
		a.printer.PrintPDFJob(a.engine.PDFJob())
		if err != nil {
			return fmt.Errorf("failed to generate PDF: %w", err)
		}

		if pdfOut != "" {
			if err := download(ctx, uri, pdfOut); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", pdfOut)
		}
		return nil
	})
}

func download(ctx context.Context, uri, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return fmt.Errorf("invalid PDF URL: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download PDF: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to download PDF: HTTP %d", resp.StatusCode)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
