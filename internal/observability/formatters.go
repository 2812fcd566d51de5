// Package observability provides formatted output utilities for the cvsync CLI.
package observability

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/jonathan/cv-sync/internal/pdf"
	"github.com/jonathan/cv-sync/internal/queue"
	"github.com/jonathan/cv-sync/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
	// progressBarWidth is the number of cells in a progress bar
	progressBarWidth = 30
)

// Printer handles formatted output for the CLI
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(strings.TrimRight(content, "\n"), "\n")
	for _, line := range lines {
		// Truncate long lines
		if runes := []rune(line); len(runes) > boxWidth-4 {
			line = string(runes[:boxWidth-7]) + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintSyncStatus outputs the sync state and the pending queue.
func (p *Printer) PrintSyncStatus(status types.SyncStatus, pending []queue.PendingUpdate) {
	var sb strings.Builder

	online := "offline"
	if status.IsOnline {
		online = "online"
	}
	sb.WriteString(fmt.Sprintf("Status:    %s\n", status.Label()))
	sb.WriteString(fmt.Sprintf("Network:   %s\n", online))
	if status.LastSyncTime != nil {
		sb.WriteString(fmt.Sprintf("Last sync: %s\n", status.LastSyncTime.Local().Format(time.RFC822)))
	} else {
		sb.WriteString("Last sync: never\n")
	}
	sb.WriteString(fmt.Sprintf("Pending:   %d update(s)\n", status.PendingCount))
	if status.Parked {
		sb.WriteString("Queue is parked; run `cvsync sync` to retry.\n")
	}
	if status.SyncError != "" {
		sb.WriteString(fmt.Sprintf("Error:     %s\n", status.SyncError))
	}

	if len(pending) > 0 {
		sb.WriteString("\nQueued:\n")
		count := min(len(pending), maxItemsToShow)
		for i := 0; i < count; i++ {
			u := pending[i]
			sb.WriteString(fmt.Sprintf("  • %s %s\n", u.Timestamp.Local().Format("15:04:05"), sectionList(u.Data.Sections())))
		}
		if len(pending) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(pending)-maxItemsToShow))
		}
	}

	p.printBox("SYNC STATUS", sb.String())
}

// PrintDocument outputs a summary of a CV document.
func (p *Printer) PrintDocument(doc types.CVDocument) {
	var sb strings.Builder

	name := strings.TrimSpace(doc.PersonalInfo.FirstName + " " + doc.PersonalInfo.LastName)
	if name == "" {
		name = "(no name)"
	}
	sb.WriteString(fmt.Sprintf("Name:       %s\n", name))
	if doc.PersonalInfo.Email != "" {
		sb.WriteString(fmt.Sprintf("Email:      %s\n", doc.PersonalInfo.Email))
	}
	sb.WriteString(fmt.Sprintf("Completion: %s %d%%\n", bar(doc.CompletionPercentage), doc.CompletionPercentage))
	if !doc.LastUpdated.IsZero() {
		sb.WriteString(fmt.Sprintf("Updated:    %s\n", doc.LastUpdated.Local().Format(time.RFC822)))
	}
	sb.WriteString("\n")

	counts := []struct {
		label string
		n     int
	}{
		{"Education", len(doc.Education)},
		{"Experience", len(doc.WorkExperience)},
		{"Projects", len(doc.Projects)},
		{"Skills", len(doc.Skills)},
		{"Languages", len(doc.Languages)},
		{"Links", len(doc.SocialLinks)},
		{"Interests", len(doc.Interests)},
	}
	for _, c := range counts {
		sb.WriteString(fmt.Sprintf("  %-11s %d\n", c.label+":", c.n))
	}

	if missing := types.IncompleteSections(doc); len(missing) > 0 {
		sb.WriteString(fmt.Sprintf("\nTo complete: %s\n", strings.Join(missing, ", ")))
	}

	p.printBox("CV DOCUMENT", sb.String())
}

// PrintPDFJob outputs the state of the PDF generator.
func (p *Printer) PrintPDFJob(job pdf.Job) {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Template: %s\n", job.Template))
	sb.WriteString(fmt.Sprintf("Status:   %s\n", job.Status))
	sb.WriteString(fmt.Sprintf("Progress: %s %d%%\n", bar(job.Progress), job.Progress))
	if job.LastGeneratedURI != "" {
		sb.WriteString(fmt.Sprintf("PDF:      %s\n", job.LastGeneratedURI))
	}
	if job.Error != "" {
		sb.WriteString(fmt.Sprintf("Error:    %s\n", job.Error))
	}

	p.printBox("PDF", sb.String())
}

// PrintValidationErrors outputs field validation failures, sorted by field.
func (p *Printer) PrintValidationErrors(errs map[string]string) {
	if len(errs) == 0 {
		return
	}

	fields := make([]string, 0, len(errs))
	for f := range errs {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	var sb strings.Builder
	for _, f := range fields {
		sb.WriteString(fmt.Sprintf("  • %s: %s\n", f, errs[f]))
	}
	p.printBox(fmt.Sprintf("VALIDATION ERRORS (%d)", len(errs)), sb.String())
}

// ProgressLine renders a single-line progress indicator, suitable for \r updates.
func ProgressLine(label string, percent int) string {
	percent = max(0, min(100, percent))
	return fmt.Sprintf("%s %s %3d%%", label, bar(percent), percent)
}

func bar(percent int) string {
	percent = max(0, min(100, percent))
	filled := percent * progressBarWidth / 100
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", progressBarWidth-filled) + "]"
}

func sectionList(sections []types.Section) string {
	names := make([]string, len(sections))
	for i, s := range sections {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}
