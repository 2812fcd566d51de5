package observability

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/cv-sync/internal/pdf"
	"github.com/jonathan/cv-sync/internal/queue"
	"github.com/jonathan/cv-sync/internal/types"
)

func TestPrintSyncStatus(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	synced := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	pending := []queue.PendingUpdate{
		{ID: "1", Data: types.Partial{"skills": []byte(`[]`)}, Timestamp: synced},
		{ID: "2", Data: types.Partial{"education": []byte(`[]`), "personalInfo": []byte(`{}`)}, Timestamp: synced},
	}
	p.PrintSyncStatus(types.SyncStatus{
		IsOnline:     false,
		LastSyncTime: &synced,
		PendingCount: 2,
	}, pending)
	output := buf.String()

	assert.Contains(t, output, "SYNC STATUS")
	assert.Contains(t, output, "offline, pending sync")
	assert.Contains(t, output, "2 update(s)")
	assert.Contains(t, output, "skills")
	assert.Contains(t, output, "education, personalInfo")
	assert.NotContains(t, output, "parked")
}

func TestPrintSyncStatus_ParkedWithError(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	pending := make([]queue.PendingUpdate, 7)
	p.PrintSyncStatus(types.SyncStatus{
		IsOnline:     true,
		SyncError:    "push: HTTP 400",
		PendingCount: 7,
		Parked:       true,
	}, pending)
	output := buf.String()

	assert.Contains(t, output, "sync error")
	assert.Contains(t, output, "Last sync: never")
	assert.Contains(t, output, "parked")
	assert.Contains(t, output, "HTTP 400")
	assert.Contains(t, output, "... and 2 more")
}

func TestPrintDocument(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	doc := types.NewCVDocument(time.Time{})
	doc.PersonalInfo = types.PersonalInfo{FirstName: "Ana", LastName: "Silva", Email: "ana@example.com"}
	doc.Skills = []types.Skill{{Name: "Go"}, {Name: "SQL"}}
	doc = types.Recompute(doc)

	p.PrintDocument(doc)
	output := buf.String()

	assert.Contains(t, output, "CV DOCUMENT")
	assert.Contains(t, output, "Ana Silva")
	assert.Contains(t, output, "40%")
	assert.Contains(t, output, "Skills:     2")
	assert.Contains(t, output, "To complete: education, experience")
	assert.NotContains(t, output, "Updated:")
}

func TestPrintPDFJob(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintPDFJob(pdf.Job{
		Template: types.TemplateClassic,
		Status:   pdf.StatusFailed,
		Progress: 45,
		Error:    "render pdf: HTTP 502",
	})
	output := buf.String()

	assert.Contains(t, output, "classic")
	assert.Contains(t, output, "failed")
	assert.Contains(t, output, "45%")
	assert.Contains(t, output, "HTTP 502")
	assert.NotContains(t, output, "PDF:      ")
}

func TestPrintValidationErrors(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintValidationErrors(nil)
	assert.Empty(t, buf.String())

	p.PrintValidationErrors(map[string]string{"skill.name": "required", "email": "email"})
	output := buf.String()
	assert.Contains(t, output, "VALIDATION ERRORS (2)")
	assert.Less(t, strings.Index(output, "email"), strings.Index(output, "skill.name"))
}

func TestPrintBox_TruncatesLongLines(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.printBox("TITLE", strings.Repeat("x", 200))
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		assert.LessOrEqual(t, len([]rune(line)), boxWidth)
	}
	assert.Contains(t, buf.String(), "...")
}

func TestProgressLine(t *testing.T) {
	assert.Equal(t, "PDF ["+strings.Repeat("░", 30)+"]   0%", ProgressLine("PDF", 0))
	assert.Equal(t, "PDF ["+strings.Repeat("█", 15)+strings.Repeat("░", 15)+"]  50%", ProgressLine("PDF", 50))
	assert.Equal(t, "PDF ["+strings.Repeat("█", 30)+"] 100%", ProgressLine("PDF", 150))
}
