package types

import "time"

// SyncStatus summarizes the relationship between the local document and the remote copy.
// IsOnline is owned by the reachability monitor; the remaining fields by the sync path.
type SyncStatus struct {
	IsOnline     bool       `json:"isOnline"`
	LastSyncTime *time.Time `json:"lastSyncTime,omitempty"`
	SyncError    string     `json:"syncError,omitempty"`
	PendingCount int        `json:"pendingCount"`
	Parked       bool       `json:"parked,omitempty"`
}

// Label derives the short user-facing status.
func (s SyncStatus) Label() string {
	switch {
	case s.SyncError != "":
		return "sync error"
	case !s.IsOnline && s.PendingCount > 0:
		return "offline, pending sync"
	case !s.IsOnline:
		return "offline"
	case s.PendingCount > 0:
		return "pending sync"
	default:
		return "saved"
	}
}

// PDFTemplate identifies one of the server-side CV layouts.
type PDFTemplate string

const (
	TemplateModern  PDFTemplate = "modern"
	TemplateClassic PDFTemplate = "classic"
	TemplateMinimal PDFTemplate = "minimal"
)

// DefaultTemplate is selected until the user picks another.
const DefaultTemplate = TemplateModern

// Valid reports whether t is a known template.
func (t PDFTemplate) Valid() bool {
	switch t {
	case TemplateModern, TemplateClassic, TemplateMinimal:
		return true
	default:
		return false
	}
}

// PDFFormat is the paper size requested from the renderer.
type PDFFormat string

const (
	FormatA4     PDFFormat = "A4"
	FormatLetter PDFFormat = "Letter"
)

// RenderRequest is the body of a PDF render call.
type RenderRequest struct {
	Document   CVDocument  `json:"document"`
	TemplateID PDFTemplate `json:"templateId" validate:"required,oneof=modern classic minimal"`
	Format     PDFFormat   `json:"format,omitempty" validate:"omitempty,oneof=A4 Letter"`
}

// RenderResponse is returned by the render endpoint on success.
type RenderResponse struct {
	PDFURL string `json:"pdfUrl"`
}

// RenderProgress is streamed while a render is in flight.
type RenderProgress struct {
	Progress int    `json:"progress"`
	Stage    string `json:"stage,omitempty"`
}

// ImageUploadResponse is returned by the profile image endpoint.
type ImageUploadResponse struct {
	ImageURL string `json:"imageUrl"`
}

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}
