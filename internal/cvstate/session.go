package cvstate

import "github.com/jonathan/cv-sync/internal/types"

// EditSession is transient editor state. It is never persisted and starts from defaults on every run.
type EditSession struct {
	ActiveSection     types.Section          `json:"activeSection"`
	Collapsed         map[types.Section]bool `json:"collapsed"`
	HasUnsavedChanges bool                   `json:"hasUnsavedChanges"`
	ValidationErrors  map[string]string      `json:"validationErrors"`
	PreviewMode       bool                   `json:"previewMode"`
}

// NewEditSession returns the default session: personal info open, nothing collapsed.
func NewEditSession() EditSession {
	return EditSession{
		ActiveSection:    types.SectionPersonalInfo,
		Collapsed:        make(map[types.Section]bool),
		ValidationErrors: make(map[string]string),
	}
}

func (s EditSession) clone() EditSession {
	out := s
	out.Collapsed = make(map[types.Section]bool, len(s.Collapsed))
	for k, v := range s.Collapsed {
		out.Collapsed[k] = v
	}
	out.ValidationErrors = make(map[string]string, len(s.ValidationErrors))
	for k, v := range s.ValidationErrors {
		out.ValidationErrors[k] = v
	}
	return out
}
