// Package schemas embeds the JSON Schemas used to validate locally persisted blobs.
package schemas

import "embed"

// FS holds every *.schema.json file in this directory.
//
//go:embed *.schema.json
var FS embed.FS

const (
	CVDocument     = "cv_document.schema.json"
	PendingUpdates = "pending_updates.schema.json"
)

// Names lists the embedded schema files.
func Names() []string {
	return []string{CVDocument, PendingUpdates}
}
