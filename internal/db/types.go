package db

import (
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/cv-sync/internal/types"
)

// User is an account allowed to sync a CV.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Never serialize to JSON
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// StoredCV is a user's CV with its server-side version counter.
type StoredCV struct {
	UserID    uuid.UUID        `json:"user_id"`
	Document  types.CVDocument `json:"document"`
	Version   int64            `json:"version"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Artifact records a stored PDF or profile image.
type Artifact struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	Kind        string    `json:"kind"`
	StorageKey  string    `json:"storage_key"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	CreatedAt   time.Time `json:"created_at"`
}
