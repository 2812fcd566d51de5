package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// RecordArtifact stores the metadata of an uploaded artifact.
func (db *DB) RecordArtifact(ctx context.Context, a *Artifact) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	err := db.pool.QueryRow(ctx,
		`INSERT INTO artifacts (id, user_id, kind, storage_key, content_type, size_bytes)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at`,
		a.ID, a.UserID, a.Kind, a.StorageKey, a.ContentType, a.SizeBytes,
	).Scan(&a.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record artifact %s: %w", a.StorageKey, err)
	}
	return nil
}

// ListArtifacts returns the user's artifacts of a kind, newest first.
// An empty kind lists every kind.
func (db *DB) ListArtifacts(ctx context.Context, userID uuid.UUID, kind string, limit int) ([]Artifact, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := db.pool.Query(ctx,
		`SELECT id, user_id, kind, storage_key, content_type, size_bytes, created_at
		 FROM artifacts
		 WHERE user_id = $1 AND ($2 = '' OR kind = $2)
		 ORDER BY created_at DESC
		 LIMIT $3`,
		userID, kind, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}
	defer rows.Close()

	var artifacts []Artifact
	for rows.Next() {
		var a Artifact
		if err := rows.Scan(&a.ID, &a.UserID, &a.Kind, &a.StorageKey, &a.ContentType, &a.SizeBytes, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan artifact: %w", err)
		}
		artifacts = append(artifacts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating artifacts: %w", err)
	}
	return artifacts, nil
}
