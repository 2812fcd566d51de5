package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/cv-sync/internal/types"
)

// GetCV returns the user's CV, or nil when none was saved yet.
func (db *DB) GetCV(ctx context.Context, userID uuid.UUID) (*StoredCV, error) {
	return getCV(ctx, db.pool, userID, false)
}

// SaveCV replaces the user's CV and bumps its version.
func (db *DB) SaveCV(ctx context.Context, userID uuid.UUID, doc types.CVDocument) (*StoredCV, error) {
	return saveCV(ctx, db.pool, userID, doc)
}

// UpdateCV loads the user's CV under a row lock, applies fn and saves the result.
// fn receives defaults when no CV exists yet.
func (db *DB) UpdateCV(ctx context.Context, userID uuid.UUID, fn func(types.CVDocument) (types.CVDocument, error)) (*StoredCV, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	current, err := getCV(ctx, tx, userID, true)
	if err != nil {
		return nil, err
	}
	doc := types.NewCVDocument(time.Now())
	if current != nil {
		doc = current.Document
	}

	next, err := fn(doc)
	if err != nil {
		return nil, err
	}

	saved, err := saveCV(ctx, tx, userID, next)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit CV update: %w", err)
	}
	return saved, nil
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getCV(ctx context.Context, q querier, userID uuid.UUID, forUpdate bool) (*StoredCV, error) {
	query := `SELECT document, version, updated_at FROM cv_documents WHERE user_id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var raw []byte
	cv := StoredCV{UserID: userID}
	err := q.QueryRow(ctx, query, userID).Scan(&raw, &cv.Version, &cv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get CV: %w", err)
	}
	if err := json.Unmarshal(raw, &cv.Document); err != nil {
		return nil, fmt.Errorf("failed to unmarshal CV: %w", err)
	}
	cv.Document = cv.Document.Normalize()
	return &cv, nil
}

func saveCV(ctx context.Context, q querier, userID uuid.UUID, doc types.CVDocument) (*StoredCV, error) {
	doc = doc.Normalize()
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal CV: %w", err)
	}

	cv := StoredCV{UserID: userID, Document: doc}
	err = q.QueryRow(ctx,
		`INSERT INTO cv_documents (user_id, document, version, updated_at)
		 VALUES ($1, $2, 1, NOW())
		 ON CONFLICT (user_id) DO UPDATE
		   SET document = EXCLUDED.document,
		       version = cv_documents.version + 1,
		       updated_at = NOW()
		 RETURNING version, updated_at`,
		userID, raw,
	).Scan(&cv.Version, &cv.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to save CV: %w", err)
	}
	return &cv, nil
}
