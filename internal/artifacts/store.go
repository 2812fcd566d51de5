// Package artifacts stores rendered PDFs and profile images for the sync server.
package artifacts

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"mime"
	"path"
	"strings"

	"github.com/google/uuid"
)

// Artifact kinds.
const (
	KindPDF          = "pdf"
	KindProfileImage = "profile-image"
)

var (
	ErrInvalidKey = errors.New("invalid artifact key")
	ErrNotFound   = errors.New("artifact not found")
)

// Store saves binary artifacts and hands out URLs clients can fetch them from.
type Store interface {
	Put(ctx context.Context, key, contentType string, r io.Reader) (int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	URL(ctx context.Context, key string) (string, error)
}

// NewKey returns a fresh key under the user's hashed namespace, e.g.
// "3f2a.../pdf/<uuid>.pdf".
func NewKey(userID uuid.UUID, kind, ext string) string {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return path.Join(hashUserKey(userID), kind, uuid.NewString()+strings.ToLower(ext))
}

// ContentType guesses a content type from the key's extension.
func ContentType(key string) string {
	if ct := mime.TypeByExtension(path.Ext(key)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// cleanKey rejects absolute keys and keys that escape the store root.
func cleanKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return "", ErrInvalidKey
	}
	clean := path.Clean(key)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", ErrInvalidKey
	}
	return clean, nil
}

func hashUserKey(userID uuid.UUID) string {
	sum := sha256.Sum256([]byte(userID.String()))
	return hex.EncodeToString(sum[:8])
}
