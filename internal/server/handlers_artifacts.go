package server

import (
	"bytes"
	"errors"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/jonathan/cv-sync/internal/artifacts"
	"github.com/jonathan/cv-sync/internal/server/middleware"
	"github.com/jonathan/cv-sync/internal/types"
)

// maxImageBytes caps profile image uploads.
const maxImageBytes = 5 << 20

// imageTypes maps accepted sniffed content types to file extensions.
var imageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// handleUploadProfileImage stores the multipart "image" field and returns its URL.
// The client saves the URL into the CV with a regular PATCH.
func (s *Server) handleUploadProfileImage(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserID(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes+(64<<10))
	file, header, err := r.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, (&ErrPayloadTooLarge{Limit: maxImageBytes}).Error())
			return
		}
		writeError(w, http.StatusBadRequest, "validation error: image - required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxImageBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read image")
		return
	}
	if len(data) > maxImageBytes {
		writeError(w, http.StatusRequestEntityTooLarge, (&ErrPayloadTooLarge{Limit: maxImageBytes}).Error())
		return
	}

	contentType := http.DetectContentType(data)
	ext, ok := imageTypes[contentType]
	if !ok {
		writeError(w, http.StatusUnsupportedMediaType, "unsupported image type "+contentType)
		return
	}

	key := artifacts.NewKey(userID, artifacts.KindProfileImage, ext)
	url, err := s.storeArtifact(r.Context(), userID, artifacts.KindProfileImage, key, contentType, bytes.NewReader(data))
	if err != nil {
		s.internalError(w, "upload image", err)
		return
	}

	log.Printf("[artifacts] user %s uploaded %s as %s", userID, filepath.Base(header.Filename), key)
	writeJSON(w, http.StatusCreated, types.ImageUploadResponse{ImageURL: url})
}

// handleArtifact streams a stored artifact. Keys are unguessable, so the route is public.
func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	rc, err := s.store.Open(r.Context(), key)
	if err != nil {
		status := HTTPStatus(err)
		if status == http.StatusInternalServerError {
			s.internalError(w, "open artifact", err)
			return
		}
		writeError(w, status, err.Error())
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", artifacts.ContentType(key))
	w.Header().Set("Cache-Control", "private, max-age=31536000, immutable")
	if strings.HasSuffix(key, ".pdf") {
		w.Header().Set("Content-Disposition", `inline; filename="cv.pdf"`)
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		log.Printf("[artifacts] failed to stream %s: %v", key, err)
	}
}
