package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/jonathan/cv-sync/internal/artifacts"
	"github.com/jonathan/cv-sync/internal/db"
	"github.com/jonathan/cv-sync/internal/rendering"
	"github.com/jonathan/cv-sync/internal/server/middleware"
	"github.com/jonathan/cv-sync/internal/types"
)

// handleRenderPDF renders the posted document to a PDF artifact.
// With Accept: text/event-stream progress is streamed and the result arrives
// as a "complete" or "error" event; otherwise the response is {pdfUrl}.
func (s *Server) handleRenderPDF(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserID(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req types.RenderRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, HTTPStatus(err), err.Error())
		return
	}
	if err := s.validator.Struct(req); err != nil {
		verr := validationError(err)
		writeError(w, HTTPStatus(verr), verr.Error())
		return
	}
	if req.Format == "" {
		req.Format = types.FormatA4
	}

	if !strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
		url, err := s.renderAndStore(r.Context(), userID, req, nil)
		if err != nil {
			s.renderFailed(w, err)
			return
		}
		writeJSON(w, http.StatusOK, types.RenderResponse{PDFURL: url})
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	url, err := s.renderAndStore(r.Context(), userID, req, func(st rendering.Stage) {
		if err := sse.WriteProgress(st.Progress, st.Name); err != nil {
			log.Printf("[render] failed to write progress: %v", err)
		}
	})
	if err != nil {
		status := HTTPStatus(err)
		if status == http.StatusInternalServerError {
			log.Printf("[render] failed: %v", err)
		}
		sse.WriteError(renderMessage(err, status), status)
		return
	}
	sse.WriteComplete(url)
}

// renderAndStore renders req, stores the PDF and returns its public URL.
// Renders beyond the concurrency limit wait for a slot.
func (s *Server) renderAndStore(ctx context.Context, userID uuid.UUID, req types.RenderRequest, onStage func(rendering.Stage)) (string, error) {
	if onStage == nil {
		onStage = func(rendering.Stage) {}
	}
	if err := s.renderSlots.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer s.renderSlots.Release(1)

	pdf, err := rendering.RenderPDF(ctx, s.printer, req.Document.Normalize(), req.TemplateID, req.Format, onStage)
	if err != nil {
		return "", err
	}

	onStage(rendering.StageStore)
	key := artifacts.NewKey(userID, artifacts.KindPDF, ".pdf")
	return s.storeArtifact(ctx, userID, artifacts.KindPDF, key, "application/pdf", bytes.NewReader(pdf))
}

func (s *Server) renderFailed(w http.ResponseWriter, err error) {
	status := HTTPStatus(err)
	if status == http.StatusInternalServerError {
		log.Printf("[render] failed: %v", err)
	}
	writeError(w, status, renderMessage(err, status))
}

func renderMessage(err error, status int) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "render cancelled"
	case status == http.StatusInternalServerError:
		return "internal server error"
	default:
		return err.Error()
	}
}

// storeArtifact writes the artifact, records it and returns its URL.
func (s *Server) storeArtifact(ctx context.Context, userID uuid.UUID, kind, key, contentType string, body *bytes.Reader) (string, error) {
	size, err := s.store.Put(ctx, key, contentType, body)
	if err != nil {
		return "", fmt.Errorf("failed to store %s: %w", kind, err)
	}
	if err := s.db.RecordArtifact(ctx, &db.Artifact{
		UserID:      userID,
		Kind:        kind,
		StorageKey:  key,
		ContentType: contentType,
		SizeBytes:   size,
	}); err != nil {
		return "", err
	}
	url, err := s.store.URL(ctx, key)
	if err != nil {
		return "", fmt.Errorf("failed to build %s URL: %w", kind, err)
	}
	log.Printf("[artifacts] stored %s %s (%d bytes)", kind, key, size)
	return url, nil
}
