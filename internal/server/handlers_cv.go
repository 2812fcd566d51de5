package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/jonathan/cv-sync/internal/db"
	"github.com/jonathan/cv-sync/internal/rendering"
	"github.com/jonathan/cv-sync/internal/server/middleware"
	"github.com/jonathan/cv-sync/internal/types"
)

// maxDocumentBytes caps PATCH, PUT and render request bodies.
const maxDocumentBytes = 1 << 20

// handleGetCV returns the caller's CV, or an empty document when none was saved.
func (s *Server) handleGetCV(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserID(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	cv, err := s.db.GetCV(r.Context(), userID)
	if err != nil {
		s.internalError(w, "get cv", err)
		return
	}
	if cv == nil {
		writeJSON(w, http.StatusOK, types.NewCVDocument(s.clock.Now()))
		return
	}
	setVersion(w, cv)
	writeJSON(w, http.StatusOK, cv.Document)
}

// handlePatchCV merges the top-level fields in the body into the stored CV.
// List fields replace the stored list.
func (s *Server) handlePatchCV(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserID(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var patch types.Partial
	if err := decodeBody(w, r, &patch); err != nil {
		writeError(w, HTTPStatus(err), err.Error())
		return
	}
	if len(patch) == 0 {
		writeError(w, http.StatusBadRequest, "validation error: body - at least one field is required")
		return
	}

	cv, err := s.db.UpdateCV(r.Context(), userID, func(doc types.CVDocument) (types.CVDocument, error) {
		next, err := types.ApplyPartial(doc, patch)
		if err != nil {
			return doc, err
		}
		return s.stamp(next)
	})
	if err != nil {
		s.updateError(w, "patch cv", err)
		return
	}

	log.Printf("[cv] user %s patched %v (version %d)", userID, patch.Sections(), cv.Version)
	setVersion(w, cv)
	writeJSON(w, http.StatusOK, cv.Document)
}

// handlePutCV replaces the stored CV.
func (s *Server) handlePutCV(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserID(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var doc types.CVDocument
	if err := decodeBody(w, r, &doc); err != nil {
		writeError(w, HTTPStatus(err), err.Error())
		return
	}

	cv, err := s.db.UpdateCV(r.Context(), userID, func(types.CVDocument) (types.CVDocument, error) {
		return s.stamp(doc)
	})
	if err != nil {
		s.updateError(w, "put cv", err)
		return
	}

	log.Printf("[cv] user %s replaced cv (version %d)", userID, cv.Version)
	setVersion(w, cv)
	writeJSON(w, http.StatusOK, cv.Document)
}

// handlePreview returns the stored CV rendered to plain text.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserID(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	tmpl := types.PDFTemplate(r.URL.Query().Get("template"))
	if tmpl != "" && !tmpl.Valid() {
		writeError(w, http.StatusBadRequest, "validation error: template - oneof")
		return
	}

	cv, err := s.db.GetCV(r.Context(), userID)
	if err != nil {
		s.internalError(w, "preview", err)
		return
	}
	doc := types.NewCVDocument(s.clock.Now())
	if cv != nil {
		doc = cv.Document
	}

	text, err := rendering.Preview(doc, tmpl)
	if err != nil {
		s.internalError(w, "preview", err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(text + "\n"))
}

// stamp validates doc and refreshes its derived fields.
func (s *Server) stamp(doc types.CVDocument) (types.CVDocument, error) {
	doc = doc.Normalize()
	if err := s.validator.Struct(doc); err != nil {
		return doc, validationError(err)
	}
	doc.LastUpdated = s.clock.Now()
	return doc, nil
}

func (s *Server) updateError(w http.ResponseWriter, op string, err error) {
	if status := HTTPStatus(err); status != http.StatusInternalServerError {
		writeError(w, status, err.Error())
		return
	}
	s.internalError(w, op, err)
}

func (s *Server) internalError(w http.ResponseWriter, op string, err error) {
	log.Printf("[server] %s failed: %v", op, err)
	writeError(w, http.StatusInternalServerError, "internal server error")
}

// decodeBody decodes a size-limited JSON body into v, rejecting unknown fields.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxDocumentBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return &ErrPayloadTooLarge{Limit: tooLarge.Limit}
		}
		return &ErrValidation{Field: "body", Message: "invalid JSON: " + err.Error()}
	}
	return nil
}

func setVersion(w http.ResponseWriter, cv *db.StoredCV) {
	w.Header().Set("ETag", strconv.Quote(strconv.FormatInt(cv.Version, 10)))
}
