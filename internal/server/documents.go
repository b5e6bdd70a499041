package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/hyperjump/kensaku/internal/documents"
	"github.com/hyperjump/kensaku/internal/extract"
	"github.com/hyperjump/kensaku/internal/models"
)

// maxUploadBytes bounds one uploaded document.
const maxUploadBytes = 64 << 20

func (s *Server) requireDocuments(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.documents == nil {
			s.respondError(w, http.StatusNotImplemented, "document management not enabled")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type documentList struct {
	Documents []models.SourceDocument `json:"documents"`
	Count     int                     `json:"count"`
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.documents.List(r.Context())
	if err != nil {
		s.logger.Error("list documents failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if docs == nil {
		docs = []models.SourceDocument{}
	}
	s.respondJSON(w, http.StatusOK, documentList{Documents: docs, Count: len(docs)})
}

func (s *Server) handleDocumentContent(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	text, err := s.documents.Content(r.Context(), path)
	if err != nil {
		s.respondDocumentError(w, path, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"path": path, "content": text})
}

func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid upload: "+err.Error())
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()
	category, err := models.ParseCategory(r.FormValue("category"))
	if err != nil || !category.Valid() {
		s.respondError(w, http.StatusBadRequest, "category must be internal or external")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	ev, err := s.documents.Save(category, header.Filename, file)
	if err != nil {
		if errors.Is(err, documents.ErrInvalidName) {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("upload failed", zap.String("name", header.Filename), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.dispatch(r.Context(), ev)
	s.respondJSON(w, http.StatusAccepted, map[string]string{
		"status":   "accepted",
		"path":     ev.Path,
		"category": category.String(),
	})
}

type deleteRequest struct {
	Path string `json:"path"`
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	ev, err := s.documents.Remove(req.Path)
	if err != nil {
		s.respondDocumentError(w, req.Path, err)
		return
	}
	s.dispatch(r.Context(), ev)
	s.respondJSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "path": ev.Path})
}

// dispatch queues ev for ingestion when an event sink is configured. The watcher sees the same
// change, so a failed submit is only logged.
func (s *Server) dispatch(ctx context.Context, ev models.FileEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Submit(ctx, ev); err != nil {
		s.logger.Warn("queue document event failed", zap.String("path", ev.Path), zap.Error(err))
	}
}

func (s *Server) respondDocumentError(w http.ResponseWriter, path string, err error) {
	var xerr *extract.Error
	switch {
	case errors.Is(err, documents.ErrOutsideRoots):
		s.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, documents.ErrNotFound):
		s.respondError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &xerr):
		s.respondError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		s.logger.Error("document request failed", zap.String("path", path), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
	}
}
