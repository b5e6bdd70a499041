package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kensaku/internal/embedding"
	"github.com/hyperjump/kensaku/internal/index"
	"github.com/hyperjump/kensaku/internal/indexer"
	"github.com/hyperjump/kensaku/internal/lifecycle"
	"github.com/hyperjump/kensaku/internal/models"
	"github.com/hyperjump/kensaku/internal/retrieval"
)

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req models.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("query request", zap.String("query", req.Query), zap.Stringer("category", req.Category))

	ctx := r.Context()
	if req.TimeoutMS > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(req.TimeoutMS)*time.Millisecond)
		defer cancel()
	}
	start := time.Now()
	res, err := s.retriever.Query(ctx, req.Query, req.Category)
	resp := models.QueryResponse{
		Status:    models.QueryStatusOK,
		Query:     req.Query,
		QueryTime: time.Since(start).Milliseconds(),
	}
	switch {
	case err == nil:
		resp.Context = res.Context
		resp.Sources = res.Sources
		resp.Passages = res.Passages
		s.respondJSON(w, http.StatusOK, resp)
	case errors.Is(err, retrieval.ErrNoDocumentsIndexed):
		resp.Status = models.QueryStatusNoDocuments
		s.respondJSON(w, http.StatusOK, resp)
	case errors.Is(err, retrieval.ErrTimeout):
		s.logger.Warn("query timed out", zap.String("query", req.Query), zap.Int64("query_time_ms", resp.QueryTime))
		s.respondError(w, http.StatusGatewayTimeout, err.Error())
	case errors.Is(err, index.ErrStorageUnavailable), errors.Is(err, embedding.ErrEmbeddingFailed):
		s.logger.Error("query failed", zap.Error(err))
		s.respondError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.logger.Error("query failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	mode, err := lifecycle.ParseMode(r.URL.Query().Get("mode"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Info("reset requested", zap.String("mode", string(mode)))
	if err := s.admin.Trigger(mode); err != nil {
		if errors.Is(err, lifecycle.ErrResetInProgress) {
			s.respondError(w, http.StatusConflict, err.Error())
			return
		}
		s.logger.Error("reset failed to start", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "mode": string(mode)})
}

type statsResponse struct {
	*models.Stats
	LastReset *lifecycle.Report `json:"last_reset,omitempty"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.admin.Stats(r.Context())
	if err != nil {
		s.logger.Error("stats failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, statsResponse{Stats: stats, LastReset: s.admin.LastReport()})
}

type eventRequest struct {
	Path     string          `json:"path"`
	Type     string          `json:"type"`
	Category models.Category `json:"category"`
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		s.respondError(w, http.StatusNotImplemented, "event ingestion not enabled")
		return
	}
	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	typ, err := models.ParseEventType(req.Type)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if typ != models.EventDeleted && !req.Category.Valid() {
		s.respondError(w, http.StatusBadRequest, "category must be internal or external")
		return
	}
	ev := models.FileEvent{Path: req.Path, Type: typ, Category: req.Category}
	if err := s.events.Submit(r.Context(), ev); err != nil {
		if errors.Is(err, indexer.ErrPoolClosed) {
			s.respondError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "path": req.Path})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
