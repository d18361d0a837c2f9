package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/clinbrief/clinbrief/internal/models"
	"github.com/clinbrief/clinbrief/internal/storage"
)

type searchRequest struct {
	Query        string   `json:"query,omitempty"`
	Variants     []string `json:"variants,omitempty"`
	TopK         int      `json:"top_k"`
	UseReranking bool     `json:"use_reranking"`
}

type researchRequest struct {
	Topic        string `json:"topic"`
	TopK         int    `json:"top_k"`
	UseReranking bool   `json:"use_reranking"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	variants := req.Variants
	if len(variants) == 0 && req.Query != "" {
		variants = []string{req.Query}
	}
	if req.TopK == 0 {
		req.TopK = s.config.Retrieval.DefaultTopK
	}
	if req.TopK > s.config.Retrieval.MaxTopK {
		req.TopK = s.config.Retrieval.MaxTopK
	}
	setAuditTopic(r.Context(), req.Query)

	result, err := s.engine.Retrieve(r.Context(), &models.RetrievalRequest{
		Variants:     variants,
		Topic:        req.Query,
		TopK:         req.TopK,
		UseReranking: req.UseReranking,
	})
	if err != nil {
		s.respondForError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleResearch(w http.ResponseWriter, r *http.Request) {
	if s.pipeline == nil {
		s.respondError(w, http.StatusServiceUnavailable, "research pipeline not configured")
		return
	}
	var req researchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Topic == "" {
		s.respondError(w, http.StatusBadRequest, "topic is required")
		return
	}
	if req.TopK == 0 {
		req.TopK = s.config.Retrieval.DefaultTopK
	}
	if req.TopK > s.config.Retrieval.MaxTopK {
		req.TopK = s.config.Retrieval.MaxTopK
	}
	setAuditTopic(r.Context(), req.Topic)

	report, err := s.pipeline.Research(r.Context(), req.Topic, req.TopK, req.UseReranking)
	if err != nil {
		s.respondForError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleIndexDocument(w http.ResponseWriter, r *http.Request) {
	var input models.DocumentInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	doc, err := s.indexer.IndexDocument(r.Context(), &input)
	if err != nil {
		s.logger.Error("indexing failed", zap.Error(err))
		s.respondForError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]string{"id": doc.ID, "status": "indexed"})
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	docs, err := s.storage.ListDocuments(r.Context(), offset, limit)
	if err != nil {
		s.respondForError(w, err)
		return
	}
	if docs == nil {
		docs = []*models.Document{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"documents": docs,
		"offset":    offset,
		"limit":     limit,
	})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, err := s.storage.GetDocument(r.Context(), id)
	if err != nil {
		s.respondForError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, doc)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.indexer.DeleteDocument(r.Context(), id); err != nil {
		s.logger.Error("deletion failed", zap.Error(err))
		s.respondForError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats, err := s.indexer.Stats(ctx)
	if err != nil {
		s.logger.Error("status: stats failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := map[string]interface{}{
		"documents":          stats.Documents,
		"vector_index_size":  stats.Vectors,
		"lexical_index_size": stats.Lexical,
		"reranking_enabled":  s.config.Rerank.Enabled,
	}
	usage, err := storage.MeasureUsage(
		s.config.Storage.DatabasePath,
		s.config.Storage.BleveIndexPath,
		s.config.Storage.VectorIndexPath,
	)
	if err == nil {
		resp["disk_usage"] = usage
	}
	if audits, err := s.storage.RecentAuditEntries(ctx, 10); err == nil {
		resp["recent_audits"] = audits
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// respondForError maps domain errors to HTTP status codes.
func (s *Server) respondForError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidQuery):
		s.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrNotFound):
		s.respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrOracleUnavailable):
		s.respondError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
