package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hyperjump/ruiji/internal/catalog"
	"github.com/hyperjump/ruiji/internal/embedding"
	"github.com/hyperjump/ruiji/internal/models"
	"github.com/hyperjump/ruiji/internal/ranking"
	"github.com/hyperjump/ruiji/internal/recommend"
	"github.com/hyperjump/ruiji/internal/storage"
	"go.uber.org/zap"
)

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("Hello World"))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleFindSimilar(w http.ResponseWriter, r *http.Request) {
	var query models.SimilarQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := query.Validate(s.config.Recommend.DefaultK, s.config.Recommend.MaxK); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("find similar request",
		zap.String("anime_name", query.Name),
		zap.String("media_type", query.MediaType),
		zap.Int("k", query.K),
	)
	resp, err := s.recommender.Similar(r.Context(), recommend.Request{
		Name:      query.Name,
		MediaType: query.MediaType,
		K:         query.K,
	})
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSimilarByID(w http.ResponseWriter, r *http.Request) {
	id, ok := s.itemID(w, r)
	if !ok {
		return
	}
	k := s.config.Recommend.DefaultK
	if raw := r.URL.Query().Get("k"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.respondError(w, http.StatusBadRequest, "k must be a non-negative integer")
			return
		}
		k = n
	}
	if maxK := s.config.Recommend.MaxK; maxK > 0 && k > maxK {
		k = maxK
	}
	details := true
	if raw := r.URL.Query().Get("details"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "details must be a boolean")
			return
		}
		details = b
	}
	resp, err := s.recommender.SimilarByID(r.Context(), id, k, details)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	id, ok := s.itemID(w, r)
	if !ok {
		return
	}
	item, err := s.lookup.Details(r.Context(), id)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) || errors.Is(err, storage.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "Anime not found")
			return
		}
		s.logger.Error("item details failed", zap.Int64("id", int64(id)), zap.Error(err))
		s.respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, item)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := map[string]interface{}{
		"corpus_size":    s.recommender.Size(),
		"dimensions":     s.recommender.Dimensions(),
		"uptime_seconds": int64(time.Since(s.startedAt).Seconds()),
	}
	if online, ok := s.lookup.(interface{ Online() bool }); ok {
		resp["catalog_online"] = online.Online()
	}
	if s.storage != nil {
		count, err := s.storage.CountItems(ctx)
		if err != nil {
			s.logger.Error("status: count items failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp["catalog_items"] = count
	}
	if s.titles != nil {
		if docs, err := s.titles.DocCount(); err == nil {
			resp["title_index_docs"] = docs
		}
	}

	cfg := s.config
	resp["config"] = map[string]interface{}{
		"artifact_path":    cfg.Embedding.ArtifactPath,
		"database_path":    cfg.Storage.DatabasePath,
		"title_index_path": cfg.Storage.TitleIndexPath,
		"default_k":        cfg.Recommend.DefaultK,
		"max_k":            cfg.Recommend.MaxK,
	}
	diskBytes, err := storage.DiskUsageBytes(
		cfg.Embedding.ArtifactPath,
		cfg.Storage.DatabasePath,
		cfg.Storage.TitleIndexPath,
	)
	if err == nil {
		resp["disk_usage_bytes"] = diskBytes
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) itemID(w http.ResponseWriter, r *http.Request) (embedding.ID, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		s.respondError(w, http.StatusBadRequest, "invalid item id")
		return 0, false
	}
	return embedding.ID(id), true
}

// respondServiceError maps recommendation failures to HTTP statuses.
func (s *Server) respondServiceError(w http.ResponseWriter, err error) {
	var cerr *ranking.CorpusError
	switch {
	case errors.Is(err, recommend.ErrNotFound):
		s.respondError(w, http.StatusNotFound, "Anime not found")
	case errors.Is(err, recommend.ErrNotInModel):
		s.respondError(w, http.StatusNotFound, "Anime not found in the model")
	case errors.Is(err, recommend.ErrLookup):
		s.logger.Error("catalog lookup failed", zap.Error(err))
		s.respondError(w, http.StatusBadGateway, "catalog lookup failed")
	case errors.As(err, &cerr):
		s.logger.Error("corpus error", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "internal error")
	default:
		s.logger.Error("similar request failed", zap.Error(err))
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
