// Package recommend answers "what is similar to this title" requests on top of
// the ranker and the catalog lookup.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/ruiji/internal/catalog"
	"github.com/hyperjump/ruiji/internal/embedding"
	"github.com/hyperjump/ruiji/internal/models"
	"github.com/hyperjump/ruiji/internal/ranking"
	"github.com/hyperjump/ruiji/pkg/utils"
	"go.uber.org/zap"
)

var (
	// ErrNotFound is returned when the name matches no catalog item.
	ErrNotFound = errors.New("anime not found")
	// ErrNotInModel is returned when the resolved item has no embedding.
	ErrNotInModel = errors.New("anime not found in the model")
	// ErrLookup wraps failures of the item lookup service other than not found.
	ErrLookup = errors.New("item lookup failed")
)

// Lookup resolves names to ids and fetches display metadata. Resolve reports
// an unknown name with an error matching catalog.ErrNotFound.
type Lookup interface {
	Resolve(ctx context.Context, name, mediaType string) (embedding.ID, error)
	Details(ctx context.Context, id embedding.ID) (*models.Item, error)
}

// Request asks for items similar to the one named Name.
type Request struct {
	Name      string
	MediaType string
	K         int
}

// Service answers similarity requests.
type Service struct {
	ranker      *ranking.Ranker
	lookup      Lookup
	concurrency int
	logger      *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithConcurrency bounds how many details requests run at once.
func WithConcurrency(n int) Option {
	return func(s *Service) { s.concurrency = n }
}

// New creates a service.
func New(ranker *ranking.Ranker, lookup Lookup, opts ...Option) *Service {
	s := &Service{
		ranker:      ranker,
		lookup:      lookup,
		concurrency: 4,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.concurrency < 1 {
		s.concurrency = 1
	}
	s.logger = utils.LoggerOrNop(s.logger)
	return s
}

// Similar resolves req.Name (preferring req.MediaType) and returns the K most
// similar items.
func (s *Service) Similar(ctx context.Context, req Request) (*models.SimilarResponse, error) {
	id, err := s.lookup.Resolve(ctx, req.Name, req.MediaType)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, fmt.Errorf("%w: %q", ErrNotFound, req.Name)
		}
		return nil, fmt.Errorf("%w: %w", ErrLookup, err)
	}
	s.logger.Debug("resolved name", zap.String("name", req.Name), zap.String("media_type", req.MediaType), zap.Int64("id", int64(id)))
	return s.SimilarByID(ctx, id, req.K, true)
}

// SimilarByID returns the k items most similar to id. With enrich false the
// entries carry only ids.
func (s *Service) SimilarByID(ctx context.Context, id embedding.ID, k int, enrich bool) (*models.SimilarResponse, error) {
	start := time.Now()
	results, err := s.ranker.Rank(id, k)
	if err != nil {
		if errors.Is(err, ranking.ErrUnknownItem) {
			return nil, fmt.Errorf("%w: %d", ErrNotInModel, id)
		}
		return nil, err
	}

	ids := make([]embedding.ID, 0, len(results)+1)
	ids = append(ids, id)
	for _, r := range results {
		ids = append(ids, r.ID)
	}
	entries := make([]models.Recommendation, len(ids))
	if enrich {
		s.enrich(ctx, ids, entries)
	} else {
		for i, eid := range ids {
			entries[i].Details = &models.Item{ID: int64(eid)}
		}
	}

	entries[0].Similarity = 1.0
	for i, r := range results {
		entries[i+1].Similarity = r.Score
	}

	resp := &models.SimilarResponse{
		RequestID: uuid.New().String(),
		Searched:  entries[0],
		Similar:   entries[1:],
		QueryTime: time.Since(start).Milliseconds(),
	}
	s.logger.Info("similar items",
		zap.String("request_id", resp.RequestID),
		zap.Int64("id", int64(id)),
		zap.Int("k", k),
		zap.Int("results", len(results)),
		zap.Int64("query_time_ms", resp.QueryTime),
	)
	return resp, nil
}

// enrich fetches details for ids into entries (same index) with at most
// s.concurrency requests in flight. A failed fetch leaves an id-only entry.
func (s *Service) enrich(ctx context.Context, ids []embedding.ID, entries []models.Recommendation) {
	sem := make(chan struct{}, s.concurrency)
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id embedding.ID) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				entries[i] = degraded(id, ctx.Err())
				return
			}
			item, err := s.lookup.Details(ctx, id)
			if err != nil {
				s.logger.Warn("details fetch failed", zap.Int64("id", int64(id)), zap.Error(err))
				entries[i] = degraded(id, err)
				return
			}
			entries[i].Details = item
		}(i, id)
	}
	wg.Wait()
}

func degraded(id embedding.ID, err error) models.Recommendation {
	return models.Recommendation{
		Details:      &models.Item{ID: int64(id)},
		DetailsError: err.Error(),
	}
}

// Size returns the number of items that can be ranked.
func (s *Service) Size() int {
	return s.ranker.Size()
}

// Dimensions returns the embedding dimensionality.
func (s *Service) Dimensions() int {
	return s.ranker.Dimensions()
}
