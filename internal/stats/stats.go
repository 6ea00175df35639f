// Package stats provides per-shop evaluation counters.
package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/pricevault/tierkit/internal/domain"
)

// Service tracks how often a shop's discount configurations are evaluated.
// Hot counts come from the cache's windowed counter; historical counts come
// from the persisted evaluation records.
type Service struct {
	repo  domain.Repository
	cache domain.Cache
}

// NewService creates a new stats service.
func NewService(repo domain.Repository, cache domain.Cache) *Service {
	return &Service{
		repo:  repo,
		cache: cache,
	}
}

// RecordEvaluation bumps the shop's windowed evaluation counter and returns
// the count within the current window.
func (s *Service) RecordEvaluation(ctx context.Context, shopID string, window time.Duration) (int64, error) {
	if shopID == "" {
		return 0, fmt.Errorf("shopID is required")
	}
	if s.cache == nil {
		return 0, nil
	}
	return s.cache.IncrementCounter(ctx, shopID, "evaluations", window)
}

// GetEvaluationCount returns the number of persisted evaluations for a shop
// within the given window.
func (s *Service) GetEvaluationCount(ctx context.Context, shopID string, windowSecs int) (int64, error) {
	if shopID == "" {
		return 0, fmt.Errorf("shopID is required")
	}
	if s.repo == nil {
		return 0, fmt.Errorf("no data source available")
	}

	since := time.Now().Add(-time.Duration(windowSecs) * time.Second)
	return s.repo.CountEvaluations(ctx, shopID, since)
}

// CurrentWindowCount reads the cache-backed hot counter without bumping it.
// This is the counter RecordEvaluation maintains; it lags persistence by
// nothing and survives even when the repository is behind.
func (s *Service) CurrentWindowCount(ctx context.Context, shopID string) (int64, error) {
	if shopID == "" {
		return 0, fmt.Errorf("shopID is required")
	}
	if s.cache == nil {
		return 0, nil
	}
	return s.cache.GetCounter(ctx, shopID, "evaluations")
}

// Snapshot is the stats payload returned by the API. HotWindow is the live
// cache counter for the current one-hour window; the evaluation counts come
// from persisted records.
type Snapshot struct {
	ShopID         string `json:"shopId"`
	HotWindow      int64  `json:"hotWindow"`
	Evaluations1h  int64  `json:"evaluations1h"`
	Evaluations24h int64  `json:"evaluations24h"`
}

// GetSnapshot assembles the standard stats windows for a shop.
func (s *Service) GetSnapshot(ctx context.Context, shopID string) (*Snapshot, error) {
	hour, err := s.GetEvaluationCount(ctx, shopID, 3600)
	if err != nil {
		return nil, err
	}
	day, err := s.GetEvaluationCount(ctx, shopID, 86400)
	if err != nil {
		return nil, err
	}

	// The hot counter is advisory; a cache outage must not take stats down
	// when the persisted counts are still readable.
	hot, err := s.CurrentWindowCount(ctx, shopID)
	if err != nil {
		hot = 0
	}

	return &Snapshot{
		ShopID:         shopID,
		HotWindow:      hot,
		Evaluations1h:  hour,
		Evaluations24h: day,
	}, nil
}
