package repo

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/miradorstack/mirador-zones/internal/cache"
	"github.com/miradorstack/mirador-zones/internal/models"
)

const (
	datasetCacheKey       = "zones:dataset:current"
	patternCacheKeyPrefix = "zones:patterns:"
)

// Backend is the durable store behind the cache.
type Backend interface {
	Save(ctx context.Context, dataset *models.Dataset) error
	Load(ctx context.Context) (*models.Dataset, error)
	Clear(ctx context.Context) error
}

// CachedStore keeps a JSON snapshot of the current dataset and its mined
// patterns in a cache provider, falling back to the backend on a miss.
type CachedStore struct {
	backend Backend
	cache   cache.Provider
	ttl     time.Duration
	logger  *slog.Logger
}

// NewCachedStore wraps backend with cacheProvider. A nil provider disables caching.
func NewCachedStore(backend Backend, cacheProvider cache.Provider, ttl time.Duration, logger *slog.Logger) *CachedStore {
	if cacheProvider == nil {
		cacheProvider = cache.NoopProvider{}
	}
	if ttl < 0 {
		ttl = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedStore{backend: backend, cache: cacheProvider, ttl: ttl, logger: logger}
}

// Save persists to the backend first; the cache is refreshed best-effort.
func (s *CachedStore) Save(ctx context.Context, dataset *models.Dataset) error {
	if s.backend != nil {
		if err := s.backend.Save(ctx, dataset); err != nil {
			return err
		}
	}
	payload, err := json.Marshal(dataset)
	if err != nil {
		s.logger.Warn("dataset snapshot encode failed", "error", err)
		return nil
	}
	if err := s.cache.Set(ctx, datasetCacheKey, payload, s.ttl); err != nil {
		s.logger.Warn("dataset snapshot cache write failed", "error", err)
	}
	return nil
}

// Load returns the cached snapshot, or the backend copy on a cache miss.
func (s *CachedStore) Load(ctx context.Context) (*models.Dataset, error) {
	if payload, err := s.cache.Get(ctx, datasetCacheKey); err == nil {
		var dataset models.Dataset
		if err := json.Unmarshal(payload, &dataset); err == nil {
			return &dataset, nil
		}
		s.logger.Warn("discarding unreadable dataset snapshot")
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("dataset snapshot cache read failed", "error", err)
	}

	if s.backend == nil {
		return nil, models.ErrNoDataset
	}
	dataset, err := s.backend.Load(ctx)
	if err != nil {
		return nil, err
	}
	if payload, err := json.Marshal(dataset); err == nil {
		if err := s.cache.Set(ctx, datasetCacheKey, payload, s.ttl); err != nil {
			s.logger.Warn("dataset snapshot cache write failed", "error", err)
		}
	}
	return dataset, nil
}

// Clear drops the snapshot and the backend copy.
func (s *CachedStore) Clear(ctx context.Context) error {
	if err := s.cache.Del(ctx, datasetCacheKey); err != nil {
		s.logger.Warn("dataset snapshot cache delete failed", "error", err)
	}
	if s.backend == nil {
		return nil
	}
	return s.backend.Clear(ctx)
}

// StorePatterns caches mined transition patterns for a dataset.
func (s *CachedStore) StorePatterns(ctx context.Context, datasetID string, patterns []models.TransitionPattern) error {
	payload, err := json.Marshal(patterns)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, patternCacheKeyPrefix+datasetID, payload, s.ttl)
}

// FetchPatterns returns cached patterns for a dataset; ok is false on a miss.
func (s *CachedStore) FetchPatterns(ctx context.Context, datasetID string) ([]models.TransitionPattern, bool, error) {
	payload, err := s.cache.Get(ctx, patternCacheKeyPrefix+datasetID)
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var patterns []models.TransitionPattern
	if err := json.Unmarshal(payload, &patterns); err != nil {
		return nil, false, err
	}
	return patterns, true, nil
}
