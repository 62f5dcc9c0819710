// Package store loads and persists listing pools: Postgres is the system of
// record, Elasticsearch the text index, and the exchange API the remote
// demo catalogue.
package store

import (
	"context"
	"errors"

	apperrors "circ-exchange/internal/common/errors"
	"circ-exchange/internal/common/logger"
	"circ-exchange/internal/models"
)

// PoolSource provides the listings a ranking or search runs over.
type PoolSource interface {
	Pool(ctx context.Context) ([]models.Listing, error)
	Get(ctx context.Context, id string) (*models.Listing, error)
}

// FallbackSource reads from primary and switches to fallback when primary
// is unreachable or its backing store fails. Validation errors and missing
// listings are returned as they are.
type FallbackSource struct {
	primary  PoolSource
	fallback PoolSource
	logger   logger.Logger
}

func NewFallbackSource(primary, fallback PoolSource, log logger.Logger) *FallbackSource {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &FallbackSource{primary: primary, fallback: fallback, logger: log}
}

func (s *FallbackSource) Pool(ctx context.Context) ([]models.Listing, error) {
	pool, err := s.primary.Pool(ctx)
	if !shouldFallback(err) {
		return pool, err
	}
	s.logger.Warn("primary pool source failed, using fallback", map[string]interface{}{"error": err})
	return s.fallback.Pool(ctx)
}

func (s *FallbackSource) Get(ctx context.Context, id string) (*models.Listing, error) {
	l, err := s.primary.Get(ctx, id)
	if !shouldFallback(err) {
		return l, err
	}
	s.logger.Warn("primary pool source failed, using fallback", map[string]interface{}{
		"listingId": id,
		"error":     err,
	})
	return s.fallback.Get(ctx, id)
}

func shouldFallback(err error) bool {
	if err == nil || errors.Is(err, apperrors.ErrNotFound) {
		return false
	}
	return errors.Is(err, apperrors.ErrTransport) || errors.Is(err, apperrors.ErrStorage)
}

// StaticSource serves a fixed pool. Used by the CLI for file input.
type StaticSource []models.Listing

func (s StaticSource) Pool(context.Context) ([]models.Listing, error) {
	out := make([]models.Listing, len(s))
	copy(out, s)
	return out, nil
}

func (s StaticSource) Get(_ context.Context, id string) (*models.Listing, error) {
	return findListing(s, id)
}

func findListing(pool []models.Listing, id string) (*models.Listing, error) {
	for i := range pool {
		if pool[i].ID == id {
			l := pool[i]
			return &l, nil
		}
	}
	return nil, apperrors.NewListingNotFoundError(id)
}
