package main

import (
	"context"
	"time"

	"circ-exchange/internal/common/config"
	"circ-exchange/internal/common/database"
	apperrors "circ-exchange/internal/common/errors"
	"circ-exchange/internal/common/logger"
	"circ-exchange/internal/store"

	"github.com/redis/go-redis/v9"
)

var errMissingIndex = apperrors.NewInvalidClientConfigError("pool_source elasticsearch needs database.elasticsearch.addresses")

type dependencies struct {
	pool store.PoolSource
	// searcher is nil unless the Elasticsearch text index is configured.
	searcher *store.ListingIndex
}

// buildDependencies prepares the listing stores and picks the pool source
// the matching workers read from.
func buildDependencies(ctx context.Context, cfg *config.Config, pg *database.PostgresClient, es *database.ElasticsearchClient, api store.CompanyLister, log logger.Logger) (*dependencies, error) {
	repo := store.NewListingRepository(pg.DB, log)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, err
	}

	deps := &dependencies{}
	if es != nil {
		deps.searcher = store.NewListingIndex(es.Client, cfg.Database.Elasticsearch.Index, log)
		if err := deps.searcher.EnsureIndex(ctx); err != nil {
			return nil, err
		}
	}

	pool, err := selectPool(cfg.Matching, repo, deps.searcher, api, log)
	if err != nil {
		return nil, err
	}
	deps.pool = pool
	return deps, nil
}

// selectPool returns the configured primary source, wrapped so that it falls
// back to the local repository when FallbackToLocal is set.
func selectPool(m config.MatchingConfig, local store.PoolSource, index *store.ListingIndex, api store.CompanyLister, log logger.Logger) (store.PoolSource, error) {
	var primary store.PoolSource
	switch m.PoolSource {
	case config.PoolSourceElasticsearch:
		if index == nil {
			return nil, errMissingIndex
		}
		primary = index
	case config.PoolSourceExchange:
		primary = store.NewExchangeSource(api, log)
	default:
		return local, nil
	}

	if m.FallbackToLocal {
		return store.NewFallbackSource(primary, local, log), nil
	}
	return primary, nil
}

func applyWorkerTimeout(dst *time.Duration, wcfg config.WorkerConfig) {
	if wcfg.Timeout > 0 {
		*dst = config.GetDuration(wcfg.Timeout)
	}
}

func needsRedis(cfg *config.Config) bool {
	ex := cfg.Exchange
	return ex.RateLimit.Enabled || (ex.Cache.Enabled && ex.Cache.Backend == config.CacheBackendRedis)
}

func redisOf(c *database.RedisClient) *redis.Client {
	if c == nil {
		return nil
	}
	return c.Client
}
