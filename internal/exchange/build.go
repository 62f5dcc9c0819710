package exchange

import (
	"circ-exchange/internal/common/cache"
	"circ-exchange/internal/common/config"
	apperrors "circ-exchange/internal/common/errors"
	"circ-exchange/internal/common/logger"
	"circ-exchange/internal/common/ratelimit"

	"github.com/redis/go-redis/v9"
)

// NewFromConfig builds the client and wraps it, innermost first, with retry,
// rate limiting and caching as cfg enables them. rdb may be nil when neither
// the redis cache nor the limiter is configured.
func NewFromConfig(cfg config.ExchangeConfig, rdb *redis.Client, log logger.Logger) (API, error) {
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	client, err := NewClient(Config{
		BaseURL: cfg.BaseURL,
		Timeout: config.GetDuration(cfg.Timeout),
	}, log)
	if err != nil {
		return nil, err
	}
	var api API = client

	if cfg.Retry.Enabled {
		api = NewRetryingAPI(api, RetryPolicy{
			MaxRetries:        cfg.Retry.MaxRetries,
			BaseDelay:         config.GetDuration(cfg.Retry.BaseDelay),
			MaxDelay:          config.GetDuration(cfg.Retry.MaxDelay),
			RetryServerErrors: cfg.Retry.RetryServerErrors,
		}, log)
	}

	if cfg.RateLimit.Enabled {
		if rdb == nil {
			return nil, apperrors.NewInvalidClientConfigError("rate limiting needs a redis client")
		}
		window := config.GetDuration(cfg.RateLimit.Window)
		analyze := ratelimit.Rule{Key: ratelimit.RuleAnalyze.Key, Limit: cfg.RateLimit.Limit, Window: window}
		ask := ratelimit.Rule{Key: ratelimit.RuleAsk.Key, Limit: cfg.RateLimit.Limit, Window: window}
		api = NewLimitedAPI(api, ratelimit.NewLimiter(rdb, log), "", analyze, ask, log)
	}

	if cfg.Cache.Enabled {
		var c cache.Cache
		switch cfg.Cache.Backend {
		case config.CacheBackendRedis:
			if rdb == nil {
				return nil, apperrors.NewInvalidClientConfigError("redis cache backend needs a redis client")
			}
			c = cache.NewRedisCache(rdb, "")
		default:
			c = cache.NewMemoryCache(cfg.Cache.Capacity, config.GetDuration(cfg.Cache.TTL))
		}
		api = NewCachingAPI(api, c, config.GetDuration(cfg.Cache.TTL), log)
	}

	return api, nil
}
