package exchange

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"circ-exchange/internal/common/cache"
	"circ-exchange/internal/common/logger"
	"circ-exchange/internal/common/metrics"
)

// CachingAPI memoizes Analyze and Ask responses. Keys hash the request body,
// so identical questions and identical pairs share an entry. Cache failures
// are logged and the call goes through.
type CachingAPI struct {
	API
	cache  cache.Cache
	ttl    time.Duration
	logger logger.Logger
}

func NewCachingAPI(next API, c cache.Cache, ttl time.Duration, log logger.Logger) *CachingAPI {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &CachingAPI{API: next, cache: c, ttl: ttl, logger: log}
}

func (c *CachingAPI) Analyze(ctx context.Context, req *AnalyzeRequest) (*AnalyzeResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	key, ok := cacheKey("analyze", req)
	if ok {
		var cached AnalyzeResponse
		if c.lookup(ctx, PathAnalyze, key, &cached) {
			return &cached, nil
		}
	}

	resp, err := c.API.Analyze(ctx, req)
	if err != nil {
		return nil, err
	}
	if ok {
		c.store(ctx, key, resp)
	}
	return resp, nil
}

func (c *CachingAPI) Ask(ctx context.Context, question string) (string, error) {
	normalized := strings.ToLower(strings.Join(strings.Fields(question), " "))
	key, ok := cacheKey("ask", normalized)
	if ok && normalized != "" {
		var cached AskResponse
		if c.lookup(ctx, PathAsk, key, &cached) {
			return cached.Answer, nil
		}
	}

	answer, err := c.API.Ask(ctx, question)
	if err != nil {
		return "", err
	}
	if ok {
		c.store(ctx, key, AskResponse{Answer: answer})
	}
	return answer, nil
}

func (c *CachingAPI) lookup(ctx context.Context, endpoint, key string, out interface{}) bool {
	data, found, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.Warn("cache lookup failed", map[string]interface{}{"key": key, "error": err})
		metrics.ExchangeCache.WithLabelValues(endpoint, "error").Inc()
		return false
	}
	if !found {
		metrics.ExchangeCache.WithLabelValues(endpoint, "miss").Inc()
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		c.logger.Warn("discarding undecodable cache entry", map[string]interface{}{"key": key, "error": err})
		metrics.ExchangeCache.WithLabelValues(endpoint, "error").Inc()
		return false
	}
	metrics.ExchangeCache.WithLabelValues(endpoint, "hit").Inc()
	return true
}

func (c *CachingAPI) store(ctx context.Context, key string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Warn("cache store failed", map[string]interface{}{"key": key, "error": err})
	}
}

// cacheKey hashes the JSON form of v. Map keys are marshalled sorted, so
// equal requests produce equal keys.
func cacheKey(prefix string, v interface{}) (string, bool) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", false
	}
	sum := sha256.Sum256(data)
	return prefix + ":" + hex.EncodeToString(sum[:]), true
}
