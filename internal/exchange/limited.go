package exchange

import (
	"context"

	apperrors "circ-exchange/internal/common/errors"
	"circ-exchange/internal/common/logger"
	"circ-exchange/internal/common/metrics"
	"circ-exchange/internal/common/ratelimit"
)

// Limiter is satisfied by *ratelimit.Limiter.
type Limiter interface {
	Allow(ctx context.Context, identifier string, rule ratelimit.Rule) (bool, error)
}

// LimitedAPI throttles Analyze and Ask, the calls that reach the language
// model behind the service. Refused calls fail with RATE_LIMITED and never
// reach the network.
type LimitedAPI struct {
	API
	limiter     Limiter
	identifier  string
	analyzeRule ratelimit.Rule
	askRule     ratelimit.Rule
	logger      logger.Logger
}

func NewLimitedAPI(next API, limiter Limiter, identifier string, analyzeRule, askRule ratelimit.Rule, log logger.Logger) *LimitedAPI {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	if identifier == "" {
		identifier = "global"
	}
	return &LimitedAPI{
		API:         next,
		limiter:     limiter,
		identifier:  identifier,
		analyzeRule: analyzeRule,
		askRule:     askRule,
		logger:      log,
	}
}

func (l *LimitedAPI) Analyze(ctx context.Context, req *AnalyzeRequest) (*AnalyzeResponse, error) {
	if err := l.admit(ctx, PathAnalyze, l.analyzeRule); err != nil {
		return nil, err
	}
	return l.API.Analyze(ctx, req)
}

func (l *LimitedAPI) Ask(ctx context.Context, question string) (string, error) {
	if err := l.admit(ctx, PathAsk, l.askRule); err != nil {
		return "", err
	}
	return l.API.Ask(ctx, question)
}

func (l *LimitedAPI) admit(ctx context.Context, endpoint string, rule ratelimit.Rule) error {
	allowed, err := l.limiter.Allow(ctx, l.identifier, rule)
	if err != nil {
		l.logger.Warn("rate limiter unavailable, allowing call", map[string]interface{}{
			"endpoint": endpoint,
			"error":    err,
		})
	}
	if !allowed {
		metrics.ExchangeRateLimited.WithLabelValues(endpoint).Inc()
		return apperrors.NewRateLimitedError(rule.Key + l.identifier)
	}
	return nil
}
