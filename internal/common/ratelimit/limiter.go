// Package ratelimit throttles calls to the exchange API with a Redis
// INCR + EXPIRE fixed window shared by all worker replicas.
package ratelimit

import (
	"context"
	"time"

	"circ-exchange/internal/common/logger"

	"github.com/redis/go-redis/v9"
)

// Rule is a limiting policy: at most Limit calls per Window for each
// identifier under the Key prefix.
type Rule struct {
	Key    string
	Limit  int
	Window time.Duration
}

// Exchange API rules. The defaults mirror the one call per seven seconds
// the analysis backend tolerates.
var (
	RuleAnalyze = Rule{Key: "rl:analyze:", Limit: 1, Window: 7 * time.Second}
	RuleAsk     = Rule{Key: "rl:ask:", Limit: 1, Window: 7 * time.Second}
)

type Limiter struct {
	client *redis.Client
	logger logger.Logger
}

func NewLimiter(client *redis.Client, log logger.Logger) *Limiter {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Limiter{client: client, logger: log}
}

// Allow counts one call for identifier and reports whether it is within the
// rule. Redis failures fail open: the call is allowed and the error returned
// for logging.
func (l *Limiter) Allow(ctx context.Context, identifier string, rule Rule) (bool, error) {
	key := rule.Key + identifier

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		l.logger.Warn("rate limit INCR failed, failing open", map[string]interface{}{
			"key":   key,
			"error": err,
		})
		return true, err
	}

	if count == 1 {
		if err := l.client.Expire(ctx, key, rule.Window).Err(); err != nil {
			l.logger.Warn("rate limit EXPIRE failed, failing open", map[string]interface{}{
				"key":   key,
				"error": err,
			})
			// a key without TTL would block the identifier forever
			l.client.Del(ctx, key)
			return true, err
		}
	}

	return int(count) <= rule.Limit, nil
}

// Remaining returns how many calls identifier has left in the current
// window. Unknown keys and Redis failures report the full limit.
func (l *Limiter) Remaining(ctx context.Context, identifier string, rule Rule) (int, error) {
	count, err := l.client.Get(ctx, rule.Key+identifier).Int()
	if err == redis.Nil {
		return rule.Limit, nil
	}
	if err != nil {
		return rule.Limit, err
	}
	if remaining := rule.Limit - count; remaining > 0 {
		return remaining, nil
	}
	return 0, nil
}
