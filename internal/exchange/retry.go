package exchange

import (
	"context"
	"errors"
	"time"

	apperrors "circ-exchange/internal/common/errors"
	"circ-exchange/internal/common/logger"
	"circ-exchange/internal/models"
)

// RetryPolicy is exponential backoff over transport failures. Server errors
// (5xx) are retried only when RetryServerErrors is set; 4xx, validation and
// malformed responses never are.
type RetryPolicy struct {
	MaxRetries        int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	RetryServerErrors bool
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 3,
		BaseDelay:  1 * time.Second,
		MaxDelay:   10 * time.Second,
	}
}

func (p RetryPolicy) retryable(err error) bool {
	if errors.Is(err, apperrors.ErrRateLimited) {
		return false
	}
	if errors.Is(err, apperrors.ErrTransport) {
		return true
	}
	return p.RetryServerErrors && errors.Is(err, apperrors.ErrService) && apperrors.StatusCode(err) >= 500
}

// maxBackoff caps the delay when MaxDelay is unset.
const maxBackoff = 30 * time.Second

func (p RetryPolicy) delay(attempt int) time.Duration {
	limit := p.MaxDelay
	if limit <= 0 {
		limit = maxBackoff
	}
	if p.BaseDelay <= 0 {
		return 0
	}
	d := p.BaseDelay
	for i := 0; i < attempt; i++ {
		if d > limit/2 {
			return limit
		}
		d *= 2
	}
	if d > limit {
		d = limit
	}
	return d
}

// RetryingAPI applies a RetryPolicy to every call of the wrapped API.
type RetryingAPI struct {
	next   API
	policy RetryPolicy
	logger logger.Logger
}

var _ API = (*RetryingAPI)(nil)

func NewRetryingAPI(next API, policy RetryPolicy, log logger.Logger) *RetryingAPI {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &RetryingAPI{next: next, policy: policy, logger: log}
}

func withRetry[T any](ctx context.Context, r *RetryingAPI, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	for attempt := 0; ; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		if !r.policy.retryable(err) || attempt >= r.policy.MaxRetries {
			return zero, err
		}

		delay := r.policy.delay(attempt)
		r.logger.Warn("retrying exchange call", map[string]interface{}{
			"operation": op,
			"attempt":   attempt + 1,
			"delay":     delay.String(),
			"error":     err,
		})

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			// the last failure is more useful than the cancellation
			return zero, err
		}
	}
}

func (r *RetryingAPI) Health(ctx context.Context) (*HealthStatus, error) {
	return withRetry(ctx, r, "health", r.next.Health)
}

func (r *RetryingAPI) DemoCompanies(ctx context.Context) ([]models.Company, error) {
	return withRetry(ctx, r, "demo-companies", r.next.DemoCompanies)
}

func (r *RetryingAPI) Matches(ctx context.Context) ([]Match, error) {
	return withRetry(ctx, r, "matches", r.next.Matches)
}

func (r *RetryingAPI) ListParties(ctx context.Context) ([]Party, error) {
	return withRetry(ctx, r, "list-parties", r.next.ListParties)
}

func (r *RetryingAPI) UpsertParty(ctx context.Context, p Party) (*Party, error) {
	return withRetry(ctx, r, "upsert-party", func(ctx context.Context) (*Party, error) {
		return r.next.UpsertParty(ctx, p)
	})
}

func (r *RetryingAPI) Analyze(ctx context.Context, req *AnalyzeRequest) (*AnalyzeResponse, error) {
	return withRetry(ctx, r, "analyze", func(ctx context.Context) (*AnalyzeResponse, error) {
		return r.next.Analyze(ctx, req)
	})
}

func (r *RetryingAPI) Ask(ctx context.Context, question string) (string, error) {
	return withRetry(ctx, r, "ask", func(ctx context.Context) (string, error) {
		return r.next.Ask(ctx, question)
	})
}

func (r *RetryingAPI) LoadSampleData(ctx context.Context) (*LoadResult, error) {
	return withRetry(ctx, r, "load-sample-data", r.next.LoadSampleData)
}
