// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	RankingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exchange_rankings_total",
			Help: "Ranking requests by source listing role",
		},
		[]string{"role"},
	)

	RankedCandidates = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "exchange_ranked_candidates",
			Help:    "Number of candidates returned per ranking",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250},
		},
	)

	ExchangeRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exchange_api_requests_total",
			Help: "Calls to the exchange API by endpoint and outcome",
		},
		[]string{"endpoint", "outcome"},
	)

	ExchangeCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exchange_api_cache_total",
			Help: "Exchange response cache lookups by result",
		},
		[]string{"endpoint", "result"},
	)

	ExchangeRateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exchange_api_rate_limited_total",
			Help: "Exchange calls rejected by the rate limiter",
		},
		[]string{"endpoint"},
	)
)

// Outcome labels for ExchangeRequests.
const (
	OutcomeOK        = "ok"
	OutcomeTransport = "transport_error"
	OutcomeService   = "service_error"
	OutcomeMalformed = "malformed"
)
