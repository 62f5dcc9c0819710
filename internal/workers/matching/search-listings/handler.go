// internal/workers/matching/search-listings/handler.go
package searchlistings

import (
	"context"
	"encoding/json"
	"time"

	apperrors "circ-exchange/internal/common/errors"
	"circ-exchange/internal/common/logger"
	"circ-exchange/internal/common/metrics"
	"circ-exchange/internal/common/observability"
	"circ-exchange/internal/common/validation"
	"circ-exchange/internal/models"
	"circ-exchange/internal/search"
	"circ-exchange/internal/store"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "search-listings"
)

// Searcher runs a filter against a backing index. store.ListingIndex
// implements it.
type Searcher interface {
	Search(ctx context.Context, f search.Filter) ([]models.Listing, error)
}

type Handler struct {
	config     *Config
	pool       store.PoolSource
	searcher   Searcher
	obs        *observability.Observability
	errHandler *apperrors.ErrorHandler
	logger     logger.Logger
}

// NewHandler builds the handler. With a nil searcher, filtering runs in
// memory over the pool.
func NewHandler(config *Config, pool store.PoolSource, searcher Searcher, obs *observability.Observability, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     config,
		pool:       pool,
		searcher:   searcher,
		obs:        obs,
		errHandler: apperrors.NewErrorHandler(l),
		logger:     l,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()
	ctx, span := h.obs.StartJobSpan(ctx, TaskType, job.Key, job.ProcessInstanceKey)

	output, err := h.run(ctx, job.Variables)
	observability.EndSpan(span, err)
	if err != nil {
		bpmnErr := h.errHandler.HandleJobError(ctx, client, job, err)
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, bpmnErr.Code).Inc()
		h.obs.RecordJobProcessed(ctx, TaskType, "failed")
		return
	}

	h.completeJob(ctx, client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
	h.obs.RecordJobProcessed(ctx, TaskType, "completed")
	h.obs.RecordJobDuration(ctx, TaskType, time.Since(start), "completed")
}

func (h *Handler) run(ctx context.Context, variables string) (*Output, error) {
	if err := validation.ValidateJobInput(TaskType, inputSchema, variables); err != nil {
		return nil, err
	}
	var input Input
	if err := json.Unmarshal([]byte(variables), &input); err != nil {
		return nil, apperrors.NewInvalidJobInputError(TaskType, []string{err.Error()})
	}
	return h.execute(ctx, &input)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	var (
		pool    []models.Listing
		results []models.Listing
		err     error
	)

	if h.searcher == nil || input.IncludeFacets {
		if pool, err = h.pool.Pool(ctx); err != nil {
			return nil, err
		}
	}

	if h.searcher != nil {
		results, err = h.searcher.Search(ctx, input.Filter)
	} else {
		results, err = search.Search(pool, input.Filter)
	}
	if err != nil {
		return nil, err
	}

	output := &Output{Count: len(results)}
	limit := h.limit(input.Limit)
	if limit > 0 && len(results) > limit {
		results = results[:limit]
		output.Truncated = true
	}
	output.Listings = results

	if input.IncludeFacets {
		idx := search.NewIndex(pool)
		output.Materials = idx.Materials()
		output.Locations = idx.Locations()
	}

	h.logger.Info("listings searched", map[string]interface{}{
		"query":   input.Query,
		"matches": output.Count,
	})
	return output, nil
}

func (h *Handler) limit(requested int) int {
	switch {
	case requested <= 0:
		return h.config.MaxResults
	case h.config.MaxResults > 0 && requested > h.config.MaxResults:
		return h.config.MaxResults
	default:
		return requested
	}
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
