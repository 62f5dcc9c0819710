// internal/workers/matching/rank-candidates/handler.go
package rankcandidates

import (
	"context"
	"encoding/json"
	"time"

	apperrors "circ-exchange/internal/common/errors"
	"circ-exchange/internal/common/logger"
	"circ-exchange/internal/common/messaging"
	"circ-exchange/internal/common/metrics"
	"circ-exchange/internal/common/observability"
	"circ-exchange/internal/common/validation"
	"circ-exchange/internal/matching"
	"circ-exchange/internal/models"
	"circ-exchange/internal/store"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "rank-candidates"
)

type Handler struct {
	config     *Config
	pool       store.PoolSource
	publisher  messaging.Publisher
	obs        *observability.Observability
	errHandler *apperrors.ErrorHandler
	logger     logger.Logger
}

func NewHandler(config *Config, pool store.PoolSource, publisher messaging.Publisher, obs *observability.Observability, log logger.Logger) *Handler {
	if publisher == nil {
		publisher = messaging.NoopPublisher{}
	}
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     config,
		pool:       pool,
		publisher:  publisher,
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
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()
	ctx, span := h.obs.StartJobSpan(ctx, TaskType, job.Key, job.ProcessInstanceKey)

	output, err := h.run(ctx, job.Variables)
	observability.EndSpan(span, err)
	if err != nil {
		bpmnErr := h.errHandler.HandleJobError(ctx, client, job, err)
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, bpmnErr.Code).Inc()
		h.obs.RecordJobProcessed(ctx, TaskType, "failed")
		h.obs.RecordJobDuration(ctx, TaskType, time.Since(start), "failed")
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
	source, err := h.resolveSource(ctx, input)
	if err != nil {
		return nil, err
	}

	pool, err := h.pool.Pool(ctx)
	if err != nil {
		return nil, err
	}

	opts := h.options(input)
	topK := opts.TopK
	// cut after reordering so unlocated listings never crowd out located ones
	opts.TopK = 0
	start := time.Now()
	ranked, err := matching.Rank(*source, pool, opts)
	if err != nil {
		return nil, err
	}
	if input.KnownDistanceOnly {
		ranked = matching.KnownDistance(ranked)
	} else {
		ranked = matching.UnknownDistanceLast(ranked)
	}
	if topK > 0 && len(ranked) > topK {
		ranked = ranked[:topK]
	}
	h.obs.RecordRanking(ctx, string(source.Role), len(pool), time.Since(start))
	metrics.RankingsTotal.WithLabelValues(string(source.Role)).Inc()
	metrics.RankedCandidates.Observe(float64(len(ranked)))

	output := &Output{
		SourceListingID: source.ID,
		SourceRole:      source.Role,
		PoolSize:        len(pool),
		CandidateCount:  len(ranked),
		Candidates:      summarize(ranked),
	}

	h.publish(output)

	h.logger.Info("candidates ranked", map[string]interface{}{
		"sourceListingId": source.ID,
		"poolSize":        len(pool),
		"candidates":      len(ranked),
	})
	return output, nil
}

func (h *Handler) resolveSource(ctx context.Context, input *Input) (*models.Listing, error) {
	if input.SourceListing != nil {
		return input.SourceListing, nil
	}
	if input.SourceListingID == "" {
		return nil, apperrors.NewInvalidJobInputError(TaskType, []string{"sourceListingId or sourceListing is required"})
	}
	return h.pool.Get(ctx, input.SourceListingID)
}

func (h *Handler) options(input *Input) matching.Options {
	opts := h.config.Options
	if input.TopK > 0 {
		opts.TopK = input.TopK
	}
	if h.config.MaxTopK > 0 && (opts.TopK == 0 || opts.TopK > h.config.MaxTopK) {
		opts.TopK = h.config.MaxTopK
	}
	if input.MinSimilarity != nil {
		opts.MinSimilarity = *input.MinSimilarity
	}
	return opts
}

// publish is best effort; a lost event never fails the ranking.
func (h *Handler) publish(output *Output) {
	top := output.Candidates
	if h.config.EventTopN >= 0 && len(top) > h.config.EventTopN {
		top = top[:h.config.EventTopN]
	}
	event := RankedEvent{
		SourceListingID: output.SourceListingID,
		SourceRole:      output.SourceRole,
		CandidateCount:  output.CandidateCount,
		Top:             top,
		RankedAt:        time.Now().UTC(),
	}
	if err := h.publisher.PublishJSON(messaging.SubjectMatchesRanked, event); err != nil {
		h.logger.Warn("failed to publish ranked event", map[string]interface{}{
			"sourceListingId": output.SourceListingID,
			"error":           err,
		})
	}
}

func summarize(ranked []models.MatchCandidate) []Candidate {
	out := make([]Candidate, 0, len(ranked))
	for i, c := range ranked {
		counterpart := c.Demand
		if c.CounterpartID == c.Supply.ID {
			counterpart = c.Supply
		}
		out = append(out, Candidate{
			Rank:                  i + 1,
			CounterpartID:         c.CounterpartID,
			CompanyName:           counterpart.Company.Name,
			SupplyMaterial:        c.SupplyMaterial,
			DemandMaterial:        c.DemandMaterial,
			CompositionSimilarity: c.CompositionSimilarity,
			DistanceKm:            c.DistanceKm,
			DistanceUnknown:       c.DistanceUnknown,
			BlendedScore:          c.BlendedScore,
		})
	}
	return out
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
