// internal/workers/matching/analyze-compatibility/handler.go
package analyzecompatibility

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
	"circ-exchange/internal/exchange"
	"circ-exchange/internal/store"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "analyze-compatibility"
)

// Analyzer is the slice of exchange.API this worker calls.
type Analyzer interface {
	Analyze(ctx context.Context, req *exchange.AnalyzeRequest) (*exchange.AnalyzeResponse, error)
}

type Handler struct {
	config     *Config
	pool       store.PoolSource
	api        Analyzer
	publisher  messaging.Publisher
	obs        *observability.Observability
	errHandler *apperrors.ErrorHandler
	logger     logger.Logger
}

func NewHandler(config *Config, pool store.PoolSource, api Analyzer, publisher messaging.Publisher, obs *observability.Observability, log logger.Logger) *Handler {
	if publisher == nil {
		publisher = messaging.NoopPublisher{}
	}
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     config,
		pool:       pool,
		api:        api,
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
	req, err := h.buildRequest(ctx, input)
	if err != nil {
		return nil, err
	}

	resp, err := h.api.Analyze(ctx, req)
	if err != nil {
		return nil, err
	}

	output := &Output{
		SupplyID:           req.CompanyA.ID,
		DemandID:           req.CompanyB.ID,
		CompatibilityScore: resp.CompatibilityScore,
		ChemicalNotes:      resp.ChemicalNotes,
		CO2ReductionTons:   resp.CO2ReductionTons,
		CostSavingsUSD:     resp.CostSavingsUSD,
		RegulatoryNotes:    resp.RegulatoryNotes,
	}

	event := AnalysisEvent{Output: *output, AnalyzedAt: time.Now().UTC()}
	if err := h.publisher.PublishJSON(messaging.SubjectAnalysisReady, event); err != nil {
		h.logger.Warn("failed to publish analysis event", map[string]interface{}{"error": err})
	}

	h.logger.Info("compatibility analyzed", map[string]interface{}{
		"supplyId": output.SupplyID,
		"demandId": output.DemandID,
		"score":    output.CompatibilityScore,
	})
	return output, nil
}

func (h *Handler) buildRequest(ctx context.Context, input *Input) (*exchange.AnalyzeRequest, error) {
	if input.Request != nil {
		return input.Request, nil
	}
	if input.SupplyListingID == "" || input.DemandListingID == "" {
		return nil, apperrors.NewInvalidJobInputError(TaskType, []string{"supplyListingId and demandListingId are required"})
	}

	supply, err := h.pool.Get(ctx, input.SupplyListingID)
	if err != nil {
		return nil, err
	}
	demand, err := h.pool.Get(ctx, input.DemandListingID)
	if err != nil {
		return nil, err
	}
	return exchange.NewAnalyzeRequest(*supply, *demand)
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
