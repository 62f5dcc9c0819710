// internal/common/camunda/worker.go
package camunda

import (
	"sort"
	"sync"
	"time"

	"circ-exchange/internal/common/config"
	"circ-exchange/internal/common/logger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

// JobHandlerFunc is the signature every task handler exposes as Handle.
type JobHandlerFunc func(client worker.JobClient, job entities.Job)

// JobWorkerOpener is the part of zbc.Client used to open job workers.
type JobWorkerOpener interface {
	NewJobWorker() worker.JobWorkerBuilderStep1
}

// Registry opens one job worker per enabled task type and closes them all
// on shutdown.
type Registry struct {
	mu      sync.Mutex
	client  JobWorkerOpener
	workers map[string]worker.JobWorker
	logger  logger.Logger
}

func NewRegistry(client JobWorkerOpener, log logger.Logger) *Registry {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Registry{client: client, workers: map[string]worker.JobWorker{}, logger: log}
}

// Register opens a worker for taskType unless it is disabled. It reports
// whether a worker was started.
func (r *Registry) Register(taskType string, wcfg config.WorkerConfig, handler JobHandlerFunc) bool {
	if !wcfg.Enabled {
		r.logger.Info("worker disabled", map[string]interface{}{"taskType": taskType})
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.workers[taskType]; exists {
		r.logger.Warn("worker already registered", map[string]interface{}{"taskType": taskType})
		return false
	}

	jw := r.client.NewJobWorker().
		JobType(taskType).
		Handler(worker.JobHandler(handler)).
		MaxJobsActive(wcfg.MaxJobsActive).
		Timeout(time.Duration(wcfg.Timeout) * time.Millisecond).
		Open()
	r.workers[taskType] = jw

	r.logger.Info("worker started", map[string]interface{}{
		"taskType":      taskType,
		"maxJobsActive": wcfg.MaxJobsActive,
		"timeout_ms":    wcfg.Timeout,
	})
	return true
}

// TaskTypes lists the running workers, sorted.
func (r *Registry) TaskTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.workers))
	for t := range r.workers {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Close stops every worker and waits for in-flight jobs to finish.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for taskType, jw := range r.workers {
		jw.Close()
		jw.AwaitClose()
		r.logger.Info("worker stopped", map[string]interface{}{"taskType": taskType})
	}
	r.workers = map[string]worker.JobWorker{}
}
