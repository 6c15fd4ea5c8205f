package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/javandres/bultti-inspections-api/pkg/config"
	"github.com/javandres/bultti-inspections-api/pkg/jobs"
)

// LinkageRefresher recomputes staleness flags for an operator's open post
// inspections in the background. Publishing a pre inspection enqueues the
// operator here; the work happens off the request path because it touches
// every open post inspection of that operator.
type LinkageRefresher struct {
	queue   *jobs.Queue
	metrics *MetricsService
	logger  *zap.Logger
}

// LinkageTarget is the service surface the refresher drives.
type LinkageTarget interface {
	RefreshOperatorLinkage(ctx context.Context, operatorID int64) error
}

// NewLinkageRefresher builds the refresher around a worker queue.
func NewLinkageRefresher(target LinkageTarget, cfg config.LinkageConfig, metrics *MetricsService, logger *zap.Logger) *LinkageRefresher {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &LinkageRefresher{metrics: metrics, logger: logger}
	handler := func(ctx context.Context, job jobs.Job) error {
		operatorID, ok := job.Payload.(int64)
		if !ok {
			return fmt.Errorf("unexpected payload type %T", job.Payload)
		}
		if err := target.RefreshOperatorLinkage(ctx, operatorID); err != nil {
			r.recordOutcome("error")
			return err
		}
		r.recordOutcome("ok")
		return nil
	}
	r.queue = jobs.NewQueue("linkage-refresh", handler, jobs.QueueConfig{
		Workers:    cfg.RefreshWorkers,
		MaxRetries: cfg.RefreshRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return r
}

// Start launches the workers.
func (r *LinkageRefresher) Start(ctx context.Context) {
	r.queue.Start(ctx)
}

// Stop drains the workers.
func (r *LinkageRefresher) Stop() {
	r.queue.Stop()
}

// EnqueueOperator schedules a staleness recomputation for the operator's
// post inspections.
func (r *LinkageRefresher) EnqueueOperator(operatorID int64) error {
	return r.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    "linkage-refresh",
		Payload: operatorID,
	})
}

func (r *LinkageRefresher) recordOutcome(outcome string) {
	if r.metrics != nil {
		r.metrics.RecordLinkageRefresh(outcome)
	}
}
