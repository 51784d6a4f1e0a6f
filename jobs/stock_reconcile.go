package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/unistock/internal/jobs"
	"github.com/odyssey-erp/unistock/internal/reconcile"
	"github.com/odyssey-erp/unistock/internal/shared"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// Reconciler runs bulk stock recomputation.
type Reconciler interface {
	RecomputeAll(ctx context.Context, filter reconcile.Filter) (reconcile.Report, error)
}

// StockReconcileJob recomputes stock_quantity for every product in scope.
type StockReconcileJob struct {
	Service Reconciler
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewStockReconcileJob wires dependencies for the reconcile handler.
func NewStockReconcileJob(svc Reconciler, logger *slog.Logger, metrics *jobmetrics.Metrics) *StockReconcileJob {
	return &StockReconcileJob{Service: svc, Logger: logger, Metrics: metrics}
}

// Handle processes TaskStockReconcile tasks.
func (j *StockReconcileJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Service == nil {
		return errors.New("stock reconcile: handler not configured")
	}
	var payload StockReconcilePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskStockReconcile)
	defer func() {
		err = tracker.End(err)
	}()

	logger := j.logger().With(slog.String("task", TaskStockReconcile))
	if payload.UnitID != nil {
		logger = logger.With(slog.Int64("unit_id", *payload.UnitID))
	}
	if payload.Nature != "" {
		logger = logger.With(slog.String("nature", payload.Nature))
	}

	report, err := j.Service.RecomputeAll(ctx, payload.filter())
	j.metrics().AddReconciled(report.Processed, report.Updated)
	switch {
	case errors.Is(err, shared.ErrValidation):
		logger.Warn("stock reconcile rejected", slog.Any("error", err))
		return errors.Join(err, asynq.SkipRetry)
	case errors.Is(err, shared.ErrConflict):
		// Another run holds the scope lock; it will cover the same products.
		logger.Info("stock reconcile skipped", slog.Any("error", err))
		return nil
	case err != nil:
		logger.Error("stock reconcile failed", slog.String("summary", report.String()), slog.Any("error", err))
		return err
	}
	logger.Info("stock reconcile completed",
		slog.String("run_id", report.RunID.String()),
		slog.Int("processed", report.Processed),
		slog.Int("updated", report.Updated))
	return nil
}

func (j *StockReconcileJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *StockReconcileJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
