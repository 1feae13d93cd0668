package app

import (
	"context"
	"log/slog"
	"time"

	apperrors "github.com/allisson/courier/internal/errors"
	"github.com/allisson/courier/internal/metrics"
	outboxDomain "github.com/allisson/courier/internal/outbox/domain"
	outboxUseCase "github.com/allisson/courier/internal/outbox/usecase"
	schedulerDomain "github.com/allisson/courier/internal/scheduler/domain"
	schedulerUseCase "github.com/allisson/courier/internal/scheduler/usecase"
)

// Built-in task names.
const (
	OutboxBacklogMonitorTask = "outbox-backlog-monitor"
	OutboxDrainTask          = "outbox-drain"
)

// cycleRunner runs one outbox delivery cycle.
type cycleRunner interface {
	ProcessBatch(ctx context.Context) (outboxUseCase.DispatchResult, error)
}

// registerBuiltinTasks registers the tasks every courier node runs:
//   - outbox-backlog-monitor: every minute, publishes the outbox backlog gauges, logs the
//     backlog and warns when the oldest pending item has been due for longer than alertAge.
//   - outbox-drain: one-shot, runs a delivery cycle on whichever node picks it up.
func registerBuiltinTasks(
	scheduler *schedulerUseCase.Scheduler,
	inspector outboxUseCase.Inspector,
	deliverer cycleRunner,
	businessMetrics metrics.BusinessMetrics,
	alertAge time.Duration,
	logger *slog.Logger,
) error {
	everyMinute, err := schedulerDomain.FixedDelay(time.Minute)
	if err != nil {
		return err
	}

	if err := scheduler.RegisterRecurring(
		OutboxBacklogMonitorTask,
		everyMinute,
		backlogMonitor(inspector, businessMetrics, alertAge, logger),
	); err != nil {
		return err
	}

	return scheduler.RegisterOneTime(OutboxDrainTask, nil, drainOutbox(deliverer, logger))
}

func backlogMonitor(
	inspector outboxUseCase.Inspector,
	businessMetrics metrics.BusinessMetrics,
	alertAge time.Duration,
	logger *slog.Logger,
) schedulerUseCase.TaskFunc {
	return func(ctx context.Context) error {
		stats, err := inspector.Stats(ctx)
		if err != nil {
			return err
		}

		attrs := []any{
			slog.Int64("pending", stats.Pending),
			slog.Int64("due", stats.Due),
			slog.Int64("retrying", stats.Retrying),
		}
		var age time.Duration
		if stats.OldestScheduledAt != nil {
			age = time.Since(*stats.OldestScheduledAt)
		}
		businessMetrics.RecordBacklog(ctx, "outbox", stats.Pending, age)

		if stats.OldestScheduledAt == nil {
			logger.DebugContext(ctx, "outbox backlog", attrs...)
			return nil
		}

		attrs = append(attrs, slog.Duration("oldest_due_for", age))
		if alertAge > 0 && age > alertAge {
			logger.WarnContext(ctx, "outbox backlog is falling behind", attrs...)
			return nil
		}
		logger.InfoContext(ctx, "outbox backlog", attrs...)
		return nil
	}
}

func drainOutbox(deliverer cycleRunner, logger *slog.Logger) schedulerUseCase.JobHandler {
	return func(ctx context.Context, _ any) error {
		result, err := deliverer.ProcessBatch(ctx)
		if apperrors.Is(err, outboxDomain.ErrCycleInProgress) {
			logger.InfoContext(ctx, "outbox drain skipped, a delivery cycle is already running")
			return nil
		}
		if err != nil {
			return err
		}

		logger.InfoContext(ctx, "outbox drained",
			slog.Int("processed", result.Processed),
			slog.Int("delivered", result.Delivered),
			slog.Int("retried", result.Retried),
			slog.Int("hospitalized", result.Hospitalized),
		)
		return nil
	}
}
