package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/courier/internal/hospital/domain"
	"github.com/allisson/courier/internal/metrics"
	outboxDomain "github.com/allisson/courier/internal/outbox/domain"
)

// hospitalUseCaseWithMetrics decorates HospitalUseCase with metrics instrumentation.
type hospitalUseCaseWithMetrics struct {
	next    HospitalUseCase
	metrics metrics.BusinessMetrics
}

// NewHospitalUseCaseWithMetrics wraps a HospitalUseCase with metrics recording.
func NewHospitalUseCaseWithMetrics(useCase HospitalUseCase, m metrics.BusinessMetrics) HospitalUseCase {
	return &hospitalUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

// Admit records metrics for admissions.
func (h *hospitalUseCaseWithMetrics) Admit(
	ctx context.Context,
	item *outboxDomain.WorkItem,
	consumer, reason, cause string,
) error {
	start := time.Now()
	err := h.next.Admit(ctx, item, consumer, reason, cause)
	h.record(ctx, "admit", start, err)
	return err
}

// Get records metrics for record retrieval.
func (h *hospitalUseCaseWithMetrics) Get(ctx context.Context, id uuid.UUID) (*domain.Record, error) {
	start := time.Now()
	record, err := h.next.Get(ctx, id)
	h.record(ctx, "record_get", start, err)
	return record, err
}

// List records metrics for record listing.
func (h *hospitalUseCaseWithMetrics) List(
	ctx context.Context,
	offset, limit int,
	topic string,
) ([]*domain.Record, error) {
	start := time.Now()
	records, err := h.next.List(ctx, offset, limit, topic)
	h.record(ctx, "record_list", start, err)
	return records, err
}

// Count records metrics for record counting.
func (h *hospitalUseCaseWithMetrics) Count(ctx context.Context, topic string) (int64, error) {
	start := time.Now()
	count, err := h.next.Count(ctx, topic)
	h.record(ctx, "record_count", start, err)
	return count, err
}

func (h *hospitalUseCaseWithMetrics) record(ctx context.Context, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	h.metrics.RecordOperation(ctx, "hospital", operation, status)
	h.metrics.RecordDuration(ctx, "hospital", operation, time.Since(start), status)
}
