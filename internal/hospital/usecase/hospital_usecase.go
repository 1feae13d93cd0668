package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/courier/internal/correlation"
	"github.com/allisson/courier/internal/database"
	apperrors "github.com/allisson/courier/internal/errors"
	"github.com/allisson/courier/internal/hospital/domain"
	outboxDomain "github.com/allisson/courier/internal/outbox/domain"
)

// Config holds Hospital configuration.
type Config struct {
	// PublishEnabled republishes every admission on DeadLetterTopic.
	PublishEnabled  bool
	DeadLetterTopic string
}

// hospitalUseCase implements HospitalUseCase.
type hospitalUseCase struct {
	config    Config
	repo      RecordRepository
	publisher Publisher
	alerter   Alerter
	logger    *slog.Logger
	now       func() time.Time
}

// NewHospitalUseCase creates a HospitalUseCase. publisher may be nil when publication is
// disabled; alerter may be nil.
func NewHospitalUseCase(
	config Config,
	repo RecordRepository,
	publisher Publisher,
	alerter Alerter,
	logger *slog.Logger,
) HospitalUseCase {
	if alerter == nil {
		alerter = NewNoOpAlerter()
	}
	return &hospitalUseCase{
		config:    config,
		repo:      repo,
		publisher: publisher,
		alerter:   alerter,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Admit stores the snapshot and, when enabled, publishes it on the dead-letter topic. Items
// that failed on the dead-letter topic itself are never republished.
func (h *hospitalUseCase) Admit(
	ctx context.Context,
	item *outboxDomain.WorkItem,
	consumer, reason, cause string,
) error {
	record := domain.NewRecord(item, consumer, reason, cause, h.now())

	if err := h.repo.Create(ctx, record); err != nil {
		return err
	}

	if h.config.PublishEnabled && h.publisher != nil && item.Topic != h.config.DeadLetterTopic {
		publishCtx := correlation.WithCorrelationID(ctx, item.CorrelationID)
		if _, err := h.publisher.Append(publishCtx, h.config.DeadLetterTopic, item.PartitionKey, record.ToDeadLetter()); err != nil {
			return apperrors.Wrap(err, "failed to publish dead letter")
		}
	}

	// The admission may still roll back with the caller's transaction.
	database.AfterCommit(ctx, func() { h.alerter.Alert(ctx, record) })

	if h.logger != nil {
		h.logger.InfoContext(ctx, "work item admitted to hospital",
			slog.String("record_id", record.ID.String()),
			slog.String("consumer", consumer),
			slog.String("reason", reason),
		)
	}

	return nil
}

// Get retrieves a record by id.
func (h *hospitalUseCase) Get(ctx context.Context, id uuid.UUID) (*domain.Record, error) {
	return h.repo.Get(ctx, id)
}

// List retrieves records newest first.
func (h *hospitalUseCase) List(ctx context.Context, offset, limit int, topic string) ([]*domain.Record, error) {
	return h.repo.List(ctx, offset, limit, topic)
}

// Count counts records.
func (h *hospitalUseCase) Count(ctx context.Context, topic string) (int64, error) {
	return h.repo.Count(ctx, topic)
}
