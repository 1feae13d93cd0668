package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/courier/internal/correlation"
	apperrors "github.com/allisson/courier/internal/errors"
	"github.com/allisson/courier/internal/outbox/domain"
	"github.com/allisson/courier/internal/serializer"
)

// producer implements Producer.
type producer struct {
	repo       WorkItemRepository
	serializer *serializer.Serializer
	now        func() time.Time
}

// NewProducer creates a Producer storing work items through repo.
func NewProducer(repo WorkItemRepository, s *serializer.Serializer) Producer {
	return &producer{
		repo:       repo,
		serializer: s,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Append stores payload on topic with scheduled_at = created_at = now and a fresh event id.
// The correlation id is inherited from ctx or generated.
func (p *producer) Append(
	ctx context.Context,
	topic string,
	key *string,
	payload any,
) (*domain.WorkItem, error) {
	payloadType, data, err := p.serializer.Marshal(ctx, payload)
	if err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to generate work item id")
	}
	eventID, err := uuid.NewV7()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to generate event id")
	}

	now := p.now()
	item := &domain.WorkItem{
		ID:            id,
		EventID:       eventID,
		CorrelationID: correlation.EnsureCorrelationID(ctx),
		Topic:         topic,
		PartitionKey:  key,
		PayloadType:   payloadType,
		Payload:       data,
		CreatedAt:     now,
		ScheduledAt:   now,
		RetryCount:    0,
	}

	if err := item.Validate(); err != nil {
		return nil, err
	}

	if err := p.repo.Create(ctx, item); err != nil {
		return nil, err
	}

	return item, nil
}
