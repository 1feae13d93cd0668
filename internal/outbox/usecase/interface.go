// Package usecase implements the transactional outbox: appending work items, routing them to
// registered consumers and redelivering or hospitalizing failed deliveries.
package usecase

import (
	"context"
	"time"

	"github.com/allisson/courier/internal/outbox/domain"
)

// WorkItemRepository defines outbox work item persistence operations.
type WorkItemRepository interface {
	Create(ctx context.Context, item *domain.WorkItem) error
	LockDueBatch(ctx context.Context, now time.Time, limit int) ([]*domain.WorkItem, error)
	Update(ctx context.Context, item *domain.WorkItem) error
	Delete(ctx context.Context, item *domain.WorkItem) error
	Stats(ctx context.Context, now time.Time) (*domain.Stats, error)
	ListPending(ctx context.Context, offset, limit int, topic string) ([]*domain.WorkItem, error)
}

// Hospital receives work items that failed permanently.
type Hospital interface {
	Admit(ctx context.Context, item *domain.WorkItem, consumer, reason, cause string) error
}

// Producer appends events to the outbox.
type Producer interface {
	// Append serializes payload and stores it as a work item due now. It joins the
	// transaction carried by ctx, if any, so the event commits with the business write.
	Append(ctx context.Context, topic string, key *string, payload any) (*domain.WorkItem, error)
}

// Inspector exposes read-only views of the pending outbox.
type Inspector interface {
	Stats(ctx context.Context) (*domain.Stats, error)
	ListPending(ctx context.Context, offset, limit int, topic string) ([]*domain.WorkItem, error)
}
