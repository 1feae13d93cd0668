// Package usecase implements the Hospital: admission of permanently failed work items,
// dead-letter publication, consumer-group auditing and the read API.
package usecase

import (
	"context"

	"github.com/google/uuid"

	"github.com/allisson/courier/internal/hospital/domain"
	outboxDomain "github.com/allisson/courier/internal/outbox/domain"
)

// RecordRepository defines hospital record persistence operations.
type RecordRepository interface {
	Create(ctx context.Context, record *domain.Record) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Record, error)
	List(ctx context.Context, offset, limit int, topic string) ([]*domain.Record, error)
	Count(ctx context.Context, topic string) (int64, error)
}

// Publisher appends events to the outbox.
type Publisher interface {
	Append(ctx context.Context, topic string, key *string, payload any) (*outboxDomain.WorkItem, error)
}

// Alerter reports admissions to an alerting sink.
type Alerter interface {
	Alert(ctx context.Context, record *domain.Record)
	Close() error
}

// HospitalUseCase defines the Hospital operations.
type HospitalUseCase interface {
	// Admit snapshots item into an immutable record. It runs on the transaction carried by
	// ctx, so the record commits together with the removal of the outbox row.
	Admit(ctx context.Context, item *outboxDomain.WorkItem, consumer, reason, cause string) error

	// Get retrieves a record by id.
	Get(ctx context.Context, id uuid.UUID) (*domain.Record, error)

	// List retrieves records newest first, optionally filtered by topic.
	List(ctx context.Context, offset, limit int, topic string) ([]*domain.Record, error)

	// Count counts records, optionally filtered by topic.
	Count(ctx context.Context, topic string) (int64, error)
}
