// Package domain defines the outbox work item and the consumer handler contract.
package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	validation "github.com/jellydator/validation"

	customValidation "github.com/allisson/courier/internal/validation"
)

// WorkItem is a pending outbox event. The row exists only while the event is pending:
// it is deleted on successful delivery or after promotion to the Hospital.
type WorkItem struct {
	ID                uuid.UUID
	EventID           uuid.UUID
	CorrelationID     string
	Topic             string
	PartitionKey      *string
	PayloadType       string
	Payload           []byte
	CreatedAt         time.Time
	ScheduledAt       time.Time
	RetryCount        int
	LastErrorReason   *string
	LastErrorCause    *string
	LastErrorConsumer *string
}

// Validate checks the item before it is appended to the outbox.
func (w *WorkItem) Validate() error {
	err := validation.ValidateStruct(w,
		validation.Field(&w.Topic, validation.Required, validation.Length(1, 255), customValidation.Identifier),
		validation.Field(&w.PayloadType, validation.Required, validation.Length(1, 255)),
		validation.Field(&w.CorrelationID, validation.Required, validation.Length(1, 255)),
		validation.Field(&w.PartitionKey, validation.NilOrNotEmpty, validation.Length(1, 255)),
		validation.Field(&w.RetryCount, validation.Min(0)),
	)
	if err != nil {
		return customValidation.WrapValidationError(err)
	}
	if w.ScheduledAt.Before(w.CreatedAt) {
		return customValidation.WrapValidationError(ErrScheduledBeforeCreated)
	}
	return nil
}

// Metadata describes a delivery attempt to a consumer.
type Metadata struct {
	EventID       uuid.UUID
	CorrelationID string
	RetryCount    int
	Key           *string
	Topic         string
	PayloadType   string
}

// MetadataOf returns the delivery metadata of item.
func MetadataOf(item *WorkItem) Metadata {
	return Metadata{
		EventID:       item.EventID,
		CorrelationID: item.CorrelationID,
		RetryCount:    item.RetryCount,
		Key:           item.PartitionKey,
		Topic:         item.Topic,
		PayloadType:   item.PayloadType,
	}
}

// Handler consumes the payload of a work item. Returning nil acknowledges the delivery;
// any error (or panic) counts as a failed attempt.
type Handler func(ctx context.Context, payload []byte, meta Metadata) error

// Subscription binds a handler to a topic under a consumer name.
type Subscription struct {
	Topic    string
	Consumer string
	Handler  Handler
}

// Stats summarizes the pending outbox.
type Stats struct {
	Pending           int64
	Due               int64
	Retrying          int64
	OldestScheduledAt *time.Time
}
