// Package domain defines the Hospital record: the immutable snapshot of a work item that
// failed permanently.
package domain

import (
	"time"

	"github.com/google/uuid"

	"github.com/allisson/courier/internal/errors"
	outboxDomain "github.com/allisson/courier/internal/outbox/domain"
)

// ErrRecordNotFound indicates the hospital record does not exist.
var ErrRecordNotFound = errors.Wrap(errors.ErrNotFound, "hospital record not found")

// Record is an append-only snapshot of a work item at the moment it was hospitalized,
// plus the consumer that gave up on it and the final failure. Records are never updated
// or deleted.
type Record struct {
	ID            uuid.UUID
	WorkItemID    uuid.UUID
	EventID       uuid.UUID
	CorrelationID string
	Topic         string
	PartitionKey  *string
	PayloadType   string
	Payload       []byte
	ItemCreatedAt time.Time
	RetryCount    int
	Consumer      string
	Reason        string
	Cause         string
	AdmittedAt    time.Time
}

// NewRecord snapshots item.
func NewRecord(item *outboxDomain.WorkItem, consumer, reason, cause string, admittedAt time.Time) *Record {
	return &Record{
		ID:            uuid.Must(uuid.NewV7()),
		WorkItemID:    item.ID,
		EventID:       item.EventID,
		CorrelationID: item.CorrelationID,
		Topic:         item.Topic,
		PartitionKey:  item.PartitionKey,
		PayloadType:   item.PayloadType,
		Payload:       append([]byte(nil), item.Payload...),
		ItemCreatedAt: item.CreatedAt,
		RetryCount:    item.RetryCount,
		Consumer:      consumer,
		Reason:        reason,
		Cause:         cause,
		AdmittedAt:    admittedAt,
	}
}

// DeadLetter is the payload published on the dead-letter topic for each admission.
type DeadLetter struct {
	RecordID      uuid.UUID `json:"record_id"       msgpack:"record_id"`
	WorkItemID    uuid.UUID `json:"work_item_id"    msgpack:"work_item_id"`
	EventID       uuid.UUID `json:"event_id"        msgpack:"event_id"`
	CorrelationID string    `json:"correlation_id"  msgpack:"correlation_id"`
	Topic         string    `json:"topic"           msgpack:"topic"`
	PartitionKey  *string   `json:"partition_key"   msgpack:"partition_key"`
	PayloadType   string    `json:"payload_type"    msgpack:"payload_type"`
	Payload       []byte    `json:"payload"         msgpack:"payload"`
	ItemCreatedAt time.Time `json:"item_created_at" msgpack:"item_created_at"`
	RetryCount    int       `json:"retry_count"     msgpack:"retry_count"`
	Consumer      string    `json:"consumer"        msgpack:"consumer"`
	Reason        string    `json:"reason"          msgpack:"reason"`
	Cause         string    `json:"cause"           msgpack:"cause"`
	AdmittedAt    time.Time `json:"admitted_at"     msgpack:"admitted_at"`
}

// DeadLetterTypeName is the serializer tag of DeadLetter. It is stable across package moves
// because independent services decode it.
const DeadLetterTypeName = "courier.hospital.DeadLetter.v1"

// ToDeadLetter converts the record to its published form.
func (r *Record) ToDeadLetter() DeadLetter {
	return DeadLetter{
		RecordID:      r.ID,
		WorkItemID:    r.WorkItemID,
		EventID:       r.EventID,
		CorrelationID: r.CorrelationID,
		Topic:         r.Topic,
		PartitionKey:  r.PartitionKey,
		PayloadType:   r.PayloadType,
		Payload:       r.Payload,
		ItemCreatedAt: r.ItemCreatedAt,
		RetryCount:    r.RetryCount,
		Consumer:      r.Consumer,
		Reason:        r.Reason,
		Cause:         r.Cause,
		AdmittedAt:    r.AdmittedAt,
	}
}

// RecordFor returns the record a consumer group writes when it receives the dead letter:
// the original snapshot with the group as consumer.
func (d DeadLetter) RecordFor(group string, receivedAt time.Time) *Record {
	return &Record{
		ID:            uuid.Must(uuid.NewV7()),
		WorkItemID:    d.WorkItemID,
		EventID:       d.EventID,
		CorrelationID: d.CorrelationID,
		Topic:         d.Topic,
		PartitionKey:  d.PartitionKey,
		PayloadType:   d.PayloadType,
		Payload:       d.Payload,
		ItemCreatedAt: d.ItemCreatedAt,
		RetryCount:    d.RetryCount,
		Consumer:      group,
		Reason:        d.Reason,
		Cause:         d.Cause,
		AdmittedAt:    receivedAt,
	}
}
