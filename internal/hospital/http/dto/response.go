// Package dto provides data transfer objects for Hospital HTTP responses.
package dto

import (
	"time"

	"github.com/allisson/courier/internal/hospital/domain"
)

// RecordResponse represents a hospital record in API responses.
type RecordResponse struct {
	ID            string    `json:"id"`
	WorkItemID    string    `json:"work_item_id"`
	EventID       string    `json:"event_id"`
	CorrelationID string    `json:"correlation_id"`
	Topic         string    `json:"topic"`
	PartitionKey  *string   `json:"partition_key,omitempty"`
	PayloadType   string    `json:"payload_type"`
	Payload       []byte    `json:"payload,omitempty"`
	ItemCreatedAt time.Time `json:"item_created_at"`
	RetryCount    int       `json:"retry_count"`
	Consumer      string    `json:"consumer"`
	Reason        string    `json:"reason"`
	Cause         string    `json:"cause"`
	AdmittedAt    time.Time `json:"admitted_at"`
}

// ListRecordsResponse represents a page of hospital records.
type ListRecordsResponse struct {
	Data  []RecordResponse `json:"data"`
	Total int64            `json:"total"`
}

// MapRecordToResponse converts a record, payload included.
func MapRecordToResponse(record *domain.Record) RecordResponse {
	response := mapRecordSummary(record)
	response.Payload = record.Payload
	return response
}

// MapRecordsToListResponse converts a page of records. Payloads are omitted from listings.
func MapRecordsToListResponse(records []*domain.Record, total int64) ListRecordsResponse {
	data := make([]RecordResponse, 0, len(records))
	for _, record := range records {
		data = append(data, mapRecordSummary(record))
	}

	return ListRecordsResponse{
		Data:  data,
		Total: total,
	}
}

func mapRecordSummary(record *domain.Record) RecordResponse {
	return RecordResponse{
		ID:            record.ID.String(),
		WorkItemID:    record.WorkItemID.String(),
		EventID:       record.EventID.String(),
		CorrelationID: record.CorrelationID,
		Topic:         record.Topic,
		PartitionKey:  record.PartitionKey,
		PayloadType:   record.PayloadType,
		ItemCreatedAt: record.ItemCreatedAt,
		RetryCount:    record.RetryCount,
		Consumer:      record.Consumer,
		Reason:        record.Reason,
		Cause:         record.Cause,
		AdmittedAt:    record.AdmittedAt,
	}
}
