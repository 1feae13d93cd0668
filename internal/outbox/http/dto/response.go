// Package dto provides data transfer objects for outbox HTTP responses.
package dto

import (
	"time"

	"github.com/allisson/courier/internal/outbox/domain"
)

// StatsResponse summarizes the pending outbox.
type StatsResponse struct {
	Pending           int64      `json:"pending"`
	Due               int64      `json:"due"`
	Retrying          int64      `json:"retrying"`
	OldestScheduledAt *time.Time `json:"oldest_scheduled_at,omitempty"`
}

// WorkItemResponse represents a pending work item. Payloads are not exposed.
type WorkItemResponse struct {
	ID                string    `json:"id"`
	EventID           string    `json:"event_id"`
	CorrelationID     string    `json:"correlation_id"`
	Topic             string    `json:"topic"`
	PartitionKey      *string   `json:"partition_key,omitempty"`
	PayloadType       string    `json:"payload_type"`
	CreatedAt         time.Time `json:"created_at"`
	ScheduledAt       time.Time `json:"scheduled_at"`
	RetryCount        int       `json:"retry_count"`
	LastErrorReason   *string   `json:"last_error_reason,omitempty"`
	LastErrorCause    *string   `json:"last_error_cause,omitempty"`
	LastErrorConsumer *string   `json:"last_error_consumer,omitempty"`
}

// ListWorkItemsResponse represents a page of pending work items.
type ListWorkItemsResponse struct {
	Data []WorkItemResponse `json:"data"`
}

// MapStatsToResponse converts outbox stats.
func MapStatsToResponse(stats *domain.Stats) StatsResponse {
	return StatsResponse{
		Pending:           stats.Pending,
		Due:               stats.Due,
		Retrying:          stats.Retrying,
		OldestScheduledAt: stats.OldestScheduledAt,
	}
}

// MapWorkItemsToListResponse converts a page of work items.
func MapWorkItemsToListResponse(items []*domain.WorkItem) ListWorkItemsResponse {
	data := make([]WorkItemResponse, 0, len(items))
	for _, item := range items {
		data = append(data, WorkItemResponse{
			ID:                item.ID.String(),
			EventID:           item.EventID.String(),
			CorrelationID:     item.CorrelationID,
			Topic:             item.Topic,
			PartitionKey:      item.PartitionKey,
			PayloadType:       item.PayloadType,
			CreatedAt:         item.CreatedAt,
			ScheduledAt:       item.ScheduledAt,
			RetryCount:        item.RetryCount,
			LastErrorReason:   item.LastErrorReason,
			LastErrorCause:    item.LastErrorCause,
			LastErrorConsumer: item.LastErrorConsumer,
		})
	}

	return ListWorkItemsResponse{Data: data}
}
