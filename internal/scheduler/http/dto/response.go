package dto

import (
	"time"

	"github.com/allisson/courier/internal/scheduler/domain"
)

// TaskInstanceResponse represents a scheduled task instance in API responses. Task data is
// never returned since it may be sealed.
type TaskInstanceResponse struct {
	TaskName            string     `json:"task_name"`
	TaskInstance        string     `json:"task_instance"`
	PayloadType         string     `json:"payload_type,omitempty"`
	ExecutionTime       time.Time  `json:"execution_time"`
	Picked              bool       `json:"picked"`
	PickedBy            *string    `json:"picked_by,omitempty"`
	LastHeartbeat       *time.Time `json:"last_heartbeat,omitempty"`
	LastSuccess         *time.Time `json:"last_success,omitempty"`
	LastFailure         *time.Time `json:"last_failure,omitempty"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
}

// ListTaskInstancesResponse represents a page of task instances.
type ListTaskInstancesResponse struct {
	Data []TaskInstanceResponse `json:"data"`
}

// EnqueueJobResponse identifies an enqueued job.
type EnqueueJobResponse struct {
	TaskName      string    `json:"task_name"`
	TaskInstance  string    `json:"task_instance"`
	ExecutionTime time.Time `json:"execution_time"`
}

// MapTaskInstanceToResponse converts a task instance.
func MapTaskInstanceToResponse(instance *domain.TaskInstance) TaskInstanceResponse {
	return TaskInstanceResponse{
		TaskName:            instance.TaskName,
		TaskInstance:        instance.TaskInstance,
		PayloadType:         instance.PayloadType,
		ExecutionTime:       instance.ExecutionTime,
		Picked:              instance.Picked,
		PickedBy:            instance.PickedBy,
		LastHeartbeat:       instance.LastHeartbeat,
		LastSuccess:         instance.LastSuccess,
		LastFailure:         instance.LastFailure,
		ConsecutiveFailures: instance.ConsecutiveFailures,
	}
}

// MapTaskInstancesToListResponse converts a page of task instances.
func MapTaskInstancesToListResponse(instances []*domain.TaskInstance) ListTaskInstancesResponse {
	data := make([]TaskInstanceResponse, 0, len(instances))
	for _, instance := range instances {
		data = append(data, MapTaskInstanceToResponse(instance))
	}
	return ListTaskInstancesResponse{Data: data}
}
