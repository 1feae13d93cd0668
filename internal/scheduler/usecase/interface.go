// Package usecase implements the cluster-wide persistent task scheduler: recurring tasks
// registered at startup and one-shot jobs enqueued at runtime, executed by a worker pool that
// claims due rows with row-level locks.
package usecase

import (
	"context"
	"time"

	"github.com/allisson/courier/internal/scheduler/domain"
)

// TaskRepository defines scheduled task persistence operations.
type TaskRepository interface {
	CreateIfNotExists(ctx context.Context, instance *domain.TaskInstance) (bool, error)
	PickDue(
		ctx context.Context,
		now time.Time,
		limit int,
		pickedBy string,
		taskNames []string,
	) ([]*domain.TaskInstance, error)
	Complete(ctx context.Context, instance *domain.TaskInstance) error
	Reschedule(ctx context.Context, instance *domain.TaskInstance) error
	UpdateHeartbeat(ctx context.Context, instance *domain.TaskInstance, now time.Time) error
	ResetStale(ctx context.Context, olderThan time.Time) (int64, error)
	Get(ctx context.Context, taskName, taskInstance string) (*domain.TaskInstance, error)
	List(ctx context.Context, offset, limit int, taskName string) ([]*domain.TaskInstance, error)
	Remove(ctx context.Context, taskName, taskInstance string) error
}

// TaskFunc is the body of a recurring task.
type TaskFunc func(ctx context.Context) error

// JobHandler executes a one-shot job. payload has the exact type registered for the task,
// or is nil for tasks registered without a payload.
type JobHandler func(ctx context.Context, payload any) error

// JobUseCase is the runtime surface for enqueuing and inspecting one-shot jobs.
type JobUseCase interface {
	// AddJob enqueues a job due now under a generated instance id and returns that id.
	AddJob(ctx context.Context, taskName string, payload any) (string, error)

	// AddJobWithID enqueues a job due at under a caller-chosen instance id. Returns
	// domain.ErrTaskInstanceExists while an instance with that id is still pending.
	AddJobWithID(ctx context.Context, taskName, instanceID string, payload any, at time.Time) error

	// PayloadFromJSON decodes a JSON document into the payload type registered for taskName.
	PayloadFromJSON(taskName string, raw []byte) (any, error)

	// Cancel removes a pending instance.
	Cancel(ctx context.Context, taskName, instanceID string) error

	Get(ctx context.Context, taskName, instanceID string) (*domain.TaskInstance, error)
	List(ctx context.Context, offset, limit int, taskName string) ([]*domain.TaskInstance, error)
}
