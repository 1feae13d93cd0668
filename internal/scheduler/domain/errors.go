package domain

import (
	"github.com/allisson/courier/internal/errors"
)

// Scheduler domain errors.
var (
	// ErrTaskInstanceExists indicates an instance with the same task name and id is still pending.
	ErrTaskInstanceExists = errors.Wrap(errors.ErrConflict, "task instance already exists")

	// ErrTaskInstanceNotFound indicates the instance row is gone or was claimed by another node.
	ErrTaskInstanceNotFound = errors.Wrap(errors.ErrNotFound, "task instance not found")

	// ErrTaskNotRegistered indicates no task with the given name is registered.
	ErrTaskNotRegistered = errors.Wrap(errors.ErrInvalidInput, "task not registered")

	// ErrTaskAlreadyRegistered indicates a second registration under the same task name.
	ErrTaskAlreadyRegistered = errors.Wrap(errors.ErrConflict, "task already registered")

	// ErrPayloadTypeMismatch indicates an enqueued payload does not match the declared type.
	ErrPayloadTypeMismatch = errors.Wrap(errors.ErrInvalidInput, "payload type does not match task")

	// ErrInvalidSchedule indicates a schedule expression could not be parsed.
	ErrInvalidSchedule = errors.Wrap(errors.ErrInvalidInput, "invalid schedule")

	// ErrSchedulerStarted indicates a registration attempted after Start.
	ErrSchedulerStarted = errors.Wrap(errors.ErrInvalidInput, "scheduler already started")

	// ErrSchedulerStopped indicates the scheduler no longer accepts work.
	ErrSchedulerStopped = errors.Wrap(errors.ErrUnavailable, "scheduler stopped")
)
