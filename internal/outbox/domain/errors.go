package domain

import (
	"github.com/allisson/courier/internal/errors"
)

// Outbox error definitions.
var (
	// ErrHandlerAlreadyRegistered indicates a second registration for the same topic.
	ErrHandlerAlreadyRegistered = errors.Wrap(errors.ErrConflict, "handler already registered for topic")

	// ErrHandlerNotRegistered indicates a work item whose topic has no registered handler.
	ErrHandlerNotRegistered = errors.Wrap(errors.ErrNotFound, "no handler registered for topic")

	// ErrWorkItemNotFound indicates a work item that no longer exists.
	ErrWorkItemNotFound = errors.Wrap(errors.ErrNotFound, "work item not found")

	// ErrWorkItemExists indicates an event id that was already appended.
	ErrWorkItemExists = errors.Wrap(errors.ErrConflict, "work item already exists")

	// ErrScheduledBeforeCreated indicates a work item scheduled before its creation time.
	ErrScheduledBeforeCreated = errors.New("scheduled_at must not be before created_at")

	// ErrDelivererStopped indicates a Start call on a stopped deliverer.
	ErrDelivererStopped = errors.Wrap(errors.ErrUnavailable, "outbox deliverer stopped")
)

// ErrCycleInProgress indicates a poll cycle skipped because another one holds the lease.
var ErrCycleInProgress = errors.Wrap(errors.ErrUnavailable, "outbox poll cycle already in progress")
