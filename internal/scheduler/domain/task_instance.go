// Package domain defines scheduled task instances, schedules and failure handlers.
package domain

import (
	"time"

	validation "github.com/jellydator/validation"

	customValidation "github.com/allisson/courier/internal/validation"
)

// RecurringInstanceID is the instance id of the single row backing a recurring task.
const RecurringInstanceID = "recurring"

// TaskInstance is one pending or running execution of a named task. The row exists while the
// instance is pending or running and is deleted once it completes.
type TaskInstance struct {
	TaskName            string
	TaskInstance        string
	TaskData            []byte
	PayloadType         string
	ExecutionTime       time.Time
	Picked              bool
	PickedBy            *string
	LastHeartbeat       *time.Time
	LastSuccess         *time.Time
	LastFailure         *time.Time
	ConsecutiveFailures int
	Version             int64
}

// Validate checks the identifying fields of the instance.
func (t *TaskInstance) Validate() error {
	err := validation.ValidateStruct(t,
		validation.Field(&t.TaskName, validation.Required, validation.Length(1, 255), customValidation.Identifier),
		validation.Field(&t.TaskInstance, validation.Required, validation.Length(1, 255), customValidation.NoWhitespace),
		validation.Field(&t.ExecutionTime, validation.Required),
	)
	if err != nil {
		return customValidation.WrapValidationError(err)
	}
	return nil
}

// IsRecurring reports whether the instance backs a recurring task.
func (t *TaskInstance) IsRecurring() bool {
	return t.TaskInstance == RecurringInstanceID
}

// Key identifies the instance across the cluster.
func (t *TaskInstance) Key() string {
	return t.TaskName + "/" + t.TaskInstance
}
