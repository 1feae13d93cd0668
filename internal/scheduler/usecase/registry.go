package usecase

import (
	"reflect"
	"sort"

	validation "github.com/jellydator/validation"

	apperrors "github.com/allisson/courier/internal/errors"
	"github.com/allisson/courier/internal/scheduler/domain"
	customValidation "github.com/allisson/courier/internal/validation"
)

// TaskOption customizes a task registration.
type TaskOption func(*taskOptions)

type taskOptions struct {
	failureHandler domain.FailureHandler
}

// WithFailureHandler overrides the failure handler of a task.
func WithFailureHandler(handler domain.FailureHandler) TaskOption {
	return func(o *taskOptions) { o.failureHandler = handler }
}

// task is a registered definition. Exactly one of body and handler is set.
type task struct {
	name           string
	schedule       domain.Schedule
	body           TaskFunc
	handler        JobHandler
	payloadType    string
	prototype      reflect.Type
	failureHandler domain.FailureHandler
}

func (t *task) recurring() bool {
	return t.schedule != nil
}

func validateTaskName(name string) error {
	err := validation.Validate(name, validation.Required, validation.Length(1, 255), customValidation.Identifier)
	if err != nil {
		return customValidation.WrapValidationError(apperrors.Wrapf(err, "task name %q", name))
	}
	return nil
}

// RegisterRecurring registers a recurring task. Must be called before Start. The default
// failure handler skips to the next regular firing.
func (s *Scheduler) RegisterRecurring(
	name string,
	schedule domain.Schedule,
	body TaskFunc,
	opts ...TaskOption,
) error {
	if err := validateTaskName(name); err != nil {
		return err
	}
	if schedule == nil || body == nil {
		return apperrors.Wrapf(apperrors.ErrInvalidInput, "recurring task %s needs a schedule and a body", name)
	}

	options := taskOptions{failureHandler: domain.RescheduleOnSchedule(schedule)}
	for _, opt := range opts {
		opt(&options)
	}

	return s.register(&task{
		name:           name,
		schedule:       schedule,
		body:           body,
		failureHandler: options.failureHandler,
	})
}

// RegisterOneTime registers a one-shot task whose payloads have the type of prototype. A nil
// prototype declares a task without payload. Must be called before Start. The default failure
// handler retries with exponential backoff up to the configured failure limit.
func (s *Scheduler) RegisterOneTime(name string, prototype any, handler JobHandler, opts ...TaskOption) error {
	if err := validateTaskName(name); err != nil {
		return err
	}
	if handler == nil {
		return apperrors.Wrapf(apperrors.ErrInvalidInput, "one-shot task %s needs a handler", name)
	}

	t := &task{name: name, handler: handler}
	if prototype != nil {
		payloadType, err := s.serializer.Register(prototype)
		if err != nil {
			return err
		}
		t.payloadType = payloadType
		t.prototype = reflect.TypeOf(prototype)
	}

	options := taskOptions{
		failureHandler: domain.MaxRetries(
			s.config.MaxFailures,
			domain.ExponentialBackoff(s.config.RetryBase, 2),
		),
	}
	for _, opt := range opts {
		opt(&options)
	}
	t.failureHandler = options.failureHandler

	return s.register(t)
}

func (s *Scheduler) register(t *task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return domain.ErrSchedulerStarted
	}
	if _, ok := s.tasks[t.name]; ok {
		return apperrors.Wrapf(domain.ErrTaskAlreadyRegistered, "%s", t.name)
	}
	s.tasks[t.name] = t
	return nil
}

func (s *Scheduler) lookup(name string) (*task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[name]
	return t, ok
}

// TaskNames returns the registered task names, sorted.
func (s *Scheduler) TaskNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.tasks))
	for name := range s.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
