package usecase

import (
	"context"
	"log/slog"
	"reflect"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/allisson/courier/internal/errors"
	"github.com/allisson/courier/internal/scheduler/domain"
	"github.com/allisson/courier/internal/serializer"
)

// AddJob enqueues a one-shot job due now and returns its generated instance id. It joins the
// transaction carried by ctx, if any.
func (s *Scheduler) AddJob(ctx context.Context, taskName string, payload any) (string, error) {
	instanceID := uuid.Must(uuid.NewV7()).String()
	if err := s.AddJobWithID(ctx, taskName, instanceID, payload, s.now()); err != nil {
		return "", err
	}
	return instanceID, nil
}

// AddJobWithID enqueues a one-shot job under instanceID, due at. An instance with the same id
// that is still pending is left untouched and domain.ErrTaskInstanceExists is returned, so a
// retried enqueue never produces a second execution while the first is outstanding.
// Deduplication lasts only as long as the row: a completed instance's row is deleted, and
// enqueueing the same id afterwards schedules and executes the job again.
func (s *Scheduler) AddJobWithID(
	ctx context.Context,
	taskName, instanceID string,
	payload any,
	at time.Time,
) error {
	t, ok := s.lookup(taskName)
	if !ok || t.recurring() {
		return apperrors.Wrapf(domain.ErrTaskNotRegistered, "%s", taskName)
	}

	instance := &domain.TaskInstance{
		TaskName:      taskName,
		TaskInstance:  instanceID,
		ExecutionTime: at.UTC(),
	}
	if err := instance.Validate(); err != nil {
		return err
	}

	if err := s.encodePayload(ctx, t, payload, instance); err != nil {
		return err
	}

	created, err := s.repo.CreateIfNotExists(ctx, instance)
	if err != nil {
		return err
	}
	if !created {
		return apperrors.Wrapf(domain.ErrTaskInstanceExists, "%s", instance.Key())
	}

	s.metrics.RecordOperation(ctx, "scheduler", "job_enqueue", "success")
	if s.logger != nil {
		s.logger.DebugContext(ctx, "job enqueued",
			slog.String("task_name", taskName),
			slog.String("task_instance", instanceID),
			slog.Time("execution_time", instance.ExecutionTime),
		)
	}
	return nil
}

func (s *Scheduler) encodePayload(ctx context.Context, t *task, payload any, instance *domain.TaskInstance) error {
	if t.payloadType == "" {
		if payload != nil {
			return apperrors.Wrapf(domain.ErrPayloadTypeMismatch, "%s takes no payload", t.name)
		}
		return nil
	}
	if payload == nil || reflect.TypeOf(payload) != t.prototype {
		return apperrors.Wrapf(domain.ErrPayloadTypeMismatch, "%s expects %s, got %T", t.name, t.payloadType, payload)
	}

	payloadType, data, err := s.serializer.Marshal(ctx, payload)
	if err != nil {
		return err
	}
	instance.PayloadType = payloadType
	instance.TaskData = data
	return nil
}

// PayloadFromJSON decodes raw into a value of the payload type registered for taskName.
// Tasks without payload accept an empty document or null.
func (s *Scheduler) PayloadFromJSON(taskName string, raw []byte) (any, error) {
	t, ok := s.lookup(taskName)
	if !ok || t.recurring() {
		return nil, apperrors.Wrapf(domain.ErrTaskNotRegistered, "%s", taskName)
	}

	if t.prototype == nil {
		if len(raw) == 0 || string(raw) == "null" {
			return nil, nil
		}
		return nil, apperrors.Wrapf(domain.ErrPayloadTypeMismatch, "%s takes no payload", taskName)
	}

	codec := serializer.JSONCodec()
	if t.prototype.Kind() == reflect.Pointer {
		target := reflect.New(t.prototype.Elem())
		if err := codec.Unmarshal(raw, target.Interface()); err != nil {
			return nil, apperrors.Wrapf(apperrors.ErrInvalidInput, "invalid payload for %s: %v", taskName, err)
		}
		return target.Interface(), nil
	}

	target := reflect.New(t.prototype)
	if err := codec.Unmarshal(raw, target.Interface()); err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidInput, "invalid payload for %s: %v", taskName, err)
	}
	return target.Elem().Interface(), nil
}

// Cancel removes a pending instance. A running instance finishes but its completion is
// discarded.
func (s *Scheduler) Cancel(ctx context.Context, taskName, instanceID string) error {
	return s.repo.Remove(ctx, taskName, instanceID)
}

// Get retrieves a pending instance.
func (s *Scheduler) Get(ctx context.Context, taskName, instanceID string) (*domain.TaskInstance, error) {
	return s.repo.Get(ctx, taskName, instanceID)
}

// List lists pending instances by execution time.
func (s *Scheduler) List(ctx context.Context, offset, limit int, taskName string) ([]*domain.TaskInstance, error) {
	return s.repo.List(ctx, offset, limit, taskName)
}
