package repository

import (
	"database/sql"
	"time"

	apperrors "github.com/allisson/courier/internal/errors"
	"github.com/allisson/courier/internal/scheduler/domain"
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTaskInstance(row rowScanner) (*domain.TaskInstance, error) {
	var instance domain.TaskInstance

	err := row.Scan(
		&instance.TaskName,
		&instance.TaskInstance,
		&instance.TaskData,
		&instance.PayloadType,
		&instance.ExecutionTime,
		&instance.Picked,
		&instance.PickedBy,
		&instance.LastHeartbeat,
		&instance.LastSuccess,
		&instance.LastFailure,
		&instance.ConsecutiveFailures,
		&instance.Version,
	)
	if err != nil {
		return nil, err
	}

	return &instance, nil
}

// scanTaskInstances drains and closes rows.
func scanTaskInstances(rows *sql.Rows) ([]*domain.TaskInstance, error) {
	defer func() {
		_ = rows.Close()
	}()

	instances := make([]*domain.TaskInstance, 0)
	for rows.Next() {
		instance, err := scanTaskInstance(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan task instance")
		}
		instances = append(instances, instance)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate task instances")
	}

	return instances, nil
}

func markPicked(instance *domain.TaskInstance, pickedBy string, now time.Time) {
	heartbeat := now
	instance.Picked = true
	instance.PickedBy = &pickedBy
	instance.LastHeartbeat = &heartbeat
	instance.Version++
}

func markReleased(instance *domain.TaskInstance) {
	instance.Picked = false
	instance.PickedBy = nil
	instance.LastHeartbeat = nil
	instance.Version++
}

func requireRowAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to read affected rows")
	}
	if affected == 0 {
		return domain.ErrTaskInstanceNotFound
	}
	return nil
}
