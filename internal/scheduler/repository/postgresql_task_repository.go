// Package repository provides data persistence implementations for scheduled task instances.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"github.com/allisson/courier/internal/database"
	apperrors "github.com/allisson/courier/internal/errors"
	"github.com/allisson/courier/internal/scheduler/domain"
)

const taskColumns = `task_name, task_instance, task_data, payload_type, execution_time, picked, picked_by,
			  last_heartbeat, last_success, last_failure, consecutive_failures, version`

// PostgreSQLTaskRepository handles scheduled task persistence for PostgreSQL.
// Every mutation of a picked instance is guarded by its version, so a node that lost the
// instance to stale cleanup cannot overwrite the new owner's state.
type PostgreSQLTaskRepository struct {
	db *sql.DB
}

// NewPostgreSQLTaskRepository creates a new PostgreSQLTaskRepository
func NewPostgreSQLTaskRepository(db *sql.DB) *PostgreSQLTaskRepository {
	return &PostgreSQLTaskRepository{
		db: db,
	}
}

// CreateIfNotExists inserts the instance unless a row with the same task name and instance
// id exists. Returns false when the row already existed.
func (r *PostgreSQLTaskRepository) CreateIfNotExists(ctx context.Context, instance *domain.TaskInstance) (bool, error) {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO scheduled_tasks (` + taskColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			  ON CONFLICT (task_name, task_instance) DO NOTHING`

	result, err := querier.ExecContext(
		ctx,
		query,
		instance.TaskName,
		instance.TaskInstance,
		instance.TaskData,
		instance.PayloadType,
		instance.ExecutionTime,
		instance.Picked,
		instance.PickedBy,
		instance.LastHeartbeat,
		instance.LastSuccess,
		instance.LastFailure,
		instance.ConsecutiveFailures,
		instance.Version,
	)
	if err != nil {
		return false, apperrors.Wrap(err, "failed to create task instance")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, apperrors.Wrap(err, "failed to read affected rows")
	}

	return affected == 1, nil
}

// PickDue claims up to limit unpicked instances of the given tasks due at now, earliest
// first, and marks them picked by pickedBy. Rows locked by another node are skipped. Must run
// inside a transaction.
func (r *PostgreSQLTaskRepository) PickDue(
	ctx context.Context,
	now time.Time,
	limit int,
	pickedBy string,
	taskNames []string,
) ([]*domain.TaskInstance, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + taskColumns + `
			  FROM scheduled_tasks
			  WHERE picked = false AND execution_time <= $1 AND task_name = ANY($2)
			  ORDER BY execution_time ASC
			  LIMIT $3
			  FOR UPDATE SKIP LOCKED`

	rows, err := querier.QueryContext(ctx, query, now, pq.Array(taskNames), limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to select due task instances")
	}
	instances, err := scanTaskInstances(rows)
	if err != nil {
		return nil, err
	}

	for _, instance := range instances {
		_, err := querier.ExecContext(
			ctx,
			`UPDATE scheduled_tasks SET picked = true, picked_by = $1, last_heartbeat = $2, version = version + 1
			 WHERE task_name = $3 AND task_instance = $4`,
			pickedBy,
			now,
			instance.TaskName,
			instance.TaskInstance,
		)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to mark task instance picked")
		}
		markPicked(instance, pickedBy, now)
	}

	return instances, nil
}

// Complete deletes a picked instance after its final execution.
func (r *PostgreSQLTaskRepository) Complete(ctx context.Context, instance *domain.TaskInstance) error {
	querier := database.GetTx(ctx, r.db)

	result, err := querier.ExecContext(
		ctx,
		`DELETE FROM scheduled_tasks WHERE task_name = $1 AND task_instance = $2 AND version = $3`,
		instance.TaskName,
		instance.TaskInstance,
		instance.Version,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to complete task instance")
	}

	return requireRowAffected(result)
}

// Reschedule releases a picked instance with its new execution time and failure counters.
func (r *PostgreSQLTaskRepository) Reschedule(ctx context.Context, instance *domain.TaskInstance) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE scheduled_tasks
			  SET execution_time = $1, picked = false, picked_by = NULL, last_heartbeat = NULL,
			      last_success = $2, last_failure = $3, consecutive_failures = $4, version = version + 1
			  WHERE task_name = $5 AND task_instance = $6 AND version = $7`

	result, err := querier.ExecContext(
		ctx,
		query,
		instance.ExecutionTime,
		instance.LastSuccess,
		instance.LastFailure,
		instance.ConsecutiveFailures,
		instance.TaskName,
		instance.TaskInstance,
		instance.Version,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to reschedule task instance")
	}

	if err := requireRowAffected(result); err != nil {
		return err
	}
	markReleased(instance)
	return nil
}

// UpdateHeartbeat refreshes the heartbeat of an instance this node is executing.
func (r *PostgreSQLTaskRepository) UpdateHeartbeat(
	ctx context.Context,
	instance *domain.TaskInstance,
	now time.Time,
) error {
	querier := database.GetTx(ctx, r.db)

	result, err := querier.ExecContext(
		ctx,
		`UPDATE scheduled_tasks SET last_heartbeat = $1
		 WHERE task_name = $2 AND task_instance = $3 AND version = $4 AND picked = true`,
		now,
		instance.TaskName,
		instance.TaskInstance,
		instance.Version,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to update task heartbeat")
	}

	return requireRowAffected(result)
}

// ResetStale unpicks instances whose heartbeat is older than olderThan, making them
// eligible for another node. Returns the number of rows reset.
func (r *PostgreSQLTaskRepository) ResetStale(ctx context.Context, olderThan time.Time) (int64, error) {
	querier := database.GetTx(ctx, r.db)

	result, err := querier.ExecContext(
		ctx,
		`UPDATE scheduled_tasks SET picked = false, picked_by = NULL, last_heartbeat = NULL, version = version + 1
		 WHERE picked = true AND last_heartbeat < $1`,
		olderThan,
	)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to reset stale task instances")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to read affected rows")
	}
	return affected, nil
}

// Get retrieves an instance by task name and instance id.
func (r *PostgreSQLTaskRepository) Get(ctx context.Context, taskName, taskInstance string) (*domain.TaskInstance, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + taskColumns + `
			  FROM scheduled_tasks WHERE task_name = $1 AND task_instance = $2`

	instance, err := scanTaskInstance(querier.QueryRowContext(ctx, query, taskName, taskInstance))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrTaskInstanceNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get task instance")
	}

	return instance, nil
}

// List returns pending instances ordered by execution time. An empty taskName lists every task.
func (r *PostgreSQLTaskRepository) List(
	ctx context.Context,
	offset, limit int,
	taskName string,
) ([]*domain.TaskInstance, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + taskColumns + `
			  FROM scheduled_tasks
			  WHERE ($1 = '' OR task_name = $1)
			  ORDER BY execution_time ASC, task_name ASC, task_instance ASC
			  LIMIT $2 OFFSET $3`

	rows, err := querier.QueryContext(ctx, query, taskName, limit, offset)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list task instances")
	}

	return scanTaskInstances(rows)
}

// Remove deletes an instance regardless of its state.
func (r *PostgreSQLTaskRepository) Remove(ctx context.Context, taskName, taskInstance string) error {
	querier := database.GetTx(ctx, r.db)

	result, err := querier.ExecContext(
		ctx,
		`DELETE FROM scheduled_tasks WHERE task_name = $1 AND task_instance = $2`,
		taskName,
		taskInstance,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to remove task instance")
	}

	return requireRowAffected(result)
}
