package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/allisson/courier/internal/database"
	apperrors "github.com/allisson/courier/internal/errors"
	"github.com/allisson/courier/internal/scheduler/domain"
)

// MySQLTaskRepository handles scheduled task persistence for MySQL 8.
type MySQLTaskRepository struct {
	db *sql.DB
}

// NewMySQLTaskRepository creates a new MySQLTaskRepository
func NewMySQLTaskRepository(db *sql.DB) *MySQLTaskRepository {
	return &MySQLTaskRepository{
		db: db,
	}
}

// CreateIfNotExists inserts the instance unless a row with the same task name and instance
// id exists. Returns false when the row already existed.
func (r *MySQLTaskRepository) CreateIfNotExists(ctx context.Context, instance *domain.TaskInstance) (bool, error) {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT IGNORE INTO scheduled_tasks (` + taskColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

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
// first, and marks them picked by pickedBy. Must run inside a transaction.
func (r *MySQLTaskRepository) PickDue(
	ctx context.Context,
	now time.Time,
	limit int,
	pickedBy string,
	taskNames []string,
) ([]*domain.TaskInstance, error) {
	if len(taskNames) == 0 {
		return []*domain.TaskInstance{}, nil
	}

	querier := database.GetTx(ctx, r.db)

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(taskNames)), ", ")
	query := `SELECT ` + taskColumns + `
			  FROM scheduled_tasks
			  WHERE picked = FALSE AND execution_time <= ? AND task_name IN (` + placeholders + `)
			  ORDER BY execution_time ASC
			  LIMIT ?
			  FOR UPDATE SKIP LOCKED`

	args := make([]any, 0, len(taskNames)+2)
	args = append(args, now)
	for _, name := range taskNames {
		args = append(args, name)
	}
	args = append(args, limit)

	rows, err := querier.QueryContext(ctx, query, args...)
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
			`UPDATE scheduled_tasks SET picked = TRUE, picked_by = ?, last_heartbeat = ?, version = version + 1
			 WHERE task_name = ? AND task_instance = ?`,
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
func (r *MySQLTaskRepository) Complete(ctx context.Context, instance *domain.TaskInstance) error {
	querier := database.GetTx(ctx, r.db)

	result, err := querier.ExecContext(
		ctx,
		`DELETE FROM scheduled_tasks WHERE task_name = ? AND task_instance = ? AND version = ?`,
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
func (r *MySQLTaskRepository) Reschedule(ctx context.Context, instance *domain.TaskInstance) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE scheduled_tasks
			  SET execution_time = ?, picked = FALSE, picked_by = NULL, last_heartbeat = NULL,
			      last_success = ?, last_failure = ?, consecutive_failures = ?, version = version + 1
			  WHERE task_name = ? AND task_instance = ? AND version = ?`

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
func (r *MySQLTaskRepository) UpdateHeartbeat(ctx context.Context, instance *domain.TaskInstance, now time.Time) error {
	querier := database.GetTx(ctx, r.db)

	result, err := querier.ExecContext(
		ctx,
		`UPDATE scheduled_tasks SET last_heartbeat = ?
		 WHERE task_name = ? AND task_instance = ? AND version = ? AND picked = TRUE`,
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

// ResetStale unpicks instances whose heartbeat is older than olderThan.
func (r *MySQLTaskRepository) ResetStale(ctx context.Context, olderThan time.Time) (int64, error) {
	querier := database.GetTx(ctx, r.db)

	result, err := querier.ExecContext(
		ctx,
		`UPDATE scheduled_tasks SET picked = FALSE, picked_by = NULL, last_heartbeat = NULL, version = version + 1
		 WHERE picked = TRUE AND last_heartbeat < ?`,
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
func (r *MySQLTaskRepository) Get(ctx context.Context, taskName, taskInstance string) (*domain.TaskInstance, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + taskColumns + `
			  FROM scheduled_tasks WHERE task_name = ? AND task_instance = ?`

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
func (r *MySQLTaskRepository) List(
	ctx context.Context,
	offset, limit int,
	taskName string,
) ([]*domain.TaskInstance, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + taskColumns + `
			  FROM scheduled_tasks
			  WHERE (? = '' OR task_name = ?)
			  ORDER BY execution_time ASC, task_name ASC, task_instance ASC
			  LIMIT ? OFFSET ?`

	rows, err := querier.QueryContext(ctx, query, taskName, taskName, limit, offset)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list task instances")
	}

	return scanTaskInstances(rows)
}

// Remove deletes an instance regardless of its state.
func (r *MySQLTaskRepository) Remove(ctx context.Context, taskName, taskInstance string) error {
	querier := database.GetTx(ctx, r.db)

	result, err := querier.ExecContext(
		ctx,
		`DELETE FROM scheduled_tasks WHERE task_name = ? AND task_instance = ?`,
		taskName,
		taskInstance,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to remove task instance")
	}

	return requireRowAffected(result)
}
