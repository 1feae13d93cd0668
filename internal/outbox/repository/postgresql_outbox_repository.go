// Package repository provides data persistence implementations for outbox work items.
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/allisson/courier/internal/database"
	apperrors "github.com/allisson/courier/internal/errors"
	"github.com/allisson/courier/internal/outbox/domain"
)

// PostgreSQLWorkItemRepository handles outbox work item persistence for PostgreSQL.
// All statements run on the transaction carried by ctx when one is present.
type PostgreSQLWorkItemRepository struct {
	db *sql.DB
}

// NewPostgreSQLWorkItemRepository creates a new PostgreSQLWorkItemRepository
func NewPostgreSQLWorkItemRepository(db *sql.DB) *PostgreSQLWorkItemRepository {
	return &PostgreSQLWorkItemRepository{
		db: db,
	}
}

// Create appends a new work item. A duplicate event id returns domain.ErrWorkItemExists.
func (r *PostgreSQLWorkItemRepository) Create(ctx context.Context, item *domain.WorkItem) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO outbox_items (id, event_id, correlation_id, topic, partition_key, payload_type, payload,
			  created_at, scheduled_at, retry_count, last_error_reason, last_error_cause, last_error_consumer)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := querier.ExecContext(
		ctx,
		query,
		item.ID,
		item.EventID,
		item.CorrelationID,
		item.Topic,
		item.PartitionKey,
		item.PayloadType,
		item.Payload,
		item.CreatedAt,
		item.ScheduledAt,
		item.RetryCount,
		item.LastErrorReason,
		item.LastErrorCause,
		item.LastErrorConsumer,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return domain.ErrWorkItemExists
		}
		return apperrors.Wrap(err, "failed to create work item")
	}

	return nil
}

// LockDueBatch claims up to limit items due at now, oldest scheduled first. Rows already
// locked by another poller are skipped, so concurrent pollers never claim the same item.
// Must run inside a transaction; the locks are held until it ends.
func (r *PostgreSQLWorkItemRepository) LockDueBatch(
	ctx context.Context,
	now time.Time,
	limit int,
) ([]*domain.WorkItem, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT id, event_id, correlation_id, topic, partition_key, payload_type, payload, created_at,
			  scheduled_at, retry_count, last_error_reason, last_error_cause, last_error_consumer
			  FROM outbox_items
			  WHERE scheduled_at <= $1
			  ORDER BY scheduled_at ASC, id ASC
			  LIMIT $2
			  FOR UPDATE SKIP LOCKED`

	rows, err := querier.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to lock due work items")
	}
	defer func() {
		_ = rows.Close()
	}()

	return scanPostgreSQLWorkItems(rows)
}

// Update persists the redelivery state of a work item.
func (r *PostgreSQLWorkItemRepository) Update(ctx context.Context, item *domain.WorkItem) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE outbox_items
			  SET scheduled_at = $1, retry_count = $2, last_error_reason = $3, last_error_cause = $4,
			      last_error_consumer = $5
			  WHERE id = $6`

	result, err := querier.ExecContext(
		ctx,
		query,
		item.ScheduledAt,
		item.RetryCount,
		item.LastErrorReason,
		item.LastErrorCause,
		item.LastErrorConsumer,
		item.ID,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to update work item")
	}

	return requireRowAffected(result)
}

// Delete removes a work item.
func (r *PostgreSQLWorkItemRepository) Delete(ctx context.Context, item *domain.WorkItem) error {
	querier := database.GetTx(ctx, r.db)

	result, err := querier.ExecContext(ctx, `DELETE FROM outbox_items WHERE id = $1`, item.ID)
	if err != nil {
		return apperrors.Wrap(err, "failed to delete work item")
	}

	return requireRowAffected(result)
}

// Stats summarizes the pending items without taking locks.
func (r *PostgreSQLWorkItemRepository) Stats(ctx context.Context, now time.Time) (*domain.Stats, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT COUNT(*),
			  COALESCE(SUM(CASE WHEN scheduled_at <= $1 THEN 1 ELSE 0 END), 0),
			  COALESCE(SUM(CASE WHEN retry_count > 0 THEN 1 ELSE 0 END), 0),
			  MIN(scheduled_at)
			  FROM outbox_items`

	var stats domain.Stats
	var oldest sql.NullTime
	err := querier.QueryRowContext(ctx, query, now).Scan(&stats.Pending, &stats.Due, &stats.Retrying, &oldest)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to compute outbox stats")
	}
	if oldest.Valid {
		stats.OldestScheduledAt = &oldest.Time
	}

	return &stats, nil
}

// ListPending returns pending items ordered by scheduled_at without taking locks. An empty
// topic lists every topic.
func (r *PostgreSQLWorkItemRepository) ListPending(
	ctx context.Context,
	offset, limit int,
	topic string,
) ([]*domain.WorkItem, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT id, event_id, correlation_id, topic, partition_key, payload_type, payload, created_at,
			  scheduled_at, retry_count, last_error_reason, last_error_cause, last_error_consumer
			  FROM outbox_items
			  WHERE ($1 = '' OR topic = $1)
			  ORDER BY scheduled_at ASC, id ASC
			  LIMIT $2 OFFSET $3`

	rows, err := querier.QueryContext(ctx, query, topic, limit, offset)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list work items")
	}
	defer func() {
		_ = rows.Close()
	}()

	return scanPostgreSQLWorkItems(rows)
}

func scanPostgreSQLWorkItems(rows *sql.Rows) ([]*domain.WorkItem, error) {
	items := make([]*domain.WorkItem, 0)
	for rows.Next() {
		var item domain.WorkItem

		err := rows.Scan(
			&item.ID,
			&item.EventID,
			&item.CorrelationID,
			&item.Topic,
			&item.PartitionKey,
			&item.PayloadType,
			&item.Payload,
			&item.CreatedAt,
			&item.ScheduledAt,
			&item.RetryCount,
			&item.LastErrorReason,
			&item.LastErrorCause,
			&item.LastErrorConsumer,
		)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan work item")
		}

		items = append(items, &item)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate work items")
	}

	return items, nil
}

func requireRowAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to read affected rows")
	}
	if affected == 0 {
		return domain.ErrWorkItemNotFound
	}
	return nil
}
