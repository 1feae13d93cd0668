package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/allisson/courier/internal/database"
	apperrors "github.com/allisson/courier/internal/errors"
	"github.com/allisson/courier/internal/outbox/domain"
)

// MySQLWorkItemRepository handles outbox work item persistence for MySQL 8.
// UUIDs are stored as BINARY(16).
type MySQLWorkItemRepository struct {
	db *sql.DB
}

// NewMySQLWorkItemRepository creates a new MySQLWorkItemRepository
func NewMySQLWorkItemRepository(db *sql.DB) *MySQLWorkItemRepository {
	return &MySQLWorkItemRepository{
		db: db,
	}
}

// Create appends a new work item. A duplicate event id returns domain.ErrWorkItemExists.
func (r *MySQLWorkItemRepository) Create(ctx context.Context, item *domain.WorkItem) error {
	querier := database.GetTx(ctx, r.db)

	idBytes, err := item.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal work item id")
	}
	eventIDBytes, err := item.EventID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal event id")
	}

	query := `INSERT INTO outbox_items (id, event_id, correlation_id, topic, partition_key, payload_type, payload,
			  created_at, scheduled_at, retry_count, last_error_reason, last_error_cause, last_error_consumer)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = querier.ExecContext(
		ctx,
		query,
		idBytes,
		eventIDBytes,
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

// LockDueBatch claims up to limit items due at now, oldest scheduled first, skipping rows
// locked by other pollers. Must run inside a transaction.
func (r *MySQLWorkItemRepository) LockDueBatch(
	ctx context.Context,
	now time.Time,
	limit int,
) ([]*domain.WorkItem, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT id, event_id, correlation_id, topic, partition_key, payload_type, payload, created_at,
			  scheduled_at, retry_count, last_error_reason, last_error_cause, last_error_consumer
			  FROM outbox_items
			  WHERE scheduled_at <= ?
			  ORDER BY scheduled_at ASC, id ASC
			  LIMIT ?
			  FOR UPDATE SKIP LOCKED`

	rows, err := querier.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to lock due work items")
	}
	defer func() {
		_ = rows.Close()
	}()

	return scanMySQLWorkItems(rows)
}

// Update persists the redelivery state of a work item.
func (r *MySQLWorkItemRepository) Update(ctx context.Context, item *domain.WorkItem) error {
	querier := database.GetTx(ctx, r.db)

	idBytes, err := item.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal work item id")
	}

	query := `UPDATE outbox_items
			  SET scheduled_at = ?, retry_count = ?, last_error_reason = ?, last_error_cause = ?,
			      last_error_consumer = ?
			  WHERE id = ?`

	result, err := querier.ExecContext(
		ctx,
		query,
		item.ScheduledAt,
		item.RetryCount,
		item.LastErrorReason,
		item.LastErrorCause,
		item.LastErrorConsumer,
		idBytes,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to update work item")
	}

	return requireRowAffected(result)
}

// Delete removes a work item.
func (r *MySQLWorkItemRepository) Delete(ctx context.Context, item *domain.WorkItem) error {
	querier := database.GetTx(ctx, r.db)

	idBytes, err := item.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal work item id")
	}

	result, err := querier.ExecContext(ctx, `DELETE FROM outbox_items WHERE id = ?`, idBytes)
	if err != nil {
		return apperrors.Wrap(err, "failed to delete work item")
	}

	return requireRowAffected(result)
}

// Stats summarizes the pending items without taking locks.
func (r *MySQLWorkItemRepository) Stats(ctx context.Context, now time.Time) (*domain.Stats, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT COUNT(*),
			  COALESCE(SUM(CASE WHEN scheduled_at <= ? THEN 1 ELSE 0 END), 0),
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
func (r *MySQLWorkItemRepository) ListPending(
	ctx context.Context,
	offset, limit int,
	topic string,
) ([]*domain.WorkItem, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT id, event_id, correlation_id, topic, partition_key, payload_type, payload, created_at,
			  scheduled_at, retry_count, last_error_reason, last_error_cause, last_error_consumer
			  FROM outbox_items
			  WHERE (? = '' OR topic = ?)
			  ORDER BY scheduled_at ASC, id ASC
			  LIMIT ? OFFSET ?`

	rows, err := querier.QueryContext(ctx, query, topic, topic, limit, offset)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list work items")
	}
	defer func() {
		_ = rows.Close()
	}()

	return scanMySQLWorkItems(rows)
}

func scanMySQLWorkItems(rows *sql.Rows) ([]*domain.WorkItem, error) {
	items := make([]*domain.WorkItem, 0)
	for rows.Next() {
		var item domain.WorkItem
		var idBytes, eventIDBytes []byte

		err := rows.Scan(
			&idBytes,
			&eventIDBytes,
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

		if err := item.ID.UnmarshalBinary(idBytes); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal work item id")
		}
		if err := item.EventID.UnmarshalBinary(eventIDBytes); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal event id")
		}

		items = append(items, &item)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate work items")
	}

	return items, nil
}
