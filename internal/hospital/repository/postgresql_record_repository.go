// Package repository provides data persistence implementations for hospital records.
// The hospital table is append-only: no UPDATE or DELETE statement exists for it.
package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/allisson/courier/internal/database"
	apperrors "github.com/allisson/courier/internal/errors"
	"github.com/allisson/courier/internal/hospital/domain"
)

const recordColumns = `id, work_item_id, event_id, correlation_id, topic, partition_key, payload_type, payload,
			  item_created_at, retry_count, consumer, reason, cause, admitted_at`

// PostgreSQLRecordRepository implements hospital record persistence for PostgreSQL.
type PostgreSQLRecordRepository struct {
	db *sql.DB
}

// NewPostgreSQLRecordRepository creates a new PostgreSQL hospital record repository.
func NewPostgreSQLRecordRepository(db *sql.DB) *PostgreSQLRecordRepository {
	return &PostgreSQLRecordRepository{db: db}
}

// Create appends a hospital record, joining the transaction carried by ctx.
func (p *PostgreSQLRecordRepository) Create(ctx context.Context, record *domain.Record) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO hospital_records (` + recordColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := querier.ExecContext(
		ctx,
		query,
		record.ID,
		record.WorkItemID,
		record.EventID,
		record.CorrelationID,
		record.Topic,
		record.PartitionKey,
		record.PayloadType,
		record.Payload,
		record.ItemCreatedAt,
		record.RetryCount,
		record.Consumer,
		record.Reason,
		record.Cause,
		record.AdmittedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create hospital record")
	}

	return nil
}

// Get retrieves a hospital record by id. Returns domain.ErrRecordNotFound if absent.
func (p *PostgreSQLRecordRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Record, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + recordColumns + ` FROM hospital_records WHERE id = $1`

	var record domain.Record
	err := querier.QueryRowContext(ctx, query, id).Scan(
		&record.ID,
		&record.WorkItemID,
		&record.EventID,
		&record.CorrelationID,
		&record.Topic,
		&record.PartitionKey,
		&record.PayloadType,
		&record.Payload,
		&record.ItemCreatedAt,
		&record.RetryCount,
		&record.Consumer,
		&record.Reason,
		&record.Cause,
		&record.AdmittedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get hospital record")
	}

	return &record, nil
}

// List retrieves hospital records newest first. An empty topic lists every topic.
func (p *PostgreSQLRecordRepository) List(
	ctx context.Context,
	offset, limit int,
	topic string,
) ([]*domain.Record, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + recordColumns + ` FROM hospital_records
			  WHERE ($1 = '' OR topic = $1)
			  ORDER BY admitted_at DESC, id DESC
			  LIMIT $2 OFFSET $3`

	rows, err := querier.QueryContext(ctx, query, topic, limit, offset)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list hospital records")
	}
	defer func() {
		_ = rows.Close()
	}()

	records := make([]*domain.Record, 0)
	for rows.Next() {
		var record domain.Record

		err := rows.Scan(
			&record.ID,
			&record.WorkItemID,
			&record.EventID,
			&record.CorrelationID,
			&record.Topic,
			&record.PartitionKey,
			&record.PayloadType,
			&record.Payload,
			&record.ItemCreatedAt,
			&record.RetryCount,
			&record.Consumer,
			&record.Reason,
			&record.Cause,
			&record.AdmittedAt,
		)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan hospital record")
		}

		records = append(records, &record)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate hospital records")
	}

	return records, nil
}

// Count returns the number of hospital records. An empty topic counts every topic.
func (p *PostgreSQLRecordRepository) Count(ctx context.Context, topic string) (int64, error) {
	querier := database.GetTx(ctx, p.db)

	var count int64
	err := querier.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM hospital_records WHERE ($1 = '' OR topic = $1)`, topic,
	).Scan(&count)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to count hospital records")
	}

	return count, nil
}
