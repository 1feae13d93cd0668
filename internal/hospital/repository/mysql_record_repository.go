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

// MySQLRecordRepository implements hospital record persistence for MySQL.
// UUIDs are stored as BINARY(16).
type MySQLRecordRepository struct {
	db *sql.DB
}

// NewMySQLRecordRepository creates a new MySQL hospital record repository.
func NewMySQLRecordRepository(db *sql.DB) *MySQLRecordRepository {
	return &MySQLRecordRepository{db: db}
}

// Create appends a hospital record, joining the transaction carried by ctx.
func (m *MySQLRecordRepository) Create(ctx context.Context, record *domain.Record) error {
	querier := database.GetTx(ctx, m.db)

	id, err := record.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal hospital record id")
	}
	workItemID, err := record.WorkItemID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal work item id")
	}
	eventID, err := record.EventID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal event id")
	}

	query := `INSERT INTO hospital_records (` + recordColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = querier.ExecContext(
		ctx,
		query,
		id,
		workItemID,
		eventID,
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
func (m *MySQLRecordRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Record, error) {
	querier := database.GetTx(ctx, m.db)

	idBytes, err := id.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal hospital record id")
	}

	query := `SELECT ` + recordColumns + ` FROM hospital_records WHERE id = ?`

	record, err := scanMySQLRecord(querier.QueryRowContext(ctx, query, idBytes))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get hospital record")
	}

	return record, nil
}

// List retrieves hospital records newest first. An empty topic lists every topic.
func (m *MySQLRecordRepository) List(
	ctx context.Context,
	offset, limit int,
	topic string,
) ([]*domain.Record, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + recordColumns + ` FROM hospital_records
			  WHERE (? = '' OR topic = ?)
			  ORDER BY admitted_at DESC, id DESC
			  LIMIT ? OFFSET ?`

	rows, err := querier.QueryContext(ctx, query, topic, topic, limit, offset)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list hospital records")
	}
	defer func() {
		_ = rows.Close()
	}()

	records := make([]*domain.Record, 0)
	for rows.Next() {
		record, err := scanMySQLRecord(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan hospital record")
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate hospital records")
	}

	return records, nil
}

// Count returns the number of hospital records. An empty topic counts every topic.
func (m *MySQLRecordRepository) Count(ctx context.Context, topic string) (int64, error) {
	querier := database.GetTx(ctx, m.db)

	var count int64
	err := querier.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM hospital_records WHERE (? = '' OR topic = ?)`, topic, topic,
	).Scan(&count)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to count hospital records")
	}

	return count, nil
}

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanMySQLRecord(row rowScanner) (*domain.Record, error) {
	var record domain.Record
	var id, workItemID, eventID []byte

	err := row.Scan(
		&id,
		&workItemID,
		&eventID,
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
		return nil, err
	}

	if err := record.ID.UnmarshalBinary(id); err != nil {
		return nil, err
	}
	if err := record.WorkItemID.UnmarshalBinary(workItemID); err != nil {
		return nil, err
	}
	if err := record.EventID.UnmarshalBinary(eventID); err != nil {
		return nil, err
	}

	return &record, nil
}
