package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"
	"time"

	hospitalDomain "github.com/allisson/courier/internal/hospital/domain"
	hospitalUseCase "github.com/allisson/courier/internal/hospital/usecase"
)

type hospitalRecordOutput struct {
	ID            string    `json:"id"`
	WorkItemID    string    `json:"work_item_id"`
	EventID       string    `json:"event_id"`
	CorrelationID string    `json:"correlation_id"`
	Topic         string    `json:"topic"`
	PartitionKey  *string   `json:"partition_key,omitempty"`
	PayloadType   string    `json:"payload_type"`
	RetryCount    int       `json:"retry_count"`
	Consumer      string    `json:"consumer"`
	Reason        string    `json:"reason"`
	Cause         string    `json:"cause"`
	AdmittedAt    time.Time `json:"admitted_at"`
}

// RunListHospital lists hospital records newest first, optionally filtered by topic.
func RunListHospital(
	ctx context.Context,
	hospitalUseCase hospitalUseCase.HospitalUseCase,
	logger *slog.Logger,
	writer io.Writer,
	topic string,
	offset, limit int,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}
	if offset < 0 {
		return fmt.Errorf("offset must not be negative, got: %d", offset)
	}
	if limit < 1 || limit > 1000 {
		return fmt.Errorf("limit must be between 1 and 1000, got: %d", limit)
	}

	records, err := hospitalUseCase.List(ctx, offset, limit, topic)
	if err != nil {
		return fmt.Errorf("failed to list hospital records: %w", err)
	}
	total, err := hospitalUseCase.Count(ctx, topic)
	if err != nil {
		return fmt.Errorf("failed to count hospital records: %w", err)
	}

	logger.Debug("hospital records loaded",
		slog.String("topic", topic),
		slog.Int("count", len(records)),
		slog.Int64("total", total),
	)

	if format == "json" {
		data := make([]hospitalRecordOutput, 0, len(records))
		for _, record := range records {
			data = append(data, toHospitalRecordOutput(record))
		}
		return writeJSON(writer, map[string]any{
			"data":  data,
			"total": total,
		})
	}

	if len(records) == 0 {
		_, _ = fmt.Fprintln(writer, "No hospital records found")
		return nil
	}

	tw := tabwriter.NewWriter(writer, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tTOPIC\tCONSUMER\tREASON\tRETRIES\tADMITTED AT")
	for _, record := range records {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			record.ID,
			record.Topic,
			record.Consumer,
			record.Reason,
			record.RetryCount,
			record.AdmittedAt.UTC().Format(time.RFC3339),
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(writer, "\nShowing %d of %d record(s)\n", len(records), total)
	return nil
}

func toHospitalRecordOutput(record *hospitalDomain.Record) hospitalRecordOutput {
	return hospitalRecordOutput{
		ID:            record.ID.String(),
		WorkItemID:    record.WorkItemID.String(),
		EventID:       record.EventID.String(),
		CorrelationID: record.CorrelationID,
		Topic:         record.Topic,
		PartitionKey:  record.PartitionKey,
		PayloadType:   record.PayloadType,
		RetryCount:    record.RetryCount,
		Consumer:      record.Consumer,
		Reason:        record.Reason,
		Cause:         record.Cause,
		AdmittedAt:    record.AdmittedAt,
	}
}
