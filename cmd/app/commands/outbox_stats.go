package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	outboxUseCase "github.com/allisson/courier/internal/outbox/usecase"
)

// RunOutboxStats prints the outbox backlog: pending items, how many are due, how many have
// been retried and the execution time of the oldest pending item.
func RunOutboxStats(
	ctx context.Context,
	inspector outboxUseCase.Inspector,
	logger *slog.Logger,
	writer io.Writer,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	stats, err := inspector.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to read outbox stats: %w", err)
	}

	logger.Debug("outbox stats loaded", slog.Int64("pending", stats.Pending))

	if format == "json" {
		return writeJSON(writer, map[string]any{
			"pending":             stats.Pending,
			"due":                 stats.Due,
			"retrying":            stats.Retrying,
			"oldest_scheduled_at": stats.OldestScheduledAt,
		})
	}

	_, _ = fmt.Fprintf(writer, "Pending:  %d\n", stats.Pending)
	_, _ = fmt.Fprintf(writer, "Due:      %d\n", stats.Due)
	_, _ = fmt.Fprintf(writer, "Retrying: %d\n", stats.Retrying)
	if stats.OldestScheduledAt != nil {
		_, _ = fmt.Fprintf(writer, "Oldest:   %s\n", stats.OldestScheduledAt.UTC().Format(time.RFC3339))
	} else {
		_, _ = fmt.Fprintln(writer, "Oldest:   -")
	}
	return nil
}
