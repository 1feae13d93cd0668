package commands

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	outboxDomain "github.com/allisson/courier/internal/outbox/domain"
)

func TestRunOutboxStats(t *testing.T) {
	ctx := context.Background()
	logger := slog.Default()
	oldest := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	t.Run("text-output", func(t *testing.T) {
		inspector := &mockInspector{}
		inspector.On("Stats", ctx).
			Return(&outboxDomain.Stats{Pending: 12, Due: 5, Retrying: 2, OldestScheduledAt: &oldest}, nil)

		var out bytes.Buffer
		err := RunOutboxStats(ctx, inspector, logger, &out, "text")

		require.NoError(t, err)
		require.Contains(t, out.String(), "Pending:  12")
		require.Contains(t, out.String(), "Retrying: 2")
		require.Contains(t, out.String(), "2026-03-02T09:00:00Z")
		inspector.AssertExpectations(t)
	})

	t.Run("json-output-empty-backlog", func(t *testing.T) {
		inspector := &mockInspector{}
		inspector.On("Stats", ctx).Return(&outboxDomain.Stats{}, nil)

		var out bytes.Buffer
		err := RunOutboxStats(ctx, inspector, logger, &out, "json")

		require.NoError(t, err)
		require.Contains(t, out.String(), `"pending": 0`)
		require.Contains(t, out.String(), `"oldest_scheduled_at": null`)
	})

	t.Run("stats-error", func(t *testing.T) {
		inspector := &mockInspector{}
		inspector.On("Stats", ctx).Return(nil, errors.New("connection refused"))

		err := RunOutboxStats(ctx, inspector, logger, &bytes.Buffer{}, "text")

		require.Error(t, err)
		require.Contains(t, err.Error(), "failed to read outbox stats")
	})

	t.Run("invalid-format", func(t *testing.T) {
		err := RunOutboxStats(ctx, &mockInspector{}, logger, &bytes.Buffer{}, "yaml")

		require.Error(t, err)
		require.Contains(t, err.Error(), "invalid format")
	})
}
