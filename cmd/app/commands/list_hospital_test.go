package commands

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	hospitalDomain "github.com/allisson/courier/internal/hospital/domain"
)

func TestRunListHospital(t *testing.T) {
	ctx := context.Background()
	logger := slog.Default()
	record := &hospitalDomain.Record{
		ID:          uuid.Must(uuid.NewV7()),
		WorkItemID:  uuid.Must(uuid.NewV7()),
		EventID:     uuid.Must(uuid.NewV7()),
		Topic:       "PAYMENT_CAPTURED",
		PayloadType: "payments.Captured",
		RetryCount:  3,
		Consumer:    "ledger",
		Reason:      "max retries exceeded",
		Cause:       "ledger unavailable",
		AdmittedAt:  time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}

	t.Run("text-output", func(t *testing.T) {
		useCase := &mockHospitalUseCase{}
		useCase.On("List", ctx, 0, 50, "PAYMENT_CAPTURED").Return([]*hospitalDomain.Record{record}, nil)
		useCase.On("Count", ctx, "PAYMENT_CAPTURED").Return(int64(1), nil)

		var out bytes.Buffer
		err := RunListHospital(ctx, useCase, logger, &out, "PAYMENT_CAPTURED", 0, 50, "text")

		require.NoError(t, err)
		require.Contains(t, out.String(), record.ID.String())
		require.Contains(t, out.String(), "max retries exceeded")
		require.Contains(t, out.String(), "Showing 1 of 1 record(s)")
		useCase.AssertExpectations(t)
	})

	t.Run("json-output", func(t *testing.T) {
		useCase := &mockHospitalUseCase{}
		useCase.On("List", ctx, 10, 5, "").Return([]*hospitalDomain.Record{record}, nil)
		useCase.On("Count", ctx, "").Return(int64(11), nil)

		var out bytes.Buffer
		err := RunListHospital(ctx, useCase, logger, &out, "", 10, 5, "json")

		require.NoError(t, err)
		require.Contains(t, out.String(), `"total": 11`)
		require.Contains(t, out.String(), `"consumer": "ledger"`)
		require.NotContains(t, out.String(), "partition_key")
	})

	t.Run("empty", func(t *testing.T) {
		useCase := &mockHospitalUseCase{}
		useCase.On("List", ctx, 0, 50, "").Return([]*hospitalDomain.Record{}, nil)
		useCase.On("Count", ctx, "").Return(int64(0), nil)

		var out bytes.Buffer
		err := RunListHospital(ctx, useCase, logger, &out, "", 0, 50, "text")

		require.NoError(t, err)
		require.Contains(t, out.String(), "No hospital records found")
	})

	t.Run("invalid-limit", func(t *testing.T) {
		err := RunListHospital(ctx, &mockHospitalUseCase{}, logger, &bytes.Buffer{}, "", 0, 0, "text")

		require.Error(t, err)
		require.Contains(t, err.Error(), "limit must be between 1 and 1000")
	})

	t.Run("invalid-offset", func(t *testing.T) {
		err := RunListHospital(ctx, &mockHospitalUseCase{}, logger, &bytes.Buffer{}, "", -1, 10, "text")

		require.Error(t, err)
		require.Contains(t, err.Error(), "offset must not be negative")
	})
}
