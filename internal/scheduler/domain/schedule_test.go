package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/allisson/courier/internal/errors"
)

func TestFixedDelay(t *testing.T) {
	schedule, err := FixedDelay(time.Hour)
	require.NoError(t, err)

	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, now.Add(time.Hour), schedule.Next(now))
	assert.Equal(t, "fixed-delay(1h0m0s)", schedule.String())

	_, err = FixedDelay(0)
	assert.ErrorIs(t, err, ErrInvalidSchedule)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestDaily(t *testing.T) {
	saoPaulo, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)

	schedule, err := Daily(saoPaulo, "18:30", "07:00")
	require.NoError(t, err)

	tests := []struct {
		name     string
		now      time.Time
		expected time.Time
	}{
		{
			name:     "before first time of day",
			now:      time.Date(2026, 4, 1, 5, 0, 0, 0, saoPaulo),
			expected: time.Date(2026, 4, 1, 7, 0, 0, 0, saoPaulo),
		},
		{
			name:     "between times",
			now:      time.Date(2026, 4, 1, 7, 0, 0, 0, saoPaulo),
			expected: time.Date(2026, 4, 1, 18, 30, 0, 0, saoPaulo),
		},
		{
			name:     "after last time rolls to tomorrow",
			now:      time.Date(2026, 4, 1, 19, 0, 0, 0, saoPaulo),
			expected: time.Date(2026, 4, 2, 7, 0, 0, 0, saoPaulo),
		},
		{
			name:     "utc input is interpreted in the schedule location",
			now:      time.Date(2026, 4, 1, 22, 0, 0, 0, time.UTC),
			expected: time.Date(2026, 4, 2, 7, 0, 0, 0, saoPaulo),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := schedule.Next(tt.now)
			assert.True(t, tt.expected.Equal(next), "expected %s, got %s", tt.expected, next)
			assert.Equal(t, time.UTC, next.Location())
		})
	}
}

func TestDaily_Invalid(t *testing.T) {
	_, err := Daily(time.UTC)
	assert.ErrorIs(t, err, ErrInvalidSchedule)

	_, err = Daily(time.UTC, "25:00")
	assert.ErrorIs(t, err, ErrInvalidSchedule)

	_, err = Daily(time.UTC, "7:5")
	assert.ErrorIs(t, err, ErrInvalidSchedule)
}

func TestCron(t *testing.T) {
	schedule, err := Cron("0 3 * * *")
	require.NoError(t, err)

	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 4, 2, 3, 0, 0, 0, time.UTC), schedule.Next(now))

	every, err := Cron("@every 15m")
	require.NoError(t, err)
	assert.Equal(t, now.Add(15*time.Minute), every.Next(now))

	_, err = Cron("not a cron")
	assert.ErrorIs(t, err, ErrInvalidSchedule)

	// 30 February never exists.
	_, err = Cron("0 0 30 2 *")
	assert.ErrorIs(t, err, ErrInvalidSchedule)
}

func TestCron_NextIsAlwaysAfterNow(t *testing.T) {
	never, err := cronParser.Parse("0 0 30 2 *")
	require.NoError(t, err)
	schedule := cronSchedule{expr: "0 0 30 2 *", schedule: never}

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.True(t, schedule.Next(now).After(now))
}
