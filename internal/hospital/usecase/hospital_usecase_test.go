package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/allisson/courier/internal/correlation"
	"github.com/allisson/courier/internal/database"
	"github.com/allisson/courier/internal/hospital/domain"
	outboxDomain "github.com/allisson/courier/internal/outbox/domain"
	"github.com/allisson/courier/internal/serializer"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newWorkItem(topic string) *outboxDomain.WorkItem {
	key := "u1"
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	return &outboxDomain.WorkItem{
		ID:            uuid.Must(uuid.NewV7()),
		EventID:       uuid.Must(uuid.NewV7()),
		CorrelationID: "corr-1",
		Topic:         topic,
		PartitionKey:  &key,
		PayloadType:   "events.UserCreated",
		Payload:       []byte(`{"id":"u1"}`),
		CreatedAt:     now,
		ScheduledAt:   now,
		RetryCount:    3,
	}
}

func TestHospitalUseCase_Admit(t *testing.T) {
	ctx := context.Background()
	item := newWorkItem("USER")

	repo := &MockRecordRepository{}
	alerter := &MockAlerter{}
	repo.On("Create", ctx, mock.MatchedBy(func(r *domain.Record) bool {
		return r.WorkItemID == item.ID && r.Consumer == "user-service" && r.Reason == "timeout" &&
			r.Cause == "gateway timeout" && r.RetryCount == 3
	})).Return(nil).Once()
	alerter.On("Alert", ctx, mock.AnythingOfType("*domain.Record")).Once()

	uc := NewHospitalUseCase(Config{DeadLetterTopic: "DEAD_LETTER"}, repo, nil, alerter, discardLogger())

	err := uc.Admit(ctx, item, "user-service", "timeout", "gateway timeout")

	require.NoError(t, err)
	repo.AssertExpectations(t)
	alerter.AssertExpectations(t)
}

func TestHospitalUseCase_Admit_AlertWaitsForCommit(t *testing.T) {
	db, sqlMock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	sqlMock.ExpectBegin()
	sqlMock.ExpectCommit()

	item := newWorkItem("USER")
	repo := &MockRecordRepository{}
	alerter := &MockAlerter{}
	repo.On("Create", mock.Anything, mock.AnythingOfType("*domain.Record")).Return(nil).Once()
	alerter.On("Alert", mock.Anything, mock.AnythingOfType("*domain.Record")).Once()

	uc := NewHospitalUseCase(Config{}, repo, nil, alerter, discardLogger())

	err = database.NewTxManager(db).WithTx(context.Background(), func(ctx context.Context) error {
		if err := uc.Admit(ctx, item, "user-service", "timeout", "gateway timeout"); err != nil {
			return err
		}
		alerter.AssertNotCalled(t, "Alert", mock.Anything, mock.Anything)
		return nil
	})

	require.NoError(t, err)
	alerter.AssertExpectations(t)
	assert.NoError(t, sqlMock.ExpectationsWereMet())
}

func TestHospitalUseCase_Admit_NoAlertWhenTransactionRollsBack(t *testing.T) {
	db, sqlMock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	sqlMock.ExpectBegin()
	sqlMock.ExpectRollback()

	item := newWorkItem("USER")
	repo := &MockRecordRepository{}
	alerter := &MockAlerter{}
	repo.On("Create", mock.Anything, mock.AnythingOfType("*domain.Record")).Return(nil).Once()

	uc := NewHospitalUseCase(Config{}, repo, nil, alerter, discardLogger())

	err = database.NewTxManager(db).WithTx(context.Background(), func(ctx context.Context) error {
		if err := uc.Admit(ctx, item, "user-service", "timeout", "gateway timeout"); err != nil {
			return err
		}
		return errors.New("later update failed")
	})

	require.Error(t, err)
	alerter.AssertNotCalled(t, "Alert", mock.Anything, mock.Anything)
	assert.NoError(t, sqlMock.ExpectationsWereMet())
}

func TestHospitalUseCase_Admit_PublishesDeadLetter(t *testing.T) {
	ctx := context.Background()
	item := newWorkItem("USER")

	repo := &MockRecordRepository{}
	publisher := &MockPublisher{}
	repo.On("Create", ctx, mock.AnythingOfType("*domain.Record")).Return(nil).Once()
	publisher.On("Append",
		mock.MatchedBy(func(ctx context.Context) bool {
			id, ok := correlation.CorrelationID(ctx)
			return ok && id == "corr-1"
		}),
		"DEAD_LETTER",
		item.PartitionKey,
		mock.MatchedBy(func(d domain.DeadLetter) bool {
			return d.WorkItemID == item.ID && d.Topic == "USER" && d.Consumer == "user-service"
		}),
	).Return(&outboxDomain.WorkItem{}, nil).Once()

	uc := NewHospitalUseCase(
		Config{PublishEnabled: true, DeadLetterTopic: "DEAD_LETTER"},
		repo,
		publisher,
		nil,
		discardLogger(),
	)

	require.NoError(t, uc.Admit(ctx, item, "user-service", "timeout", "gateway timeout"))
	repo.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestHospitalUseCase_Admit_DeadLetterTopicIsNotRepublished(t *testing.T) {
	ctx := context.Background()
	item := newWorkItem("DEAD_LETTER")

	repo := &MockRecordRepository{}
	publisher := &MockPublisher{}
	repo.On("Create", ctx, mock.AnythingOfType("*domain.Record")).Return(nil).Once()

	uc := NewHospitalUseCase(
		Config{PublishEnabled: true, DeadLetterTopic: "DEAD_LETTER"},
		repo,
		publisher,
		nil,
		discardLogger(),
	)

	require.NoError(t, uc.Admit(ctx, item, "audit-service", "timeout", "db down"))
	publisher.AssertNotCalled(t, "Append", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHospitalUseCase_Admit_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("repository error", func(t *testing.T) {
		repo := &MockRecordRepository{}
		alerter := &MockAlerter{}
		repo.On("Create", ctx, mock.Anything).Return(errors.New("insert failed")).Once()

		uc := NewHospitalUseCase(Config{}, repo, nil, alerter, discardLogger())

		err := uc.Admit(ctx, newWorkItem("USER"), "user-service", "timeout", "gateway timeout")

		assert.EqualError(t, err, "insert failed")
		alerter.AssertNotCalled(t, "Alert", mock.Anything, mock.Anything)
	})

	t.Run("publish error", func(t *testing.T) {
		repo := &MockRecordRepository{}
		publisher := &MockPublisher{}
		repo.On("Create", ctx, mock.Anything).Return(nil).Once()
		publisher.On("Append", mock.Anything, "DEAD_LETTER", mock.Anything, mock.Anything).
			Return(nil, errors.New("outbox unavailable")).Once()

		uc := NewHospitalUseCase(
			Config{PublishEnabled: true, DeadLetterTopic: "DEAD_LETTER"},
			repo,
			publisher,
			nil,
			discardLogger(),
		)

		err := uc.Admit(ctx, newWorkItem("USER"), "user-service", "timeout", "gateway timeout")

		assert.ErrorContains(t, err, "failed to publish dead letter")
	})
}

func TestHospitalUseCase_Reads(t *testing.T) {
	ctx := context.Background()
	record := &domain.Record{ID: uuid.Must(uuid.NewV7()), Topic: "USER"}

	repo := &MockRecordRepository{}
	repo.On("Get", ctx, record.ID).Return(record, nil).Once()
	repo.On("List", ctx, 0, 50, "USER").Return([]*domain.Record{record}, nil).Once()
	repo.On("Count", ctx, "USER").Return(int64(1), nil).Once()

	uc := NewHospitalUseCase(Config{}, repo, nil, nil, nil)

	got, err := uc.Get(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, record, got)

	records, err := uc.List(ctx, 0, 50, "USER")
	require.NoError(t, err)
	assert.Len(t, records, 1)

	count, err := uc.Count(ctx, "USER")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	repo.AssertExpectations(t)
}

func TestGroupConsumer(t *testing.T) {
	ctx := context.Background()
	s := serializer.New(serializer.JSONCodec())
	require.NoError(t, RegisterDeadLetterType(s))

	source := domain.NewRecord(newWorkItem("USER"), "user-service", "timeout", "gateway timeout", time.Now().UTC())
	tag, payload, err := s.Marshal(ctx, source.ToDeadLetter())
	require.NoError(t, err)
	assert.Equal(t, domain.DeadLetterTypeName, tag)

	repo := &MockRecordRepository{}
	repo.On("Create", ctx, mock.MatchedBy(func(r *domain.Record) bool {
		return r.Consumer == "audit-service" && r.EventID == source.EventID && r.Reason == "timeout" &&
			r.ID != source.ID
	})).Return(nil).Once()

	handler := NewGroupConsumer("audit-service", repo, s, discardLogger())

	err = handler(ctx, payload, outboxDomain.Metadata{Topic: "DEAD_LETTER", PayloadType: tag})

	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestGroupConsumer_UndecodablePayloadIsPermanent(t *testing.T) {
	s := serializer.New(serializer.JSONCodec())
	require.NoError(t, RegisterDeadLetterType(s))
	repo := &MockRecordRepository{}

	handler := NewGroupConsumer("audit-service", repo, s, nil)

	err := handler(context.Background(), []byte(`{}`), outboxDomain.Metadata{PayloadType: "unknown"})
	assert.Error(t, err)

	err = handler(context.Background(), []byte(`not-json`), outboxDomain.Metadata{PayloadType: domain.DeadLetterTypeName})
	assert.Error(t, err)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestSentryAlerter(t *testing.T) {
	var mu sync.Mutex
	var events []*sentry.Event

	alerter, err := NewSentryAlerter(sentry.ClientOptions{
		Dsn: "https://public@sentry.example.com/1",
		BeforeSend: func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
			mu.Lock()
			defer mu.Unlock()
			events = append(events, event)
			return nil
		},
	})
	require.NoError(t, err)

	record := domain.NewRecord(newWorkItem("USER"), "user-service", "timeout", "gateway timeout", time.Now().UTC())
	alerter.Alert(context.Background(), record)
	require.NoError(t, alerter.Close())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 1)
	assert.Equal(t, sentry.LevelWarning, events[0].Level)
	assert.Equal(t, "USER", events[0].Tags["topic"])
	assert.Equal(t, "user-service", events[0].Tags["consumer"])
	assert.Equal(t, "timeout", events[0].Tags["reason"])
	assert.Contains(t, events[0].Message, "hospitalized")
}

func TestNewSentryAlerter_InvalidDSN(t *testing.T) {
	_, err := NewSentryAlerter(sentry.ClientOptions{Dsn: "not a dsn"})
	assert.Error(t, err)
}

func TestHospitalUseCaseWithMetrics(t *testing.T) {
	ctx := context.Background()
	item := newWorkItem("USER")

	repo := &MockRecordRepository{}
	m := &MockBusinessMetrics{}
	repo.On("Create", ctx, mock.Anything).Return(nil).Once()
	repo.On("Count", ctx, "").Return(int64(0), errors.New("db down")).Once()
	m.On("RecordOperation", ctx, "hospital", "admit", "success").Once()
	m.On("RecordDuration", ctx, "hospital", "admit", mock.AnythingOfType("time.Duration"), "success").Once()
	m.On("RecordOperation", ctx, "hospital", "record_count", "error").Once()
	m.On("RecordDuration", ctx, "hospital", "record_count", mock.AnythingOfType("time.Duration"), "error").Once()

	uc := NewHospitalUseCaseWithMetrics(NewHospitalUseCase(Config{}, repo, nil, nil, nil), m)

	require.NoError(t, uc.Admit(ctx, item, "user-service", "timeout", "gateway timeout"))
	_, err := uc.Count(ctx, "")
	assert.Error(t, err)
	m.AssertExpectations(t)
}
