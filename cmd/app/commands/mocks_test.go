package commands

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	hospitalDomain "github.com/allisson/courier/internal/hospital/domain"
	outboxDomain "github.com/allisson/courier/internal/outbox/domain"
	schedulerDomain "github.com/allisson/courier/internal/scheduler/domain"
)

type mockInspector struct {
	mock.Mock
}

func (m *mockInspector) Stats(ctx context.Context) (*outboxDomain.Stats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*outboxDomain.Stats), args.Error(1)
}

func (m *mockInspector) ListPending(
	ctx context.Context,
	offset, limit int,
	topic string,
) ([]*outboxDomain.WorkItem, error) {
	args := m.Called(ctx, offset, limit, topic)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*outboxDomain.WorkItem), args.Error(1)
}

type mockHospitalUseCase struct {
	mock.Mock
}

func (m *mockHospitalUseCase) Admit(
	ctx context.Context,
	item *outboxDomain.WorkItem,
	consumer, reason, cause string,
) error {
	args := m.Called(ctx, item, consumer, reason, cause)
	return args.Error(0)
}

func (m *mockHospitalUseCase) Get(ctx context.Context, id uuid.UUID) (*hospitalDomain.Record, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*hospitalDomain.Record), args.Error(1)
}

func (m *mockHospitalUseCase) List(
	ctx context.Context,
	offset, limit int,
	topic string,
) ([]*hospitalDomain.Record, error) {
	args := m.Called(ctx, offset, limit, topic)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*hospitalDomain.Record), args.Error(1)
}

func (m *mockHospitalUseCase) Count(ctx context.Context, topic string) (int64, error) {
	args := m.Called(ctx, topic)
	return args.Get(0).(int64), args.Error(1)
}

type mockJobUseCase struct {
	mock.Mock
}

func (m *mockJobUseCase) AddJob(ctx context.Context, taskName string, payload any) (string, error) {
	args := m.Called(ctx, taskName, payload)
	return args.String(0), args.Error(1)
}

func (m *mockJobUseCase) AddJobWithID(
	ctx context.Context,
	taskName, instanceID string,
	payload any,
	at time.Time,
) error {
	args := m.Called(ctx, taskName, instanceID, payload, at)
	return args.Error(0)
}

func (m *mockJobUseCase) PayloadFromJSON(taskName string, raw []byte) (any, error) {
	args := m.Called(taskName, raw)
	return args.Get(0), args.Error(1)
}

func (m *mockJobUseCase) Cancel(ctx context.Context, taskName, instanceID string) error {
	args := m.Called(ctx, taskName, instanceID)
	return args.Error(0)
}

func (m *mockJobUseCase) Get(
	ctx context.Context,
	taskName, instanceID string,
) (*schedulerDomain.TaskInstance, error) {
	args := m.Called(ctx, taskName, instanceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*schedulerDomain.TaskInstance), args.Error(1)
}

func (m *mockJobUseCase) List(
	ctx context.Context,
	offset, limit int,
	taskName string,
) ([]*schedulerDomain.TaskInstance, error) {
	args := m.Called(ctx, offset, limit, taskName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*schedulerDomain.TaskInstance), args.Error(1)
}
