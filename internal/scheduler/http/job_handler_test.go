package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/allisson/courier/internal/scheduler/domain"
	"github.com/allisson/courier/internal/scheduler/http/dto"
)

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

func (m *mockJobUseCase) Get(ctx context.Context, taskName, instanceID string) (*domain.TaskInstance, error) {
	args := m.Called(ctx, taskName, instanceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TaskInstance), args.Error(1)
}

func (m *mockJobUseCase) List(
	ctx context.Context,
	offset, limit int,
	taskName string,
) ([]*domain.TaskInstance, error) {
	args := m.Called(ctx, offset, limit, taskName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.TaskInstance), args.Error(1)
}

type invoice struct {
	InvoiceID string `json:"invoice_id"`
}

var fixedNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func setupTestHandler(t *testing.T) (*JobHandler, *mockJobUseCase) {
	t.Helper()

	gin.SetMode(gin.TestMode)

	mockUseCase := &mockJobUseCase{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	handler := NewJobHandler(mockUseCase, logger)
	handler.now = func() time.Time { return fixedNow }
	return handler, mockUseCase
}

func createTestContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, path, bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	return c, w
}

func TestJobHandler_EnqueueHandler(t *testing.T) {
	t.Run("Success_WithInstanceIDAndExecuteAt", func(t *testing.T) {
		handler, mockUseCase := setupTestHandler(t)

		body := []byte(`{"payload":{"invoice_id":"inv-1"},"instance_id":"inv-1","execute_at":"2026-03-02T12:00:00Z"}`)
		c, w := createTestContext(http.MethodPost, "/v1/jobs/send-invoice", body)
		c.Params = gin.Params{{Key: "task_name", Value: "send-invoice"}}

		payload := invoice{InvoiceID: "inv-1"}
		executeAt := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
		mockUseCase.On("PayloadFromJSON", "send-invoice", []byte(`{"invoice_id":"inv-1"}`)).
			Return(payload, nil).
			Once()
		mockUseCase.On("AddJobWithID", mock.Anything, "send-invoice", "inv-1", payload, executeAt).
			Return(nil).
			Once()

		handler.EnqueueHandler(c)

		assert.Equal(t, http.StatusCreated, w.Code)
		var response dto.EnqueueJobResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "inv-1", response.TaskInstance)
		assert.Equal(t, executeAt, response.ExecutionTime)
		mockUseCase.AssertExpectations(t)
	})

	t.Run("Success_GeneratesInstanceID", func(t *testing.T) {
		handler, mockUseCase := setupTestHandler(t)

		c, w := createTestContext(http.MethodPost, "/v1/jobs/rebuild-index", []byte(`{}`))
		c.Params = gin.Params{{Key: "task_name", Value: "rebuild-index"}}

		mockUseCase.On("PayloadFromJSON", "rebuild-index", mock.Anything).Return(nil, nil).Once()
		mockUseCase.On("AddJobWithID", mock.Anything, "rebuild-index", mock.AnythingOfType("string"), nil, fixedNow).
			Return(nil).
			Once()

		handler.EnqueueHandler(c)

		assert.Equal(t, http.StatusCreated, w.Code)
		var response dto.EnqueueJobResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.NotEmpty(t, response.TaskInstance)
		mockUseCase.AssertExpectations(t)
	})

	t.Run("Error_MalformedBody", func(t *testing.T) {
		handler, _ := setupTestHandler(t)

		c, w := createTestContext(http.MethodPost, "/v1/jobs/send-invoice", []byte(`{`))
		c.Params = gin.Params{{Key: "task_name", Value: "send-invoice"}}

		handler.EnqueueHandler(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Error_InvalidInstanceID", func(t *testing.T) {
		handler, _ := setupTestHandler(t)

		c, w := createTestContext(http.MethodPost, "/v1/jobs/send-invoice", []byte(`{"instance_id":"a b"}`))
		c.Params = gin.Params{{Key: "task_name", Value: "send-invoice"}}

		handler.EnqueueHandler(c)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("Error_UnknownTask", func(t *testing.T) {
		handler, mockUseCase := setupTestHandler(t)

		c, w := createTestContext(http.MethodPost, "/v1/jobs/unknown", []byte(`{}`))
		c.Params = gin.Params{{Key: "task_name", Value: "unknown"}}

		mockUseCase.On("PayloadFromJSON", "unknown", mock.Anything).
			Return(nil, domain.ErrTaskNotRegistered).
			Once()

		handler.EnqueueHandler(c)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		mockUseCase.AssertExpectations(t)
	})

	t.Run("Error_DuplicateInstance", func(t *testing.T) {
		handler, mockUseCase := setupTestHandler(t)

		c, w := createTestContext(http.MethodPost, "/v1/jobs/rebuild-index", []byte(`{"instance_id":"r-1"}`))
		c.Params = gin.Params{{Key: "task_name", Value: "rebuild-index"}}

		mockUseCase.On("PayloadFromJSON", "rebuild-index", mock.Anything).Return(nil, nil).Once()
		mockUseCase.On("AddJobWithID", mock.Anything, "rebuild-index", "r-1", nil, fixedNow).
			Return(domain.ErrTaskInstanceExists).
			Once()

		handler.EnqueueHandler(c)

		assert.Equal(t, http.StatusConflict, w.Code)
		mockUseCase.AssertExpectations(t)
	})
}

func TestJobHandler_ListHandler(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		handler, mockUseCase := setupTestHandler(t)

		c, w := createTestContext(http.MethodGet, "/v1/jobs?limit=10&task_name=send-invoice", nil)

		instances := []*domain.TaskInstance{
			{TaskName: "send-invoice", TaskInstance: "inv-1", ExecutionTime: fixedNow},
		}
		mockUseCase.On("List", mock.Anything, 0, 10, "send-invoice").Return(instances, nil).Once()

		handler.ListHandler(c)

		assert.Equal(t, http.StatusOK, w.Code)
		var response dto.ListTaskInstancesResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		require.Len(t, response.Data, 1)
		assert.Equal(t, "inv-1", response.Data[0].TaskInstance)
		mockUseCase.AssertExpectations(t)
	})

	t.Run("Error_InvalidPagination", func(t *testing.T) {
		handler, _ := setupTestHandler(t)

		c, w := createTestContext(http.MethodGet, "/v1/jobs?limit=1000", nil)

		handler.ListHandler(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestJobHandler_GetHandler(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		handler, mockUseCase := setupTestHandler(t)

		c, w := createTestContext(http.MethodGet, "/v1/jobs/send-invoice/inv-1", nil)
		c.Params = gin.Params{
			{Key: "task_name", Value: "send-invoice"},
			{Key: "instance_id", Value: "inv-1"},
		}

		instance := &domain.TaskInstance{
			TaskName:            "send-invoice",
			TaskInstance:        "inv-1",
			ExecutionTime:       fixedNow,
			ConsecutiveFailures: 2,
		}
		mockUseCase.On("Get", mock.Anything, "send-invoice", "inv-1").Return(instance, nil).Once()

		handler.GetHandler(c)

		assert.Equal(t, http.StatusOK, w.Code)
		var response dto.TaskInstanceResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, 2, response.ConsecutiveFailures)
		mockUseCase.AssertExpectations(t)
	})

	t.Run("Error_NotFound", func(t *testing.T) {
		handler, mockUseCase := setupTestHandler(t)

		c, w := createTestContext(http.MethodGet, "/v1/jobs/send-invoice/missing", nil)
		c.Params = gin.Params{
			{Key: "task_name", Value: "send-invoice"},
			{Key: "instance_id", Value: "missing"},
		}
		mockUseCase.On("Get", mock.Anything, "send-invoice", "missing").
			Return(nil, domain.ErrTaskInstanceNotFound).
			Once()

		handler.GetHandler(c)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestJobHandler_CancelHandler(t *testing.T) {
	handler, mockUseCase := setupTestHandler(t)

	c, _ := createTestContext(http.MethodDelete, "/v1/jobs/send-invoice/inv-1", nil)
	c.Params = gin.Params{
		{Key: "task_name", Value: "send-invoice"},
		{Key: "instance_id", Value: "inv-1"},
	}
	mockUseCase.On("Cancel", mock.Anything, "send-invoice", "inv-1").Return(nil).Once()

	handler.CancelHandler(c)

	assert.Equal(t, http.StatusNoContent, c.Writer.Status())
	mockUseCase.AssertExpectations(t)
}
