// Package http provides HTTP handlers for enqueuing and inspecting one-shot jobs.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/allisson/courier/internal/httputil"
	"github.com/allisson/courier/internal/scheduler/http/dto"
	schedulerUseCase "github.com/allisson/courier/internal/scheduler/usecase"
	customValidation "github.com/allisson/courier/internal/validation"
)

// JobHandler handles HTTP requests for one-shot jobs.
type JobHandler struct {
	jobUseCase schedulerUseCase.JobUseCase
	logger     *slog.Logger
	now        func() time.Time
}

// NewJobHandler creates a new job handler.
func NewJobHandler(jobUseCase schedulerUseCase.JobUseCase, logger *slog.Logger) *JobHandler {
	return &JobHandler{
		jobUseCase: jobUseCase,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// EnqueueHandler enqueues a job for a registered one-shot task.
// POST /v1/jobs/:task_name
// Returns 201 Created, or 409 Conflict when instance_id is still pending.
func (h *JobHandler) EnqueueHandler(c *gin.Context) {
	taskName := c.Param("task_name")

	var req dto.EnqueueJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	payload, err := h.jobUseCase.PayloadFromJSON(taskName, req.Payload)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	instanceID := req.InstanceID
	if instanceID == "" {
		instanceID = uuid.Must(uuid.NewV7()).String()
	}
	executeAt := h.now()
	if req.ExecuteAt != nil {
		executeAt = req.ExecuteAt.UTC()
	}

	err = h.jobUseCase.AddJobWithID(c.Request.Context(), taskName, instanceID, payload, executeAt)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.EnqueueJobResponse{
		TaskName:      taskName,
		TaskInstance:  instanceID,
		ExecutionTime: executeAt,
	})
}

// ListHandler lists pending instances by execution time.
// GET /v1/jobs?offset=0&limit=50&task_name=send-invoice
func (h *JobHandler) ListHandler(c *gin.Context) {
	query, err := httputil.ParseListQuery(c, "task_name")
	if err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	instances, err := h.jobUseCase.List(c.Request.Context(), query.Offset, query.Limit, query.Filter)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapTaskInstancesToListResponse(instances))
}

// GetHandler returns one pending instance.
// GET /v1/jobs/:task_name/:instance_id
func (h *JobHandler) GetHandler(c *gin.Context) {
	instance, err := h.jobUseCase.Get(c.Request.Context(), c.Param("task_name"), c.Param("instance_id"))
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapTaskInstanceToResponse(instance))
}

// CancelHandler removes a pending instance.
// DELETE /v1/jobs/:task_name/:instance_id
func (h *JobHandler) CancelHandler(c *gin.Context) {
	if err := h.jobUseCase.Cancel(c.Request.Context(), c.Param("task_name"), c.Param("instance_id")); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Status(http.StatusNoContent)
}
