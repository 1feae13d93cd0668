// Package http provides HTTP handlers for reading Hospital records.
package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/allisson/courier/internal/hospital/http/dto"
	hospitalUseCase "github.com/allisson/courier/internal/hospital/usecase"
	"github.com/allisson/courier/internal/httputil"
)

// RecordHandler handles HTTP requests for Hospital records.
type RecordHandler struct {
	hospitalUseCase hospitalUseCase.HospitalUseCase
	logger          *slog.Logger
}

// NewRecordHandler creates a new record handler.
func NewRecordHandler(hospitalUseCase hospitalUseCase.HospitalUseCase, logger *slog.Logger) *RecordHandler {
	return &RecordHandler{
		hospitalUseCase: hospitalUseCase,
		logger:          logger,
	}
}

// ListHandler lists records newest first.
// GET /v1/hospital?offset=0&limit=50&topic=USER
func (h *RecordHandler) ListHandler(c *gin.Context) {
	query, err := httputil.ParseListQuery(c, "topic")
	if err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	records, err := h.hospitalUseCase.List(c.Request.Context(), query.Offset, query.Limit, query.Filter)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	total, err := h.hospitalUseCase.Count(c.Request.Context(), query.Filter)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapRecordsToListResponse(records, total))
}

// GetHandler returns one record with its payload.
// GET /v1/hospital/:id
func (h *RecordHandler) GetHandler(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.HandleBadRequestGin(c, fmt.Errorf("invalid record id: %w", err), h.logger)
		return
	}

	record, err := h.hospitalUseCase.Get(c.Request.Context(), id)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapRecordToResponse(record))
}
