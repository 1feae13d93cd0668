// Package http provides read-only HTTP handlers for the pending outbox.
package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/allisson/courier/internal/httputil"
	"github.com/allisson/courier/internal/outbox/http/dto"
	outboxUseCase "github.com/allisson/courier/internal/outbox/usecase"
)

// OutboxHandler handles HTTP requests inspecting the outbox.
type OutboxHandler struct {
	inspector outboxUseCase.Inspector
	logger    *slog.Logger
}

// NewOutboxHandler creates a new outbox handler.
func NewOutboxHandler(inspector outboxUseCase.Inspector, logger *slog.Logger) *OutboxHandler {
	return &OutboxHandler{
		inspector: inspector,
		logger:    logger,
	}
}

// StatsHandler returns pending, due and retrying counts.
// GET /v1/outbox/stats
func (h *OutboxHandler) StatsHandler(c *gin.Context) {
	stats, err := h.inspector.Stats(c.Request.Context())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapStatsToResponse(stats))
}

// ListPendingHandler lists pending work items in delivery order.
// GET /v1/outbox/items?offset=0&limit=50&topic=USER
func (h *OutboxHandler) ListPendingHandler(c *gin.Context) {
	query, err := httputil.ParseListQuery(c, "topic")
	if err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	items, err := h.inspector.ListPending(c.Request.Context(), query.Offset, query.Limit, query.Filter)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapWorkItemsToListResponse(items))
}
