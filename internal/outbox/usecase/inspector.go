package usecase

import (
	"context"
	"time"

	"github.com/allisson/courier/internal/outbox/domain"
)

// inspector implements Inspector.
type inspector struct {
	repo WorkItemRepository
	now  func() time.Time
}

// NewInspector creates an Inspector over repo.
func NewInspector(repo WorkItemRepository) Inspector {
	return &inspector{
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Stats returns pending, due and retrying counts.
func (i *inspector) Stats(ctx context.Context) (*domain.Stats, error) {
	return i.repo.Stats(ctx, i.now())
}

// ListPending lists pending work items, optionally filtered by topic.
func (i *inspector) ListPending(ctx context.Context, offset, limit int, topic string) ([]*domain.WorkItem, error) {
	return i.repo.ListPending(ctx, offset, limit, topic)
}
