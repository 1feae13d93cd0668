package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/courier/internal/database"
	"github.com/allisson/courier/internal/outbox/domain"
)

// memoryStore is an in-memory WorkItemRepository and TxManager. A failing transaction or
// savepoint restores the rows it started with.
type memoryStore struct {
	mu        sync.Mutex
	items     map[uuid.UUID]domain.WorkItem
	failOn    map[string]error
	txStarted int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		items:  make(map[uuid.UUID]domain.WorkItem),
		failOn: make(map[string]error),
	}
}

func (s *memoryStore) snapshot() map[uuid.UUID]domain.WorkItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make(map[uuid.UUID]domain.WorkItem, len(s.items))
	for k, v := range s.items {
		cp[k] = v
	}
	return cp
}

func (s *memoryStore) restore(items map[uuid.UUID]domain.WorkItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = items
}

func (s *memoryStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	s.txStarted++
	s.mu.Unlock()

	before := s.snapshot()
	if err := fn(ctx); err != nil {
		s.restore(before)
		return err
	}
	return nil
}

func (s *memoryStore) WithSavepoint(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	before := s.snapshot()
	if err := fn(ctx); err != nil {
		s.restore(before)
		return err
	}
	s.mu.Lock()
	releaseErr := s.failOn["release"]
	s.mu.Unlock()
	if releaseErr != nil {
		return &database.SavepointError{Op: "release", Err: releaseErr}
	}
	return nil
}

func (s *memoryStore) Create(ctx context.Context, item *domain.WorkItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failOn["create"]; err != nil {
		return err
	}
	for _, existing := range s.items {
		if existing.EventID == item.EventID {
			return domain.ErrWorkItemExists
		}
	}
	s.items[item.ID] = *item
	return nil
}

func (s *memoryStore) LockDueBatch(ctx context.Context, now time.Time, limit int) ([]*domain.WorkItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failOn["lock"]; err != nil {
		return nil, err
	}
	due := make([]*domain.WorkItem, 0)
	for _, item := range s.items {
		if !item.ScheduledAt.After(now) {
			cp := item
			due = append(due, &cp)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].ScheduledAt.Equal(due[j].ScheduledAt) {
			return due[i].ID.String() < due[j].ID.String()
		}
		return due[i].ScheduledAt.Before(due[j].ScheduledAt)
	})
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (s *memoryStore) Update(ctx context.Context, item *domain.WorkItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failOn["update"]; err != nil {
		return err
	}
	if _, ok := s.items[item.ID]; !ok {
		return domain.ErrWorkItemNotFound
	}
	s.items[item.ID] = *item
	return nil
}

func (s *memoryStore) Delete(ctx context.Context, item *domain.WorkItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failOn["delete"]; err != nil {
		return err
	}
	if _, ok := s.items[item.ID]; !ok {
		return domain.ErrWorkItemNotFound
	}
	delete(s.items, item.ID)
	return nil
}

func (s *memoryStore) Stats(ctx context.Context, now time.Time) (*domain.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := &domain.Stats{}
	for _, item := range s.items {
		stats.Pending++
		if !item.ScheduledAt.After(now) {
			stats.Due++
		}
		if item.RetryCount > 0 {
			stats.Retrying++
		}
		if stats.OldestScheduledAt == nil || item.ScheduledAt.Before(*stats.OldestScheduledAt) {
			at := item.ScheduledAt
			stats.OldestScheduledAt = &at
		}
	}
	return stats, nil
}

func (s *memoryStore) ListPending(ctx context.Context, offset, limit int, topic string) ([]*domain.WorkItem, error) {
	all, _ := s.LockDueBatch(ctx, time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC), len(s.items)+1)
	filtered := make([]*domain.WorkItem, 0)
	for _, item := range all {
		if topic == "" || item.Topic == topic {
			filtered = append(filtered, item)
		}
	}
	if offset >= len(filtered) {
		return []*domain.WorkItem{}, nil
	}
	end := min(offset+limit, len(filtered))
	return filtered[offset:end], nil
}

func (s *memoryStore) get(id uuid.UUID) (domain.WorkItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	return item, ok
}

func (s *memoryStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// admission is a recorded Hospital.Admit call.
type admission struct {
	item     domain.WorkItem
	consumer string
	reason   string
	cause    string
}

// fakeHospital records admissions.
type fakeHospital struct {
	mu         sync.Mutex
	admissions []admission
	err        error
}

func (h *fakeHospital) Admit(ctx context.Context, item *domain.WorkItem, consumer, reason, cause string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return h.err
	}
	h.admissions = append(h.admissions, admission{item: *item, consumer: consumer, reason: reason, cause: cause})
	return nil
}

func (h *fakeHospital) records() []admission {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]admission(nil), h.admissions...)
}

// clock is a settable time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
