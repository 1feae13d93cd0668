package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/allisson/courier/internal/scheduler/domain"
)

// memoryTaskStore is an in-memory TaskRepository and TxManager that follows the version
// guards of the SQL repositories.
type memoryTaskStore struct {
	mu   sync.Mutex
	rows map[string]domain.TaskInstance
	txs  int
}

func newMemoryTaskStore() *memoryTaskStore {
	return &memoryTaskStore{rows: make(map[string]domain.TaskInstance)}
}

func (m *memoryTaskStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	m.txs++
	m.mu.Unlock()
	return fn(ctx)
}

func (m *memoryTaskStore) WithSavepoint(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (m *memoryTaskStore) CreateIfNotExists(ctx context.Context, instance *domain.TaskInstance) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[instance.Key()]; ok {
		return false, nil
	}
	m.rows[instance.Key()] = *instance
	return true, nil
}

func (m *memoryTaskStore) PickDue(
	ctx context.Context,
	now time.Time,
	limit int,
	pickedBy string,
	taskNames []string,
) ([]*domain.TaskInstance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	allowed := make(map[string]bool, len(taskNames))
	for _, name := range taskNames {
		allowed[name] = true
	}

	due := make([]domain.TaskInstance, 0)
	for _, row := range m.rows {
		if !row.Picked && !row.ExecutionTime.After(now) && allowed[row.TaskName] {
			due = append(due, row)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ExecutionTime.Before(due[j].ExecutionTime) })
	if len(due) > limit {
		due = due[:limit]
	}

	picked := make([]*domain.TaskInstance, 0, len(due))
	for _, row := range due {
		heartbeat := now
		by := pickedBy
		row.Picked = true
		row.PickedBy = &by
		row.LastHeartbeat = &heartbeat
		row.Version++
		m.rows[row.Key()] = row
		instance := row
		picked = append(picked, &instance)
	}
	return picked, nil
}

func (m *memoryTaskStore) guard(instance *domain.TaskInstance) (domain.TaskInstance, error) {
	row, ok := m.rows[instance.Key()]
	if !ok || row.Version != instance.Version {
		return domain.TaskInstance{}, domain.ErrTaskInstanceNotFound
	}
	return row, nil
}

func (m *memoryTaskStore) Complete(ctx context.Context, instance *domain.TaskInstance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.guard(instance); err != nil {
		return err
	}
	delete(m.rows, instance.Key())
	return nil
}

func (m *memoryTaskStore) Reschedule(ctx context.Context, instance *domain.TaskInstance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, err := m.guard(instance)
	if err != nil {
		return err
	}
	row.ExecutionTime = instance.ExecutionTime
	row.LastSuccess = instance.LastSuccess
	row.LastFailure = instance.LastFailure
	row.ConsecutiveFailures = instance.ConsecutiveFailures
	row.Picked = false
	row.PickedBy = nil
	row.LastHeartbeat = nil
	row.Version++
	m.rows[row.Key()] = row

	instance.Picked = false
	instance.PickedBy = nil
	instance.LastHeartbeat = nil
	instance.Version = row.Version
	return nil
}

func (m *memoryTaskStore) UpdateHeartbeat(ctx context.Context, instance *domain.TaskInstance, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, err := m.guard(instance)
	if err != nil || !row.Picked {
		return domain.ErrTaskInstanceNotFound
	}
	heartbeat := now
	row.LastHeartbeat = &heartbeat
	m.rows[row.Key()] = row
	return nil
}

func (m *memoryTaskStore) ResetStale(ctx context.Context, olderThan time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var reset int64
	for key, row := range m.rows {
		if row.Picked && row.LastHeartbeat != nil && row.LastHeartbeat.Before(olderThan) {
			row.Picked = false
			row.PickedBy = nil
			row.LastHeartbeat = nil
			row.Version++
			m.rows[key] = row
			reset++
		}
	}
	return reset, nil
}

func (m *memoryTaskStore) Get(ctx context.Context, taskName, taskInstance string) (*domain.TaskInstance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[taskName+"/"+taskInstance]
	if !ok {
		return nil, domain.ErrTaskInstanceNotFound
	}
	return &row, nil
}

func (m *memoryTaskStore) List(ctx context.Context, offset, limit int, taskName string) ([]*domain.TaskInstance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := make([]*domain.TaskInstance, 0)
	for _, row := range m.rows {
		if taskName == "" || row.TaskName == taskName {
			r := row
			rows = append(rows, &r)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ExecutionTime.Before(rows[j].ExecutionTime) })
	if offset >= len(rows) {
		return []*domain.TaskInstance{}, nil
	}
	rows = rows[offset:]
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (m *memoryTaskStore) Remove(ctx context.Context, taskName, taskInstance string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := taskName + "/" + taskInstance
	if _, ok := m.rows[key]; !ok {
		return domain.ErrTaskInstanceNotFound
	}
	delete(m.rows, key)
	return nil
}

func (m *memoryTaskStore) row(taskName, taskInstance string) (domain.TaskInstance, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[taskName+"/"+taskInstance]
	return row, ok
}

func (m *memoryTaskStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
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
