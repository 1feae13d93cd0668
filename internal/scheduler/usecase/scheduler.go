package usecase

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/allisson/courier/internal/correlation"
	"github.com/allisson/courier/internal/database"
	apperrors "github.com/allisson/courier/internal/errors"
	"github.com/allisson/courier/internal/metrics"
	"github.com/allisson/courier/internal/retry"
	"github.com/allisson/courier/internal/scheduler/domain"
	"github.com/allisson/courier/internal/serializer"
)

// Execution statuses recorded in metrics.
const (
	statusSuccess = "success"
	statusFailure = "failure"
	statusAborted = "aborted"
	statusError   = "error"
)

// Config holds scheduler configuration
type Config struct {
	Threads           int
	PollInterval      time.Duration
	HeartbeatInterval time.Duration
	ShutdownMaxWait   time.Duration
	StaleTimeout      time.Duration
	MaxFailures       int
	RetryBase         time.Duration
	WorkerName        string
}

// Scheduler executes registered tasks from the shared scheduled_tasks table. One poller claims
// due rows for the local worker pool; a heartbeat loop keeps claimed rows alive and releases
// rows whose owner stopped heartbeating.
type Scheduler struct {
	config     Config
	txManager  database.TxManager
	repo       TaskRepository
	serializer *serializer.Serializer
	metrics    metrics.BusinessMetrics
	logger     *slog.Logger
	now        func() time.Time

	mu      sync.Mutex
	tasks   map[string]*task
	started bool
	stopped bool

	queue     chan *domain.TaskInstance
	inFlight  atomic.Int64
	activeMu  sync.Mutex
	active    map[string]*domain.TaskInstance
	runCtx    context.Context
	cancelRun context.CancelFunc
	stopOnce  sync.Once
	stopCh    chan struct{}
	loops     sync.WaitGroup
}

// NewScheduler creates a new Scheduler
func NewScheduler(
	config Config,
	txManager database.TxManager,
	repo TaskRepository,
	s *serializer.Serializer,
	businessMetrics metrics.BusinessMetrics,
	logger *slog.Logger,
) *Scheduler {
	if config.Threads < 1 {
		config.Threads = 1
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 10 * time.Second
	}
	if config.HeartbeatInterval <= 0 {
		config.HeartbeatInterval = time.Minute
	}
	if config.StaleTimeout <= 0 {
		config.StaleTimeout = 20 * time.Minute
	}
	if businessMetrics == nil {
		businessMetrics = metrics.NewNoOpBusinessMetrics()
	}

	return &Scheduler{
		config:     config,
		txManager:  txManager,
		repo:       repo,
		serializer: s,
		metrics:    businessMetrics,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
		tasks:      make(map[string]*task),
		queue:      make(chan *domain.TaskInstance, config.Threads),
		active:     make(map[string]*domain.TaskInstance),
		stopCh:     make(chan struct{}),
	}
}

// Start creates the rows of recurring tasks that have none yet and launches the poller, the
// workers and the heartbeat loop. It returns once they are running; call Stop to end them.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return domain.ErrSchedulerStopped
	}
	if s.started {
		s.mu.Unlock()
		return apperrors.Wrap(apperrors.ErrConflict, "scheduler already started")
	}
	s.started = true
	tasks := make([]*task, 0, len(s.tasks))
	for _, t := range s.tasks {
		tasks = append(tasks, t)
	}
	s.mu.Unlock()

	now := s.now()
	for _, t := range tasks {
		if !t.recurring() {
			continue
		}
		instance := &domain.TaskInstance{
			TaskName:      t.name,
			TaskInstance:  domain.RecurringInstanceID,
			ExecutionTime: t.schedule.Next(now),
		}
		created, err := s.repo.CreateIfNotExists(ctx, instance)
		if err != nil {
			return apperrors.Wrapf(err, "failed to initialize recurring task %s", t.name)
		}
		if created && s.logger != nil {
			s.logger.Info("recurring task scheduled",
				slog.String("task_name", t.name),
				slog.String("schedule", t.schedule.String()),
				slog.Time("execution_time", instance.ExecutionTime),
			)
		}
	}

	s.runCtx, s.cancelRun = context.WithCancel(context.WithoutCancel(ctx))

	if s.logger != nil {
		s.logger.Info("starting scheduler",
			slog.String("worker_name", s.config.WorkerName),
			slog.Int("threads", s.config.Threads),
			slog.Duration("poll_interval", s.config.PollInterval),
			slog.Duration("heartbeat_interval", s.config.HeartbeatInterval),
			slog.Any("tasks", s.TaskNames()),
		)
	}

	for range s.config.Threads {
		s.loops.Add(1)
		go s.workerLoop()
	}
	s.loops.Add(2)
	go s.pollLoop()
	go s.heartbeatLoop()

	return nil
}

// Stop stops polling and waits for running executions up to ShutdownMaxWait or the ctx
// deadline, whichever comes first. Executions still running after that are abandoned: their
// ctx is cancelled and their rows are released by stale cleanup if they never finish.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stopCh) })

	s.mu.Lock()
	started := s.started
	s.stopped = true
	s.mu.Unlock()
	if !started {
		return nil
	}

	if s.config.ShutdownMaxWait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.ShutdownMaxWait)
		defer cancel()
	}

	finished := make(chan struct{})
	go func() {
		s.loops.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		s.releaseQueued()
		s.cancelRun()
		if s.logger != nil {
			s.logger.Info("scheduler stopped")
		}
		return nil
	case <-ctx.Done():
		if s.logger != nil {
			s.logger.Warn("abandoning in-flight task executions", slog.Int64("in_flight", s.inFlight.Load()))
		}
		s.cancelRun()
		s.releaseQueued()
		return ctx.Err()
	}
}

func (s *Scheduler) pollLoop() {
	defer s.loops.Done()

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	for {
		s.poll()

		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
		}
	}
}

// poll claims as many due instances as there are idle workers.
func (s *Scheduler) poll() {
	free := s.config.Threads - int(s.inFlight.Load())
	if free <= 0 {
		return
	}
	names := s.TaskNames()
	if len(names) == 0 {
		return
	}

	start := time.Now()
	var picked []*domain.TaskInstance
	err := s.txManager.WithTx(s.runCtx, func(ctx context.Context) error {
		var err error
		picked, err = s.repo.PickDue(ctx, s.now(), free, s.config.WorkerName, names)
		return err
	})

	status := statusSuccess
	if err != nil {
		status = statusError
	}
	s.metrics.RecordDuration(s.runCtx, "scheduler", "poll", time.Since(start), status)

	if err != nil {
		if s.logger != nil {
			s.logger.Error("scheduler poll failed", slog.Any("error", err))
		}
		return
	}

	for _, instance := range picked {
		s.inFlight.Add(1)
		s.queue <- instance
	}
}

func (s *Scheduler) workerLoop() {
	defer s.loops.Done()

	for {
		select {
		case <-s.stopCh:
			return
		case instance := <-s.queue:
			s.execute(instance)
		}
	}
}

// execute runs one claimed instance and persists its outcome.
func (s *Scheduler) execute(instance *domain.TaskInstance) {
	defer s.inFlight.Add(-1)

	ctx, cancel := context.WithCancel(s.runCtx)
	defer cancel()
	ctx = correlation.WithTask(ctx, instance.TaskName, instance.TaskInstance)
	ctx = correlation.WithCorrelationID(ctx, correlation.EnsureCorrelationID(ctx))

	t, ok := s.lookup(instance.TaskName)

	s.track(instance)
	start := time.Now()
	var err error
	if ok {
		err = s.run(ctx, t, instance)
	} else {
		err = apperrors.Wrapf(domain.ErrTaskNotRegistered, "%s", instance.TaskName)
	}
	s.untrack(instance)

	storeCtx := context.WithoutCancel(ctx)
	var status string
	if err == nil {
		status = s.succeed(storeCtx, t, instance)
	} else {
		handler := s.defaultFailureHandler()
		if ok {
			handler = t.failureHandler
		}
		status = s.fail(storeCtx, handler, instance, err)
	}

	s.metrics.RecordOperation(storeCtx, "scheduler", "task_execute", status)
	s.metrics.RecordDuration(storeCtx, "scheduler", "task_execute", time.Since(start), status)
}

// run invokes the task body, converting panics into failures.
func (s *Scheduler) run(ctx context.Context, t *task, instance *domain.TaskInstance) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &domain.PanicError{Value: r}
		}
	}()

	if t.recurring() {
		return t.body(ctx)
	}

	var payload any
	if instance.PayloadType != "" {
		payload, err = s.serializer.Unmarshal(ctx, instance.PayloadType, instance.TaskData)
		if err != nil {
			return err
		}
	}
	return t.handler(ctx, payload)
}

func (s *Scheduler) succeed(ctx context.Context, t *task, instance *domain.TaskInstance) string {
	now := s.now()

	var err error
	if t.recurring() {
		instance.ExecutionTime = t.schedule.Next(now)
		instance.LastSuccess = &now
		instance.ConsecutiveFailures = 0
		err = s.repo.Reschedule(ctx, instance)
	} else {
		err = s.repo.Complete(ctx, instance)
	}
	if err != nil {
		s.logStoreError(ctx, err)
		return statusError
	}

	if s.logger != nil {
		s.logger.DebugContext(ctx, "task executed")
	}
	return statusSuccess
}

func (s *Scheduler) fail(
	ctx context.Context,
	handler domain.FailureHandler,
	instance *domain.TaskInstance,
	taskErr error,
) string {
	now := s.now()
	instance.ConsecutiveFailures++
	instance.LastFailure = &now

	decision := handler.OnFailure(instance, now)
	if decision.Remove {
		if err := s.repo.Complete(ctx, instance); err != nil {
			s.logStoreError(ctx, err)
			return statusError
		}
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "task failed permanently, instance removed",
				slog.Int("consecutive_failures", instance.ConsecutiveFailures),
				slog.String("reason", retry.Reason(taskErr)),
				slog.Any("error", taskErr),
			)
		}
		return statusAborted
	}

	instance.ExecutionTime = decision.NextExecution
	if err := s.repo.Reschedule(ctx, instance); err != nil {
		s.logStoreError(ctx, err)
		return statusError
	}
	if s.logger != nil {
		s.logger.WarnContext(ctx, "task failed, rescheduled",
			slog.Int("consecutive_failures", instance.ConsecutiveFailures),
			slog.Time("execution_time", instance.ExecutionTime),
			slog.String("reason", retry.Reason(taskErr)),
			slog.Any("error", taskErr),
		)
	}
	return statusFailure
}

func (s *Scheduler) logStoreError(ctx context.Context, err error) {
	if s.logger == nil {
		return
	}
	if apperrors.Is(err, domain.ErrTaskInstanceNotFound) {
		s.logger.WarnContext(ctx, "task instance was released or removed while executing, outcome discarded")
		return
	}
	s.logger.ErrorContext(ctx, "failed to persist task outcome", slog.Any("error", err))
}

func (s *Scheduler) defaultFailureHandler() domain.FailureHandler {
	return domain.MaxRetries(s.config.MaxFailures, domain.ExponentialBackoff(s.config.RetryBase, 2))
}

func (s *Scheduler) heartbeatLoop() {
	defer s.loops.Done()

	ticker := time.NewTicker(s.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.heartbeat()
		}
	}
}

// heartbeat refreshes the rows this node is executing, then releases rows of dead nodes.
func (s *Scheduler) heartbeat() {
	ctx := s.runCtx
	now := s.now()

	for _, instance := range s.activeSnapshot() {
		if err := s.repo.UpdateHeartbeat(ctx, &instance, now); err != nil && s.logger != nil {
			s.logger.Warn("task heartbeat failed",
				slog.String("task_name", instance.TaskName),
				slog.String("task_instance", instance.TaskInstance),
				slog.Any("error", err),
			)
		}
	}

	reset, err := s.repo.ResetStale(ctx, now.Add(-s.config.StaleTimeout))
	if err != nil {
		if s.logger != nil {
			s.logger.Error("stale task cleanup failed", slog.Any("error", err))
		}
		return
	}
	if reset > 0 && s.logger != nil {
		s.logger.Warn("released stale task instances", slog.Int64("count", reset))
	}
}

func (s *Scheduler) track(instance *domain.TaskInstance) {
	s.activeMu.Lock()
	s.active[instance.Key()] = instance
	s.activeMu.Unlock()
}

func (s *Scheduler) untrack(instance *domain.TaskInstance) {
	s.activeMu.Lock()
	delete(s.active, instance.Key())
	s.activeMu.Unlock()
}

// activeSnapshot copies the running instances so heartbeats never race with outcome writes.
func (s *Scheduler) activeSnapshot() []domain.TaskInstance {
	s.activeMu.Lock()
	defer s.activeMu.Unlock()

	instances := make([]domain.TaskInstance, 0, len(s.active))
	for _, instance := range s.active {
		instances = append(instances, *instance)
	}
	return instances
}

// releaseQueued hands claimed but never started instances back to the cluster.
func (s *Scheduler) releaseQueued() {
	for {
		select {
		case instance := <-s.queue:
			if err := s.repo.Reschedule(context.WithoutCancel(s.runCtx), instance); err != nil && s.logger != nil {
				s.logger.Warn("failed to release queued task instance",
					slog.String("task_name", instance.TaskName),
					slog.String("task_instance", instance.TaskInstance),
					slog.Any("error", err),
				)
			}
			s.inFlight.Add(-1)
		default:
			return
		}
	}
}
