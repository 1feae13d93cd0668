package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/allisson/courier/internal/correlation"
	"github.com/allisson/courier/internal/database"
	apperrors "github.com/allisson/courier/internal/errors"
	"github.com/allisson/courier/internal/metrics"
	"github.com/allisson/courier/internal/outbox/domain"
	"github.com/allisson/courier/internal/retry"
	"github.com/allisson/courier/internal/serializer"
)

const itemSavepoint = "outbox_item"

// Delivery statuses recorded in metrics.
const (
	statusSuccess      = "success"
	statusRetry        = "retry"
	statusHospitalized = "hospitalized"
	statusError        = "error"
)

// Config holds outbox deliverer configuration
type Config struct {
	BatchSize          int
	InitialDelay       time.Duration
	PollInterval       time.Duration
	MaxRetries         int
	BackoffBase        time.Duration
	UnroutableTerminal bool
}

// DispatchResult counts the outcomes of one poll cycle.
type DispatchResult struct {
	Processed    int
	Delivered    int
	Retried      int
	Hospitalized int
}

// Deliverer periodically claims due work items and dispatches them to their registered
// consumer. A single lease per process keeps at most one poll cycle in flight; cross-process
// exclusion comes from the row locks taken by the repository.
type Deliverer struct {
	config     Config
	txManager  database.TxManager
	repo       WorkItemRepository
	registry   *Registry
	hospital   Hospital
	serializer *serializer.Serializer
	metrics    metrics.BusinessMetrics
	logger     *slog.Logger
	policy     retry.Policy
	now        func() time.Time

	lease    chan struct{}
	cycles   sync.WaitGroup
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
	mu       sync.Mutex
	started  bool
}

// NewDeliverer creates a new Deliverer
func NewDeliverer(
	config Config,
	txManager database.TxManager,
	repo WorkItemRepository,
	registry *Registry,
	hospital Hospital,
	s *serializer.Serializer,
	businessMetrics metrics.BusinessMetrics,
	logger *slog.Logger,
) *Deliverer {
	if businessMetrics == nil {
		businessMetrics = metrics.NewNoOpBusinessMetrics()
	}
	return &Deliverer{
		config:     config,
		txManager:  txManager,
		repo:       repo,
		registry:   registry,
		hospital:   hospital,
		serializer: s,
		metrics:    businessMetrics,
		logger:     logger,
		policy: retry.Policy{
			MaxRetries: config.MaxRetries,
			Strategy:   retry.NewLinear(config.BackoffBase, 0),
		},
		now:    func() time.Time { return time.Now().UTC() },
		lease:  make(chan struct{}, 1),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start runs the poll timer until ctx is cancelled or Stop is called. The first cycle fires
// after InitialDelay, then every PollInterval. A tick that finds the previous cycle still
// running is dropped.
func (d *Deliverer) Start(ctx context.Context) error {
	d.mu.Lock()
	select {
	case <-d.stopCh:
		d.mu.Unlock()
		return domain.ErrDelivererStopped
	default:
	}
	if d.started {
		d.mu.Unlock()
		return apperrors.Wrap(apperrors.ErrConflict, "outbox deliverer already started")
	}
	d.started = true
	d.mu.Unlock()
	defer close(d.doneCh)

	if d.logger != nil {
		d.logger.Info("starting outbox deliverer",
			slog.Duration("initial_delay", d.config.InitialDelay),
			slog.Duration("poll_interval", d.config.PollInterval),
			slog.Int("batch_size", d.config.BatchSize),
			slog.Int("max_retries", d.config.MaxRetries),
			slog.Any("topics", d.registry.Topics()),
		)
	}

	timer := time.NewTimer(d.config.InitialDelay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			if d.logger != nil {
				d.logger.Info("stopping outbox deliverer")
			}
			return ctx.Err()
		case <-d.stopCh:
			return nil
		case <-timer.C:
			d.cycles.Add(1)
			go func() {
				defer d.cycles.Done()
				d.tick(ctx)
			}()
			timer.Reset(d.config.PollInterval)
		}
	}
}

// Stop halts the timer and waits for the in-flight cycle until ctx expires. A cycle still
// running after that is abandoned, not interrupted.
func (d *Deliverer) Stop(ctx context.Context) error {
	d.stopOnce.Do(func() { close(d.stopCh) })

	d.mu.Lock()
	started := d.started
	d.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		if started {
			<-d.doneCh
		}
		d.cycles.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		if d.logger != nil {
			d.logger.Warn("abandoning in-flight outbox cycle")
		}
		return ctx.Err()
	}
}

// tick runs one cycle and swallows every error so the timer survives.
func (d *Deliverer) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil && d.logger != nil {
			d.logger.Error("outbox poll cycle panicked", slog.Any("panic", r))
		}
	}()

	result, err := d.ProcessBatch(ctx)
	if err != nil {
		if apperrors.Is(err, domain.ErrCycleInProgress) {
			if d.logger != nil {
				d.logger.Debug("skipping outbox tick, previous cycle still running")
			}
			return
		}
		if d.logger != nil {
			d.logger.Error("outbox poll cycle failed", slog.Any("error", err))
		}
		return
	}

	if result.Processed > 0 && d.logger != nil {
		d.logger.Info("outbox poll cycle completed",
			slog.Int("processed", result.Processed),
			slog.Int("delivered", result.Delivered),
			slog.Int("retried", result.Retried),
			slog.Int("hospitalized", result.Hospitalized),
		)
	}
}

// ProcessBatch runs a single poll cycle: it claims up to BatchSize due items in one
// transaction and dispatches them in scheduled_at order. Any storage error rolls back the
// whole cycle. Returns domain.ErrCycleInProgress when another cycle holds the lease.
func (d *Deliverer) ProcessBatch(ctx context.Context) (DispatchResult, error) {
	select {
	case d.lease <- struct{}{}:
	default:
		return DispatchResult{}, domain.ErrCycleInProgress
	}
	defer func() { <-d.lease }()

	start := time.Now()
	var result DispatchResult

	err := d.txManager.WithTx(ctx, func(ctx context.Context) error {
		items, err := d.repo.LockDueBatch(ctx, d.now(), d.config.BatchSize)
		if err != nil {
			return err
		}

		for _, item := range items {
			status, err := d.dispatch(ctx, item)
			if err != nil {
				return err
			}

			result.Processed++
			switch status {
			case statusSuccess:
				result.Delivered++
			case statusRetry:
				result.Retried++
			case statusHospitalized:
				result.Hospitalized++
			}
		}

		return nil
	})

	status := statusSuccess
	if err != nil {
		status = statusError
	}
	d.metrics.RecordDuration(ctx, "outbox", "poll", time.Since(start), status)

	if err != nil {
		return DispatchResult{}, err
	}

	// Outcomes are counted only once the cycle committed.
	d.recordOutcomes(ctx, result)

	return result, nil
}

func (d *Deliverer) recordOutcomes(ctx context.Context, result DispatchResult) {
	for range result.Delivered {
		d.metrics.RecordOperation(ctx, "outbox", "deliver", statusSuccess)
	}
	for range result.Retried {
		d.metrics.RecordOperation(ctx, "outbox", "deliver", statusRetry)
	}
	for range result.Hospitalized {
		d.metrics.RecordOperation(ctx, "outbox", "deliver", statusHospitalized)
	}
}

// dispatch delivers one item and applies the outcome. Only storage errors are returned.
func (d *Deliverer) dispatch(ctx context.Context, item *domain.WorkItem) (string, error) {
	callCtx := correlation.WithCorrelationID(ctx, item.CorrelationID)
	callCtx = correlation.WithEvent(callCtx, item.EventID, item.Topic)

	sub, ok := d.registry.Lookup(item.Topic)
	if !ok {
		return d.fail(callCtx, item, "", &domain.UnroutableError{Topic: item.Topic}, d.config.UnroutableTerminal)
	}

	handlerErr := d.txManager.WithSavepoint(callCtx, itemSavepoint, func(ctx context.Context) error {
		return d.invoke(ctx, sub, item)
	})
	var spErr *database.SavepointError
	if apperrors.As(handlerErr, &spErr) {
		return "", handlerErr
	}
	if handlerErr == nil {
		if err := d.repo.Delete(ctx, item); err != nil {
			return "", err
		}
		if d.logger != nil {
			d.logger.DebugContext(callCtx, "work item delivered", slog.String("consumer", sub.Consumer))
		}
		return statusSuccess, nil
	}

	return d.fail(callCtx, item, sub.Consumer, handlerErr, retry.IsPermanent(handlerErr))
}

// invoke calls the handler with the unsealed payload, converting panics into failures.
func (d *Deliverer) invoke(ctx context.Context, sub domain.Subscription, item *domain.WorkItem) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &domain.PanicError{Value: r}
		}
	}()

	payload, err := d.serializer.Open(ctx, item.Payload)
	if err != nil {
		return retry.Permanent(err)
	}

	return sub.Handler(ctx, payload, domain.MetadataOf(item))
}

// fail reschedules the item with backoff or, when terminal or out of retries, admits it to
// the Hospital and deletes it.
func (d *Deliverer) fail(
	ctx context.Context,
	item *domain.WorkItem,
	consumer string,
	handlerErr error,
	terminal bool,
) (string, error) {
	reason := retry.Reason(handlerErr)
	cause := handlerErr.Error()
	item.LastErrorReason = &reason
	item.LastErrorCause = &cause
	if consumer != "" {
		item.LastErrorConsumer = &consumer
	} else {
		item.LastErrorConsumer = nil
	}

	if !terminal {
		decision := d.policy.Decide(item.RetryCount, d.now())
		if !decision.Terminal {
			item.RetryCount = decision.RetryCount
			item.ScheduledAt = decision.NextAt

			if err := d.repo.Update(ctx, item); err != nil {
				return "", err
			}

			if d.logger != nil {
				d.logger.WarnContext(ctx, "work item delivery failed, rescheduled",
					slog.String("consumer", consumer),
					slog.Int("retry_count", item.RetryCount),
					slog.Time("scheduled_at", item.ScheduledAt),
					slog.String("reason", reason),
					slog.Any("error", handlerErr),
				)
			}
			return statusRetry, nil
		}
	}

	if err := d.hospital.Admit(ctx, item, consumer, reason, cause); err != nil {
		return "", err
	}
	if err := d.repo.Delete(ctx, item); err != nil {
		return "", err
	}

	if d.logger != nil {
		d.logger.ErrorContext(ctx, "work item hospitalized",
			slog.String("consumer", consumer),
			slog.Int("retry_count", item.RetryCount),
			slog.String("reason", reason),
			slog.Any("error", handlerErr),
		)
	}
	return statusHospitalized, nil
}
