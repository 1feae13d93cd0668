package domain

import (
	"fmt"
	"time"

	"github.com/allisson/courier/internal/retry"
)

// FailureDecision tells the engine what to do with an instance that just failed.
type FailureDecision struct {
	// Remove deletes the instance instead of rescheduling it.
	Remove bool
	// NextExecution is the new execution time when Remove is false.
	NextExecution time.Time
}

// FailureHandler decides the fate of a failed instance. ConsecutiveFailures already counts
// the failure being handled.
type FailureHandler interface {
	OnFailure(instance *TaskInstance, now time.Time) FailureDecision
}

type maxRetries struct {
	max   int
	inner FailureHandler
}

// MaxRetries removes the instance once its consecutive failures exceed max and otherwise
// delegates to inner.
func MaxRetries(max int, inner FailureHandler) FailureHandler {
	return maxRetries{max: max, inner: inner}
}

func (m maxRetries) OnFailure(instance *TaskInstance, now time.Time) FailureDecision {
	if instance.ConsecutiveFailures > m.max {
		return FailureDecision{Remove: true}
	}
	return m.inner.OnFailure(instance, now)
}

type backoffRetry struct {
	strategy retry.Strategy
}

// BackoffRetry reschedules the instance after strategy.Delay(consecutive failures).
func BackoffRetry(strategy retry.Strategy) FailureHandler {
	return backoffRetry{strategy: strategy}
}

func (b backoffRetry) OnFailure(instance *TaskInstance, now time.Time) FailureDecision {
	return FailureDecision{NextExecution: now.Add(b.strategy.Delay(instance.ConsecutiveFailures))}
}

// ExponentialBackoff retries after base, then base*rate, base*rate^2 and so on.
func ExponentialBackoff(base time.Duration, rate float64) FailureHandler {
	return BackoffRetry(retry.NewExponential(base, rate, 0))
}

// FixedDelayRetry retries after the same delay every time.
func FixedDelayRetry(delay time.Duration) FailureHandler {
	return BackoffRetry(retry.NewConstant(delay))
}

type rescheduleOnSchedule struct {
	schedule Schedule
}

// RescheduleOnSchedule skips to the next regular firing of schedule.
func RescheduleOnSchedule(schedule Schedule) FailureHandler {
	return rescheduleOnSchedule{schedule: schedule}
}

func (r rescheduleOnSchedule) OnFailure(_ *TaskInstance, now time.Time) FailureDecision {
	return FailureDecision{NextExecution: r.schedule.Next(now)}
}

// PanicError is the failure recorded for a task that panicked.
type PanicError struct {
	Value any
}

// Error implements error.
func (e *PanicError) Error() string {
	return fmt.Sprintf("task panicked: %v", e.Value)
}

// Reason returns the failure identifier.
func (e *PanicError) Reason() string {
	return "panic"
}
