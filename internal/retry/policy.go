package retry

import "time"

// Decision is the outcome of applying a Policy to a failed attempt.
type Decision struct {
	// Terminal is true when no further retry is allowed.
	Terminal bool
	// RetryCount is the retry count to persist with the rescheduled item.
	RetryCount int
	// NextAt is when the next attempt is due. Zero when Terminal.
	NextAt time.Time
}

// Policy bounds the number of retries and spaces them with a Strategy.
type Policy struct {
	MaxRetries int
	Strategy   Strategy
}

// Decide returns the decision for an item that already went through retryCount retries and
// just failed again at now.
func (p Policy) Decide(retryCount int, now time.Time) Decision {
	if retryCount >= p.MaxRetries {
		return Decision{Terminal: true, RetryCount: retryCount}
	}

	next := retryCount + 1
	var delay time.Duration
	if p.Strategy != nil {
		delay = p.Strategy.Delay(next)
	}

	return Decision{RetryCount: next, NextAt: now.Add(delay)}
}
