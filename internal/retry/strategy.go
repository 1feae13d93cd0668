// Package retry holds the retry and backoff primitives shared by the outbox deliverer and
// the task scheduler.
package retry

import (
	"math"
	"time"
)

// Strategy computes the delay before a retry attempt.
type Strategy interface {
	// Delay returns how long to wait before retry attempt n (1-indexed).
	Delay(attempt int) time.Duration
}

// Constant always returns the same delay.
type Constant struct {
	Interval time.Duration
}

// NewConstant creates a constant backoff strategy.
func NewConstant(interval time.Duration) *Constant {
	return &Constant{Interval: interval}
}

// Delay returns the fixed interval.
func (c *Constant) Delay(_ int) time.Duration {
	return c.Interval
}

// Linear grows the delay linearly: Base * attempt, capped at Max when Max > 0.
type Linear struct {
	Base time.Duration
	Max  time.Duration
}

// NewLinear creates a linear backoff strategy.
func NewLinear(base, maxDelay time.Duration) *Linear {
	return &Linear{Base: base, Max: maxDelay}
}

// Delay returns Base * attempt, capped at Max.
func (l *Linear) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := l.Base * time.Duration(attempt)
	if l.Max > 0 && d > l.Max {
		return l.Max
	}
	return d
}

// Exponential grows the delay geometrically: Base * Rate^(attempt-1), capped at Max when Max > 0.
// A Rate below 1 is treated as 2.
type Exponential struct {
	Base time.Duration
	Rate float64
	Max  time.Duration
}

// NewExponential creates an exponential backoff strategy.
func NewExponential(base time.Duration, rate float64, maxDelay time.Duration) *Exponential {
	return &Exponential{Base: base, Rate: rate, Max: maxDelay}
}

// Delay returns Base * Rate^(attempt-1), capped at Max.
func (e *Exponential) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	rate := e.Rate
	if rate < 1 {
		rate = 2
	}
	d := float64(e.Base) * math.Pow(rate, float64(attempt-1))
	// float64(math.MaxInt64) rounds up to 2^63, which does not convert back to a Duration.
	if d >= float64(math.MaxInt64) {
		if e.Max > 0 {
			return e.Max
		}
		return time.Duration(math.MaxInt64)
	}
	if e.Max > 0 && time.Duration(d) > e.Max {
		return e.Max
	}
	return time.Duration(d)
}
