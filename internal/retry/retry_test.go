package retry

import (
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var errInsufficientFunds = errors.New("insufficient funds")

type gatewayError struct {
	code int
}

func (e *gatewayError) Error() string { return fmt.Sprintf("gateway returned %d", e.code) }

type coded struct{}

func (coded) Error() string  { return "coded failure" }
func (coded) Reason() string { return "CODED" }

func TestLinear_Delay(t *testing.T) {
	l := NewLinear(20*time.Second, 0)

	assert.Equal(t, 20*time.Second, l.Delay(1))
	assert.Equal(t, 40*time.Second, l.Delay(2))
	assert.Equal(t, 60*time.Second, l.Delay(3))
	assert.Equal(t, 20*time.Second, l.Delay(0))

	capped := NewLinear(20*time.Second, 30*time.Second)
	assert.Equal(t, 30*time.Second, capped.Delay(5))
}

func TestExponential_Delay(t *testing.T) {
	e := NewExponential(time.Second, 2, 0)

	assert.Equal(t, time.Second, e.Delay(1))
	assert.Equal(t, 2*time.Second, e.Delay(2))
	assert.Equal(t, 8*time.Second, e.Delay(4))

	capped := NewExponential(time.Second, 3, 10*time.Second)
	assert.Equal(t, 9*time.Second, capped.Delay(3))
	assert.Equal(t, 10*time.Second, capped.Delay(4))

	defaultRate := NewExponential(time.Second, 0, 0)
	assert.Equal(t, 4*time.Second, defaultRate.Delay(3))

	// 30s * 2^49 does not fit in a Duration.
	uncapped := NewExponential(30*time.Second, 2, 0)
	assert.Equal(t, time.Duration(math.MaxInt64), uncapped.Delay(50))
	assert.Equal(t, time.Duration(math.MaxInt64), uncapped.Delay(5000))
	assert.Equal(t, time.Hour, NewExponential(30*time.Second, 2, time.Hour).Delay(50))
}

func TestConstant_Delay(t *testing.T) {
	c := NewConstant(5 * time.Second)
	assert.Equal(t, 5*time.Second, c.Delay(1))
	assert.Equal(t, 5*time.Second, c.Delay(10))
}

func TestPolicy_Decide(t *testing.T) {
	now := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	policy := Policy{MaxRetries: 3, Strategy: NewLinear(20*time.Second, 0)}

	tests := []struct {
		name       string
		retryCount int
		expected   Decision
	}{
		{
			name:       "first failure",
			retryCount: 0,
			expected:   Decision{RetryCount: 1, NextAt: now.Add(20 * time.Second)},
		},
		{
			name:       "second failure",
			retryCount: 1,
			expected:   Decision{RetryCount: 2, NextAt: now.Add(40 * time.Second)},
		},
		{
			name:       "third failure",
			retryCount: 2,
			expected:   Decision{RetryCount: 3, NextAt: now.Add(60 * time.Second)},
		},
		{
			name:       "retries exhausted",
			retryCount: 3,
			expected:   Decision{Terminal: true, RetryCount: 3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, policy.Decide(tt.retryCount, now))
		})
	}
}

func TestPolicy_BackoffIsMonotonic(t *testing.T) {
	strategies := map[string]Strategy{
		"linear":      NewLinear(20*time.Second, 0),
		"exponential": NewExponential(time.Second, 2, 0),
	}

	for name, strategy := range strategies {
		t.Run(name, func(t *testing.T) {
			policy := Policy{MaxRetries: 8, Strategy: strategy}
			now := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)

			var previous time.Time
			for retryCount := 0; retryCount < policy.MaxRetries; retryCount++ {
				decision := policy.Decide(retryCount, now)
				assert.False(t, decision.Terminal)
				assert.True(t, decision.NextAt.After(previous))
				previous = decision.NextAt
			}
		})
	}
}

func TestPolicy_ZeroMaxRetriesIsImmediatelyTerminal(t *testing.T) {
	decision := Policy{MaxRetries: 0}.Decide(0, time.Now())
	assert.True(t, decision.Terminal)
}

func TestPermanent(t *testing.T) {
	assert.Nil(t, Permanent(nil))

	err := Permanent(errInsufficientFunds)
	assert.True(t, IsPermanent(err))
	assert.True(t, IsPermanent(fmt.Errorf("wrapped: %w", err)))
	assert.ErrorIs(t, err, errInsufficientFunds)
	assert.Equal(t, "insufficient funds", err.Error())

	assert.False(t, IsPermanent(errInsufficientFunds))
}

func TestReason(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{name: "nil", err: nil, expected: ""},
		{name: "sentinel", err: errInsufficientFunds, expected: "insufficient funds"},
		{name: "wrapped sentinel", err: fmt.Errorf("charge: %w", errInsufficientFunds), expected: "insufficient funds"},
		{name: "typed", err: &gatewayError{code: 502}, expected: "*retry.gatewayError"},
		{name: "wrapped typed", err: fmt.Errorf("call: %w", &gatewayError{code: 502}), expected: "*retry.gatewayError"},
		{name: "reasoner", err: fmt.Errorf("call: %w", coded{}), expected: "CODED"},
		{name: "permanent", err: Permanent(errInsufficientFunds), expected: "insufficient funds"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Reason(tt.err))
		})
	}
}
