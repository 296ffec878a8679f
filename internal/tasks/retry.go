package tasks

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds how a failed task is re-attempted. Every handler
// failure is retried, including "not found" lookups, since webhook events
// can arrive before the row they reference exists.
type RetryPolicy struct {
	MaxAttempts  uint64
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
}

// DefaultRetryPolicy retries three times with exponential backoff capped
// at ten minutes.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: time.Second,
		Multiplier:   2,
		MaxDelay:     600 * time.Second,
	}
}

// Run executes op under the policy. notify is called before each retry
// sleep with the attempt's error and the upcoming delay; it may be nil.
// The returned error is the last attempt's error once the policy is
// exhausted, or the context error if ctx ends first.
func (p RetryPolicy) Run(ctx context.Context, op func() error, notify func(error, time.Duration)) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.InitialDelay
	bo.Multiplier = p.Multiplier
	bo.MaxInterval = p.MaxDelay
	bo.MaxElapsedTime = 0

	attempts := p.MaxAttempts
	if attempts == 0 {
		attempts = 1
	}

	var b backoff.BackOff = backoff.WithMaxRetries(bo, attempts-1)
	b = backoff.WithContext(b, ctx)

	if notify == nil {
		return backoff.Retry(op, b)
	}
	return backoff.RetryNotify(op, b, notify)
}
