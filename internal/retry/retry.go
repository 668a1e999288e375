// Package retry provides the single bounded retry-with-backoff helper shared
// by every retrying call site (quote fetch, submission, confirmation polling,
// consolidation).
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy describes a bounded exponential backoff schedule.
type Policy struct {
	// MaxAttempts is the total number of tries, including the first one.
	MaxAttempts int
	// BaseDelay is the wait before the second attempt; each subsequent wait
	// doubles, capped at MaxDelay when set.
	BaseDelay time.Duration
	MaxDelay  time.Duration
	// IsRetryable classifies errors. A nil func retries everything.
	IsRetryable func(error) bool
}

// Do runs op until it succeeds, returns a non-retryable error, exhausts the
// attempt budget, or ctx is cancelled. The last error seen is returned.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.BaseDelay
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0
	if p.MaxDelay > 0 {
		bo.MaxInterval = p.MaxDelay
	}

	wrapped := func() error {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if p.IsRetryable != nil && !p.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	return backoff.Retry(wrapped, backoff.WithContext(
		backoff.WithMaxRetries(bo, uint64(p.MaxAttempts-1)), ctx))
}
