package memory

import (
	"context"
	"time"

	"github.com/reins-ai/reins/internal/schema"
)

// RetryPolicy bounds retries around the pipeline's flaky boundaries
// (provider calls, LTM writes). MaxRetries is the number of retries after
// the first attempt, so MaxRetries+1 calls happen at most.
type RetryPolicy struct {
	MaxRetries  int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// DefaultRetryPolicy returns the stock policy: 3 retries, 1s base backoff
// doubling up to 30s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, BaseBackoff: time.Second, MaxBackoff: 30 * time.Second}
}

// backoffFor computes the exponential backoff before retry number attempt
// (0-based), capped at MaxBackoff.
func (p RetryPolicy) backoffFor(attempt int) time.Duration {
	d := p.BaseBackoff
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	if d > p.MaxBackoff {
		return p.MaxBackoff
	}
	return d
}

// sleepFunc waits for d or until ctx is cancelled. Injected so tests can
// observe backoff timing without waiting it out.
type sleepFunc func(ctx context.Context, d time.Duration) error

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// retryWithBackoff calls fn up to policy.MaxRetries+1 times, sleeping the
// exponential backoff between attempts, never before the first and never
// after the last. On exhaustion the most recent error is wrapped as
// CONSOLIDATION_RUN_RETRY_EXHAUSTED.
func retryWithBackoff(ctx context.Context, policy RetryPolicy, sleep sleepFunc, fn func(context.Context) error) error {
	if sleep == nil {
		sleep = sleepWithContext
	}

	var lastErr error
	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, policy.backoffFor(attempt-1)); err != nil {
				return err
			}
		}
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
	}
	return schema.WrapError(schema.CodeRunRetryExhausted, "retries exhausted", lastErr)
}
