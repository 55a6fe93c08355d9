// SPDX-License-Identifier: MPL-2.0

package loader

import (
	"context"
	"fmt"
	"time"
)

// SleepFunc waits for the given duration or until ctx is done, returning
// ctx.Err() in the latter case. Tests inject a recording implementation.
type SleepFunc func(ctx context.Context, d time.Duration) error

// sleepWithContext is the default SleepFunc.
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

// Backoff returns the delay inserted after the failure of the given 1-based
// attempt: baseDelay * 2^(attempt-1).
func Backoff(baseDelay time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	return baseDelay << (attempt - 1)
}

// RetryWithBackoff runs op up to maxAttempts times with exponential backoff.
// ctx is checked before each retry so callers that have given up do not pay
// for the remaining schedule.
//
// op returns (shouldRetry bool, err error). A false shouldRetry returns err
// immediately (nil on success, non-nil on permanent failure). On exhaustion
// the last error is returned. A nil sleep uses a context-aware timer.
func RetryWithBackoff(
	ctx context.Context,
	maxAttempts int,
	baseDelay time.Duration,
	sleep SleepFunc,
	op func(attempt int) (retry bool, err error),
) error {
	if sleep == nil {
		sleep = sleepWithContext
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("retry aborted: %w", err)
			}
			if err := sleep(ctx, Backoff(baseDelay, attempt-1)); err != nil {
				return fmt.Errorf("retry aborted: %w", err)
			}
		}

		retry, err := op(attempt)
		if err == nil {
			return nil
		}
		if !retry {
			return err
		}
		lastErr = err
	}
	return lastErr
}
