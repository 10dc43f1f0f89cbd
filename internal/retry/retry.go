// SPDX-License-Identifier: MPL-2.0

// Package retry runs an operation a bounded number of times with exponential
// backoff between attempts.
package retry

import (
	"context"
	"fmt"
	"time"
)

// DefaultMaxBackoff caps a single backoff interval.
const DefaultMaxBackoff = 30 * time.Second

// sleep waits for d or until ctx is done. Tests replace it to avoid real delays.
var sleep = func(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Backoff returns the wait before the given attempt (attempt >= 1):
// base, 2*base, 4*base and so on, capped at DefaultMaxBackoff.
func Backoff(base time.Duration, attempt int) time.Duration {
	if attempt < 1 || base <= 0 {
		return 0
	}
	d := base
	for range attempt - 1 {
		d *= 2
		if d >= DefaultMaxBackoff {
			return DefaultMaxBackoff
		}
	}
	return d
}

// WithBackoff retries op up to maxAttempts times with exponential backoff.
// It checks ctx between attempts and during the wait, so cancellation is
// honored immediately.
//
// op returns (shouldRetry bool, err error). If shouldRetry is false, err is
// returned immediately (nil on success, non-nil on permanent failure).
// On exhaustion the last error is returned; op has then run exactly
// maxAttempts times.
func WithBackoff(
	ctx context.Context,
	maxAttempts int,
	baseBackoff time.Duration,
	op func(attempt int) (retry bool, err error),
) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := range maxAttempts {
		if attempt > 0 {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("retry aborted: %w", err)
			}
			if err := sleep(ctx, Backoff(baseBackoff, attempt)); err != nil {
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
