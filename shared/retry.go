package shared

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// RetryPolicy is a reusable retry combinator with exponential backoff.
// It is applied explicitly at call sites performing network I/O.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
}

// DefaultRetryPolicy matches the scraping defaults: three attempts,
// starting at two seconds and doubling.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: 2 * time.Second, Multiplier: 2.0}
}

// Do executes fn until it succeeds, the attempt cap is reached, or ctx is
// cancelled. A function that fails k < MaxAttempts times and then
// succeeds is invoked exactly k+1 times.
func (policy RetryPolicy) Do(ctx context.Context, operationName string, fn func() error) error {
	maxAttempts := policy.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	multiplier := policy.Multiplier
	if multiplier <= 0 {
		multiplier = 2.0
	}

	var lastErr error
	delay := policy.BaseDelay

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s cancelled before attempt %d: %w", operationName, attempt, err)
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if attempt < maxAttempts {
			logrus.WithFields(logrus.Fields{
				"operation":    operationName,
				"attempt":      attempt,
				"max_attempts": maxAttempts,
				"retry_in":     delay,
			}).Warnf("Attempt %d failed for %s: %v", attempt, operationName, lastErr)

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("%s cancelled during backoff: %w", operationName, ctx.Err())
			case <-timer.C:
			}
			delay = time.Duration(float64(delay) * multiplier)
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxAttempts, lastErr)
}
