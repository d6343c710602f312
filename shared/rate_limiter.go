package shared

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// RequestWindowRateLimiter throttles outbound requests to a single
// upstream source over a sliding one-minute window. It is shared by all
// workers scraping that source and is safe for concurrent use.
type RequestWindowRateLimiter struct {
	sourceName        string
	requestsPerMinute int
	requestTimes      []time.Time
	mutex             sync.Mutex
	totalRequests     int64
}

// NewRequestWindowRateLimiter creates a limiter allowing at most
// requestsPerMinute requests in any sliding one-minute window.
func NewRequestWindowRateLimiter(sourceName string, requestsPerMinute int) *RequestWindowRateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 10
	}
	return &RequestWindowRateLimiter{
		sourceName:        sourceName,
		requestsPerMinute: requestsPerMinute,
	}
}

// Wait blocks the calling worker until a request slot is available in the
// current window, or until ctx is done. A worker may block for up to the
// full window when the per-source quota is exhausted.
func (limiter *RequestWindowRateLimiter) Wait(ctx context.Context) error {
	for {
		waitDuration := limiter.reserveSlot()
		if waitDuration <= 0 {
			return nil
		}

		logrus.WithFields(logrus.Fields{
			"component":     "RequestWindowRateLimiter",
			"source":        limiter.sourceName,
			"wait_duration": waitDuration,
			"window_limit":  limiter.requestsPerMinute,
		}).Debug("Rate limit reached, waiting for window slot")

		timer := time.NewTimer(waitDuration)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// reserveSlot prunes expired timestamps and either records the request
// (returning 0) or returns how long to wait before retrying.
func (limiter *RequestWindowRateLimiter) reserveSlot() time.Duration {
	limiter.mutex.Lock()
	defer limiter.mutex.Unlock()

	now := time.Now()
	windowStart := now.Add(-time.Minute)

	pruned := limiter.requestTimes[:0]
	for _, requestTime := range limiter.requestTimes {
		if requestTime.After(windowStart) {
			pruned = append(pruned, requestTime)
		}
	}
	limiter.requestTimes = pruned

	if len(limiter.requestTimes) < limiter.requestsPerMinute {
		limiter.requestTimes = append(limiter.requestTimes, now)
		limiter.totalRequests++
		return 0
	}

	oldest := limiter.requestTimes[0]
	return time.Minute - now.Sub(oldest)
}

// TotalRequests returns the number of requests admitted so far.
func (limiter *RequestWindowRateLimiter) TotalRequests() int64 {
	limiter.mutex.Lock()
	defer limiter.mutex.Unlock()
	return limiter.totalRequests
}

// InWindow returns how many requests currently count against the window.
func (limiter *RequestWindowRateLimiter) InWindow() int {
	limiter.mutex.Lock()
	defer limiter.mutex.Unlock()

	windowStart := time.Now().Add(-time.Minute)
	count := 0
	for _, requestTime := range limiter.requestTimes {
		if requestTime.After(windowStart) {
			count++
		}
	}
	return count
}
