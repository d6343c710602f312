package shared

import (
	"context"
	"testing"
	"time"
)

func TestRateLimiterAdmitsUpToLimit(t *testing.T) {
	limiter := NewRequestWindowRateLimiter("test-source", 3)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := limiter.Wait(ctx); err != nil {
			t.Fatalf("Wait %d failed: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Requests within the limit should not block, took %v", elapsed)
	}

	if limiter.TotalRequests() != 3 {
		t.Errorf("Expected 3 admitted requests, got %d", limiter.TotalRequests())
	}
	if limiter.InWindow() != 3 {
		t.Errorf("Expected 3 requests in the window, got %d", limiter.InWindow())
	}
}

func TestRateLimiterBlocksOverLimit(t *testing.T) {
	limiter := NewRequestWindowRateLimiter("test-source", 2)

	if err := limiter.Wait(context.Background()); err != nil {
		t.Fatalf("First wait failed: %v", err)
	}
	if err := limiter.Wait(context.Background()); err != nil {
		t.Fatalf("Second wait failed: %v", err)
	}

	// The window is full; the third request must block until cancelled.
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := limiter.Wait(ctx)
	if err == nil {
		t.Fatal("Expected third request to block and be cancelled")
	}
	if limiter.TotalRequests() != 2 {
		t.Errorf("Cancelled request must not count, got %d", limiter.TotalRequests())
	}
}

func TestRateLimiterDefaultsInvalidLimit(t *testing.T) {
	limiter := NewRequestWindowRateLimiter("test-source", 0)
	if limiter.requestsPerMinute != 10 {
		t.Errorf("Expected default of 10 requests per minute, got %d", limiter.requestsPerMinute)
	}
}

func TestRateLimiterConcurrentAccess(t *testing.T) {
	limiter := NewRequestWindowRateLimiter("test-source", 50)
	ctx := context.Background()

	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 5; j++ {
				if err := limiter.Wait(ctx); err != nil {
					t.Errorf("Concurrent wait failed: %v", err)
					return
				}
			}
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	if limiter.TotalRequests() != 50 {
		t.Errorf("Expected 50 admitted requests, got %d", limiter.TotalRequests())
	}
}
