package shared

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestWorkerPoolRunsAllTasks(t *testing.T) {
	pool := NewWorkerPool(4)

	var completed int64
	for i := 0; i < 20; i++ {
		pool.Submit(func() {
			atomic.AddInt64(&completed, 1)
		})
	}
	pool.Wait()

	if completed != 20 {
		t.Errorf("Expected 20 completed tasks, got %d", completed)
	}
}

func TestWorkerPoolRespectsConcurrencyLimit(t *testing.T) {
	pool := NewWorkerPool(3)

	var running, peak int64
	var mutex sync.Mutex

	for i := 0; i < 12; i++ {
		pool.Submit(func() {
			current := atomic.AddInt64(&running, 1)
			mutex.Lock()
			if current > peak {
				peak = current
			}
			mutex.Unlock()

			time.Sleep(10 * time.Millisecond)
			atomic.AddInt64(&running, -1)
		})
	}
	pool.Wait()

	if peak > 3 {
		t.Errorf("Concurrency limit exceeded: peak was %d", peak)
	}
}

func TestWorkerPoolDefaultsInvalidSize(t *testing.T) {
	pool := NewWorkerPool(0)
	if cap(pool.semaphore) != 4 {
		t.Errorf("Expected default pool size 4, got %d", cap(pool.semaphore))
	}
}
