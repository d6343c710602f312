package shared

import "sync"

// WorkerPool runs independent tasks on a fixed number of goroutines.
// Completion order is nondeterministic; callers must merge results
// commutatively.
type WorkerPool struct {
	semaphore chan struct{}
	wg        sync.WaitGroup
}

// NewWorkerPool creates a pool with the given maximum concurrency.
func NewWorkerPool(maxWorkers int) *WorkerPool {
	if maxWorkers <= 0 {
		maxWorkers = 4
	}
	return &WorkerPool{semaphore: make(chan struct{}, maxWorkers)}
}

// Submit enqueues a task for execution in the pool.
func (pool *WorkerPool) Submit(task func()) {
	pool.wg.Add(1)
	pool.semaphore <- struct{}{}

	go func() {
		defer pool.wg.Done()
		defer func() { <-pool.semaphore }()
		task()
	}()
}

// Wait blocks until all submitted tasks have completed.
func (pool *WorkerPool) Wait() {
	pool.wg.Wait()
}
