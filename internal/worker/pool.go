package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
)

// ErrPoolStopped is returned when submitting to a pool that has been stopped
var ErrPoolStopped = errors.New("worker pool stopped")

// Task is a unit of work executed by the pool
type Task struct {
	Name          string
	CorrelationID string
	Run           func(ctx context.Context)
}

// WorkerPool manages a pool of worker goroutines for concurrent job execution
type WorkerPool struct {
	workers int
	tasks   chan Task
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	active  atomic.Int64
	once    sync.Once
	mu      sync.RWMutex
	stopped bool
}

// NewWorkerPool creates a new worker pool
func NewWorkerPool(workers int, queueSize int) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &WorkerPool{
		workers: workers,
		tasks:   make(chan Task, queueSize),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start starts the worker pool
func (wp *WorkerPool) Start() {
	slog.Info("Starting worker pool", "workers", wp.workers)

	for i := 0; i < wp.workers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop stops accepting tasks and waits for queued and running tasks to finish.
// When ctx expires first, the context passed to running tasks is cancelled and
// ctx.Err() is returned.
func (wp *WorkerPool) Stop(ctx context.Context) error {
	wp.once.Do(func() {
		slog.Info("Stopping worker pool")

		wp.mu.Lock()
		wp.stopped = true
		close(wp.tasks)
		wp.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		wp.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		wp.cancel()
		slog.Info("Worker pool stopped")
		return nil
	case <-ctx.Done():
		wp.cancel()
		slog.Warn("Timeout waiting for worker pool to drain")
		return ctx.Err()
	}
}

// Submit submits a task to the worker pool
func (wp *WorkerPool) Submit(task Task) error {
	wp.mu.RLock()
	defer wp.mu.RUnlock()

	if wp.stopped {
		return ErrPoolStopped
	}

	select {
	case wp.tasks <- task:
		slog.Debug("Task submitted to worker pool",
			"task", task.Name,
			"correlation_id", task.CorrelationID,
		)
		return nil
	case <-wp.ctx.Done():
		return wp.ctx.Err()
	}
}

// Active returns the number of tasks currently running
func (wp *WorkerPool) Active() int {
	return int(wp.active.Load())
}

// GetQueueLength returns the current number of tasks waiting in the queue
func (wp *WorkerPool) GetQueueLength() int {
	return len(wp.tasks)
}

// worker is the worker goroutine that processes tasks
func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	slog.Debug("Worker started", "worker_id", id)

	for task := range wp.tasks {
		slog.Debug("Worker processing task",
			"worker_id", id,
			"task", task.Name,
			"correlation_id", task.CorrelationID,
		)

		wp.active.Add(1)
		task.Run(wp.ctx)
		wp.active.Add(-1)
	}

	slog.Debug("Worker stopped", "worker_id", id)
}
