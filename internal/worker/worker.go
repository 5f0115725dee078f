package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Task is a function that represents a background job
type Task func(ctx context.Context) error

type WorkerPool struct {
	taskQueue chan Task
	wg        sync.WaitGroup
	isClosing atomic.Bool // thread-safe value
	mu        sync.RWMutex
	timeout   time.Duration
	logger    *zap.Logger
}

// NewWorkerPool starts size workers. Every task runs under timeout when it is positive.
func NewWorkerPool(size, queue int, timeout time.Duration, logger *zap.Logger) *WorkerPool {
	if size < 1 {
		size = 1
	}
	if queue < 1 {
		queue = 1000
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	wp := &WorkerPool{
		taskQueue: make(chan Task, queue),
		timeout:   timeout,
		logger:    logger,
	}

	// Start the workers
	for range size {
		wp.wg.Add(1) // add to WaitGroup
		go wp.startWorker()
	}

	return wp
}

func (wp *WorkerPool) startWorker() {
	defer wp.wg.Done() // signal when worker finished
	for task := range wp.taskQueue {
		wp.run(task)
	}
}

func (wp *WorkerPool) run(task Task) {
	ctx := context.Background()
	if wp.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, wp.timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			wp.logger.Error("Worker task panicked", zap.Any("panic", r))
		}
	}()
	if err := task(ctx); err != nil { // run task
		wp.logger.Warn("Worker task failed", zap.Error(err))
	}
}

// Submit queues t and reports whether it was accepted. It never blocks.
func (wp *WorkerPool) Submit(t Task) bool {
	wp.mu.RLock()
	defer wp.mu.RUnlock()

	if wp.isClosing.Load() {
		wp.logger.Warn("Task submitted during shutdown, dropping.")
		return false
	}
	select {
	case wp.taskQueue <- t: // send task to worker pool
		return true
	default:
		wp.logger.Warn("Task queue full, dropping task!")
		return false
	}
}

// Shutdown closes the queue and waits for workers to finish
func (wp *WorkerPool) Shutdown() {
	wp.mu.Lock()
	if wp.isClosing.Swap(true) {
		wp.mu.Unlock()
		return
	}
	close(wp.taskQueue) // Stop accepting new tasks
	wp.mu.Unlock()
	wp.wg.Wait() // Wait for all active workers to finish tasks
}
