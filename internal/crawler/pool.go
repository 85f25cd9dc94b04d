package crawler

import (
	"fmt"
	"log/slog"
	"sync"
)

// task is a unit of work run by a workerPool.
type task func()

// workerPool runs tasks on a fixed number of goroutines fed by a bounded queue.
//
// Submission never blocks: when the queue is full the task is rejected with
// ErrQueueFull. Close stops accepting tasks, runs everything already queued
// and waits for the workers to exit.
type workerPool struct {
	name   string
	tasks  chan task
	logger *slog.Logger

	// mu guards closed and the send on tasks against close(tasks).
	mu     sync.RWMutex
	closed bool

	wg sync.WaitGroup
}

// newWorkerPool starts a pool with the given number of workers and queue capacity.
func newWorkerPool(name string, workers, queueSize int, logger *slog.Logger) *workerPool {
	p := &workerPool{
		name:   name,
		tasks:  make(chan task, queueSize),
		logger: logger,
	}
	p.start(workers)
	return p
}

func (p *workerPool) start(workers int) {
	for range workers {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for t := range p.tasks {
				p.run(t)
			}
		}()
	}
}

// run executes a task, keeping the worker alive if the task panics.
func (p *workerPool) run(t task) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("task panicked", "pool", p.name, "panic", r)
		}
	}()
	t()
}

// submit queues t without blocking.
func (p *workerPool) submit(t task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return fmt.Errorf("%s pool: %w", p.name, ErrClosed)
	}

	select {
	case p.tasks <- t:
		return nil
	default:
		return fmt.Errorf("%s pool (capacity %d): %w", p.name, cap(p.tasks), ErrQueueFull)
	}
}

// close stops accepting tasks, drains the queue and joins the workers.
// It is safe to call more than once.
func (p *workerPool) close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.tasks)
	}
	p.mu.Unlock()

	p.wg.Wait()
}
