package worker

import (
	"context"
	"errors"
	"sync"
)

// ErrQueueFull is returned by TrySubmit when the task queue is at capacity.
var ErrQueueFull = errors.New("task queue is full")

// ErrPoolClosed is returned when submitting to a drained or shut down pool.
var ErrPoolClosed = errors.New("worker pool is closed")

// Task is a unit of work executed by the pool. Tasks record their own
// outcomes; the pool only schedules them.
type Task interface {
	Execute(ctx context.Context)
}

// TaskFunc adapts a function to the Task interface.
type TaskFunc func(ctx context.Context)

// Execute runs the function.
func (f TaskFunc) Execute(ctx context.Context) { f(ctx) }

// Pool runs tasks on a fixed set of workers over a bounded queue. It serves
// both one-shot batch runs (submit everything, then Drain) and long-lived
// service use (TrySubmit with queue-full backpressure, Shutdown on exit).
type Pool struct {
	workers int
	tasks   chan Task
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// NewPool creates a pool. Non-positive workers default to 1; a non-positive
// queue size defaults to twice the worker count.
func NewPool(workers, queueSize int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = workers * 2
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Pool{
		workers: workers,
		tasks:   make(chan Task, queueSize),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the workers.
func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case task, ok := <-p.tasks:
			if !ok {
				return
			}
			task.Execute(p.ctx)
		}
	}
}

// TrySubmit queues the task without blocking. A full queue returns
// ErrQueueFull so the caller can fall back to running synchronously.
func (p *Pool) TrySubmit(task Task) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPoolClosed
	}

	select {
	case <-p.ctx.Done():
		return ErrPoolClosed
	case p.tasks <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// Submit queues the task, blocking until there is room or ctx is done.
// Callers must not submit concurrently with Drain.
func (p *Pool) Submit(ctx context.Context, task Task) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()

	if closed {
		return ErrPoolClosed
	}

	select {
	case <-p.ctx.Done():
		return ErrPoolClosed
	case <-ctx.Done():
		return ctx.Err()
	case p.tasks <- task:
		return nil
	}
}

// QueueDepth reports how many tasks are waiting for a worker.
func (p *Pool) QueueDepth() int {
	return len(p.tasks)
}

// Drain stops accepting tasks, runs everything already queued, and waits
// for the workers to exit.
func (p *Pool) Drain() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.wg.Wait()
		return
	}
	p.closed = true
	p.mu.Unlock()

	close(p.tasks)
	p.wg.Wait()
	p.cancel()
}

// Shutdown cancels the pool context and waits for the workers to exit.
// Queued tasks are abandoned; running tasks see the cancellation.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	p.cancel()
	p.wg.Wait()
}
