// Package worker provides a bounded pool for fire-and-forget background tasks.
//
// Claim submission and immediate notification sends are dispatched here so the
// triggering request returns without waiting. Submission never blocks: when
// the queue is full the task is dropped and counted, which keeps side effects
// from back-pressuring the primary transaction.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Task is a unit of background work. The context is the pool's lifecycle
// context, not the submitting request's, so tasks outlive their trigger.
type Task func(ctx context.Context)

// Pool runs tasks on a fixed number of goroutines fed by a bounded queue.
type Pool struct {
	queue   chan Task
	workers int
	logger  *slog.Logger

	dropped atomic.Int64

	startOnce sync.Once
	stopOnce  sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
}

// Option configures a Pool.
type Option func(*Pool)

// WithLogger sets a logger for dropped-task reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pool) {
		p.logger = logger
	}
}

// New creates a pool with the given worker count and queue capacity.
func New(workers, queueSize int, opts ...Option) *Pool {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	p := &Pool{
		queue:   make(chan Task, queueSize),
		workers: workers,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the workers. Safe to call once; subsequent calls are no-ops.
func (p *Pool) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		ctx, p.cancel = context.WithCancel(ctx)

		var wg sync.WaitGroup
		wg.Add(p.workers)
		for i := 0; i < p.workers; i++ {
			go func() {
				defer wg.Done()
				for {
					select {
					case <-ctx.Done():
						return
					case task := <-p.queue:
						task(ctx)
					}
				}
			}()
		}
		go func() {
			wg.Wait()
			close(p.done)
		}()
	})
}

// Submit enqueues a task. Returns false if the queue is full; the task is
// dropped, not retried.
func (p *Pool) Submit(name string, task Task) bool {
	select {
	case p.queue <- task:
		return true
	default:
		p.dropped.Add(1)
		if p.logger != nil {
			p.logger.Warn("background task dropped, queue full", "task", name)
		}
		return false
	}
}

// Dropped returns the number of tasks rejected because the queue was full.
func (p *Pool) Dropped() int64 {
	return p.dropped.Load()
}

// Stop cancels the workers and waits for them to exit. Queued tasks that have
// not started are discarded.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		if p.cancel != nil {
			p.cancel()
			<-p.done
		}
	})
}
