// Package worker runs blocking calls off the caller's goroutine with a bound
// on how many run at once.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// DefaultMaxInFlight bounds concurrent tasks when no limit is given.
const DefaultMaxInFlight = 32

var (
	// ErrPoolClosed is returned by Do after Close.
	ErrPoolClosed = errors.New("worker pool closed")

	// ErrTaskPanicked wraps the value recovered from a panicking task.
	ErrTaskPanicked = errors.New("worker task panicked")
)

// Task is a blocking unit of work.
type Task func(ctx context.Context) error

// Pool runs tasks on their own goroutines, at most limit at a time.
type Pool struct {
	sem      *semaphore.Weighted
	limit    int64
	inFlight atomic.Int64

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewPool creates a pool. maxInFlight < 1 selects DefaultMaxInFlight.
func NewPool(maxInFlight int) *Pool {
	if maxInFlight < 1 {
		maxInFlight = DefaultMaxInFlight
	}
	return &Pool{
		sem:   semaphore.NewWeighted(int64(maxInFlight)),
		limit: int64(maxInFlight),
	}
}

// Do runs task on a worker goroutine and waits for its result.
//
// If ctx ends before a slot frees up, the task never runs and the context
// error is returned. Once started, the task runs to completion and Do returns
// its result; the task sees ctx and may stop early on its own.
func (p *Pool) Do(ctx context.Context, task Task) error {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return ErrPoolClosed
	}
	p.wg.Add(1)
	p.mu.RUnlock()

	if err := p.sem.Acquire(ctx, 1); err != nil {
		p.wg.Done()
		return fmt.Errorf("waiting for worker slot: %w", err)
	}

	result := make(chan error, 1)
	go func() {
		defer p.wg.Done()
		defer p.sem.Release(1)

		p.inFlight.Add(1)
		defer p.inFlight.Add(-1)

		result <- run(ctx, task)
	}()

	return <-result
}

func run(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrTaskPanicked, r)
		}
	}()
	return task(ctx)
}

// InFlight returns the number of tasks currently running.
func (p *Pool) InFlight() int64 {
	return p.inFlight.Load()
}

// Limit returns the concurrency bound.
func (p *Pool) Limit() int64 {
	return p.limit
}

// Close stops accepting tasks and waits for running ones to finish.
// Safe to call more than once.
func (p *Pool) Close() {
	_ = p.Shutdown(context.Background())
}

// Shutdown stops accepting tasks and waits for running ones until ctx ends.
// It returns ctx's error if tasks were still running; those tasks keep
// their goroutines. Safe to call more than once.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for %d running tasks: %w", p.InFlight(), ctx.Err())
	}
}
