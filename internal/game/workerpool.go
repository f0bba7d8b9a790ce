package game

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// Job is a unit of work submitted to the WorkerPool. ctx is the pool's
// context, not the submitter's.
type Job func(ctx context.Context)

// ErrPoolClosed is returned when work is submitted after Close, or when the
// pool shuts down before a queued job got to run.
var ErrPoolClosed = errors.New("worker pool closed")

// WorkerPool runs jobs on a fixed number of goroutines fed by a bounded
// queue. Submit blocks while the queue is full.
type WorkerPool struct {
	jobs      chan Job
	quit      chan struct{}
	wg        sync.WaitGroup
	workers   int
	closeOnce sync.Once
}

// NewWorkerPool creates a new worker pool with the specified number of workers
// and job queue capacity.
func NewWorkerPool(workers, queue int) *WorkerPool {
	if workers <= 0 {
		workers = 1
	}
	if queue <= 0 {
		queue = workers * 2
	}
	return &WorkerPool{
		jobs:    make(chan Job, queue),
		quit:    make(chan struct{}),
		workers: workers,
	}
}

// Start launches the workers. Cancelling ctx closes the pool.
func (p *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case <-p.quit:
					return
				case job := <-p.jobs:
					job(ctx)
				}
			}
		}()
	}

	go func() {
		select {
		case <-ctx.Done():
			p.stop()
		case <-p.quit:
		}
	}()
}

// Done is closed once the pool stops accepting work.
func (p *WorkerPool) Done() <-chan struct{} {
	return p.quit
}

// Submit enqueues a job. It fails with ErrPoolClosed after Close and with
// ctx.Err() if ctx ends while the queue is full.
func (p *WorkerPool) Submit(ctx context.Context, job Job) error {
	select {
	case <-p.quit:
		return ErrPoolClosed
	default:
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	select {
	case <-p.quit:
		return ErrPoolClosed
	case <-ctx.Done():
		return ctx.Err()
	case p.jobs <- job:
		return nil
	}
}

const (
	jobQueued int32 = iota
	jobRunning
	jobAbandoned
)

// Do runs fn on the pool and waits for its result. A job that has not
// started when ctx ends or the pool closes is abandoned and never runs; a
// job that has started is always waited for, so its result is never lost.
func (p *WorkerPool) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	var state atomic.Int32
	done := make(chan error, 1)

	err := p.Submit(ctx, func(context.Context) {
		if !state.CompareAndSwap(jobQueued, jobRunning) {
			return
		}
		done <- fn(ctx)
	})
	if err != nil {
		return err
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		if state.CompareAndSwap(jobQueued, jobAbandoned) {
			return ctx.Err()
		}
	case <-p.quit:
		if state.CompareAndSwap(jobQueued, jobAbandoned) {
			return ErrPoolClosed
		}
	}
	return <-done
}

// Close stops accepting jobs and waits for running ones to finish. Jobs
// still queued are dropped.
func (p *WorkerPool) Close() {
	p.stop()
	p.wg.Wait()
}

func (p *WorkerPool) stop() {
	p.closeOnce.Do(func() {
		close(p.quit)
	})
}
