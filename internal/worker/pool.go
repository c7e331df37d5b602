// Package worker runs source syncs concurrently with per-source pacing
package worker

import (
	"context"
	"sync"
)

// Job represents a unit of work to be executed
type Job interface {
	Execute(ctx context.Context) Result
}

// Result represents the result of a job execution
type Result interface {
	GetError() error
}

// Pool manages a pool of workers that execute jobs concurrently
type Pool struct {
	workers    int
	jobQueue   chan Job
	results    chan Result
	wg         sync.WaitGroup
	ctx        context.Context
	cancelFunc context.CancelFunc
	closeOnce  sync.Once
}

// NewPool creates a pool bound to parent; cancelling parent stops workers
// from picking up queued jobs.
func NewPool(parent context.Context, workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if parent == nil {
		parent = context.Background()
	}

	ctx, cancel := context.WithCancel(parent)

	return &Pool{
		workers:    workers,
		jobQueue:   make(chan Job, workers*2),
		results:    make(chan Result, workers*2),
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// Start starts the worker pool
func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// worker delivers every result it produced; a started job is never lost,
// even when the pool is cancelled while it runs.
func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		if p.ctx.Err() != nil {
			return
		}
		select {
		case <-p.ctx.Done():
			return
		case job, ok := <-p.jobQueue:
			if !ok {
				return
			}
			p.results <- job.Execute(p.ctx)
		}
	}
}

// Submit queues a job; it reports false once the pool is cancelled
func (p *Pool) Submit(job Job) bool {
	select {
	case <-p.ctx.Done():
		return false
	case p.jobQueue <- job:
		return true
	}
}

// Close stops accepting jobs. Results is closed once running jobs finish.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.jobQueue)
		go func() {
			p.wg.Wait()
			close(p.results)
			p.cancelFunc()
		}()
	})
}

// Results streams results in completion order; callers must drain it
func (p *Pool) Results() <-chan Result {
	return p.results
}
