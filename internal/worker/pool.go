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

// JobFunc adapts a function to the Job interface
type JobFunc func(ctx context.Context) Result

// Execute calls f(ctx)
func (f JobFunc) Execute(ctx context.Context) Result {
	return f(ctx)
}

type indexedJob struct {
	index int
	job   Job
}

type indexedResult struct {
	index  int
	result Result
}

// Pool manages a pool of workers that execute jobs concurrently.
// Results are returned in submission order regardless of completion order.
type Pool struct {
	workers    int
	jobQueue   chan indexedJob
	results    chan indexedResult
	submitted  int
	collected  []indexedResult
	drained    chan struct{}
	wg         sync.WaitGroup
	ctx        context.Context
	cancelFunc context.CancelFunc
	closeOnce  sync.Once
}

// NewPool creates a new worker pool with the specified number of workers.
// Cancelling parent stops the pool; queued jobs are then never executed.
func NewPool(parent context.Context, workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(parent)

	return &Pool{
		workers:    workers,
		jobQueue:   make(chan indexedJob, workers*2),
		results:    make(chan indexedResult, workers*2),
		drained:    make(chan struct{}),
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// Start starts the worker pool
func (p *Pool) Start() {
	// Results are drained while jobs are still being submitted so that a
	// full result buffer never blocks the workers
	go func() {
		defer close(p.drained)
		for ir := range p.results {
			p.collected = append(p.collected, ir)
		}
	}()

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// worker is the worker goroutine that processes jobs
func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case ij, ok := <-p.jobQueue:
			if !ok {
				return
			}
			// A job dequeued after cancellation is left unresolved
			if p.ctx.Err() != nil {
				return
			}
			result := ij.job.Execute(p.ctx)
			select {
			case p.results <- indexedResult{index: ij.index, result: result}:
			case <-p.ctx.Done():
				return
			}
		}
	}
}

// Submit submits a job to the pool and returns its result index.
// Submit must not be called concurrently with itself or after Wait.
func (p *Pool) Submit(job Job) int {
	index := p.submitted
	p.submitted++

	if p.ctx.Err() != nil {
		return index
	}
	select {
	case <-p.ctx.Done():
	case p.jobQueue <- indexedJob{index: index, job: job}:
	}
	return index
}

// Context returns the pool's context, cancelled by Cancel or the parent
func (p *Pool) Context() context.Context {
	return p.ctx
}

// Cancel stops the pool without waiting; unexecuted jobs yield nil results
func (p *Pool) Cancel() {
	p.cancelFunc()
}

// Wait waits for all jobs to complete and returns one slot per submitted
// job, in submission order. Jobs that never ran have a nil Result.
func (p *Pool) Wait() []Result {
	close(p.jobQueue)
	p.wg.Wait()
	p.closeResults()
	<-p.drained

	results := make([]Result, p.submitted)
	for _, ir := range p.collected {
		results[ir.index] = ir.result
	}

	p.cancelFunc()
	return results
}

func (p *Pool) closeResults() {
	p.closeOnce.Do(func() {
		close(p.results)
	})
}
