// Copyright 2024-2026 Aiku AI

// Package workerpool runs jobs on a fixed set of goroutines fed by an
// unbounded FIFO queue. A job that fails or panics is logged and dropped;
// its worker moves on to the next job.
package workerpool

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/panics"
)

// DefaultSize is the number of workers used when New is given zero.
const DefaultSize = 10

// Job is one unit of work.
type Job interface {
	ID() string
	Run(ctx context.Context) error
}

// FailureReporter is implemented by jobs that want to hear about their own
// failure, e.g. to tell a user their command broke.
type FailureReporter interface {
	OnFailure(ctx context.Context, err error)
}

// Stats is a snapshot of the pool counters.
type Stats struct {
	Submitted int64
	Completed int64
	Failed    int64
	Queued    int
}

// Pool is a fixed-size worker pool.
type Pool struct {
	size int
	log  zerolog.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []Job
	started bool
	stopped bool
	wg      sync.WaitGroup

	submitted atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
}

func New(size int, log zerolog.Logger) *Pool {
	if size <= 0 {
		size = DefaultSize
	}
	p := &Pool{
		size: size,
		log:  log.With().Str("component", "worker_pool").Logger(),
	}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return p.size
}

// Start launches the workers. They stop when ctx is cancelled or Stop is called.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	p.wg.Add(p.size)
	for i := range p.size {
		go p.work(ctx, i)
	}
	context.AfterFunc(ctx, p.shutdown)
	p.log.Info().Int("workers", p.size).Msg("Worker pool started")
}

// Submit queues a job. It never blocks. It returns false once the pool is stopped.
func (p *Pool) Submit(job Job) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return false
	}
	p.queue = append(p.queue, job)
	p.submitted.Add(1)
	p.cond.Signal()
	return true
}

// Stop makes workers exit after their current job and waits for them.
// Queued jobs are discarded.
func (p *Pool) Stop() {
	p.shutdown()
	p.wg.Wait()
}

func (p *Pool) shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	p.stopped = true
	if len(p.queue) > 0 {
		p.log.Warn().Int("discarded", len(p.queue)).Msg("Discarding queued jobs on shutdown")
		p.queue = nil
	}
	p.cond.Broadcast()
}

// Stats returns the current counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	queued := len(p.queue)
	p.mu.Unlock()
	return Stats{
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
		Queued:    queued,
	}
}

func (p *Pool) next() (Job, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.queue) == 0 && !p.stopped {
		p.cond.Wait()
	}
	if p.stopped {
		return nil, false
	}
	job := p.queue[0]
	p.queue[0] = nil
	p.queue = p.queue[1:]
	return job, true
}

func (p *Pool) work(ctx context.Context, worker int) {
	defer p.wg.Done()
	for {
		job, ok := p.next()
		if !ok {
			return
		}
		p.execute(ctx, worker, job)
	}
}

// execute runs one job inside a failure boundary: neither a returned error
// nor a panic escapes it.
func (p *Pool) execute(ctx context.Context, worker int, job Job) {
	defer p.completed.Add(1)

	var err error
	if rec := panics.Try(func() { err = job.Run(ctx) }); rec != nil {
		err = rec.AsError()
	}
	if err == nil {
		return
	}

	p.failed.Add(1)
	p.log.Error().Err(err).
		Int("worker", worker).
		Str("job_id", job.ID()).
		Msg("Job failed")

	if fr, ok := job.(FailureReporter); ok {
		if rec := panics.Try(func() { fr.OnFailure(ctx, err) }); rec != nil {
			p.log.Error().Err(rec.AsError()).
				Str("job_id", job.ID()).
				Msg("Failure reporter panicked")
		}
	}
}
