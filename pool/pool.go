// Package pool provides the shared worker pool that schedules chunk
// compression and storage I/O for every writer of a stream.
//
// Jobs are self-contained closures. Callers either fire-and-forget with
// Submit, surfacing failures through the pool's error callback, or group
// jobs into a Batch and join on the batch's counting barrier.
package pool

import (
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Job is a self-contained unit of work. Jobs run to completion; there is
// no cooperative suspension.
type Job func() error

// Pool bounds the number of concurrently running jobs across all batches
// and submissions.
type Pool struct {
	sem     chan struct{}
	onError func(error)

	// wg tracks every in-flight job so Drain can await quiescence.
	wg sync.WaitGroup
}

// New creates a pool with up to maxThreads concurrent workers.
// Zero means hardware concurrency.
func New(maxThreads int, onError func(error)) *Pool {
	if maxThreads <= 0 {
		maxThreads = runtime.NumCPU()
	}
	if maxThreads <= 0 {
		maxThreads = 1
	}
	if onError == nil {
		onError = func(error) {}
	}
	return &Pool{
		sem:     make(chan struct{}, maxThreads),
		onError: onError,
	}
}

// Workers returns the concurrency bound.
func (p *Pool) Workers() int { return cap(p.sem) }

// Submit schedules a job without a completion barrier. A failure is
// reported through the pool's error callback.
func (p *Pool) Submit(job Job) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.sem <- struct{}{}
		defer func() { <-p.sem }()

		if err := job(); err != nil {
			p.onError(err)
		}
	}()
}

// Drain blocks until every in-flight job has completed.
func (p *Pool) Drain() { p.wg.Wait() }

// Batch groups jobs behind a counting barrier. Wait returns the first
// job error.
type Batch struct {
	pool *Pool
	g    *errgroup.Group
}

// Batch creates an empty batch sharing the pool's worker limit.
func (p *Pool) Batch() *Batch {
	return &Batch{pool: p, g: new(errgroup.Group)}
}

// Go schedules a job in the batch. Submission does not block; the job
// waits for a free worker slot before running.
func (b *Batch) Go(job Job) {
	b.pool.wg.Add(1)
	b.g.Go(func() error {
		defer b.pool.wg.Done()
		b.pool.sem <- struct{}{}
		defer func() { <-b.pool.sem }()

		return job()
	})
}

// Wait blocks until every job in the batch has completed and returns the
// first error among them.
func (b *Batch) Wait() error { return b.g.Wait() }
