package montecarlo

import (
	"context"
	"runtime"
	"sync"
)

// WorkerPool runs indexed jobs on a fixed number of goroutines
type WorkerPool struct {
	numWorkers int
}

// NewWorkerPool creates a new worker pool with the specified number of workers.
// A non-positive count falls back to GOMAXPROCS.
func NewWorkerPool(numWorkers int) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = runtime.GOMAXPROCS(0)
	}
	return &WorkerPool{
		numWorkers: numWorkers,
	}
}

// Workers returns the pool size.
func (wp *WorkerPool) Workers() int {
	return wp.numWorkers
}

// Execute calls fn once for every index in [0, numJobs) across the pool.
//
// fn owns the output slot for its index, so no ordering is needed when the
// results are collected. Jobs that have not started when ctx is cancelled are
// skipped. The first error reported by any job (or ctx.Err()) is returned
// after all workers have exited.
func (wp *WorkerPool) Execute(ctx context.Context, numJobs int, fn func(index int) error) error {
	if numJobs <= 0 {
		return nil
	}

	// Create channels for work distribution and error collection
	jobs := make(chan int, numJobs)
	errs := make(chan error, numJobs)

	var wg sync.WaitGroup
	numActualWorkers := wp.numWorkers
	if numJobs < numActualWorkers {
		numActualWorkers = numJobs // Don't spawn more workers than jobs
	}

	for i := 0; i < numActualWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker(ctx, jobs, errs, fn)
		}()
	}

	for idx := 0; idx < numJobs; idx++ {
		jobs <- idx
	}
	close(jobs)

	wg.Wait()
	close(errs)

	// A closed, empty channel yields nil.
	return <-errs
}

// worker drains jobs until the channel is closed
func worker(ctx context.Context, jobs <-chan int, errs chan<- error, fn func(int) error) {
	for idx := range jobs {
		if err := ctx.Err(); err != nil {
			errs <- err
			continue
		}
		if err := fn(idx); err != nil {
			errs <- err
		}
	}
}
