// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package parallel

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"prose-scan/internal/observability"
)

// Handler processes one job input
type Handler[In, Out any] func(ctx context.Context, in In) (Out, error)

// Job is a unit of work submitted to the pool
type Job[In any] struct {
	ID    string
	Index int
	Input In
}

// Result represents processing results
type Result[Out any] struct {
	JobID    string
	Index    int
	Output   Out
	Error    error
	Duration time.Duration
}

// WorkerPool runs independent jobs on a fixed number of goroutines.
// Jobs share nothing except what the handler closes over.
type WorkerPool[In, Out any] struct {
	workers  int
	handler  Handler[In, Out]
	jobs     chan Job[In]
	results  chan Result[Out]
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
	observer *observability.StandardObserver
}

// NewWorkerPool creates a new worker pool
func NewWorkerPool[In, Out any](ctx context.Context, workers int, handler Handler[In, Out], observer *observability.StandardObserver) *WorkerPool[In, Out] {
	if workers <= 0 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(ctx)

	return &WorkerPool[In, Out]{
		workers:  workers,
		handler:  handler,
		jobs:     make(chan Job[In], workers*2),
		results:  make(chan Result[Out], workers*2),
		ctx:      ctx,
		cancel:   cancel,
		observer: observer,
	}
}

// Start initializes worker goroutines
func (wp *WorkerPool[In, Out]) Start() {
	for i := 0; i < wp.workers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Submit adds a job to the queue. It returns false once the pool is cancelled.
func (wp *WorkerPool[In, Out]) Submit(job Job[In]) bool {
	select {
	case wp.jobs <- job:
		return true
	case <-wp.ctx.Done():
		return false
	}
}

// Close stops accepting jobs, waits for the workers and closes Results
func (wp *WorkerPool[In, Out]) Close() {
	close(wp.jobs)
	wp.wg.Wait()
	close(wp.results)
	wp.cancel()
}

// Results returns the results channel
func (wp *WorkerPool[In, Out]) Results() <-chan Result[Out] {
	return wp.results
}

func (wp *WorkerPool[In, Out]) worker(id int) {
	defer wp.wg.Done()

	for job := range wp.jobs {
		result := wp.processJob(job, id)

		select {
		case wp.results <- result:
		case <-wp.ctx.Done():
			return
		}
	}
}

// processJob runs the handler, turning a panic into an error on that job only
func (wp *WorkerPool[In, Out]) processJob(job Job[In], workerID int) (result Result[Out]) {
	start := time.Now()
	finishTiming := wp.observer.StartTiming("worker_pool", "process_job", job.ID)

	result = Result[Out]{JobID: job.ID, Index: job.Index}
	defer func() {
		if r := recover(); r != nil {
			result.Error = fmt.Errorf("job %s panicked: %v\n%s", job.ID, r, debug.Stack())
		}
		result.Duration = time.Since(start)
		finishTiming(result.Error == nil, map[string]interface{}{
			"worker_id": workerID,
			"had_error": result.Error != nil,
		})
	}()

	if err := wp.ctx.Err(); err != nil {
		result.Error = err
		return result
	}
	result.Output, result.Error = wp.handler(wp.ctx, job.Input)
	return result
}

// Run processes inputs with the given number of workers and returns the
// results in input order.
func Run[In, Out any](ctx context.Context, workers int, ids []string, inputs []In, handler Handler[In, Out], observer *observability.StandardObserver) []Result[Out] {
	pool := NewWorkerPool(ctx, workers, handler, observer)
	pool.Start()

	go func() {
		defer pool.Close()
		for i, in := range inputs {
			id := fmt.Sprintf("job-%d", i)
			if i < len(ids) && ids[i] != "" {
				id = ids[i]
			}
			if !pool.Submit(Job[In]{ID: id, Index: i, Input: in}) {
				return
			}
		}
	}()

	results := make([]Result[Out], len(inputs))
	seen := make([]bool, len(inputs))
	for r := range pool.Results() {
		results[r.Index] = r
		seen[r.Index] = true
	}

	for i := range results {
		if !seen[i] {
			err := ctx.Err()
			if err == nil {
				err = context.Canceled
			}
			results[i] = Result[Out]{Index: i, Error: err}
			if i < len(ids) {
				results[i].JobID = ids[i]
			}
		}
	}
	return results
}
