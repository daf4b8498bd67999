// Package task provides a fire-and-forget runner for work deferred until
// after the client-facing response has been finalized (cache writes).
// A submitted job can never affect the response that scheduled it.
package task

import (
	"log/slog"
	"sync"
)

// Runner executes submitted jobs on a background worker. Submission never
// blocks; when the queue is full the job is skipped.
type Runner struct {
	jobs   chan func()
	logger *slog.Logger
	wg     sync.WaitGroup
	once   sync.Once
}

// NewRunner creates a Runner with the given queue size.
func NewRunner(queueSize int, logger *slog.Logger) *Runner {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Runner{
		jobs:   make(chan func(), queueSize),
		logger: logger.With("component", "task_runner"),
	}
}

// Start launches the worker goroutine.
func (r *Runner) Start() {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for job := range r.jobs {
			r.run(job)
		}
	}()
}

// Submit schedules a job without blocking. Returns false when the queue is
// full and the job was skipped.
func (r *Runner) Submit(job func()) bool {
	select {
	case r.jobs <- job:
		return true
	default:
		r.logger.Debug("task queue full, job skipped")
		return false
	}
}

// Close stops accepting jobs, drains the queue, and waits for the worker.
func (r *Runner) Close() {
	r.once.Do(func() {
		close(r.jobs)
	})
	r.wg.Wait()
}

// run executes one job, containing any panic so a bad job cannot take the
// worker down.
func (r *Runner) run(job func()) {
	defer func() {
		if v := recover(); v != nil {
			r.logger.Error("deferred task panicked", "panic", v)
		}
	}()
	job()
}
