// Package scheduler provides the interval scheduler for the pipeline stages.
package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// Job represents a scheduled task.
type Job struct {
	Name     string
	Interval time.Duration
	Fn       func(ctx context.Context) error
}

// Scheduler runs jobs on fixed intervals. Each job ticks independently so
// collection can run more often than processing.
type Scheduler struct {
	jobs   []Job
	logger *slog.Logger
	done   chan struct{}
}

func NewScheduler() *Scheduler {
	return &Scheduler{
		logger: slog.Default(),
		done:   make(chan struct{}),
	}
}

// Add registers a job with the scheduler.
func (s *Scheduler) Add(job Job) {
	s.jobs = append(s.jobs, job)
}

// RunOnce executes all registered jobs once, in registration order. A
// failing job is logged and does not stop the remaining jobs; the first
// failure is returned.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	var firstErr error
	for _, job := range s.jobs {
		s.logger.Info("running job", "name", job.Name)
		start := time.Now()
		if err := job.Fn(ctx); err != nil {
			s.logger.Error("job failed", "name", job.Name, "error", err, "duration", time.Since(start))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		s.logger.Info("job completed", "name", job.Name, "duration", time.Since(start))
	}
	return firstErr
}

// Start begins the scheduler loop. Each job runs once immediately, then on
// its own interval, until the context is done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("scheduler started", "jobs", len(s.jobs))

	for _, job := range s.jobs {
		go s.runLoop(ctx, job)
	}

	select {
	case <-ctx.Done():
	case <-s.done:
	}
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) runLoop(ctx context.Context, job Job) {
	s.runJob(ctx, job)

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
			s.runJob(ctx, job)
		}
	}
}

func (s *Scheduler) runJob(ctx context.Context, job Job) {
	start := time.Now()
	if err := job.Fn(ctx); err != nil {
		s.logger.Error("job failed", "name", job.Name, "error", err, "duration", time.Since(start))
		return
	}
	s.logger.Info("job completed", "name", job.Name, "duration", time.Since(start))
}

// Stop stops the scheduler.
func (s *Scheduler) Stop() {
	close(s.done)
}
