package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

const defaultJobTimeout = 5 * time.Minute

// Job is a unit of periodic work. Run is called once at start and then every
// Interval, each call bounded by Timeout.
type Job struct {
	Name     string
	Interval time.Duration
	Timeout  time.Duration
	Run      func(ctx context.Context) error
}

type Scheduler struct {
	jobs   []Job
	logger *slog.Logger
}

func NewScheduler(logger *slog.Logger, jobs ...Job) *Scheduler {
	return &Scheduler{
		jobs:   jobs,
		logger: logger.With("component", "scheduler"),
	}
}

// Start runs every job on its own ticker until ctx is cancelled. A failing
// run is logged and the job keeps its schedule.
func (s *Scheduler) Start(ctx context.Context) error {
	if len(s.jobs) == 0 {
		return errors.New("no jobs scheduled")
	}
	for _, job := range s.jobs {
		if job.Interval <= 0 {
			return errors.New("job " + job.Name + ": interval must be positive")
		}
	}

	s.logger.Info("scheduler started", "jobs", len(s.jobs))

	var wg sync.WaitGroup
	for _, job := range s.jobs {
		wg.Add(1)
		go func(job Job) {
			defer wg.Done()
			s.loop(ctx, job)
		}(job)
	}
	wg.Wait()

	s.logger.Info("scheduler stopped")
	return ctx.Err()
}

func (s *Scheduler) loop(ctx context.Context, job Job) {
	s.logger.Info("job scheduled", "job", job.Name, "interval", job.Interval)

	s.runJob(ctx, job)

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runJob(ctx, job)
		}
	}
}

func (s *Scheduler) runJob(ctx context.Context, job Job) {
	timeout := job.Timeout
	if timeout <= 0 {
		timeout = defaultJobTimeout
	}

	jobCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	if err := job.Run(jobCtx); err != nil {
		s.logger.Error("job failed", "job", job.Name, "error", err, "duration", time.Since(start))
		return
	}
	s.logger.Debug("job completed", "job", job.Name, "duration", time.Since(start))
}
