package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"news_offline/internal/domain"
)

// Job is a named periodic task.
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

// Start runs every job once immediately and then on its interval until ctx
// is done. With no jobs it just waits for ctx.
func (s *Scheduler) Start(ctx context.Context) error {
	if len(s.jobs) == 0 {
		s.logger.Info("no jobs scheduled")
		<-ctx.Done()
		return ctx.Err()
	}

	var wg sync.WaitGroup
	for _, job := range s.jobs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.loop(ctx, job)
		}()
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
	jobCtx := ctx
	if job.Timeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, job.Timeout)
		defer cancel()
	}

	err := job.Run(jobCtx)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrDrainInProgress):
		s.logger.Debug("job skipped, drain already running", "job", job.Name)
	case ctx.Err() != nil:
	default:
		s.logger.Error("job failed", "job", job.Name, "error", err)
	}
}
