// Package jobs schedules background tasks on robfig/cron.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/m3rciful/winbingo/core/logger"
)

// Task is one unit of scheduled work.
type Task func(ctx context.Context) error

// Scheduler runs registered tasks until Stop.
type Scheduler struct {
	cron    *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration
}

// New builds a Scheduler. Each run gets at most timeout; zero means one minute.
func New(timeout time.Duration) *Scheduler {
	if timeout <= 0 {
		timeout = time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:    cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger))),
		ctx:     ctx,
		cancel:  cancel,
		timeout: timeout,
	}
}

// RegisterTask schedules fn under name. quiet suppresses the per-run info
// lines for high-frequency tasks; failures are always logged.
func (s *Scheduler) RegisterTask(name, schedule string, quiet bool, fn Task) error {
	id, err := s.cron.AddFunc(schedule, func() { s.run(name, quiet, fn) })
	if err != nil {
		return fmt.Errorf("jobs: register %q: %w", name, err)
	}
	logger.Info(s.ctx, logger.CompJobs, "task.registered",
		slog.String("task", name),
		slog.String("schedule", schedule),
		slog.Time("next_run", s.cron.Entry(id).Next),
	)
	return nil
}

func (s *Scheduler) run(name string, quiet bool, fn Task) {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()
	start := time.Now()
	if !quiet {
		logger.Debug(ctx, logger.CompJobs, "task.started", slog.String("task", name))
	}
	if err := fn(ctx); err != nil {
		logger.Error(ctx, logger.CompJobs, "task.failed",
			slog.String("task", name),
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
			slog.Duration("duration", logger.RoundMS(time.Since(start))),
		)
		return
	}
	if !quiet {
		logger.Info(ctx, logger.CompJobs, "task.completed",
			slog.String("task", name),
			slog.String("status", "ok"),
			slog.Duration("duration", logger.RoundMS(time.Since(start))),
		)
	}
}

// Len reports the number of registered tasks.
func (s *Scheduler) Len() int { return len(s.cron.Entries()) }

// Start begins running tasks in the background.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop cancels running tasks and waits for them to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
}
