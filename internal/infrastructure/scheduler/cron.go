package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"FeedbackLoop/internal/ports"
)

// CronScheduler triggers jobs from a standard cron expression evaluated in a
// fixed timezone.
type CronScheduler struct {
	spec   string
	loc    *time.Location
	logger *slog.Logger
	runner *cron.Cron
}

var _ ports.Scheduler = (*CronScheduler)(nil)

// New builds a scheduler from the configured cron expression and location.
func New(spec string, loc *time.Location, logger *slog.Logger) *CronScheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &CronScheduler{spec: spec, loc: loc, logger: logger}
}

// Start registers the job and begins the cron loop. Starting an already
// running scheduler is a no-op.
func (c *CronScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}
	if c.runner != nil {
		return nil
	}

	runner := cron.New(cron.WithLocation(c.loc))
	if _, err := runner.AddFunc(c.spec, func() {
		job(time.Now().In(c.loc))
	}); err != nil {
		return fmt.Errorf("parse cron expression %q: %w", c.spec, err)
	}

	runner.Start()
	c.runner = runner
	if c.logger != nil {
		c.logger.Info("scheduler started", "cron", c.spec, "timezone", c.loc.String())
	}
	return nil
}

// Stop halts the cron loop and waits for an in-flight job, bounded by ctx.
func (c *CronScheduler) Stop(ctx context.Context) error {
	if c.runner == nil {
		return nil
	}

	done := c.runner.Stop()
	c.runner = nil

	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
