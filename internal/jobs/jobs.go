// Package jobs runs periodic maintenance on a cron schedule.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/example/venue-booking/internal/application"
)

// ImportPurger deletes import batches past their retention window.
// *application.ImportService implements it.
type ImportPurger interface {
	PurgeOlderThan(ctx context.Context, retention time.Duration) (application.PurgeResult, error)
}

// ImportPurgeJob removes stale import batches each time it runs.
type ImportPurgeJob struct {
	purger    ImportPurger
	retention time.Duration
	timeout   time.Duration
	logger    *slog.Logger
}

// NewImportPurgeJob constructs a purge job. Each run is bounded by timeout.
func NewImportPurgeJob(purger ImportPurger, retention, timeout time.Duration, logger *slog.Logger) *ImportPurgeJob {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &ImportPurgeJob{purger: purger, retention: retention, timeout: timeout, logger: logger.With("job", "import_purge")}
}

// Run implements cron.Job.
func (j *ImportPurgeJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	if _, err := j.RunOnce(ctx); err != nil {
		j.logger.Error("import purge failed", "error", err)
	}
}

// RunOnce performs a single purge.
func (j *ImportPurgeJob) RunOnce(ctx context.Context) (application.PurgeResult, error) {
	if j == nil || j.purger == nil {
		return application.PurgeResult{}, fmt.Errorf("import purge job is not configured")
	}
	start := time.Now()
	result, err := j.purger.PurgeOlderThan(ctx, j.retention)
	if err != nil {
		return result, err
	}
	j.logger.Info("import purge completed", "purged", result.Batches, "duration_ms", time.Since(start).Milliseconds())
	return result, nil
}

// Scheduler wraps a cron runner that logs through slog.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
}

// NewScheduler returns a scheduler evaluating specs in UTC. Panicking jobs
// are recovered and a job still running at its next tick is skipped.
func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	cl := cronLogger{logger: logger.With("component", "cron")}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger: logger,
	}
}

// Add registers job under a standard cron spec or descriptor such as "@hourly".
func (s *Scheduler) Add(spec string, job cron.Job) error {
	if _, err := s.cron.AddJob(spec, job); err != nil {
		return fmt.Errorf("jobs: schedule %q: %w", spec, err)
	}
	return nil
}

// Start runs the scheduler in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("job scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop halts scheduling and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
