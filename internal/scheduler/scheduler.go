// Package scheduler runs the periodic maintenance jobs of the server.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"stepcounter/internal/logfields"
)

// StepFlusher retries failed step state saves.
type StepFlusher interface {
	FlushDirty(ctx context.Context) int
}

// SessionPurger removes expired login sessions.
type SessionPurger interface {
	PurgeExpiredSessions(ctx context.Context) (int64, error)
}

// Scheduler wraps a gocron scheduler.
type Scheduler struct {
	scheduler gocron.Scheduler
	logger    *slog.Logger
	ctx       context.Context
	cancel    context.CancelFunc
}

// New creates a stopped scheduler.
func New(logger *slog.Logger) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{scheduler: s, logger: logger, ctx: ctx, cancel: cancel}, nil
}

// Start begins running scheduled jobs.
func (s *Scheduler) Start() {
	s.logger.Info("Starting scheduler", slog.Int("jobs", len(s.scheduler.Jobs())))
	s.scheduler.Start()
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() error {
	s.logger.Info("Stopping scheduler")
	s.cancel()
	return s.scheduler.Shutdown()
}

// Every runs task every interval. A run that is still going when the next
// one is due causes that run to be skipped.
func (s *Scheduler) Every(name string, interval time.Duration, task func(ctx context.Context)) error {
	if interval <= 0 {
		return fmt.Errorf("job %s: interval must be > 0", name)
	}
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() { task(s.ctx) }),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to create %s job: %w", name, err)
	}
	return nil
}

// ScheduleFlush retries failed step state saves every interval.
func (s *Scheduler) ScheduleFlush(interval time.Duration, steps StepFlusher) error {
	return s.Every("step-flush", interval, func(ctx context.Context) {
		if n := steps.FlushDirty(ctx); n > 0 {
			s.logger.Info("Retried step state saves", logfields.Op("flush"), slog.Int("accumulators", n))
		}
	})
}

// ScheduleSessionCleanup purges expired sessions every interval.
func (s *Scheduler) ScheduleSessionCleanup(interval time.Duration, sessions SessionPurger) error {
	return s.Every("session-cleanup", interval, func(ctx context.Context) {
		n, err := sessions.PurgeExpiredSessions(ctx)
		if err != nil {
			s.logger.Error("Failed to purge expired sessions", logfields.Op("session-cleanup"), logfields.Error(err))
			return
		}
		if n > 0 {
			s.logger.Info("Purged expired sessions", slog.Int64("sessions", n))
		}
	})
}
