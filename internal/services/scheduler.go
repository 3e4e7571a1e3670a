package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"event-marketplace/internal/status"

	"github.com/robfig/cron/v3"
)

type sweeper interface {
	RunDistributionSweep(ctx context.Context) (SweepResult, error)
}

// Scheduler runs the distribution sweep on a cron schedule.
type Scheduler struct {
	cron     *cron.Cron
	sweeper  sweeper
	logger   *slog.Logger
	schedule string
	timeout  time.Duration
}

func NewScheduler(sw sweeper, logger *slog.Logger, schedule string, timeout time.Duration) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)))

	return &Scheduler{
		cron:     c,
		sweeper:  sw,
		logger:   logger,
		schedule: schedule,
		timeout:  timeout,
	}
}

// Start registers the sweep job and starts the cron loop.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.runSweep); err != nil {
		s.logger.Error("failed to schedule distribution sweep", "schedule", s.schedule, "error", err)
		return err
	}
	s.logger.Info("scheduled distribution sweep", "schedule", s.schedule)

	s.cron.Start()
	return nil
}

// Stop stops scheduling; the returned context is done once a running sweep ends.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	result, err := s.sweeper.RunDistributionSweep(ctx)
	if errors.Is(err, status.ErrSweepLocked) {
		return
	}
	if err != nil {
		s.logger.Error("distribution sweep failed", "error", err)
		return
	}
	if result.Failures > 0 {
		s.logger.Warn("distribution sweep finished with failures", "failures", result.Failures, "events", result.Failed)
	}
}
