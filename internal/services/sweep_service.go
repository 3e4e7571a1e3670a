package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"event-marketplace/config"
	"event-marketplace/internal/status"
	"event-marketplace/models"
	"event-marketplace/monitoring"

	"golang.org/x/sync/errgroup"
)

const sweepLockKey = "lock:distribution:sweep"

type SweepResult struct {
	Eligible  int      `json:"eligible"`
	Processed int      `json:"processed"`
	Skipped   int      `json:"skipped"`
	Failures  int      `json:"failures"`
	Failed    []string `json:"failed,omitempty"`
}

type distributor interface {
	FindEligibleEvents(ctx context.Context) ([]models.Event, error)
	Distribute(ctx context.Context, eventID string) (*models.RevenueDistribution, error)
}

// SweepService drives the distribution engine over every eligible event.
type SweepService struct {
	distributor distributor
	locker      Locker
	monitor     *monitoring.Monitor
	logger      *slog.Logger
	concurrency int
	lockTTL     time.Duration
}

func NewSweepService(d distributor, locker Locker, monitor *monitoring.Monitor, logger *slog.Logger, cfg *config.Config) *SweepService {
	return &SweepService{
		distributor: d,
		locker:      locker,
		monitor:     monitor,
		logger:      logger,
		concurrency: cfg.SweepConcurrency,
		lockTTL:     cfg.SweepLockTTL,
	}
}

// RunDistributionSweep distributes every eligible event. A failing event never
// stops the sweep; already handled events are counted as skipped.
func (s *SweepService) RunDistributionSweep(ctx context.Context) (SweepResult, error) {
	start := time.Now()

	if s.locker != nil {
		release, ok, err := s.locker.Acquire(ctx, sweepLockKey, s.lockTTL)
		if err != nil {
			return SweepResult{}, fmt.Errorf("acquire sweep lock: %w", err)
		}
		if !ok {
			s.logger.Info("distribution sweep skipped, another instance holds the lock")
			return SweepResult{}, status.ErrSweepLocked
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				s.logger.Warn("failed to release sweep lock", "error", err)
			}
		}()
	}

	events, err := s.distributor.FindEligibleEvents(ctx)
	if err != nil {
		return SweepResult{}, err
	}

	s.logger.Info("distribution sweep started", "eligible", len(events))

	var (
		mu     sync.Mutex
		result = SweepResult{Eligible: len(events)}
		g      errgroup.Group
	)
	g.SetLimit(max(s.concurrency, 1))

	for _, event := range events {
		g.Go(func() error {
			d, err := s.distributor.Distribute(ctx, event.ID)

			mu.Lock()
			defer mu.Unlock()

			switch {
			case err == nil:
				result.Processed++
				s.logger.Info("event distributed", "event_id", event.ID, "distribution_id", d.ID)
			case errors.Is(err, status.ErrAlreadyDistributed),
				errors.Is(err, status.ErrDistributionInProgress),
				errors.Is(err, status.ErrNoRevenue):
				result.Skipped++
				s.logger.Info("event skipped", "event_id", event.ID, "reason", err)
			default:
				result.Failures++
				result.Failed = append(result.Failed, event.ID)
				s.logger.Error("event distribution failed", "event_id", event.ID, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	s.monitor.TrackSweep(time.Since(start), result.Eligible, result.Processed, result.Skipped, result.Failures)
	s.logger.Info("distribution sweep finished",
		"eligible", result.Eligible,
		"processed", result.Processed,
		"skipped", result.Skipped,
		"failures", result.Failures,
		"duration", time.Since(start),
	)

	return result, nil
}
