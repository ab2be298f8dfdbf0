// Package scheduler runs periodic maintenance jobs.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/tournament-bracket/services"
	"github.com/robfig/cron/v3"
)

const sweepTimeout = 5 * time.Minute

// ConsistencySweeper is what the scheduler needs from the consistency service.
type ConsistencySweeper interface {
	Sweep(ctx context.Context) ([]*services.ConsistencyReport, error)
}

type Scheduler struct {
	cron    *cron.Cron
	sweeper ConsistencySweeper
	logger  *slog.Logger
}

// New registers the consistency sweep under a standard five-field cron spec.
// Overlapping runs are skipped.
func New(spec string, sweeper ConsistencySweeper, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{sweeper: sweeper, logger: logger}
	s.cron = cron.New(cron.WithChain(
		cron.Recover(cron.DiscardLogger),
		cron.SkipIfStillRunning(cron.DiscardLogger),
	))
	if _, err := s.cron.AddFunc(spec, s.RunSweep); err != nil {
		return nil, fmt.Errorf("invalid consistency schedule %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", slog.Int("jobs", len(s.cron.Entries())))
}

// Stop waits for a running sweep to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("scheduler stop timed out")
	}
}

func (s *Scheduler) RunSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	start := time.Now()
	reports, err := s.sweeper.Sweep(ctx)
	if err != nil {
		s.logger.Error("consistency sweep failed", slog.Any("error", err))
		return
	}
	inconsistent := 0
	for _, r := range reports {
		if !r.Consistent {
			inconsistent++
		}
	}
	s.logger.Info("consistency sweep completed",
		slog.Int("tournaments", len(reports)),
		slog.Int("inconsistent", inconsistent),
		slog.Duration("duration", time.Since(start)))
}
