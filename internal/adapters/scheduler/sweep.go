// Package scheduler drives the recurring dispute-window sweep. A cron-style
// recurring job, not a per-order timer: orders that became due while the
// process was down are picked up by the next pass.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/makersrow/escrow-engine/internal/application"
)

type SweepScheduler struct {
	scheduler gocron.Scheduler
	service   *application.Service
	logger    *slog.Logger
	interval  time.Duration
}

func NewSweepScheduler(service *application.Service, logger *slog.Logger, interval time.Duration) (*SweepScheduler, error) {
	if interval <= 0 {
		interval = time.Minute
	}
	s, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, err
	}
	return &SweepScheduler{
		scheduler: s,
		service:   service,
		logger:    logger,
		interval:  interval,
	}, nil
}

// Start registers the sweep job and begins ticking. Singleton mode keeps a
// slow pass from overlapping the next one.
func (s *SweepScheduler) Start(ctx context.Context) error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(func() {
			if _, err := s.service.RunWindowSweep(ctx); err != nil {
				s.logger.ErrorContext(ctx, "window sweep failed", "error", err)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return err
	}
	s.scheduler.Start()
	return nil
}

func (s *SweepScheduler) Stop() error {
	return s.scheduler.Shutdown()
}
