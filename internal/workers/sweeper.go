package workers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-co-op/gocron/v2"

	"github.com/mcoot/fairway/internal/dependencies/clock"
	"github.com/mcoot/fairway/internal/storage"
)

// Sweeper periodically re-runs the points processor over results that are
// still unawarded after the grace period. It backs up the feed in case an
// event is lost or keeps failing.
type Sweeper struct {
	storage   storage.Storage
	processor ResultProcessor
	clock     clock.Clock
	cfg       Config
	logger    *slog.Logger
	scheduler gocron.Scheduler
}

// NewSweeper creates a new Sweeper
func NewSweeper(storage storage.Storage, processor ResultProcessor, clock clock.Clock, cfg Config, logger *slog.Logger) (*Sweeper, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultConfig().SweepInterval
	}
	return &Sweeper{
		storage:   storage,
		processor: processor,
		clock:     clock,
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "award-sweeper")),
		scheduler: scheduler,
	}, nil
}

// Start schedules the sweep. Runs never overlap.
func (s *Sweeper) Start(ctx context.Context) error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(s.cfg.SweepInterval),
		gocron.NewTask(func() {
			if _, err := s.Sweep(ctx); err != nil {
				s.logger.Error("sweep failed", slog.String("error", err.Error()))
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}
	s.scheduler.Start()
	s.logger.Info("award sweeper started", slog.Duration("interval", s.cfg.SweepInterval))
	return nil
}

// Stop shuts the scheduler down, waiting for a running sweep
func (s *Sweeper) Stop() error {
	return s.scheduler.Shutdown()
}

// Sweep processes every unawarded result older than the grace period and
// returns how many became fully awarded
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := s.clock.Now().Add(-s.cfg.SweepGrace)
	results, err := s.storage.ListUnawardedResults(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if len(results) == 0 {
		return 0, nil
	}

	s.logger.Info("sweeping unawarded results", slog.Int("count", len(results)))

	awarded := 0
	for _, result := range results {
		if ctx.Err() != nil {
			return awarded, ctx.Err()
		}
		if _, err := s.processor.ProcessResult(ctx, result.ID); err != nil {
			s.logger.Warn("sweep could not finish award",
				slog.String("result_id", string(result.ID)),
				slog.String("error", err.Error()),
			)
			continue
		}
		awarded++
	}
	return awarded, nil
}
