package scheduler

import (
	"context"
	"fmt"
	"time"

	"fgcrank/ingestion/internal/config"
	"fgcrank/ingestion/internal/seeder"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Runner is the seeding entry point the scheduler drives
type Runner interface {
	Run(ctx context.Context, opts seeder.Options) (*seeder.Result, error)
}

// Scheduler runs incremental tournament syncs on a cron schedule. Each run
// resumes from the stored checkpoint, so overlapping data is reprocessed
// idempotently rather than duplicated.
type Scheduler struct {
	cfg      *config.Config
	runner   Runner
	cron     *cron.Cron
	stopChan chan struct{}
	running  chan struct{}
}

// NewScheduler creates a scheduler around a seeding runner
func NewScheduler(cfg *config.Config, runner Runner) *Scheduler {
	return &Scheduler{
		cfg:      cfg,
		runner:   runner,
		cron:     cron.New(),
		stopChan: make(chan struct{}),
		running:  make(chan struct{}, 1),
	}
}

// Start registers the sync cron job and starts the cron loop
func (s *Scheduler) Start(ctx context.Context) error {
	log.Info().Msg("Scheduler starting...")

	if _, err := s.cron.AddFunc(s.cfg.SyncCron, func() {
		select {
		case <-s.stopChan:
			return
		case s.running <- struct{}{}:
			defer func() { <-s.running }()
		default:
			log.Warn().Msg("Previous sync still running, skipping this tick")
			return
		}
		s.runSync(ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule sync: %w", err)
	}

	s.cron.Start()
	log.Info().
		Str("schedule", s.cfg.SyncCron).
		Str("country", s.cfg.SyncCountry).
		Str("state", s.cfg.SyncState).
		Msg("Incremental sync scheduled")

	return nil
}

// Stop stops the scheduler and waits out the cron loop
func (s *Scheduler) Stop() {
	log.Info().Msg("Stopping scheduler...")

	close(s.stopChan)
	if s.cron != nil {
		stopCtx := s.cron.Stop()
		select {
		case <-stopCtx.Done():
		case <-time.After(30 * time.Second):
			log.Warn().Msg("Timed out waiting for running jobs to finish")
		}
	}

	log.Info().Msg("Scheduler stopped")
}

// runSync executes one incremental seeding pass with the configured defaults
func (s *Scheduler) runSync(ctx context.Context) {
	log.Info().Msg("Running scheduled tournament sync...")

	res, err := s.runner.Run(ctx, seeder.Options{
		Country:    s.cfg.SyncCountry,
		State:      s.cfg.SyncState,
		PerPage:    s.cfg.SyncPerPage,
		Key:        s.cfg.SyncLastUpdatedKey,
		SavedGames: true,
	})
	if err != nil {
		log.Error().Err(err).Msg("Scheduled sync failed")
		return
	}

	log.Info().
		Int("fetched", res.Fetched).
		Int("processed", res.Processed).
		Int("failed", res.Failed).
		Msg("Scheduled sync complete")
}
