package agenda

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/teemow/agendacal/internal/logging"
)

// WindowClearSchedule is when the window cache is emptied.
const WindowClearSchedule = "@hourly"

// Refresher is the part of the Orchestrator driven by the scheduler.
type Refresher interface {
	Refresh(ctx context.Context) error
	Window() *Window
}

// Scheduler refreshes the agenda on a cron schedule and periodically empties
// the window cache.
type Scheduler struct {
	cron      *cron.Cron
	refresher Refresher
	logger    *slog.Logger
}

// NewScheduler creates a Scheduler that calls Refresh on refreshSpec, a
// standard five-field cron expression or descriptor. An empty refreshSpec
// disables periodic refresh; the cache is still cleared hourly. Scheduled runs
// are never cancelled mid-flight; each ends when its retries do.
func NewScheduler(refresher Refresher, refreshSpec string, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logging.WithOperation(logger, "scheduler")

	s := &Scheduler{
		cron:      cron.New(cron.WithLogger(logging.NewCronLogger(logger))),
		refresher: refresher,
		logger:    logger,
	}

	if refreshSpec != "" {
		if _, err := s.cron.AddFunc(refreshSpec, s.refresh); err != nil {
			return nil, fmt.Errorf("invalid refresh schedule %q: %w", refreshSpec, err)
		}
	}
	if _, err := s.cron.AddFunc(WindowClearSchedule, s.clearWindow); err != nil {
		return nil, fmt.Errorf("failed to schedule window cache clear: %w", err)
	}
	return s, nil
}

// Start runs the schedule in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", slog.Int("entries", len(s.cron.Entries())))
}

// Stop halts the schedule and waits for a running job until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) refresh() {
	err := s.refresher.Refresh(context.Background())
	switch {
	case err == nil:
	case errors.Is(err, ErrRunInFlight):
		s.logger.Debug("skipping scheduled refresh, run in flight")
	default:
		s.logger.Warn("scheduled refresh failed", logging.Err(err))
	}
}

func (s *Scheduler) clearWindow() {
	stats := s.refresher.Window().Stats()
	s.refresher.Window().Clear()
	s.logger.Debug("window cache cleared",
		slog.Int("entries", stats.Entries),
		slog.Uint64("hits", stats.Hits),
		slog.Uint64("misses", stats.Misses))
}
