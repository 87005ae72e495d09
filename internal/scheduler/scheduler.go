package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"feedsync/internal/domain"
)

const defaultRunTimeout = 5 * time.Minute

// Syncer refreshes the stored feeds.
type Syncer interface {
	Refresh(ctx context.Context) (*domain.FeedGroup, error)
}

type Scheduler struct {
	syncer     Syncer
	interval   time.Duration
	runTimeout time.Duration
	logger     *slog.Logger
}

// NewScheduler creates a scheduler that refreshes every interval, bounding
// each run by runTimeout.
func NewScheduler(syncer Syncer, interval, runTimeout time.Duration, logger *slog.Logger) *Scheduler {
	if runTimeout <= 0 {
		runTimeout = defaultRunTimeout
	}
	return &Scheduler{
		syncer:     syncer,
		interval:   interval,
		runTimeout: runTimeout,
		logger:     logger.With("component", "scheduler"),
	}
}

// Start refreshes once immediately and then on every tick until ctx is
// done.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.interval)

	s.runSync(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runSync(ctx)
		}
	}
}

func (s *Scheduler) runSync(ctx context.Context) {
	syncCtx, cancel := context.WithTimeout(ctx, s.runTimeout)
	defer cancel()

	group, err := s.syncer.Refresh(syncCtx)
	switch {
	case errors.Is(err, domain.ErrSyncInProgress):
		s.logger.Info("skipping tick, sync already running")
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		s.logger.Debug("sync interrupted by shutdown")
	case err != nil:
		s.logger.Error("sync failed", "error", err)
	default:
		s.logger.Debug("sync finished", "feeds", len(group.Feeds))
	}
}
