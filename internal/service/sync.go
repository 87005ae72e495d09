package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"feedsync/internal/config"
	"feedsync/internal/domain"
	"feedsync/internal/merge"
	"feedsync/internal/metrics"
	"feedsync/internal/normalize"
	"feedsync/internal/views"
)

// SyncService refreshes a group of feeds and holds the current state shown
// to the presentation layer.
type SyncService struct {
	fetcher   FeedFetcher
	store     FeedStore
	txManager TransactionManager
	publisher Publisher
	merger    *merge.Merger
	broker    *views.Broker
	logger    *slog.Logger
	config    config.SyncConfig
	now       func() time.Time

	refreshing atomic.Bool

	mu      sync.RWMutex
	group   domain.FeedGroup
	current string

	publishMu sync.Mutex
}

// NewSyncService creates the service. publisher may be nil.
func NewSyncService(
	fetcher FeedFetcher,
	store FeedStore,
	txManager TransactionManager,
	publisher Publisher,
	logger *slog.Logger,
	cfg config.SyncConfig,
) *SyncService {
	equal := merge.StrictEqual
	if cfg.IgnoreUserState {
		equal = merge.ContentEqual
	}

	return &SyncService{
		fetcher:   fetcher,
		store:     store,
		txManager: txManager,
		publisher: publisher,
		merger:    merge.New(equal),
		broker:    views.NewBroker(),
		logger:    logger.With("component", "sync"),
		config:    cfg,
		now:       time.Now,
	}
}

type feedResult struct {
	feed domain.Feed
	err  error
}

// Sync fetches every feed of subscriptions concurrently, merges each with
// its old state and persists the result. Feeds that fail to fetch or parse
// are logged and left out, or kept unchanged with CarryForwardFailed.
// Persistence failures are returned joined, along with the new group.
func (s *SyncService) Sync(ctx context.Context, subscriptions domain.FeedGroup) (*domain.FeedGroup, error) {
	if !s.beginRefresh() {
		return nil, domain.ErrSyncInProgress
	}
	defer s.endRefresh()

	return s.sync(ctx, subscriptions)
}

// Refresh loads the stored subscriptions and syncs them.
func (s *SyncService) Refresh(ctx context.Context) (*domain.FeedGroup, error) {
	if !s.beginRefresh() {
		return nil, domain.ErrSyncInProgress
	}
	defer s.endRefresh()

	group, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	return s.sync(ctx, group)
}

// IsRefreshing reports whether a sync is in flight.
func (s *SyncService) IsRefreshing() bool {
	return s.refreshing.Load()
}

func (s *SyncService) sync(ctx context.Context, subscriptions domain.FeedGroup) (*domain.FeedGroup, error) {
	startTime := time.Now()
	cycleID := uuid.NewString()
	logger := s.logger.With("cycle_id", cycleID)

	logger.Info("starting sync",
		"feeds", len(subscriptions.Feeds),
		"max_concurrency", s.config.MaxConcurrency,
	)

	results := make([]feedResult, len(subscriptions.Feeds))

	var g errgroup.Group
	if s.config.MaxConcurrency > 0 {
		g.SetLimit(s.config.MaxConcurrency)
	}
	for i, old := range subscriptions.Feeds {
		g.Go(func() error {
			results[i] = s.refreshFeed(ctx, old)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		logger.Warn("sync canceled", "error", err)
		metrics.RecordSync("canceled", time.Since(startTime), 0, 0, 0, 0)
		return nil, err
	}

	stats := domain.SyncStats{
		CycleID: cycleID,
		Feeds:   len(subscriptions.Feeds),
	}

	var next domain.FeedGroup
	var refreshed []domain.Feed
	for i, r := range results {
		old := subscriptions.Feeds[i]
		if r.err != nil {
			stats.Failed++
			stats.FailedSources = append(stats.FailedSources, old.Source)
			logger.Warn("failed to refresh feed", "feed", old.Source, "error", r.err)

			if s.config.CarryForwardFailed {
				next.Add(old.Clone())
				stats.CarriedOver++
			}
			continue
		}

		stats.Refreshed++
		next.Add(r.feed)
		refreshed = append(refreshed, r.feed)
	}

	var persistErrs []error
	for i := range refreshed {
		feed := &refreshed[i]
		err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
			return s.store.Upsert(txCtx, feed)
		})
		if err != nil {
			stats.PersistErrors++
			persistErrs = append(persistErrs, &domain.PersistenceError{Source: feed.Source, Err: err})
			logger.Error("failed to persist feed", "feed", feed.Source, "error", err)
		}
	}

	stats.Articles = len(next.Articles())
	stats.Duration = time.Since(startTime)

	s.mu.Lock()
	s.group = next.Clone()
	s.mu.Unlock()

	status := "ok"
	if len(persistErrs) > 0 {
		status = "persist_error"
	}
	metrics.RecordSync(status, stats.Duration, stats.Refreshed, stats.Failed, stats.CarriedOver, stats.Articles)

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, domain.NewSyncReport(stats, next)); err != nil {
			logger.Error("failed to publish sync report", "error", err)
		}
	}

	logger.Info("sync completed",
		"refreshed", stats.Refreshed,
		"failed", stats.Failed,
		"carried_over", stats.CarriedOver,
		"persist_errors", stats.PersistErrors,
		"articles", stats.Articles,
		"duration", stats.Duration,
	)

	return &next, errors.Join(persistErrs...)
}

func (s *SyncService) refreshFeed(ctx context.Context, old domain.Feed) feedResult {
	if s.config.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.FetchTimeout)
		defer cancel()
	}

	ch, err := s.fetcher.Fetch(ctx, old.Source)
	if err != nil {
		return feedResult{err: err}
	}
	if ch == nil {
		return feedResult{err: &domain.ParseError{URL: old.Source, Err: errors.New("empty document")}}
	}

	fetched := normalize.Feed(old.Source, ch)
	return feedResult{feed: s.merger.Merge(old, fetched)}
}

func (s *SyncService) beginRefresh() bool {
	s.mu.Lock()
	if s.refreshing.Load() {
		s.mu.Unlock()
		return false
	}
	s.refreshing.Store(true)
	s.mu.Unlock()

	metrics.SetRefreshing(true)
	s.publishViews()
	return true
}

func (s *SyncService) endRefresh() {
	s.refreshing.Store(false)
	metrics.SetRefreshing(false)
	s.publishViews()
}

func (s *SyncService) publishViews() {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	s.mu.RLock()
	snapshot := views.Build(s.group, s.current, s.refreshing.Load())
	s.mu.RUnlock()

	s.broker.Publish(snapshot)
}

func (s *SyncService) load(ctx context.Context) (domain.FeedGroup, error) {
	feeds, err := s.store.GetAll(ctx)
	if err != nil {
		return domain.FeedGroup{}, fmt.Errorf("load feeds: %w", err)
	}
	group := domain.NewFeedGroup(feeds...)

	if len(group.Feeds) == 0 && len(s.config.SeedFeeds) > 0 {
		for _, source := range s.config.SeedFeeds {
			group.Add(domain.Feed{Source: source, Articles: []domain.Article{}})
		}
		err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
			return s.store.InsertAll(txCtx, group.Feeds)
		})
		if err != nil {
			return domain.FeedGroup{}, fmt.Errorf("seed feeds: %w", err)
		}
		s.logger.Info("seeded empty store", "feeds", len(group.Feeds))
	}

	s.mu.Lock()
	s.group = group.Clone()
	s.mu.Unlock()

	s.logger.Debug("loaded feeds", "feeds", len(group.Feeds))
	return group, nil
}
