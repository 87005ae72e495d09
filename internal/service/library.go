package service

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"time"

	"feedsync/internal/domain"
	"feedsync/internal/views"
)

// Load reads the stored subscriptions, seeding the configured feeds when
// the store is empty, and publishes views of them. It holds the refresh
// guard, so it never runs alongside a sync.
func (s *SyncService) Load(ctx context.Context) (domain.FeedGroup, error) {
	if !s.beginRefresh() {
		return domain.FeedGroup{}, domain.ErrSyncInProgress
	}
	defer s.endRefresh()

	return s.load(ctx)
}

// Group returns a copy of the current feed group.
func (s *SyncService) Group() domain.FeedGroup {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.group.Clone()
}

// AddFeed subscribes to source. Adding a known source is a no-op.
func (s *SyncService) AddFeed(ctx context.Context, source string) error {
	if err := validateSource(source); err != nil {
		return err
	}

	return s.mutate(func() error {
		if _, ok := s.group.Find(source); ok {
			return nil
		}

		feed := domain.Feed{Source: source, Articles: []domain.Article{}}
		if err := s.upsert(ctx, &feed); err != nil {
			return err
		}
		s.group.Add(feed)

		s.logger.Info("feed added", "feed", source)
		return nil
	})
}

// RemoveFeed unsubscribes from source and deletes its stored articles.
func (s *SyncService) RemoveFeed(ctx context.Context, source string) error {
	return s.mutate(func() error {
		if _, ok := s.group.Find(source); !ok {
			return fmt.Errorf("%w: %s", domain.ErrFeedNotFound, source)
		}

		err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
			return s.store.DeleteBySource(txCtx, source)
		})
		if err != nil {
			return &domain.PersistenceError{Source: source, Err: err}
		}

		s.group.Remove(source)
		if s.current == source {
			s.current = ""
		}

		s.logger.Info("feed removed", "feed", source)
		return nil
	})
}

// ClearFeeds removes every subscription.
func (s *SyncService) ClearFeeds(ctx context.Context) error {
	return s.mutate(func() error {
		sources := s.group.Sources()

		err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
			for _, source := range sources {
				if err := s.store.DeleteBySource(txCtx, source); err != nil {
					return &domain.PersistenceError{Source: source, Err: err}
				}
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("clear feeds: %w", err)
		}

		s.group = domain.FeedGroup{}
		s.current = ""

		s.logger.Info("feeds cleared", "count", len(sources))
		return nil
	})
}

// SetRead marks the articles of source identified by key as read or unread.
// key is the article GUID, or its link when the GUID is empty.
func (s *SyncService) SetRead(ctx context.Context, source, key string, read bool) error {
	readDate := ""
	if read {
		readDate = s.now().UTC().Format(time.RFC3339)
	}

	return s.updateArticles(ctx, source, key, func(a *domain.Article) {
		a.Read = read
		a.ReadDate = readDate
	})
}

// SetBookmarked bookmarks or unbookmarks the articles of source identified
// by key.
func (s *SyncService) SetBookmarked(ctx context.Context, source, key string, bookmarked bool) error {
	return s.updateArticles(ctx, source, key, func(a *domain.Article) {
		a.Bookmarked = bookmarked
	})
}

// SetTags replaces the tags of source.
func (s *SyncService) SetTags(ctx context.Context, source string, tags []string) error {
	return s.updateFeed(ctx, source, func(f *domain.Feed) error {
		f.Tags = slices.Clone(tags)
		return nil
	})
}

// SetPriority sets the priority of source.
func (s *SyncService) SetPriority(ctx context.Context, source string, priority int) error {
	return s.updateFeed(ctx, source, func(f *domain.Feed) error {
		f.Priority = priority
		return nil
	})
}

// SelectFeed chooses the feed shown in the current feed view. An empty
// source clears the selection.
func (s *SyncService) SelectFeed(source string) error {
	s.mu.Lock()
	if source != "" {
		if _, ok := s.group.Find(source); !ok {
			s.mu.Unlock()
			return fmt.Errorf("%w: %s", domain.ErrFeedNotFound, source)
		}
	}
	s.current = source
	s.mu.Unlock()

	s.publishViews()
	return nil
}

// Subscribe returns a channel of view snapshots and a func that ends the
// subscription.
func (s *SyncService) Subscribe() (<-chan views.Snapshot, func()) {
	return s.broker.Subscribe()
}

// Snapshot returns the latest views.
func (s *SyncService) Snapshot() views.Snapshot {
	if snapshot, ok := s.broker.Latest(); ok {
		return snapshot
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return views.Build(s.group, s.current, s.refreshing.Load())
}

// Close ends every subscription.
func (s *SyncService) Close() {
	s.broker.Close()
}

func (s *SyncService) updateArticles(ctx context.Context, source, key string, apply func(*domain.Article)) error {
	return s.updateFeed(ctx, source, func(f *domain.Feed) error {
		found := false
		for i := range f.Articles {
			if f.Articles[i].Key() == key {
				apply(&f.Articles[i])
				found = true
			}
		}
		if !found {
			return fmt.Errorf("%w: %s in %s", domain.ErrArticleNotFound, key, source)
		}
		return nil
	})
}

func (s *SyncService) updateFeed(ctx context.Context, source string, apply func(*domain.Feed) error) error {
	return s.mutate(func() error {
		feed, ok := s.group.Find(source)
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrFeedNotFound, source)
		}

		feed = feed.Clone()
		if err := apply(&feed); err != nil {
			return err
		}
		if err := s.upsert(ctx, &feed); err != nil {
			return err
		}

		s.group.Add(feed)
		return nil
	})
}

// mutate runs fn with the state locked and publishes views when it
// succeeds. Mutations are rejected while a sync is in flight.
func (s *SyncService) mutate(fn func() error) error {
	s.mu.Lock()
	if s.refreshing.Load() {
		s.mu.Unlock()
		return domain.ErrSyncInProgress
	}
	err := fn()
	s.mu.Unlock()

	if err != nil {
		return err
	}
	s.publishViews()
	return nil
}

func (s *SyncService) upsert(ctx context.Context, feed *domain.Feed) error {
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		return s.store.Upsert(txCtx, feed)
	})
	if err != nil {
		return &domain.PersistenceError{Source: feed.Source, Err: err}
	}
	return nil
}

func validateSource(source string) error {
	u, err := url.Parse(source)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", domain.ErrInvalidSource, source)
	}
	return nil
}
