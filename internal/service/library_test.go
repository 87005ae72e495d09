package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/mock/gomock"

	"feedsync/internal/domain"
)

func (s *SyncServiceTestSuite) load(feeds ...domain.Feed) {
	s.store.EXPECT().GetAll(gomock.Any()).Return(feeds, nil)
	_, err := s.service.Load(context.Background())
	s.Require().NoError(err)
}

func (s *SyncServiceTestSuite) TestLoad_PublishesSnapshot() {
	updates, unsubscribe := s.service.Subscribe()
	defer unsubscribe()

	s.load(
		domain.Feed{Source: sourceB, Title: "beta"},
		domain.Feed{Source: sourceA, Title: "Alpha"},
	)

	select {
	case snap := <-updates:
		s.Require().Len(snap.Feeds, 2)
		s.Equal("Alpha", snap.Feeds[0].Title)
		s.False(snap.Refreshing)
	case <-time.After(time.Second):
		s.FailNow("no snapshot received")
	}
}

func (s *SyncServiceTestSuite) TestLoad_RejectedWhileSyncRuns() {
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	s.fetcher.EXPECT().Fetch(gomock.Any(), sourceA).DoAndReturn(
		func(context.Context, string) (*domain.Channel, error) {
			close(started)
			<-release
			return channel("A"), nil
		},
	)
	s.expectUpserts(1)

	done := make(chan error, 1)
	go func() {
		_, err := s.service.Sync(ctx, domain.NewFeedGroup(domain.Feed{Source: sourceA}))
		done <- err
	}()
	<-started

	_, err := s.service.Load(ctx)
	s.ErrorIs(err, domain.ErrSyncInProgress)

	close(release)
	s.Require().NoError(<-done)
	s.Equal([]string{sourceA}, s.service.Group().Sources())
}

func (s *SyncServiceTestSuite) TestLoad_HoldsRefreshGuard() {
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	s.store.EXPECT().GetAll(gomock.Any()).DoAndReturn(
		func(context.Context) ([]domain.Feed, error) {
			close(started)
			<-release
			return []domain.Feed{{Source: sourceB}}, nil
		},
	)

	done := make(chan error, 1)
	go func() {
		_, err := s.service.Load(ctx)
		done <- err
	}()
	<-started

	s.True(s.service.IsRefreshing())
	_, err := s.service.Sync(ctx, domain.NewFeedGroup(domain.Feed{Source: sourceA}))
	s.ErrorIs(err, domain.ErrSyncInProgress)

	close(release)
	s.Require().NoError(<-done)
	s.False(s.service.IsRefreshing())
	s.Equal([]string{sourceB}, s.service.Group().Sources())
}

func (s *SyncServiceTestSuite) TestLoad_DoesNotSeedWithoutSeedFeeds() {
	s.store.EXPECT().GetAll(gomock.Any()).Return([]domain.Feed{}, nil)

	group, err := s.service.Load(context.Background())

	s.Require().NoError(err)
	s.Empty(group.Feeds)
}

func (s *SyncServiceTestSuite) TestLoad_SeedError() {
	cfg := s.cfg
	cfg.SeedFeeds = []string{sourceA}
	service := s.newService(cfg, nil)
	defer service.Close()

	s.store.EXPECT().GetAll(gomock.Any()).Return(nil, nil)
	s.expectTx(1)
	s.store.EXPECT().InsertAll(gomock.Any(), gomock.Any()).Return(errors.New("unique violation"))

	_, err := service.Load(context.Background())

	s.ErrorContains(err, "seed feeds")
}

func (s *SyncServiceTestSuite) TestSetRead() {
	ctx := context.Background()
	s.service.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
	s.load(domain.Feed{Source: sourceA, Articles: []domain.Article{storedArticle("a1", "A1"), storedArticle("a2", "A2")}})

	written := s.expectUpserts(2)

	s.Require().NoError(s.service.SetRead(ctx, sourceA, "a2", true))

	s.Require().Len(*written, 1)
	a2 := (*written)[0].Articles[1]
	s.True(a2.Read)
	s.Equal("2024-01-02T03:04:05Z", a2.ReadDate)
	s.False((*written)[0].Articles[0].Read)

	snap := s.service.Snapshot()
	s.Equal([]string{"a2"}, guids(snap.Read))

	s.Require().NoError(s.service.SetRead(ctx, sourceA, "a2", false))
	a2 = (*written)[1].Articles[1]
	s.False(a2.Read)
	s.Empty(a2.ReadDate)
	s.Empty(s.service.Snapshot().Read)
}

func (s *SyncServiceTestSuite) TestSetRead_KeyFallsBackToLink() {
	noGUID := storedArticle("", "untitled")
	noGUID.Link = "https://example.com/story"
	s.load(domain.Feed{Source: sourceA, Articles: []domain.Article{noGUID}})

	written := s.expectUpserts(1)

	s.Require().NoError(s.service.SetRead(context.Background(), sourceA, "https://example.com/story", true))
	s.True((*written)[0].Articles[0].Read)
}

func (s *SyncServiceTestSuite) TestSetRead_UpdatesEveryCopy() {
	stored := storedArticle("a1", "A1")
	stored.Bookmarked = true
	s.load(domain.Feed{Source: sourceA, Articles: []domain.Article{stored, storedArticle("a1", "A1")}})

	written := s.expectUpserts(1)

	s.Require().NoError(s.service.SetRead(context.Background(), sourceA, "a1", true))
	for _, a := range (*written)[0].Articles {
		s.True(a.Read)
	}
}

func (s *SyncServiceTestSuite) TestSetRead_NotFound() {
	ctx := context.Background()
	s.load(domain.Feed{Source: sourceA, Articles: []domain.Article{storedArticle("a1", "A1")}})

	s.ErrorIs(s.service.SetRead(ctx, sourceB, "a1", true), domain.ErrFeedNotFound)
	s.ErrorIs(s.service.SetRead(ctx, sourceA, "missing", true), domain.ErrArticleNotFound)
}

func (s *SyncServiceTestSuite) TestSetBookmarked() {
	s.load(domain.Feed{Source: sourceA, Articles: []domain.Article{storedArticle("a1", "A1")}})
	written := s.expectUpserts(1)

	s.Require().NoError(s.service.SetBookmarked(context.Background(), sourceA, "a1", true))

	s.True((*written)[0].Articles[0].Bookmarked)
	s.Equal([]string{"a1"}, guids(s.service.Snapshot().Bookmarked))
}

func (s *SyncServiceTestSuite) TestSetBookmarked_PersistenceErrorKeepsState() {
	s.load(domain.Feed{Source: sourceA, Articles: []domain.Article{storedArticle("a1", "A1")}})
	s.expectTx(1)
	s.store.EXPECT().Upsert(gomock.Any(), gomock.Any()).Return(errors.New("disk full"))

	err := s.service.SetBookmarked(context.Background(), sourceA, "a1", true)

	var persistErr *domain.PersistenceError
	s.Require().ErrorAs(err, &persistErr)
	s.Equal(sourceA, persistErr.Source)
	s.False(s.service.Group().Feeds[0].Articles[0].Bookmarked)
}

func (s *SyncServiceTestSuite) TestSetTagsAndPrioritySurviveSync() {
	ctx := context.Background()
	s.load(domain.Feed{Source: sourceA, Articles: []domain.Article{}})

	s.expectUpserts(2)
	s.Require().NoError(s.service.SetTags(ctx, sourceA, []string{"space", "science"}))
	s.Require().NoError(s.service.SetPriority(ctx, sourceA, 9))

	s.fetcher.EXPECT().Fetch(gomock.Any(), sourceA).Return(channel("A", entry("a1", "A1")), nil)
	s.expectUpserts(1)

	result, err := s.service.Sync(ctx, s.service.Group())

	s.Require().NoError(err)
	s.Equal([]string{"space", "science"}, result.Feeds[0].Tags)
	s.Equal(9, result.Feeds[0].Priority)
}

func (s *SyncServiceTestSuite) TestAddFeed() {
	ctx := context.Background()
	s.load()

	s.ErrorIs(s.service.AddFeed(ctx, "ftp://example.com/feed"), domain.ErrInvalidSource)
	s.ErrorIs(s.service.AddFeed(ctx, "not a url"), domain.ErrInvalidSource)

	written := s.expectUpserts(1)
	s.Require().NoError(s.service.AddFeed(ctx, sourceA))
	s.Require().NoError(s.service.AddFeed(ctx, sourceA))

	s.Require().Len(*written, 1)
	s.Equal(sourceA, (*written)[0].Source)
	s.Equal([]string{sourceA}, s.service.Group().Sources())
}

func (s *SyncServiceTestSuite) TestRemoveFeed() {
	ctx := context.Background()
	s.load(domain.Feed{Source: sourceA}, domain.Feed{Source: sourceB})
	s.Require().NoError(s.service.SelectFeed(sourceA))

	s.expectTx(1)
	s.store.EXPECT().DeleteBySource(gomock.Any(), sourceA).Return(nil)

	s.Require().NoError(s.service.RemoveFeed(ctx, sourceA))

	s.Equal([]string{sourceB}, s.service.Group().Sources())
	s.Empty(s.service.Snapshot().CurrentSource)
	s.ErrorIs(s.service.RemoveFeed(ctx, sourceA), domain.ErrFeedNotFound)
}

func (s *SyncServiceTestSuite) TestClearFeeds() {
	s.load(domain.Feed{Source: sourceA}, domain.Feed{Source: sourceB})

	s.expectTx(1)
	s.store.EXPECT().DeleteBySource(gomock.Any(), sourceA).Return(nil)
	s.store.EXPECT().DeleteBySource(gomock.Any(), sourceB).Return(nil)

	s.Require().NoError(s.service.ClearFeeds(context.Background()))

	s.Empty(s.service.Group().Feeds)
	s.Empty(s.service.Snapshot().Feeds)
}

func (s *SyncServiceTestSuite) TestClearFeeds_ErrorKeepsFeeds() {
	s.load(domain.Feed{Source: sourceA}, domain.Feed{Source: sourceB})

	s.expectTx(1)
	s.store.EXPECT().DeleteBySource(gomock.Any(), sourceA).Return(errors.New("lock timeout"))

	err := s.service.ClearFeeds(context.Background())

	var persistErr *domain.PersistenceError
	s.Require().ErrorAs(err, &persistErr)
	s.Equal(sourceA, persistErr.Source)
	s.Len(s.service.Group().Feeds, 2)
}

func (s *SyncServiceTestSuite) TestSelectFeed() {
	s.load(
		domain.Feed{Source: sourceA, Articles: []domain.Article{storedArticle("a1", "A1")}},
		domain.Feed{Source: sourceB, Articles: []domain.Article{storedArticle("b1", "B1")}},
	)

	s.Require().NoError(s.service.SelectFeed(sourceB))
	snap := s.service.Snapshot()
	s.Equal(sourceB, snap.CurrentSource)
	s.Equal([]string{"b1"}, guids(snap.CurrentFeed))

	s.ErrorIs(s.service.SelectFeed("https://unknown.example.com"), domain.ErrFeedNotFound)

	s.Require().NoError(s.service.SelectFeed(""))
	s.Empty(s.service.Snapshot().CurrentFeed)
}

func (s *SyncServiceTestSuite) TestSnapshot_BeforeAnyPublish() {
	snap := s.service.Snapshot()

	s.Empty(snap.Feeds)
	s.False(snap.Refreshing)
}
