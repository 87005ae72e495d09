// Package views computes the sorted projections of a feed group that the
// presentation layer renders, and fans snapshots out to subscribers.
package views

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"feedsync/internal/domain"
	"feedsync/internal/normalize"
)

// Snapshot is an immutable set of derived views. Receivers must not modify
// its slices.
type Snapshot struct {
	Articles      []domain.Article
	Bookmarked    []domain.Article
	CurrentFeed   []domain.Article
	Read          []domain.Article
	Feeds         []domain.Feed
	CurrentSource string
	Refreshing    bool
	GeneratedAt   time.Time
}

// Build derives every view from group. currentSource selects the feed for
// CurrentFeed; an unknown source yields an empty list.
func Build(group domain.FeedGroup, currentSource string, refreshing bool) Snapshot {
	group = group.Clone()
	all := group.Articles()

	var current []domain.Article
	if f, ok := group.Find(currentSource); ok {
		current = slices.Clone(f.Articles)
	}

	return Snapshot{
		Articles:      SortByDate(all),
		Bookmarked:    SortByDate(Bookmarked(all)),
		CurrentFeed:   SortByDate(current),
		Read:          SortByReadDate(ReadArticles(all)),
		Feeds:         SortFeedsByTitle(group.Feeds),
		CurrentSource: currentSource,
		Refreshing:    refreshing,
		GeneratedAt:   time.Now(),
	}
}

// Bookmarked filters bookmarked articles, keeping order.
func Bookmarked(articles []domain.Article) []domain.Article {
	return filter(articles, func(a domain.Article) bool { return a.Bookmarked })
}

// ReadArticles filters read articles, keeping order.
func ReadArticles(articles []domain.Article) []domain.Article {
	return filter(articles, func(a domain.Article) bool { return a.Read })
}

// Unread filters unread articles, keeping order.
func Unread(articles []domain.Article) []domain.Article {
	return filter(articles, func(a domain.Article) bool { return !a.Read })
}

// SortByDate returns a copy sorted by publication date, newest first.
func SortByDate(articles []domain.Article) []domain.Article {
	return sortByTime(articles, publishedAt)
}

// SortByReadDate returns a copy sorted by read date, most recent first.
func SortByReadDate(articles []domain.Article) []domain.Article {
	return sortByTime(articles, func(a domain.Article) time.Time { return normalize.ParseDate(a.ReadDate) })
}

// SortFeedsByTitle returns a copy sorted by title, case-insensitively, with
// the source as a tie breaker.
func SortFeedsByTitle(feeds []domain.Feed) []domain.Feed {
	sorted := slices.Clone(feeds)
	if sorted == nil {
		sorted = []domain.Feed{}
	}
	slices.SortStableFunc(sorted, func(a, b domain.Feed) int {
		return cmp.Or(
			strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title)),
			strings.Compare(a.Source, b.Source),
		)
	})
	return sorted
}

// publishedAt prefers the parsed instant and falls back to PubDate for
// articles stored before it was recorded.
func publishedAt(a domain.Article) time.Time {
	if !a.PublishedAt.IsZero() {
		return a.PublishedAt
	}
	return normalize.ParseDate(a.PubDate)
}

func sortByTime(articles []domain.Article, key func(domain.Article) time.Time) []domain.Article {
	type keyed struct {
		at      time.Time
		article domain.Article
	}
	items := make([]keyed, len(articles))
	for i, a := range articles {
		items[i] = keyed{at: key(a), article: a}
	}
	slices.SortStableFunc(items, func(a, b keyed) int {
		return b.at.Compare(a.at)
	})

	sorted := make([]domain.Article, len(items))
	for i, it := range items {
		sorted[i] = it.article
	}
	return sorted
}

func filter(articles []domain.Article, keep func(domain.Article) bool) []domain.Article {
	out := []domain.Article{}
	for _, a := range articles {
		if keep(a) {
			out = append(out, a)
		}
	}
	return out
}
