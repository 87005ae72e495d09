// Package merge reconciles a stored feed with a freshly fetched copy of the
// same source.
package merge

import (
	"slices"

	"feedsync/internal/domain"
)

// EqualFunc decides whether an old article has a counterpart among the
// fetched ones.
type EqualFunc func(a, b domain.Article) bool

// StrictEqual compares every field, user state included. A stored article
// that was read or bookmarked never equals its fresh copy, so both survive
// the merge.
func StrictEqual(a, b domain.Article) bool {
	return ContentEqual(a, b) &&
		a.Bookmarked == b.Bookmarked &&
		a.Read == b.Read &&
		a.ReadDate == b.ReadDate
}

// ContentEqual compares the fetched fields and ignores user state.
// PublishedAt is derived from PubDate and is not compared.
func ContentEqual(a, b domain.Article) bool {
	return a.Title == b.Title &&
		a.Author == b.Author &&
		a.Link == b.Link &&
		a.PubDate == b.PubDate &&
		a.Description == b.Description &&
		a.Content == b.Content &&
		a.Image == b.Image &&
		a.Audio == b.Audio &&
		a.Video == b.Video &&
		a.GUID == b.GUID &&
		a.SourceName == b.SourceName &&
		a.SourceURL == b.SourceURL &&
		slices.Equal(a.Categories, b.Categories)
}

// Merger merges feeds under a configurable equality predicate.
type Merger struct {
	Equal EqualFunc
}

// New returns a Merger using equal, or StrictEqual when equal is nil.
func New(equal EqualFunc) *Merger {
	if equal == nil {
		equal = StrictEqual
	}
	return &Merger{Equal: equal}
}

// Merge uses StrictEqual.
func Merge(old, fetched domain.Feed) domain.Feed {
	return New(StrictEqual).Merge(old, fetched)
}

// Merge returns the old-only articles followed by every fetched article.
// Metadata comes from fetched, tags and priority from old. Neither input is
// modified.
func (m *Merger) Merge(old, fetched domain.Feed) domain.Feed {
	equal := m.Equal
	if equal == nil {
		equal = StrictEqual
	}

	articles := make([]domain.Article, 0, len(old.Articles)+len(fetched.Articles))
	for _, a := range old.Articles {
		if !slices.ContainsFunc(fetched.Articles, func(b domain.Article) bool {
			return equal(a, b)
		}) {
			articles = append(articles, a.Clone())
		}
	}
	for _, b := range fetched.Articles {
		articles = append(articles, b.Clone())
	}

	source := old.Source
	if source == "" {
		source = fetched.Source
	}

	return domain.Feed{
		Source:        source,
		Title:         fetched.Title,
		Link:          fetched.Link,
		Description:   fetched.Description,
		LastBuildDate: fetched.LastBuildDate,
		Image:         fetched.Image,
		UpdatePeriod:  fetched.UpdatePeriod,
		Articles:      articles,
		Tags:          slices.Clone(old.Tags),
		Priority:      old.Priority,
	}
}
