// Package normalize turns parsed feed documents into canonical feeds. Every
// absent value becomes an empty string so that equality and display never
// have to special-case missing fields.
package normalize

import (
	"slices"

	"feedsync/internal/domain"
)

// Feed converts a parsed channel fetched from source.
func Feed(source string, ch *domain.Channel) domain.Feed {
	if ch == nil {
		return domain.Feed{Source: source, Articles: []domain.Article{}}
	}

	articles := make([]domain.Article, 0, len(ch.Entries))
	for i := range ch.Entries {
		articles = append(articles, Article(&ch.Entries[i]))
	}

	return domain.Feed{
		Source:        source,
		Title:         str(ch.Title),
		Link:          str(ch.Link),
		Description:   str(ch.Description),
		LastBuildDate: str(ch.LastBuildDate),
		Image:         str(ch.Image),
		UpdatePeriod:  str(ch.UpdatePeriod),
		Articles:      articles,
	}
}

// Article converts one parsed entry. User state starts unset.
func Article(e *domain.Entry) domain.Article {
	if e == nil {
		return domain.Article{Categories: []string{}}
	}

	categories := slices.Clone(e.Categories)
	if categories == nil {
		categories = []string{}
	}

	return domain.Article{
		Title:       str(e.Title),
		Author:      str(e.Author),
		Link:        str(e.Link),
		PubDate:     str(e.PubDate),
		PublishedAt: PublishedAt(e),
		Description: str(e.Description),
		Content:     str(e.Content),
		Image:       str(e.Image),
		Audio:       str(e.Audio),
		Video:       str(e.Video),
		GUID:        str(e.GUID),
		SourceName:  str(e.SourceName),
		SourceURL:   str(e.SourceURL),
		Categories:  categories,
	}
}

func str(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
