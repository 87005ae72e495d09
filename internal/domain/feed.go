package domain

import "slices"

// Feed is one subscribed source with its articles. Tags and Priority are
// owned by the user and never come from a fetched document.
type Feed struct {
	Source        string    `json:"source"`
	Title         string    `json:"title"`
	Link          string    `json:"link"`
	Description   string    `json:"description"`
	LastBuildDate string    `json:"last_build_date"`
	Image         string    `json:"image"`
	UpdatePeriod  string    `json:"update_period"`
	Articles      []Article `json:"articles"`

	Tags     []string `json:"tags"`
	Priority int      `json:"priority"`
}

// Clone returns a deep copy of f.
func (f Feed) Clone() Feed {
	f.Tags = slices.Clone(f.Tags)
	if f.Articles != nil {
		articles := make([]Article, len(f.Articles))
		for i, a := range f.Articles {
			articles[i] = a.Clone()
		}
		f.Articles = articles
	}
	return f
}

// FeedGroup is the set of a user's subscriptions, unique by Source.
type FeedGroup struct {
	Feeds []Feed `json:"feeds"`
}

// NewFeedGroup builds a group from feeds, keeping the last feed seen for a
// duplicated source in the position of the first one.
func NewFeedGroup(feeds ...Feed) FeedGroup {
	var g FeedGroup
	for _, f := range feeds {
		g.Add(f)
	}
	return g
}

// Sources returns the source URLs in group order.
func (g FeedGroup) Sources() []string {
	sources := make([]string, len(g.Feeds))
	for i, f := range g.Feeds {
		sources[i] = f.Source
	}
	return sources
}

// Find returns the feed with the given source.
func (g FeedGroup) Find(source string) (Feed, bool) {
	for _, f := range g.Feeds {
		if f.Source == source {
			return f, true
		}
	}
	return Feed{}, false
}

// Add inserts feed, replacing an existing feed with the same source.
func (g *FeedGroup) Add(feed Feed) {
	for i := range g.Feeds {
		if g.Feeds[i].Source == feed.Source {
			g.Feeds[i] = feed
			return
		}
	}
	g.Feeds = append(g.Feeds, feed)
}

// Remove deletes the feed with the given source and reports whether it was
// present.
func (g *FeedGroup) Remove(source string) bool {
	for i := range g.Feeds {
		if g.Feeds[i].Source == source {
			g.Feeds = slices.Delete(g.Feeds, i, i+1)
			return true
		}
	}
	return false
}

// Articles flattens the articles of every feed, in group order.
func (g FeedGroup) Articles() []Article {
	var n int
	for _, f := range g.Feeds {
		n += len(f.Articles)
	}
	articles := make([]Article, 0, n)
	for _, f := range g.Feeds {
		articles = append(articles, f.Articles...)
	}
	return articles
}

// Clone returns a deep copy of g.
func (g FeedGroup) Clone() FeedGroup {
	if g.Feeds == nil {
		return FeedGroup{}
	}
	feeds := make([]Feed, len(g.Feeds))
	for i, f := range g.Feeds {
		feeds[i] = f.Clone()
	}
	return FeedGroup{Feeds: feeds}
}
