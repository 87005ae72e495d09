package domain

import (
	"slices"
	"time"
)

// Article is one entry of a feed. It has no synthetic identity: two articles
// are the same when their fields are equal.
type Article struct {
	Title       string   `json:"title"`
	Author      string   `json:"author"`
	Link        string   `json:"link"`
	PubDate     string   `json:"pub_date"`
	Description string   `json:"description"`
	Content     string   `json:"content"`
	Image       string   `json:"image"`
	Audio       string   `json:"audio"`
	Video       string   `json:"video"`
	GUID        string   `json:"guid"`
	SourceName  string   `json:"source_name"`
	SourceURL   string   `json:"source_url"`
	Categories  []string `json:"categories"`

	// PublishedAt is PubDate as an instant, zero when it could not be
	// parsed. It is derived and takes no part in article equality.
	PublishedAt time.Time `json:"published_at,omitzero"`

	Bookmarked bool   `json:"bookmarked"`
	Read       bool   `json:"read"`
	ReadDate   string `json:"read_date"`
}

// Key identifies an article inside its feed for user-state updates.
func (a Article) Key() string {
	if a.GUID != "" {
		return a.GUID
	}
	return a.Link
}

// Clone returns a copy that shares no slices with a.
func (a Article) Clone() Article {
	a.Categories = slices.Clone(a.Categories)
	return a
}
