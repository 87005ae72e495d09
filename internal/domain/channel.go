package domain

import "time"

// Channel is a parsed feed document before normalization. Optional values
// are pointers so that absence is visible.
type Channel struct {
	Title         *string
	Link          *string
	Description   *string
	Image         *string
	LastBuildDate *string
	UpdatePeriod  *string
	Entries       []Entry
}

// Entry is one item of a parsed feed document.
type Entry struct {
	Title       *string
	Author      *string
	Link        *string
	PubDate     *string
	PublishedAt *time.Time
	Description *string
	Content     *string
	Image       *string
	Audio       *string
	Video       *string
	GUID        *string
	SourceName  *string
	SourceURL   *string
	Categories  []string
}
