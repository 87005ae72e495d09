package rss

import (
	"bytes"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"
	"github.com/mmcdole/gofeed/rss"

	"feedsync/internal/domain"
)

// parse decodes body into a Channel. RSS documents get a second pass with
// the RSS parser to recover <source> elements, which the universal model
// drops.
func parse(rawURL string, body []byte) (*domain.Channel, error) {
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, &domain.ParseError{URL: rawURL, Err: err}
	}

	ch := toChannel(feed)

	if feed.FeedType == "rss" {
		raw, err := (&rss.Parser{}).Parse(bytes.NewReader(body))
		if err != nil {
			return nil, &domain.ParseError{URL: rawURL, Err: fmt.Errorf("rss source pass: %w", err)}
		}
		applySources(ch, raw.Items)
	}

	return ch, nil
}

func toChannel(feed *gofeed.Feed) *domain.Channel {
	ch := &domain.Channel{
		Title:         opt(feed.Title),
		Link:          opt(feed.Link),
		Description:   opt(feed.Description),
		LastBuildDate: opt(firstNonEmpty(feed.Updated, feed.Published)),
		UpdatePeriod:  opt(extValue(feed.Extensions, "sy", "updatePeriod")),
		Entries:       make([]domain.Entry, 0, len(feed.Items)),
	}
	if feed.Image != nil {
		ch.Image = opt(feed.Image.URL)
	}

	for _, item := range feed.Items {
		ch.Entries = append(ch.Entries, toEntry(item))
	}
	return ch
}

func toEntry(item *gofeed.Item) domain.Entry {
	return domain.Entry{
		Title:       opt(item.Title),
		Author:      opt(author(item)),
		Link:        opt(item.Link),
		PubDate:     opt(firstNonEmpty(item.Published, item.Updated)),
		PublishedAt: publishedAt(item),
		Description: opt(item.Description),
		Content:     opt(item.Content),
		Image:       opt(imageURL(item)),
		Audio:       opt(enclosureURL(item, "audio/")),
		Video:       opt(enclosureURL(item, "video/")),
		GUID:        opt(item.GUID),
		Categories:  slices.Clone(item.Categories),
	}
}

// publishedAt returns gofeed's parse of the date used for PubDate.
func publishedAt(item *gofeed.Item) *time.Time {
	parsed := item.PublishedParsed
	if item.Published == "" {
		parsed = item.UpdatedParsed
	}
	if parsed == nil || parsed.IsZero() {
		return nil
	}
	t := *parsed
	return &t
}

func applySources(ch *domain.Channel, items []*rss.Item) {
	if len(items) != len(ch.Entries) {
		return
	}
	for i, item := range items {
		if item.Source == nil {
			continue
		}
		ch.Entries[i].SourceName = opt(item.Source.Title)
		ch.Entries[i].SourceURL = opt(item.Source.URL)
	}
}

func author(item *gofeed.Item) string {
	if item.Author != nil && item.Author.Name != "" {
		return item.Author.Name
	}
	for _, a := range item.Authors {
		if a != nil && a.Name != "" {
			return a.Name
		}
	}
	if item.DublinCoreExt != nil {
		for _, creator := range item.DublinCoreExt.Creator {
			if creator != "" {
				return creator
			}
		}
	}
	return ""
}

// imageURL picks the item image, then media:thumbnail, then an image
// media:content, then an image/* enclosure.
func imageURL(item *gofeed.Item) string {
	if item.Image != nil && item.Image.URL != "" {
		return item.Image.URL
	}

	if media, ok := item.Extensions["media"]; ok {
		for _, thumb := range media["thumbnail"] {
			if u := thumb.Attrs["url"]; u != "" {
				return u
			}
		}
		for _, content := range media["content"] {
			u := content.Attrs["url"]
			if u == "" {
				continue
			}
			if content.Attrs["medium"] == "image" || strings.HasPrefix(content.Attrs["type"], "image/") {
				return u
			}
		}
	}

	return enclosureURL(item, "image/")
}

func enclosureURL(item *gofeed.Item, typePrefix string) string {
	for _, enc := range item.Enclosures {
		if enc != nil && enc.URL != "" && strings.HasPrefix(strings.ToLower(enc.Type), typePrefix) {
			return enc.URL
		}
	}
	return ""
}

func extValue(exts ext.Extensions, prefix, name string) string {
	for _, e := range exts[prefix][name] {
		if v := strings.TrimSpace(e.Value); v != "" {
			return v
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func opt(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
