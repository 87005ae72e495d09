package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"feedsync/internal/domain"
)

// articleColumns are written per article row, in this order.
var articleColumns = []string{
	"feed_source", "position", "title", "author", "link", "pub_date", "published_at",
	"description", "content", "image", "audio", "video", "guid",
	"source_name", "source_url", "categories", "bookmarked", "read", "read_date",
}

// articleBatchSize keeps a multi-row insert under the 65535 parameter limit.
const articleBatchSize = 500

type feedRow struct {
	Source        string         `db:"source"`
	Title         string         `db:"title"`
	Link          string         `db:"link"`
	Description   string         `db:"description"`
	LastBuildDate string         `db:"last_build_date"`
	Image         string         `db:"image"`
	UpdatePeriod  string         `db:"update_period"`
	Tags          pq.StringArray `db:"tags"`
	Priority      int            `db:"priority"`
}

type articleRow struct {
	FeedSource  string         `db:"feed_source"`
	Position    int            `db:"position"`
	Title       string         `db:"title"`
	Author      string         `db:"author"`
	Link        string         `db:"link"`
	PubDate     string         `db:"pub_date"`
	PublishedAt sql.NullTime   `db:"published_at"`
	Description string         `db:"description"`
	Content     string         `db:"content"`
	Image       string         `db:"image"`
	Audio       string         `db:"audio"`
	Video       string         `db:"video"`
	GUID        string         `db:"guid"`
	SourceName  string         `db:"source_name"`
	SourceURL   string         `db:"source_url"`
	Categories  pq.StringArray `db:"categories"`
	Bookmarked  bool           `db:"bookmarked"`
	Read        bool           `db:"read"`
	ReadDate    string         `db:"read_date"`
}

// FeedStore keeps feeds and their articles keyed by source.
type FeedStore struct {
	db *sqlx.DB
}

func NewFeedStore(db *sqlx.DB) *FeedStore {
	return &FeedStore{db: db}
}

// GetAll returns every feed in subscription order with its articles in
// stored order.
func (s *FeedStore) GetAll(ctx context.Context) ([]domain.Feed, error) {
	exec := GetExecutor(ctx, s.db)

	var feedRows []feedRow
	err := sqlx.SelectContext(ctx, exec, &feedRows, `
		SELECT source, title, link, description, last_build_date, image,
			update_period, tags, priority
		FROM feeds
		ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("select feeds: %w", err)
	}

	var articleRows []articleRow
	err = sqlx.SelectContext(ctx, exec, &articleRows, `
		SELECT `+strings.Join(articleColumns, ", ")+`
		FROM articles
		ORDER BY feed_source, position`)
	if err != nil {
		return nil, fmt.Errorf("select articles: %w", err)
	}

	bySource := make(map[string][]domain.Article, len(feedRows))
	for _, r := range articleRows {
		bySource[r.FeedSource] = append(bySource[r.FeedSource], r.toDomain())
	}

	feeds := make([]domain.Feed, 0, len(feedRows))
	for _, r := range feedRows {
		feed := r.toDomain()
		feed.Articles = bySource[r.Source]
		if feed.Articles == nil {
			feed.Articles = []domain.Article{}
		}
		feeds = append(feeds, feed)
	}

	return feeds, nil
}

// Upsert writes feed and replaces its stored articles. Callers wrap it in a
// transaction to make the replacement atomic.
func (s *FeedStore) Upsert(ctx context.Context, feed *domain.Feed) error {
	exec := GetExecutor(ctx, s.db)

	query := `
		INSERT INTO feeds (
			source, title, link, description, last_build_date, image,
			update_period, tags, priority
		) VALUES (
			:source, :title, :link, :description, :last_build_date, :image,
			:update_period, :tags, :priority
		)
		ON CONFLICT (source) DO UPDATE SET
			title = EXCLUDED.title,
			link = EXCLUDED.link,
			description = EXCLUDED.description,
			last_build_date = EXCLUDED.last_build_date,
			image = EXCLUDED.image,
			update_period = EXCLUDED.update_period,
			tags = EXCLUDED.tags,
			priority = EXCLUDED.priority,
			updated_at = NOW()`

	if _, err := sqlx.NamedExecContext(ctx, exec, query, newFeedRow(feed)); err != nil {
		return fmt.Errorf("upsert feed: %w", err)
	}

	if _, err := exec.ExecContext(ctx, "DELETE FROM articles WHERE feed_source = $1", feed.Source); err != nil {
		return fmt.Errorf("delete articles: %w", err)
	}

	for start := 0; start < len(feed.Articles); start += articleBatchSize {
		end := min(start+articleBatchSize, len(feed.Articles))
		if err := s.insertArticles(ctx, exec, feed.Source, start, feed.Articles[start:end]); err != nil {
			return err
		}
	}

	return nil
}

// InsertAll upserts every feed.
func (s *FeedStore) InsertAll(ctx context.Context, feeds []domain.Feed) error {
	for i := range feeds {
		if err := s.Upsert(ctx, &feeds[i]); err != nil {
			return fmt.Errorf("insert feed %s: %w", feeds[i].Source, err)
		}
	}
	return nil
}

// DeleteBySource removes a feed and its articles. Unknown sources are
// ignored.
func (s *FeedStore) DeleteBySource(ctx context.Context, source string) error {
	exec := GetExecutor(ctx, s.db)

	if _, err := exec.ExecContext(ctx, "DELETE FROM feeds WHERE source = $1", source); err != nil {
		return fmt.Errorf("delete feed: %w", err)
	}
	return nil
}

func (s *FeedStore) insertArticles(ctx context.Context, exec sqlx.ExtContext, source string, offset int, articles []domain.Article) error {
	var sb strings.Builder
	sb.WriteString("INSERT INTO articles (")
	sb.WriteString(strings.Join(articleColumns, ", "))
	sb.WriteString(") VALUES ")

	args := make([]any, 0, len(articles)*len(articleColumns))
	for i, a := range articles {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(")
		for c := range articleColumns {
			if c > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString("$")
			sb.WriteString(strconv.Itoa(len(args) + c + 1))
		}
		sb.WriteString(")")

		r := newArticleRow(source, offset+i, a)
		args = append(args,
			r.FeedSource, r.Position, r.Title, r.Author, r.Link, r.PubDate, r.PublishedAt,
			r.Description, r.Content, r.Image, r.Audio, r.Video, r.GUID,
			r.SourceName, r.SourceURL, r.Categories, r.Bookmarked, r.Read, r.ReadDate,
		)
	}

	if _, err := exec.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("insert articles: %w", err)
	}
	return nil
}

func newFeedRow(f *domain.Feed) feedRow {
	tags := pq.StringArray(f.Tags)
	if tags == nil {
		tags = pq.StringArray{}
	}
	return feedRow{
		Source:        f.Source,
		Title:         f.Title,
		Link:          f.Link,
		Description:   f.Description,
		LastBuildDate: f.LastBuildDate,
		Image:         f.Image,
		UpdatePeriod:  f.UpdatePeriod,
		Tags:          tags,
		Priority:      f.Priority,
	}
}

func (r feedRow) toDomain() domain.Feed {
	var tags []string
	if len(r.Tags) > 0 {
		tags = []string(r.Tags)
	}
	return domain.Feed{
		Source:        r.Source,
		Title:         r.Title,
		Link:          r.Link,
		Description:   r.Description,
		LastBuildDate: r.LastBuildDate,
		Image:         r.Image,
		UpdatePeriod:  r.UpdatePeriod,
		Tags:          tags,
		Priority:      r.Priority,
	}
}

func newArticleRow(source string, position int, a domain.Article) articleRow {
	categories := pq.StringArray(a.Categories)
	if categories == nil {
		categories = pq.StringArray{}
	}
	return articleRow{
		FeedSource:  source,
		Position:    position,
		Title:       a.Title,
		Author:      a.Author,
		Link:        a.Link,
		PubDate:     a.PubDate,
		PublishedAt: sql.NullTime{Time: a.PublishedAt, Valid: !a.PublishedAt.IsZero()},
		Description: a.Description,
		Content:     a.Content,
		Image:       a.Image,
		Audio:       a.Audio,
		Video:       a.Video,
		GUID:        a.GUID,
		SourceName:  a.SourceName,
		SourceURL:   a.SourceURL,
		Categories:  categories,
		Bookmarked:  a.Bookmarked,
		Read:        a.Read,
		ReadDate:    a.ReadDate,
	}
}

func (r articleRow) toDomain() domain.Article {
	categories := []string(r.Categories)
	if categories == nil {
		categories = []string{}
	}
	var publishedAt time.Time
	if r.PublishedAt.Valid {
		publishedAt = r.PublishedAt.Time.UTC()
	}
	return domain.Article{
		Title:       r.Title,
		Author:      r.Author,
		Link:        r.Link,
		PubDate:     r.PubDate,
		PublishedAt: publishedAt,
		Description: r.Description,
		Content:     r.Content,
		Image:       r.Image,
		Audio:       r.Audio,
		Video:       r.Video,
		GUID:        r.GUID,
		SourceName:  r.SourceName,
		SourceURL:   r.SourceURL,
		Categories:  categories,
		Bookmarked:  r.Bookmarked,
		Read:        r.Read,
		ReadDate:    r.ReadDate,
	}
}
