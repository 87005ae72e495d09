package rss

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"feedsync/internal/domain"
)

const rssDocument = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"
  xmlns:sy="http://purl.org/rss/1.0/modules/syndication/"
  xmlns:media="http://search.yahoo.com/mrss/"
  xmlns:dc="http://purl.org/dc/elements/1.1/"
  xmlns:content="http://purl.org/rss/1.0/modules/content/">
<channel>
  <title>Example News</title>
  <link>https://example.com</link>
  <description>All the news</description>
  <lastBuildDate>Tue, 03 Jan 2023 10:00:00 GMT</lastBuildDate>
  <sy:updatePeriod>hourly</sy:updatePeriod>
  <image>
    <url>https://example.com/logo.png</url>
    <title>Example News</title>
    <link>https://example.com</link>
  </image>
  <item>
    <title>First</title>
    <link>https://example.com/1</link>
    <description>first summary</description>
    <content:encoded><![CDATA[<p>first body</p>]]></content:encoded>
    <dc:creator>Jane Doe</dc:creator>
    <pubDate>Mon, 02 Jan 2023 15:04:05 GMT</pubDate>
    <guid>https://example.com/1</guid>
    <category>world</category>
    <category>politics</category>
    <media:thumbnail url="https://example.com/1.jpg"/>
    <source url="https://wire.example.org/rss">Wire</source>
  </item>
  <item>
    <title>Podcast</title>
    <link>https://example.com/2</link>
    <enclosure url="https://example.com/2.mp3" length="100" type="audio/mpeg"/>
    <enclosure url="https://example.com/2.mp4" length="100" type="video/mp4"/>
  </item>
</channel>
</rss>`

const atomDocument = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Atom Example</title>
  <link href="https://atom.example.com/"/>
  <updated>2023-01-03T10:00:00Z</updated>
  <id>urn:uuid:feed</id>
  <entry>
    <title>Entry</title>
    <link href="https://atom.example.com/e1"/>
    <id>urn:uuid:e1</id>
    <updated>2023-01-02T10:00:00Z</updated>
    <published>2023-01-01T10:00:00Z</published>
    <author><name>Ann</name></author>
    <summary>short</summary>
  </entry>
</feed>`

type SourceTestSuite struct {
	suite.Suite

	server *httptest.Server
	hits   atomic.Int32
	status int
	body   string

	logger *slog.Logger
}

func (s *SourceTestSuite) SetupTest() {
	s.hits.Store(0)
	s.status = http.StatusOK
	s.body = rssDocument
	s.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		w.WriteHeader(s.status)
		_, _ = w.Write([]byte(s.body))
	}))
}

func (s *SourceTestSuite) TearDownTest() {
	s.server.Close()
}

func TestSourceTestSuite(t *testing.T) {
	suite.Run(t, new(SourceTestSuite))
}

func (s *SourceTestSuite) newSource(cfg Config) *Source {
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	src, err := New(cfg, s.logger)
	s.Require().NoError(err)
	return src
}

func (s *SourceTestSuite) feedURL() string {
	return s.server.URL + "/feed.xml"
}

func (s *SourceTestSuite) TestFetch_RSS() {
	src := s.newSource(Config{})

	ch, err := src.Fetch(context.Background(), s.feedURL())
	s.Require().NoError(err)

	s.Equal("Example News", *ch.Title)
	s.Equal("https://example.com", *ch.Link)
	s.Equal("All the news", *ch.Description)
	s.Equal("Tue, 03 Jan 2023 10:00:00 GMT", *ch.LastBuildDate)
	s.Equal("hourly", *ch.UpdatePeriod)
	s.Equal("https://example.com/logo.png", *ch.Image)
	s.Require().Len(ch.Entries, 2)

	first := ch.Entries[0]
	s.Equal("First", *first.Title)
	s.Equal("Jane Doe", *first.Author)
	s.Equal("https://example.com/1", *first.Link)
	s.Equal("Mon, 02 Jan 2023 15:04:05 GMT", *first.PubDate)
	s.Require().NotNil(first.PublishedAt)
	s.True(time.Date(2023, 1, 2, 15, 4, 5, 0, time.UTC).Equal(*first.PublishedAt))
	s.Equal("first summary", *first.Description)
	s.Equal("<p>first body</p>", *first.Content)
	s.Equal("https://example.com/1.jpg", *first.Image)
	s.Equal("https://example.com/1", *first.GUID)
	s.Equal("Wire", *first.SourceName)
	s.Equal("https://wire.example.org/rss", *first.SourceURL)
	s.Equal([]string{"world", "politics"}, first.Categories)
	s.Nil(first.Audio)

	second := ch.Entries[1]
	s.Equal("https://example.com/2.mp3", *second.Audio)
	s.Equal("https://example.com/2.mp4", *second.Video)
	s.Nil(second.GUID)
	s.Nil(second.PubDate)
	s.Nil(second.PublishedAt)
	s.Nil(second.SourceName)
}

func (s *SourceTestSuite) TestFetch_Atom() {
	s.body = atomDocument
	src := s.newSource(Config{})

	ch, err := src.Fetch(context.Background(), s.feedURL())
	s.Require().NoError(err)

	s.Equal("Atom Example", *ch.Title)
	s.Equal("2023-01-03T10:00:00Z", *ch.LastBuildDate)
	s.Nil(ch.UpdatePeriod)
	s.Require().Len(ch.Entries, 1)
	s.Equal("Ann", *ch.Entries[0].Author)
	s.Equal("2023-01-01T10:00:00Z", *ch.Entries[0].PubDate)
	s.Require().NotNil(ch.Entries[0].PublishedAt)
	s.True(time.Date(2023, 1, 1, 10, 0, 0, 0, time.UTC).Equal(*ch.Entries[0].PublishedAt))
	s.Equal("urn:uuid:e1", *ch.Entries[0].GUID)
	s.Nil(ch.Entries[0].SourceURL)
}

func (s *SourceTestSuite) TestFetch_NotFound() {
	s.status = http.StatusNotFound
	src := s.newSource(Config{})

	_, err := src.Fetch(context.Background(), s.feedURL())

	var fetchErr *domain.FetchError
	s.Require().ErrorAs(err, &fetchErr)
	s.Equal(http.StatusNotFound, fetchErr.StatusCode)
	s.Equal(s.feedURL(), fetchErr.URL)
}

func (s *SourceTestSuite) TestFetch_Garbage() {
	s.body = "this is not a feed"
	src := s.newSource(Config{CacheTTL: time.Hour, CacheDir: s.T().TempDir()})

	_, err := src.Fetch(context.Background(), s.feedURL())

	var parseErr *domain.ParseError
	s.Require().ErrorAs(err, &parseErr)

	_, err = src.Fetch(context.Background(), s.feedURL())
	s.Require().ErrorAs(err, &parseErr)
	s.Equal(int32(2), s.hits.Load(), "unparsable documents must not be cached")
}

func (s *SourceTestSuite) TestFetch_InvalidURL() {
	src := s.newSource(Config{})

	for _, u := range []string{"", "ftp://example.com/feed", "not a url", "http://"} {
		_, err := src.Fetch(context.Background(), u)
		s.ErrorIs(err, domain.ErrInvalidSource, u)
	}
	s.Zero(s.hits.Load())
}

func (s *SourceTestSuite) TestFetch_CanceledContext() {
	src := s.newSource(Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := src.Fetch(ctx, s.feedURL())

	s.True(errors.Is(err, context.Canceled))
	var fetchErr *domain.FetchError
	s.ErrorAs(err, &fetchErr)
}

func (s *SourceTestSuite) TestFetch_BodyTooLarge() {
	src := s.newSource(Config{MaxBodyBytes: 16})

	_, err := src.Fetch(context.Background(), s.feedURL())

	s.ErrorIs(err, errBodyTooLarge)
}

func (s *SourceTestSuite) TestCache_HitWithinTTL() {
	src := s.newSource(Config{CacheTTL: time.Hour, CacheDir: s.T().TempDir()})

	first, err := src.Fetch(context.Background(), s.feedURL())
	s.Require().NoError(err)
	second, err := src.Fetch(context.Background(), s.feedURL())
	s.Require().NoError(err)

	s.Equal(int32(1), s.hits.Load())
	s.Equal(first, second)
}

func (s *SourceTestSuite) TestCache_SurvivesRestart() {
	dir := s.T().TempDir()

	_, err := s.newSource(Config{CacheTTL: time.Hour, CacheDir: dir}).Fetch(context.Background(), s.feedURL())
	s.Require().NoError(err)

	restarted := s.newSource(Config{CacheTTL: time.Hour, CacheDir: dir})
	ch, err := restarted.Fetch(context.Background(), s.feedURL())
	s.Require().NoError(err)

	s.Equal(int32(1), s.hits.Load())
	s.Equal("Example News", *ch.Title)
}

func (s *SourceTestSuite) TestCache_ExpiredEntryIsRefetched() {
	dir := s.T().TempDir()

	_, err := s.newSource(Config{CacheTTL: time.Hour, CacheDir: dir}).Fetch(context.Background(), s.feedURL())
	s.Require().NoError(err)

	restarted := s.newSource(Config{CacheTTL: time.Hour, CacheDir: dir})
	stale := time.Now().Add(-2 * time.Hour)
	s.Require().NoError(os.Chtimes(restarted.cache.path(s.feedURL()), stale, stale))

	_, err = restarted.Fetch(context.Background(), s.feedURL())
	s.Require().NoError(err)

	s.Equal(int32(2), s.hits.Load())
}

func (s *SourceTestSuite) TestCache_DisabledWithZeroTTL() {
	src := s.newSource(Config{CacheDir: s.T().TempDir()})

	for range 3 {
		_, err := src.Fetch(context.Background(), s.feedURL())
		s.Require().NoError(err)
	}

	s.Nil(src.cache)
	s.Equal(int32(3), s.hits.Load())
}

func (s *SourceTestSuite) TestCache_MemoryOnly() {
	src := s.newSource(Config{CacheTTL: time.Hour})

	for range 2 {
		_, err := src.Fetch(context.Background(), s.feedURL())
		s.Require().NoError(err)
	}

	s.Equal(int32(1), s.hits.Load())
}

func (s *SourceTestSuite) TestFetch_UserAgentAndAccept() {
	var ua, accept string
	s.server.Config.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.Header.Get("User-Agent")
		accept = r.Header.Get("Accept")
		_, _ = w.Write([]byte(rssDocument))
	})
	src := s.newSource(Config{UserAgent: "tester/2.0"})

	_, err := src.Fetch(context.Background(), s.feedURL())
	s.Require().NoError(err)

	s.Equal("tester/2.0", ua)
	s.Contains(accept, "application/rss+xml")
}
