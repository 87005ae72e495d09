// Package rss fetches RSS, Atom and JSON feed documents over HTTP and maps
// them to domain.Channel values.
package rss

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"feedsync/internal/domain"
	"feedsync/internal/metrics"
)

const (
	defaultUserAgent = "feedsync/1.0"
	defaultMaxBody   = 10 << 20
	acceptHeader     = "application/rss+xml, application/atom+xml, application/feed+json, application/xml;q=0.9, text/xml;q=0.8, */*;q=0.5"
)

var errBodyTooLarge = errors.New("response body too large")

// Config holds feed source configuration.
type Config struct {
	Timeout      time.Duration
	UserAgent    string
	CacheDir     string
	CacheTTL     time.Duration
	CacheEntries int
	HostInterval time.Duration
	MaxBodyBytes int64
}

// Source downloads and parses feed documents.
type Source struct {
	httpClient *http.Client
	userAgent  string
	maxBody    int64
	cache      *cache
	limiter    *HostRateLimiter
	logger     *slog.Logger
}

// New creates a feed source. A zero CacheTTL disables caching; an empty
// CacheDir keeps the cache in memory only.
func New(cfg Config, logger *slog.Logger) (*Source, error) {
	s := &Source{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		userAgent: cfg.UserAgent,
		maxBody:   cfg.MaxBodyBytes,
		limiter:   NewHostRateLimiter(cfg.HostInterval),
		logger:    logger.With("component", "rss"),
	}
	if s.userAgent == "" {
		s.userAgent = defaultUserAgent
	}
	if s.maxBody <= 0 {
		s.maxBody = defaultMaxBody
	}

	if cfg.CacheTTL > 0 {
		c, err := newCache(cfg.CacheDir, cfg.CacheTTL, cfg.CacheEntries)
		if err != nil {
			return nil, err
		}
		s.cache = c
	}

	return s, nil
}

// Fetch returns the parsed document at rawURL, served from the cache when a
// fresh copy exists. Failures are *domain.FetchError or *domain.ParseError.
func (s *Source) Fetch(ctx context.Context, rawURL string) (*domain.Channel, error) {
	if err := validateURL(rawURL); err != nil {
		return nil, &domain.FetchError{URL: rawURL, Err: err}
	}

	if s.cache != nil {
		if body, ok := s.cache.get(rawURL); ok {
			ch, err := parse(rawURL, body)
			if err == nil {
				metrics.RecordFetch(metrics.OutcomeCached, 0)
				s.logger.Debug("feed served from cache", "url", rawURL)
				return ch, nil
			}
			s.logger.Warn("discarding unreadable cache entry", "url", rawURL, "error", err)
		}
	}

	start := time.Now()
	body, err := s.download(ctx, rawURL)
	if err != nil {
		outcome := metrics.OutcomeHTTP
		if ctx.Err() != nil {
			outcome = metrics.OutcomeCanceled
		}
		metrics.RecordFetch(outcome, time.Since(start))
		return nil, err
	}

	ch, err := parse(rawURL, body)
	if err != nil {
		metrics.RecordFetch(metrics.OutcomeParse, time.Since(start))
		return nil, err
	}
	metrics.RecordFetch(metrics.OutcomeFetched, time.Since(start))

	if s.cache != nil {
		if err := s.cache.put(rawURL, body); err != nil {
			s.logger.Warn("failed to cache feed", "url", rawURL, "error", err)
		}
	}

	s.logger.Debug("fetched feed",
		"url", rawURL,
		"entries", len(ch.Entries),
		"bytes", len(body),
		"duration", time.Since(start),
	)

	return ch, nil
}

func (s *Source) download(ctx context.Context, rawURL string) ([]byte, error) {
	if err := s.limiter.Wait(ctx, rawURL); err != nil {
		return nil, &domain.FetchError{URL: rawURL, Err: fmt.Errorf("wait for host: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &domain.FetchError{URL: rawURL, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", acceptHeader)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, &domain.FetchError{URL: rawURL, Err: fmt.Errorf("execute request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &domain.FetchError{
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status: %d", resp.StatusCode),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBody+1))
	if err != nil {
		return nil, &domain.FetchError{URL: rawURL, Err: fmt.Errorf("read body: %w", err)}
	}
	if int64(len(body)) > s.maxBody {
		return nil, &domain.FetchError{URL: rawURL, Err: errBodyTooLarge}
	}

	return body, nil
}

func validateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidSource, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", domain.ErrInvalidSource, rawURL)
	}
	return nil
}
