package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultSeedFeeds are added when the store holds no subscriptions.
var DefaultSeedFeeds = []string{
	"https://rss.cbc.ca/lineup/topstories.xml",
	"https://androidauthority.com/feed",
	"https://www.nasa.gov/rss/dyn/Gravity-Assist.rss",
	"https://www.nasa.gov/rss/dyn/Houston-We-Have-a-Podcast.rss",
}

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	Fetcher  FetcherConfig  `yaml:"fetcher"`
	Sync     SyncConfig     `yaml:"sync"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	LogLevel string         `yaml:"log_level"`
}

// RabbitMQConfig configures sync notifications. An empty URL disables them.
type RabbitMQConfig struct {
	URL        string `yaml:"url"`
	Exchange   string `yaml:"exchange"`
	RoutingKey string `yaml:"routing_key"`
	QueueName  string `yaml:"queue_name"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// FetcherConfig configures feed document downloads and the document cache.
type FetcherConfig struct {
	Timeout      time.Duration `yaml:"timeout"`
	UserAgent    string        `yaml:"user_agent"`
	CacheDir     string        `yaml:"cache_dir"`
	CacheTTL     time.Duration `yaml:"cache_ttl"`
	DisableCache bool          `yaml:"disable_cache"`
	CacheEntries int           `yaml:"cache_entries"`
	HostInterval time.Duration `yaml:"host_interval"`
	MaxBodyBytes int64         `yaml:"max_body_bytes"`
}

// EffectiveCacheTTL returns the cache TTL, zero when caching is disabled.
func (f FetcherConfig) EffectiveCacheTTL() time.Duration {
	if f.DisableCache {
		return 0
	}
	return f.CacheTTL
}

type SyncConfig struct {
	Interval           time.Duration `yaml:"interval"`
	RunTimeout         time.Duration `yaml:"run_timeout"`
	FetchTimeout       time.Duration `yaml:"fetch_timeout"`
	MaxConcurrency     int           `yaml:"max_concurrency"`
	CarryForwardFailed bool          `yaml:"carry_forward_failed"`
	IgnoreUserState    bool          `yaml:"ignore_user_state"`
	SeedFeeds          []string      `yaml:"seed_feeds"`
}

// MetricsConfig configures the Prometheus endpoint. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
	Path string `yaml:"path"`
}

func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.RabbitMQ.Exchange == "" {
		c.RabbitMQ.Exchange = "feedsync"
	}
	if c.RabbitMQ.RoutingKey == "" {
		c.RabbitMQ.RoutingKey = "feeds.synced"
	}
	if c.RabbitMQ.QueueName == "" {
		c.RabbitMQ.QueueName = "feed_sync_events"
	}
	if c.Fetcher.Timeout == 0 {
		c.Fetcher.Timeout = 30 * time.Second
	}
	if c.Fetcher.UserAgent == "" {
		c.Fetcher.UserAgent = "feedsync/1.0"
	}
	if c.Fetcher.CacheDir == "" {
		c.Fetcher.CacheDir = filepath.Join(os.TempDir(), "feedsync-cache")
	}
	if c.Fetcher.CacheTTL == 0 {
		c.Fetcher.CacheTTL = time.Hour
	}
	if c.Fetcher.CacheEntries == 0 {
		c.Fetcher.CacheEntries = 256
	}
	if c.Fetcher.HostInterval == 0 {
		c.Fetcher.HostInterval = time.Second
	}
	if c.Fetcher.MaxBodyBytes == 0 {
		c.Fetcher.MaxBodyBytes = 10 << 20
	}
	if c.Sync.Interval == 0 {
		c.Sync.Interval = 30 * time.Minute
	}
	if c.Sync.RunTimeout == 0 {
		c.Sync.RunTimeout = 5 * time.Minute
	}
	if c.Sync.FetchTimeout == 0 {
		c.Sync.FetchTimeout = 30 * time.Second
	}
	if c.Sync.MaxConcurrency == 0 {
		c.Sync.MaxConcurrency = 8
	}
	if c.Sync.SeedFeeds == nil {
		c.Sync.SeedFeeds = slices.Clone(DefaultSeedFeeds)
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func (c *Config) validate() error {
	if c.Sync.MaxConcurrency < 0 {
		return fmt.Errorf("sync.max_concurrency must not be negative, got %d", c.Sync.MaxConcurrency)
	}
	if c.Sync.Interval < 0 || c.Sync.FetchTimeout < 0 || c.Sync.RunTimeout < 0 {
		return fmt.Errorf("sync durations must not be negative")
	}
	if c.Fetcher.CacheTTL < 0 {
		return fmt.Errorf("fetcher.cache_ttl must not be negative, got %s", c.Fetcher.CacheTTL)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	return nil
}
