package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"feedsync/internal/config"
	"feedsync/internal/publisher"
	"feedsync/internal/scheduler"
	"feedsync/internal/service"
	"feedsync/internal/source/rss"
	"feedsync/internal/storage/postgres"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	logger := setupLogger("info")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = setupLogger(cfg.LogLevel)

	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("connected to database")

	// Notifications are optional.
	var pub service.Publisher
	if cfg.RabbitMQ.URL != "" {
		rabbitMQ, err := publisher.NewRabbitMQ(publisher.Config{
			URL:        cfg.RabbitMQ.URL,
			Exchange:   cfg.RabbitMQ.Exchange,
			RoutingKey: cfg.RabbitMQ.RoutingKey,
			QueueName:  cfg.RabbitMQ.QueueName,
		}, logger)
		if err != nil {
			logger.Error("failed to connect to rabbitmq", "error", err)
			os.Exit(1)
		}
		defer rabbitMQ.Close()
		pub = rabbitMQ
	}

	feedStore := postgres.NewFeedStore(db)
	txManager := postgres.NewTransactionManager(db)

	source, err := rss.New(rss.Config{
		Timeout:      cfg.Fetcher.Timeout,
		UserAgent:    cfg.Fetcher.UserAgent,
		CacheDir:     cfg.Fetcher.CacheDir,
		CacheTTL:     cfg.Fetcher.EffectiveCacheTTL(),
		CacheEntries: cfg.Fetcher.CacheEntries,
		HostInterval: cfg.Fetcher.HostInterval,
		MaxBodyBytes: cfg.Fetcher.MaxBodyBytes,
	}, logger)
	if err != nil {
		logger.Error("failed to create feed source", "error", err)
		os.Exit(1)
	}

	syncService := service.NewSyncService(source, feedStore, txManager, pub, logger, cfg.Sync)
	defer syncService.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	group, err := syncService.Load(ctx)
	if err != nil {
		logger.Error("failed to load feeds", "error", err)
		os.Exit(1)
	}

	if cfg.Metrics.Addr != "" {
		srv := startMetricsServer(cfg.Metrics, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("failed to stop metrics server", "error", err)
			}
		}()
	}

	sched := scheduler.NewScheduler(syncService, cfg.Sync.Interval, cfg.Sync.RunTimeout, logger)

	logger.Info("starting feed syncer",
		"feeds", len(group.Feeds),
		"interval", cfg.Sync.Interval,
		"max_concurrency", cfg.Sync.MaxConcurrency,
		"notifications", pub != nil,
	)

	if err := sched.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("scheduler error", "error", err)
		os.Exit(1)
	}
}

func startMetricsServer(cfg config.MetricsConfig, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.Handler())

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("serving metrics", "addr", cfg.Addr, "path", cfg.Path)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	return srv
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}
