// Package metrics provides Prometheus metrics for feedsync.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "feedsync"

// Fetch outcomes.
const (
	OutcomeFetched  = "fetched"
	OutcomeCached   = "cached"
	OutcomeHTTP     = "http_error"
	OutcomeParse    = "parse_error"
	OutcomeCanceled = "canceled"
)

var (
	// FetchTotal counts feed document fetches by outcome.
	FetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_total",
			Help:      "Total number of feed document fetches",
		},
		[]string{"outcome"},
	)

	// FetchDuration measures network fetch duration.
	FetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of feed document downloads in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// SyncTotal counts sync cycles by status.
	SyncTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_total",
			Help:      "Total number of sync cycles",
		},
		[]string{"status"},
	)

	// SyncDuration measures sync cycle duration.
	SyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_duration_seconds",
			Help:      "Duration of sync cycles in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	// FeedsTotal counts per-feed results of sync cycles.
	FeedsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feeds_total",
			Help:      "Total number of feeds processed by sync cycles",
		},
		[]string{"result"},
	)

	// Articles tracks the number of articles after the last sync.
	Articles = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "articles",
			Help:      "Number of articles held after the last sync",
		},
	)

	// Refreshing is 1 while a sync cycle is running.
	Refreshing = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "refreshing",
			Help:      "Sync in progress (1 = running, 0 = idle)",
		},
	)
)

// RecordFetch records one fetch of a feed document.
func RecordFetch(outcome string, duration time.Duration) {
	FetchTotal.WithLabelValues(outcome).Inc()
	if outcome != OutcomeCached {
		FetchDuration.Observe(duration.Seconds())
	}
}

// RecordSync records a finished sync cycle.
func RecordSync(status string, duration time.Duration, refreshed, failed, carried, articles int) {
	SyncTotal.WithLabelValues(status).Inc()
	SyncDuration.Observe(duration.Seconds())
	FeedsTotal.WithLabelValues("refreshed").Add(float64(refreshed))
	FeedsTotal.WithLabelValues("failed").Add(float64(failed))
	FeedsTotal.WithLabelValues("carried_over").Add(float64(carried))
	Articles.Set(float64(articles))
}

// SetRefreshing reports whether a sync cycle is running.
func SetRefreshing(running bool) {
	if running {
		Refreshing.Set(1)
		return
	}
	Refreshing.Set(0)
}
