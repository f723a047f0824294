// Package metrics holds the engine's Prometheus collectors. Everything is
// registered on a package registry so tests can scrape it without touching
// the global default registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var Registry = prometheus.NewRegistry()

var (
	FetchAttempts = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "chancat_fetch_attempts_total",
		Help: "Fetch attempts per source.",
	}, []string{"source"})

	FetchFailures = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "chancat_fetch_failures_total",
		Help: "Sources that exhausted every candidate URL.",
	}, []string{"source"})

	CacheHits = promauto.With(Registry).NewCounter(prometheus.CounterOpts{
		Name: "chancat_cache_hits_total",
		Help: "Document fetches served from the on-disk cache.",
	})

	ChannelsMerged = promauto.With(Registry).NewGauge(prometheus.GaugeOpts{
		Name: "chancat_channels_merged",
		Help: "Channel count after the last dedup/merge pass.",
	})

	Probes = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "chancat_probes_total",
		Help: "Reachability probes by outcome.",
	}, []string{"outcome"})

	ProbeDuration = promauto.With(Registry).NewHistogram(prometheus.HistogramOpts{
		Name:    "chancat_probe_duration_seconds",
		Help:    "Wall time per reachability probe.",
		Buckets: prometheus.DefBuckets,
	})
)
