package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	JobsInQueue = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "crawl_jobs_in_queue",
			Help: "Current number of crawl jobs waiting in the queue.",
		},
	)

	DiscoveryCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discovery_cycles_total",
			Help: "Total number of discovery cycles.",
		},
		[]string{"status"}, // success, failure
	)

	URLsDiscovered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discovery_urls_total",
			Help: "URLs seen by discovery, by kind.",
		},
		[]string{"kind"}, // discovered, new
	)

	JobsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawl_jobs_processed_total",
			Help: "Total number of processed crawl jobs, by outcome.",
		},
		[]string{"outcome"}, // completed, retried, dead_letter, dropped
	)

	Extractions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "extractions_total",
			Help: "Extraction attempts by source, mode, stage and status.",
		},
		[]string{"source", "mode", "stage", "status"},
	)

	CrawlDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crawl_duration_seconds",
			Help:    "Duration of article extraction.",
			Buckets: []float64{1, 5, 10, 15, 30, 60, 120},
		},
		[]string{"source"},
	)

	ArticlesPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "articles_published_total",
			Help: "Articles acknowledged by the analysis broker.",
		},
	)
)
