// Package metrics declares the prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	LabelYear   = "year"
	LabelRoute  = "route"
	LabelMethod = "method"
	LabelStatus = "status"
	LabelShape  = "shape"
)

// Result cache
var (
	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total number of queries served from the result cache",
	}, []string{LabelShape})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total number of queries that required a scan",
	}, []string{LabelShape})

	CacheEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Subsystem: "cache",
		Name:      "evictions_total",
		Help:      "Total number of cache entries evicted in insertion order",
	})

	CacheEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Subsystem: "cache",
		Name:      "entries",
		Help:      "Current number of cached responses",
	})
)

// Completions scans
var (
	RowsScanned = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "scan",
		Name:      "rows_total",
		Help:      "Total number of completions rows read",
	}, []string{LabelYear})

	RowsMatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "scan",
		Name:      "rows_matched_total",
		Help:      "Total number of completions rows folded into an accumulator",
	}, []string{LabelYear})

	ScanErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "scan",
		Name:      "errors_total",
		Help:      "Total number of failed year scans",
	}, []string{LabelYear})

	ScanDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Subsystem: "scan",
		Name:      "duration_seconds",
		Help:      "Time spent scanning one year's completions file",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{LabelYear})
)

// HTTP
var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests",
	}, []string{LabelMethod, LabelRoute, LabelStatus})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency",
		Buckets:   prometheus.DefBuckets,
	}, []string{LabelMethod, LabelRoute, LabelStatus})
)

// Dataset
var (
	DatasetBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Subsystem: "dataset",
		Name:      "size_bytes",
		Help:      "Disk usage of the directory and completions files",
	})

	DatasetYears = promauto.NewGauge(prometheus.GaugeOpts{
		Subsystem: "dataset",
		Name:      "years",
		Help:      "Number of registered dataset years",
	})

	DatasetInstitutions = promauto.NewGauge(prometheus.GaugeOpts{
		Subsystem: "dataset",
		Name:      "institutions",
		Help:      "Number of institutions in the directory",
	})
)
