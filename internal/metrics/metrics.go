// Package metrics registers the Prometheus collectors exported at /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gapmovies_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	ReviewsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gapmovies_reviews_written_total",
			Help: "Total number of review writes by result (created, updated, deleted)",
		},
		[]string{"result"},
	)

	ImportedMovies = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gapmovies_import_movies_total",
			Help: "Movies processed by the TMDb importer by outcome",
		},
		[]string{"outcome"}, // imported, updated, skipped, failed
	)

	TMDBRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gapmovies_tmdb_requests_total",
			Help: "Requests sent to TMDb by response status",
		},
		[]string{"status"},
	)

	TMDBBreakerOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gapmovies_tmdb_breaker_open",
			Help: "1 while the TMDb circuit breaker is open",
		},
	)
)

// ObserveHTTP records one finished request.
func ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

// DBPoolStats is a snapshot of the database connection pool.
type DBPoolStats struct {
	TotalConns      int32
	IdleConns       int32
	AcquiredConns   int32
	MaxConns        int32
	AcquireCount    int64
	AcquireDuration time.Duration
}

// DBPoolCollector exports DBPoolStats on every scrape. The stats func reports
// false once the pool is gone, and nothing is exported then.
type DBPoolCollector struct {
	stats func() (DBPoolStats, bool)

	total          *prometheus.Desc
	idle           *prometheus.Desc
	acquired       *prometheus.Desc
	maxConns       *prometheus.Desc
	acquires       *prometheus.Desc
	acquireSeconds *prometheus.Desc
}

// NewDBPoolCollector builds a collector reading from stats.
func NewDBPoolCollector(stats func() (DBPoolStats, bool)) *DBPoolCollector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc("gapmovies_db_pool_"+name, help, nil, nil)
	}
	return &DBPoolCollector{
		stats:          stats,
		total:          desc("total_conns", "Open connections in the pool"),
		idle:           desc("idle_conns", "Idle connections in the pool"),
		acquired:       desc("acquired_conns", "Connections currently checked out"),
		maxConns:       desc("max_conns", "Configured pool size"),
		acquires:       desc("acquires_total", "Connections acquired from the pool"),
		acquireSeconds: desc("acquire_seconds_total", "Time spent waiting to acquire connections"),
	}
}

// Describe implements prometheus.Collector.
func (c *DBPoolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.total
	ch <- c.idle
	ch <- c.acquired
	ch <- c.maxConns
	ch <- c.acquires
	ch <- c.acquireSeconds
}

// Collect implements prometheus.Collector.
func (c *DBPoolCollector) Collect(ch chan<- prometheus.Metric) {
	s, ok := c.stats()
	if !ok {
		return
	}
	ch <- prometheus.MustNewConstMetric(c.total, prometheus.GaugeValue, float64(s.TotalConns))
	ch <- prometheus.MustNewConstMetric(c.idle, prometheus.GaugeValue, float64(s.IdleConns))
	ch <- prometheus.MustNewConstMetric(c.acquired, prometheus.GaugeValue, float64(s.AcquiredConns))
	ch <- prometheus.MustNewConstMetric(c.maxConns, prometheus.GaugeValue, float64(s.MaxConns))
	ch <- prometheus.MustNewConstMetric(c.acquires, prometheus.CounterValue, float64(s.AcquireCount))
	ch <- prometheus.MustNewConstMetric(c.acquireSeconds, prometheus.CounterValue, s.AcquireDuration.Seconds())
}
