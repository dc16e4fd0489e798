// Package metrics exposes Prometheus collectors for the link service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	linksIngestedTotal         *prometheus.CounterVec
	fetchDurationSeconds       *prometheus.HistogramVec
	faviconResolutionsTotal    *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		linksIngestedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linkstash_ingests_total",
				Help: "Total link add attempts, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		fetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "linkstash_fetch_duration_seconds",
				Help:    "Histogram of page fetch latencies, labeled by outcome.",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"outcome"},
		)

		faviconResolutionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linkstash_favicon_resolutions_total",
				Help: "Total favicon resolution attempts, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method"},
		)
	})
}

// RegisterPoolGauge exposes the number of browser pages currently
// checked out.
func RegisterPoolGauge(inUse func() float64) {
	promauto.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "linkstash_browser_pages_in_use",
			Help: "Number of browser pages currently checked out of the pool.",
		},
		inUse,
	)
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordIngest increments the ingest counter for the given outcome.
func RecordIngest(outcome string) {
	if linksIngestedTotal == nil {
		return
	}
	linksIngestedTotal.WithLabelValues(outcome).Inc()
}

// ObserveFetch records one page fetch.
func ObserveFetch(duration time.Duration, outcome string) {
	if fetchDurationSeconds == nil {
		return
	}
	fetchDurationSeconds.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordFavicon increments the favicon resolution counter.
func RecordFavicon(resolved bool) {
	if faviconResolutionsTotal == nil {
		return
	}
	outcome := "resolved"
	if !resolved {
		outcome = "missed"
	}
	faviconResolutionsTotal.WithLabelValues(outcome).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method string, code int, duration time.Duration) {
	if httpRequestsTotal == nil {
		return
	}
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method).Observe(duration.Seconds())
}
