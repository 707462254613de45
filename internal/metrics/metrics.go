// Package metrics exposes Prometheus collectors for the audit service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	auditorJobsTotal           *prometheus.CounterVec
	auditorPagesAnalyzedTotal  *prometheus.CounterVec
	auditorPageScore           prometheus.Histogram
	auditorDiagnosticsTotal    *prometheus.CounterVec
	auditorActiveAudits        prometheus.Gauge
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		auditorJobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auditor_jobs_total",
				Help: "Total number of audit jobs reaching a terminal status.",
			},
			[]string{"status"},
		)

		auditorPagesAnalyzedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auditor_pages_analyzed_total",
				Help: "Total number of pages analyzed, labeled by site and rendering mode.",
			},
			[]string{"site", "rendering"},
		)

		auditorPageScore = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "auditor_page_score",
				Help:    "Distribution of per-page overall scores.",
				Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
			},
		)

		auditorDiagnosticsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auditor_diagnostics_total",
				Help: "Diagnostic generation attempts, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		auditorActiveAudits = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "auditor_active_audits",
				Help: "Number of audits currently processing pages.",
			},
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
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveJob increments the job counter for the given terminal status.
func ObserveJob(status string) {
	auditorJobsTotal.WithLabelValues(status).Inc()
}

// ObservePage records one analyzed page.
func ObservePage(site, rendering string, score int) {
	auditorPagesAnalyzedTotal.WithLabelValues(SanitizeSite(site), rendering).Inc()
	auditorPageScore.Observe(float64(score))
}

// ObserveDiagnostic counts one diagnostic generation attempt.
func ObserveDiagnostic(outcome string) {
	auditorDiagnosticsTotal.WithLabelValues(outcome).Inc()
}

// IncActiveAudits increments the active audits gauge.
func IncActiveAudits() {
	auditorActiveAudits.Inc()
}

// DecActiveAudits decrements the active audits gauge.
func DecActiveAudits() {
	auditorActiveAudits.Dec()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
