// Package metrics exports Prometheus counters for portal traffic and
// reconciliation outcomes.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/JustJay7/ojv-scraper/internal/scraper"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ojv"

// Metrics owns its registry so several instances can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	UpstreamRequests *prometheus.CounterVec
	CasesScraped     *prometheus.CounterVec
	CasesStored      *prometheus.CounterVec
	BulkDuration     prometheus.Histogram
	BulkInProgress   prometheus.Gauge
	HTTPRequests     *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		UpstreamRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Portal requests by operation, competency and outcome",
		}, []string{"op", "competencia", "outcome"}),
		CasesScraped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cases_scraped_total",
			Help:      "Case summaries returned by portal searches",
		}, []string{"competencia"}),
		CasesStored: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cases_stored_total",
			Help:      "Reconciled cases by result",
		}, []string{"result"}),
		BulkDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "bulk_run_duration_seconds",
			Help:      "Wall time of bulk scraping runs",
			Buckets:   []float64{5, 15, 30, 60, 120, 300, 600, 1200, 3600},
		}),
		BulkInProgress: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "bulk_runs_in_progress",
			Help:      "Bulk scraping runs currently executing",
		}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "API requests by route and status",
		}, []string{"method", "route", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "API request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// ObserveUpstream implements scraper.Observer.
func (m *Metrics) ObserveUpstream(op string, c scraper.Competency, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.UpstreamRequests.WithLabelValues(op, string(c), outcome).Inc()
}

func (m *Metrics) ObserveScraped(c scraper.Competency, n int) {
	m.CasesScraped.WithLabelValues(string(c)).Add(float64(n))
}

func (m *Metrics) ObserveStored(created, updated, skipped int) {
	m.CasesStored.WithLabelValues("created").Add(float64(created))
	m.CasesStored.WithLabelValues("updated").Add(float64(updated))
	m.CasesStored.WithLabelValues("skipped").Add(float64(skipped))
}

// StartBulk marks a bulk run as running and returns the func that ends it.
func (m *Metrics) StartBulk() func() {
	start := time.Now()
	m.BulkInProgress.Inc()
	return func() {
		m.BulkInProgress.Dec()
		m.BulkDuration.Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
