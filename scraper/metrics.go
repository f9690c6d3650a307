package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the Prometheus collectors of a crawl on their own registry.
type Metrics struct {
	Registry          *prometheus.Registry
	RequestsTotal     *prometheus.CounterVec
	RequestDuration   prometheus.Histogram
	VisitsTotal       *prometheus.CounterVec
	RecordsTotal      *prometheus.CounterVec
	PagesSkippedTotal *prometheus.CounterVec
	RetriesTotal      prometheus.Counter
	ErrorsTotal       *prometheus.CounterVec
}

// NewMetrics constructs and registers all collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_requests_total",
			Help: "HTTP requests by phase (started, completed, failed).",
		}, []string{"phase"}),
		RequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scraper_request_duration_seconds",
			Help:    "Latency of successful requests.",
			Buckets: prometheus.DefBuckets,
		}),
		VisitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_visits_total",
			Help: "Visits queued by crawl state.",
		}, []string{"state"}),
		RecordsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_records_total",
			Help: "Records extracted and sent to the pipeline.",
		}, []string{"site"}),
		PagesSkippedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_pages_skipped_total",
			Help: "Product pages skipped for a missing mandatory field.",
		}, []string{"site", "reason"}),
		RetriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scraper_retries_total",
			Help: "Retry attempts scheduled.",
		}),
		ErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_errors_total",
			Help: "Fetch and document errors by type.",
		}, []string{"error_type"}),
	}

	m.Registry.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.VisitsTotal,
		m.RecordsTotal,
		m.PagesSkippedTotal,
		m.RetriesTotal,
		m.ErrorsTotal,
	)
	return m
}

func (m *Metrics) IncRequest(phase string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(phase).Inc()
}

func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

func (m *Metrics) IncVisit(state string) {
	if m == nil {
		return
	}
	m.VisitsTotal.WithLabelValues(state).Inc()
}

func (m *Metrics) IncRecords(site string) {
	if m == nil {
		return
	}
	m.RecordsTotal.WithLabelValues(site).Inc()
}

func (m *Metrics) IncSkipped(site, reason string) {
	if m == nil {
		return
	}
	m.PagesSkippedTotal.WithLabelValues(site, reason).Inc()
}

func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}
