package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for crawling and ingestion.
type Metrics struct {
	Registry           *prometheus.Registry
	RequestsTotal      *prometheus.CounterVec
	RequestDuration    prometheus.Histogram
	ItemsScrapedTotal  prometheus.Counter
	RetriesTotal       prometheus.Counter
	ErrorsTotal        *prometheus.CounterVec
	WarningsTotal      *prometheus.CounterVec
	PagesIngestedTotal prometheus.Counter
	BooksSavedTotal    prometheus.Counter
	BatchSaveDuration  prometheus.Histogram
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_requests_total",
			Help: "Total HTTP requests issued by the scraper.",
		},
		[]string{"phase"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scraper_request_duration_seconds",
			Help:    "HTTP request latency for scraper requests.",
			Buckets: prometheus.DefBuckets,
		},
	)
	itemsScraped := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_items_scraped_total",
			Help: "Total number of detail pages extracted.",
		},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_retries_total",
			Help: "Total number of retry attempts scheduled.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_errors_total",
			Help: "Total number of scraper errors by type.",
		},
		[]string{"error_type"},
	)
	warnings := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_extraction_warnings_total",
			Help: "Fields degraded to their zero value during extraction.",
		},
		[]string{"field"},
	)
	pages := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ingest_pages_total",
			Help: "Listing pages whose batch was committed.",
		},
	)
	booksSaved := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ingest_books_saved_total",
			Help: "Books persisted by ingestion runs.",
		},
	)
	batchDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ingest_batch_save_duration_seconds",
			Help:    "Time spent committing one page batch.",
			Buckets: prometheus.DefBuckets,
		},
	)

	registry.MustRegister(requests, requestDuration, itemsScraped, retries, errorsTotal,
		warnings, pages, booksSaved, batchDuration)

	return &Metrics{
		Registry:           registry,
		RequestsTotal:      requests,
		RequestDuration:    requestDuration,
		ItemsScrapedTotal:  itemsScraped,
		RetriesTotal:       retries,
		ErrorsTotal:        errorsTotal,
		WarningsTotal:      warnings,
		PagesIngestedTotal: pages,
		BooksSavedTotal:    booksSaved,
		BatchSaveDuration:  batchDuration,
	}
}

// IncRequest increments the requests total counter.
func (m *Metrics) IncRequest(phase string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(phase).Inc()
}

// ObserveDuration records an HTTP request duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// IncItems increments the items scraped counter.
func (m *Metrics) IncItems() {
	if m == nil {
		return
	}
	m.ItemsScrapedTotal.Inc()
}

// IncRetries increments the retries counter.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// IncWarning counts a degraded field.
func (m *Metrics) IncWarning(field string) {
	if m == nil {
		return
	}
	m.WarningsTotal.WithLabelValues(field).Inc()
}

// ObserveBatch records a committed page batch.
func (m *Metrics) ObserveBatch(books int, d time.Duration) {
	if m == nil {
		return
	}
	m.PagesIngestedTotal.Inc()
	m.BooksSavedTotal.Add(float64(books))
	m.BatchSaveDuration.Observe(d.Seconds())
}
