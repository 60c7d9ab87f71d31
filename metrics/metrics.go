package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	reg *prometheus.Registry

	// ingestion
	Fetched        *prometheus.CounterVec
	SourceErrors   *prometheus.CounterVec
	Rejected       prometheus.Counter
	Stored         prometheus.Counter
	HotDeals       prometheus.Counter
	IngestDuration prometheus.Histogram

	// queries
	Analyses       prometheus.Counter
	HTTPRequests   *prometheus.CounterVec
	HTTPLatencySec *prometheus.HistogramVec
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	fetched := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "leads_listings_fetched_total",
		Help: "Raw listings returned by upstream sources.",
	}, []string{"source"})
	sourceErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "leads_source_errors_total",
		Help: "Upstream source fetches that failed.",
	}, []string{"source"})
	rejected := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "leads_listings_rejected_total",
		Help: "Listings dropped by cleaning or scoring validation.",
	})
	stored := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "leads_listings_stored_total",
		Help: "Listings newly persisted.",
	})
	hot := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "leads_hot_deals_total",
		Help: "Newly persisted listings flagged as hot deals.",
	})
	ingestDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "leads_ingest_duration_seconds",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
	})
	analyses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "leads_market_analyses_total",
		Help: "Market analyses computed.",
	})
	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "leads_http_requests_total",
	}, []string{"method", "route", "status"})
	httpLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "leads_http_request_duration_seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	r.MustRegister(fetched, sourceErrors, rejected, stored, hot, ingestDuration, analyses, httpRequests, httpLatency)
	return &Registry{
		reg:            r,
		Fetched:        fetched,
		SourceErrors:   sourceErrors,
		Rejected:       rejected,
		Stored:         stored,
		HotDeals:       hot,
		IngestDuration: ingestDuration,
		Analyses:       analyses,
		HTTPRequests:   httpRequests,
		HTTPLatencySec: httpLatency,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
