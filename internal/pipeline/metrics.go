package pipeline

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics are the pipeline's Prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	Tasks           *prometheus.CounterVec
	Files           *prometheus.CounterVec
	Records         *prometheus.CounterVec
	MatchRate       prometheus.Histogram
	CatalogDuration prometheus.Histogram
	QueueDepth      prometheus.GaugeFunc
}

// NewMetrics registers collectors. queueDepth may be nil.
func NewMetrics(queueDepth func() float64) *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	m := &Metrics{
		registry: reg,
		Tasks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "enrollgest",
			Name:      "tasks_total",
			Help:      "Tasks finished, by final status.",
		}, []string{"status"}),
		Files: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "enrollgest",
			Name:      "files_total",
			Help:      "PDF files processed, by outcome.",
		}, []string{"outcome"}),
		Records: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "enrollgest",
			Name:      "records_total",
			Help:      "Enrollment records by stage.",
		}, []string{"stage"}),
		MatchRate: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "enrollgest",
			Name:      "match_rate",
			Help:      "Fraction of catalog sections matched to a PDF record, per file.",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		}),
		CatalogDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "enrollgest",
			Name:      "catalog_lookup_seconds",
			Help:      "Catalog lookup duration including retries.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if queueDepth != nil {
		m.QueueDepth = f.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "enrollgest",
			Name:      "queue_depth",
			Help:      "Tasks waiting for a worker.",
		}, queueDepth)
	}
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
