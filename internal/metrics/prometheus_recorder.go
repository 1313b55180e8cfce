package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pkgmirror"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	fetchDuration *prom.HistogramVec
	fetchResults  *prom.CounterVec
	loadDuration  prom.Histogram
	catalogSize   prom.Gauge
}

// NewPrometheusRecorder constructs the metrics and registers them with reg.
// A nil reg gets a fresh registry. Registering twice against the same
// registry panics, as with any Prometheus collector.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		fetchDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of individual API fetches",
			Buckets:   prom.DefBuckets,
		}, []string{"resource", "result"}),
		fetchResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_results_total",
			Help:      "API fetch outcomes by resource",
		}, []string{"resource", "result"}),
		loadDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "load_duration_seconds",
			Help:      "Duration of a full refresh of all mirrored state",
			Buckets:   prom.DefBuckets,
		}),
		catalogSize: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "catalog_packages",
			Help:      "Number of packages in the last published catalog",
		}),
	}
	reg.MustRegister(pr.fetchDuration, pr.fetchResults, pr.loadDuration, pr.catalogSize)
	return pr
}

func (p *PrometheusRecorder) ObserveFetch(resource string, d time.Duration, success bool) {
	label := resultLabel(success)
	p.fetchDuration.WithLabelValues(resource, label).Observe(d.Seconds())
	p.fetchResults.WithLabelValues(resource, label).Inc()
}

func (p *PrometheusRecorder) ObserveLoad(d time.Duration) {
	p.loadDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) SetCatalogSize(n int) {
	p.catalogSize.Set(float64(n))
}

// HTTPHandler returns an http.Handler that serves the metrics in reg.
func HTTPHandler(reg *prom.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
