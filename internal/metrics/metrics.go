package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fleetreport"

// Metrics holds the report engine metrics. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Catalog metrics
	CatalogEntries  prometheus.Gauge
	CatalogErrors   prometheus.Gauge
	CatalogWarnings prometheus.Gauge
	CatalogLoads    *prometheus.CounterVec

	// Retrieval metrics
	Runs              *prometheus.CounterVec
	RecordsEmitted    *prometheus.CounterVec
	PartialResults    *prometheus.CounterVec
	RetrievalDuration *prometheus.HistogramVec
}

// NewMetrics creates the metrics and registers them, with the Go runtime
// collectors, in a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		CatalogEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "entries",
			Help:      "Number of report definitions in the current catalog",
		}),

		CatalogErrors: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "has_errors",
			Help:      "Whether the last catalog load recorded errors (1=yes, 0=no)",
		}),

		CatalogWarnings: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "has_warnings",
			Help:      "Whether the last catalog load recorded warnings (1=yes, 0=no)",
		}),

		CatalogLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "loads_total",
			Help:      "Total number of catalog loads by outcome",
		}, []string{"outcome"}),

		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "report",
			Name:      "runs_total",
			Help:      "Total number of report runs by status",
		}, []string{"report", "status"}),

		RecordsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "report",
			Name:      "records_emitted_total",
			Help:      "Total number of records emitted by report runs",
		}, []string{"report"}),

		PartialResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "report",
			Name:      "partial_results_total",
			Help:      "Total number of report runs truncated by the report limit",
		}, []string{"report"}),

		RetrievalDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "report",
			Name:      "run_duration_seconds",
			Help:      "Report run duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"report"}),
	}

	m.registry.MustRegister(
		m.CatalogEntries,
		m.CatalogErrors,
		m.CatalogWarnings,
		m.CatalogLoads,
		m.Runs,
		m.RecordsEmitted,
		m.PartialResults,
		m.RetrievalDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveLoad(entries int, hasErrors, hasWarnings bool) {
	if m == nil {
		return
	}
	m.CatalogEntries.Set(float64(entries))
	m.CatalogErrors.Set(flag(hasErrors))
	m.CatalogWarnings.Set(flag(hasWarnings))
	outcome := "ok"
	switch {
	case hasErrors:
		outcome = "errors"
	case hasWarnings:
		outcome = "warnings"
	}
	m.CatalogLoads.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveRun(report string, records int64, partial bool, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.Runs.WithLabelValues(report, status).Inc()
	m.RetrievalDuration.WithLabelValues(report).Observe(elapsed.Seconds())
	if err != nil {
		return
	}
	m.RecordsEmitted.WithLabelValues(report).Add(float64(records))
	if partial {
		m.PartialResults.WithLabelValues(report).Inc()
	}
}

func flag(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
