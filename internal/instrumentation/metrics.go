package instrumentation

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics contains the Prometheus metrics for scans.
type Metrics struct {
	registry *prometheus.Registry

	ScansTotal       *prometheus.CounterVec
	SourceFailures   *prometheus.CounterVec
	Opportunities    *prometheus.CounterVec
	EventsEvaluated  prometheus.Counter
	EventsMalformed  prometheus.Counter
	ScanDurationSecs prometheus.Histogram
	BestMarginPct    prometheus.Gauge
	AlertsSent       prometheus.Counter
}

// NewMetrics creates the metrics on a private registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		ScansTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "arbscanner_scans_total",
			Help: "Scans completed by fetch status",
		}, []string{"status"}),

		SourceFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "arbscanner_source_failures_total",
			Help: "Odds fetch failures by sport key",
		}, []string{"source"}),

		Opportunities: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "arbscanner_opportunities_total",
			Help: "Opportunities at or above the threshold by evaluation mode",
		}, []string{"mode"}),

		EventsEvaluated: factory.NewCounter(prometheus.CounterOpts{
			Name: "arbscanner_events_evaluated_total",
			Help: "Events that passed validation and horizon filtering",
		}),

		EventsMalformed: factory.NewCounter(prometheus.CounterOpts{
			Name: "arbscanner_events_malformed_total",
			Help: "Events skipped as malformed",
		}),

		ScanDurationSecs: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "arbscanner_scan_duration_seconds",
			Help:    "Wall time of a scan including retrieval",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}),

		BestMarginPct: factory.NewGauge(prometheus.GaugeOpts{
			Name: "arbscanner_best_margin_pct",
			Help: "Highest margin seen in the latest scan",
		}),

		AlertsSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "arbscanner_alerts_sent_total",
			Help: "Alerts dispatched",
		}),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordScan records the outcome of one scan.
func (m *Metrics) RecordScan(status string, seconds float64) {
	if m == nil {
		return
	}
	m.ScansTotal.WithLabelValues(status).Inc()
	m.ScanDurationSecs.Observe(seconds)
}

// RecordSourceFailure increments the failure counter of a source.
func (m *Metrics) RecordSourceFailure(source string) {
	if m == nil {
		return
	}
	m.SourceFailures.WithLabelValues(source).Inc()
}

// RecordEvaluation records event counts of an evaluation pass.
func (m *Metrics) RecordEvaluation(evaluated, malformed int) {
	if m == nil {
		return
	}
	m.EventsEvaluated.Add(float64(evaluated))
	m.EventsMalformed.Add(float64(malformed))
}

// RecordOpportunity increments the opportunity counter for mode.
func (m *Metrics) RecordOpportunity(mode string) {
	if m == nil {
		return
	}
	m.Opportunities.WithLabelValues(mode).Inc()
}

// SetBestMargin records the best margin of the latest scan.
func (m *Metrics) SetBestMargin(pct float64) {
	if m == nil {
		return
	}
	m.BestMarginPct.Set(pct)
}

// RecordAlert increments the alert counter.
func (m *Metrics) RecordAlert() {
	if m == nil {
		return
	}
	m.AlertsSent.Inc()
}
