// Package middleware provides cross-cutting concerns for the attribution
// engine.
package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/attribly/attribution/internal/ports"
)

// PrometheusMetrics implements the MetricsCollector interface using
// Prometheus. It provides real-time monitoring of calculation latency,
// SLA breaches, and result filtering for the attribution engine.
type PrometheusMetrics struct {
	calculationLatency *prometheus.HistogramVec
	slaBreaches        *prometheus.CounterVec
	resultsFiltered    *prometheus.CounterVec
	operationCounter   *prometheus.CounterVec
	confidenceScores   *prometheus.HistogramVec
	systemGauges       *prometheus.GaugeVec
}

// NewPrometheusMetrics creates a new PrometheusMetrics instance and
// registers all required metrics in the global Prometheus registry.
func NewPrometheusMetrics() *PrometheusMetrics {
	return &PrometheusMetrics{
		calculationLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "attribution_calculation_duration_seconds",
				Help:    "Execution time of attribution calculations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "model"},
		),
		slaBreaches: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "attribution_sla_breaches_total",
				Help: "Calculations that exceeded the soft processing SLA.",
			},
			[]string{"model"},
		),
		resultsFiltered: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "attribution_results_filtered_total",
				Help: "Results dropped by the confidence floor filter.",
			},
			[]string{"model"},
		),
		operationCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "attribution_operations_total",
				Help: "Total operations performed by the attribution engine.",
			},
			[]string{"operation", "status", "model"},
		),
		confidenceScores: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "attribution_confidence_score",
				Help:    "Distribution of per-result confidence scores.",
				Buckets: prometheus.LinearBuckets(0, 0.1, 11),
			},
			[]string{"model"},
		),
		systemGauges: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "attribution_engine_state",
				Help: "Current engine state values.",
			},
			[]string{"metric", "model"},
		),
	}
}

// modelLabel extracts the model label, defaulting to "unknown" so a missing
// label never drops a sample.
func modelLabel(labels map[string]string) string {
	if m, ok := labels["model"]; ok && m != "" {
		return m
	}
	return "unknown"
}

// RecordLatency implements the MetricsCollector interface by recording
// calculation latency in a Prometheus histogram.
func (pm *PrometheusMetrics) RecordLatency(
	operation string,
	duration time.Duration,
	labels map[string]string,
) {
	pm.calculationLatency.WithLabelValues(operation, modelLabel(labels)).Observe(duration.Seconds())
}

// RecordCounter implements the MetricsCollector interface by incrementing
// Prometheus counters.
func (pm *PrometheusMetrics) RecordCounter(
	metric string, value float64, labels map[string]string,
) {
	model := modelLabel(labels)

	switch metric {
	case "attribution_sla_breaches_total":
		pm.slaBreaches.WithLabelValues(model).Add(value)
	case "attribution_results_filtered_total":
		pm.resultsFiltered.WithLabelValues(model).Add(value)
	default:
		pm.operationCounter.WithLabelValues(metric, "success", model).Add(value)
	}
}

// RecordGauge implements the MetricsCollector interface by setting
// Prometheus gauge values.
func (pm *PrometheusMetrics) RecordGauge(
	metric string, value float64, labels map[string]string,
) {
	pm.systemGauges.WithLabelValues(metric, modelLabel(labels)).Set(value)
}

// RecordHistogram implements the MetricsCollector interface by recording
// values in a Prometheus histogram. Confidence scores route to their own
// histogram; everything else lands in the latency histogram.
func (pm *PrometheusMetrics) RecordHistogram(
	metric string, value float64, labels map[string]string,
) {
	model := modelLabel(labels)
	if metric == "attribution_confidence_score" {
		pm.confidenceScores.WithLabelValues(model).Observe(value)
		return
	}
	pm.calculationLatency.WithLabelValues(metric, model).Observe(value)
}

// Compile-time verification that PrometheusMetrics implements
// MetricsCollector.
var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)
