package ports

import (
	"time"
)

// MetricsCollector defines the interface for emitting operational metrics.
// Implementations should integrate with observability platforms like
// Prometheus or OpenTelemetry; the engine itself never writes to a
// time-series store.
type MetricsCollector interface {
	// RecordLatency records the execution time of an operation.
	// The labels map provides additional context, typically the model type.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter increments a counter metric.
	// Used for SLA breaches, filtered results, and error counts.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordGauge sets the current value of a gauge metric.
	RecordGauge(metric string, value float64, labels map[string]string)

	// RecordHistogram records a value in a histogram, e.g. confidence
	// score distributions.
	RecordHistogram(metric string, value float64, labels map[string]string)
}
