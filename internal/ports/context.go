package ports

import (
	"time"

	"go.uber.org/zap"

	"github.com/attribly/attribution/internal/domain"
)

// DefaultSoftSLA is the per-journey processing budget. Exceeding it triggers
// an observability warning, never a failure: the result is still returned,
// and hard timeouts are left to the caller.
const DefaultSoftSLA = 5 * time.Second

// ConfidenceScorer derives a [0,1] trust score for a single touchpoint's
// attribution result from metadata completeness, recency, and a
// model-dependent positional factor.
type ConfidenceScorer interface {
	// Score composes the confidence factors for tp. The positional factor
	// is supplied by the model (first/last-touch score credited
	// touchpoints higher, others lower); now pins the timeliness clock so
	// tests stay deterministic.
	Score(tp domain.Touchpoint, positional float64, now time.Time) float64
}

// CalculationContext carries the cross-cutting collaborators a model needs
// during a single calculation. Passing them explicitly keeps each model a
// pure function of its inputs: no model holds its own logger, clock, or SLA
// threshold.
//
// The zero value is usable: nil fields fall back to the wall clock, a no-op
// logger, no metrics, the zero SLA (disabled), and default thresholds are
// supplied by DefaultCalculationContext.
type CalculationContext struct {
	// Now supplies the evaluation clock. Tests pin it to a fixed instant
	// so timeliness scoring and future-timestamp checks are deterministic.
	Now func() time.Time

	// Logger receives SLA breach warnings and data-quality flags as
	// structured events. The engine never writes logs to disk itself.
	Logger *zap.Logger

	// Metrics records calculation latency and SLA breach counts for an
	// external observability collaborator. Nil disables collection.
	Metrics MetricsCollector

	// Scorer grades each result's trustworthiness. Nil selects the
	// engine's default scorer.
	Scorer ConfidenceScorer

	// SoftSLA is the per-journey processing budget. Zero disables the
	// check.
	SoftSLA time.Duration

	// Thresholds map composite confidence scores onto validation statuses.
	Thresholds domain.ConfidenceThresholds
}

// DefaultCalculationContext returns a context backed by the wall clock, a
// no-op logger, no metrics, the default soft SLA, and default confidence
// thresholds.
func DefaultCalculationContext() CalculationContext {
	return CalculationContext{
		Now:        time.Now,
		Logger:     zap.NewNop(),
		SoftSLA:    DefaultSoftSLA,
		Thresholds: domain.DefaultConfidenceThresholds(),
	}
}

// Clock returns the evaluation time, falling back to the wall clock when no
// clock function is configured.
func (c CalculationContext) Clock() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Log returns the configured logger, falling back to a no-op logger.
func (c CalculationContext) Log() *zap.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return zap.NewNop()
}
