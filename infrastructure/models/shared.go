// Package models provides the attribution strategies that implement the
// ports.Model interface for the attribution calculation engine, together
// with the confidence scorer that grades each result.
package models

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/attribly/attribution/internal/domain"
	"github.com/attribly/attribution/internal/ports"
)

// MaxTouchpoints caps journey size to keep single-journey calculations
// within the soft SLA on pathological inputs.
const MaxTouchpoints = 10000

// hoursPerDay converts timestamp deltas into fractional days for decay
// weighting and timeliness scoring.
const hoursPerDay = 24.0

// Common errors returned by model constructors.
var (
	// ErrEmptyModelName is returned when attempting to create a model with
	// an empty name.
	ErrEmptyModelName = errors.New("model name cannot be empty")
)

// Package-level validator instance for configuration validation.
// Uses go-playground/validator v10 for struct tag-based validation.
var validate = validator.New()

// validateJourney enforces the structural contract every model shares:
// a non-empty journey with a conversion id, where every touchpoint carries
// an id, a known channel, and a non-future timestamp, and no id repeats.
// Returns a *domain.ValidationError listing every violation, or nil.
func validateJourney(j domain.Journey, now time.Time) error {
	ve := domain.NewValidationError("journey")

	if j.ConversionID == "" {
		ve.Add("conversion_id", "must not be empty")
	}
	if len(j.Touchpoints) == 0 {
		ve.Add("touchpoints", "%v", domain.ErrEmptyJourney)
		return ve
	}
	if len(j.Touchpoints) > MaxTouchpoints {
		ve.Add("touchpoints", "journey has %d touchpoints, limit is %d",
			len(j.Touchpoints), MaxTouchpoints)
	}

	seen := make(map[string]struct{}, len(j.Touchpoints))
	for i, tp := range j.Touchpoints {
		if tp.ID == "" {
			ve.Add(field(i, "id"), "must not be empty")
		} else if _, dup := seen[tp.ID]; dup {
			ve.Add(field(i, "id"), "duplicate touchpoint id %q", tp.ID)
		} else {
			seen[tp.ID] = struct{}{}
		}

		if tp.Timestamp.IsZero() {
			ve.Add(field(i, "timestamp"), "must not be zero")
		} else if tp.Timestamp.After(now) {
			ve.Add(field(i, "timestamp"), "timestamp %s is in the future",
				tp.Timestamp.Format(time.RFC3339))
		}

		if tp.Channel == "" {
			ve.Add(field(i, "channel"), "must not be empty")
		} else if !tp.Channel.Valid() {
			ve.Add(field(i, "channel"), "unknown channel %q", tp.Channel)
		}

		if tp.Value != nil && *tp.Value < 0 {
			ve.Add(field(i, "value"), "must not be negative, got %g", *tp.Value)
		}
	}

	if ve.HasErrors() {
		return ve
	}
	return nil
}

// field renders a touchpoint field path like "touchpoints[2].channel".
func field(i int, name string) string {
	return fmt.Sprintf("touchpoints[%d].%s", i, name)
}

// prepareJourney validates the journey and returns its touchpoints sorted by
// ascending timestamp (stable, so identical timestamps keep input order).
// Non-chronological input is flagged through the logger but never rejected;
// it indicates an upstream ordering quirk, not bad data.
func prepareJourney(j domain.Journey, calc ports.CalculationContext) ([]domain.Touchpoint, error) {
	if err := validateJourney(j, calc.Clock()); err != nil {
		return nil, err
	}
	if !j.IsChronological() {
		calc.Log().Warn("journey touchpoints arrived out of order",
			zap.String("conversion_id", j.ConversionID),
			zap.Int("touchpoints", j.Len()))
	}
	return j.SortedByTime(), nil
}

// renormalize scales weights in place so they sum to exactly 1.0.
// Returns domain.ErrZeroWeightSum when the distribution has no mass to
// scale, which callers translate into a CalculationError rather than
// dividing by zero.
func renormalize(weights []float64) error {
	var sum float64
	for _, w := range weights {
		sum += w
	}
	if sum <= 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return domain.ErrZeroWeightSum
	}
	for i := range weights {
		weights[i] /= sum
	}
	return nil
}

// scorerFrom selects the confidence scorer for a calculation, falling back
// to the engine default when the context carries none.
func scorerFrom(calc ports.CalculationContext) ports.ConfidenceScorer {
	if calc.Scorer != nil {
		return calc.Scorer
	}
	return defaultScorer
}

// buildResults assembles the final result set for a calculation: weights
// arrive final and conserved, and this step attaches confidence scores,
// validation statuses, and shared metadata including processing time.
// It also records calculation latency and raises the soft-SLA warning; the
// SLA is observability-only, so a breach never fails the calculation.
func buildResults(
	mt domain.ModelType,
	name string,
	journey domain.Journey,
	sorted []domain.Touchpoint,
	weights []float64,
	calc ports.CalculationContext,
	start time.Time,
	params map[string]any,
) []domain.AttributionResult {
	elapsed := time.Since(start)
	now := calc.Clock()
	scorer := scorerFrom(calc)

	results := make([]domain.AttributionResult, len(sorted))
	for i, tp := range sorted {
		credited := weights[i] > 0
		confidence := scorer.Score(tp, PositionalFactor(mt, credited), now)

		meta := map[string]any{
			"model_name":         name,
			"processing_time_ms": elapsed.Milliseconds(),
		}
		for k, v := range params {
			meta[k] = v
		}

		results[i] = domain.AttributionResult{
			TouchpointID:     tp.ID,
			ConversionID:     journey.ConversionID,
			Weight:           weights[i],
			Model:            mt,
			ConfidenceScore:  confidence,
			ValidationStatus: calc.Thresholds.StatusFor(confidence),
			CalculatedAt:     now,
			Metadata:         meta,
		}
	}

	labels := map[string]string{"model": string(mt)}
	if calc.Metrics != nil {
		calc.Metrics.RecordLatency("calculate", elapsed, labels)
	}
	if calc.SoftSLA > 0 && elapsed > calc.SoftSLA {
		calc.Log().Warn("attribution calculation exceeded soft SLA",
			zap.String("model", string(mt)),
			zap.String("conversion_id", journey.ConversionID),
			zap.Duration("elapsed", elapsed),
			zap.Duration("sla", calc.SoftSLA))
		if calc.Metrics != nil {
			calc.Metrics.RecordCounter("attribution_sla_breaches_total", 1, labels)
		}
	}

	return results
}
