package domain

import (
	"time"
)

// ValidationStatus grades the trustworthiness of a single attribution
// result. It is derived from the composite confidence score through a
// ConfidenceThresholds value.
type ValidationStatus string

// Validation statuses, from most to least trustworthy.
const (
	// StatusValid marks results whose confidence meets the valid threshold.
	StatusValid ValidationStatus = "valid"

	// StatusPartial marks results above the partial threshold but below
	// the valid threshold.
	StatusPartial ValidationStatus = "partial"

	// StatusInvalid marks results below the partial threshold.
	StatusInvalid ValidationStatus = "invalid"
)

// WeightTolerance is the permitted deviation of a result set's weight sum
// from 1.0. Models guarantee conservation within this bound.
const WeightTolerance = 1e-4

// ConfidenceThresholds maps a composite confidence score onto a
// ValidationStatus. Thresholds are explicit configuration threaded through
// the dispatcher rather than package constants, so alternate thresholds
// remain testable.
type ConfidenceThresholds struct {
	// Valid is the minimum confidence for StatusValid.
	Valid float64 `json:"valid" yaml:"valid" validate:"min=0,max=1"`

	// Partial is the minimum confidence for StatusPartial.
	// Must not exceed Valid.
	Partial float64 `json:"partial" yaml:"partial" validate:"min=0,max=1"`
}

// DefaultConfidenceThresholds returns the production thresholds: 0.95 for
// valid and 80% of that (0.76) for partial.
func DefaultConfidenceThresholds() ConfidenceThresholds {
	return ConfidenceThresholds{Valid: 0.95, Partial: 0.95 * 0.8}
}

// StatusFor derives the validation status for a composite confidence score.
func (ct ConfidenceThresholds) StatusFor(score float64) ValidationStatus {
	switch {
	case score >= ct.Valid:
		return StatusValid
	case score >= ct.Partial:
		return StatusPartial
	default:
		return StatusInvalid
	}
}

// AttributionResult assigns one touchpoint its share of conversion credit.
// A model produces exactly one result per input touchpoint; the weights of
// a full result set sum to 1.0 within WeightTolerance.
//
// Results are created fresh on every calculation and never retained by the
// engine. Persisting them is a collaborator responsibility.
type AttributionResult struct {
	// TouchpointID identifies the credited touchpoint.
	TouchpointID string `json:"touchpoint_id"`

	// ConversionID links the credit to the journey's conversion event.
	ConversionID string `json:"conversion_id"`

	// Weight is this touchpoint's credit share in [0,1]. Zero is a
	// legitimate assignment for excluded touchpoints (e.g. everything
	// but the earliest under first-touch).
	Weight float64 `json:"weight"`

	// Model names the model type that produced this result.
	Model ModelType `json:"model"`

	// ConfidenceScore is the composite [0,1] trust score for this result.
	ConfidenceScore float64 `json:"confidence_score"`

	// ValidationStatus is derived from ConfidenceScore via thresholds.
	ValidationStatus ValidationStatus `json:"validation_status"`

	// CalculatedAt records the evaluation clock at calculation time.
	CalculatedAt time.Time `json:"calculated_at"`

	// Metadata carries algorithm parameters, processing time, and the
	// dispatcher's calculation id.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// TotalWeight sums the weights of a result set. Callers use it to verify
// weight conservation.
func TotalWeight(results []AttributionResult) float64 {
	var sum float64
	for _, r := range results {
		sum += r.Weight
	}
	return sum
}
