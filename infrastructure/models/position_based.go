package models

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/attribly/attribution/internal/domain"
	"github.com/attribly/attribution/internal/ports"
)

var _ ports.Model = (*PositionBasedModel)(nil)

// PositionBasedModel applies the industry-standard U-shaped split: 40% to
// the first touchpoint, 40% to the last, and the remaining 20% spread evenly
// across the middle. It then multiplies each position's share by the
// configured channel weight before renormalizing to a conserved
// distribution.
//
// Channels absent from the weight map contribute zero; if that zeroes out
// the entire distribution the model fails with a CalculationError rather
// than dividing by zero.
//
// The model is deterministic, stateless, and safe for concurrent execution.
type PositionBasedModel struct {
	// name is the unique identifier for this model instance.
	name string
	// config contains the validated split and channel weights.
	config PositionBasedConfig
	// tracer is the OpenTelemetry tracer for observability.
	tracer trace.Tracer
}

// PositionBasedConfig controls the positional split and the per-channel
// multipliers of the position-based model. Configuration is immutable after
// model creation.
type PositionBasedConfig struct {
	// FirstWeight is the share of credit reserved for the earliest
	// touchpoint before channel weighting.
	FirstWeight float64 `yaml:"first_weight" json:"first_weight" validate:"min=0,max=1"`

	// LastWeight is the share reserved for the latest touchpoint.
	LastWeight float64 `yaml:"last_weight" json:"last_weight" validate:"min=0,max=1"`

	// MiddleWeight is the share spread evenly across middle touchpoints.
	MiddleWeight float64 `yaml:"middle_weight" json:"middle_weight" validate:"min=0,max=1"`

	// ChannelWeights is the secondary multiplier applied per channel.
	// Channels missing from the map multiply by zero.
	ChannelWeights map[domain.Channel]float64 `yaml:"channel_weights" json:"channel_weights" validate:"required,min=1,dive,min=0,max=1"`
}

// DefaultPositionSplit returns the conventional 40/40/20 positional split.
// Channel weights must still be supplied by the caller.
func DefaultPositionSplit() (first, last, middle float64) {
	return 0.4, 0.4, 0.2
}

// NewPositionBasedModel creates a PositionBasedModel with a validated split
// and channel weight map. Returns ErrEmptyModelName if name is empty, or a
// configuration validation error if the split or weights are out of bounds.
func NewPositionBasedModel(name string, config PositionBasedConfig) (*PositionBasedModel, error) {
	if name == "" {
		return nil, ErrEmptyModelName
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &PositionBasedModel{
		name:   name,
		config: config,
		tracer: otel.Tracer("position-based-model"),
	}, nil
}

// Name returns the unique identifier for this model instance.
func (m *PositionBasedModel) Name() string { return m.name }

// Type returns domain.ModelPositionBased.
func (m *PositionBasedModel) Type() domain.ModelType { return domain.ModelPositionBased }

// Calculate computes the positional base split, multiplies it by the
// configured channel weights, and renormalizes so weights sum to 1.0.
// A single-touchpoint journey receives weight 1.0 regardless of split or
// channel weighting (unless its channel weight is zero, a degenerate
// distribution reported as a CalculationError).
func (m *PositionBasedModel) Calculate(
	ctx context.Context,
	journey domain.Journey,
	calc ports.CalculationContext,
) ([]domain.AttributionResult, error) {
	_, span := m.tracer.Start(ctx, "PositionBasedModel.Calculate",
		trace.WithAttributes(
			attribute.String("model.type", string(domain.ModelPositionBased)),
			attribute.String("model.id", m.name),
			attribute.Int("journey.touchpoints", journey.Len()),
		),
	)
	defer span.End()

	start := time.Now()

	sorted, err := prepareJourney(journey, calc)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	weights := m.baseSplit(len(sorted))
	for i, tp := range sorted {
		weights[i] *= m.config.ChannelWeights[tp.Channel]
	}

	if err := renormalize(weights); err != nil {
		calcErr := &domain.CalculationError{
			Model:  domain.ModelPositionBased,
			Reason: "no touchpoint channel carries a configured weight",
			Err:    err,
		}
		span.RecordError(calcErr)
		return nil, calcErr
	}

	return buildResults(domain.ModelPositionBased, m.name, journey, sorted, weights,
		calc, start, map[string]any{
			"first_weight":  m.config.FirstWeight,
			"last_weight":   m.config.LastWeight,
			"middle_weight": m.config.MiddleWeight,
		}), nil
}

// baseSplit computes the positional base weights for a journey of length n
// before channel weighting. One touchpoint takes everything; two share the
// first and last buckets; three or more spread the middle bucket evenly.
func (m *PositionBasedModel) baseSplit(n int) []float64 {
	weights := make([]float64, n)
	switch {
	case n == 1:
		weights[0] = 1.0
	case n == 2:
		weights[0] = m.config.FirstWeight
		weights[1] = m.config.LastWeight
	default:
		weights[0] = m.config.FirstWeight
		weights[n-1] = m.config.LastWeight
		middleShare := m.config.MiddleWeight / float64(n-2)
		for i := 1; i < n-1; i++ {
			weights[i] = middleShare
		}
	}
	return weights
}

// Validate reports whether the model is ready for execution.
func (m *PositionBasedModel) Validate() error {
	if m.name == "" {
		return ErrEmptyModelName
	}
	if err := validate.Struct(m.config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}
