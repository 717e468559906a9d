package models

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/attribly/attribution/internal/domain"
	"github.com/attribly/attribution/internal/ports"
)

var _ ports.Model = (*TimeDecayModel)(nil)

// TimeDecayModel weights touchpoints by exponential decay toward the
// conversion: weight ∝ 2^(−Δ/halfLife), where Δ is the touchpoint's distance
// from the conversion time in days. A touchpoint one half-life before the
// conversion carries half the raw weight of one at the conversion instant.
// Weights are normalized so the result set sums to 1.0, which guarantees an
// earlier touchpoint never outweighs a later one.
//
// The model is deterministic, stateless, and safe for concurrent execution.
type TimeDecayModel struct {
	// name is the unique identifier for this model instance.
	name string
	// config contains the validated decay parameters.
	config TimeDecayConfig
	// tracer is the OpenTelemetry tracer for observability.
	tracer trace.Tracer
}

// TimeDecayConfig controls the decay rate of the time-decay model.
// Configuration is immutable after model creation.
type TimeDecayConfig struct {
	// HalfLifeDays is the number of days after which a touchpoint's raw
	// credit halves. Bounded to [1,30] by the configuration contract.
	HalfLifeDays int `yaml:"half_life_days" json:"half_life_days" validate:"required,min=1,max=30"`
}

// NewTimeDecayModel creates a TimeDecayModel with a validated half-life.
// Returns ErrEmptyModelName if name is empty, or a configuration validation
// error if the half-life is out of bounds.
func NewTimeDecayModel(name string, config TimeDecayConfig) (*TimeDecayModel, error) {
	if name == "" {
		return nil, ErrEmptyModelName
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &TimeDecayModel{
		name:   name,
		config: config,
		tracer: otel.Tracer("time-decay-model"),
	}, nil
}

// Name returns the unique identifier for this model instance.
func (m *TimeDecayModel) Name() string { return m.name }

// Type returns domain.ModelTimeDecay.
func (m *TimeDecayModel) Type() domain.ModelType { return domain.ModelTimeDecay }

// Calculate assigns each touchpoint a raw weight of 2^(−Δdays/halfLife)
// relative to the journey's conversion time, then normalizes the
// distribution to sum to 1.0. Touchpoints recorded after the conversion are
// clamped to Δ = 0 so they never amplify beyond full weight.
func (m *TimeDecayModel) Calculate(
	ctx context.Context,
	journey domain.Journey,
	calc ports.CalculationContext,
) ([]domain.AttributionResult, error) {
	_, span := m.tracer.Start(ctx, "TimeDecayModel.Calculate",
		trace.WithAttributes(
			attribute.String("model.type", string(domain.ModelTimeDecay)),
			attribute.String("model.id", m.name),
			attribute.Int("journey.touchpoints", journey.Len()),
			attribute.Int("config.half_life_days", m.config.HalfLifeDays),
		),
	)
	defer span.End()

	start := time.Now()

	sorted, err := prepareJourney(journey, calc)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	conversion := journey.ConversionAt()
	halfLife := float64(m.config.HalfLifeDays)

	weights := make([]float64, len(sorted))
	for i, tp := range sorted {
		deltaDays := conversion.Sub(tp.Timestamp).Hours() / hoursPerDay
		if deltaDays < 0 {
			deltaDays = 0
		}
		weights[i] = math.Exp2(-deltaDays / halfLife)
	}

	// Raw weights are strictly positive, so normalization cannot fail for
	// a validated journey; the check guards against future regressions.
	if err := renormalize(weights); err != nil {
		calcErr := &domain.CalculationError{
			Model:  domain.ModelTimeDecay,
			Reason: "decay weights produced no mass to normalize",
			Err:    err,
		}
		span.RecordError(calcErr)
		return nil, calcErr
	}

	return buildResults(domain.ModelTimeDecay, m.name, journey, sorted, weights,
		calc, start, map[string]any{"half_life_days": m.config.HalfLifeDays}), nil
}

// Validate reports whether the model is ready for execution.
func (m *TimeDecayModel) Validate() error {
	if m.name == "" {
		return ErrEmptyModelName
	}
	if err := validate.Struct(m.config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}
