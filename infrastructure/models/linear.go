package models

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/attribly/attribution/internal/domain"
	"github.com/attribly/attribution/internal/ports"
)

var _ ports.Model = (*LinearModel)(nil)

// LinearModel spreads conversion credit uniformly: every touchpoint in a
// journey of length N receives weight 1/N. It is the simplest conserved
// distribution and the fallback behavior for unmatched custom-rule
// touchpoints.
//
// The model is deterministic, stateless, and safe for concurrent execution.
type LinearModel struct {
	// name is the unique identifier for this model instance.
	name string
	// tracer is the OpenTelemetry tracer for observability.
	tracer trace.Tracer
}

// NewLinearModel creates a LinearModel ready for concurrent execution.
// Returns ErrEmptyModelName if name is empty.
func NewLinearModel(name string) (*LinearModel, error) {
	if name == "" {
		return nil, ErrEmptyModelName
	}
	return &LinearModel{
		name:   name,
		tracer: otel.Tracer("linear-model"),
	}, nil
}

// Name returns the unique identifier for this model instance.
func (m *LinearModel) Name() string { return m.name }

// Type returns domain.ModelLinear.
func (m *LinearModel) Type() domain.ModelType { return domain.ModelLinear }

// Calculate assigns weight 1/N to each of the journey's N touchpoints.
func (m *LinearModel) Calculate(
	ctx context.Context,
	journey domain.Journey,
	calc ports.CalculationContext,
) ([]domain.AttributionResult, error) {
	_, span := m.tracer.Start(ctx, "LinearModel.Calculate",
		trace.WithAttributes(
			attribute.String("model.type", string(domain.ModelLinear)),
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

	share := 1.0 / float64(len(sorted))
	weights := make([]float64, len(sorted))
	for i := range weights {
		weights[i] = share
	}

	return buildResults(domain.ModelLinear, m.name, journey, sorted, weights,
		calc, start, map[string]any{"share": share}), nil
}

// Validate reports whether the model is ready for execution.
func (m *LinearModel) Validate() error {
	if m.name == "" {
		return ErrEmptyModelName
	}
	return nil
}
