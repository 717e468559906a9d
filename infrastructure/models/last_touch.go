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

var _ ports.Model = (*LastTouchModel)(nil)

// LastTouchModel assigns the full conversion credit to the chronologically
// latest touchpoint; every other touchpoint receives weight zero but still
// appears in the result set. Touchpoints sharing the latest timestamp
// tie-break by input order, so the later of two simultaneous entries wins.
//
// The model is deterministic, stateless, and safe for concurrent execution.
type LastTouchModel struct {
	// name is the unique identifier for this model instance.
	name string
	// tracer is the OpenTelemetry tracer for observability.
	tracer trace.Tracer
}

// NewLastTouchModel creates a LastTouchModel ready for concurrent execution.
// Returns ErrEmptyModelName if name is empty.
func NewLastTouchModel(name string) (*LastTouchModel, error) {
	if name == "" {
		return nil, ErrEmptyModelName
	}
	return &LastTouchModel{
		name:   name,
		tracer: otel.Tracer("last-touch-model"),
	}, nil
}

// Name returns the unique identifier for this model instance.
func (m *LastTouchModel) Name() string { return m.name }

// Type returns domain.ModelLastTouch.
func (m *LastTouchModel) Type() domain.ModelType { return domain.ModelLastTouch }

// Calculate credits the latest touchpoint with weight 1.0 and all others
// with 0.
func (m *LastTouchModel) Calculate(
	ctx context.Context,
	journey domain.Journey,
	calc ports.CalculationContext,
) ([]domain.AttributionResult, error) {
	_, span := m.tracer.Start(ctx, "LastTouchModel.Calculate",
		trace.WithAttributes(
			attribute.String("model.type", string(domain.ModelLastTouch)),
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

	weights := make([]float64, len(sorted))
	last := len(sorted) - 1
	weights[last] = 1.0

	results := buildResults(domain.ModelLastTouch, m.name, journey, sorted, weights,
		calc, start, map[string]any{"credited_touchpoint": sorted[last].ID})

	span.SetAttributes(attribute.String("model.credited_touchpoint", sorted[last].ID))
	return results, nil
}

// Validate reports whether the model is ready for execution.
func (m *LastTouchModel) Validate() error {
	if m.name == "" {
		return ErrEmptyModelName
	}
	return nil
}
