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

var _ ports.Model = (*FirstTouchModel)(nil)

// FirstTouchModel assigns the full conversion credit to the chronologically
// earliest touchpoint; every other touchpoint receives weight zero but still
// appears in the result set. Touchpoints sharing the earliest timestamp
// tie-break by input order (stable sort).
//
// The model is deterministic, stateless, and safe for concurrent execution.
type FirstTouchModel struct {
	// name is the unique identifier for this model instance.
	name string
	// tracer is the OpenTelemetry tracer for observability.
	tracer trace.Tracer
}

// NewFirstTouchModel creates a FirstTouchModel ready for concurrent
// execution. Returns ErrEmptyModelName if name is empty.
func NewFirstTouchModel(name string) (*FirstTouchModel, error) {
	if name == "" {
		return nil, ErrEmptyModelName
	}
	return &FirstTouchModel{
		name:   name,
		tracer: otel.Tracer("first-touch-model"),
	}, nil
}

// Name returns the unique identifier for this model instance.
func (m *FirstTouchModel) Name() string { return m.name }

// Type returns domain.ModelFirstTouch.
func (m *FirstTouchModel) Type() domain.ModelType { return domain.ModelFirstTouch }

// Calculate credits the earliest touchpoint with weight 1.0 and all others
// with 0. A single-touchpoint journey therefore yields weight 1.0 for that
// touchpoint, matching every other model.
func (m *FirstTouchModel) Calculate(
	ctx context.Context,
	journey domain.Journey,
	calc ports.CalculationContext,
) ([]domain.AttributionResult, error) {
	_, span := m.tracer.Start(ctx, "FirstTouchModel.Calculate",
		trace.WithAttributes(
			attribute.String("model.type", string(domain.ModelFirstTouch)),
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
	weights[0] = 1.0

	results := buildResults(domain.ModelFirstTouch, m.name, journey, sorted, weights,
		calc, start, map[string]any{"credited_touchpoint": sorted[0].ID})

	span.SetAttributes(attribute.String("model.credited_touchpoint", sorted[0].ID))
	return results, nil
}

// Validate reports whether the model is ready for execution.
func (m *FirstTouchModel) Validate() error {
	if m.name == "" {
		return ErrEmptyModelName
	}
	return nil
}
