package application

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/attribly/attribution/infrastructure/models"
	"github.com/attribly/attribution/internal/domain"
	"github.com/attribly/attribution/internal/ports"
)

// Verify interface compliance at compile time.
var _ ports.ModelRegistry = (*Dispatcher)(nil)

// DefaultConfidenceFloor is the confidence a result must meet to survive
// the dispatcher's filter. Callers filtering for high-confidence results
// keep only valid entries at or above this floor.
const DefaultConfidenceFloor = 0.95

// Dispatcher routes validated configurations to the matching attribution
// model, runs the calculation, and packages the results. It is the only
// entry point callers need: validation, model resolution, confidence
// filtering, and error classification all happen here.
//
// The dispatcher holds no mutable per-calculation state, so a single
// instance serves concurrent callers; journeys are independent and need no
// coordination.
type Dispatcher struct {
	// factories maps model types to their factory functions.
	factories map[domain.ModelType]ports.ModelFactory
	// mu protects concurrent access to the factories map.
	mu sync.RWMutex
	// validator gates every configuration before model resolution.
	validator *ConfigValidator
	// calc carries the cross-cutting collaborators handed to each model.
	calc ports.CalculationContext
	// confidenceFloor filters results after calculation. Zero or negative
	// disables filtering.
	confidenceFloor float64
	// tracer is the OpenTelemetry tracer for observability.
	tracer trace.Tracer
}

// DispatcherOption customizes dispatcher construction.
type DispatcherOption func(*Dispatcher)

// WithCalculationContext replaces the default calculation context, letting
// callers inject a pinned clock, logger, metrics collector, or alternate
// confidence thresholds.
func WithCalculationContext(calc ports.CalculationContext) DispatcherOption {
	return func(d *Dispatcher) { d.calc = calc }
}

// WithConfidenceFloor overrides the default confidence floor. A floor of
// zero or below disables filtering entirely.
func WithConfidenceFloor(floor float64) DispatcherOption {
	return func(d *Dispatcher) { d.confidenceFloor = floor }
}

// WithConfigValidator replaces the default configuration validator, e.g. to
// run with an alternate window cap in tests.
func WithConfigValidator(v *ConfigValidator) DispatcherOption {
	return func(d *Dispatcher) { d.validator = v }
}

// NewDispatcher creates a Dispatcher with the built-in model factories
// registered and production defaults for validation, filtering, and the
// calculation context.
func NewDispatcher(opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		factories:       make(map[domain.ModelType]ports.ModelFactory),
		validator:       NewConfigValidator(),
		calc:            ports.DefaultCalculationContext(),
		confidenceFloor: DefaultConfidenceFloor,
		tracer:          otel.Tracer("attribution-dispatcher"),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.registerBuiltinFactories()
	return d
}

// registerBuiltinFactories registers the six standard attribution models.
func (d *Dispatcher) registerBuiltinFactories() {
	d.factories[domain.ModelFirstTouch] = func(cfg domain.ModelConfiguration) (ports.Model, error) {
		return models.NewFirstTouchModel("first_touch")
	}
	d.factories[domain.ModelLastTouch] = func(cfg domain.ModelConfiguration) (ports.Model, error) {
		return models.NewLastTouchModel("last_touch")
	}
	d.factories[domain.ModelLinear] = func(cfg domain.ModelConfiguration) (ports.Model, error) {
		return models.NewLinearModel("linear")
	}
	d.factories[domain.ModelTimeDecay] = func(cfg domain.ModelConfiguration) (ports.Model, error) {
		// Validation guarantees the half-life is present for time-decay.
		return models.NewTimeDecayModel("time_decay", models.TimeDecayConfig{
			HalfLifeDays: *cfg.DecayHalfLifeDays,
		})
	}
	d.factories[domain.ModelPositionBased] = func(cfg domain.ModelConfiguration) (ports.Model, error) {
		first, last, middle := models.DefaultPositionSplit()
		return models.NewPositionBasedModel("position_based", models.PositionBasedConfig{
			FirstWeight:    first,
			LastWeight:     last,
			MiddleWeight:   middle,
			ChannelWeights: cfg.ChannelWeights,
		})
	}
	d.factories[domain.ModelCustom] = func(cfg domain.ModelConfiguration) (ports.Model, error) {
		config := models.DefaultCustomRuleConfig()
		config.Rules = cfg.CustomRules
		config.ChannelWeights = cfg.ChannelWeights
		return models.NewCustomRuleModel("custom", config)
	}
}

// CreateModel builds the model implementation for the given type. Unlike
// Run, it does not validate the configuration first; callers extending the
// registry use it for introspection and testing.
func (d *Dispatcher) CreateModel(mt domain.ModelType, cfg domain.ModelConfiguration) (ports.Model, error) {
	d.mu.RLock()
	factory, ok := d.factories[mt]
	d.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownModelType, mt)
	}
	return factory(cfg)
}

// RegisterModelFactory registers a factory for a model type, replacing any
// existing registration. This allows extending the engine with custom
// strategies at runtime.
func (d *Dispatcher) RegisterModelFactory(mt domain.ModelType, factory ports.ModelFactory) error {
	if mt == "" {
		return fmt.Errorf("model type cannot be empty")
	}
	if factory == nil {
		return fmt.Errorf("factory function cannot be nil")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.factories[mt] = factory
	return nil
}

// SupportedTypes returns all registered model types in lexical order.
func (d *Dispatcher) SupportedTypes() []domain.ModelType {
	d.mu.RLock()
	defer d.mu.RUnlock()

	types := make([]domain.ModelType, 0, len(d.factories))
	for mt := range d.factories {
		types = append(types, mt)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// Run executes one attribution calculation end to end using the
// dispatcher's default confidence floor. See RunWithFloor for semantics.
func (d *Dispatcher) Run(
	ctx context.Context,
	journey domain.Journey,
	cfg domain.ModelConfiguration,
) ([]domain.AttributionResult, error) {
	return d.RunWithFloor(ctx, journey, cfg, d.confidenceFloor)
}

// RunWithFloor validates the configuration, resolves and runs the matching
// model, and filters the results by the supplied confidence floor.
//
// Error contract:
//   - *domain.ConfigurationError when the configuration fails validation;
//     no calculation is attempted.
//   - *domain.ValidationError / *domain.CalculationError propagated
//     unchanged from the model.
//   - *domain.NoValidResultsError when filtering empties the result set;
//     downstream consumers must not read that as "zero credit".
//
// A floor of zero or below disables filtering. A missing factory for a
// validated model type is a wiring bug and panics; it can never happen for
// the built-in set.
func (d *Dispatcher) RunWithFloor(
	ctx context.Context,
	journey domain.Journey,
	cfg domain.ModelConfiguration,
	floor float64,
) ([]domain.AttributionResult, error) {
	ctx, span := d.tracer.Start(ctx, "Dispatcher.Run",
		trace.WithAttributes(
			attribute.String("model.type", string(cfg.ModelType)),
			attribute.String("journey.conversion_id", journey.ConversionID),
			attribute.Int("journey.touchpoints", journey.Len()),
			attribute.Float64("filter.confidence_floor", floor),
		),
	)
	defer span.End()

	if err := d.validator.Validate(cfg); err != nil {
		span.RecordError(err)
		return nil, err
	}

	d.mu.RLock()
	factory, ok := d.factories[cfg.ModelType]
	d.mu.RUnlock()
	if !ok {
		// Unreachable for a validated configuration: every known model
		// type has a built-in factory, and unknown types fail validation.
		panic(fmt.Sprintf("no model factory registered for validated model type %s", cfg.ModelType))
	}

	model, err := factory(cfg)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("building %s model: %w", cfg.ModelType, err)
	}

	results, err := model.Calculate(ctx, journey, d.calc)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	calculationID := uuid.NewString()
	for i := range results {
		results[i].Metadata["calculation_id"] = calculationID
	}
	span.SetAttributes(attribute.String("calculation.id", calculationID))

	if floor <= 0 {
		return results, nil
	}

	filtered := make([]domain.AttributionResult, 0, len(results))
	for _, r := range results {
		if r.ConfidenceScore >= floor {
			filtered = append(filtered, r)
		}
	}

	if dropped := len(results) - len(filtered); dropped > 0 && d.calc.Metrics != nil {
		d.calc.Metrics.RecordCounter("attribution_results_filtered_total",
			float64(dropped), map[string]string{"model": string(cfg.ModelType)})
	}

	if len(filtered) == 0 {
		err := &domain.NoValidResultsError{Floor: floor, Evaluated: len(results)}
		span.RecordError(err)
		return nil, err
	}

	return filtered, nil
}
