// Package ports defines the core interfaces that form the contract between
// the domain/application layers and the infrastructure layer.
// These interfaces enable dependency inversion and make the engine testable.
package ports

import (
	"context"

	"github.com/attribly/attribution/internal/domain"
)

// Model is the contract shared by every attribution strategy. Each model
// distributes conversion credit across a journey's touchpoints according to
// its weighting rule.
// Models must be stateless and thread-safe: journeys are processed
// independently with no coordination, so callers may fan calculations out
// across goroutines freely.
type Model interface {
	// Name returns a unique identifier for this model instance.
	// The name is used for logging, debugging, and result metadata.
	Name() string

	// Type returns the model type this implementation realizes.
	Type() domain.ModelType

	// Calculate distributes conversion credit across the journey's
	// touchpoints. It returns exactly one AttributionResult per input
	// touchpoint, with weights summing to 1.0 within
	// domain.WeightTolerance.
	//
	// Calculate rejects structurally invalid journeys (empty, missing
	// fields, duplicate ids, future timestamps) with a
	// *domain.ValidationError, and degenerate weight distributions with a
	// *domain.CalculationError. It never partially succeeds.
	//
	// The calc parameter carries the evaluation clock, logger, metrics,
	// and SLA threshold; passing them explicitly keeps each model a pure
	// function of its inputs.
	Calculate(ctx context.Context, journey domain.Journey, calc CalculationContext) ([]domain.AttributionResult, error)

	// Validate checks if the model is properly configured and ready for
	// execution. Return nil if validation passes, or an error describing
	// what is invalid.
	Validate() error
}

// ModelFactory builds a Model from a validated configuration.
// Factories may assume the configuration already passed the configuration
// validator; they only translate configuration into an implementation.
type ModelFactory func(cfg domain.ModelConfiguration) (Model, error)

// ModelRegistry resolves model types to implementations. It supports
// dynamic registration so callers can extend the closed built-in set with
// their own strategies.
type ModelRegistry interface {
	// CreateModel builds the model implementation for the given type.
	CreateModel(mt domain.ModelType, cfg domain.ModelConfiguration) (Model, error)

	// RegisterModelFactory registers a factory for a model type,
	// replacing any existing registration.
	RegisterModelFactory(mt domain.ModelType, factory ModelFactory) error

	// SupportedTypes returns all registered model types.
	SupportedTypes() []domain.ModelType
}
