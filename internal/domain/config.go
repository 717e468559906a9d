package domain

import (
	"sort"
	"time"
)

// ModelType names one of the closed set of attribution strategies.
type ModelType string

// Supported attribution model types.
const (
	// ModelFirstTouch credits the chronologically earliest touchpoint.
	ModelFirstTouch ModelType = "first-touch"

	// ModelLastTouch credits the chronologically latest touchpoint.
	ModelLastTouch ModelType = "last-touch"

	// ModelLinear spreads credit uniformly across all touchpoints.
	ModelLinear ModelType = "linear"

	// ModelTimeDecay weights touchpoints by exponential decay toward the
	// conversion time.
	ModelTimeDecay ModelType = "time-decay"

	// ModelPositionBased applies a fixed first/last/middle split combined
	// with configured channel weights.
	ModelPositionBased ModelType = "position-based"

	// ModelCustom evaluates caller-supplied rules per touchpoint with a
	// linear fallback for unmatched touchpoints.
	ModelCustom ModelType = "custom"
)

// knownModelTypes indexes the closed model type set.
var knownModelTypes = map[ModelType]struct{}{
	ModelFirstTouch:    {},
	ModelLastTouch:     {},
	ModelLinear:        {},
	ModelTimeDecay:     {},
	ModelPositionBased: {},
	ModelCustom:        {},
}

// Valid reports whether mt is a known model type.
func (mt ModelType) Valid() bool {
	_, ok := knownModelTypes[mt]
	return ok
}

// RequiresChannelWeights reports whether configurations for mt must carry a
// channel weight map. Channel weights are required for position-based and
// custom models and forbidden otherwise.
func (mt ModelType) RequiresChannelWeights() bool {
	return mt == ModelPositionBased || mt == ModelCustom
}

// KnownModelTypes returns the closed model type set in lexical order.
func KnownModelTypes() []ModelType {
	types := make([]ModelType, 0, len(knownModelTypes))
	for mt := range knownModelTypes {
		types = append(types, mt)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// AttributionWindow is the date range within which touchpoints are eligible
// for credit. End must not precede Start and the span is capped by the
// configuration validator.
type AttributionWindow struct {
	Start time.Time `json:"start" yaml:"start" validate:"required"`
	End   time.Time `json:"end" yaml:"end" validate:"required"`
}

// Span returns the window's length. Negative when End precedes Start.
func (w AttributionWindow) Span() time.Duration { return w.End.Sub(w.Start) }

// Contains reports whether t falls inside the window, inclusive of both
// bounds.
func (w AttributionWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// CustomRule pairs a matching condition with the weight assigned to
// touchpoints it matches. Conditions take the form "channel:<value>",
// "source:<value>", or "position:first|last"; a bare value matches against
// both channel and source.
type CustomRule struct {
	Condition string  `json:"condition" yaml:"condition" validate:"required,min=1"`
	Weight    float64 `json:"weight" yaml:"weight" validate:"min=0,max=1"`
}

// ModelConfiguration describes how conversion credit should be computed.
// A configuration is either valid as a whole or rejected as a whole by the
// configuration validator; partial application is never permitted.
type ModelConfiguration struct {
	// ModelType selects the attribution strategy.
	ModelType ModelType `json:"model_type" yaml:"model_type" validate:"required,modeltype"`

	// AttributionWindow bounds touchpoint eligibility.
	AttributionWindow AttributionWindow `json:"attribution_window" yaml:"attribution_window"`

	// ChannelWeights maps channels to weights in [0,1] summing to 1.0
	// within the validator's tolerance. Required for position-based and
	// custom models, forbidden otherwise. Weight-sum and per-channel
	// checks live in the configuration validator, which reports the
	// offending channels.
	ChannelWeights map[Channel]float64 `json:"channel_weights,omitempty" yaml:"channel_weights,omitempty"`

	// DecayHalfLifeDays is the half-life in days for time-decay weighting.
	// Required iff ModelType is time-decay; integer in [1,30].
	DecayHalfLifeDays *int `json:"decay_half_life_days,omitempty" yaml:"decay_half_life_days,omitempty"`

	// CustomRules maps rule names to conditions and weights, used only by
	// the custom model. Rules are evaluated in lexical name order.
	CustomRules map[string]CustomRule `json:"custom_rules,omitempty" yaml:"custom_rules,omitempty"`
}
