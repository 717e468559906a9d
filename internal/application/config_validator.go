// Package application wires the attribution engine together: it validates
// model configurations, dispatches calculations to the matching model
// implementation, fans batches of journeys out across workers, and loads
// configurations from YAML documents.
package application

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/attribly/attribution/internal/domain"
)

// Validation bounds threaded through the configuration validator. Both are
// explicit options rather than hard-coded constants so the engine remains
// testable with alternate thresholds.
const (
	// DefaultWindowCap bounds the attribution window span.
	DefaultWindowCap = 90 * 24 * time.Hour

	// DefaultWeightSumTolerance is the permitted deviation of a channel
	// weight map's sum from 1.0.
	DefaultWeightSumTolerance = 1e-4
)

// ConfigValidator checks a ModelConfiguration's invariants before any
// calculation runs. It is the single gate preventing invalid configuration
// state from propagating into a model: a configuration is either valid as a
// whole or rejected as a whole with a structured error list.
//
// Validation is a pure function of its input; it never normalizes or
// repairs a configuration.
type ConfigValidator struct {
	// validator performs struct tag validation, extended with the
	// modeltype custom rule.
	validator *validator.Validate

	// windowCap bounds the attribution window span.
	windowCap time.Duration

	// weightSumTolerance bounds the channel weight sum's deviation from 1.
	weightSumTolerance float64
}

// ConfigValidatorOption customizes validator bounds.
type ConfigValidatorOption func(*ConfigValidator)

// WithWindowCap overrides the maximum attribution window span.
func WithWindowCap(limit time.Duration) ConfigValidatorOption {
	return func(v *ConfigValidator) { v.windowCap = limit }
}

// WithWeightSumTolerance overrides the channel weight sum tolerance.
func WithWeightSumTolerance(tol float64) ConfigValidatorOption {
	return func(v *ConfigValidator) { v.weightSumTolerance = tol }
}

// NewConfigValidator creates a ConfigValidator with the default bounds and
// the modeltype custom validation registered.
func NewConfigValidator(opts ...ConfigValidatorOption) *ConfigValidator {
	v := validator.New()

	// Registration only fails for empty tags or nil funcs; neither applies.
	_ = v.RegisterValidation("modeltype", func(fl validator.FieldLevel) bool {
		return domain.ModelType(fl.Field().String()).Valid()
	})

	cv := &ConfigValidator{
		validator:          v,
		windowCap:          DefaultWindowCap,
		weightSumTolerance: DefaultWeightSumTolerance,
	}
	for _, opt := range opts {
		opt(cv)
	}
	return cv
}

// Validate checks every configuration invariant and returns either nil or a
// *domain.ConfigurationError listing all violations. Partial application is
// never permitted: callers must treat any error as a complete rejection.
func (v *ConfigValidator) Validate(cfg domain.ModelConfiguration) error {
	ce := domain.NewConfigurationError()

	if err := v.validator.Struct(cfg); err != nil {
		v.collectFieldErrors(err, ce)
	}

	v.checkWindow(cfg, ce)

	// Model-type-dependent requiredness checks only make sense for a
	// known model type; an unknown type is already reported above.
	if cfg.ModelType.Valid() {
		v.checkChannelWeights(cfg, ce)
		v.checkDecay(cfg, ce)
		v.checkCustomRules(cfg, ce)
	}

	if ce.HasErrors() {
		return ce
	}
	return nil
}

// collectFieldErrors translates struct tag failures into structured field
// errors with stable, human-readable messages.
func (v *ConfigValidator) collectFieldErrors(err error, ce *domain.ConfigurationError) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		ce.Add("configuration", "%v", err)
		return
	}

	for _, fe := range verrs {
		fieldPath := snakePath(strings.TrimPrefix(fe.Namespace(), "ModelConfiguration."))
		switch fe.Tag() {
		case "required":
			ce.Add(fieldPath, "is required")
		case "modeltype":
			ce.Add(fieldPath, "unknown model type %q; known types: %v",
				fe.Value(), domain.KnownModelTypes())
		default:
			ce.Add(fieldPath, "failed %q validation", fe.Tag())
		}
	}
}

// checkWindow enforces the attribution window invariants: end must not
// precede start and the span must not exceed the configured cap.
func (v *ConfigValidator) checkWindow(cfg domain.ModelConfiguration, ce *domain.ConfigurationError) {
	w := cfg.AttributionWindow
	if w.Start.IsZero() || w.End.IsZero() {
		// Missing bounds are already reported by the required tags.
		return
	}
	if w.End.Before(w.Start) {
		ce.Add("attribution_window", "end %s precedes start %s",
			w.End.Format(time.RFC3339), w.Start.Format(time.RFC3339))
		return
	}
	if w.Span() > v.windowCap {
		ce.Add("attribution_window", "span %s exceeds maximum %s",
			w.Span(), v.windowCap)
	}
}

// checkChannelWeights enforces presence, range, membership, and the
// weight-sum invariant, reporting exactly which channels and weights caused
// a failure.
func (v *ConfigValidator) checkChannelWeights(cfg domain.ModelConfiguration, ce *domain.ConfigurationError) {
	if !cfg.ModelType.RequiresChannelWeights() {
		if len(cfg.ChannelWeights) > 0 {
			ce.Add("channel_weights", "forbidden for %s models", cfg.ModelType)
		}
		return
	}

	if len(cfg.ChannelWeights) == 0 {
		ce.Add("channel_weights", "required for %s models", cfg.ModelType)
		return
	}

	channels := make([]domain.Channel, 0, len(cfg.ChannelWeights))
	for ch := range cfg.ChannelWeights {
		channels = append(channels, ch)
	}
	sort.Slice(channels, func(i, j int) bool { return channels[i] < channels[j] })

	var sum float64
	for _, ch := range channels {
		weight := cfg.ChannelWeights[ch]
		if !ch.Valid() {
			ce.Add("channel_weights", "unknown channel %q", ch)
		}
		if weight < 0 || weight > 1 {
			ce.Add("channel_weights", "weight %g for channel %s must be in [0,1]", weight, ch)
		}
		sum += weight
	}

	if math.Abs(sum-1.0) > v.weightSumTolerance {
		ce.Add("channel_weights", "weights sum to %.4f; must sum to 1.0 within ±%g",
			sum, v.weightSumTolerance)
	}
}

// checkDecay enforces the required-iff relationship between the time-decay
// model and its half-life parameter.
func (v *ConfigValidator) checkDecay(cfg domain.ModelConfiguration, ce *domain.ConfigurationError) {
	if cfg.ModelType == domain.ModelTimeDecay {
		if cfg.DecayHalfLifeDays == nil {
			ce.Add("decay_half_life_days", "required for %s models", domain.ModelTimeDecay)
			return
		}
		if d := *cfg.DecayHalfLifeDays; d < 1 || d > 30 {
			ce.Add("decay_half_life_days", "must be in [1,30], got %d", d)
		}
		return
	}
	if cfg.DecayHalfLifeDays != nil {
		ce.Add("decay_half_life_days", "forbidden for %s models", cfg.ModelType)
	}
}

// checkCustomRules enforces that rules appear only on custom models, that a
// custom model carries at least one rule, and that each rule is well-formed.
func (v *ConfigValidator) checkCustomRules(cfg domain.ModelConfiguration, ce *domain.ConfigurationError) {
	if cfg.ModelType != domain.ModelCustom {
		if len(cfg.CustomRules) > 0 {
			ce.Add("custom_rules", "forbidden for %s models", cfg.ModelType)
		}
		return
	}

	if len(cfg.CustomRules) == 0 {
		ce.Add("custom_rules", "required for %s models", domain.ModelCustom)
		return
	}

	names := make([]string, 0, len(cfg.CustomRules))
	for name := range cfg.CustomRules {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		rule := cfg.CustomRules[name]
		if strings.TrimSpace(rule.Condition) == "" {
			ce.Add(fmt.Sprintf("custom_rules[%s].condition", name), "must not be empty")
		}
		if rule.Weight < 0 || rule.Weight > 1 {
			ce.Add(fmt.Sprintf("custom_rules[%s].weight", name),
				"must be in [0,1], got %g", rule.Weight)
		}
	}
}

// snakePath converts a validator namespace like
// "AttributionWindow.Start" into "attribution_window.start".
func snakePath(path string) string {
	var b strings.Builder
	for i, r := range path {
		if r >= 'A' && r <= 'Z' {
			if i > 0 && path[i-1] != '.' {
				b.WriteByte('_')
			}
			b.WriteRune(r - 'A' + 'a')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
