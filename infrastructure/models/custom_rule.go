package models

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/cases"

	"github.com/attribly/attribution/internal/domain"
	"github.com/attribly/attribution/internal/ports"
)

var (
	_ ports.Model = (*CustomRuleModel)(nil)

	// ruleCaser is a package-level Unicode case folder so condition
	// matching does not allocate a new caser per touchpoint.
	ruleCaser = cases.Fold()
)

// DefaultMatchThreshold is the minimum normalized levenshtein similarity
// for a fuzzy condition match. At 0.8, "email-marketng" still matches
// "email-marketing" while unrelated channel names do not.
const DefaultMatchThreshold = 0.8

// CustomRuleModel evaluates caller-supplied rules against each touchpoint
// to select its base weight, falling back to a linear 1/N share for
// unmatched touchpoints. Base weights are multiplied by the configured
// channel weights and renormalized to a conserved distribution.
//
// Rules are evaluated in lexical name order and the first match wins, which
// keeps results deterministic regardless of map iteration order. Conditions
// take the form "channel:<value>", "source:<value>", or
// "position:first|last"; a bare value matches against both channel and
// source. Channel and source comparisons are fuzzy: case-folded levenshtein
// similarity at or above the configured threshold counts as a match, so
// minor upstream spelling drift does not silently drop credit.
//
// The model is deterministic, stateless, and safe for concurrent execution.
type CustomRuleModel struct {
	// name is the unique identifier for this model instance.
	name string
	// config contains the validated rules and channel weights.
	config CustomRuleConfig
	// ruleNames caches the lexically sorted rule names for deterministic
	// evaluation order.
	ruleNames []string
	// tracer is the OpenTelemetry tracer for observability.
	tracer trace.Tracer
}

// CustomRuleConfig controls the rule set, channel multipliers, and fuzzy
// matching threshold of the custom model. Configuration is immutable after
// model creation.
type CustomRuleConfig struct {
	// Rules maps rule names to conditions and weights. At least one rule
	// is required; a custom model with no rules is just the linear model.
	Rules map[string]domain.CustomRule `yaml:"rules" json:"rules" validate:"required,min=1,dive"`

	// ChannelWeights is the secondary multiplier applied per channel.
	// Channels missing from the map multiply by zero.
	ChannelWeights map[domain.Channel]float64 `yaml:"channel_weights" json:"channel_weights" validate:"required,min=1,dive,min=0,max=1"`

	// MatchThreshold is the minimum levenshtein similarity for a fuzzy
	// condition match.
	MatchThreshold float64 `yaml:"match_threshold" json:"match_threshold" validate:"min=0,max=1"`
}

// DefaultCustomRuleConfig returns a config with the default fuzzy matching
// threshold. Rules and channel weights must be supplied by the caller.
func DefaultCustomRuleConfig() CustomRuleConfig {
	return CustomRuleConfig{MatchThreshold: DefaultMatchThreshold}
}

// NewCustomRuleModel creates a CustomRuleModel with validated rules and
// channel weights. Returns ErrEmptyModelName if name is empty, or a
// configuration validation error if any rule or weight is out of bounds.
func NewCustomRuleModel(name string, config CustomRuleConfig) (*CustomRuleModel, error) {
	if name == "" {
		return nil, ErrEmptyModelName
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	names := make([]string, 0, len(config.Rules))
	for rn := range config.Rules {
		names = append(names, rn)
	}
	sort.Strings(names)

	return &CustomRuleModel{
		name:      name,
		config:    config,
		ruleNames: names,
		tracer:    otel.Tracer("custom-rule-model"),
	}, nil
}

// Name returns the unique identifier for this model instance.
func (m *CustomRuleModel) Name() string { return m.name }

// Type returns domain.ModelCustom.
func (m *CustomRuleModel) Type() domain.ModelType { return domain.ModelCustom }

// Calculate selects each touchpoint's base weight from the first matching
// rule (lexical name order), defaulting to a linear 1/N share, multiplies by
// the configured channel weights, and renormalizes. An all-zero distribution
// fails with a CalculationError rather than dividing by zero.
func (m *CustomRuleModel) Calculate(
	ctx context.Context,
	journey domain.Journey,
	calc ports.CalculationContext,
) ([]domain.AttributionResult, error) {
	_, span := m.tracer.Start(ctx, "CustomRuleModel.Calculate",
		trace.WithAttributes(
			attribute.String("model.type", string(domain.ModelCustom)),
			attribute.String("model.id", m.name),
			attribute.Int("journey.touchpoints", journey.Len()),
			attribute.Int("config.rules", len(m.config.Rules)),
		),
	)
	defer span.End()

	start := time.Now()

	sorted, err := prepareJourney(journey, calc)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	n := len(sorted)
	fallback := 1.0 / float64(n)
	matched := 0

	weights := make([]float64, n)
	for i, tp := range sorted {
		base := fallback
		for _, rn := range m.ruleNames {
			rule := m.config.Rules[rn]
			if m.matchRule(rule.Condition, tp, i, n) {
				base = rule.Weight
				matched++
				break
			}
		}
		weights[i] = base * m.config.ChannelWeights[tp.Channel]
	}

	if err := renormalize(weights); err != nil {
		calcErr := &domain.CalculationError{
			Model:  domain.ModelCustom,
			Reason: "rule and channel weighting produced no mass to normalize",
			Err:    err,
		}
		span.RecordError(calcErr)
		return nil, calcErr
	}

	span.SetAttributes(attribute.Int("model.rules_matched", matched))
	return buildResults(domain.ModelCustom, m.name, journey, sorted, weights,
		calc, start, map[string]any{
			"rules":         len(m.config.Rules),
			"rules_matched": matched,
		}), nil
}

// matchRule reports whether a rule condition matches the touchpoint at
// index idx of a journey of length n. See the type documentation for the
// condition grammar.
func (m *CustomRuleModel) matchRule(cond string, tp domain.Touchpoint, idx, n int) bool {
	key, value, scoped := strings.Cut(cond, ":")
	if !scoped {
		return m.fuzzyEquals(cond, string(tp.Channel)) || m.matchSource(cond, tp)
	}

	switch strings.ToLower(strings.TrimSpace(key)) {
	case "channel":
		return m.fuzzyEquals(value, string(tp.Channel))
	case "source":
		return m.matchSource(value, tp)
	case "position":
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "first":
			return idx == 0
		case "last":
			return idx == n-1
		}
		return false
	default:
		// Unrecognized scopes never match; the condition text itself may
		// legitimately contain a colon (e.g. a URL source).
		return m.matchSource(cond, tp)
	}
}

// matchSource fuzzily compares value against the touchpoint's metadata
// source. Touchpoints without a well-typed source never match.
func (m *CustomRuleModel) matchSource(value string, tp domain.Touchpoint) bool {
	source, ok := tp.Source()
	if !ok {
		return false
	}
	return m.fuzzyEquals(value, source)
}

// fuzzyEquals reports whether two strings are similar enough under the
// configured threshold. Comparison is case-folded; similarity is
// normalized edit distance, 1 − distance/maxRuneCount, operating on runes
// for Unicode correctness.
func (m *CustomRuleModel) fuzzyEquals(a, b string) bool {
	a = ruleCaser.String(strings.TrimSpace(a))
	b = ruleCaser.String(strings.TrimSpace(b))
	if a == b {
		return true
	}

	threshold := m.config.MatchThreshold
	if threshold <= 0 {
		threshold = DefaultMatchThreshold
	}

	distance := levenshtein.ComputeDistance(a, b)
	maxLen := utf8.RuneCountInString(a)
	if l := utf8.RuneCountInString(b); l > maxLen {
		maxLen = l
	}
	if maxLen == 0 {
		return true
	}

	similarity := 1.0 - float64(distance)/float64(maxLen)
	return similarity >= threshold
}

// Validate reports whether the model is ready for execution.
func (m *CustomRuleModel) Validate() error {
	if m.name == "" {
		return ErrEmptyModelName
	}
	if err := validate.Struct(m.config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}
