package models

import (
	"fmt"
	"time"

	"github.com/attribly/attribution/internal/domain"
	"github.com/attribly/attribution/internal/ports"
)

var _ ports.ConfidenceScorer = (*ConfidenceScorer)(nil)

// defaultScorer serves calculations whose context carries no explicit
// scorer. DefaultConfidenceConfig always validates, so direct construction
// is safe here.
var defaultScorer = &ConfidenceScorer{config: DefaultConfidenceConfig()}

// ConfidenceScorer derives a [0,1] trust score for each attribution result
// from three weighted factors combined additively and clamped:
//
//   - metadata completeness: whether the touchpoint carries a well-typed
//     source string and position integer;
//   - timeliness: linear decay of the touchpoint's age over the configured
//     window, so older exposures score lower;
//   - positional confidence: model-dependent, supplied by the caller
//     (first/last-touch score the credited touchpoint higher).
//
// The scorer is stateless and safe for concurrent use. The evaluation clock
// is an explicit argument so tests can pin it.
type ConfidenceScorer struct {
	// config contains the validated factor weights and timeliness window.
	config ConfidenceConfig
}

// ConfidenceConfig controls the factor weights and timeliness window of the
// confidence scorer. Configuration is immutable after scorer creation.
type ConfidenceConfig struct {
	// CompletenessWeight scales the metadata completeness factor.
	CompletenessWeight float64 `yaml:"completeness_weight" json:"completeness_weight" validate:"min=0,max=1"`

	// TimelinessWeight scales the recency factor.
	TimelinessWeight float64 `yaml:"timeliness_weight" json:"timeliness_weight" validate:"min=0,max=1"`

	// PositionalWeight scales the model-dependent positional factor.
	PositionalWeight float64 `yaml:"positional_weight" json:"positional_weight" validate:"min=0,max=1"`

	// TimelinessWindow is the age at which the timeliness factor reaches
	// zero. Touchpoints older than the window contribute nothing.
	TimelinessWindow time.Duration `yaml:"timeliness_window" json:"timeliness_window" validate:"min=0"`
}

// DefaultConfidenceConfig returns the production factor weights
// (0.4 completeness, 0.3 timeliness, 0.3 positional) and a 90-day
// timeliness window.
func DefaultConfidenceConfig() ConfidenceConfig {
	return ConfidenceConfig{
		CompletenessWeight: 0.4,
		TimelinessWeight:   0.3,
		PositionalWeight:   0.3,
		TimelinessWindow:   90 * hoursPerDay * time.Hour,
	}
}

// NewConfidenceScorer creates a ConfidenceScorer with validated factor
// weights. Returns a configuration validation error if any weight is out of
// range or the window is negative.
func NewConfidenceScorer(config ConfidenceConfig) (*ConfidenceScorer, error) {
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &ConfidenceScorer{config: config}, nil
}

// Score composes the three confidence factors for tp, clamped to [0,1].
// The positional argument is the model-dependent factor from
// PositionalFactor; now is the evaluation clock for timeliness.
func (s *ConfidenceScorer) Score(tp domain.Touchpoint, positional float64, now time.Time) float64 {
	completeness := 0.0
	if _, ok := tp.Source(); ok {
		if _, ok := tp.Position(); ok {
			completeness = 1.0
		}
	}

	timeliness := 0.0
	if s.config.TimelinessWindow > 0 {
		age := now.Sub(tp.Timestamp)
		timeliness = 1.0 - float64(age)/float64(s.config.TimelinessWindow)
		if timeliness < 0 {
			timeliness = 0
		}
		// Future timestamps are rejected upstream; cap anyway so a skewed
		// clock cannot push the factor above 1.
		if timeliness > 1 {
			timeliness = 1
		}
	}

	score := s.config.CompletenessWeight*completeness +
		s.config.TimelinessWeight*timeliness +
		s.config.PositionalWeight*positional

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// PositionalFactor returns the model-dependent positional confidence
// contribution. First-touch and last-touch models trust the credited
// touchpoint fully and everything else half; the remaining models treat
// every position uniformly.
func PositionalFactor(mt domain.ModelType, credited bool) float64 {
	switch mt {
	case domain.ModelFirstTouch, domain.ModelLastTouch:
		if credited {
			return 1.0
		}
		return 0.5
	default:
		return 1.0
	}
}
