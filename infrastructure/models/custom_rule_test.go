package models

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attribly/attribution/internal/domain"
)

// ruleConfig builds a custom model config with uniform channel weights and
// the supplied rules.
func ruleConfig(rules map[string]domain.CustomRule) CustomRuleConfig {
	config := DefaultCustomRuleConfig()
	config.Rules = rules
	config.ChannelWeights = map[domain.Channel]float64{
		domain.ChannelSocialOrganic:  1.0,
		domain.ChannelEmailMarketing: 1.0,
		domain.ChannelPaidSearch:     1.0,
		domain.ChannelDirect:         1.0,
	}
	return config
}

func TestNewCustomRuleModel(t *testing.T) {
	tests := []struct {
		name          string
		modelName     string
		config        CustomRuleConfig
		expectedError string
	}{
		{
			name:      "valid config",
			modelName: "custom",
			config: ruleConfig(map[string]domain.CustomRule{
				"email": {Condition: "channel:email-marketing", Weight: 0.9},
			}),
		},
		{
			name:      "empty name",
			modelName: "",
			config: ruleConfig(map[string]domain.CustomRule{
				"email": {Condition: "channel:email-marketing", Weight: 0.9},
			}),
			expectedError: "model name cannot be empty",
		},
		{
			name:          "no rules",
			modelName:     "custom",
			config:        ruleConfig(nil),
			expectedError: "configuration validation failed",
		},
		{
			name:      "rule weight out of range",
			modelName: "custom",
			config: ruleConfig(map[string]domain.CustomRule{
				"email": {Condition: "channel:email-marketing", Weight: 1.5},
			}),
			expectedError: "configuration validation failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model, err := NewCustomRuleModel(tt.modelName, tt.config)
			if tt.expectedError != "" {
				assert.ErrorContains(t, err, tt.expectedError)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, domain.ModelCustom, model.Type())
		})
	}
}

func TestCustomRuleModel_Calculate_MatchedAndFallbackWeights(t *testing.T) {
	model, err := NewCustomRuleModel("custom", ruleConfig(map[string]domain.CustomRule{
		"email-boost": {Condition: "channel:email-marketing", Weight: 0.9},
	}))
	require.NoError(t, err)

	journey := domain.Journey{
		ConversionID: "conv-1",
		Touchpoints: []domain.Touchpoint{
			touchpointAt("tp-email", domain.ChannelEmailMarketing, testClock.Add(-48*time.Hour), 0),
			touchpointAt("tp-direct", domain.ChannelDirect, testClock.Add(-time.Hour), 1),
		},
	}

	results, err := model.Calculate(context.Background(), journey, pinnedCalc())
	require.NoError(t, err)
	require.Len(t, results, 2)

	// Matched rule weight 0.9 against the 1/2 linear fallback normalizes
	// to 9/14 and 5/14.
	assert.Equal(t, "tp-email", results[0].TouchpointID)
	assert.InDelta(t, 0.9/1.4, results[0].Weight, 1e-9)
	assert.InDelta(t, 0.5/1.4, results[1].Weight, 1e-9)
	assert.InDelta(t, 1.0, domain.TotalWeight(results), domain.WeightTolerance)
	assert.Equal(t, 1, results[0].Metadata["rules_matched"])
}

func TestCustomRuleModel_Calculate_RuleGrammar(t *testing.T) {
	journey := domain.Journey{
		ConversionID: "conv-1",
		Touchpoints: []domain.Touchpoint{
			touchpointAt("tp-1", domain.ChannelSocialOrganic, testClock.Add(-72*time.Hour), 0),
			touchpointAt("tp-2", domain.ChannelEmailMarketing, testClock.Add(-24*time.Hour), 1),
			touchpointAt("tp-3", domain.ChannelDirect, testClock.Add(-time.Hour), 2),
		},
	}
	// Sources must be clearly distinct or fuzzy matching would also accept
	// the neighbors.
	journey.Touchpoints[0].Metadata[domain.MetaKeySource] = "summer-launch"
	journey.Touchpoints[1].Metadata[domain.MetaKeySource] = "weekly-newsletter"
	journey.Touchpoints[2].Metadata[domain.MetaKeySource] = "organic-visit"

	tests := []struct {
		name      string
		rules     map[string]domain.CustomRule
		matchedID string
	}{
		{
			name: "channel scope",
			rules: map[string]domain.CustomRule{
				"r": {Condition: "channel:email-marketing", Weight: 1.0},
			},
			matchedID: "tp-2",
		},
		{
			name: "source scope",
			rules: map[string]domain.CustomRule{
				"r": {Condition: "source:summer-launch", Weight: 1.0},
			},
			matchedID: "tp-1",
		},
		{
			name: "position first",
			rules: map[string]domain.CustomRule{
				"r": {Condition: "position:first", Weight: 1.0},
			},
			matchedID: "tp-1",
		},
		{
			name: "position last",
			rules: map[string]domain.CustomRule{
				"r": {Condition: "position:last", Weight: 1.0},
			},
			matchedID: "tp-3",
		},
		{
			name: "bare value matches channel",
			rules: map[string]domain.CustomRule{
				"r": {Condition: "direct", Weight: 1.0},
			},
			matchedID: "tp-3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model, err := NewCustomRuleModel("custom", ruleConfig(tt.rules))
			require.NoError(t, err)

			results, err := model.Calculate(context.Background(), journey, pinnedCalc())
			require.NoError(t, err)
			require.Len(t, results, 3)

			var best domain.AttributionResult
			for _, r := range results {
				if r.Weight > best.Weight {
					best = r
				}
			}
			assert.Equal(t, tt.matchedID, best.TouchpointID)
			assert.Equal(t, 1, results[0].Metadata["rules_matched"])
		})
	}
}

func TestCustomRuleModel_Calculate_FuzzyChannelMatch(t *testing.T) {
	// A misspelled condition still matches its channel at the default
	// similarity threshold.
	model, err := NewCustomRuleModel("custom", ruleConfig(map[string]domain.CustomRule{
		"typo": {Condition: "channel:email-marketng", Weight: 1.0},
	}))
	require.NoError(t, err)

	journey := domain.Journey{
		ConversionID: "conv-1",
		Touchpoints: []domain.Touchpoint{
			touchpointAt("tp-email", domain.ChannelEmailMarketing, testClock.Add(-24*time.Hour), 0),
			touchpointAt("tp-direct", domain.ChannelDirect, testClock.Add(-time.Hour), 1),
		},
	}

	results, err := model.Calculate(context.Background(), journey, pinnedCalc())
	require.NoError(t, err)
	assert.Equal(t, 1, results[0].Metadata["rules_matched"])
	assert.Greater(t, results[0].Weight, results[1].Weight)
}

func TestCustomRuleModel_Calculate_LexicalRuleOrder(t *testing.T) {
	// Two rules match the same touchpoint; the lexically first rule name
	// wins regardless of map iteration order.
	model, err := NewCustomRuleModel("custom", ruleConfig(map[string]domain.CustomRule{
		"b-broad":  {Condition: "channel:direct", Weight: 0.2},
		"a-narrow": {Condition: "position:last", Weight: 0.8},
	}))
	require.NoError(t, err)

	journey := domain.Journey{
		ConversionID: "conv-1",
		Touchpoints: []domain.Touchpoint{
			touchpointAt("tp-1", domain.ChannelEmailMarketing, testClock.Add(-24*time.Hour), 0),
			touchpointAt("tp-2", domain.ChannelDirect, testClock.Add(-time.Hour), 1),
		},
	}

	results, err := model.Calculate(context.Background(), journey, pinnedCalc())
	require.NoError(t, err)
	require.Len(t, results, 2)

	// tp-2 takes 0.8 from "a-narrow", not 0.2 from "b-broad"; tp-1 falls
	// back to 0.5. Normalized: 0.5/1.3 and 0.8/1.3.
	assert.InDelta(t, 0.5/1.3, results[0].Weight, 1e-9)
	assert.InDelta(t, 0.8/1.3, results[1].Weight, 1e-9)
}

func TestCustomRuleModel_Calculate_UnmatchedFallsBackToLinear(t *testing.T) {
	model, err := NewCustomRuleModel("custom", ruleConfig(map[string]domain.CustomRule{
		"never": {Condition: "channel:video", Weight: 1.0},
	}))
	require.NoError(t, err)

	results, err := model.Calculate(context.Background(), threeTouchJourney(), pinnedCalc())
	require.NoError(t, err)
	require.Len(t, results, 3)

	for _, r := range results {
		assert.InDelta(t, 1.0/3.0, r.Weight, 1e-9)
	}
	assert.Equal(t, 0, results[0].Metadata["rules_matched"])
}

func TestCustomRuleModel_Calculate_ZeroMassFails(t *testing.T) {
	config := ruleConfig(map[string]domain.CustomRule{
		"email": {Condition: "channel:email-marketing", Weight: 0.9},
	})
	config.ChannelWeights = map[domain.Channel]float64{domain.ChannelVideo: 1.0}
	model, err := NewCustomRuleModel("custom", config)
	require.NoError(t, err)

	_, err = model.Calculate(context.Background(), threeTouchJourney(), pinnedCalc())

	var calcErr *domain.CalculationError
	require.ErrorAs(t, err, &calcErr)
	assert.Equal(t, domain.ModelCustom, calcErr.Model)
	assert.ErrorIs(t, err, domain.ErrZeroWeightSum)
}

func TestCustomRuleModel_FuzzyEquals(t *testing.T) {
	model, err := NewCustomRuleModel("custom", ruleConfig(map[string]domain.CustomRule{
		"r": {Condition: "channel:direct", Weight: 1.0},
	}))
	require.NoError(t, err)

	tests := []struct {
		name  string
		a, b  string
		match bool
	}{
		{name: "exact", a: "email-marketing", b: "email-marketing", match: true},
		{name: "case folded", a: "Email-Marketing", b: "email-marketing", match: true},
		{name: "whitespace trimmed", a: " direct ", b: "direct", match: true},
		{name: "single typo", a: "email-marketng", b: "email-marketing", match: true},
		{name: "unrelated", a: "direct", b: "email-marketing", match: false},
		{name: "both empty", a: "", b: "", match: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.match, model.fuzzyEquals(tt.a, tt.b))
		})
	}
}
