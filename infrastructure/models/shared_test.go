package models

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attribly/attribution/internal/domain"
	"github.com/attribly/attribution/internal/ports"
)

// testClock is the pinned evaluation instant shared by the model tests so
// timeliness scoring and future-timestamp checks stay deterministic.
var testClock = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

// pinnedCalc returns a calculation context whose clock is frozen at
// testClock.
func pinnedCalc() ports.CalculationContext {
	calc := ports.DefaultCalculationContext()
	calc.Now = func() time.Time { return testClock }
	return calc
}

// touchpointAt builds a touchpoint with complete metadata so confidence
// scoring contributes its full completeness factor.
func touchpointAt(id string, ch domain.Channel, ts time.Time, position int) domain.Touchpoint {
	return domain.Touchpoint{
		ID:        id,
		Channel:   ch,
		Timestamp: ts,
		Metadata: map[string]any{
			domain.MetaKeySource:   "campaign-" + id,
			domain.MetaKeyPosition: position,
		},
	}
}

// threeTouchJourney builds a chronological three-touchpoint journey ending
// one hour before the pinned clock.
func threeTouchJourney() domain.Journey {
	return domain.Journey{
		ConversionID:   "conv-1",
		ConversionTime: testClock.Add(-time.Hour),
		Touchpoints: []domain.Touchpoint{
			touchpointAt("tp-1", domain.ChannelSocialOrganic, testClock.Add(-72*time.Hour), 0),
			touchpointAt("tp-2", domain.ChannelEmailMarketing, testClock.Add(-24*time.Hour), 1),
			touchpointAt("tp-3", domain.ChannelPaidSearch, testClock.Add(-time.Hour), 2),
		},
	}
}

func TestValidateJourney(t *testing.T) {
	negative := -1.5

	tests := []struct {
		name          string
		journey       domain.Journey
		expectedError string
	}{
		{
			name:    "valid journey passes",
			journey: threeTouchJourney(),
		},
		{
			name:          "empty journey",
			journey:       domain.Journey{ConversionID: "conv-1"},
			expectedError: "journey contains no touchpoints",
		},
		{
			name: "missing conversion id",
			journey: domain.Journey{
				Touchpoints: []domain.Touchpoint{
					touchpointAt("tp-1", domain.ChannelDirect, testClock.Add(-time.Hour), 0),
				},
			},
			expectedError: "conversion_id: must not be empty",
		},
		{
			name: "duplicate touchpoint ids",
			journey: domain.Journey{
				ConversionID: "conv-1",
				Touchpoints: []domain.Touchpoint{
					touchpointAt("tp-1", domain.ChannelDirect, testClock.Add(-2*time.Hour), 0),
					touchpointAt("tp-1", domain.ChannelDisplay, testClock.Add(-time.Hour), 1),
				},
			},
			expectedError: `touchpoints[1].id: duplicate touchpoint id "tp-1"`,
		},
		{
			name: "future timestamp",
			journey: domain.Journey{
				ConversionID: "conv-1",
				Touchpoints: []domain.Touchpoint{
					touchpointAt("tp-1", domain.ChannelDirect, testClock.Add(time.Hour), 0),
				},
			},
			expectedError: "is in the future",
		},
		{
			name: "zero timestamp",
			journey: domain.Journey{
				ConversionID: "conv-1",
				Touchpoints: []domain.Touchpoint{
					{ID: "tp-1", Channel: domain.ChannelDirect},
				},
			},
			expectedError: "touchpoints[0].timestamp: must not be zero",
		},
		{
			name: "unknown channel",
			journey: domain.Journey{
				ConversionID: "conv-1",
				Touchpoints: []domain.Touchpoint{
					touchpointAt("tp-1", domain.Channel("fax"), testClock.Add(-time.Hour), 0),
				},
			},
			expectedError: `unknown channel "fax"`,
		},
		{
			name: "missing channel",
			journey: domain.Journey{
				ConversionID: "conv-1",
				Touchpoints: []domain.Touchpoint{
					{ID: "tp-1", Timestamp: testClock.Add(-time.Hour)},
				},
			},
			expectedError: "touchpoints[0].channel: must not be empty",
		},
		{
			name: "negative value",
			journey: domain.Journey{
				ConversionID: "conv-1",
				Touchpoints: []domain.Touchpoint{
					{
						ID:        "tp-1",
						Channel:   domain.ChannelDirect,
						Timestamp: testClock.Add(-time.Hour),
						Value:     &negative,
					},
				},
			},
			expectedError: "must not be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateJourney(tt.journey, testClock)
			if tt.expectedError == "" {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectedError)

			var ve *domain.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, "journey", ve.Entity)
		})
	}
}

func TestValidateJourney_ReportsAllViolations(t *testing.T) {
	journey := domain.Journey{
		Touchpoints: []domain.Touchpoint{
			{ID: "", Channel: domain.Channel("fax"), Timestamp: testClock.Add(time.Hour)},
		},
	}

	err := validateJourney(journey, testClock)
	require.Error(t, err)

	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	// Missing conversion id, empty touchpoint id, future timestamp, and
	// the unknown channel are all reported in one pass.
	assert.Len(t, ve.Errors, 4)
}

func TestValidateJourney_TouchpointLimit(t *testing.T) {
	tps := make([]domain.Touchpoint, MaxTouchpoints+1)
	for i := range tps {
		tps[i] = touchpointAt(
			fmt.Sprintf("tp-%d", i),
			domain.ChannelDirect,
			testClock.Add(-time.Duration(i+1)*time.Second),
			i,
		)
	}

	err := validateJourney(domain.Journey{ConversionID: "conv-1", Touchpoints: tps}, testClock)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "limit is 10000")
}

func TestRenormalize(t *testing.T) {
	t.Run("scales to unit sum", func(t *testing.T) {
		weights := []float64{2, 1, 1}
		require.NoError(t, renormalize(weights))
		assert.InDelta(t, 0.5, weights[0], 1e-9)
		assert.InDelta(t, 0.25, weights[1], 1e-9)
		assert.InDelta(t, 0.25, weights[2], 1e-9)
	})

	t.Run("zero sum fails", func(t *testing.T) {
		err := renormalize([]float64{0, 0, 0})
		assert.ErrorIs(t, err, domain.ErrZeroWeightSum)
	})

	t.Run("nan sum fails", func(t *testing.T) {
		err := renormalize([]float64{math.NaN(), 1})
		assert.ErrorIs(t, err, domain.ErrZeroWeightSum)
	})
}

func TestPrepareJourney_SortsOutOfOrderInput(t *testing.T) {
	journey := domain.Journey{
		ConversionID: "conv-1",
		Touchpoints: []domain.Touchpoint{
			touchpointAt("late", domain.ChannelPaidSearch, testClock.Add(-time.Hour), 1),
			touchpointAt("early", domain.ChannelDirect, testClock.Add(-48*time.Hour), 0),
		},
	}

	sorted, err := prepareJourney(journey, pinnedCalc())
	require.NoError(t, err)
	require.Len(t, sorted, 2)
	assert.Equal(t, "early", sorted[0].ID)
	assert.Equal(t, "late", sorted[1].ID)
}
