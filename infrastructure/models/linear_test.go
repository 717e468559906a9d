package models

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attribly/attribution/internal/domain"
)

func TestNewLinearModel(t *testing.T) {
	model, err := NewLinearModel("linear")
	require.NoError(t, err)
	assert.Equal(t, "linear", model.Name())
	assert.Equal(t, domain.ModelLinear, model.Type())
	assert.NoError(t, model.Validate())

	_, err = NewLinearModel("")
	assert.ErrorIs(t, err, ErrEmptyModelName)
}

func TestLinearModel_Calculate(t *testing.T) {
	model, err := NewLinearModel("linear")
	require.NoError(t, err)

	journey := domain.Journey{
		ConversionID: "conv-1",
		Touchpoints: []domain.Touchpoint{
			touchpointAt("tp-1", domain.ChannelSocialOrganic, testClock.Add(-96*time.Hour), 0),
			touchpointAt("tp-2", domain.ChannelEmailMarketing, testClock.Add(-72*time.Hour), 1),
			touchpointAt("tp-3", domain.ChannelPaidSearch, testClock.Add(-48*time.Hour), 2),
			touchpointAt("tp-4", domain.ChannelDirect, testClock.Add(-24*time.Hour), 3),
		},
	}

	results, err := model.Calculate(context.Background(), journey, pinnedCalc())
	require.NoError(t, err)
	require.Len(t, results, 4)

	for _, r := range results {
		assert.InDelta(t, 0.25, r.Weight, 1e-9)
		assert.Equal(t, domain.ModelLinear, r.Model)
		assert.InDelta(t, 0.25, r.Metadata["share"], 1e-9)
	}
	assert.InDelta(t, 1.0, domain.TotalWeight(results), domain.WeightTolerance)
}

func TestLinearModel_Calculate_SingleTouchpoint(t *testing.T) {
	model, err := NewLinearModel("linear")
	require.NoError(t, err)

	journey := domain.Journey{
		ConversionID: "conv-1",
		Touchpoints: []domain.Touchpoint{
			touchpointAt("only", domain.ChannelReferral, testClock.Add(-time.Hour), 0),
		},
	}

	results, err := model.Calculate(context.Background(), journey, pinnedCalc())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 1.0, results[0].Weight)
}

func TestLinearModel_Calculate_Idempotent(t *testing.T) {
	model, err := NewLinearModel("linear")
	require.NoError(t, err)

	journey := threeTouchJourney()
	calc := pinnedCalc()

	first, err := model.Calculate(context.Background(), journey, calc)
	require.NoError(t, err)
	second, err := model.Calculate(context.Background(), journey, calc)
	require.NoError(t, err)

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].TouchpointID, second[i].TouchpointID)
		assert.Equal(t, first[i].Weight, second[i].Weight)
		assert.Equal(t, first[i].ConfidenceScore, second[i].ConfidenceScore)
		assert.Equal(t, first[i].CalculatedAt, second[i].CalculatedAt)
	}
}

func TestLinearModel_Calculate_RejectsInvalidJourney(t *testing.T) {
	model, err := NewLinearModel("linear")
	require.NoError(t, err)

	_, err = model.Calculate(context.Background(), domain.Journey{ConversionID: "conv-1"}, pinnedCalc())

	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
}
