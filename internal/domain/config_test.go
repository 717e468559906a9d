package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestModelTypeValid(t *testing.T) {
	for _, mt := range KnownModelTypes() {
		assert.True(t, mt.Valid(), "known model type %s must be valid", mt)
	}
	assert.False(t, ModelType("markov-chain").Valid())
	assert.False(t, ModelType("").Valid())
}

func TestModelTypeRequiresChannelWeights(t *testing.T) {
	assert.True(t, ModelPositionBased.RequiresChannelWeights())
	assert.True(t, ModelCustom.RequiresChannelWeights())

	for _, mt := range []ModelType{ModelFirstTouch, ModelLastTouch, ModelLinear, ModelTimeDecay} {
		assert.False(t, mt.RequiresChannelWeights(), "%s must not require channel weights", mt)
	}
}

func TestAttributionWindow(t *testing.T) {
	start := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	w := AttributionWindow{Start: start, End: start.Add(30 * 24 * time.Hour)}

	assert.Equal(t, 30*24*time.Hour, w.Span())
	assert.True(t, w.Contains(start))
	assert.True(t, w.Contains(w.End))
	assert.True(t, w.Contains(start.Add(15*24*time.Hour)))
	assert.False(t, w.Contains(start.Add(-time.Second)))
	assert.False(t, w.Contains(w.End.Add(time.Second)))
}
