package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInferenceShifter(t *testing.T) {
	s := NewInferenceShifter()

	first := s.Shift(ModelResult{Predictions: map[int]float64{1: 10}, AnomalyScore: 1})
	_, ok := first.Prediction(1)
	assert.False(t, ok, "first record has no earlier prediction")
	assert.Equal(t, 1.0, first.AnomalyScore)

	second := s.Shift(ModelResult{Predictions: map[int]float64{1: 20}, AnomalyScore: 0.25})
	p, ok := second.Prediction(1)
	assert.True(t, ok)
	assert.Equal(t, 10.0, p)
	assert.Equal(t, 0.25, second.AnomalyScore, "scores are not shifted")

	third := s.Shift(ModelResult{AnomalyScore: 0})
	p, _ = third.Prediction(1)
	assert.Equal(t, 20.0, p)
}
