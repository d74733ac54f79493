package htm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSDRClassifierLearnsNextBucket(t *testing.T) {
	c := NewSDRClassifier(CLParams{Alpha: 0.1, ActValueAlpha: 0.3, Steps: []int{1}}, 10)

	patterns := [][]int{{1, 2, 3}, {10, 11, 12}, {20, 21, 22}}
	buckets := []int{2, 5, 8}
	values := []float64{20, 50, 80}

	record := 0
	for pass := 0; pass < 100; pass++ {
		for i := range patterns {
			c.Compute(record, patterns[i], buckets[i], values[i], true, false)
			record++
		}
	}

	// pattern 0 is followed by bucket 5
	out := c.Compute(record, patterns[0], buckets[0], values[0], false, true)
	require.Contains(t, out, 1)
	assert.Equal(t, 50.0, out[1].Best)
	assert.Len(t, out[1].Probabilities, 10)
	assert.Greater(t, out[1].Probabilities[5], 0.8)
}

func TestSDRClassifierActualValueAverage(t *testing.T) {
	c := NewSDRClassifier(CLParams{Alpha: 0.1, ActValueAlpha: 0.3, Steps: []int{1}}, 4)

	c.Compute(0, []int{1}, 2, 10, true, false)
	c.Compute(1, []int{1}, 2, 20, true, false)
	assert.InDelta(t, 13.0, c.actualValues[2], 1e-9)
}

func TestSDRClassifierUnseenBucketsUseCurrentValue(t *testing.T) {
	c := NewSDRClassifier(CLParams{Alpha: 0.1, ActValueAlpha: 0.3, Steps: []int{1}}, 4)

	out := c.Compute(0, []int{1}, 0, 7, true, true)
	require.Contains(t, out, 1)
	assert.Equal(t, []float64{7, 7, 7, 7}, out[1].ActualValues)
	assert.InDeltaSlice(t, []float64{0.25, 0.25, 0.25, 0.25}, out[1].Probabilities, 1e-9)
}

func TestSDRClassifierNoInference(t *testing.T) {
	c := NewSDRClassifier(CLParams{Alpha: 0.1, ActValueAlpha: 0.3, Steps: []int{1}}, 4)
	assert.Nil(t, c.Compute(0, []int{1}, 0, 7, true, false))
}
