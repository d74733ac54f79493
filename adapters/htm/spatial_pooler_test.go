package htm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func spTestParams() SPParams {
	return SPParams{
		ColumnCount:                128,
		GlobalInhibition:           true,
		NumActiveColumnsPerInhArea: 8,
		PotentialPct:               0.8,
		SynPermConnected:           0.2,
		SynPermActiveInc:           0.003,
		SynPermInactiveDec:         0.0005,
		Seed:                       1956,
	}
}

func TestSpatialPoolerActivatesTopK(t *testing.T) {
	sp := NewSpatialPooler(spTestParams(), 64)
	input := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20}

	active := sp.Compute(input, false)
	require.Len(t, active, 8)
	assert.IsIncreasing(t, active)

	again := sp.Compute(input, false)
	assert.Equal(t, active, again, "no learning, same columns")
}

func TestSpatialPoolerDeterministic(t *testing.T) {
	input := []int{30, 31, 32, 33, 34, 35, 36, 37, 38, 39, 40}
	a := NewSpatialPooler(spTestParams(), 64)
	b := NewSpatialPooler(spTestParams(), 64)

	for i := 0; i < 20; i++ {
		assert.Equal(t, a.Compute(input, true), b.Compute(input, true))
	}
}

func TestSpatialPoolerEmptyInput(t *testing.T) {
	sp := NewSpatialPooler(spTestParams(), 64)
	assert.Empty(t, sp.Compute(nil, true))
}

func TestSpatialPoolerLearningReinforcesInput(t *testing.T) {
	sp := NewSpatialPooler(spTestParams(), 64)
	input := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}

	active := sp.Compute(input, true)
	require.NotEmpty(t, active)
	col := active[0]
	before := connectedTo(sp, col, input)

	for i := 0; i < 50; i++ {
		sp.Compute(input, true)
	}
	assert.GreaterOrEqual(t, connectedTo(sp, col, input), before)
}

func connectedTo(sp *SpatialPooler, col int, input []int) int {
	on := make(map[int]bool, len(input))
	for _, b := range input {
		on[b] = true
	}
	n := 0
	for i, bit := range sp.potential[col] {
		if on[bit] && sp.permanence[col][i] >= sp.p.SynPermConnected {
			n++
		}
	}
	return n
}
