package htm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func columnsFrom(start, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = start + i
	}
	return out
}

func TestTemporalMemoryFirstStepBursts(t *testing.T) {
	tm := NewTemporalMemory(tmTestParams())
	tm.Compute(columnsFrom(0, 10), true)

	assert.Len(t, tm.ActiveCells(), 10*4)
	assert.Len(t, tm.WinnerCells(), 10)
	assert.Empty(t, tm.PredictedColumns())
	assert.Zero(t, tm.NumSegments(), "nothing to connect to on the first step")
}

func TestTemporalMemoryLearnsSequence(t *testing.T) {
	tm := NewTemporalMemory(tmTestParams())
	seq := [][]int{columnsFrom(0, 10), columnsFrom(10, 10), columnsFrom(20, 10), columnsFrom(30, 10)}

	var first, last []float64
	for pass := 0; pass < 12; pass++ {
		tm.Reset()
		for _, cols := range seq {
			prev := tm.PredictedColumns()
			tm.Compute(cols, true)
			score := RawAnomalyScore(cols, prev)
			switch pass {
			case 0:
				first = append(first, score)
			case 11:
				last = append(last, score)
			}
		}
	}

	assert.Equal(t, []float64{1, 1, 1, 1}, first)
	assert.Equal(t, []float64{1, 0, 0, 0}, last, "only the first element follows a reset")
	assert.Len(t, tm.ActiveCells(), 10, "predicted columns activate one cell each")
}

func TestTemporalMemoryWithoutLearningGrowsNothing(t *testing.T) {
	tm := NewTemporalMemory(tmTestParams())
	tm.Compute(columnsFrom(0, 10), false)
	tm.Compute(columnsFrom(10, 10), false)
	assert.Zero(t, tm.NumSegments())
}

func TestTemporalMemorySegmentLimit(t *testing.T) {
	p := tmTestParams()
	p.MaxSegmentsPerCell = 2
	tm := NewTemporalMemory(p)

	first := tm.createSegment(3)
	tm.iteration++
	tm.createSegment(3)
	tm.iteration++
	tm.createSegment(3)

	assert.Len(t, tm.cellSegments[3], 2)
	assert.True(t, first.dead, "least recently used segment is evicted")
}

func TestTemporalMemorySynapseLimit(t *testing.T) {
	p := tmTestParams()
	p.MaxSynapsesPerSegment = 5
	tm := NewTemporalMemory(p)

	seg := tm.createSegment(0)
	tm.growSynapses(seg, columnsFrom(40, 20), 20)
	require.Len(t, seg.synapses, 5)

	tm.growSynapses(seg, columnsFrom(100, 20), 3)
	assert.Len(t, seg.synapses, 5)

	indexed := 0
	for _, syns := range tm.bySource {
		indexed += len(syns)
	}
	assert.Equal(t, 5, indexed, "presynaptic index follows destroyed synapses")
}

func TestTemporalMemoryReset(t *testing.T) {
	tm := NewTemporalMemory(tmTestParams())
	tm.Compute(columnsFrom(0, 10), true)
	tm.Reset()
	assert.Empty(t, tm.ActiveCells())
	assert.Empty(t, tm.PredictedColumns())
}

func TestTemporalMemoryPunishesWrongPredictions(t *testing.T) {
	p := tmTestParams()
	p.PredictedSegmentDecrement = 0.05
	tm := NewTemporalMemory(p)
	a, b, c := columnsFrom(0, 10), columnsFrom(10, 10), columnsFrom(20, 10)

	tm.Compute(a, true)
	tm.Compute(b, true)

	var predictingB []*segment
	for col := 10; col < 20; col++ {
		for cell := col * p.CellsPerColumn; cell < (col+1)*p.CellsPerColumn; cell++ {
			predictingB = append(predictingB, tm.cellSegments[cell]...)
		}
	}
	require.Len(t, predictingB, 10, "one segment per bursting column of B")
	for _, seg := range predictingB {
		require.Len(t, seg.synapses, 10)
		for _, syn := range seg.synapses {
			require.InDelta(t, p.InitialPerm, syn.permanence, 1e-9)
		}
	}

	tm.Reset()
	tm.Compute(a, true)
	tm.Compute(c, true)

	for _, seg := range predictingB {
		require.False(t, seg.dead)
		for _, syn := range seg.synapses {
			assert.InDelta(t, p.InitialPerm-p.PredictedSegmentDecrement, syn.permanence, 1e-9)
		}
	}
}

func TestTemporalMemoryNoPunishmentWithoutDecrement(t *testing.T) {
	p := tmTestParams()
	tm := NewTemporalMemory(p)
	a, b, c := columnsFrom(0, 10), columnsFrom(10, 10), columnsFrom(20, 10)

	tm.Compute(a, true)
	tm.Compute(b, true)
	tm.Reset()
	tm.Compute(a, true)
	tm.Compute(c, true)

	for col := 10; col < 20; col++ {
		for cell := col * p.CellsPerColumn; cell < (col+1)*p.CellsPerColumn; cell++ {
			for _, seg := range tm.cellSegments[cell] {
				for _, syn := range seg.synapses {
					assert.InDelta(t, p.InitialPerm, syn.permanence, 1e-9)
				}
			}
		}
	}
}
