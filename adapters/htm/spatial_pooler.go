package htm

import (
	"math/rand"
	"sort"
)

type synapseRef struct {
	column int
	index  int
}

// SpatialPooler turns an input SDR into a fixed number of active columns using
// global inhibition and Hebbian learning on proximal synapses.
type SpatialPooler struct {
	p          SPParams
	inputWidth int

	potential  [][]int     // column -> input bits it may connect to
	permanence [][]float64 // column -> permanence per potential input
	byInput    [][]synapseRef

	tieBreaker []float64
	overlaps   []int
	inputOn    []bool
}

// NewSpatialPooler samples potential pools and initial permanences from the seed
func NewSpatialPooler(p SPParams, inputWidth int) *SpatialPooler {
	rng := rand.New(rand.NewSource(p.Seed))
	sp := &SpatialPooler{
		p:          p,
		inputWidth: inputWidth,
		potential:  make([][]int, p.ColumnCount),
		permanence: make([][]float64, p.ColumnCount),
		byInput:    make([][]synapseRef, inputWidth),
		tieBreaker: make([]float64, p.ColumnCount),
		overlaps:   make([]int, p.ColumnCount),
		inputOn:    make([]bool, inputWidth),
	}

	poolSize := int(float64(inputWidth)*p.PotentialPct + 0.5)
	if poolSize < 1 {
		poolSize = 1
	}
	for col := 0; col < p.ColumnCount; col++ {
		pool := rng.Perm(inputWidth)[:poolSize]
		sort.Ints(pool)
		perms := make([]float64, poolSize)
		for i, bit := range pool {
			if rng.Float64() < 0.5 {
				perms[i] = p.SynPermConnected + rng.Float64()*p.SynPermActiveInc*4
			} else {
				perms[i] = p.SynPermConnected * rng.Float64()
			}
			sp.byInput[bit] = append(sp.byInput[bit], synapseRef{column: col, index: i})
		}
		sp.potential[col] = pool
		sp.permanence[col] = perms
		sp.tieBreaker[col] = 0.01 * rng.Float64()
	}
	return sp
}

// Compute returns the sorted active columns for the active input bits
func (sp *SpatialPooler) Compute(input []int, learn bool) []int {
	for i := range sp.overlaps {
		sp.overlaps[i] = 0
	}
	for i := range sp.inputOn {
		sp.inputOn[i] = false
	}

	for _, bit := range input {
		if bit < 0 || bit >= sp.inputWidth {
			continue
		}
		sp.inputOn[bit] = true
		for _, ref := range sp.byInput[bit] {
			if sp.permanence[ref.column][ref.index] >= sp.p.SynPermConnected {
				sp.overlaps[ref.column]++
			}
		}
	}

	active := sp.inhibit()
	if learn {
		sp.adapt(active)
	}
	return active
}

// inhibit keeps the numActiveColumnsPerInhArea columns with the highest overlap
func (sp *SpatialPooler) inhibit() []int {
	candidates := make([]int, 0, len(sp.overlaps))
	for col, o := range sp.overlaps {
		if o > 0 {
			candidates = append(candidates, col)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		return float64(sp.overlaps[a])+sp.tieBreaker[a] > float64(sp.overlaps[b])+sp.tieBreaker[b]
	})
	if len(candidates) > sp.p.NumActiveColumnsPerInhArea {
		candidates = candidates[:sp.p.NumActiveColumnsPerInhArea]
	}
	sort.Ints(candidates)
	return candidates
}

func (sp *SpatialPooler) adapt(active []int) {
	for _, col := range active {
		perms := sp.permanence[col]
		for i, bit := range sp.potential[col] {
			if sp.inputOn[bit] {
				perms[i] += sp.p.SynPermActiveInc
			} else {
				perms[i] -= sp.p.SynPermInactiveDec
			}
			perms[i] = clamp01(perms[i])
		}
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
