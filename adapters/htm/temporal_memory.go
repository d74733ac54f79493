package htm

import (
	"math/rand"
	"sort"
)

const minPermanence = 0.00001

type synapse struct {
	presynaptic int
	permanence  float64
	segment     *segment
}

type segment struct {
	cell     int
	ordinal  uint64
	lastUsed uint64
	synapses []*synapse
	dead     bool

	// activity from the latest dendrite pass, valid while stamp matches
	stamp           uint64
	activeConnected int
	activePotential int
}

// TemporalMemory learns sequences of active columns. Each column has
// CellsPerColumn cells; each cell owns distal segments whose synapses connect
// to cells that were active on the previous step.
type TemporalMemory struct {
	p   TMParams
	rng *rand.Rand

	cellSegments [][]*segment
	bySource     [][]*synapse // presynaptic cell -> synapses reading it
	nextOrdinal  uint64
	iteration    uint64

	activeCells      []int
	winnerCells      []int
	activeSegments   []*segment
	matchingSegments []*segment
}

// NewTemporalMemory creates an empty temporal memory
func NewTemporalMemory(p TMParams) *TemporalMemory {
	numCells := p.ColumnCount * p.CellsPerColumn
	return &TemporalMemory{
		p:            p,
		rng:          rand.New(rand.NewSource(p.Seed)),
		cellSegments: make([][]*segment, numCells),
		bySource:     make([][]*synapse, numCells),
	}
}

// ActiveCells returns the sorted cells active on the latest step
func (tm *TemporalMemory) ActiveCells() []int { return tm.activeCells }

// WinnerCells returns the sorted learning cells of the latest step
func (tm *TemporalMemory) WinnerCells() []int { return tm.winnerCells }

// PredictedColumns returns the sorted columns holding a predictive cell
func (tm *TemporalMemory) PredictedColumns() []int {
	cols := make([]int, 0, len(tm.activeSegments))
	last := -1
	for _, seg := range tm.activeSegments {
		col := tm.columnOf(seg.cell)
		if col != last {
			cols = append(cols, col)
			last = col
		}
	}
	return cols
}

// NumSegments counts live segments
func (tm *TemporalMemory) NumSegments() int {
	n := 0
	for _, segs := range tm.cellSegments {
		n += len(segs)
	}
	return n
}

// Reset clears sequence state so the next input is not treated as a continuation
func (tm *TemporalMemory) Reset() {
	tm.activeCells = nil
	tm.winnerCells = nil
	tm.activeSegments = nil
	tm.matchingSegments = nil
}

func (tm *TemporalMemory) columnOf(cell int) int { return cell / tm.p.CellsPerColumn }

// Compute feeds one step of sorted active columns
func (tm *TemporalMemory) Compute(activeColumns []int, learn bool) {
	tm.iteration++
	tm.activateCells(activeColumns, learn)
	tm.activateDendrites(learn)
}

func (tm *TemporalMemory) activateCells(activeColumns []int, learn bool) {
	prevActive := tm.activeCells
	prevWinners := tm.winnerCells
	prevActiveSet := make(map[int]struct{}, len(prevActive))
	for _, c := range prevActive {
		prevActiveSet[c] = struct{}{}
	}

	activeByCol := groupByColumn(tm, tm.activeSegments)
	matchingByCol := groupByColumn(tm, tm.matchingSegments)

	var activeCells, winnerCells []int
	isActiveCol := make(map[int]struct{}, len(activeColumns))

	for _, col := range activeColumns {
		isActiveCol[col] = struct{}{}

		if segs := activeByCol[col]; len(segs) > 0 {
			last := -1
			for _, seg := range segs {
				if seg.dead {
					continue
				}
				if seg.cell != last {
					activeCells = append(activeCells, seg.cell)
					winnerCells = append(winnerCells, seg.cell)
					last = seg.cell
				}
				if learn && tm.adaptSegment(seg, prevActiveSet, tm.p.PermanenceInc, tm.p.PermanenceDec) {
					tm.growSynapses(seg, prevWinners, tm.p.NewSynapseCount-seg.activePotential)
				}
			}
			continue
		}

		// burst
		start := col * tm.p.CellsPerColumn
		for c := start; c < start+tm.p.CellsPerColumn; c++ {
			activeCells = append(activeCells, c)
		}

		if best := bestMatching(matchingByCol[col]); best != nil {
			winnerCells = append(winnerCells, best.cell)
			if learn && tm.adaptSegment(best, prevActiveSet, tm.p.PermanenceInc, tm.p.PermanenceDec) {
				tm.growSynapses(best, prevWinners, tm.p.NewSynapseCount-best.activePotential)
			}
			continue
		}

		winner := tm.leastUsedCell(col)
		winnerCells = append(winnerCells, winner)
		if learn && len(prevWinners) > 0 {
			seg := tm.createSegment(winner)
			tm.growSynapses(seg, prevWinners, tm.p.NewSynapseCount)
		}
	}

	if learn && tm.p.PredictedSegmentDecrement > 0 {
		for col, segs := range matchingByCol {
			if _, ok := isActiveCol[col]; ok {
				continue
			}
			for _, seg := range segs {
				if !seg.dead {
					tm.adaptSegment(seg, prevActiveSet, -tm.p.PredictedSegmentDecrement, 0)
				}
			}
		}
	}

	sort.Ints(activeCells)
	sort.Ints(winnerCells)
	tm.activeCells = activeCells
	tm.winnerCells = winnerCells
}

// activateDendrites counts active synapses per segment through the presynaptic index
func (tm *TemporalMemory) activateDendrites(learn bool) {
	var touched []*segment
	for _, cell := range tm.activeCells {
		for _, syn := range tm.bySource[cell] {
			seg := syn.segment
			if seg.stamp != tm.iteration {
				seg.stamp = tm.iteration
				seg.activeConnected = 0
				seg.activePotential = 0
				touched = append(touched, seg)
			}
			seg.activePotential++
			if syn.permanence >= tm.p.ConnectedPermanence {
				seg.activeConnected++
			}
		}
	}

	sort.Slice(touched, func(i, j int) bool {
		if touched[i].cell != touched[j].cell {
			return touched[i].cell < touched[j].cell
		}
		return touched[i].ordinal < touched[j].ordinal
	})

	tm.activeSegments = tm.activeSegments[:0]
	tm.matchingSegments = tm.matchingSegments[:0]
	for _, seg := range touched {
		if seg.activeConnected >= tm.p.ActivationThreshold {
			tm.activeSegments = append(tm.activeSegments, seg)
			if learn {
				seg.lastUsed = tm.iteration
			}
		}
		if seg.activePotential >= tm.p.MinThreshold {
			tm.matchingSegments = append(tm.matchingSegments, seg)
		}
	}
}

func groupByColumn(tm *TemporalMemory, segs []*segment) map[int][]*segment {
	out := make(map[int][]*segment)
	for _, seg := range segs {
		col := tm.columnOf(seg.cell)
		out[col] = append(out[col], seg)
	}
	return out
}

func bestMatching(segs []*segment) *segment {
	var best *segment
	for _, seg := range segs {
		if best == nil || seg.activePotential > best.activePotential {
			best = seg
		}
	}
	return best
}

// leastUsedCell picks the cell with the fewest segments, ties broken at random
func (tm *TemporalMemory) leastUsedCell(col int) int {
	start := col * tm.p.CellsPerColumn
	fewest := -1
	var candidates []int
	for c := start; c < start+tm.p.CellsPerColumn; c++ {
		n := len(tm.cellSegments[c])
		switch {
		case fewest < 0 || n < fewest:
			fewest = n
			candidates = append(candidates[:0], c)
		case n == fewest:
			candidates = append(candidates, c)
		}
	}
	return candidates[tm.rng.Intn(len(candidates))]
}

func (tm *TemporalMemory) createSegment(cell int) *segment {
	for len(tm.cellSegments[cell]) >= tm.p.MaxSegmentsPerCell {
		lru := tm.cellSegments[cell][0]
		for _, seg := range tm.cellSegments[cell][1:] {
			if seg.lastUsed < lru.lastUsed {
				lru = seg
			}
		}
		tm.destroySegment(lru)
	}
	seg := &segment{cell: cell, ordinal: tm.nextOrdinal, lastUsed: tm.iteration}
	tm.nextOrdinal++
	tm.cellSegments[cell] = append(tm.cellSegments[cell], seg)
	return seg
}

func (tm *TemporalMemory) destroySegment(seg *segment) {
	seg.dead = true
	for len(seg.synapses) > 0 {
		tm.destroySynapse(seg.synapses[len(seg.synapses)-1])
	}
	segs := tm.cellSegments[seg.cell]
	for i, s := range segs {
		if s == seg {
			tm.cellSegments[seg.cell] = append(segs[:i], segs[i+1:]...)
			break
		}
	}
	// keep it out of this step's active/matching lists
	tm.activeSegments = removeSegment(tm.activeSegments, seg)
	tm.matchingSegments = removeSegment(tm.matchingSegments, seg)
}

func removeSegment(segs []*segment, target *segment) []*segment {
	for i, s := range segs {
		if s == target {
			return append(segs[:i], segs[i+1:]...)
		}
	}
	return segs
}

func (tm *TemporalMemory) createSynapse(seg *segment, presynaptic int, permanence float64) {
	syn := &synapse{presynaptic: presynaptic, permanence: permanence, segment: seg}
	seg.synapses = append(seg.synapses, syn)
	tm.bySource[presynaptic] = append(tm.bySource[presynaptic], syn)
}

func (tm *TemporalMemory) destroySynapse(syn *synapse) {
	seg := syn.segment
	for i, s := range seg.synapses {
		if s == syn {
			seg.synapses = append(seg.synapses[:i], seg.synapses[i+1:]...)
			break
		}
	}
	src := tm.bySource[syn.presynaptic]
	for i, s := range src {
		if s == syn {
			last := len(src) - 1
			src[i] = src[last]
			src[last] = nil
			tm.bySource[syn.presynaptic] = src[:last]
			break
		}
	}
}

// adaptSegment reinforces synapses from previously active cells and decays the
// rest. It reports false when the segment lost all its synapses and was destroyed.
func (tm *TemporalMemory) adaptSegment(seg *segment, prevActive map[int]struct{}, inc, dec float64) bool {
	var dead []*synapse
	for _, syn := range seg.synapses {
		if _, ok := prevActive[syn.presynaptic]; ok {
			syn.permanence += inc
		} else {
			syn.permanence -= dec
		}
		syn.permanence = clamp01(syn.permanence)
		if syn.permanence < minPermanence {
			dead = append(dead, syn)
		}
	}
	for _, syn := range dead {
		tm.destroySynapse(syn)
	}
	if len(seg.synapses) == 0 {
		tm.destroySegment(seg)
		return false
	}
	return true
}

// growSynapses connects a segment to up to n previous winner cells it does not
// already read from
func (tm *TemporalMemory) growSynapses(seg *segment, prevWinners []int, n int) {
	if n <= 0 || len(prevWinners) == 0 {
		return
	}
	existing := make(map[int]struct{}, len(seg.synapses))
	for _, syn := range seg.synapses {
		existing[syn.presynaptic] = struct{}{}
	}
	candidates := make([]int, 0, len(prevWinners))
	for _, c := range prevWinners {
		if _, ok := existing[c]; !ok {
			candidates = append(candidates, c)
		}
	}
	if n > len(candidates) {
		n = len(candidates)
	}
	if n > tm.p.MaxSynapsesPerSegment {
		n = tm.p.MaxSynapsesPerSegment
	}
	if n == 0 {
		return
	}

	if overrun := len(seg.synapses) + n - tm.p.MaxSynapsesPerSegment; overrun > 0 {
		tm.destroyWeakest(seg, overrun)
	}

	tm.rng.Shuffle(len(candidates), func(i, j int) { candidates[i], candidates[j] = candidates[j], candidates[i] })
	for _, c := range candidates[:n] {
		tm.createSynapse(seg, c, tm.p.InitialPerm)
	}
}

func (tm *TemporalMemory) destroyWeakest(seg *segment, count int) {
	ordered := append([]*synapse(nil), seg.synapses...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].permanence < ordered[j].permanence })
	if count > len(ordered) {
		count = len(ordered)
	}
	for _, syn := range ordered[:count] {
		tm.destroySynapse(syn)
	}
}
