package htm

import (
	"math"
)

type historyEntry struct {
	recordNum int
	pattern   []int
}

// Classification is the distribution predicted for one step ahead
type Classification struct {
	Probabilities []float64 // per bucket
	ActualValues  []float64 // per bucket
	Best          float64
}

// SDRClassifier maps active cells to a probability distribution over the
// buckets of the predicted field, for each configured number of steps ahead.
// One single-layer softmax network per step, trained online.
type SDRClassifier struct {
	steps         []int
	alpha         float64
	actValueAlpha float64
	buckets       int
	maxSteps      int

	weights      map[int]map[int][]float64 // step -> cell -> per-bucket weight
	actualValues []float64
	seenBucket   []bool
	history      []historyEntry
}

// NewSDRClassifier creates a classifier over a fixed number of buckets
func NewSDRClassifier(p CLParams, buckets int) *SDRClassifier {
	c := &SDRClassifier{
		steps:         append([]int(nil), p.Steps...),
		alpha:         p.Alpha,
		actValueAlpha: p.ActValueAlpha,
		buckets:       buckets,
		weights:       make(map[int]map[int][]float64, len(p.Steps)),
		actualValues:  make([]float64, buckets),
		seenBucket:    make([]bool, buckets),
	}
	for _, s := range p.Steps {
		c.weights[s] = make(map[int][]float64)
		if s > c.maxSteps {
			c.maxSteps = s
		}
	}
	return c
}

// Compute records a pattern, optionally infers, then learns from the bucket
// the current value falls in. Inference runs before learning so it reflects
// only what was known before this record.
func (c *SDRClassifier) Compute(recordNum int, pattern []int, bucket int, value float64, learn, infer bool) map[int]Classification {
	c.history = append(c.history, historyEntry{recordNum: recordNum, pattern: append([]int(nil), pattern...)})
	if len(c.history) > c.maxSteps+1 {
		c.history = c.history[len(c.history)-c.maxSteps-1:]
	}

	var out map[int]Classification
	if infer {
		out = c.infer(pattern, value)
	}

	if learn && bucket >= 0 && bucket < c.buckets {
		if !c.seenBucket[bucket] {
			c.actualValues[bucket] = value
			c.seenBucket[bucket] = true
		} else {
			c.actualValues[bucket] = (1-c.actValueAlpha)*c.actualValues[bucket] + c.actValueAlpha*value
		}

		for _, h := range c.history {
			step := recordNum - h.recordNum
			w, ok := c.weights[step]
			if !ok {
				continue
			}
			dist := c.distribution(w, h.pattern)
			for i := range dist {
				target := 0.0
				if i == bucket {
					target = 1
				}
				dist[i] = target - dist[i]
			}
			for _, cell := range h.pattern {
				row := w[cell]
				if row == nil {
					row = make([]float64, c.buckets)
					w[cell] = row
				}
				for i, e := range dist {
					row[i] += c.alpha * e
				}
			}
		}
	}
	return out
}

func (c *SDRClassifier) infer(pattern []int, defaultValue float64) map[int]Classification {
	values := make([]float64, c.buckets)
	for i := range values {
		if c.seenBucket[i] {
			values[i] = c.actualValues[i]
		} else {
			values[i] = defaultValue
		}
	}

	out := make(map[int]Classification, len(c.steps))
	for _, step := range c.steps {
		probs := c.distribution(c.weights[step], pattern)
		best := 0
		for i, p := range probs {
			if p > probs[best] {
				best = i
			}
		}
		out[step] = Classification{Probabilities: probs, ActualValues: values, Best: values[best]}
	}
	return out
}

// distribution is the softmax of the summed weight rows of the pattern
func (c *SDRClassifier) distribution(w map[int][]float64, pattern []int) []float64 {
	act := make([]float64, c.buckets)
	for _, cell := range pattern {
		row := w[cell]
		for i, v := range row {
			act[i] += v
		}
	}

	peak := math.Inf(-1)
	for _, a := range act {
		peak = math.Max(peak, a)
	}
	sum := 0.0
	for i, a := range act {
		act[i] = math.Exp(a - peak)
		sum += act[i]
	}
	for i := range act {
		act[i] /= sum
	}
	return act
}
