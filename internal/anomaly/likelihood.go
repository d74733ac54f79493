package anomaly

import (
	"math"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	// AnomalyThreshold is the likelihood at or above which a point is flagged
	AnomalyThreshold = 0.9

	// Tail probabilities at or below redTail are only reported once in a row;
	// subsequent ones are softened to yellowTail.
	redTail    = 1 - 0.99999
	yellowTail = 1 - 0.999

	// Lower bounds of the estimated distribution so a quiet history does not
	// make every small blip look anomalous.
	minMean     = 0.03
	minVariance = 0.0003
)

// LikelihoodConfig controls how raw anomaly scores become likelihoods
type LikelihoodConfig struct {
	LearningPeriod     int `yaml:"learningPeriod"`
	EstimationSamples  int `yaml:"estimationSamples"`
	HistoricWindowSize int `yaml:"historicWindowSize"`
	ReestimationPeriod int `yaml:"reestimationPeriod"`
	AveragingWindow    int `yaml:"averagingWindow"`
}

// DefaultLikelihoodConfig returns the usual settings for 5-minute to hourly data
func DefaultLikelihoodConfig() LikelihoodConfig {
	return LikelihoodConfig{
		LearningPeriod:     288,
		EstimationSamples:  100,
		HistoricWindowSize: 8640,
		ReestimationPeriod: 100,
		AveragingWindow:    10,
	}
}

func (c LikelihoodConfig) withDefaults() LikelihoodConfig {
	d := DefaultLikelihoodConfig()
	if c.LearningPeriod <= 0 {
		c.LearningPeriod = d.LearningPeriod
	}
	if c.EstimationSamples <= 0 {
		c.EstimationSamples = d.EstimationSamples
	}
	if c.HistoricWindowSize <= 0 {
		c.HistoricWindowSize = d.HistoricWindowSize
	}
	if c.ReestimationPeriod <= 0 {
		c.ReestimationPeriod = d.ReestimationPeriod
	}
	if c.AveragingWindow <= 0 {
		c.AveragingWindow = d.AveragingWindow
	}
	return c
}

// ProbationaryPeriod is the number of records answered with 0.5
func (c LikelihoodConfig) ProbationaryPeriod() int {
	c = c.withDefaults()
	return c.LearningPeriod + c.EstimationSamples
}

// Likelihood turns a stream of raw anomaly scores into the probability that the
// recent scores are unusual compared with the historic distribution.
type Likelihood struct {
	cfg LikelihoodConfig

	iteration    int
	history      []float64
	recent       []float64
	dist         *distuv.Normal
	lastEstimate int

	prevTail float64
	hasPrev  bool
}

// NewLikelihood creates a likelihood estimator; zero fields take defaults
func NewLikelihood(cfg LikelihoodConfig) *Likelihood {
	return &Likelihood{cfg: cfg.withDefaults()}
}

// Probability ingests one raw score and returns its anomaly likelihood in [0, 1]
func (l *Likelihood) Probability(rawScore float64) float64 {
	l.history = append(l.history, rawScore)
	if len(l.history) > l.cfg.HistoricWindowSize {
		l.history = l.history[len(l.history)-l.cfg.HistoricWindowSize:]
	}
	l.recent = append(l.recent, rawScore)
	if len(l.recent) > l.cfg.AveragingWindow {
		l.recent = l.recent[len(l.recent)-l.cfg.AveragingWindow:]
	}

	probationary := l.iteration < l.cfg.LearningPeriod+l.cfg.EstimationSamples
	l.iteration++
	if probationary {
		return 0.5
	}

	if l.dist == nil || l.iteration-l.lastEstimate >= l.cfg.ReestimationPeriod {
		l.estimate()
	}

	avg, _ := stats.Mean(l.recent)
	tail := tailProbability(avg, l.dist)

	filtered := tail
	if tail <= redTail && l.hasPrev && l.prevTail <= redTail {
		filtered = yellowTail
	}
	l.prevTail = tail
	l.hasPrev = true

	return 1 - filtered
}

// estimate fits a normal distribution to the moving averages of the history,
// skipping the records the model was still learning on
func (l *Likelihood) estimate() {
	l.lastEstimate = l.iteration

	skip := skipRecords(l.iteration, len(l.history), l.cfg.LearningPeriod)
	averaged := movingAverages(l.history, l.cfg.AveragingWindow)[skip:]

	if len(averaged) == 0 {
		l.dist = nullDistribution()
		return
	}
	lo, _ := stats.Min(averaged)
	hi, _ := stats.Max(averaged)
	if lo == hi {
		l.dist = nullDistribution()
		return
	}

	mean, _ := stats.Mean(averaged)
	variance, _ := stats.PopulationVariance(averaged)
	if mean < minMean {
		mean = minMean
	}
	if variance < minVariance {
		variance = minVariance
	}
	l.dist = &distuv.Normal{Mu: mean, Sigma: math.Sqrt(variance)}
}

// skipRecords counts how many of the retained history records still fall in
// the learning period
func skipRecords(numIngested, windowSize, learningPeriod int) int {
	shiftedOut := numIngested - windowSize
	if shiftedOut < 0 {
		shiftedOut = 0
	}
	skip := learningPeriod - shiftedOut
	if skip < 0 {
		skip = 0
	}
	if skip > windowSize {
		skip = windowSize
	}
	return skip
}

// movingAverages returns the trailing mean at every position
func movingAverages(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	for i := range values {
		start := i - window + 1
		if start < 0 {
			start = 0
		}
		sum := 0.0
		for _, v := range values[start : i+1] {
			sum += v
		}
		out[i] = sum / float64(i+1-start)
	}
	return out
}

func nullDistribution() *distuv.Normal {
	return &distuv.Normal{Mu: 0.5, Sigma: 1e6}
}

// tailProbability is the probability of a value at least as far from the mean
// on the upper side
func tailProbability(x float64, dist *distuv.Normal) float64 {
	if x < dist.Mu {
		x = 2*dist.Mu - x
	}
	return dist.Survival(x)
}

// LogLikelihood rescales a likelihood so values near 1 spread out: 0.5 maps to
// about 0.03, 0.99999 to 0.5 and 0.9999999999 to 1
func LogLikelihood(likelihood float64) float64 {
	return math.Log(1.0000000001-likelihood) / -23.02585084720009
}

// IsAnomaly reports whether a likelihood crosses AnomalyThreshold
func IsAnomaly(likelihood float64) bool {
	return likelihood >= AnomalyThreshold
}
